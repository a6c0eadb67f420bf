// Package sprite drives frame-based animations with a single re-armed timer.
package sprite

import (
	"sync"
	"time"
)

type Mode int

const (
	Idle Mode = iota
	Action
)

func (m Mode) String() string {
	if m == Action {
		return "action"
	}
	return "idle"
}

type Frame struct {
	Mode  Mode
	Index int
}

// Animator loops over idle frames and, on request, plays the action frames
// exactly once before returning to idle.
type Animator struct {
	IdleFrames       int
	ActionFrames     int
	Interval         time.Duration
	OnActionComplete func()

	mu        sync.Mutex
	runMu     sync.Mutex
	draw      func(Frame)
	timer     *time.Timer
	frame     int
	acting    bool
	requested bool
	completed bool
	stopped   bool
}

func New(idleFrames, actionFrames, fps int) *Animator {
	if fps <= 0 {
		fps = 1
	}
	return &Animator{IdleFrames: idleFrames, ActionFrames: actionFrames, Interval: time.Second / time.Duration(fps)}
}

// NewBackground is an idle-only animator: 12 frames, one every 50ms.
func NewBackground() *Animator {
	return &Animator{IdleFrames: 12, Interval: 50 * time.Millisecond}
}

// Start schedules the first redraw. Only one redraw is ever pending.
func (a *Animator) Start(draw func(Frame)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		return
	}
	a.draw = draw
	a.stopped = false
	a.timer = time.AfterFunc(a.Interval, a.run)
}

// SetPlaying(true) requests one pass of the action loop from frame 0.
func (a *Animator) SetPlaying(playing bool) {
	a.mu.Lock()
	a.requested = playing
	if playing {
		a.completed = false
	}
	a.mu.Unlock()
}

// Stop cancels the pending redraw and waits for one in progress, so nothing
// is drawn after it returns. It must not be called from draw or
// OnActionComplete.
func (a *Animator) Stop() {
	a.mu.Lock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	a.runMu.Lock()
	a.runMu.Unlock()
}

func (a *Animator) run() {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()
	if stopped {
		return
	}
	a.tick()

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.stopped && a.timer != nil {
		a.timer.Reset(a.Interval)
	}
}

// tick draws the current frame and advances.
func (a *Animator) tick() {
	a.mu.Lock()
	if a.requested && !a.acting && !a.completed && a.ActionFrames > 0 {
		a.acting = true
		a.frame = 0
	}

	f := Frame{Mode: Idle, Index: a.frame}
	total := a.IdleFrames
	if a.acting {
		f.Mode = Action
		total = a.ActionFrames
	}
	if total <= 0 {
		total = 1
	}

	next := (a.frame + 1) % total
	finished := false
	if a.acting && next == 0 {
		a.acting = false
		a.completed = true
		finished = true
	}
	a.frame = next
	draw, done := a.draw, a.OnActionComplete
	a.mu.Unlock()

	if draw != nil {
		draw(f)
	}
	if finished && done != nil {
		done()
	}
}
