// Package session holds the state of one fortune-telling session.
package session

import (
	"errors"
	"sync"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
)

const (
	PlaceholderShareURL models.ShareURL = "https://example.com/fortune-placeholder"
	ErrorShareURL       models.ShareURL = "https://example.com/fortune-error"
)

var ErrCaptureInProgress = errors.New("session: capture already in progress")

// State is a copy of the session at one instant.
type State struct {
	Fortune    models.Fortune
	Answers    models.UserAnswers
	ShareURL   models.ShareURL
	Generating bool
	Capturing  bool
}

type Session struct {
	mu    sync.Mutex
	state State
}

func New() *Session {
	return &Session{}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SetAnswers(a models.UserAnswers) {
	s.mu.Lock()
	s.state.Answers = a
	s.mu.Unlock()
}

// BeginGeneration clears the previous fortune, resets the answers and returns
// them as they were before the reset.
func (s *Session) BeginGeneration() models.UserAnswers {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := s.state.Answers
	s.state.Answers = models.UserAnswers{}
	s.state.Fortune = ""
	s.state.ShareURL = ""
	s.state.Generating = true
	return answers
}

// SetFortune replaces the fortune wholesale.
func (s *Session) SetFortune(f models.Fortune) {
	s.mu.Lock()
	s.state.Fortune = f
	s.mu.Unlock()
}

// EndGeneration is called once the action animation has finished.
func (s *Session) EndGeneration() {
	s.mu.Lock()
	s.state.Generating = false
	s.mu.Unlock()
}

// BeginCapture marks a capture as running. The returned release must be
// called (typically deferred) when the capture ends, whatever the outcome.
func (s *Session) BeginCapture() (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Capturing {
		return nil, ErrCaptureInProgress
	}
	s.state.Capturing = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.state.Capturing = false
			s.mu.Unlock()
		})
	}, nil
}

// BeginShare shows the placeholder link until the capture completes.
func (s *Session) BeginShare() {
	s.mu.Lock()
	s.state.ShareURL = PlaceholderShareURL
	s.mu.Unlock()
}

// CompleteShare replaces the share link; a failed share gets ErrorShareURL.
func (s *Session) CompleteShare(u models.ShareURL, err error) {
	if err != nil || u == "" {
		u = ErrorShareURL
	}
	s.mu.Lock()
	s.state.ShareURL = u
	s.mu.Unlock()
}
