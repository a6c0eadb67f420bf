package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
)

func TestBeginGeneration_SnapshotsThenResets(t *testing.T) {
	s := New()
	s.SetAnswers(models.UserAnswers{Color: "teal", Mood: "calm", Dream: "flying"})
	s.SetFortune("old")

	got := s.BeginGeneration()
	assert.Equal(t, models.UserAnswers{Color: "teal", Mood: "calm", Dream: "flying"}, got)

	st := s.State()
	assert.Equal(t, models.UserAnswers{}, st.Answers)
	assert.Empty(t, st.Fortune)
	assert.True(t, st.Generating)

	s.SetFortune("new")
	s.EndGeneration()
	st = s.State()
	assert.Equal(t, models.Fortune("new"), st.Fortune)
	assert.False(t, st.Generating)
}

func TestBeginCapture_RejectsConcurrent(t *testing.T) {
	s := New()
	release, err := s.BeginCapture()
	require.NoError(t, err)
	assert.True(t, s.State().Capturing)

	_, err = s.BeginCapture()
	assert.ErrorIs(t, err, ErrCaptureInProgress)

	release()
	release()
	assert.False(t, s.State().Capturing)

	release2, err := s.BeginCapture()
	require.NoError(t, err)
	release2()
}

func TestBeginCapture_ReleasedOnPanic(t *testing.T) {
	s := New()
	func() {
		defer func() { _ = recover() }()
		release, err := s.BeginCapture()
		require.NoError(t, err)
		defer release()
		panic("capture blew up")
	}()
	assert.False(t, s.State().Capturing)
}

func TestBeginCapture_OnlyOneWins(t *testing.T) {
	s := New()
	var wins int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.BeginCapture(); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}

func TestShareLifecycle(t *testing.T) {
	s := New()
	s.BeginShare()
	assert.Equal(t, PlaceholderShareURL, s.State().ShareURL)

	s.CompleteShare("https://crystal-ball-fortunes.example.com/share/1-2", nil)
	assert.Equal(t, models.ShareURL("https://crystal-ball-fortunes.example.com/share/1-2"), s.State().ShareURL)

	s.CompleteShare("", errors.New("capture failed"))
	assert.Equal(t, ErrorShareURL, s.State().ShareURL)
}
