package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"avatarchat/internal/ports"
)

type activeSession struct {
	id     string
	cancel context.CancelFunc
	logger zerolog.Logger

	client     ports.AvatarClient
	eventsDone chan struct{}

	flagsMu sync.Mutex
	// abandoned is set when the session is torn down while still starting.
	abandoned    bool
	abandonCause string
}

func (s *activeSession) abandon(cause string) {
	s.flagsMu.Lock()
	defer s.flagsMu.Unlock()
	if !s.abandoned {
		s.abandoned = true
		s.abandonCause = cause
	}
}

func (s *activeSession) abandonedWith() (string, bool) {
	s.flagsMu.Lock()
	defer s.flagsMu.Unlock()
	return s.abandonCause, s.abandoned
}
