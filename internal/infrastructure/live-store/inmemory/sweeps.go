package inmemorylivestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/binaryplan/binaryd/internal/core/ports"
)

type sweepStore struct {
	lock   sync.RWMutex
	status ports.SweepStatus
}

func NewSweepStore() ports.SweepStore {
	return &sweepStore{}
}

func (s *sweepStore) Begin(_ context.Context) (uint64, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.status.Running {
		return s.status.Generation, false, nil
	}
	s.status.Generation++
	s.status.Running = true
	s.status.StartedAt = time.Now()
	return s.status.Generation, true, nil
}

func (s *sweepStore) Complete(_ context.Context, generation uint64, processed, skipped int) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.checkGeneration(generation); err != nil {
		return err
	}
	s.status.Running = false
	s.status.LastCompleted = time.Now()
	s.status.LastProcessed = processed
	s.status.LastSkipped = skipped
	s.status.LastAbortedErr = ""
	return nil
}

func (s *sweepStore) Abort(_ context.Context, generation uint64, reason string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.checkGeneration(generation); err != nil {
		return err
	}
	s.status.Running = false
	s.status.LastAbortedErr = reason
	return nil
}

func (s *sweepStore) Status(_ context.Context) (*ports.SweepStatus, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	status := s.status
	return &status, nil
}

func (s *sweepStore) checkGeneration(generation uint64) error {
	if !s.status.Running || s.status.Generation != generation {
		return fmt.Errorf(
			"sweep generation %d is not running (current %d)", generation, s.status.Generation,
		)
	}
	return nil
}
