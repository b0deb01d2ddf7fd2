// Package mock provides an in-memory test double for progress.Store.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/lingocoach/internal/progress"
)

var _ progress.Store = (*Store)(nil)

// Store keeps attempts in memory. Errors injected through the Err fields are
// returned instead of touching the data.
type Store struct {
	mu sync.Mutex

	// Attempts holds every recorded attempt in insert order.
	Attempts []progress.Attempt

	// RecordErr, ListErr and PingErr are returned by the matching methods.
	RecordErr error
	ListErr   error
	PingErr   error

	// Closed is set by Close.
	Closed bool
}

// Record validates a like the real backends do, then appends it.
func (s *Store) Record(_ context.Context, a progress.Attempt) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RecordErr != nil {
		return 0, s.RecordErr
	}
	if err := a.Validate(); err != nil {
		return 0, err
	}
	a.ID = int64(len(s.Attempts) + 1)
	s.Attempts = append(s.Attempts, a)
	return a.ID, nil
}

// List returns the newest progress.HistoryLimit attempts of speakerID.
func (s *Store) List(_ context.Context, speakerID string) ([]progress.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := make([]progress.Attempt, 0)
	for _, a := range slices.Backward(s.Attempts) {
		if a.SpeakerID != speakerID {
			continue
		}
		out = append(out, progress.Attempt{
			SpeakerID:        a.SpeakerID,
			Timestamp:        a.Timestamp,
			TargetLanguage:   a.TargetLanguage,
			DetectedLanguage: a.DetectedLanguage,
			NumIssues:        a.NumIssues,
			WeakestPoint:     a.WeakestPoint,
			LLMModel:         a.LLMModel,
		})
		if len(out) == progress.HistoryLimit {
			break
		}
	}
	return out, nil
}

// Ping returns PingErr.
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Recorded returns a snapshot of the recorded attempts.
func (s *Store) Recorded() []progress.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.Attempts)
}
