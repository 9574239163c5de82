// Package thresholds holds the process-wide tolerance values. Updates become effective only
// after they are durably saved.
package thresholds

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/posture"
	"github.com/ayusman/posturecam/internal/store"
)

// ErrPersistence is returned when an update could not be saved; the previous values stay in
// effect.
var ErrPersistence = errors.New("thresholds not saved")

// Store is the threshold singleton.
type Store struct {
	backend store.ThresholdBackend
	mu      sync.RWMutex
	current posture.Thresholds
}

// Open loads the saved thresholds from backend. An unreadable artifact is logged and replaced by
// defaults in memory; it is only overwritten by the next successful Update.
func Open(backend store.ThresholdBackend) (*Store, error) {
	t, found, err := backend.LoadThresholds()
	switch {
	case errors.Is(err, store.ErrCorrupt):
		log.Warn().Err(err).Msg("thresholds unreadable, using defaults")
		t = posture.DefaultThresholds()
	case err != nil:
		return nil, fmt.Errorf("load thresholds: %w", err)
	case !found:
		t = posture.DefaultThresholds()
	}
	return &Store{backend: backend, current: t}, nil
}

// Get returns the effective thresholds.
func (s *Store) Get() posture.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies a partial update, saves it and only then makes it effective.
func (s *Store) Update(u posture.ThresholdUpdate) (posture.Thresholds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := u.Apply(s.current)
	if err := next.Validate(); err != nil {
		return s.current, err
	}
	if err := s.backend.SaveThresholds(next); err != nil {
		return s.current, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.current = next
	log.Info().Float64("shoulder", next.Shoulder).Float64("hip", next.Hip).
		Float64("tilt", next.Tilt).Msg("thresholds updated")
	return next, nil
}
