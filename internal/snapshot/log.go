// Package snapshot records operator-confirmed measurements in a durable, newest-first log.
package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/posture"
	"github.com/ayusman/posturecam/internal/store"
)

// ErrPersistence is returned when the log could not be read back or written. Memory is left as
// it was before the failed operation.
var ErrPersistence = errors.New("measurement log not saved")

// Log is the measurement history. The durable copy is authoritative: every operation reloads
// it before acting, and every write replaces it as a whole. One mutex covers the full
// reload-modify-write sequence.
type Log struct {
	backend store.MeasurementBackend
	mu      sync.Mutex
	records []posture.Record
}

// NewLog creates a log over backend and performs an initial load. A load failure is logged and
// leaves the log empty in memory.
func NewLog(backend store.MeasurementBackend) *Log {
	l := &Log{backend: backend, records: []posture.Record{}}
	if err := l.reconcile(); err != nil {
		log.Warn().Err(err).Msg("measurement log unreadable at startup")
	}
	return l
}

func (l *Log) reconcile() error {
	records, err := l.backend.LoadMeasurements()
	if err != nil {
		return err
	}
	l.records = records
	return nil
}

// Append prepends r and rewrites the whole log. If the durable copy cannot be read the append
// is refused, so an unreadable file is never overwritten with a partial view.
func (l *Log) Append(r posture.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.reconcile(); err != nil {
		return fmt.Errorf("%w: reload: %v", ErrPersistence, err)
	}

	next := make([]posture.Record, 0, len(l.records)+1)
	next = append(next, r)
	next = append(next, l.records...)

	if err := l.backend.ReplaceMeasurements(next); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	l.records = next
	return nil
}

// History returns the log sorted newest-first. When the durable copy cannot be read the last
// in-memory view is returned.
func (l *Log) History() []posture.Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.reconcile(); err != nil {
		log.Warn().Err(err).Msg("measurement log unreadable, serving cached history")
	}

	out := make([]posture.Record, len(l.records))
	copy(out, l.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Clear removes the durable artifact and empties memory.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.backend.ClearMeasurements(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	l.records = []posture.Record{}
	return nil
}

// Len returns the number of records currently held in memory.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
