package store

import (
	"errors"

	"github.com/ayusman/posturecam/internal/posture"
)

// ErrCorrupt is returned when a durable artifact exists but cannot be read as a whole.
var ErrCorrupt = errors.New("corrupt store")

// ThresholdBackend persists the threshold singleton.
type ThresholdBackend interface {
	// LoadThresholds returns the saved thresholds. found is false when nothing was saved yet.
	LoadThresholds() (t posture.Thresholds, found bool, err error)
	SaveThresholds(t posture.Thresholds) error
}

// MeasurementBackend persists the measurement log. Writes always replace the whole sequence.
type MeasurementBackend interface {
	// LoadMeasurements returns the saved records in stored order, skipping malformed entries.
	// A missing artifact yields an empty slice.
	LoadMeasurements() ([]posture.Record, error)
	ReplaceMeasurements(records []posture.Record) error
	// ClearMeasurements removes the durable artifact.
	ClearMeasurements() error
}
