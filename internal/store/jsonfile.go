package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/posture"
)

// Default artifact names inside the data directory.
const (
	ThresholdsFile   = "thresholds.json"
	MeasurementsFile = "measurements.json"
)

// WriteFileAtomic writes data to a temporary file in the same directory, syncs it and renames
// it over path, so readers see either the old or the new content. The temporary file is
// removed on every failure path.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// JSONThresholds stores thresholds in a single JSON file.
type JSONThresholds struct {
	path string
}

// NewJSONThresholds creates a file-backed threshold store at path.
func NewJSONThresholds(path string) *JSONThresholds {
	return &JSONThresholds{path: path}
}

// Path returns the backing file path.
func (j *JSONThresholds) Path() string { return j.path }

// LoadThresholds reads the thresholds file.
func (j *JSONThresholds) LoadThresholds() (posture.Thresholds, bool, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return posture.DefaultThresholds(), false, nil
	}
	if err != nil {
		return posture.Thresholds{}, false, fmt.Errorf("read thresholds: %w", err)
	}
	t, err := DecodeThresholds(data)
	if err != nil {
		return posture.Thresholds{}, false, fmt.Errorf("%s: %w", j.path, err)
	}
	return t, true, nil
}

// SaveThresholds atomically rewrites the thresholds file.
func (j *JSONThresholds) SaveThresholds(t posture.Thresholds) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal thresholds: %w", err)
	}
	return WriteFileAtomic(j.path, data, 0o644)
}

// JSONMeasurements stores the measurement log as a JSON array file.
type JSONMeasurements struct {
	path string
}

// NewJSONMeasurements creates a file-backed measurement log at path.
func NewJSONMeasurements(path string) *JSONMeasurements {
	return &JSONMeasurements{path: path}
}

// Path returns the backing file path.
func (j *JSONMeasurements) Path() string { return j.path }

// LoadMeasurements reads the log file, skipping malformed records.
func (j *JSONMeasurements) LoadMeasurements() ([]posture.Record, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []posture.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read measurements: %w", err)
	}
	records, skipped, err := DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", j.path, err)
	}
	if skipped > 0 {
		log.Warn().Str("path", j.path).Int("skipped", skipped).Msg("skipped malformed measurements")
	}
	return records, nil
}

// ReplaceMeasurements atomically rewrites the whole log.
func (j *JSONMeasurements) ReplaceMeasurements(records []posture.Record) error {
	if records == nil {
		records = []posture.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal measurements: %w", err)
	}
	return WriteFileAtomic(j.path, data, 0o644)
}

// ClearMeasurements removes the log file. A missing file is not an error.
func (j *JSONMeasurements) ClearMeasurements() error {
	if err := os.Remove(j.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove measurements: %w", err)
	}
	return nil
}
