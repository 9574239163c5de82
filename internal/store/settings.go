package store

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/ayusman/posturecam/internal/posture"
)

const (
	keyShoulder = "shoulder_threshold"
	keyHip      = "hip_threshold"
	keyTilt     = "tilt_threshold"
)

// LoadThresholds reads the thresholds from the settings table. Missing keys keep their default.
func (s *Store) LoadThresholds() (posture.Thresholds, bool, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings WHERE key IN (?, ?, ?)`, keyShoulder, keyHip, keyTilt)
	if err != nil {
		return posture.Thresholds{}, false, fmt.Errorf("query thresholds: %w", err)
	}
	defer rows.Close()

	var u posture.ThresholdUpdate
	found := false
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return posture.Thresholds{}, false, err
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return posture.Thresholds{}, false, fmt.Errorf("%w: setting %s=%q", ErrCorrupt, key, value)
		}
		found = true
		switch key {
		case keyShoulder:
			u.Shoulder = &v
		case keyHip:
			u.Hip = &v
		case keyTilt:
			u.Tilt = &v
		}
	}
	if err := rows.Err(); err != nil {
		return posture.Thresholds{}, false, err
	}

	t := u.Apply(posture.DefaultThresholds())
	if err := t.Validate(); err != nil {
		return posture.Thresholds{}, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return t, found, nil
}

// SaveThresholds writes all three thresholds in one transaction.
func (s *Store) SaveThresholds(t posture.Thresholds) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for key, v := range map[string]float64{keyShoulder: t.Shoulder, keyHip: t.Hip, keyTilt: t.Tilt} {
		if err := upsertSetting(tx, key, strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func upsertSetting(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}
