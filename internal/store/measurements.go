package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/posture"
)

// LoadMeasurements returns the log in written order. Rows with a NULL or non-finite column are
// skipped.
func (s *Store) LoadMeasurements() ([]posture.Record, error) {
	rows, err := s.db.Query(
		`SELECT id, shoulder_angle, hip_angle, tilt_angle, timestamp_us
		 FROM measurements ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	records := []posture.Record{}
	skipped := 0
	for rows.Next() {
		var (
			id                 string
			shoulder, hip, tlt sql.NullFloat64
			ts                 sql.NullInt64
		)
		if err := rows.Scan(&id, &shoulder, &hip, &tlt, &ts); err != nil {
			skipped++
			continue
		}
		if !validFloat(shoulder) || !validFloat(hip) || !validFloat(tlt) || !ts.Valid {
			skipped++
			continue
		}
		records = append(records, posture.Record{
			ID: id,
			Measurement: posture.Measurement{
				ShoulderAngle: shoulder.Float64,
				HipAngle:      hip.Float64,
				TiltAngle:     tlt.Float64,
			},
			Timestamp: time.UnixMicro(ts.Int64),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Warn().Str("path", s.path).Int("skipped", skipped).Msg("skipped malformed measurements")
	}
	return records, nil
}

func validFloat(v sql.NullFloat64) bool {
	return v.Valid && !math.IsNaN(v.Float64) && !math.IsInf(v.Float64, 0)
}

// ReplaceMeasurements swaps the whole log in a single transaction.
func (s *Store) ReplaceMeasurements(records []posture.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM measurements`); err != nil {
		return fmt.Errorf("clear measurements: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO measurements (position, id, shoulder_angle, hip_angle, tilt_angle, timestamp_us)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.Exec(i, r.ID, r.ShoulderAngle, r.HipAngle, r.TiltAngle, r.Timestamp.UnixMicro()); err != nil {
			return fmt.Errorf("insert measurement %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ClearMeasurements deletes every row of the log.
func (s *Store) ClearMeasurements() error {
	if _, err := s.db.Exec(`DELETE FROM measurements`); err != nil {
		return fmt.Errorf("clear measurements: %w", err)
	}
	return nil
}
