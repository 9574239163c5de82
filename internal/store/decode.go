package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/posturecam/internal/posture"
)

var errMalformed = errors.New("malformed record")

type storedRecord struct {
	ID            string          `json:"id"`
	ShoulderAngle *float64        `json:"shoulder_angle"`
	HipAngle      *float64        `json:"hip_angle"`
	TiltAngle     *float64        `json:"tilt_angle"`
	Timestamp     json.RawMessage `json:"timestamp"`
}

// DecodeRecords parses a stored measurement array. The top level must be a JSON array or the
// whole read fails with ErrCorrupt; individual elements that are not objects, miss an angle,
// carry a non-finite angle or an unreadable timestamp are skipped and counted.
func DecodeRecords(data []byte) (records []posture.Record, skipped int, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []posture.Record{}, 0, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	records = make([]posture.Record, 0, len(raw))
	for _, item := range raw {
		rec, err := decodeRecord(item)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func decodeRecord(item json.RawMessage) (posture.Record, error) {
	var sr storedRecord
	if err := json.Unmarshal(item, &sr); err != nil {
		return posture.Record{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	sub := posture.Submission{ShoulderAngle: sr.ShoulderAngle, HipAngle: sr.HipAngle, TiltAngle: sr.TiltAngle}
	m, err := sub.Measurement()
	if err != nil {
		return posture.Record{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	ts, err := ParseTimestamp(sr.Timestamp)
	if err != nil {
		return posture.Record{}, err
	}
	return posture.Record{ID: sr.ID, Measurement: m, Timestamp: ts}, nil
}

// isoLayouts are accepted for string timestamps that are not plain numbers.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp reads a stored timestamp: epoch seconds as a JSON number or numeric string,
// or an ISO-8601 string. Strings without a zone are read as local time.
func ParseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("%w: missing timestamp", errMalformed)
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return epoch(num)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %s", errMalformed, raw)
	}
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epoch(f)
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", errMalformed, s)
}

func epoch(sec float64) (time.Time, error) {
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return time.Time{}, fmt.Errorf("%w: timestamp not finite", errMalformed)
	}
	return posture.FromEpochSeconds(sec), nil
}

type storedThresholds struct {
	Shoulder *float64 `json:"shoulder_threshold"`
	Hip      *float64 `json:"hip_threshold"`
	Tilt     *float64 `json:"tilt_threshold"`
}

// DecodeThresholds parses a stored thresholds object. Missing keys keep their default.
func DecodeThresholds(data []byte) (posture.Thresholds, error) {
	var st storedThresholds
	if err := json.Unmarshal(data, &st); err != nil {
		return posture.Thresholds{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	t := posture.ThresholdUpdate{Shoulder: st.Shoulder, Hip: st.Hip, Tilt: st.Tilt}.Apply(posture.DefaultThresholds())
	if err := t.Validate(); err != nil {
		return posture.Thresholds{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return t, nil
}
