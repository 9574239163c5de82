package report

import (
	"time"

	"github.com/ayusman/posturecam/internal/posture"
)

// History row statuses.
const (
	StatusGood           = "Good"
	StatusNeedsAttention = "Needs Attention"
)

// Title is the report heading.
const Title = "Scoliosis Analysis Report"

const timeLayout = "2006-01-02 15:04:05"

// Build assembles the report for history (newest-first) graded against t. The latest block is
// omitted when history is empty.
func Build(history []posture.Record, t posture.Thresholds, now time.Time) Request {
	req := Request{
		Title:       Title,
		GeneratedAt: now.Format(timeLayout),
		Thresholds:  Thresholds{Shoulder: t.Shoulder, Hip: t.Hip, Tilt: t.Tilt},
		History:     make([]Row, 0, len(history)),
	}

	if len(history) > 0 {
		last := history[0].Measurement
		for _, axis := range posture.Axes {
			v, th := last.Value(axis), t.For(axis)
			req.Latest = append(req.Latest, Item{
				Label:     label(axis),
				Value:     v,
				Threshold: th,
				Grade:     string(posture.Grade(v, th)),
			})
		}
	}

	for _, rec := range history {
		status := StatusGood
		if !posture.Classify(rec.Measurement, t).OK() {
			status = StatusNeedsAttention
		}
		req.History = append(req.History, Row{
			Time:     rec.Timestamp.Local().Format(timeLayout),
			Status:   status,
			Shoulder: rec.ShoulderAngle,
			Hip:      rec.HipAngle,
			Tilt:     rec.TiltAngle,
		})
	}
	return req
}

func label(axis posture.Axis) string {
	switch axis {
	case posture.AxisShoulder:
		return "Shoulder Angle"
	case posture.AxisHip:
		return "Hip Angle"
	default:
		return "Frame Tilt"
	}
}
