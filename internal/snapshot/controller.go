package snapshot

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/posture"
)

// Controller validates operator submissions, stamps them and hands them to the log.
type Controller struct {
	log   *Log
	now   func() time.Time
	newID func() string

	mu        sync.RWMutex
	onCapture []func(posture.Record)
	onFailure []func(error)
}

// NewController creates a Controller writing to l.
func NewController(l *Log) *Controller {
	return &Controller{
		log:   l,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// OnCapture registers fn to run after every successful capture.
func (c *Controller) OnCapture(fn func(posture.Record)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCapture = append(c.onCapture, fn)
}

// OnFailure registers fn to run when a valid capture could not be persisted.
func (c *Controller) OnFailure(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFailure = append(c.onFailure, fn)
}

// stamp returns the current time rounded up to the stored microsecond precision, so a stored
// timestamp is never earlier than the moment of capture.
func (c *Controller) stamp() time.Time {
	now := c.now()
	t := now.Truncate(time.Microsecond)
	if t.Before(now) {
		t = t.Add(time.Microsecond)
	}
	return t
}

// Capture validates s and appends it to the log with a fresh ID and timestamp. Validation
// failures wrap posture.ErrInvalidSubmission and leave the log untouched.
func (c *Controller) Capture(s posture.Submission) (posture.Record, error) {
	m, err := s.Measurement()
	if err != nil {
		return posture.Record{}, err
	}

	rec := posture.Record{
		ID:          c.newID(),
		Measurement: m,
		Timestamp:   c.stamp(),
	}
	if err := c.log.Append(rec); err != nil {
		log.Error().Err(err).Str("id", rec.ID).Msg("capture not persisted")
		c.mu.RLock()
		hooks := c.onFailure
		c.mu.RUnlock()
		for _, fn := range hooks {
			fn(err)
		}
		return posture.Record{}, err
	}

	log.Info().Str("id", rec.ID).Float64("shoulder", m.ShoulderAngle).
		Float64("hip", m.HipAngle).Float64("tilt", m.TiltAngle).Msg("measurement captured")

	c.mu.RLock()
	hooks := c.onCapture
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(rec)
	}
	return rec, nil
}

// CaptureMeasurement captures a measurement that is already complete, such as the latest live
// reading.
func (c *Controller) CaptureMeasurement(m posture.Measurement) (posture.Record, error) {
	return c.Capture(posture.Submission{
		ShoulderAngle: &m.ShoulderAngle,
		HipAngle:      &m.HipAngle,
		TiltAngle:     &m.TiltAngle,
	})
}

// History returns the log newest-first.
func (c *Controller) History() []posture.Record {
	return c.log.History()
}

// Clear empties the log and removes its durable artifact.
func (c *Controller) Clear() error {
	if err := c.log.Clear(); err != nil {
		return err
	}
	log.Info().Msg("measurement history cleared")
	return nil
}
