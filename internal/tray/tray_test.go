package tray

import (
	"context"
	"testing"
	"time"

	"github.com/ayusman/posturecam/internal/emitter"
	"github.com/ayusman/posturecam/internal/posture"
)

func reading(m posture.Measurement) emitter.Reading {
	return emitter.NewReading(m, nil, posture.DefaultThresholds(), true, time.Now())
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		name string
		m    posture.Measurement
		want string
	}{
		{"level", posture.Measurement{ShoulderAngle: 1, HipAngle: -2, TiltAngle: 0.5}, "Posture: good"},
		{"shoulders", posture.Measurement{ShoulderAngle: 8}, "Posture: check shoulders"},
		{"hips and tilt", posture.Measurement{HipAngle: -6, TiltAngle: 3}, "Posture: check hips, camera tilt"},
		{"boundary is within", posture.Measurement{ShoulderAngle: 5, HipAngle: 5, TiltAngle: 2}, "Posture: good"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusText(reading(tt.m)); got != tt.want {
				t.Errorf("StatusText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmit_BeforeMenuReady(t *testing.T) {
	tr := New()
	if tr.Status() != statusNone {
		t.Errorf("initial status = %q", tr.Status())
	}
	if err := tr.Emit(context.Background(), reading(posture.Measurement{ShoulderAngle: 9})); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if got := tr.Status(); got != "Posture: check shoulders" {
		t.Errorf("Status() = %q", got)
	}
}

func TestHandleCapture_CallsCallback(t *testing.T) {
	tr := New()
	calls := 0
	tr.OnCapture(func() error {
		calls++
		return nil
	})
	tr.handleCapture()
	if calls != 1 {
		t.Errorf("capture callback ran %d times", calls)
	}

	dash := false
	tr.OnDashboard(func() { dash = true })
	tr.handleDashboard()
	if !dash {
		t.Error("dashboard callback not run")
	}
}

var _ emitter.Emitter = (*Tray)(nil)
