package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.FramesProcessed.Add(3)
	m.EncodeFailures.Add(1)
	m.SetDeviceLive(true)
	m.UpdateProcessLatency(1500 * time.Microsecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, want := range []string{
		"posturecam_frames_processed_total 3",
		"posturecam_encode_failures_total 1",
		"posturecam_device_live 1",
		"posturecam_process_latency_us 1500",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestSetDeviceLive(t *testing.T) {
	m := New()
	m.SetDeviceLive(true)
	m.SetDeviceLive(false)
	if got := m.DeviceLive.Load(); got != 0 {
		t.Errorf("DeviceLive = %d, want 0", got)
	}
}

func TestRegistry_Gathers(t *testing.T) {
	m := New()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) != 16 {
		t.Errorf("len(families) = %d, want 16", len(families))
	}
}
