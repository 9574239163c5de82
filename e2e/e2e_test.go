package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/posturecam/internal/app"
	"github.com/ayusman/posturecam/internal/capture"
	"github.com/ayusman/posturecam/internal/detector"
	"github.com/ayusman/posturecam/internal/emitter"
	"github.com/ayusman/posturecam/internal/metrics"
	"github.com/ayusman/posturecam/internal/posture"
	"github.com/ayusman/posturecam/internal/report"
	"github.com/ayusman/posturecam/internal/server"
	"github.com/ayusman/posturecam/internal/snapshot"
	"github.com/ayusman/posturecam/internal/store"
	"github.com/ayusman/posturecam/internal/testframes"
	"github.com/ayusman/posturecam/internal/thresholds"
)

// writeRenderer installs a renderer that echoes the request back as the document.
func writeRenderer(t *testing.T, dir string) {
	t.Helper()
	rdir := filepath.Join(dir, "echo")
	if err := os.MkdirAll(rdir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"echo","executable":"echo.sh","contentType":"application/json","extension":"json"}`
	if err := os.WriteFile(filepath.Join(rdir, report.ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\nDOC=$(base64 | tr -d '\\n')\necho \"{\\\"success\\\":true,\\\"document\\\":\\\"$DOC\\\"}\"\n"
	if err := os.WriteFile(filepath.Join(rdir, "echo.sh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("renderer script needs a POSIX shell")
	}

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, store.DatabaseFile)

	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	th, err := thresholds.Open(s)
	if err != nil {
		t.Fatalf("thresholds.Open() error = %v", err)
	}
	m := metrics.New()
	snap := snapshot.NewController(snapshot.NewLog(s))
	snap.OnCapture(func(posture.Record) { m.Captures.Add(1) })

	frame := testframes.Blank(640, 480)
	defer frame.Close()
	mgr := capture.NewManager(capture.ManagerConfig{
		Retries: 1,
		Opener: func(capture.Kind, int) capture.Camera {
			return capture.NewMockCamera([]*gocv.Mat{&frame}, true)
		},
		PiAvailable: func() bool { return false },
	})

	det := detector.NewMockDetector()
	det.SetPose(detector.RaisedShoulderPose())
	live := server.NewLiveHub(&m.LiveWebClients)

	application := app.New(app.Config{
		Manager:      mgr,
		Detector:     det,
		Thresholds:   th,
		Emitter:      emitter.Multi{live},
		Metrics:      m,
		EmitInterval: 20 * time.Millisecond,
	})
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer application.Stop()

	pluginDir := filepath.Join(tmpDir, "plugins")
	writeRenderer(t, pluginDir)
	reports := report.NewManager(pluginDir)
	if err := reports.Discover(); err != nil {
		t.Fatal(err)
	}

	srv := server.New(server.Config{
		App:        application,
		Thresholds: th,
		Snapshot:   snap,
		Reports:    reports,
		Executor:   report.NewExecutor(5 * time.Second),
		Live:       live,
		Metrics:    m,
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	t.Run("LiveReadingsArrive", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/live", nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			var ev struct {
				Event string          `json:"event"`
				Data  emitter.Reading `json:"data"`
			}
			if err := conn.ReadJSON(&ev); err != nil {
				t.Fatalf("read: %v", err)
			}
			if ev.Event != "measurements" {
				continue
			}
			if !ev.Data.Live || ev.Data.OK || ev.Data.Classification.Shoulder != posture.StatusExceeds {
				t.Errorf("reading = %+v, want live shoulder alert", ev.Data)
			}
			return
		}
	})

	t.Run("RelaxThresholdClearsAlert", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/thresholds", strings.NewReader(`{"shoulder_threshold": 20}`))
		resp, err := client.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if m := application.LatestMeasurement(); m != nil && posture.Classify(*m, th.Get()).OK() {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Error("live measurement still out of tolerance after relaxing the threshold")
	})

	t.Run("CaptureLive", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/measurements/live", "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			body, _ := io.ReadAll(resp.Body)
			t.Fatalf("status = %d: %s", resp.StatusCode, body)
		}
		if m.Captures.Load() != 1 {
			t.Errorf("captures metric = %d, want 1", m.Captures.Load())
		}
	})

	t.Run("Report", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/report?format=echo")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			t.Fatalf("status = %d: %s", resp.StatusCode, body)
		}

		var req report.Request
		if err := json.NewDecoder(resp.Body).Decode(&req); err != nil {
			t.Fatalf("decode echoed request: %v", err)
		}
		if len(req.History) != 1 || req.Thresholds.Shoulder != 20 {
			t.Errorf("report = %+v", req)
		}
		if !strings.HasPrefix(resp.Header.Get("Content-Disposition"), `attachment; filename="scoliosis_analysis_`) {
			t.Errorf("Content-Disposition = %q", resp.Header.Get("Content-Disposition"))
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "posturecam_captures_total 1") {
			t.Error("metrics missing capture count")
		}
	})
}

func TestE2E_HistorySurvivesRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	dbPath := filepath.Join(t.TempDir(), store.DatabaseFile)

	s, err := store.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	th, _ := thresholds.Open(s)
	if _, err := th.Update(posture.ThresholdUpdate{Tilt: ptr(1.5)}); err != nil {
		t.Fatal(err)
	}
	snap := snapshot.NewController(snapshot.NewLog(s))
	for i := 0; i < 3; i++ {
		if _, err := snap.Capture(posture.Submission{ShoulderAngle: ptr(float64(i)), HipAngle: ptr(0), TiltAngle: ptr(0)}); err != nil {
			t.Fatal(err)
		}
	}
	s.Close()

	s, err = store.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	th, _ = thresholds.Open(s)
	if th.Get().Tilt != 1.5 {
		t.Errorf("tilt threshold = %v after restart, want 1.5", th.Get().Tilt)
	}
	history := snapshot.NewController(snapshot.NewLog(s)).History()
	if len(history) != 3 || history[0].ShoulderAngle != 2 {
		t.Errorf("history after restart = %+v", history)
	}
}

func ptr(v float64) *float64 { return &v }
