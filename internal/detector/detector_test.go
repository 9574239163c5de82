package detector

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestPoseLandmarks_Scale(t *testing.T) {
	pose := &PoseLandmarks{
		Points: []Point3D{{X: 0.5, Y: 0.25, Z: -0.1}, {X: 1, Y: 1, Z: 0}},
		Score:  0.8,
	}

	scaled := pose.Scale(640, 480)

	want := []Point3D{{X: 320, Y: 120, Z: -64}, {X: 640, Y: 480, Z: 0}}
	for i, p := range scaled.Points {
		if math.Abs(p.X-want[i].X) > epsilon || math.Abs(p.Y-want[i].Y) > epsilon || math.Abs(p.Z-want[i].Z) > epsilon {
			t.Errorf("point %d = %+v, want %+v", i, p, want[i])
		}
	}
	if scaled.Score != pose.Score {
		t.Errorf("score = %v, want %v", scaled.Score, pose.Score)
	}
	if pose.Points[0].X != 0.5 {
		t.Error("Scale must not modify the receiver")
	}

	var nilPose *PoseLandmarks
	if nilPose.Scale(10, 10) != nil {
		t.Error("Scale on nil should return nil")
	}
}

func TestPoseLandmarks_Points2D(t *testing.T) {
	pts := LevelPose().Points2D()
	if len(pts) != NumLandmarks {
		t.Fatalf("len = %d, want %d", len(pts), NumLandmarks)
	}
	if pts[LeftShoulder].Y != pts[RightShoulder].Y {
		t.Error("level pose shoulders should share a y coordinate")
	}
}

func TestMockDetector(t *testing.T) {
	m := NewMockDetector()

	got, err := m.Detect(nil)
	if err != nil || got != nil {
		t.Fatalf("Detect() = %v, %v; want nil, nil", got, err)
	}

	m.SetPose(RaisedShoulderPose())
	got, err = m.Detect(nil)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got == nil || len(got.Points) != NumLandmarks {
		t.Fatal("expected a full landmark set")
	}
	got.Points[0].X = 99
	again, _ := m.Detect(nil)
	if again.Points[0].X == 99 {
		t.Error("Detect should return a copy")
	}

	want := errors.New("boom")
	m.SetError(want)
	if _, err := m.Detect(nil); !errors.Is(err, want) {
		t.Errorf("Detect() error = %v, want %v", err, want)
	}
	if m.Calls() != 4 {
		t.Errorf("Calls() = %d, want 4", m.Calls())
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantNil bool
		wantErr bool
	}{
		{"no body", `{"pose": null}` + "\n", true, false},
		{"empty points", `{"pose": {"points": [], "score": 0}}`, true, false},
		{"one body", `{"pose": {"points": [{"x":0.1,"y":0.2,"z":0}], "score": 0.7}}`, false, false},
		{"service error", `{"error": "model failed"}`, true, true},
		{"garbage", `not json`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantNil {
				t.Errorf("parseResponse() = %v, wantNil %v", got, tt.wantNil)
			}
		})
	}
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Script = "/nonexistent/pose_service.py"

	if _, err := NewMediaPipeDetector(cfg); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("NewMediaPipeDetector() error = %v, want ErrScriptNotFound", err)
	}
}
