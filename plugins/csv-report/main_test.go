package main

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	req := &Request{
		Title:       "Scoliosis Analysis Report",
		GeneratedAt: "2024-05-02 10:00:00",
		Thresholds:  Thresholds{Shoulder: 5, Hip: 5, Tilt: 2},
		Latest:      []Item{{Label: "Shoulder Angle", Value: 7, Threshold: 5, Grade: "warning"}},
		History:     []Row{{Time: "2024-05-02 09:59:00", Status: "Needs Attention", Shoulder: 7, Hip: 11, Tilt: 1}},
	}

	doc, err := render(req)
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	out := string(doc)
	for _, want := range []string{
		"Scoliosis Analysis Report\n",
		"Shoulder,5.00\n",
		"Shoulder Angle,7.00,5.00,warning\n",
		"2024-05-02 09:59:00,Needs Attention,7.00,11.00,1.00\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_NoLatest(t *testing.T) {
	doc, err := render(&Request{Title: "r"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(doc), "Latest") {
		t.Error("latest section should be omitted when empty")
	}
}
