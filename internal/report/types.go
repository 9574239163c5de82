// Package report builds posture reports and hands them to external renderer executables.
package report

// Manifest describes a renderer and the document it produces.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`
	ContentType string `json:"contentType"`
	Extension   string `json:"extension"`
}

// Request is the document model sent to a renderer on stdin.
type Request struct {
	Title       string     `json:"title"`
	GeneratedAt string     `json:"generated_at"`
	Thresholds  Thresholds `json:"thresholds"`
	Latest      []Item     `json:"latest,omitempty"`
	History     []Row      `json:"history"`
}

// Thresholds echoes the tolerances the report was graded against.
type Thresholds struct {
	Shoulder float64 `json:"shoulder"`
	Hip      float64 `json:"hip"`
	Tilt     float64 `json:"tilt"`
}

// Item is one graded value of the latest measurement.
type Item struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Grade     string  `json:"grade"`
}

// Row is one history entry.
type Row struct {
	Time     string  `json:"time"`
	Status   string  `json:"status"`
	Shoulder float64 `json:"shoulder"`
	Hip      float64 `json:"hip"`
	Tilt     float64 `json:"tilt"`
}

// Response is what a renderer writes to stdout. Document is base64 in JSON.
type Response struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Document []byte `json:"document,omitempty"`
}

// Renderer is a discovered renderer with its manifest and location.
type Renderer struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Document is a rendered report ready to be served.
type Document struct {
	Data        []byte
	ContentType string
	Filename    string
}
