// Package main provides a report renderer that writes the posture report as CSV.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Request represents the report document from the renderer executor.
type Request struct {
	Title       string     `json:"title"`
	GeneratedAt string     `json:"generated_at"`
	Thresholds  Thresholds `json:"thresholds"`
	Latest      []Item     `json:"latest"`
	History     []Row      `json:"history"`
}

// Thresholds are the tolerances the report was graded against.
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

// Response represents the output to the renderer executor.
type Response struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Document []byte `json:"document,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	doc, err := render(&req)
	if err != nil {
		writeResponse(Response{Error: fmt.Sprintf("render failed: %v", err)})
		return
	}
	writeResponse(Response{Success: true, Document: doc})
}

// render lays the report out as sections separated by blank records.
func render(req *Request) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{
		{req.Title},
		{"Generated", req.GeneratedAt},
		{},
		{"Axis", "Threshold"},
		{"Shoulder", num(req.Thresholds.Shoulder)},
		{"Hip", num(req.Thresholds.Hip)},
		{"Tilt", num(req.Thresholds.Tilt)},
	}

	if len(req.Latest) > 0 {
		records = append(records, []string{}, []string{"Latest", "Value", "Threshold", "Grade"})
		for _, it := range req.Latest {
			records = append(records, []string{it.Label, num(it.Value), num(it.Threshold), it.Grade})
		}
	}

	records = append(records, []string{}, []string{"Time", "Status", "Shoulder", "Hip", "Tilt"})
	for _, r := range req.History {
		records = append(records, []string{r.Time, r.Status, num(r.Shoulder), num(r.Hip), num(r.Tilt)})
	}

	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
