package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrRenderFailed is returned when a renderer reports failure.
var ErrRenderFailed = errors.New("renderer failed")

// DefaultTimeout bounds one renderer run.
const DefaultTimeout = 30 * time.Second

// Executor runs renderers as subprocesses with a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor. A non-positive timeout selects DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Execute sends req to r as JSON on stdin and parses its stdout as a Response.
func (e *Executor) Execute(ctx context.Context, r *Renderer, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Executable)
	cmd.Dir = r.Path

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("renderer %s timed out after %s", r.Manifest.Name, e.timeout)
	}
	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("renderer %s: %w, stderr: %s", r.Manifest.Name, err, s)
		}
		return nil, fmt.Errorf("renderer %s: %w", r.Manifest.Name, err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("parse renderer response: %w, stdout: %s", err, stdout.String())
	}
	return &resp, nil
}

// Render runs r and returns the document, turning an unsuccessful response into
// ErrRenderFailed.
func (e *Executor) Render(ctx context.Context, r *Renderer, req *Request, now time.Time) (*Document, error) {
	resp, err := e.Execute(ctx, r, req)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s: %s", ErrRenderFailed, r.Manifest.Name, resp.Error)
	}

	ext := r.Manifest.Extension
	if ext == "" {
		ext = "bin"
	}
	ct := r.Manifest.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Document{
		Data:        resp.Document,
		ContentType: ct,
		Filename:    fmt.Sprintf("scoliosis_analysis_%s.%s", now.Format("20060102_150405"), ext),
	}, nil
}
