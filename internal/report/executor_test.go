package report

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, name, body string) *Renderer {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return &Renderer{
		Manifest:   Manifest{Name: name, Executable: name, ContentType: "text/plain", Extension: "txt"},
		Path:       dir,
		Executable: path,
	}
}

func TestExecutor_Execute(t *testing.T) {
	doc := base64.StdEncoding.EncodeToString([]byte("hello report"))
	r := writeScript(t, "ok.sh", "echo '{\"success\":true,\"document\":\""+doc+"\"}'\n")

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), r, &Request{Title: Title})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success || string(resp.Document) != "hello report" {
		t.Errorf("Execute() = %+v", resp)
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	r := writeScript(t, "echo.sh", `INPUT=$(cat)
case "$INPUT" in
  *'"title":"Scoliosis Analysis Report"'*) echo '{"success":true}' ;;
  *) echo '{"success":false,"error":"title missing"}' ;;
esac
`)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), r, &Request{Title: Title})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success {
		t.Errorf("renderer did not see the request on stdin: %s", resp.Error)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	r := writeScript(t, "slow.sh", "sleep 10\n")

	start := time.Now()
	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), r, &Request{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %v, want timeout", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not stop the renderer")
	}
}

func TestExecutor_InvalidJSON(t *testing.T) {
	r := writeScript(t, "junk.sh", "echo 'not json'\n")
	if _, err := NewExecutor(5*time.Second).Execute(context.Background(), r, &Request{}); err == nil {
		t.Error("expected parse error")
	}
}

func TestExecutor_NonZeroExit(t *testing.T) {
	r := writeScript(t, "crash.sh", "echo 'boom' >&2\nexit 1\n")
	_, err := NewExecutor(5*time.Second).Execute(context.Background(), r, &Request{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("error = %v, want stderr included", err)
	}
}

func TestExecutor_Render(t *testing.T) {
	doc := base64.StdEncoding.EncodeToString([]byte("a,b\n"))
	r := writeScript(t, "csv.sh", "echo '{\"success\":true,\"document\":\""+doc+"\"}'\n")

	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	got, err := NewExecutor(5*time.Second).Render(context.Background(), r, &Request{}, now)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if string(got.Data) != "a,b\n" || got.ContentType != "text/plain" {
		t.Errorf("Render() = %+v", got)
	}
	if got.Filename != "scoliosis_analysis_20240301_093000.txt" {
		t.Errorf("Filename = %q", got.Filename)
	}
}

func TestExecutor_RenderFailure(t *testing.T) {
	r := writeScript(t, "fail.sh", "echo '{\"success\":false,\"error\":\"no fonts\"}'\n")
	_, err := NewExecutor(5*time.Second).Render(context.Background(), r, &Request{}, time.Now())
	if !errors.Is(err, ErrRenderFailed) {
		t.Errorf("Render() error = %v, want ErrRenderFailed", err)
	}
}

func TestNewExecutor_DefaultTimeout(t *testing.T) {
	if got := NewExecutor(0).timeout; got != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", got, DefaultTimeout)
	}
}
