package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root, dir string, m Manifest) {
	t.Helper()
	path := filepath.Join(root, dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(m)
	if err := os.WriteFile(filepath.Join(path, ManifestFile), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "pdf", Manifest{Name: "pdf-report", Version: "1.0.0", Executable: "pdf-report", ContentType: "application/pdf", Extension: "pdf"})
	writeManifest(t, root, "csv", Manifest{Name: "csv-report", Version: "1.0.0", Executable: "csv-report"})
	writeManifest(t, root, "nameless", Manifest{Executable: "x"})
	os.MkdirAll(filepath.Join(root, "broken"), 0o755)
	os.WriteFile(filepath.Join(root, "broken", ManifestFile), []byte("{"), 0o644)
	os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644)

	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(list))
	}
	if list[0].Manifest.Name != "csv-report" || list[1].Manifest.Name != "pdf-report" {
		t.Errorf("List() not sorted: %s, %s", list[0].Manifest.Name, list[1].Manifest.Name)
	}
	if want := filepath.Join(root, "pdf", "pdf-report"); list[1].Executable != want {
		t.Errorf("Executable = %q, want %q", list[1].Executable, want)
	}
}

func TestManager_Get(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "b", Manifest{Name: "b-report", Executable: "b"})
	writeManifest(t, root, "a", Manifest{Name: "a-report", Executable: "a"})

	m := NewManager(root)
	m.Discover()

	r, err := m.Get("b-report")
	if err != nil || r.Manifest.Name != "b-report" {
		t.Errorf("Get(b-report) = %v, %v", r, err)
	}
	r, err = m.Get("")
	if err != nil || r.Manifest.Name != "a-report" {
		t.Errorf("Get(\"\") = %v, %v; want the first by name", r, err)
	}
	if _, err := m.Get("docx"); !errors.Is(err, ErrRendererNotFound) {
		t.Errorf("Get(docx) error = %v, want ErrRendererNotFound", err)
	}
}

func TestManager_EmptyAndMissingDir(t *testing.T) {
	for _, dir := range []string{t.TempDir(), filepath.Join(t.TempDir(), "absent")} {
		m := NewManager(dir)
		if err := m.Discover(); err != nil {
			t.Errorf("Discover(%s) error = %v", dir, err)
		}
		if _, err := m.Get(""); !errors.Is(err, ErrRendererNotFound) {
			t.Errorf("Get(\"\") error = %v, want ErrRendererNotFound", err)
		}
		if m.Dir() != dir {
			t.Errorf("Dir() = %q", m.Dir())
		}
	}
}
