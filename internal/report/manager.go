package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrRendererNotFound is returned when a requested renderer cannot be found.
var ErrRendererNotFound = errors.New("renderer not found")

// ManifestFile is the manifest name looked for in each renderer directory.
const ManifestFile = "plugin.json"

// Manager discovers renderers under a directory.
type Manager struct {
	dir       string
	renderers map[string]*Renderer
	mu        sync.RWMutex
}

// NewManager creates a Manager for dir.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:       dir,
		renderers: make(map[string]*Renderer),
	}
}

// Discover scans each subdirectory of the renderer directory for a manifest. A missing
// directory yields no renderers; unreadable manifests are skipped.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.renderers = make(map[string]*Renderer)

	info, err := os.Stat(m.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(path, ManifestFile))
		if err != nil {
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			log.Warn().Err(err).Str("dir", path).Msg("skipping renderer with invalid manifest")
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			log.Warn().Str("dir", path).Msg("skipping renderer without name or executable")
			continue
		}

		m.renderers[manifest.Name] = &Renderer{
			Manifest:   manifest,
			Path:       path,
			Executable: filepath.Join(path, manifest.Executable),
		}
	}

	log.Info().Str("dir", m.dir).Int("renderers", len(m.renderers)).Msg("report renderers discovered")
	return nil
}

// Get returns a renderer by name. An empty name selects the first renderer by name.
func (m *Manager) Get(name string) (*Renderer, error) {
	if name == "" {
		list := m.List()
		if len(list) == 0 {
			return nil, ErrRendererNotFound
		}
		return list[0], nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.renderers[name]
	if !ok {
		return nil, ErrRendererNotFound
	}
	return r, nil
}

// List returns all discovered renderers sorted by name.
func (m *Manager) List() []*Renderer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Renderer, 0, len(m.renderers))
	for _, r := range m.renderers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Name < out[j].Manifest.Name })
	return out
}

// Dir returns the renderer directory.
func (m *Manager) Dir() string {
	return m.dir
}
