// Package tray provides the menu-bar interface for posturecam.
package tray

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/posturecam/internal/emitter"
	"github.com/ayusman/posturecam/internal/posture"
)

// Tray is the menu-bar application. It is also an emitter.Emitter that mirrors the live
// posture status into the menu.
type Tray struct {
	onCapture   func() error
	onDashboard func()
	onQuit      func()
	status      string
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuStatus  *systray.MenuItem
	menuCapture *systray.MenuItem
	menuLast    *systray.MenuItem
}

// New creates a Tray with no reading yet.
func New() *Tray {
	return &Tray{status: statusNone}
}

// OnCapture sets the callback run when "Capture snapshot" is clicked.
func (t *Tray) OnCapture(fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCapture = fn
}

// OnDashboard sets the callback run when "Open dashboard" is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Posture")
	systray.SetTooltip("posturecam posture monitor")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Current posture")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	t.menuCapture = systray.AddMenuItem("Capture snapshot", "Save the current measurement to history")
	t.menuLast = systray.AddMenuItem("Last capture: none", "Most recent snapshot")
	t.menuLast.Disable()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit posturecam")

	go func() {
		for {
			select {
			case <-t.menuCapture.ClickedCh:
				t.handleCapture()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleCapture() {
	t.mu.RLock()
	callback := t.onCapture
	t.mu.RUnlock()
	if callback == nil {
		return
	}

	title := "Last capture: " + time.Now().Format("15:04:05")
	if err := callback(); err != nil {
		title = "Last capture: failed"
	}
	if t.menuLast != nil {
		t.menuLast.SetTitle(title)
	}
}

func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Emit updates the status line from r. The menu is only touched when the text changes.
func (t *Tray) Emit(_ context.Context, r emitter.Reading) error {
	text := StatusText(r)

	t.mu.Lock()
	defer t.mu.Unlock()
	if text == t.status {
		return nil
	}
	t.status = text
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(text)
	}
	return nil
}

// Status returns the current status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

const statusNone = "Posture: no reading"

// StatusText summarises a reading for the menu, naming every axis out of tolerance.
func StatusText(r emitter.Reading) string {
	if r.OK {
		return "Posture: good"
	}
	var axes []string
	c := r.Classification
	if c.Shoulder == posture.StatusExceeds {
		axes = append(axes, "shoulders")
	}
	if c.Hip == posture.StatusExceeds {
		axes = append(axes, "hips")
	}
	if c.Tilt == posture.StatusExceeds {
		axes = append(axes, "camera tilt")
	}
	if len(axes) == 0 {
		return statusNone
	}
	return "Posture: check " + strings.Join(axes, ", ")
}
