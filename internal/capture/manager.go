package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/ayusman/posturecam/internal/posture"
)

// ErrDeviceUnavailable is returned when acquisition exhausted its retries. The manager is
// Degraded afterwards and keeps serving synthetic frames.
var ErrDeviceUnavailable = errors.New("device unavailable")

// ErrUnknownKind is returned for a source kind outside the supported set.
var ErrUnknownKind = errors.New("unknown source kind")

// ErrNotRaspberryPi is returned when the raspberry_pi source is requested on other hardware.
var ErrNotRaspberryPi = errors.New("raspberry pi camera not present")

// Kind is a video source kind.
type Kind string

const (
	KindPC          Kind = "pc_camera"
	KindUSB         Kind = "usb_camera"
	KindRaspberryPi Kind = "raspberry_pi"
)

// Kinds lists the supported source kinds.
var Kinds = []Kind{KindPC, KindUSB, KindRaspberryPi}

// ParseKind validates s as a source kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Enumerable reports whether the kind supports index and resolution scanning.
func (k Kind) Enumerable() bool {
	return k == KindUSB
}

// State is the device manager state.
type State string

const (
	StateClosed   State = "closed"
	StateLive     State = "live"
	StateDegraded State = "degraded"
)

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CandidateResolutions are tried in order when scanning an enumerable source.
var CandidateResolutions = []Resolution{{640, 480}, {1280, 720}, {800, 600}}

// Status is a point-in-time view of the manager, safe to read from any goroutine.
type Status struct {
	Kind       Kind       `json:"kind"`
	Index      int        `json:"index"`
	State      State      `json:"state"`
	Resolution Resolution `json:"resolution"`
	LastError  string     `json:"last_error,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Opener builds an unopened camera for a source kind and device index.
type Opener func(kind Kind, index int) Camera

// DefaultOpener opens real devices through gocv. Raspberry Pi cameras use the V4L2 backend.
func DefaultOpener(kind Kind, index int) Camera {
	if kind == KindRaspberryPi {
		return NewCameraWithAPI(index, gocv.VideoCaptureV4L2)
	}
	return NewCamera(index)
}

// ManagerConfig configures a Manager. Zero values select defaults.
type ManagerConfig struct {
	Retries     int
	RetryDelay  time.Duration
	MaxProbe    int
	FPS         int
	Opener      Opener
	PiAvailable func() bool
}

// Defaults for ManagerConfig.
const (
	DefaultRetries    = 3
	DefaultRetryDelay = 2 * time.Second
	DefaultMaxProbe   = 4
)

// Frame is one raw frame from the manager. The caller must Close it.
type Frame struct {
	Mat gocv.Mat
	// Live is false for synthetic frames.
	Live bool
	// Synthetic carries the generated reading when Live is false.
	Synthetic *posture.Measurement
	Timestamp time.Time
}

// Close releases the frame's pixels.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Manager owns the single device handle. Acquire, NextFrame, Release and ListAvailable must be
// called from one goroutine; Status may be called from anywhere.
type Manager struct {
	cfg    ManagerConfig
	cam    Camera
	kind   Kind
	index  int
	res    Resolution
	state  State
	synth  *Synthetic
	status atomic.Pointer[Status]
}

// NewManager creates a Manager in the Closed state.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.MaxProbe <= 0 {
		cfg.MaxProbe = DefaultMaxProbe
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.Opener == nil {
		cfg.Opener = DefaultOpener
	}
	if cfg.PiAvailable == nil {
		cfg.PiAvailable = IsRaspberryPi
	}

	m := &Manager{
		cfg:   cfg,
		kind:  KindPC,
		state: StateClosed,
		synth: NewSynthetic(DefaultWidth, DefaultHeight),
	}
	m.publish(nil)
	return m
}

// Status returns the latest published status.
func (m *Manager) Status() Status {
	return *m.status.Load()
}

// State returns the current state.
func (m *Manager) State() State {
	return m.state
}

func (m *Manager) publish(err error) {
	st := &Status{
		Kind:       m.kind,
		Index:      m.index,
		State:      m.state,
		Resolution: m.res,
		UpdatedAt:  time.Now(),
	}
	if err != nil {
		st.LastError = err.Error()
	}
	m.status.Store(st)
}

// Acquire releases any current handle and opens kind. When index is non-nil it is tried first;
// enumerable kinds then scan the remaining indices and candidate resolutions. Each full pass is
// retried up to the configured bound with a fixed delay. On exhaustion the manager is Degraded
// and the returned error wraps ErrDeviceUnavailable.
func (m *Manager) Acquire(ctx context.Context, kind Kind, index *int) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}

	m.Release()
	m.kind = kind
	m.synth.SetLabel(string(kind))
	if index != nil {
		m.index = *index
	}

	var lastErr error
	for attempt := 1; attempt <= m.cfg.Retries; attempt++ {
		cam, idx, res, err := m.open(kind, index)
		if err == nil {
			m.cam = cam
			m.index = idx
			m.res = res
			m.state = StateLive
			m.publish(nil)
			log.Info().Str("kind", string(kind)).Int("index", idx).
				Int("width", res.Width).Int("height", res.Height).Msg("camera acquired")
			return nil
		}

		lastErr = err
		log.Warn().Err(err).Str("kind", string(kind)).Int("attempt", attempt).
			Int("max_attempts", m.cfg.Retries).Msg("camera acquisition failed")

		if attempt == m.cfg.Retries {
			break
		}
		if err := sleepCtx(ctx, m.cfg.RetryDelay); err != nil {
			lastErr = err
			break
		}
	}

	m.state = StateDegraded
	err := fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, kind, lastErr)
	m.publish(err)
	log.Warn().Str("kind", string(kind)).Msg("no usable camera, serving synthetic frames")
	return err
}

// Switch is Acquire under another name: release the current source, then open the new one.
func (m *Manager) Switch(ctx context.Context, kind Kind, index *int) error {
	return m.Acquire(ctx, kind, index)
}

func (m *Manager) candidates(kind Kind, index *int) []int {
	var out []int
	if index != nil {
		out = append(out, *index)
	}
	if kind.Enumerable() {
		for i := 0; i < m.cfg.MaxProbe; i++ {
			if index != nil && i == *index {
				continue
			}
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		out = append(out, 0)
	}
	return out
}

// open tries every candidate index once and returns the first camera that yields a frame.
func (m *Manager) open(kind Kind, index *int) (Camera, int, Resolution, error) {
	if kind == KindRaspberryPi && !m.cfg.PiAvailable() {
		return nil, 0, Resolution{}, ErrNotRaspberryPi
	}

	resolutions := []Resolution{{DefaultWidth, DefaultHeight}}
	if kind.Enumerable() {
		resolutions = CandidateResolutions
	}

	var lastErr error
	for _, idx := range m.candidates(kind, index) {
		cam := m.cfg.Opener(kind, idx)
		cam.SetFPS(m.cfg.FPS)
		cam.SetResolution(resolutions[0].Width, resolutions[0].Height)
		if err := cam.Open(); err != nil {
			lastErr = fmt.Errorf("open index %d: %w", idx, err)
			continue
		}

		for _, res := range resolutions {
			cam.SetResolution(res.Width, res.Height)
			frame, err := cam.ReadFrame()
			if err != nil {
				lastErr = fmt.Errorf("index %d at %dx%d: %w", idx, res.Width, res.Height, err)
				continue
			}
			got := Resolution{Width: frame.Cols(), Height: frame.Rows()}
			frame.Close()
			return cam, idx, got, nil
		}

		if err := cam.Close(); err != nil {
			log.Debug().Err(err).Int("index", idx).Msg("close after failed probe")
		}
	}
	if lastErr == nil {
		lastErr = ErrCameraNotOpen
	}
	return nil, 0, Resolution{}, lastErr
}

// NextFrame returns the next frame. It never fails: when no device is live, or the device
// stops delivering, a synthetic frame is returned instead.
func (m *Manager) NextFrame() Frame {
	if m.state == StateLive && m.cam != nil {
		mat, err := m.cam.ReadFrame()
		if err == nil {
			return Frame{Mat: *mat, Live: true, Timestamp: time.Now()}
		}

		log.Warn().Err(err).Str("kind", string(m.kind)).Int("index", m.index).
			Msg("camera read failed, switching to synthetic frames")
		m.closeHandle()
		m.state = StateDegraded
		m.publish(fmt.Errorf("%w: %v", ErrDeviceUnavailable, err))
	}
	return m.Synthetic()
}

// Synthetic returns a synthetic frame without touching the device.
func (m *Manager) Synthetic() Frame {
	mat, reading := m.synth.Next()
	return Frame{Mat: mat, Synthetic: &reading, Timestamp: time.Now()}
}

// Release closes the device handle. It is idempotent and always drops the handle, even when
// closing fails.
func (m *Manager) Release() {
	m.closeHandle()
	if m.state == StateLive {
		m.state = StateClosed
	}
	m.publish(nil)
}

func (m *Manager) closeHandle() {
	if m.cam == nil {
		return
	}
	cam := m.cam
	m.cam = nil
	if err := cam.Close(); err != nil {
		log.Warn().Err(err).Str("kind", string(m.kind)).Msg("camera close failed")
	}
}

// ListAvailable probes indices [0, maxProbe) and returns those that open and deliver a frame.
// The index currently held live is reported without reopening it.
func (m *Manager) ListAvailable(maxProbe int) []int {
	if maxProbe <= 0 {
		maxProbe = m.cfg.MaxProbe
	}

	available := []int{}
	for i := 0; i < maxProbe; i++ {
		if m.state == StateLive && m.cam != nil && i == m.index {
			available = append(available, i)
			continue
		}
		if m.probe(i) {
			available = append(available, i)
		}
	}
	return available
}

func (m *Manager) probe(index int) bool {
	cam := m.cfg.Opener(KindUSB, index)
	if err := cam.Open(); err != nil {
		return false
	}
	defer func() {
		if err := cam.Close(); err != nil {
			log.Debug().Err(err).Int("index", index).Msg("close after probe")
		}
	}()

	frame, err := cam.ReadFrame()
	if err != nil {
		return false
	}
	frame.Close()
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
