// Package config loads posturecam settings from defaults, an optional YAML file and the
// environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/posturecam/internal/capture"
)

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Camera   CameraConfig   `yaml:"camera"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Detector DetectorConfig `yaml:"detector"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Report   ReportConfig   `yaml:"report"`
	Log      LogConfig      `yaml:"log"`
	Tray     TrayConfig     `yaml:"tray"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	StaticDir   string        `yaml:"static_dir"`
}

// StorageConfig selects where thresholds and history are kept.
type StorageConfig struct {
	Backend string `yaml:"backend"` // json or sqlite
	Dir     string `yaml:"dir"`
}

// CameraConfig configures the device manager.
type CameraConfig struct {
	Kind       string        `yaml:"kind"`
	Index      *int          `yaml:"index"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	MaxProbe   int           `yaml:"max_probe"`
	FPS        int           `yaml:"fps"`
}

// PipelineConfig tunes the frame pipeline.
type PipelineConfig struct {
	EmitInterval      time.Duration `yaml:"emit_interval"`
	FrameYield        time.Duration `yaml:"frame_yield"`
	JPEGQuality       int           `yaml:"jpeg_quality"`
	MotionThreshold   float64       `yaml:"motion_threshold"`
	TiltRefreshFrames int           `yaml:"tilt_refresh_frames"`
}

// DetectorConfig configures the pose detection subprocess. An empty script is searched for in
// the usual locations.
type DetectorConfig struct {
	Script        string        `yaml:"script"`
	Python        string        `yaml:"python"`
	MinConfidence float64       `yaml:"min_confidence"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

// MQTTConfig configures the optional broker relay.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// ReportConfig configures report renderers.
type ReportConfig struct {
	PluginDir string        `yaml:"plugin_dir"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// TrayConfig toggles the menu-bar icon.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := "."
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".posturecam")
	}
	return &Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        5000,
			ReadTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{Backend: BackendJSON, Dir: dataDir},
		Camera: CameraConfig{
			Kind:       string(capture.KindPC),
			Retries:    capture.DefaultRetries,
			RetryDelay: capture.DefaultRetryDelay,
			MaxProbe:   capture.DefaultMaxProbe,
			FPS:        capture.DefaultFPS,
		},
		Pipeline: PipelineConfig{
			EmitInterval:      33 * time.Millisecond,
			FrameYield:        10 * time.Millisecond,
			JPEGQuality:       90,
			MotionThreshold:   1.0,
			TiltRefreshFrames: 30,
		},
		Detector: DetectorConfig{
			MinConfidence: 0.5,
			IdleTimeout:   30 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "posturecam",
			Topic:    "posturecam/measurements",
		},
		Report: ReportConfig{
			PluginDir: filepath.Join(dataDir, "plugins"),
			Timeout:   30 * time.Second,
		},
		Log: LogConfig{Level: "info", Pretty: true},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped when path is
// empty) and POSTURECAM_* environment variables, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, set func(int)) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		set(n)
		return nil
	}

	str("POSTURECAM_HOST", &c.Server.Host)
	str("POSTURECAM_DATA_DIR", &c.Storage.Dir)
	str("POSTURECAM_STORAGE", &c.Storage.Backend)
	str("POSTURECAM_CAMERA", &c.Camera.Kind)
	str("POSTURECAM_LOG_LEVEL", &c.Log.Level)
	if v, ok := lookup("POSTURECAM_MQTT_BROKER"); ok && v != "" {
		c.MQTT.Broker = v
		c.MQTT.Enabled = true
	}

	return errors.Join(
		num("POSTURECAM_PORT", func(n int) { c.Server.Port = n }),
		num("POSTURECAM_CAMERA_INDEX", func(n int) { c.Camera.Index = &n }),
	)
}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Server.Port))
	}
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend: %q", c.Storage.Backend))
	}
	if c.Storage.Dir == "" {
		errs = append(errs, errors.New("storage dir is required"))
	}
	if _, err := capture.ParseKind(c.Camera.Kind); err != nil {
		errs = append(errs, err)
	}
	if c.Camera.Index != nil && *c.Camera.Index < 0 {
		errs = append(errs, fmt.Errorf("invalid camera index: %d", *c.Camera.Index))
	}
	if q := c.Pipeline.JPEGQuality; q < 1 || q > 100 {
		errs = append(errs, fmt.Errorf("jpeg quality must be 1-100, got %d", q))
	}
	if c.Pipeline.EmitInterval < 0 || c.Pipeline.FrameYield < 0 {
		errs = append(errs, errors.New("pipeline intervals must not be negative"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt broker is required when mqtt is enabled"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("invalid mqtt qos: %d", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}

// ServerAddress returns the listen address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DataPath joins name onto the storage dir.
func (c *Config) DataPath(name string) string {
	return filepath.Join(c.Storage.Dir, name)
}
