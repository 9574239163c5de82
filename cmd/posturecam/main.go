package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/app"
	"github.com/ayusman/posturecam/internal/capture"
	"github.com/ayusman/posturecam/internal/config"
	"github.com/ayusman/posturecam/internal/detector"
	"github.com/ayusman/posturecam/internal/emitter"
	"github.com/ayusman/posturecam/internal/metrics"
	"github.com/ayusman/posturecam/internal/posture"
	"github.com/ayusman/posturecam/internal/report"
	"github.com/ayusman/posturecam/internal/server"
	"github.com/ayusman/posturecam/internal/snapshot"
	"github.com/ayusman/posturecam/internal/store"
	"github.com/ayusman/posturecam/internal/thresholds"
	"github.com/ayusman/posturecam/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	host := flag.String("host", "", "listen host (overrides config)")
	port := flag.Int("port", 0, "listen port (overrides config)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "posturecam: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "posturecam: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Log)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("posturecam failed")
	}
}

func setupLogging(c config.LogConfig) {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	}
}

// backends opens the configured persistence. The returned closer releases it.
func backends(cfg *config.Config) (store.ThresholdBackend, store.MeasurementBackend, func(), error) {
	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	if cfg.Storage.Backend == config.BackendSQLite {
		st, err := store.New(cfg.DataPath(store.DatabaseFile))
		if err != nil {
			return nil, nil, nil, err
		}
		return st, st, func() { st.Close() }, nil
	}
	return store.NewJSONThresholds(cfg.DataPath(store.ThresholdsFile)),
		store.NewJSONMeasurements(cfg.DataPath(store.MeasurementsFile)),
		func() {}, nil
}

func run(cfg *config.Config) error {
	log.Info().Str("storage", cfg.Storage.Backend).Str("dir", cfg.Storage.Dir).Msg("starting posturecam")

	tb, mb, closeStore, err := backends(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	th, err := thresholds.Open(tb)
	if err != nil {
		return err
	}

	m := metrics.New()
	snap := snapshot.NewController(snapshot.NewLog(mb))
	snap.OnCapture(func(posture.Record) { m.Captures.Add(1) })
	snap.OnFailure(func(error) { m.CaptureFailures.Add(1) })

	det, err := detector.NewMediaPipeDetector(detector.Config{
		Script:          cfg.Detector.Script,
		Python:          cfg.Detector.Python,
		MinConfidence:   cfg.Detector.MinConfidence,
		MinTrackingConf: cfg.Detector.MinConfidence,
		IdleTimeout:     cfg.Detector.IdleTimeout,
	})
	var poseDetector detector.Detector
	if err != nil {
		log.Warn().Err(err).Msg("pose detection disabled")
	} else {
		poseDetector = det
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	live := server.NewLiveHub(&m.LiveWebClients)
	emitters := emitter.Multi{live}

	var mq *emitter.MQTT
	if cfg.MQTT.Enabled {
		mq = emitter.NewMQTT(emitter.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		})
		if err := mq.Connect(ctx); err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("mqtt unavailable, relay will retry in background")
		}
		defer mq.Disconnect()
		emitters = append(emitters, mq)
	}

	var tr *tray.Tray
	if cfg.Tray.Enabled {
		tr = tray.New()
		emitters = append(emitters, tr)
	}

	kind, _ := capture.ParseKind(cfg.Camera.Kind)
	pipeline := app.New(app.Config{
		Manager: capture.NewManager(capture.ManagerConfig{
			Retries:    cfg.Camera.Retries,
			RetryDelay: cfg.Camera.RetryDelay,
			MaxProbe:   cfg.Camera.MaxProbe,
			FPS:        cfg.Camera.FPS,
		}),
		Detector:          poseDetector,
		Thresholds:        th,
		Emitter:           emitters,
		Metrics:           m,
		Kind:              kind,
		Index:             cfg.Camera.Index,
		EmitInterval:      cfg.Pipeline.EmitInterval,
		FrameYield:        cfg.Pipeline.FrameYield,
		JPEGQuality:       cfg.Pipeline.JPEGQuality,
		MotionThreshold:   cfg.Pipeline.MotionThreshold,
		TiltRefreshFrames: cfg.Pipeline.TiltRefreshFrames,
	})
	if err := pipeline.Start(ctx); err != nil {
		return err
	}
	defer pipeline.Stop()

	reports := report.NewManager(cfg.Report.PluginDir)
	if err := reports.Discover(); err != nil {
		log.Warn().Err(err).Str("dir", cfg.Report.PluginDir).Msg("report renderer discovery failed")
	}

	srv := server.New(server.Config{
		Addr:        cfg.ServerAddress(),
		ReadTimeout: cfg.Server.ReadTimeout,
		StaticDir:   staticDir(cfg.Server.StaticDir),
		App:         pipeline,
		Thresholds:  th,
		Snapshot:    snap,
		Reports:     reports,
		Executor:    report.NewExecutor(cfg.Report.Timeout),
		Live:        live,
		Metrics:     m,
	})

	if tr == nil {
		return srv.Start(ctx)
	}

	// The tray owns the main thread; the server runs beside it and either side ends both.
	dashboard := "http://" + cfg.ServerAddress()
	tr.OnCapture(func() error {
		latest := pipeline.LatestMeasurement()
		if latest == nil {
			return fmt.Errorf("no live measurement")
		}
		_, err := snap.CaptureMeasurement(*latest)
		return err
	})
	tr.OnDashboard(func() {
		if err := openBrowser(dashboard); err != nil {
			log.Warn().Err(err).Msg("could not open browser")
		}
	})
	tr.OnQuit(stop)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
		tr.Quit()
	}()
	tr.Run()
	stop()
	return <-errCh
}

// staticDir returns dir, or the first web directory found near the binary or in the data dir.
func staticDir(dir string) string {
	if dir != "" {
		return dir
	}
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
