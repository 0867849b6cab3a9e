// talkback: real-time voice conversation client.
//
// Streams microphone audio to a voice service over a websocket and plays
// back the spoken responses. A session is started and stopped from the web
// dashboard, or by pressing Enter on the terminal.
//
// Usage:
//
//	talkback [-config talkback.yaml] [-endpoint ws://host:8000/ws] [-backend auto|portaudio|mock]
//	         [-dashboard :8090] [-log-level info] [-autostart]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-talkback/internal/config"
	"github.com/teslashibe/go-talkback/internal/log"
	"github.com/teslashibe/go-talkback/pkg/audioio"
	"github.com/teslashibe/go-talkback/pkg/capture"
	"github.com/teslashibe/go-talkback/pkg/metrics"
	"github.com/teslashibe/go-talkback/pkg/playback"
	"github.com/teslashibe/go-talkback/pkg/session"
	"github.com/teslashibe/go-talkback/pkg/transport"
	"github.com/teslashibe/go-talkback/pkg/web"
)

func main() {
	cfg, autostart, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}

	log.Init(cfg.Log.Level)
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, autostart); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("❌ Runtime error", "error", err)
		os.Exit(1)
	}
}

// parseFlags loads the config file and environment, then applies flags.
func parseFlags() (*config.Config, bool, error) {
	configPath := flag.String("config", "", "YAML config file")
	endpoint := flag.String("endpoint", "", "Voice service websocket URL (overrides TALKBACK_ENDPOINT)")
	backend := flag.String("backend", "", fmt.Sprintf("Capture backend: auto or one of %v", audioio.AvailableBackends()))
	device := flag.String("device", "", "Capture device name (default device if empty)")
	dashboard := flag.String("dashboard", "", "Dashboard listen address, \"off\" to disable")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	autostart := flag.Bool("autostart", false, "Start a session immediately")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, false, err
	}

	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *backend != "" {
		cfg.Audio.Backend = audioio.Backend(*backend)
	}
	if *device != "" {
		cfg.Audio.Device = *device
	}
	switch *dashboard {
	case "":
	case "off":
		cfg.Dashboard.Addr = ""
	default:
		cfg.Dashboard.Addr = *dashboard
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, *autostart, nil
}

func run(ctx context.Context, cfg *config.Config, autostart bool) error {
	logger := log.L()
	m := metrics.New()

	src, err := audioio.NewSource(cfg.Audio, logger)
	if err != nil {
		return fmt.Errorf("audio source: %w", err)
	}
	defer src.Close()

	engine := playback.NewEngine(
		playback.SpeakerOutput(cfg.Playback.SampleRate, cfg.Playback.Buffer),
		playback.WithLogger(logger),
		playback.WithMetrics(m),
	)

	notifier := session.Notifier(session.LogNotifier{Logger: logger})
	var dash *web.Server
	if cfg.Dashboard.Addr != "" {
		dash = web.NewServer(cfg.Dashboard.Addr, web.WithLogger(logger), web.WithMetrics(m))
		notifier = session.Notifiers(dash, notifier)
	}

	ctrl := session.NewController(cfg.Endpoint, session.Deps{
		Dial:     session.TransportDialer(transport.WithLogger(logger), transport.WithMetrics(m)),
		Mic:      session.CaptureFactory(src, capture.WithLogger(logger), capture.WithMetrics(m)),
		Player:   engine,
		Notifier: notifier,
	}, session.WithLogger(logger), session.WithMetrics(m))

	if dash != nil {
		dash.SetController(ctrl)
		dash.StartAsync(ctx)
	}

	errc := make(chan error, 1)
	go func() { errc <- ctrl.Run(ctx) }()

	logger.Info("🎙️  talkback ready",
		"endpoint", cfg.Endpoint,
		"backend", src.Name(),
		"dashboard", cfg.Dashboard.Addr)

	if autostart {
		if err := ctrl.Start(ctx); err != nil {
			return err
		}
	}
	go toggleOnEnter(ctx, ctrl)

	return <-errc
}

// toggleOnEnter starts or stops the session each time a line is read
// from stdin.
func toggleOnEnter(ctx context.Context, ctrl *session.Controller) {
	fmt.Println("Press Enter to start or stop talking.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var err error
		if ctrl.State().Active() {
			err = ctrl.Stop(ctx)
		} else {
			err = ctrl.Start(ctx)
		}
		if err != nil {
			log.Warn("toggle failed", "error", err)
			return
		}
	}
}
