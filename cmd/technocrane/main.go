// Command technocrane runs a virtual crane rig: it solves the crane against
// a live telemetry stream, or a scripted orbit when no stream is set, and
// serves the monitor API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/golang/geo/r3"

	"github.com/teslashibe/go-technocrane/internal/config"
	"github.com/teslashibe/go-technocrane/internal/log"
	"github.com/teslashibe/go-technocrane/pkg/hub"
	"github.com/teslashibe/go-technocrane/pkg/kinematics"
	"github.com/teslashibe/go-technocrane/pkg/metrics"
	"github.com/teslashibe/go-technocrane/pkg/monitor"
	"github.com/teslashibe/go-technocrane/pkg/motion"
	"github.com/teslashibe/go-technocrane/pkg/preset"
	"github.com/teslashibe/go-technocrane/pkg/protocol"
	"github.com/teslashibe/go-technocrane/pkg/recorder"
	"github.com/teslashibe/go-technocrane/pkg/rig"
	"github.com/teslashibe/go-technocrane/pkg/target"
	"github.com/teslashibe/go-technocrane/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Config file (default ./technocrane.{json,yaml})")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if err := run(*configPath, *debug); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "technocrane: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)

	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}

	presets := preset.NewTable()
	if cfg.PresetsFile != "" {
		if err := presets.LoadFile(cfg.PresetsFile); err != nil {
			return err
		}
	}

	strategy, err := kinematics.ParseStrategy(cfg.Strategy)
	if err != nil {
		return err
	}
	rate, err := telemetry.ParseFrameRate(cfg.CameraFrameRate)
	if err != nil {
		return err
	}
	decode := telemetry.DefaultDecodeOptions()
	decode.SpaceScale = cfg.SpaceScale
	decode.FrameRate = rate
	decode.PackedData = cfg.PacketContainsRawAndCalibratedData

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := metrics.New(nil)
	if err != nil {
		return err
	}

	var takes *recorder.Recorder
	if cfg.Recorder.Enabled {
		takes, err = recorder.Open(cfg.Recorder.Path)
		if err != nil {
			return err
		}
		defer takes.Close()
	}

	samples := &telemetry.Mailbox{}
	deps := monitor.Deps{
		Presets: presets,
		Metrics: m,
		Samples: samples,
		Decode:  decode,
	}

	rigCfg := rig.DefaultConfig()
	rigCfg.Preset = cfg.Preset
	rigCfg.Strategy = strategy
	rigCfg.TickRate = cfg.TickRate
	rigCfg.Live = cfg.LiveByDefault
	rigCfg.Target = target.Options{
		PivotOffset: r3.Vector{X: cfg.CameraPivotOffset.X, Y: cfg.CameraPivotOffset.Y, Z: cfg.CameraPivotOffset.Z},
	}

	rigDeps := rig.Deps{
		Presets: presets,
		Samples: samples,
		Metrics: m,
	}
	if takes != nil {
		rigDeps.Recorder = takes
		deps.Takes = takes
	}

	if cfg.Bridge.URL == "" {
		cam, err := motion.NewScriptedCamera(
			motion.Orbit(cfg.Motion.Radius, cfg.Motion.Height, float32(cfg.Motion.Lap.Seconds())), true)
		if err != nil {
			return err
		}
		rigDeps.Actor = cam
		log.Info("no telemetry stream configured, flying a scripted orbit",
			"radius", cfg.Motion.Radius, "height", cfg.Motion.Height, "lap", cfg.Motion.Lap)
	}

	results, status, stream := hub.New("results"), hub.New("status"), hub.New("telemetry")
	rigDeps.Results = results
	rigDeps.Status = status

	r, err := rig.New(rigCfg, rigDeps)
	if err != nil {
		return err
	}

	deps.Rig = r
	deps.Results = results
	deps.Status = status
	deps.Telemetry = stream
	srv, err := monitor.NewServer(cfg.Monitor.Port, deps)
	if err != nil {
		return err
	}

	if cfg.Bridge.URL != "" {
		bridgeURL, err := withPort(cfg.Bridge.URL, cfg.PortID)
		if err != nil {
			return err
		}
		bridge := telemetry.NewBridge(telemetry.BridgeConfig{
			URL:               bridgeURL,
			ReconnectInterval: cfg.Bridge.ReconnectInterval,
			Decode:            decode,
		}, samples)
		bridge.OnSample(func(s telemetry.Sample) {
			if msg, err := protocol.NewSampleMessage(s.Data()); err == nil {
				_ = stream.Publish(msg)
			}
		})
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("telemetry bridge stopped", "error", err)
			}
		}()
		defer bridge.Close()
	}

	go func() {
		if err := srv.Start(ctx); err != nil {
			log.Error("monitor stopped", "error", err)
			stop()
		}
	}()

	log.Info("technocrane started",
		"preset", cfg.Preset,
		"strategy", strategy,
		"live", cfg.LiveByDefault,
		"monitor", "http://localhost:"+cfg.Monitor.Port)

	err = r.Run(ctx)
	log.Info("technocrane stopped", "ticks", r.Ticks())
	return err
}

// withPort adds the tracker port index to the stream URL.
func withPort(raw string, port int) (string, error) {
	if port == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse bridge url: %w", err)
	}
	q := u.Query()
	q.Set("port", strconv.Itoa(port))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
