// Package monitor serves the rig's HTTP API and live websocket streams.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-technocrane/internal/log"
	"github.com/teslashibe/go-technocrane/pkg/hub"
	"github.com/teslashibe/go-technocrane/pkg/kinematics"
	"github.com/teslashibe/go-technocrane/pkg/metrics"
	"github.com/teslashibe/go-technocrane/pkg/preset"
	"github.com/teslashibe/go-technocrane/pkg/recorder"
	"github.com/teslashibe/go-technocrane/pkg/telemetry"
)

// Rig is the part of a running rig the monitor controls.
type Rig interface {
	Preset() preset.Preset
	SetPreset(name string) error
	Live() bool
	SetLive(live bool)
	Ticks() uint64
	Strategy() kinematics.Strategy
	TickRate() float64
}

// Takes is the take store behind the /api/takes routes.
type Takes interface {
	StartTake(name, preset string) (recorder.Take, error)
	StopTake() (recorder.Take, error)
	Active() (recorder.Take, bool)
	Takes() ([]recorder.Take, error)
	Frames(id string) ([]recorder.Frame, error)
}

// Deps wires the monitor to the rig. Rig and Presets are required.
type Deps struct {
	Rig     Rig
	Presets *preset.Table
	Takes   Takes
	Metrics *metrics.Metrics

	// Samples receives telemetry posted to the monitor.
	Samples *telemetry.Mailbox
	Decode  telemetry.DecodeOptions

	// Hubs to serve. Nil ones are created.
	Results   *hub.Hub
	Telemetry *hub.Hub
	Status    *hub.Hub
}

// Server is the monitor HTTP server.
type Server struct {
	app    *fiber.App
	port   string
	deps   Deps
	source uuid.UUID
	logger *slog.Logger

	results   *hub.Hub
	telemetry *hub.Hub
	status    *hub.Hub
}

// NewServer creates a monitor listening on port.
func NewServer(port string, deps Deps) (*Server, error) {
	if deps.Rig == nil || deps.Presets == nil {
		return nil, errors.New("monitor: rig and presets are required")
	}
	if deps.Decode.FrameRate.FPS <= 0 {
		deps.Decode = telemetry.DefaultDecodeOptions()
	}

	if deps.Results == nil {
		deps.Results = hub.New("results")
	}
	if deps.Telemetry == nil {
		deps.Telemetry = hub.New("telemetry")
	}
	if deps.Status == nil {
		deps.Status = hub.New("status")
	}

	s := &Server{
		port:      port,
		deps:      deps,
		source:    uuid.New(),
		logger:    log.Component("monitor"),
		results:   deps.Results,
		telemetry: deps.Telemetry,
		status:    deps.Status,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Technocrane Monitor",
		DisableStartupMessage: true,
		UnescapePath:          true,
		ErrorHandler:          errorHandler,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/presets", s.handlePresets)
	api.Put("/preset/:name", s.handleSetPreset)
	api.Put("/live", s.handleSetLive)
	api.Post("/sample", s.handleSample)
	api.Get("/takes", s.handleTakes)
	api.Post("/takes", s.handleStartTake)
	api.Delete("/takes/active", s.handleStopTake)
	api.Get("/takes/:id/frames", s.handleFrames)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/results", websocket.New(s.handleResultsWS))
	app.Get("/ws/telemetry", websocket.New(s.handleTelemetryWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s, nil
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Results returns the hub fed with solved ticks.
func (s *Server) Results() *hub.Hub {
	return s.results
}

// Status returns the hub fed with preset and status changes.
func (s *Server) Status() *hub.Hub {
	return s.status
}

// Telemetry returns the hub that echoes ingested samples.
func (s *Server) Telemetry() *hub.Hub {
	return s.telemetry
}

// RunHubs runs the broadcast hubs until ctx is done.
func (s *Server) RunHubs(ctx context.Context) {
	go s.results.Run(ctx)
	go s.telemetry.Run(ctx)
	go s.status.Run(ctx)
}

// Start runs the hubs and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.RunHubs(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("monitor listening", "url", "http://localhost:"+s.port)
		errCh <- s.app.Listen(":" + s.port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the server, waiting up to five seconds for requests.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
