package monitor

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-technocrane/pkg/hub"
	"github.com/teslashibe/go-technocrane/pkg/metrics"
	"github.com/teslashibe/go-technocrane/pkg/preset"
	"github.com/teslashibe/go-technocrane/pkg/protocol"
	"github.com/teslashibe/go-technocrane/pkg/recorder"
	"github.com/teslashibe/go-technocrane/pkg/telemetry"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	protocol.StatusData
	Metrics *metrics.Snapshot `json:"metrics,omitempty"`
}

// PresetResponse is one entry of GET /api/presets.
type PresetResponse struct {
	Index  int           `json:"index"`
	Active bool          `json:"active"`
	Preset preset.Preset `json:"preset"`
}

// LiveRequest is the body of PUT /api/live.
type LiveRequest struct {
	Live bool `json:"live"`
}

// StartTakeRequest is the body of POST /api/takes.
type StartTakeRequest struct {
	Name string `json:"name"`
}

func (s *Server) statusData() protocol.StatusData {
	rig := s.deps.Rig
	d := protocol.StatusData{
		Preset:   rig.Preset().Name,
		Strategy: rig.Strategy().String(),
		Live:     rig.Live(),
		Ticks:    rig.Ticks(),
		Clients:  s.results.ClientCount() + s.telemetry.ClientCount() + s.status.ClientCount(),
		TickRate: rig.TickRate(),
	}
	if s.deps.Takes != nil {
		if take, ok := s.deps.Takes.Active(); ok {
			d.Recording = take.ID
		}
	}
	return d
}

func (s *Server) publishStatus() {
	if msg, err := protocol.NewStatusMessage(s.statusData()); err == nil {
		_ = s.status.Publish(msg)
	}
}

// handleStatus returns the rig summary.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{StatusData: s.statusData()}
	if s.deps.Metrics != nil {
		snap := s.deps.Metrics.Snapshot()
		resp.Metrics = &snap
	}
	return c.JSON(resp)
}

// handlePresets lists the crane models in table order.
func (s *Server) handlePresets(c *fiber.Ctx) error {
	active := s.deps.Rig.Preset().Name
	all := s.deps.Presets.All()
	out := make([]PresetResponse, len(all))
	for i, p := range all {
		out[i] = PresetResponse{Index: i, Active: p.Name == active, Preset: p}
	}
	return c.JSON(out)
}

// handleSetPreset switches the crane model.
func (s *Server) handleSetPreset(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := s.deps.Rig.SetPreset(name); err != nil {
		if errors.Is(err, preset.ErrUnknownPreset) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	s.logger.Info("preset selected", "preset", name)
	s.publishStatus()
	return c.JSON(s.statusData())
}

// handleSetLive switches between telemetry and the polled actor.
func (s *Server) handleSetLive(c *fiber.Ctx) error {
	var req LiveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	s.deps.Rig.SetLive(req.Live)
	s.publishStatus()
	return c.JSON(s.statusData())
}

// handleSample ingests one telemetry packet.
func (s *Server) handleSample(c *fiber.Ctx) error {
	var packet protocol.PacketData
	if err := c.BodyParser(&packet); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid packet: "+err.Error())
	}
	sample, err := s.ingest(packet)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(sample.Data())
}

func (s *Server) ingest(packet protocol.PacketData) (telemetry.Sample, error) {
	if s.deps.Samples == nil {
		return telemetry.Sample{}, fiber.NewError(fiber.StatusServiceUnavailable, "telemetry ingest disabled")
	}
	sample := telemetry.Decode(packet, s.deps.Decode)
	sample.Source = s.source
	sample.Received = time.Now()
	s.deps.Samples.Put(sample)

	if msg, err := protocol.NewSampleMessage(sample.Data()); err == nil {
		_ = s.telemetry.Publish(msg)
	}
	return sample, nil
}

// onTelemetryMessage accepts packets pushed over /ws/telemetry.
func (s *Server) onTelemetryMessage(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Debug("telemetry message rejected", "error", err)
		return
	}
	if msg.Type != protocol.TypePacket {
		return
	}
	packet, err := msg.GetPacketData()
	if err != nil {
		s.logger.Debug("telemetry packet rejected", "error", err)
		return
	}
	if _, err := s.ingest(*packet); err != nil {
		s.logger.Debug("telemetry packet dropped", "error", err)
	}
}

func (s *Server) takes() (Takes, error) {
	if s.deps.Takes == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "recorder disabled")
	}
	return s.deps.Takes, nil
}

// handleTakes lists recorded takes.
func (s *Server) handleTakes(c *fiber.Ctx) error {
	store, err := s.takes()
	if err != nil {
		return err
	}
	list, err := store.Takes()
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// handleStartTake begins recording.
func (s *Server) handleStartTake(c *fiber.Ctx) error {
	store, err := s.takes()
	if err != nil {
		return err
	}
	var req StartTakeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
		}
	}
	if req.Name == "" {
		req.Name = time.Now().Format("take-20060102-150405")
	}
	take, err := store.StartTake(req.Name, s.deps.Rig.Preset().Name)
	if err != nil {
		return err
	}
	s.publishStatus()
	return c.Status(fiber.StatusCreated).JSON(take)
}

// handleStopTake ends the active take.
func (s *Server) handleStopTake(c *fiber.Ctx) error {
	store, err := s.takes()
	if err != nil {
		return err
	}
	take, err := store.StopTake()
	if errors.Is(err, recorder.ErrNoActiveTake) {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	if err != nil {
		return err
	}
	s.publishStatus()
	return c.JSON(take)
}

// handleFrames returns the frames of one take.
func (s *Server) handleFrames(c *fiber.Ctx) error {
	store, err := s.takes()
	if err != nil {
		return err
	}
	frames, err := store.Frames(c.Params("id"))
	if errors.Is(err, recorder.ErrTakeNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(frames)
}

// handleResultsWS streams solved ticks.
func (s *Server) handleResultsWS(c *websocket.Conn) {
	hub.NewClient(s.results, c, nil).Run()
}

// handleTelemetryWS streams ingested samples and accepts packet messages.
func (s *Server) handleTelemetryWS(c *websocket.Conn) {
	hub.NewClient(s.telemetry, c, s.onTelemetryMessage).Run()
}

// handleStatusWS streams preset, live and take changes.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	hub.NewClient(s.status, c, nil).Run()
}
