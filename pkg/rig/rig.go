// Package rig evaluates a crane once per tick: pick the camera source,
// solve the joints and publish the result.
package rig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-technocrane/internal/log"
	"github.com/teslashibe/go-technocrane/pkg/geom"
	"github.com/teslashibe/go-technocrane/pkg/kinematics"
	"github.com/teslashibe/go-technocrane/pkg/metrics"
	"github.com/teslashibe/go-technocrane/pkg/preset"
	"github.com/teslashibe/go-technocrane/pkg/protocol"
	"github.com/teslashibe/go-technocrane/pkg/recorder"
	"github.com/teslashibe/go-technocrane/pkg/skeleton"
	"github.com/teslashibe/go-technocrane/pkg/target"
	"github.com/teslashibe/go-technocrane/pkg/telemetry"
)

// ErrNoTarget is returned by Tick when neither an actor nor a sample is
// available.
var ErrNoTarget = errors.New("rig: no camera target")

const (
	defaultTickRate     = 60.0
	defaultSampleMaxAge = 500 * time.Millisecond
)

// Config tunes a rig.
type Config struct {
	Preset   string
	Strategy kinematics.Strategy
	TickRate float64

	// Live prefers telemetry samples over the polled actor.
	Live bool

	// SampleMaxAge drops samples older than this. Zero uses 500ms.
	SampleMaxAge time.Duration

	Target target.Options

	// Crane shapes the skeleton built for each preset. The beam and
	// column counts come from the preset.
	Crane skeleton.CraneOptions
}

// DefaultConfig returns a live TechnoDolly rig at 60 Hz.
func DefaultConfig() Config {
	return Config{
		Preset:   preset.TechnoDolly,
		Strategy: kinematics.StrategyClosedForm,
		TickRate: defaultTickRate,
		Live:     true,
		Target:   target.DefaultOptions(),
		Crane:    skeleton.DefaultCraneOptions(),
	}
}

// Publisher receives encoded messages, such as a hub.
type Publisher interface {
	Publish(msg *protocol.Message) error
}

// Recorder stores solved frames.
type Recorder interface {
	Record(f recorder.Frame) error
}

// Stepper is an actor that moves on its own each tick.
type Stepper interface {
	Update(dt float32)
}

// Deps are the rig's collaborators. Only Presets is required.
type Deps struct {
	Presets  *preset.Table
	Actor    target.ActorAccessor
	Samples  *telemetry.Mailbox
	Results  Publisher
	Status   Publisher
	Recorder Recorder
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// Tick is the outcome of one evaluation.
type Tick struct {
	Seq    uint64
	Time   time.Time
	Live   bool
	Preset string
	Frame  kinematics.TargetFrame
	Result kinematics.SimulationResult
	Joints map[string]geom.Transform
}

// Rig owns a crane skeleton and solves it each tick.
type Rig struct {
	cfg    Config
	deps   Deps
	solver *kinematics.Solver
	logger *slog.Logger

	mu     sync.RWMutex
	preset preset.Preset
	pose   *skeleton.Pose
	live   bool
	seq    uint64
	last   *Tick
}

// New creates a rig on the named preset.
func New(cfg Config, deps Deps) (*Rig, error) {
	if deps.Presets == nil {
		return nil, errors.New("rig: preset table is required")
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaultTickRate
	}
	if cfg.SampleMaxAge <= 0 {
		cfg.SampleMaxAge = defaultSampleMaxAge
	}
	if cfg.Crane == (skeleton.CraneOptions{}) {
		cfg.Crane = skeleton.DefaultCraneOptions()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	p, err := deps.Presets.Get(cfg.Preset)
	if err != nil {
		return nil, err
	}

	opts := kinematics.DefaultOptions()
	opts.Strategy = cfg.Strategy

	r := &Rig{
		cfg:    cfg,
		deps:   deps,
		solver: kinematics.NewSolver(opts),
		logger: log.Component("rig"),
		live:   cfg.Live,
	}
	r.install(p)
	return r, nil
}

// install swaps in p and a skeleton shaped for it. Caller holds mu or
// has not published r yet.
func (r *Rig) install(p preset.Preset) {
	o := r.cfg.Crane
	o.BeamCount = p.BeamCount
	o.ColumnCount = p.ColumnCount
	r.preset = p
	r.pose = skeleton.NewCrane(o).NewPose()
	r.solver.Invalidate()
}

// SetPreset switches the crane model.
func (r *Rig) SetPreset(name string) error {
	p, err := r.deps.Presets.Get(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.install(p)
	r.mu.Unlock()

	r.logger.Info("preset changed", "preset", name, "beams", p.BeamCount, "columns", p.ColumnCount)
	if r.deps.Status != nil {
		if msg, err := protocol.NewPresetMessage(name); err == nil {
			_ = r.deps.Status.Publish(msg)
		}
	}
	return nil
}

// Preset returns the active crane model.
func (r *Rig) Preset() preset.Preset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.preset
}

// SetLive chooses between telemetry samples and the polled actor.
func (r *Rig) SetLive(live bool) {
	r.mu.Lock()
	r.live = live
	r.mu.Unlock()
}

// Live reports whether telemetry samples are preferred.
func (r *Rig) Live() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// Strategy returns the solver strategy.
func (r *Rig) Strategy() kinematics.Strategy {
	return r.solver.Options().Strategy
}

// TickRate returns the Run frequency in hertz.
func (r *Rig) TickRate() float64 {
	return r.cfg.TickRate
}

// Ticks returns the number of solved ticks.
func (r *Rig) Ticks() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}

// Last returns the most recent tick.
func (r *Rig) Last() (Tick, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Tick{}, false
	}
	return *r.last, true
}

// Tick advances a stepping actor by dt, solves one frame and publishes it.
func (r *Rig) Tick(ctx context.Context, dt time.Duration) (Tick, error) {
	if s, ok := r.deps.Actor.(Stepper); ok && dt > 0 {
		s.Update(float32(dt.Seconds()))
	}

	now := r.deps.Now()

	r.mu.Lock()
	src := target.Arbitrate(r.deps.Actor, r.sample(now), r.live)
	frame, ok := target.Resolve(src, r.cfg.Target)
	if !ok {
		r.mu.Unlock()
		return Tick{}, ErrNoTarget
	}

	p := r.preset
	res, err := r.solver.Compute(&p, r.pose, frame)
	if err != nil {
		r.mu.Unlock()
		if r.deps.Metrics != nil {
			r.deps.Metrics.Fail(ctx, err)
		}
		r.logger.Error("solve failed", "preset", p.Name, "error", err)
		return Tick{}, fmt.Errorf("solve %s: %w", p.Name, err)
	}

	r.seq++
	t := Tick{
		Seq:    r.seq,
		Time:   now,
		Live:   src.Kind() == target.KindLive,
		Preset: p.Name,
		Frame:  frame,
		Result: res,
		Joints: r.pose.Named(),
	}
	r.last = &t
	r.mu.Unlock()

	r.publish(ctx, t, src)
	return t, nil
}

// sample returns the latest fresh telemetry sample, if any.
func (r *Rig) sample(now time.Time) *telemetry.Sample {
	if r.deps.Samples == nil {
		return nil
	}
	s, ok := r.deps.Samples.Fresh(now, r.cfg.SampleMaxAge)
	if !ok {
		return nil
	}
	return &s
}

func (r *Rig) publish(ctx context.Context, t Tick, src target.Source) {
	for _, w := range t.Result.Warnings {
		if errors.Is(w, kinematics.ErrAllocatorStalled) {
			r.logger.Warn("beam allocation stalled", "tick", t.Seq, "residual", w.Residual)
			continue
		}
		r.logger.Debug("solver step skipped", "tick", t.Seq, "step", w.Step, "error", w.Err)
	}

	if r.deps.Metrics != nil {
		r.deps.Metrics.Observe(ctx, t.Result, t.Live)
	}

	if r.deps.Recorder != nil {
		f := recorder.NewFrame(t.Seq, t.Time, t.Frame, t.Result)
		f.Live = t.Live
		if s, ok := src.Sample(); ok {
			f.Timecode = s.Timecode.String()
		}
		if err := r.deps.Recorder.Record(f); err != nil && !errors.Is(err, recorder.ErrNoActiveTake) {
			r.logger.Warn("failed to record frame", "tick", t.Seq, "error", err)
		}
	}

	if r.deps.Results != nil {
		msg, err := protocol.NewResultMessage(ResultData(t))
		if err == nil {
			err = r.deps.Results.Publish(msg)
		}
		if err != nil {
			r.logger.Warn("failed to publish result", "tick", t.Seq, "error", err)
		}
	}
}

// ResultData converts a tick to its wire form.
func ResultData(t Tick) protocol.ResultData {
	d := protocol.ResultData{
		Tick:            t.Seq,
		Preset:          t.Preset,
		Live:            t.Live,
		GroundHeight:    t.Result.GroundHeight,
		TiltAngle:       t.Result.TiltAngle,
		ExtensionLength: t.Result.ExtensionLength,
		ColumnYaw:       t.Result.ColumnYaw,
		Reextended:      t.Result.Reextended,
		Residual:        t.Result.Residual,
		Warnings:        t.Result.Messages(),
	}
	if len(t.Joints) > 0 {
		d.Joints = make(map[string]protocol.JointPose, len(t.Joints))
		for name, tr := range t.Joints {
			rot := tr.Rotator()
			d.Joints[name] = protocol.JointPose{
				X: tr.Translation.X, Y: tr.Translation.Y, Z: tr.Translation.Z,
				Roll: rot.Roll, Pitch: rot.Pitch, Yaw: rot.Yaw,
			}
		}
	}
	return d
}

// Run ticks at the configured rate until ctx is done. A tick without a
// target is skipped quietly; other errors are logged and the loop goes on.
func (r *Rig) Run(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / r.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("rig running", "preset", r.Preset().Name, "rate", r.cfg.TickRate, "strategy", r.Strategy())

	last := r.deps.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := r.deps.Now()
			dt := now.Sub(last)
			last = now
			if _, err := r.Tick(ctx, dt); err != nil && !errors.Is(err, ErrNoTarget) {
				r.logger.Debug("tick failed", "error", err)
			}
		}
	}
}
