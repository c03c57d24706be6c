// Package metrics counts solver outcomes with OpenTelemetry instruments.
//
// Instruments come from the global meter unless one is passed in, so the
// counters are no-ops until a provider is installed. A local snapshot is
// kept alongside for the monitor's status endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/teslashibe/go-technocrane/pkg/kinematics"
)

const instrumentationName = "github.com/teslashibe/go-technocrane/pkg/metrics"

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Ticks         uint64 `json:"ticks"`
	Reextensions  uint64 `json:"reextensions"`
	SkippedSteps  uint64 `json:"skipped_steps"`
	Stalls        uint64 `json:"stalls"`
	MissingJoints uint64 `json:"missing_joints"`
	Failures      uint64 `json:"failures"`
}

// Metrics holds the rig instruments.
type Metrics struct {
	ticks        metric.Int64Counter
	reextensions metric.Int64Counter
	skipped      metric.Int64Counter
	stalls       metric.Int64Counter
	failures     metric.Int64Counter
	residual     metric.Float64Histogram

	nTicks, nReext, nSkipped, nStalls, nMissing, nFailures atomic.Uint64
}

// New creates the instruments on m, or on the global meter when m is nil.
func New(m metric.Meter) (*Metrics, error) {
	if m == nil {
		m = otel.Meter(instrumentationName)
	}

	var (
		x   Metrics
		err error
	)
	if x.ticks, err = m.Int64Counter(
		"crane.ticks",
		metric.WithDescription("Solved rig ticks"),
	); err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	if x.reextensions, err = m.Int64Counter(
		"crane.beams.reextensions",
		metric.WithDescription("Ticks that reallocated the beam chain"),
	); err != nil {
		return nil, fmt.Errorf("creating reextension counter: %w", err)
	}
	if x.skipped, err = m.Int64Counter(
		"crane.steps.skipped",
		metric.WithDescription("Solver steps skipped or limited, by step and reason"),
	); err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	if x.stalls, err = m.Int64Counter(
		"crane.beams.stalls",
		metric.WithDescription("Beam allocations that saturated with a residual"),
	); err != nil {
		return nil, fmt.Errorf("creating stall counter: %w", err)
	}
	if x.failures, err = m.Int64Counter(
		"crane.ticks.failed",
		metric.WithDescription("Ticks that could not be solved"),
	); err != nil {
		return nil, fmt.Errorf("creating failure counter: %w", err)
	}
	if x.residual, err = m.Float64Histogram(
		"crane.beams.residual",
		metric.WithDescription("Length the beam chain could not reach"),
		metric.WithUnit("cm"),
	); err != nil {
		return nil, fmt.Errorf("creating residual histogram: %w", err)
	}
	return &x, nil
}

// Observe records one solved tick.
func (x *Metrics) Observe(ctx context.Context, res kinematics.SimulationResult, live bool) {
	source := attribute.String("source", sourceName(live))

	x.ticks.Add(ctx, 1, metric.WithAttributes(source))
	x.nTicks.Add(1)

	if res.Reextended {
		x.reextensions.Add(ctx, 1)
		x.nReext.Add(1)
	}

	for _, w := range res.Warnings {
		x.skipped.Add(ctx, 1, metric.WithAttributes(
			attribute.String("step", string(w.Step)),
			attribute.String("reason", reason(w.Err)),
		))
		x.nSkipped.Add(1)

		switch {
		case errors.Is(w, kinematics.ErrAllocatorStalled):
			x.stalls.Add(ctx, 1)
			x.residual.Record(ctx, w.Residual)
			x.nStalls.Add(1)
		case errors.Is(w, kinematics.ErrJointNotFound):
			x.nMissing.Add(1)
		}
	}
}

// Fail records a tick that returned an error.
func (x *Metrics) Fail(ctx context.Context, err error) {
	x.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason(err))))
	x.nFailures.Add(1)
}

// Snapshot returns the current counts.
func (x *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Ticks:         x.nTicks.Load(),
		Reextensions:  x.nReext.Load(),
		SkippedSteps:  x.nSkipped.Load(),
		Stalls:        x.nStalls.Load(),
		MissingJoints: x.nMissing.Load(),
		Failures:      x.nFailures.Load(),
	}
}

func sourceName(live bool) string {
	if live {
		return "live"
	}
	return "polled"
}

func reason(err error) string {
	switch {
	case errors.Is(err, kinematics.ErrJointNotFound):
		return "joint_not_found"
	case errors.Is(err, kinematics.ErrDegenerateGeometry):
		return "degenerate_geometry"
	case errors.Is(err, kinematics.ErrAllocatorStalled):
		return "allocator_stalled"
	case errors.Is(err, kinematics.ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, kinematics.ErrNoSkeleton):
		return "no_skeleton"
	}
	return "other"
}
