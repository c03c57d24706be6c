// Package target turns a camera source into the TargetFrame the crane
// solver consumes.
//
// A Source is either Polled, reading an in-scene camera actor, or Live,
// carrying a telemetry sample. Resolve collapses it to one frame per tick.
package target

import (
	"github.com/golang/geo/r3"
	"github.com/teslashibe/go-technocrane/pkg/geom"
	"github.com/teslashibe/go-technocrane/pkg/kinematics"
	"github.com/teslashibe/go-technocrane/pkg/telemetry"
	"gonum.org/v1/gonum/num/quat"
)

// DefaultPivotOffset is the camera pivot offset of a stock rig.
var DefaultPivotOffset = r3.Vector{X: -70}

// ActorAccessor is the polled view of a camera actor.
type ActorAccessor interface {
	// TargetTransform is the camera's world transform.
	TargetTransform() geom.Transform

	// TrackPosition is the base offset along the rails.
	TrackPosition() float64

	// RawRotation is (pan, tilt, roll) in degrees.
	RawRotation() r3.Vector
}

// Kind tags a Source.
type Kind int

const (
	KindNone Kind = iota
	KindPolled
	KindLive
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindPolled:
		return "polled"
	case KindLive:
		return "live"
	}
	return "none"
}

// Source is where a tick's target comes from.
type Source struct {
	kind   Kind
	actor  ActorAccessor
	sample telemetry.Sample
}

// Polled reads everything from a camera actor.
func Polled(a ActorAccessor) Source {
	if a == nil {
		return Source{}
	}
	return Source{kind: KindPolled, actor: a}
}

// Live takes everything from a telemetry sample.
func Live(s telemetry.Sample) Source {
	return Source{kind: KindLive, sample: s}
}

// WithActor keeps a live source's track, rotation and neck from the
// sample but takes the camera position from a, as when the tracking
// subject also drives the scene camera.
func (s Source) WithActor(a ActorAccessor) Source {
	s.actor = a
	return s
}

// Kind returns the source tag.
func (s Source) Kind() Kind {
	return s.kind
}

// Sample returns the telemetry sample of a live source.
func (s Source) Sample() (telemetry.Sample, bool) {
	return s.sample, s.kind == KindLive
}

// Arbitrate picks the source for a tick. A sample wins when the rig is
// live; otherwise the actor is polled. Either one alone is used as is.
func Arbitrate(actor ActorAccessor, sample *telemetry.Sample, live bool) Source {
	switch {
	case sample != nil && (live || actor == nil):
		return Live(*sample).WithActor(actor)
	case actor != nil:
		return Polled(actor)
	}
	return Source{}
}

// Options shape target resolution.
type Options struct {
	// PivotOffset moves the target from the camera to the crane head
	// pivot, in the camera's own axes: forward X, right Y, up Z.
	PivotOffset r3.Vector

	// Rig is the crane's world transform. Targets are expressed
	// relative to it. The zero value means the identity.
	Rig geom.Transform
}

// DefaultOptions returns the stock pivot offset with the rig at the origin.
func DefaultOptions() Options {
	return Options{PivotOffset: DefaultPivotOffset, Rig: geom.IdentityTransform()}
}

const pivotEpsilon = 0.0001

// Resolve builds the frame for one tick. It reports false for a source
// with nothing to read.
func Resolve(src Source, opts Options) (kinematics.TargetFrame, bool) {
	var (
		camera geom.Transform
		frame  kinematics.TargetFrame
	)

	switch src.kind {
	case KindPolled:
		camera = src.actor.TargetTransform()
		frame.TrackPosition = src.actor.TrackPosition()
		frame.RawRotation = src.actor.RawRotation()
	case KindLive:
		camera = src.sample.CameraTransform()
		if src.actor != nil {
			camera = src.actor.TargetTransform()
		}
		frame.TrackPosition = src.sample.TrackPosition
		frame.RawRotation = src.sample.RawRotation()
	default:
		return kinematics.TargetFrame{}, false
	}

	world := PivotPoint(camera, opts.PivotOffset)
	frame.Position = rigSpace(opts.Rig).Point(world)

	if src.kind == KindPolled && !geom.NearlyEqual(opts.PivotOffset, r3.Vector{}, pivotEpsilon) {
		frame.NeckRotation = NeckFacing(camera.Translation, world)
	} else {
		frame.NeckRotation = NeckQuaternion(frame.Pan())
	}

	return frame, true
}

// PivotPoint offsets the camera location along its own axes.
func PivotPoint(camera geom.Transform, offset r3.Vector) r3.Vector {
	return camera.Translation.
		Add(camera.ForwardVector().Mul(offset.X)).
		Sub(camera.RightVector().Mul(offset.Y)).
		Add(camera.UpVector().Mul(offset.Z))
}

// NeckQuaternion is the neck rotation for a raw pan angle.
func NeckQuaternion(pan float64) quat.Number {
	return geom.Rotator{Roll: 90, Yaw: 180 + pan}.Quat()
}

// NeckFacing turns the neck so the head looks from the pivot back at the
// camera. A camera directly above or below the pivot gives a heading of 0.
func NeckFacing(camera, pivot r3.Vector) quat.Number {
	dir := geom.SafeNormal2D(camera.Sub(pivot))
	heading := 0.0
	if !geom.IsZero(dir) {
		heading = geom.Heading(geom.Forward, dir)
	}
	return geom.Rotator{Roll: 90, Yaw: 90 + heading}.Quat()
}

// rigSpace returns the transform taking world points into rig space.
func rigSpace(rig geom.Transform) geom.Transform {
	if rig.Rotation == (quat.Number{}) {
		rig.Rotation = geom.Identity
	}
	return rig.Inverse()
}
