// Package kinematics solves the joints of a Technocrane rig so that its
// head reaches a camera target: column yaw, beam tilt, telescopic beam
// extension, counterweight levelling and neck/head orientation.
//
// Compute is a synchronous function of a preset, a skeleton pose and one
// TargetFrame. It holds no locks and mutates only the pose it is given.
package kinematics

import (
	"errors"

	"github.com/golang/geo/r3"
	"github.com/teslashibe/go-technocrane/pkg/geom"
	"gonum.org/v1/gonum/num/quat"
)

// Skeleton is the bone access the solver needs from the host skeleton.
// Bones are addressed by index; Parent returns a negative index for roots.
type Skeleton interface {
	FindBone(name string) (int, bool)
	Parent(bone int) int
	BoneCount() int
	LocalTransform(bone int) geom.Transform
	SetLocalTransform(bone int, t geom.Transform)
	BindLocalTransform(bone int) geom.Transform
	WorldPosition(bone int) r3.Vector
}

// TargetFrame is the solver input for one tick.
type TargetFrame struct {
	// Position is the camera head target in rig space.
	Position r3.Vector `json:"position"`

	// TrackPosition is the base offset along the rails, in centimetres.
	TrackPosition float64 `json:"track_position"`

	// RawRotation is (pan, tilt, roll) in degrees as reported by the source.
	RawRotation r3.Vector `json:"raw_rotation"`

	// NeckRotation orients the neck in rig space.
	NeckRotation quat.Number `json:"neck_rotation"`
}

// Pan, Tilt and Roll unpack RawRotation.
func (f TargetFrame) Pan() float64  { return f.RawRotation.X }
func (f TargetFrame) Tilt() float64 { return f.RawRotation.Y }
func (f TargetFrame) Roll() float64 { return f.RawRotation.Z }

// SimulationResult is the per-tick snapshot exposed to observers.
type SimulationResult struct {
	GroundHeight    float64 `json:"ground_height"`
	TiltAngle       float64 `json:"tilt_angle"`
	ExtensionLength float64 `json:"extension_length"`

	// ColumnYaw is the yaw joint's heading in degrees.
	ColumnYaw float64 `json:"column_yaw"`

	// Reextended is set when the beam chain was reallocated this tick.
	Reextended bool    `json:"reextended"`
	Residual   float64 `json:"residual"`

	Warnings []Warning `json:"-"`
}

// Messages renders the warnings as strings.
func (r SimulationResult) Messages() []string {
	if len(r.Warnings) == 0 {
		return nil
	}
	out := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		out[i] = w.Error()
	}
	return out
}

// Has reports whether any warning matches target.
func (r SimulationResult) Has(target error) bool {
	for _, w := range r.Warnings {
		if errors.Is(w, target) {
			return true
		}
	}
	return false
}
