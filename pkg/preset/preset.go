// Package preset describes physical crane models: their ground and track
// offsets, beam and column counts, tilt and pan limits, and the bone that
// carries the column yaw.
package preset

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-technocrane/pkg/joints"
)

// ErrUnknownPreset is returned when a lookup names no preset in the table.
var ErrUnknownPreset = errors.New("preset: unknown crane model")

// Preset is the configuration record of one crane model.
// A Preset is immutable while a simulation is running; selecting a
// different model swaps the whole value.
type Preset struct {
	Name string `mapstructure:"name" json:"name"`

	// GroundOffset is the height of the base joint above the floor.
	GroundOffset float64 `mapstructure:"ground_offset" json:"ground_offset"`

	// TrackOffset and TracksSupport describe the rail mount of the model.
	// They are reported with the preset and do not move the base.
	TrackOffset   float64 `mapstructure:"track_offset" json:"track_offset"`
	TracksSupport bool    `mapstructure:"tracks_support" json:"tracks_support"`

	BeamCount   int `mapstructure:"beam_count" json:"beam_count"`
	ColumnCount int `mapstructure:"column_count" json:"column_count"`

	// YawJoint overrides the bone that rotates around Up.
	// Empty means the Columns joint.
	YawJoint string `mapstructure:"yaw_joint" json:"yaw_joint,omitempty"`

	// Tilt limits in degrees; the beams move within [-TiltMin, +TiltMax].
	TiltMin float64 `mapstructure:"tilt_min" json:"tilt_min"`
	TiltMax float64 `mapstructure:"tilt_max" json:"tilt_max"`

	PanMin float64 `mapstructure:"pan_min" json:"pan_min"`
	PanMax float64 `mapstructure:"pan_max" json:"pan_max"`

	CameraOffsetX float64 `mapstructure:"camera_offset_x" json:"camera_offset_x"`

	ModelPath string `mapstructure:"model_path" json:"model_path"`
}

// YawJointID resolves the yaw override against the joint catalog.
// Unknown or empty names fall back to the Columns joint.
func (p *Preset) YawJointID() joints.JointID {
	if p.YawJoint == "" {
		return joints.Columns
	}
	if id, ok := joints.Lookup(p.YawJoint); ok {
		return id
	}
	return joints.Columns
}

// Validate checks the preset values.
// Returns a list of validation errors, or nil if valid.
// TiltMin and TiltMax are magnitudes either side of level; their order is not checked.
func (p *Preset) Validate() []string {
	var errs []string

	if p.Name == "" {
		errs = append(errs, "name is required")
	}
	if p.TiltMin < 0 || p.TiltMin > 90 {
		errs = append(errs, "tilt_min must be between 0 and 90")
	}
	if p.TiltMax < 0 || p.TiltMax > 90 {
		errs = append(errs, "tilt_max must be between 0 and 90")
	}
	if p.PanMin < 0 || p.PanMax < 0 {
		errs = append(errs, "pan limits must not be negative")
	}
	maxBeams := int(joints.LastBeam - joints.FirstBeam + 1)
	if p.BeamCount < 1 || p.BeamCount > maxBeams {
		errs = append(errs, fmt.Sprintf("beam_count must be between 1 and %d", maxBeams))
	}
	if p.ColumnCount < 0 || p.ColumnCount > 3 {
		errs = append(errs, "column_count must be between 0 and 3")
	}
	if p.YawJoint != "" {
		if _, ok := joints.Lookup(p.YawJoint); !ok {
			errs = append(errs, fmt.Sprintf("yaw_joint %q is not a crane joint", p.YawJoint))
		}
	}

	return errs
}
