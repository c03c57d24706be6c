package recorder

import (
	"time"

	"github.com/teslashibe/go-technocrane/pkg/kinematics"
)

// Take is one recording session.
type Take struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Name       string     `gorm:"index" json:"name"`
	Preset     string     `json:"preset"`
	StartedAt  time.Time  `json:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	FrameCount int        `json:"frame_count"`
}

// Frame is one solved tick inside a take.
type Frame struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	TakeID   string    `gorm:"index:idx_take_tick;size:36" json:"take_id"`
	Tick     uint64    `gorm:"index:idx_take_tick" json:"tick"`
	Time     time.Time `json:"time"`
	Timecode string    `json:"timecode,omitempty"`
	Live     bool      `json:"live"`

	TargetX       float64 `json:"target_x"`
	TargetY       float64 `json:"target_y"`
	TargetZ       float64 `json:"target_z"`
	TrackPosition float64 `json:"track_position"`
	Pan           float64 `json:"pan"`
	Tilt          float64 `json:"tilt"`
	Roll          float64 `json:"roll"`

	GroundHeight    float64 `json:"ground_height"`
	TiltAngle       float64 `json:"tilt_angle"`
	ExtensionLength float64 `json:"extension_length"`
	ColumnYaw       float64 `json:"column_yaw"`
	Reextended      bool    `json:"reextended"`
	Residual        float64 `json:"residual"`
	Warnings        int     `json:"warnings"`
}

// NewFrame flattens a solved tick for storage.
func NewFrame(tick uint64, at time.Time, target kinematics.TargetFrame, res kinematics.SimulationResult) Frame {
	return Frame{
		Tick:            tick,
		Time:            at,
		TargetX:         target.Position.X,
		TargetY:         target.Position.Y,
		TargetZ:         target.Position.Z,
		TrackPosition:   target.TrackPosition,
		Pan:             target.Pan(),
		Tilt:            target.Tilt(),
		Roll:            target.Roll(),
		GroundHeight:    res.GroundHeight,
		TiltAngle:       res.TiltAngle,
		ExtensionLength: res.ExtensionLength,
		ColumnYaw:       res.ColumnYaw,
		Reextended:      res.Reextended,
		Residual:        res.Residual,
		Warnings:        len(res.Warnings),
	}
}
