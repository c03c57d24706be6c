package telemetry

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/teslashibe/go-technocrane/pkg/geom"
	"github.com/teslashibe/go-technocrane/pkg/protocol"
)

// LensRange maps a normalised encoder value onto lens units.
type LensRange struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// DefaultLensRange is the range used for zoom, focus and iris.
var DefaultLensRange = LensRange{Min: 0, Max: 100}

// Map converts an encoder value in [0, 1] to the range.
func (r LensRange) Map(raw float64) float64 {
	return r.Min + geom.Clamp(raw, 0, 1)*(r.Max-r.Min)
}

// DecodeOptions control how packets become samples.
type DecodeOptions struct {
	// SpaceScale converts tracker units to centimetres. Zero means 1.
	SpaceScale float64

	FrameRate FrameRate

	// PackedData marks packets that carry raw and calibrated values
	// together. Iris is not decoded from such packets.
	PackedData bool

	Zoom  LensRange
	Focus LensRange
	Iris  LensRange
}

// DefaultDecodeOptions returns unit scale at PAL rate.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{
		SpaceScale: 1,
		FrameRate:  DefaultFrameRate,
		Zoom:       DefaultLensRange,
		Focus:      DefaultLensRange,
		Iris:       DefaultLensRange,
	}
}

// Calibration reports which lens encoders were calibrated.
type Calibration struct {
	Zoom  bool `json:"zoom"`
	Focus bool `json:"focus"`
	Iris  bool `json:"iris"`
}

// Sample is one decoded telemetry packet.
type Sample struct {
	Source uuid.UUID `json:"source"`

	// Position is the camera location in rig space.
	Position r3.Vector `json:"position"`

	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
	Roll float64 `json:"roll"`

	TrackPosition float64 `json:"track_position"`
	PacketNumber  int64   `json:"packet_number"`

	// Lens values stay at 1 when their encoder is not calibrated.
	Zoom        float64     `json:"zoom"`
	Focus       float64     `json:"focus"`
	Iris        float64     `json:"iris"`
	Calibration Calibration `json:"calibration"`

	Timecode    Timecode  `json:"timecode"`
	HasTimecode bool      `json:"has_timecode"`
	FrameRate   FrameRate `json:"frame_rate"`

	CameraOn bool `json:"camera_on"`
	Running  bool `json:"running"`

	Received time.Time `json:"received"`
}

// Decode converts a hardware packet into a rig-space sample.
//
// Tracker axes arrive as (x, z, y); the position is remapped and scaled.
// Packets without a timecode get one derived from their frame count.
func Decode(p protocol.PacketData, opts DecodeOptions) Sample {
	scale := opts.SpaceScale
	if scale == 0 {
		scale = 1
	}
	rate := opts.FrameRate
	if rate.FPS <= 0 {
		rate = DefaultFrameRate
	}

	s := Sample{
		Position:      geom.Vec(p.Position[0], p.Position[2], p.Position[1]).Mul(scale),
		Pan:           p.Pan,
		Tilt:          p.Tilt,
		Roll:          p.Roll,
		TrackPosition: scale * p.TrackPos,
		PacketNumber:  p.PacketNumber,
		Zoom:          1,
		Focus:         1,
		Iris:          1,
		HasTimecode:   p.HasTimecode,
		FrameRate:     rate,
		CameraOn:      p.CameraOn,
		Running:       p.Running,
	}

	if p.ZoomCalibrated {
		s.Zoom = opts.Zoom.Map(p.Zoom)
		s.Calibration.Zoom = true
	}
	if p.FocusCalibrated {
		s.Focus = scale * opts.Focus.Map(p.Focus)
		s.Calibration.Focus = true
	}
	if p.IrisCalibrated && !opts.PackedData {
		s.Iris = opts.Iris.Map(p.Iris)
		s.Calibration.Iris = true
	}

	if p.HasTimecode {
		s.Timecode = Timecode{Hours: p.Hours, Minutes: p.Minutes, Seconds: p.Seconds, Frames: p.Frames}
	} else {
		s.Timecode = TimecodeFromFrames(int64(p.Frames), rate)
	}

	return s
}

// RawRotation returns (pan, tilt, roll) in degrees.
func (s Sample) RawRotation() r3.Vector {
	return geom.Vec(s.Pan, s.Tilt, s.Roll)
}

// CameraRotation is the camera orientation the sample describes.
func (s Sample) CameraRotation() geom.Rotator {
	return geom.Rotator{Roll: s.Roll, Pitch: s.Tilt, Yaw: 90 + s.Pan}
}

// CameraTransform places the camera in rig space.
func (s Sample) CameraTransform() geom.Transform {
	return geom.NewTransform(s.CameraRotation(), s.Position)
}

// LocalTime is the sample's timecode in seconds.
func (s Sample) LocalTime() float64 {
	return s.Timecode.LocalTime(s.FrameRate.FPS)
}

// Property is one named scalar of a sample.
type Property struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Property names in the order Properties returns them.
const (
	PropTrackPosition = "TrackPosition"
	PropPacketNumber  = "PacketNumber"
	PropX             = "X"
	PropY             = "Y"
	PropZ             = "Z"
	PropPan           = "Pan"
	PropTilt          = "Tilt"
	PropRoll          = "Roll"
	PropCameraOn      = "CameraOn"
	PropRunning       = "Running"
)

// Properties flattens the sample into its fixed property vector.
func (s Sample) Properties() []Property {
	return []Property{
		{PropTrackPosition, s.TrackPosition},
		{PropPacketNumber, float64(s.PacketNumber)},
		{PropX, s.Position.X},
		{PropY, s.Position.Y},
		{PropZ, s.Position.Z},
		{PropPan, s.Pan},
		{PropTilt, s.Tilt},
		{PropRoll, s.Roll},
		{PropCameraOn, boolValue(s.CameraOn)},
		{PropRunning, boolValue(s.Running)},
	}
}

// Data converts the sample to its wire form.
func (s Sample) Data() protocol.SampleData {
	return protocol.SampleData{
		Source:        s.Source.String(),
		Position:      [3]float64{s.Position.X, s.Position.Y, s.Position.Z},
		Pan:           s.Pan,
		Tilt:          s.Tilt,
		Roll:          s.Roll,
		TrackPosition: s.TrackPosition,
		PacketNumber:  s.PacketNumber,
		Timecode:      s.Timecode.String(),
		LocalTime:     s.LocalTime(),
		Zoom:          s.Zoom,
		Focus:         s.Focus,
		Iris:          s.Iris,
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
