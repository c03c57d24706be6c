// Package telemetry decodes Technocrane hardware packets into rig-space
// samples, keeps the latest sample for the simulation thread and runs the
// WebSocket bridge that receives packets from a tracking host.
package telemetry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownFrameRate is returned by ParseFrameRate.
var ErrUnknownFrameRate = errors.New("telemetry: unknown frame rate")

// FrameRate is a camera timecode rate.
type FrameRate struct {
	Name      string  `json:"name"`
	FPS       float64 `json:"fps"`
	DropFrame bool    `json:"drop_frame,omitempty"`
}

// Timecode rates supported by the crane hardware.
var (
	NTSCDrop   = FrameRate{Name: "ntsc-drop", FPS: 29.97, DropFrame: true}
	NTSCFull   = FrameRate{Name: "ntsc-full", FPS: 29.97}
	PAL        = FrameRate{Name: "pal-25", FPS: 25}
	MPAL       = FrameRate{Name: "mpal-30", FPS: 29.971}
	Film24     = FrameRate{Name: "film-24", FPS: 24}
	Film23976  = FrameRate{Name: "film-23.976", FPS: 23.976}
	Frames30   = FrameRate{Name: "frames-30", FPS: 30}
	Frames5994 = FrameRate{Name: "frames-59.94", FPS: 59.94}
)

// DefaultFrameRate is PAL.
var DefaultFrameRate = PAL

// FrameRates returns every named rate.
func FrameRates() []FrameRate {
	return []FrameRate{NTSCDrop, NTSCFull, PAL, MPAL, Film24, Film23976, Frames30, Frames5994}
}

// ParseFrameRate resolves a rate by name, or builds a custom rate from a
// plain number such as "48".
func ParseFrameRate(name string) (FrameRate, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultFrameRate, nil
	}
	for _, r := range FrameRates() {
		if r.Name == name {
			return r, nil
		}
	}
	if fps, err := strconv.ParseFloat(name, 64); err == nil && fps > 0 {
		return FrameRate{Name: "custom", FPS: fps}, nil
	}
	return FrameRate{}, fmt.Errorf("%w: %q", ErrUnknownFrameRate, name)
}

// Nominal returns the whole frame count per timecode second.
func (r FrameRate) Nominal() int64 {
	n := int64(math.Round(r.FPS))
	if n < 1 {
		return 1
	}
	return n
}

// Timecode is an SMPTE-style hours:minutes:seconds:frames stamp.
type Timecode struct {
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
	Frames  uint32 `json:"frames"`
}

// LocalTime converts the timecode to seconds at fps.
func (tc Timecode) LocalTime(fps float64) float64 {
	t := 3600*float64(tc.Hours) + 60*float64(tc.Minutes) + float64(tc.Seconds)
	if fps > 0 {
		t += float64(tc.Frames) / fps
	}
	return t
}

// FrameNumber counts frames since midnight at the rate's nominal fps.
func (tc Timecode) FrameNumber(r FrameRate) int64 {
	secs := (int64(tc.Hours)*60+int64(tc.Minutes))*60 + int64(tc.Seconds)
	return secs*r.Nominal() + int64(tc.Frames)
}

// TimecodeFromFrames builds a timecode from a frame count.
func TimecodeFromFrames(frames int64, r FrameRate) Timecode {
	if frames < 0 {
		frames = 0
	}
	n := r.Nominal()
	secs := frames / n
	return Timecode{
		Hours:   uint32(secs / 3600),
		Minutes: uint32(secs / 60 % 60),
		Seconds: uint32(secs % 60),
		Frames:  uint32(frames % n),
	}
}

// String formats the timecode as HH:MM:SS:FF.
func (tc Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", tc.Hours, tc.Minutes, tc.Seconds, tc.Frames)
}
