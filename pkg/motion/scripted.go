// Package motion drives a scripted camera through keyframes.
//
// A ScriptedCamera stands in for an in-scene camera actor: the rig polls
// it through target.ActorAccessor while Update advances its tweens.
package motion

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/teslashibe/go-technocrane/pkg/geom"
)

// ErrNoKeyframes is returned for an empty script.
var ErrNoKeyframes = errors.New("motion: script has no keyframes")

// Keyframe is a camera pose reached Duration seconds after the previous one.
type Keyframe struct {
	Position      r3.Vector `json:"position"`
	Pan           float64   `json:"pan"`
	Tilt          float64   `json:"tilt"`
	Roll          float64   `json:"roll"`
	TrackPosition float64   `json:"track_position"`

	// Duration is ignored on the first keyframe.
	Duration float32 `json:"duration"`

	// Ease names the curve into this keyframe. Empty means in-out quad.
	Ease string `json:"ease"`
}

var eases = map[string]ease.TweenFunc{
	"linear":       ease.Linear,
	"in-quad":      ease.InQuad,
	"out-quad":     ease.OutQuad,
	"in-out-quad":  ease.InOutQuad,
	"in-cubic":     ease.InCubic,
	"out-cubic":    ease.OutCubic,
	"in-out-cubic": ease.InOutCubic,
	"in-out-sine":  ease.InOutSine,
}

// ParseEase returns the easing curve called name.
func ParseEase(name string) (ease.TweenFunc, error) {
	if name == "" {
		return ease.InOutQuad, nil
	}
	fn, ok := eases[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("motion: unknown ease %q", name)
	}
	return fn, nil
}

const (
	chX = iota
	chY
	chZ
	chPan
	chTilt
	chRoll
	chTrack
	channels
)

func (k Keyframe) values() [channels]float64 {
	return [channels]float64{
		k.Position.X, k.Position.Y, k.Position.Z,
		k.Pan, k.Tilt, k.Roll, k.TrackPosition,
	}
}

// ScriptedCamera plays a keyframe script.
type ScriptedCamera struct {
	keys []Keyframe
	fns  []ease.TweenFunc
	loop bool

	mu     sync.RWMutex
	seg    int
	tweens [channels]*gween.Tween
	cur    [channels]float64
	done   bool
}

// NewScriptedCamera validates the script and parks the camera on the first
// keyframe. A looping script jumps back to the first keyframe after the
// last, so its last keyframe should match its first.
func NewScriptedCamera(keys []Keyframe, loop bool) (*ScriptedCamera, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeyframes
	}
	fns := make([]ease.TweenFunc, len(keys))
	for i, k := range keys {
		fn, err := ParseEase(k.Ease)
		if err != nil {
			return nil, fmt.Errorf("keyframe %d: %w", i, err)
		}
		if i > 0 && k.Duration <= 0 {
			return nil, fmt.Errorf("motion: keyframe %d has no duration", i)
		}
		fns[i] = fn
	}

	c := &ScriptedCamera{
		keys: append([]Keyframe(nil), keys...),
		fns:  fns,
		loop: loop,
		cur:  keys[0].values(),
	}
	c.start(1)
	return c, nil
}

// start builds the tweens into keyframe next.
func (c *ScriptedCamera) start(next int) {
	if next >= len(c.keys) {
		if !c.loop || len(c.keys) < 2 {
			c.done = true
			return
		}
		c.cur = c.keys[0].values()
		next = 1
	}
	c.seg = next

	to := c.keys[next].values()
	for i := range c.tweens {
		c.tweens[i] = gween.New(float32(c.cur[i]), float32(to[i]), c.keys[next].Duration, c.fns[next])
	}
}

// Update advances the script by dt seconds. Time left over when a
// keyframe is reached is dropped.
func (c *ScriptedCamera) Update(dt float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done || dt <= 0 {
		return
	}
	finished := true
	for i, tw := range c.tweens {
		v, fin := tw.Update(dt)
		c.cur[i] = float64(v)
		finished = finished && fin
	}
	if finished {
		c.cur = c.keys[c.seg].values()
		c.start(c.seg + 1)
	}
}

// Done reports whether a non-looping script has reached its last keyframe.
func (c *ScriptedCamera) Done() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Position returns the current camera location.
func (c *ScriptedCamera) Position() r3.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return r3.Vector{X: c.cur[chX], Y: c.cur[chY], Z: c.cur[chZ]}
}

// TargetTransform returns the camera's world transform.
func (c *ScriptedCamera) TargetTransform() geom.Transform {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rot := geom.Rotator{Roll: c.cur[chRoll], Pitch: c.cur[chTilt], Yaw: c.cur[chPan]}
	return geom.NewTransform(rot, r3.Vector{X: c.cur[chX], Y: c.cur[chY], Z: c.cur[chZ]})
}

// TrackPosition returns the current track offset.
func (c *ScriptedCamera) TrackPosition() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur[chTrack]
}

// RawRotation returns (pan, tilt, roll).
func (c *ScriptedCamera) RawRotation() r3.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return r3.Vector{X: c.cur[chPan], Y: c.cur[chTilt], Z: c.cur[chRoll]}
}

// Orbit returns a looping script that circles the rig at radius and
// height, panning to keep the camera facing outward.
func Orbit(radius, height float64, lap float32) []Keyframe {
	const steps = 4
	keys := make([]Keyframe, 0, steps+1)
	for i := 0; i <= steps; i++ {
		yaw := float64(i) * 360 / steps
		dir := geom.Rotate(geom.Rotator{Yaw: yaw}.Quat(), geom.Forward)
		keys = append(keys, Keyframe{
			Position: dir.Mul(radius).Add(r3.Vector{Z: height}),
			Pan:      yaw,
			Duration: lap / steps,
			Ease:     "linear",
		})
	}
	return keys
}
