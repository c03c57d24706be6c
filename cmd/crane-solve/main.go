// Command crane-solve solves one camera target and prints the joints.
//
//	crane-solve -preset "SuperTechno 50 Plus" -x 0 -y 500 -z 100 -pan 30
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/golang/geo/r3"

	"github.com/teslashibe/go-technocrane/internal/log"
	"github.com/teslashibe/go-technocrane/pkg/geom"
	"github.com/teslashibe/go-technocrane/pkg/kinematics"
	"github.com/teslashibe/go-technocrane/pkg/preset"
	"github.com/teslashibe/go-technocrane/pkg/rig"
	"github.com/teslashibe/go-technocrane/pkg/target"
)

// fixedCamera is a camera actor parked at one pose.
type fixedCamera struct {
	pos   r3.Vector
	raw   r3.Vector
	track float64
}

func (c fixedCamera) TargetTransform() geom.Transform {
	return geom.NewTransform(geom.Rotator{Roll: c.raw.Z, Pitch: c.raw.Y, Yaw: c.raw.X}, c.pos)
}

func (c fixedCamera) TrackPosition() float64 { return c.track }
func (c fixedCamera) RawRotation() r3.Vector { return c.raw }

func main() {
	presetName := flag.String("preset", preset.TechnoDolly, "Crane model")
	presetsFile := flag.String("presets-file", "", "Extra crane models (JSON or YAML)")
	strategyName := flag.String("strategy", "closed-form", "Solver strategy: closed-form or relaxation")
	x := flag.Float64("x", 0, "Camera X (cm)")
	y := flag.Float64("y", 500, "Camera Y (cm)")
	z := flag.Float64("z", 100, "Camera Z (cm)")
	pan := flag.Float64("pan", 0, "Camera pan (degrees)")
	tilt := flag.Float64("tilt", 0, "Camera tilt (degrees)")
	roll := flag.Float64("roll", 0, "Camera roll (degrees)")
	track := flag.Float64("track", 0, "Track position (cm)")
	pivot := flag.Float64("pivot-offset", 0, "Camera pivot offset along the lens axis (cm)")
	asJSON := flag.Bool("json", false, "Print the result as JSON")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := "warn"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	presets := preset.NewTable()
	if *presetsFile != "" {
		if err := presets.LoadFile(*presetsFile); err != nil {
			fatal(err)
		}
	}
	strategy, err := kinematics.ParseStrategy(*strategyName)
	if err != nil {
		fatal(err)
	}

	cfg := rig.DefaultConfig()
	cfg.Preset = *presetName
	cfg.Strategy = strategy
	cfg.Target = target.Options{PivotOffset: r3.Vector{X: *pivot}}

	r, err := rig.New(cfg, rig.Deps{
		Presets: presets,
		Actor: fixedCamera{
			pos:   r3.Vector{X: *x, Y: *y, Z: *z},
			raw:   r3.Vector{X: *pan, Y: *tilt, Z: *roll},
			track: *track,
		},
	})
	if err != nil {
		fatal(err)
	}

	tick, err := r.Tick(context.Background(), 0)
	if err != nil {
		fatal(err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rig.ResultData(tick)); err != nil {
			fatal(err)
		}
		return
	}
	printTick(tick)
}

func printTick(t rig.Tick) {
	res := t.Result
	fmt.Printf("Preset:     %s\n", t.Preset)
	fmt.Printf("Target:     (%.2f, %.2f, %.2f)\n", t.Frame.Position.X, t.Frame.Position.Y, t.Frame.Position.Z)
	fmt.Printf("Ground:     %.2f\n", res.GroundHeight)
	fmt.Printf("Tilt:       %.2f\n", res.TiltAngle)
	fmt.Printf("Column yaw: %.2f\n", res.ColumnYaw)
	fmt.Printf("Extension:  %.2f\n", res.ExtensionLength)
	if res.Residual != 0 {
		fmt.Printf("Residual:   %.2f\n", res.Residual)
	}
	for _, m := range res.Messages() {
		fmt.Printf("Warning:    %s\n", m)
	}
	fmt.Println()

	names := make([]string, 0, len(t.Joints))
	for name := range t.Joints {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "joint\tx\ty\tz\troll\tpitch\tyaw\t")
	for _, name := range names {
		tr := t.Joints[name]
		rot := tr.Rotator()
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			name, tr.Translation.X, tr.Translation.Y, tr.Translation.Z, rot.Roll, rot.Pitch, rot.Yaw)
	}
	w.Flush()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "crane-solve: %v\n", err)
	os.Exit(1)
}
