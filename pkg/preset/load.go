package preset

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadFile reads crane models from a JSON or YAML file and merges them
// into t. The file holds a top-level "presets" list; fields left out of an
// entry take the TechnoDolly defaults.
//
//	presets:
//	  - name: "Rental Dolly"
//	    beam_count: 2
//	    tilt_max: 40
func (t *Table) LoadFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading preset file %s: %w", path, err)
	}

	raw, ok := v.Get("presets").([]any)
	if !ok {
		return fmt.Errorf("preset file %s: missing presets list", path)
	}

	for i, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			return fmt.Errorf("preset file %s: entry %d is not an object", path, i)
		}

		p, err := decodeEntry(fields)
		if err != nil {
			return fmt.Errorf("preset file %s: entry %d: %w", path, i, err)
		}
		if errs := p.Validate(); len(errs) > 0 {
			return fmt.Errorf("preset file %s: %q: %s", path, p.Name, strings.Join(errs, "; "))
		}
		t.Put(p)
	}
	return nil
}

// decodeEntry layers one file entry over the default model so that a
// partial entry still yields a complete preset.
func decodeEntry(fields map[string]any) (Preset, error) {
	v := viper.New()
	def := TechnoDollyPreset()
	v.SetDefault("ground_offset", def.GroundOffset)
	v.SetDefault("track_offset", def.TrackOffset)
	v.SetDefault("tracks_support", def.TracksSupport)
	v.SetDefault("beam_count", def.BeamCount)
	v.SetDefault("column_count", def.ColumnCount)
	v.SetDefault("yaw_joint", def.YawJoint)
	v.SetDefault("tilt_min", def.TiltMin)
	v.SetDefault("tilt_max", def.TiltMax)
	v.SetDefault("pan_min", def.PanMin)
	v.SetDefault("pan_max", def.PanMax)
	v.SetDefault("camera_offset_x", def.CameraOffsetX)
	v.SetDefault("model_path", def.ModelPath)

	if err := v.MergeConfigMap(fields); err != nil {
		return Preset{}, err
	}

	var p Preset
	if err := v.Unmarshal(&p); err != nil {
		return Preset{}, err
	}
	return p, nil
}
