package preset

import (
	"fmt"
	"sync"
)

// Built-in crane models.
const (
	TechnoDolly       = "TechnoDolly"
	SuperTechno50Plus = "SuperTechno 50 Plus"
)

// TechnoDollyPreset returns the default crane model.
func TechnoDollyPreset() Preset {
	return Preset{
		Name:          TechnoDolly,
		GroundOffset:  36,
		TrackOffset:   20,
		TracksSupport: false,
		BeamCount:     3,
		ColumnCount:   0,
		TiltMin:       55,
		TiltMax:       55,
		PanMin:        270,
		PanMax:        270,
		CameraOffsetX: 26,
		ModelPath:     "/TechnocranePlugin/TechnodollyModel",
	}
}

// SuperTechno50PlusPreset returns the long-arm model with a three
// segment column.
func SuperTechno50PlusPreset() Preset {
	p := TechnoDollyPreset()
	p.Name = SuperTechno50Plus
	p.BeamCount = 4
	p.ColumnCount = 3
	p.ModelPath = "/TechnocranePlugin/SuperTechno50Model"
	return p
}

// Table holds the crane models known to a process, in a stable order.
// The model index used by hardware setups is the position in that order.
type Table struct {
	mu      sync.RWMutex
	order   []string
	presets map[string]Preset
}

// NewTable returns a table holding the built-in models.
func NewTable() *Table {
	t := &Table{presets: make(map[string]Preset)}
	t.Put(TechnoDollyPreset())
	t.Put(SuperTechno50PlusPreset())
	return t
}

// Put adds or replaces a model. Replacing keeps the original index.
func (t *Table) Put(p Preset) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.presets[p.Name]; !ok {
		t.order = append(t.order, p.Name)
	}
	t.presets[p.Name] = p
}

// Get returns a model by name.
func (t *Table) Get(name string) (Preset, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

// ByIndex returns the model at position i.
func (t *Table) ByIndex(i int) (Preset, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.order) {
		return Preset{}, fmt.Errorf("%w: index %d", ErrUnknownPreset, i)
	}
	return t.presets[t.order[i]], nil
}

// Names returns the model names in table order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// All returns every model in table order.
func (t *Table) All() []Preset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Preset, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.presets[name])
	}
	return out
}
