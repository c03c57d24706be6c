// Package joints names the skeletal joints of a Technocrane rig.
//
// The catalog is a compile-time table. JointID values have a stable total
// order and the beam segments are contiguous, so callers can walk
// Beam2..Beam5 by incrementing the identifier.
package joints

import "fmt"

// JointID identifies one joint of the crane skeleton.
type JointID int

const (
	Base JointID = iota
	Columns
	Column1
	Column2
	Column3
	Beams
	Beam1
	Beam2
	Beam3
	Beam4
	Beam5
	Gravity
	Neck
	Head
	WheelFR
	WheelFL
	WheelRR
	WheelRL

	// Count is the number of catalogued joints.
	Count
)

// FirstBeam and LastBeam bound the telescoping beam segments.
const (
	FirstBeam = Beam1
	LastBeam  = Beam5
)

var names = [Count]string{
	Base:    "jointRoot",
	Columns: "jointColumns",
	Column1: "jointColumn1",
	Column2: "jointColumn2",
	Column3: "jointColumn3",
	Beams:   "jointBeams",
	Beam1:   "jointBeam1",
	Beam2:   "jointBeam2",
	Beam3:   "jointBeam3",
	Beam4:   "jointBeam4",
	Beam5:   "jointBeam5",
	Gravity: "jointGravity",
	Neck:    "jointNeck",
	Head:    "jointHead",
	WheelFR: "jointWheelFR",
	WheelFL: "jointWheelFL",
	WheelRR: "jointWheelRR",
	WheelRL: "jointWheelRL",
}

// Name returns the canonical bone name of a joint.
// It panics for identifiers outside the catalog.
func Name(id JointID) string {
	if !id.Valid() {
		panic(fmt.Sprintf("joints: identifier %d out of range", int(id)))
	}
	return names[id]
}

// String implements fmt.Stringer.
func (id JointID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("JointID(%d)", int(id))
	}
	return names[id]
}

// Valid reports whether id is a catalogued joint.
func (id JointID) Valid() bool {
	return id >= 0 && id < Count
}

// IsBeam reports whether id is one of the telescoping beam segments.
func (id JointID) IsBeam() bool {
	return id >= FirstBeam && id <= LastBeam
}

// IsOptional reports whether a skeleton may legitimately omit the joint.
// Column segments, the upper beam segments and the wheels only exist on
// some crane models.
func (id JointID) IsOptional() bool {
	switch id {
	case Column1, Column2, Column3, Beam3, Beam4, Beam5,
		WheelFR, WheelFL, WheelRR, WheelRL:
		return true
	}
	return false
}

var byName = func() map[string]JointID {
	m := make(map[string]JointID, Count)
	for i := JointID(0); i < Count; i++ {
		m[names[i]] = i
	}
	return m
}()

// Lookup resolves a canonical bone name back to its joint.
func Lookup(name string) (JointID, bool) {
	id, ok := byName[name]
	return id, ok
}

// All returns every catalogued joint in order.
func All() []JointID {
	out := make([]JointID, 0, Count)
	for i := JointID(0); i < Count; i++ {
		out = append(out, i)
	}
	return out
}

// Extending returns the beam segments that take part in telescoping,
// Beam2 through Beam5. Beam1 is the fixed base segment.
func Extending() []JointID {
	out := make([]JointID, 0, LastBeam-Beam2+1)
	for id := Beam2; id <= LastBeam; id++ {
		out = append(out, id)
	}
	return out
}
