package skeleton

import (
	"github.com/golang/geo/r3"
	"github.com/teslashibe/go-technocrane/pkg/geom"
	"github.com/teslashibe/go-technocrane/pkg/joints"
)

// CraneOptions shapes the reference crane skeleton.
// Lengths are in centimetres, measured along each bone's parent axis.
type CraneOptions struct {
	BeamCount   int // 1..5 segments including the fixed Beam1
	ColumnCount int // 0..3 column segments between Columns and Beams
	Wheels      bool

	ColumnsHeight float64 // Columns above the base
	ColumnHeight  float64 // each column segment
	PivotHeight   float64 // Beams above the last column
	GravityLength float64 // counterweight behind the pivot
	Beam1Length   float64 // fixed base segment
	BeamLength    float64 // full extension of each telescoping segment
	NeckLength    float64 // last beam to neck
	HeadDrop      float64 // neck to head
}

// DefaultCraneOptions returns the proportions of a four-beam crane with a
// three-segment column.
func DefaultCraneOptions() CraneOptions {
	return CraneOptions{
		BeamCount:     4,
		ColumnCount:   3,
		Wheels:        true,
		ColumnsHeight: 20,
		ColumnHeight:  40,
		PivotHeight:   20,
		GravityLength: 45,
		Beam1Length:   150,
		BeamLength:    120,
		NeckLength:    30,
		HeadDrop:      60,
	}
}

// NewCrane builds a reference crane skeleton.
//
// In the bind pose every bone is unrotated: the column stacks along +Z,
// the beams hang along -Z from the pivot and the head sits along -Y of
// the neck. The solver rolls the beams up into the horizontal and turns
// the neck so the head hangs below it.
func NewCrane(o CraneOptions) *Skeleton {
	if o.BeamCount < 1 {
		o.BeamCount = 1
	}
	if limit := int(joints.LastBeam - joints.FirstBeam + 1); o.BeamCount > limit {
		o.BeamCount = limit
	}
	if o.ColumnCount < 0 {
		o.ColumnCount = 0
	}
	if o.ColumnCount > 3 {
		o.ColumnCount = 3
	}

	var bones []Bone
	add := func(id joints.JointID, parent int, offset r3.Vector) int {
		bones = append(bones, Bone{
			Name:   joints.Name(id),
			Parent: parent,
			Bind:   geom.IdentityTransform().WithTranslation(offset),
		})
		return len(bones) - 1
	}

	root := add(joints.Base, None, r3.Vector{})
	top := add(joints.Columns, root, geom.Vec(0, 0, o.ColumnsHeight))
	for i := 0; i < o.ColumnCount; i++ {
		top = add(joints.Column1+joints.JointID(i), top, geom.Vec(0, 0, o.ColumnHeight))
	}

	beams := add(joints.Beams, top, geom.Vec(0, 0, o.PivotHeight))
	add(joints.Gravity, beams, geom.Vec(0, 0, o.GravityLength))

	tip := add(joints.Beam1, beams, geom.Vec(0, 0, -o.Beam1Length))
	for i := 1; i < o.BeamCount; i++ {
		tip = add(joints.Beam1+joints.JointID(i), tip, geom.Vec(0, 0, -o.BeamLength))
	}

	neck := add(joints.Neck, tip, geom.Vec(0, 0, -o.NeckLength))
	add(joints.Head, neck, geom.Vec(0, -o.HeadDrop, 0))

	if o.Wheels {
		add(joints.WheelFR, root, geom.Vec(40, 50, 0))
		add(joints.WheelFL, root, geom.Vec(-40, 50, 0))
		add(joints.WheelRR, root, geom.Vec(40, -50, 0))
		add(joints.WheelRL, root, geom.Vec(-40, -50, 0))
	}

	s, err := New(bones)
	if err != nil {
		// The bone list above is built parent-first with unique names.
		panic(err)
	}
	return s
}

// PivotOffset returns the height of the Beams joint above the base.
func (o CraneOptions) PivotOffset() float64 {
	return o.ColumnsHeight + float64(o.ColumnCount)*o.ColumnHeight + o.PivotHeight
}

// MaxReach returns the pivot-to-neck distance with every beam extended.
func (o CraneOptions) MaxReach() float64 {
	return o.Beam1Length + float64(o.BeamCount-1)*o.BeamLength + o.NeckLength
}
