package kinematics

import (
	"github.com/golang/geo/r3"
	"github.com/teslashibe/go-technocrane/pkg/beams"
	"github.com/teslashibe/go-technocrane/pkg/geom"
	"github.com/teslashibe/go-technocrane/pkg/joints"
)

// Calibration is derived once from a skeleton's bind pose: the resolved
// bone handles and the fixed lengths of the arm.
type Calibration struct {
	bones map[joints.JointID]int

	// HeadDrop is the vertical distance from the neck down to the head.
	HeadDrop float64

	// ArmTip is the distance from the last beam segment to the neck.
	ArmTip float64

	// BaseLength is the bind length of Beam1, the fixed first segment.
	BaseLength float64

	// Segments lists the telescoping segments the skeleton has, Beam2 onward.
	Segments []SegmentInfo

	boneCount int
}

// SegmentInfo is the bind data of one telescoping segment.
type SegmentInfo struct {
	Joint     joints.JointID
	Bone      int
	MaxLength float64
}

// Calibrate resolves joint names against skel and measures the bind pose.
func Calibrate(skel Skeleton) *Calibration {
	c := &Calibration{
		bones:     make(map[joints.JointID]int, joints.Count),
		boneCount: skel.BoneCount(),
	}

	for _, id := range joints.All() {
		if bone, ok := skel.FindBone(joints.Name(id)); ok {
			c.bones[id] = bone
		}
	}
	if _, ok := c.bones[joints.Base]; !ok && c.boneCount > 0 {
		c.bones[joints.Base] = 0
	}

	if head, ok := c.bones[joints.Head]; ok {
		c.HeadDrop = skel.BindLocalTransform(head).Translation.Norm()
	}
	if neck, ok := c.bones[joints.Neck]; ok {
		c.ArmTip = skel.BindLocalTransform(neck).Translation.Norm()
	}
	if b1, ok := c.bones[joints.Beam1]; ok {
		c.BaseLength = skel.BindLocalTransform(b1).Translation.Norm()
	}

	for _, id := range joints.Extending() {
		bone, ok := c.bones[id]
		if !ok {
			continue
		}
		c.Segments = append(c.Segments, SegmentInfo{
			Joint:     id,
			Bone:      bone,
			MaxLength: skel.BindLocalTransform(bone).Translation.Norm(),
		})
	}

	return c
}

// Bone returns the skeleton index of a joint.
func (c *Calibration) Bone(id joints.JointID) (int, bool) {
	b, ok := c.bones[id]
	return b, ok
}

// MaxReach is the pivot-to-neck distance with every segment extended.
func (c *Calibration) MaxReach() float64 {
	reach := c.BaseLength + c.ArmTip
	for _, s := range c.Segments {
		reach += s.MaxLength
	}
	return reach
}

// HeadOffset is the vertical lift from a head target to where the neck
// must sit.
func (c *Calibration) HeadOffset() r3.Vector {
	return geom.Vec(0, 0, c.HeadDrop)
}

// segments builds the allocator input. Each re-extension starts from a
// fully retracted chain.
func (c *Calibration) segments() []beams.Segment {
	out := make([]beams.Segment, len(c.Segments))
	for i, s := range c.Segments {
		out[i] = beams.Segment{
			Joint:   s.Joint,
			Bone:    s.Bone,
			Current: 0,
			Min:     beams.DefaultMinLength,
			Max:     s.MaxLength,
		}
	}
	return out
}
