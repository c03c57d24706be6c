// Package skeleton stores a crane skeleton as a static tree of parent
// indices with a bind pose, and a mutable pose of joint-local transforms
// that the solver reads and writes each tick.
package skeleton

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/teslashibe/go-technocrane/pkg/geom"
	"gonum.org/v1/gonum/num/quat"
)

// None marks the absence of a bone, such as the parent of the root.
const None = -1

// Bone is one node of the reference skeleton.
type Bone struct {
	Name   string
	Parent int
	Bind   geom.Transform
}

// Skeleton is the immutable reference hierarchy. Parents always precede
// their children, so a single forward pass resolves component space.
type Skeleton struct {
	bones []Bone
	index map[string]int
}

// New validates bones and builds a skeleton.
func New(bones []Bone) (*Skeleton, error) {
	if len(bones) == 0 {
		return nil, errors.New("skeleton: no bones")
	}
	s := &Skeleton{
		bones: make([]Bone, len(bones)),
		index: make(map[string]int, len(bones)),
	}
	for i, b := range bones {
		if b.Parent >= i || b.Parent < None {
			return nil, fmt.Errorf("skeleton: bone %q has parent %d, must precede index %d", b.Name, b.Parent, i)
		}
		if _, dup := s.index[b.Name]; dup {
			return nil, fmt.Errorf("skeleton: duplicate bone %q", b.Name)
		}
		if b.Bind.Rotation == (quat.Number{}) {
			b.Bind.Rotation = geom.Identity
		}
		s.bones[i] = b
		s.index[b.Name] = i
	}
	return s, nil
}

// Len returns the number of bones.
func (s *Skeleton) Len() int { return len(s.bones) }

// Bone returns the bone at index i.
func (s *Skeleton) Bone(i int) Bone { return s.bones[i] }

// Find returns the index of the named bone.
func (s *Skeleton) Find(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Parent returns the parent index of bone i, or None for a root.
func (s *Skeleton) Parent(i int) int { return s.bones[i].Parent }

// BindComponentTransforms resolves every bind-pose bone into component space.
func (s *Skeleton) BindComponentTransforms() []geom.Transform {
	locals := make([]geom.Transform, len(s.bones))
	for i, b := range s.bones {
		locals[i] = b.Bind
	}
	return chain(s.bones, locals)
}

// chain walks the parent indices and composes local transforms.
func chain(bones []Bone, locals []geom.Transform) []geom.Transform {
	out := make([]geom.Transform, len(bones))
	for i, b := range bones {
		if b.Parent == None {
			out[i] = locals[i]
			continue
		}
		out[i] = geom.Compose(out[b.Parent], locals[i])
	}
	return out
}

// Pose is a mutable set of joint-local transforms over a Skeleton.
// A Pose is owned by one evaluation at a time and is not safe for
// concurrent use.
type Pose struct {
	ref   *Skeleton
	local []geom.Transform
}

// NewPose returns a pose initialised to the bind pose.
func (s *Skeleton) NewPose() *Pose {
	p := &Pose{ref: s, local: make([]geom.Transform, len(s.bones))}
	p.Reset()
	return p
}

// Reset restores the bind pose.
func (p *Pose) Reset() {
	for i, b := range p.ref.bones {
		p.local[i] = b.Bind
	}
}

// Clone returns an independent copy of the pose.
func (p *Pose) Clone() *Pose {
	c := &Pose{ref: p.ref, local: make([]geom.Transform, len(p.local))}
	copy(c.local, p.local)
	return c
}

// Skeleton returns the reference hierarchy.
func (p *Pose) Skeleton() *Skeleton { return p.ref }

// FindBone returns the index of the named bone.
func (p *Pose) FindBone(name string) (int, bool) { return p.ref.Find(name) }

// Parent returns the parent index of bone i, or None.
func (p *Pose) Parent(i int) int { return p.ref.Parent(i) }

// BoneCount returns the number of bones.
func (p *Pose) BoneCount() int { return p.ref.Len() }

// LocalTransform returns bone i relative to its parent.
func (p *Pose) LocalTransform(i int) geom.Transform { return p.local[i] }

// SetLocalTransform replaces bone i's parent-relative transform.
func (p *Pose) SetLocalTransform(i int, t geom.Transform) { p.local[i] = t }

// BindLocalTransform returns bone i's reference transform.
func (p *Pose) BindLocalTransform(i int) geom.Transform { return p.ref.bones[i].Bind }

// ComponentTransform resolves bone i into component space by walking up
// to the root.
func (p *Pose) ComponentTransform(i int) geom.Transform {
	t := p.local[i]
	for parent := p.ref.bones[i].Parent; parent != None; parent = p.ref.bones[parent].Parent {
		t = geom.Compose(p.local[parent], t)
	}
	return t
}

// WorldPosition returns the component-space location of bone i.
func (p *Pose) WorldPosition(i int) r3.Vector {
	return p.ComponentTransform(i).Translation
}

// ComponentTransforms resolves every bone into component space.
func (p *Pose) ComponentTransforms() []geom.Transform {
	return chain(p.ref.bones, p.local)
}

// Named returns the component-space transforms keyed by bone name.
func (p *Pose) Named() map[string]geom.Transform {
	all := p.ComponentTransforms()
	out := make(map[string]geom.Transform, len(all))
	for i, t := range all {
		out[p.ref.bones[i].Name] = t
	}
	return out
}
