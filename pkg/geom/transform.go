package geom

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Transform is a rigid transform: rotation followed by translation.
// Crane bones carry no scale.
type Transform struct {
	Rotation    quat.Number `json:"rotation"`
	Translation r3.Vector   `json:"translation"`
}

// IdentityTransform returns the transform that changes nothing.
func IdentityTransform() Transform {
	return Transform{Rotation: Identity}
}

// NewTransform builds a transform from a rotator and a translation.
func NewTransform(rot Rotator, tr r3.Vector) Transform {
	return Transform{Rotation: rot.Quat(), Translation: tr}
}

// Compose returns parent * local: local expressed in the parent's space.
func Compose(parent, local Transform) Transform {
	return Transform{
		Rotation:    Normalize(quat.Mul(parent.Rotation, local.Rotation)),
		Translation: parent.Translation.Add(Rotate(parent.Rotation, local.Translation)),
	}
}

// Inverse returns the transform undoing t.
func (t Transform) Inverse() Transform {
	inv := Inverse(t.Rotation)
	return Transform{
		Rotation:    inv,
		Translation: Rotate(inv, t.Translation.Mul(-1)),
	}
}

// RelativeTo expresses t in the space of parent, so that
// Compose(parent, t.RelativeTo(parent)) == t.
func (t Transform) RelativeTo(parent Transform) Transform {
	return Compose(parent.Inverse(), t)
}

// Point maps p through t.
func (t Transform) Point(p r3.Vector) r3.Vector {
	return t.Translation.Add(Rotate(t.Rotation, p))
}

// Direction rotates d by t without translating it.
func (t Transform) Direction(d r3.Vector) r3.Vector {
	return Rotate(t.Rotation, d)
}

// Rotator returns the transform's orientation in degrees.
func (t Transform) Rotator() Rotator {
	return ToRotator(t.Rotation)
}

// ForwardVector, RightVector and UpVector return the rotated canonical axes.
func (t Transform) ForwardVector() r3.Vector { return Rotate(t.Rotation, Forward) }
func (t Transform) RightVector() r3.Vector   { return Rotate(t.Rotation, Right) }
func (t Transform) UpVector() r3.Vector      { return Rotate(t.Rotation, Up) }

// WithRotation returns a copy of t with its rotation replaced.
func (t Transform) WithRotation(q quat.Number) Transform {
	t.Rotation = Normalize(q)
	return t
}

// WithTranslation returns a copy of t with its translation replaced.
func (t Transform) WithTranslation(v r3.Vector) Transform {
	t.Translation = v
	return t
}

// HasNaN reports whether any component of t is NaN.
func (t Transform) HasNaN() bool {
	q, v := t.Rotation, t.Translation
	return IsNaN(q.Real, q.Imag, q.Jmag, q.Kmag, v.X, v.Y, v.Z)
}
