package geom

import (
	"math"

	"github.com/golang/geo/r3"
)

// Canonical axes.
var (
	Forward = r3.Vector{X: 1}
	Right   = r3.Vector{Y: 1}
	Up      = r3.Vector{Z: 1}
)

// Vec builds a vector from components.
func Vec(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// SafeNormal2D projects v onto the ground plane and normalizes it.
// It returns the zero vector when the projection is degenerate.
func SafeNormal2D(v r3.Vector) r3.Vector {
	h := r3.Vector{X: v.X, Y: v.Y}
	n := h.Norm()
	if n < NearlyZero {
		return r3.Vector{}
	}
	return h.Mul(1 / n)
}

// SafeNormal normalizes v, returning the zero vector for degenerate input.
func SafeNormal(v r3.Vector) r3.Vector {
	n := v.Norm()
	if n < NearlyZero || IsNaN(v.X, v.Y, v.Z) {
		return r3.Vector{}
	}
	return v.Mul(1 / n)
}

// IsZero reports whether v has no usable length.
func IsZero(v r3.Vector) bool {
	return v.Norm() < NearlyZero
}

// Heading returns the signed angle in degrees from the canonical reference
// axis to dir around Up, using atan2 of the cross and dot products.
// dir is expected to lie in the ground plane.
func Heading(ref, dir r3.Vector) float64 {
	return Degrees(math.Atan2(ref.Cross(dir).Dot(Up), dir.Dot(ref)))
}

// SignedAngle returns the unsigned angle between a and b in degrees, negated
// when the rotation from a to b runs against tangent.
func SignedAngle(a, b, tangent r3.Vector) float64 {
	c := a.Cross(b)
	angle := Degrees(math.Atan2(c.Norm(), a.Dot(b)))
	if tangent.Dot(c) < 0 {
		return -angle
	}
	return angle
}

// NearlyEqual compares two vectors component-wise within tol.
func NearlyEqual(a, b r3.Vector, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}
