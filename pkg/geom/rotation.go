package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Identity is the unit quaternion.
var Identity = quat.Number{Real: 1}

// Rotator is an orientation as roll, pitch and yaw in degrees.
type Rotator struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Euler returns the rotator packed as (roll, pitch, yaw).
func (r Rotator) Euler() r3.Vector {
	return r3.Vector{X: r.Roll, Y: r.Pitch, Z: r.Yaw}
}

// Quat converts the rotator to a unit quaternion. Positive pitch raises
// the nose, so it turns about -Right.
func (r Rotator) Quat() quat.Number {
	qx := AxisAngle(Forward, Radians(r.Roll))
	qy := AxisAngle(Right, -Radians(r.Pitch))
	qz := AxisAngle(Up, Radians(r.Yaw))
	return quat.Mul(qz, quat.Mul(qy, qx))
}

// HasNaN reports whether any angle is NaN.
func (r Rotator) HasNaN() bool {
	return IsNaN(r.Roll, r.Pitch, r.Yaw)
}

// FromEuler builds a quaternion from a (roll, pitch, yaw) vector in degrees.
func FromEuler(e r3.Vector) quat.Number {
	return Rotator{Roll: e.X, Pitch: e.Y, Yaw: e.Z}.Quat()
}

// AxisAngle builds the rotation of angle radians about axis.
func AxisAngle(axis r3.Vector, radians float64) quat.Number {
	axis = SafeNormal(axis)
	s := math.Sin(radians / 2)
	return quat.Number{
		Real: math.Cos(radians / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// Normalize scales q to unit length. A zero quaternion becomes Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < NearlyZero || math.IsNaN(n) {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Inverse returns the inverse of a unit quaternion.
func Inverse(q quat.Number) quat.Number {
	return quat.Conj(q)
}

// Rotate applies q to v.
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// ToRotator extracts roll, pitch and yaw in degrees from q.
// The decomposition is the inverse of Rotator.Quat.
func ToRotator(q quat.Number) Rotator {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	sinp := 2 * (z*x - w*y)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))

	return Rotator{Roll: Degrees(roll), Pitch: Degrees(pitch), Yaw: Degrees(yaw)}
}

// AngleBetween returns the rotation angle in degrees separating a and b.
// It uses atan2 of the vector and scalar parts, which stays exact for
// nearly equal rotations where acos of the scalar part does not.
func AngleBetween(a, b quat.Number) float64 {
	d := quat.Mul(quat.Conj(Normalize(a)), Normalize(b))
	v := math.Sqrt(d.Imag*d.Imag + d.Jmag*d.Jmag + d.Kmag*d.Kmag)
	return Degrees(2 * math.Atan2(v, math.Abs(d.Real)))
}

// FindBetween returns the shortest rotation taking direction a onto b.
// Degenerate inputs yield Identity.
func FindBetween(a, b r3.Vector) quat.Number {
	a, b = SafeNormal(a), SafeNormal(b)
	if IsZero(a) || IsZero(b) {
		return Identity
	}
	d := Clamp(a.Dot(b), -1, 1)
	axis := a.Cross(b)
	if IsZero(axis) {
		if d > 0 {
			return Identity
		}
		// Opposite directions: pick any perpendicular axis.
		axis = a.Cross(Forward)
		if IsZero(axis) {
			axis = a.Cross(Right)
		}
		return AxisAngle(axis, math.Pi)
	}
	return AxisAngle(axis, math.Acos(d))
}

// ToAxisAngle splits q into a unit axis and an angle in degrees.
func ToAxisAngle(q quat.Number) (r3.Vector, float64) {
	q = Normalize(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	angle := 2 * math.Acos(Clamp(q.Real, -1, 1))
	s := math.Sqrt(1 - q.Real*q.Real)
	if s < NearlyZero {
		return Forward, 0
	}
	return r3.Vector{X: q.Imag / s, Y: q.Jmag / s, Z: q.Kmag / s}, Degrees(angle)
}
