// Package geom holds the rigid-body math shared by the crane solver:
// vectors from golang/geo, quaternions from gonum, and a degree-based
// Rotator matching how crane angles are reported by hardware.
//
// Frame convention: X forward, Y right, Z up. Roll turns about +X and yaw
// about +Z by the right-hand rule, so yaw 90 turns forward onto right.
// Positive pitch raises the nose. A Rotator is applied as
// yaw * pitch * roll, so roll acts first in the body frame.
package geom

import "math"

// NearlyZero is the tolerance below which lengths and deltas count as zero.
const NearlyZero = 1e-8

// Degrees converts radians to degrees.
func Degrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}

// Radians converts degrees to radians.
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsNaN reports whether any of the values is NaN.
func IsNaN(vals ...float64) bool {
	for _, v := range vals {
		if v != v {
			return true
		}
	}
	return false
}

// IsFinite reports whether every value is neither NaN nor infinite.
func IsFinite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// NormalizeAxis wraps an angle in degrees into (-180, 180].
func NormalizeAxis(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	return deg
}
