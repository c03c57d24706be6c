package kinematics

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/teslashibe/go-technocrane/pkg/beams"
	"github.com/teslashibe/go-technocrane/pkg/geom"
	"github.com/teslashibe/go-technocrane/pkg/joints"
)

const (
	// convergedAngle is the smallest angle step, in degrees, worth applying.
	convergedAngle = 0.01

	// lengthGain is the share of the remaining length error taken per pass.
	lengthGain = 0.15

	// minLengthStep is the smallest beam step worth applying.
	minLengthStep = 0.1

	// lengthWindow is the arm error, in degrees, under which length is
	// adjusted.
	lengthWindow = 60.0
)

// relax nudges yaw, tilt and beam length toward the goal, measuring the
// arm as the pivot-to-neck vector. It stops early once a pass moves
// nothing.
func (st *solve) relax() {
	pivot, ok := st.calib.Bone(joints.Beams)
	if !ok {
		for _, step := range []Step{StepYaw, StepTilt, StepExtension} {
			st.warn(missing(step, joints.Beams))
		}
		return
	}
	neck, ok := st.calib.Bone(joints.Neck)
	if !ok {
		st.warn(missing(StepExtension, joints.Neck))
		return
	}

	goal := st.goal()
	if !finiteGoal(goal) {
		for _, step := range []Step{StepYaw, StepTilt, StepExtension} {
			st.warn(degenerate(step))
		}
		return
	}
	arm := func() (want, cur r3.Vector) {
		at := st.skel.WorldPosition(pivot)
		return goal.Sub(at), st.skel.WorldPosition(neck).Sub(at)
	}

	for i := 0; i < st.opts.Iterations; i++ {
		moved := false

		if st.yawBone >= 0 {
			want, cur := arm()
			delta := geom.SignedAngle(geom.SafeNormal2D(cur), geom.SafeNormal2D(want), geom.Up)
			if !math.IsNaN(delta) && math.Abs(delta) > convergedAngle {
				editRotator(st.skel, st.yawBone, func(r *geom.Rotator) { r.Yaw += delta })
				moved = true
			}
		}

		want, cur := arm()
		delta := geom.Degrees(elevation(want) - elevation(cur))
		if !math.IsNaN(delta) && math.Abs(delta) > convergedAngle {
			lo, hi := rollReference-st.preset.TiltMin, rollReference+st.preset.TiltMax
			editRotator(st.skel, pivot, func(r *geom.Rotator) {
				r.Roll = geom.Clamp(r.Roll+delta, lo, hi)
			})
			moved = true
		}

		want, cur = arm()
		errAngle := geom.Degrees(math.Acos(geom.Clamp(geom.SafeNormal(cur).Dot(geom.SafeNormal(want)), -1, 1)))
		if errAngle < lengthWindow {
			step := lengthGain * (want.Norm() - cur.Norm())
			if math.Abs(step) > minLengthStep {
				for _, seg := range st.calib.Segments {
					next := geom.Clamp(extension(st.skel, seg.Bone)+step, beams.DefaultMinLength, seg.MaxLength)
					setExtension(st.skel, seg.Bone, next)
				}
				st.res.Reextended = true
				moved = true
			}
		}

		if !moved {
			break
		}
	}

	want, cur := arm()
	st.res.ExtensionLength = want.Norm()
	st.res.Residual = want.Norm() - cur.Norm()
}

// elevation returns the angle of v above the ground plane in radians.
func elevation(v r3.Vector) float64 {
	return math.Asin(geom.Clamp(geom.SafeNormal(v).Z, -1, 1))
}
