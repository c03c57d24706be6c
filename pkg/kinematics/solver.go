package kinematics

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/teslashibe/go-technocrane/pkg/beams"
	"github.com/teslashibe/go-technocrane/pkg/geom"
	"github.com/teslashibe/go-technocrane/pkg/joints"
	"github.com/teslashibe/go-technocrane/pkg/preset"
	"gonum.org/v1/gonum/num/quat"
)

// RigForward is the reference axis column yaw is measured from.
// A target straight along it gives a yaw of exactly 90 degrees.
var RigForward = r3.Vector{X: -1}

const (
	// yawReference is the rig-specific offset added to the heading.
	yawReference = 90.0

	// rollReference is the beam roll at which the arm is level.
	rollReference = 90.0
)

// Strategy selects how yaw, tilt and extension are solved.
type Strategy int

const (
	// StrategyClosedForm solves yaw and tilt directly and allocates the
	// extension across the beams in one pass.
	StrategyClosedForm Strategy = iota

	// StrategyRelaxation nudges yaw, tilt and beam length toward the target
	// over a fixed number of iterations. It suits rigs with no closed form.
	StrategyRelaxation
)

var strategyNames = map[Strategy]string{
	StrategyClosedForm: "closed-form",
	StrategyRelaxation: "relaxation",
}

// String implements fmt.Stringer.
func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy resolves a strategy by name.
func ParseStrategy(name string) (Strategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return StrategyClosedForm, nil
	}
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Options tunes a Solver.
type Options struct {
	Strategy Strategy

	// ReextendThreshold is how far the head may sit from the target before
	// the beams are reallocated.
	ReextendThreshold float64

	// Iterations bounds the relaxation strategy.
	Iterations int
}

// DefaultOptions returns the closed-form solver settings.
func DefaultOptions() Options {
	return Options{
		Strategy:          StrategyClosedForm,
		ReextendThreshold: 0.1,
		Iterations:        32,
	}
}

// Solver computes crane joint transforms. It caches the calibration of the
// last skeleton it saw; a Solver must not be shared between goroutines.
type Solver struct {
	opts  Options
	calib *Calibration
}

// NewSolver returns a solver. Zero thresholds take their defaults.
func NewSolver(opts Options) *Solver {
	def := DefaultOptions()
	if opts.ReextendThreshold <= 0 {
		opts.ReextendThreshold = def.ReextendThreshold
	}
	if opts.Iterations <= 0 {
		opts.Iterations = def.Iterations
	}
	return &Solver{opts: opts}
}

// Options returns the solver settings.
func (s *Solver) Options() Options {
	return s.opts
}

// Invalidate drops the cached calibration. Call it after bones are
// remapped or the skeleton asset changes.
func (s *Solver) Invalidate() {
	s.calib = nil
}

// Calibration returns the cached calibration for skel, measuring it on
// first use or when the bone count changed.
func (s *Solver) Calibration(skel Skeleton) *Calibration {
	if s.calib == nil || s.calib.boneCount != skel.BoneCount() {
		s.calib = Calibrate(skel)
	}
	return s.calib
}

// Compute solves one frame with a throwaway closed-form solver.
func Compute(p *preset.Preset, skel Skeleton, frame TargetFrame) (SimulationResult, error) {
	return NewSolver(DefaultOptions()).Compute(p, skel, frame)
}

// Compute poses skel so that its head reaches frame.Position.
//
// A nil preset or an empty skeleton returns an error without touching the
// pose. Every other condition is reported as a Warning in the result and
// only skips the step it affects.
func (s *Solver) Compute(p *preset.Preset, skel Skeleton, frame TargetFrame) (SimulationResult, error) {
	if p == nil {
		return SimulationResult{}, ErrConfigurationMissing
	}
	if skel == nil || skel.BoneCount() == 0 {
		return SimulationResult{}, ErrNoSkeleton
	}

	st := &solve{
		skel:    skel,
		calib:   s.Calibration(skel),
		preset:  p,
		frame:   frame,
		opts:    s.opts,
		yawBone: -1,
	}

	st.placeBase()
	st.resolveYaw()
	switch s.opts.Strategy {
	case StrategyRelaxation:
		st.relax()
	default:
		st.closedForm()
	}
	st.levelGravity()
	st.orientNeck()
	st.orientHead()

	return st.finish(), nil
}

// solve carries the state of one Compute call.
type solve struct {
	skel   Skeleton
	calib  *Calibration
	preset *preset.Preset
	frame  TargetFrame
	opts   Options

	yawBone int
	tilt    float64
	tiltSet bool

	res SimulationResult
}

func (st *solve) warn(w Warning) {
	st.res.Warnings = append(st.res.Warnings, w)
}

// goal is where the neck has to be for the head to land on the target.
func (st *solve) goal() r3.Vector {
	return st.frame.Position.Add(st.calib.HeadOffset())
}

func (st *solve) placeBase() {
	bone, ok := st.calib.Bone(joints.Base)
	if !ok {
		st.warn(missing(StepBase, joints.Base))
		return
	}
	if !geom.IsFinite(st.frame.TrackPosition) {
		st.warn(degenerate(StepBase))
		return
	}
	pos := geom.Vec(0, st.frame.TrackPosition, st.preset.GroundOffset)
	st.skel.SetLocalTransform(bone, st.skel.LocalTransform(bone).WithTranslation(pos))
}

func (st *solve) resolveYaw() {
	id := st.preset.YawJointID()
	if bone, ok := st.calib.Bone(id); ok {
		st.yawBone = bone
		return
	}
	st.warn(missing(StepYaw, id))
	if id != joints.Columns {
		if bone, ok := st.calib.Bone(joints.Columns); ok {
			st.yawBone = bone
		}
	}
}

func (st *solve) closedForm() {
	pivot, ok := st.calib.Bone(joints.Beams)
	if !ok {
		for _, step := range []Step{StepYaw, StepTilt, StepExtension} {
			st.warn(missing(step, joints.Beams))
		}
		return
	}
	goal := st.goal()
	if !finiteGoal(goal) {
		for _, step := range []Step{StepYaw, StepTilt, StepExtension} {
			st.warn(degenerate(step))
		}
		return
	}

	st.aimYaw(pivot, goal)
	st.aimTilt(pivot, goal)
	st.extend(pivot, goal)
}

func (st *solve) aimYaw(pivot int, goal r3.Vector) {
	if st.yawBone < 0 {
		return
	}
	facing := geom.SafeNormal2D(goal.Sub(st.skel.WorldPosition(pivot)))
	if geom.IsZero(facing) {
		st.warn(degenerate(StepYaw))
		return
	}
	yaw := yawReference + geom.Heading(RigForward, facing)
	if math.IsNaN(yaw) {
		st.warn(degenerate(StepYaw))
		return
	}
	editRotator(st.skel, st.yawBone, func(r *geom.Rotator) { r.Yaw = yaw })
}

func (st *solve) aimTilt(pivot int, goal r3.Vector) {
	at := st.skel.WorldPosition(pivot)
	facing := geom.SafeNormal2D(goal.Sub(at))
	dir := geom.SafeNormal(goal.Sub(at))
	if geom.IsZero(facing) || geom.IsZero(dir) {
		st.warn(degenerate(StepTilt))
		return
	}

	tilt := geom.Degrees(math.Acos(geom.Clamp(dir.Dot(facing), -1, 1)))
	if math.IsNaN(tilt) {
		st.warn(degenerate(StepTilt))
		return
	}
	if goal.Z < at.Z {
		tilt = -tilt
	}
	tilt = geom.Clamp(tilt, -st.preset.TiltMin, st.preset.TiltMax)

	editRotator(st.skel, pivot, func(r *geom.Rotator) { r.Roll = rollReference + tilt })
	st.tilt, st.tiltSet = tilt, true
}

func (st *solve) extend(pivot int, goal r3.Vector) {
	length := goal.Sub(st.skel.WorldPosition(pivot)).Norm()
	if !geom.IsFinite(length) {
		st.warn(degenerate(StepExtension))
		return
	}
	st.res.ExtensionLength = length

	if head, ok := st.calib.Bone(joints.Head); ok {
		if st.skel.WorldPosition(head).Sub(st.frame.Position).Norm() <= st.opts.ReextendThreshold {
			return
		}
	}

	segs := st.calib.segments()
	out := beams.Allocate(segs, length-st.calib.ArmTip, st.calib.BaseLength)
	for i := range segs {
		setExtension(st.skel, segs[i].Bone, segs[i].Adjustment)
	}

	st.res.Reextended = true
	st.res.Residual = out.Residual
	if out.Stalled {
		st.warn(Warning{Step: StepExtension, Joint: -1, Err: ErrAllocatorStalled, Residual: out.Residual})
	}
}

// levelGravity gives the counterweight the inverse of the beams' local
// rotation. For a beam rotation about a single axis this is the negated
// Euler rotation.
func (st *solve) levelGravity() {
	gravity, ok := st.calib.Bone(joints.Gravity)
	if !ok {
		st.warn(missing(StepGravity, joints.Gravity))
		return
	}
	pivot, ok := st.calib.Bone(joints.Beams)
	if !ok {
		st.warn(missing(StepGravity, joints.Beams))
		return
	}
	counter := geom.Inverse(st.skel.LocalTransform(pivot).Rotation)
	st.skel.SetLocalTransform(gravity, st.skel.LocalTransform(gravity).WithRotation(counter))
}

// orientNeck places the neck at the frame's rig-space rotation.
func (st *solve) orientNeck() {
	neck, ok := st.calib.Bone(joints.Neck)
	if !ok {
		st.warn(missing(StepNeck, joints.Neck))
		return
	}
	q := st.frame.NeckRotation
	if geom.IsNaN(q.Real, q.Imag, q.Jmag, q.Kmag) {
		st.warn(degenerate(StepNeck))
		return
	}

	parent := geom.Identity
	if p := st.skel.Parent(neck); p >= 0 {
		parent = componentRotation(st.skel, p)
	}
	local := quat.Mul(geom.Inverse(parent), geom.Normalize(q))
	st.skel.SetLocalTransform(neck, st.skel.LocalTransform(neck).WithRotation(local))
}

// orientHead applies only the raw tilt; pan is carried by the column and
// the neck.
func (st *solve) orientHead() {
	head, ok := st.calib.Bone(joints.Head)
	if !ok {
		st.warn(missing(StepHead, joints.Head))
		return
	}
	tilt := st.frame.Tilt()
	if math.IsNaN(tilt) {
		st.warn(degenerate(StepHead))
		return
	}
	rot := geom.Rotator{Roll: tilt}.Quat()
	st.skel.SetLocalTransform(head, st.skel.LocalTransform(head).WithRotation(rot))
}

func (st *solve) finish() SimulationResult {
	st.res.GroundHeight = st.frame.Position.Z

	switch pivot, ok := st.calib.Bone(joints.Beams); {
	case st.tiltSet:
		st.res.TiltAngle = st.tilt
	case ok:
		st.res.TiltAngle = st.skel.LocalTransform(pivot).Rotator().Roll - rollReference
	}
	if st.yawBone >= 0 {
		st.res.ColumnYaw = st.skel.LocalTransform(st.yawBone).Rotator().Yaw
	}
	return st.res
}

func finiteGoal(v r3.Vector) bool {
	return geom.IsFinite(v.X, v.Y, v.Z)
}

// editRotator rewrites a bone's local rotation through its Euler angles.
func editRotator(skel Skeleton, bone int, edit func(*geom.Rotator)) {
	t := skel.LocalTransform(bone)
	r := t.Rotator()
	edit(&r)
	skel.SetLocalTransform(bone, t.WithRotation(r.Quat()))
}

// extension reads how far a beam segment sticks out of its parent.
func extension(skel Skeleton, bone int) float64 {
	return -skel.LocalTransform(bone).Translation.Z
}

// setExtension places a beam segment along its parent's -Z axis.
func setExtension(skel Skeleton, bone int, length float64) {
	t := skel.LocalTransform(bone)
	tr := t.Translation
	tr.Z = -length
	skel.SetLocalTransform(bone, t.WithTranslation(tr))
}

// componentRotation composes local rotations up to the root.
func componentRotation(skel Skeleton, bone int) quat.Number {
	q := skel.LocalTransform(bone).Rotation
	for p := skel.Parent(bone); p >= 0; p = skel.Parent(p) {
		q = quat.Mul(skel.LocalTransform(p).Rotation, q)
	}
	return geom.Normalize(q)
}
