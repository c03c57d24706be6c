package kinematics

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/teslashibe/go-technocrane/pkg/geom"
	"github.com/teslashibe/go-technocrane/pkg/joints"
	"github.com/teslashibe/go-technocrane/pkg/preset"
	"github.com/teslashibe/go-technocrane/pkg/skeleton"
)

const floatTolerance = 1e-6

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

// pivotZ is the beam pivot height of the reference crane on a 36 cm base.
const pivotZ = 196.0

func newRig() (*skeleton.Pose, *preset.Preset) {
	p := preset.SuperTechno50PlusPreset()
	return skeleton.NewCrane(skeleton.DefaultCraneOptions()).NewPose(), &p
}

func frameAt(pos r3.Vector) TargetFrame {
	return TargetFrame{
		Position:     pos,
		NeckRotation: geom.Rotator{Roll: 90, Yaw: 180}.Quat(),
	}
}

func boneOf(t *testing.T, pose *skeleton.Pose, id joints.JointID) int {
	t.Helper()
	b, ok := pose.FindBone(joints.Name(id))
	if !ok {
		t.Fatalf("skeleton has no %v", id)
	}
	return b
}

func assertNoNaN(t *testing.T, pose *skeleton.Pose) {
	t.Helper()
	for i, tr := range pose.ComponentTransforms() {
		if tr.HasNaN() {
			t.Errorf("bone %d has NaN transform %+v", i, tr)
		}
	}
}

func TestCompute_YawAlongRigForward(t *testing.T) {
	pose, p := newRig()

	res, err := Compute(p, pose, frameAt(geom.Vec(-500, 0, pivotZ-60)))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !floatEquals(res.ColumnYaw, 90) {
		t.Errorf("ColumnYaw = %v, want 90", res.ColumnYaw)
	}
	if !floatEquals(res.TiltAngle, 0) {
		t.Errorf("TiltAngle = %v, want 0 for a level target", res.TiltAngle)
	}
}

func TestCompute_TiltClamp(t *testing.T) {
	tests := []struct {
		name   string
		target r3.Vector
		want   float64
	}{
		{"far above", geom.Vec(-100, 0, 5000), 55},
		{"far below", geom.Vec(-100, 0, -5000), -55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pose, p := newRig()
			res, err := Compute(p, pose, frameAt(tt.target))
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if !floatEquals(res.TiltAngle, tt.want) {
				t.Errorf("TiltAngle = %v, want %v", res.TiltAngle, tt.want)
			}
			roll := pose.LocalTransform(boneOf(t, pose, joints.Beams)).Rotator().Roll
			if !floatEquals(roll, 90+tt.want) {
				t.Errorf("beam roll = %v, want %v", roll, 90+tt.want)
			}
		})
	}
}

func TestCompute_GravityStaysLevel(t *testing.T) {
	targets := []r3.Vector{
		geom.Vec(0, 500, 100),
		geom.Vec(-300, -200, 400),
		geom.Vec(250, 100, -50),
		geom.Vec(-100, 0, 5000),
	}
	for _, target := range targets {
		pose, p := newRig()
		if _, err := Compute(p, pose, frameAt(target)); err != nil {
			t.Fatalf("Compute(%v): %v", target, err)
		}
		rot := pose.ComponentTransform(boneOf(t, pose, joints.Gravity)).Rotator()
		if !floatEquals(rot.Roll, 0) || !floatEquals(rot.Pitch, 0) {
			t.Errorf("target %v: gravity rotation %+v, want level", target, rot)
		}
	}
}

func TestCompute_EndToEnd(t *testing.T) {
	pose, p := newRig()
	target := geom.Vec(0, 500, 100)

	res, err := Compute(p, pose, frameAt(target))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if res.GroundHeight != 100 {
		t.Errorf("GroundHeight = %v, want 100", res.GroundHeight)
	}
	if !floatEquals(res.ColumnYaw, 0) {
		t.Errorf("ColumnYaw = %v, want 0", res.ColumnYaw)
	}
	if res.TiltAngle < -p.TiltMin || res.TiltAngle > p.TiltMax {
		t.Errorf("TiltAngle = %v outside limits", res.TiltAngle)
	}
	if !res.Reextended {
		t.Error("expected the beams to be reallocated")
	}

	pivot := pose.WorldPosition(boneOf(t, pose, joints.Beams))
	neck := pose.WorldPosition(boneOf(t, pose, joints.Neck))
	arm := geom.SafeNormal(neck.Sub(pivot))
	if arm.Y < 0.99 {
		t.Errorf("arm direction = %v, want facing +Y", arm)
	}

	head := pose.WorldPosition(boneOf(t, pose, joints.Head))
	if d := head.Sub(target).Norm(); d >= 0.1 {
		t.Errorf("head %v is %v from target", head, d)
	}

	wantLength := geom.Vec(0, 500, 160).Sub(geom.Vec(0, 0, pivotZ)).Norm()
	if !floatEquals(res.ExtensionLength, wantLength) {
		t.Errorf("ExtensionLength = %v, want %v", res.ExtensionLength, wantLength)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Messages())
	}
	assertNoNaN(t, pose)
}

func TestCompute_FollowsTrackPosition(t *testing.T) {
	pose, p := newRig()
	frame := frameAt(geom.Vec(-200, 600, 150))
	frame.TrackPosition = 250

	if _, err := Compute(p, pose, frame); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	base := pose.WorldPosition(boneOf(t, pose, joints.Base))
	if !geom.NearlyEqual(base, geom.Vec(0, 250, 36), floatTolerance) {
		t.Errorf("base = %v, want (0,250,36)", base)
	}
	head := pose.WorldPosition(boneOf(t, pose, joints.Head))
	if d := head.Sub(frame.Position).Norm(); d >= 0.1 {
		t.Errorf("head is %v from target", d)
	}
}

func TestCompute_SkipsReextensionOnTarget(t *testing.T) {
	pose, p := newRig()
	s := NewSolver(DefaultOptions())
	frame := frameAt(geom.Vec(0, 500, 100))

	if _, err := s.Compute(p, pose, frame); err != nil {
		t.Fatalf("first Compute: %v", err)
	}
	res, err := s.Compute(p, pose, frame)
	if err != nil {
		t.Fatalf("second Compute: %v", err)
	}
	if res.Reextended {
		t.Error("second solve of the same target should keep the beams")
	}
}

func TestCompute_DegenerateTarget(t *testing.T) {
	pose, p := newRig()
	s := NewSolver(DefaultOptions())
	if _, err := s.Compute(p, pose, frameAt(geom.Vec(0, 500, 100))); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	yawBone := boneOf(t, pose, joints.Columns)
	beamBone := boneOf(t, pose, joints.Beams)
	yawBefore := pose.LocalTransform(yawBone).Rotation
	beamBefore := pose.LocalTransform(beamBone).Rotation

	for _, target := range []r3.Vector{
		geom.Vec(0, 0, pivotZ),
		geom.Vec(0, 0, pivotZ-60),
	} {
		res, err := s.Compute(p, pose, frameAt(target))
		if err != nil {
			t.Fatalf("Compute(%v): %v", target, err)
		}
		if !res.Has(ErrDegenerateGeometry) {
			t.Errorf("target %v: expected a degenerate geometry warning, got %v", target, res.Messages())
		}
		if geom.AngleBetween(yawBefore, pose.LocalTransform(yawBone).Rotation) > floatTolerance {
			t.Errorf("target %v: yaw joint moved", target)
		}
		if geom.AngleBetween(beamBefore, pose.LocalTransform(beamBone).Rotation) > floatTolerance {
			t.Errorf("target %v: beam joint moved", target)
		}
		if math.IsNaN(res.TiltAngle) || math.IsNaN(res.ColumnYaw) {
			t.Errorf("target %v: NaN in result %+v", target, res)
		}
		assertNoNaN(t, pose)
	}
}

func TestCompute_NonFiniteTarget(t *testing.T) {
	for _, strategy := range []Strategy{StrategyClosedForm, StrategyRelaxation} {
		opts := DefaultOptions()
		opts.Strategy = strategy
		s := NewSolver(opts)
		pose, p := newRig()
		if _, err := s.Compute(p, pose, frameAt(geom.Vec(0, 500, 100))); err != nil {
			t.Fatalf("%v: Compute: %v", strategy, err)
		}

		before := make(map[joints.JointID]geom.Transform)
		for _, id := range joints.Extending() {
			if b, ok := pose.FindBone(joints.Name(id)); ok {
				before[id] = pose.LocalTransform(b)
			}
		}

		for _, target := range []r3.Vector{
			geom.Vec(math.NaN(), 500, 100),
			geom.Vec(0, math.Inf(1), 100),
		} {
			res, err := s.Compute(p, pose, frameAt(target))
			if err != nil {
				t.Fatalf("%v: Compute(%v): %v", strategy, target, err)
			}
			if !res.Has(ErrDegenerateGeometry) {
				t.Errorf("%v: target %v: expected a degenerate geometry warning, got %v", strategy, target, res.Messages())
			}
			if res.Reextended {
				t.Errorf("%v: target %v: beams re-extended", strategy, target)
			}
			for id, tr := range before {
				got := pose.LocalTransform(boneOf(t, pose, id)).Translation
				if !geom.NearlyEqual(got, tr.Translation, floatTolerance) {
					t.Errorf("%v: target %v: %v moved to %v", strategy, target, id, got)
				}
			}
			assertNoNaN(t, pose)
		}
	}
}

func TestCompute_NonFiniteTrackPosition(t *testing.T) {
	pose, p := newRig()
	frame := frameAt(geom.Vec(-200, 600, 150))
	frame.TrackPosition = math.NaN()

	res, err := Compute(p, pose, frame)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if w.Step == StepBase && errors.Is(w, ErrDegenerateGeometry) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a degenerate base warning, got %v", res.Messages())
	}
	assertNoNaN(t, pose)
}

func TestCompute_BaseStandsOnGroundOffset(t *testing.T) {
	pose, p := newRig()
	p.TracksSupport = true
	p.TrackOffset = 20

	if _, err := Compute(p, pose, frameAt(geom.Vec(-200, 600, 150))); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	base := pose.WorldPosition(boneOf(t, pose, joints.Base))
	if !floatEquals(base.Z, p.GroundOffset) {
		t.Errorf("base z = %v, want ground offset %v", base.Z, p.GroundOffset)
	}
}

func TestCompute_MissingPreset(t *testing.T) {
	pose, _ := newRig()
	before := pose.Clone()

	_, err := Compute(nil, pose, frameAt(geom.Vec(0, 500, 100)))
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("err = %v, want ErrConfigurationMissing", err)
	}
	for i := 0; i < pose.BoneCount(); i++ {
		if pose.LocalTransform(i) != before.LocalTransform(i) {
			t.Errorf("bone %d changed without a preset", i)
		}
	}
}

func TestCompute_NoSkeleton(t *testing.T) {
	p := preset.TechnoDollyPreset()
	if _, err := Compute(&p, nil, frameAt(geom.Vec(0, 500, 100))); !errors.Is(err, ErrNoSkeleton) {
		t.Errorf("err = %v, want ErrNoSkeleton", err)
	}
}

func TestCompute_PartialSkeleton(t *testing.T) {
	id := geom.IdentityTransform()
	skel, err := skeleton.New([]skeleton.Bone{
		{Name: "jointRoot", Parent: skeleton.None, Bind: id},
		{Name: "jointBeams", Parent: 0, Bind: id.WithTranslation(geom.Vec(0, 0, 100))},
		{Name: "jointBeam1", Parent: 1, Bind: id.WithTranslation(geom.Vec(0, 0, -150))},
		{Name: "jointNeck", Parent: 2, Bind: id.WithTranslation(geom.Vec(0, 0, -30))},
		{Name: "jointHead", Parent: 3, Bind: id.WithTranslation(geom.Vec(0, -60, 0))},
	})
	if err != nil {
		t.Fatalf("skeleton.New: %v", err)
	}
	pose := skel.NewPose()
	p := preset.TechnoDollyPreset()

	res, err := Compute(&p, pose, frameAt(geom.Vec(-150, 0, 80)))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !res.Has(ErrJointNotFound) {
		t.Fatalf("expected joint-not-found warnings, got %v", res.Messages())
	}

	var sawColumns, sawGravity bool
	for _, w := range res.Warnings {
		switch {
		case w.Step == StepYaw && w.Joint == joints.Columns:
			sawColumns = true
		case w.Step == StepGravity && w.Joint == joints.Gravity:
			sawGravity = true
		}
	}
	if !sawColumns || !sawGravity {
		t.Errorf("warnings = %v, want missing Columns and Gravity", res.Messages())
	}

	// No extending segments: the allocator can only report what is left.
	if !res.Has(ErrAllocatorStalled) {
		t.Errorf("expected a stalled allocation without extending beams")
	}
	assertNoNaN(t, pose)
}

func TestCompute_ReportsStall(t *testing.T) {
	pose, p := newRig()
	res, err := Compute(p, pose, frameAt(geom.Vec(0, 5000, 100)))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !res.Has(ErrAllocatorStalled) || res.Residual <= 0 {
		t.Errorf("result = %+v, want stalled with positive residual", res)
	}
	for _, id := range []joints.JointID{joints.Beam2, joints.Beam3, joints.Beam4} {
		if ext := extension(pose, boneOf(t, pose, id)); ext > 120+floatTolerance {
			t.Errorf("%v extended to %v past its range", id, ext)
		}
	}
}

func TestCompute_YawJointOverride(t *testing.T) {
	pose, p := newRig()
	p.YawJoint = joints.Name(joints.Beams)
	target := geom.Vec(-400, 300, 150)

	res, err := Compute(p, pose, frameAt(target))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	columns := pose.LocalTransform(boneOf(t, pose, joints.Columns)).Rotation
	if geom.AngleBetween(columns, geom.Identity) > floatTolerance {
		t.Error("Columns rotated although the yaw is carried by the beams")
	}
	if !floatEquals(res.ColumnYaw, 90+geom.Degrees(math.Atan2(-0.6, 0.8))) {
		t.Errorf("ColumnYaw = %v", res.ColumnYaw)
	}
	head := pose.WorldPosition(boneOf(t, pose, joints.Head))
	if d := head.Sub(target).Norm(); d >= 0.1 {
		t.Errorf("head is %v from target", d)
	}
}

func TestCompute_NeckAndHead(t *testing.T) {
	pose, p := newRig()
	frame := frameAt(geom.Vec(-300, 200, 120))
	frame.RawRotation = geom.Vec(35, 20, 5)
	frame.NeckRotation = geom.Rotator{Roll: 90, Yaw: 180 + 35}.Quat()

	if _, err := Compute(p, pose, frame); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	neck := pose.ComponentTransform(boneOf(t, pose, joints.Neck))
	if a := geom.AngleBetween(neck.Rotation, frame.NeckRotation); a > 1e-4 {
		t.Errorf("neck is %v degrees off the frame rotation", a)
	}

	head := pose.LocalTransform(boneOf(t, pose, joints.Head)).Rotator()
	if !floatEquals(head.Roll, 20) || !floatEquals(head.Pitch, 0) || !floatEquals(head.Yaw, 0) {
		t.Errorf("head local rotation = %+v, want roll 20 only", head)
	}
}

func TestCalibration(t *testing.T) {
	pose, _ := newRig()
	s := NewSolver(DefaultOptions())
	c := s.Calibration(pose)

	if !floatEquals(c.HeadDrop, 60) || !floatEquals(c.ArmTip, 30) || !floatEquals(c.BaseLength, 150) {
		t.Errorf("calibration = %+v", c)
	}
	if len(c.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(c.Segments))
	}
	for _, seg := range c.Segments {
		if !floatEquals(seg.MaxLength, 120) {
			t.Errorf("%v max = %v, want 120", seg.Joint, seg.MaxLength)
		}
	}
	if !floatEquals(c.MaxReach(), 540) {
		t.Errorf("MaxReach = %v, want 540", c.MaxReach())
	}

	if s.Calibration(pose) != c {
		t.Error("calibration should be cached")
	}
	s.Invalidate()
	if s.Calibration(pose) == c {
		t.Error("Invalidate should drop the cached calibration")
	}
}

func TestCalibration_BaseFallback(t *testing.T) {
	skel, err := skeleton.New([]skeleton.Bone{
		{Name: "root", Parent: skeleton.None},
		{Name: "jointBeams", Parent: 0},
	})
	if err != nil {
		t.Fatalf("skeleton.New: %v", err)
	}
	c := Calibrate(skel.NewPose())
	if b, ok := c.Bone(joints.Base); !ok || b != 0 {
		t.Errorf("base = %d, %v; want bone 0", b, ok)
	}
}

func TestRelaxation_ConvergesNearClosedForm(t *testing.T) {
	for _, target := range []r3.Vector{
		geom.Vec(0, 500, 100),
		geom.Vec(-400, 300, 150),
	} {
		closedPose, p := newRig()
		closed, err := Compute(p, closedPose, frameAt(target))
		if err != nil {
			t.Fatalf("closed form: %v", err)
		}

		relaxPose, _ := newRig()
		s := NewSolver(Options{Strategy: StrategyRelaxation})
		relaxed, err := s.Compute(p, relaxPose, frameAt(target))
		if err != nil {
			t.Fatalf("relaxation: %v", err)
		}

		if d := math.Abs(geom.NormalizeAxis(relaxed.ColumnYaw - closed.ColumnYaw)); d > 0.05 {
			t.Errorf("target %v: yaw %v vs closed form %v", target, relaxed.ColumnYaw, closed.ColumnYaw)
		}
		if d := math.Abs(relaxed.TiltAngle - closed.TiltAngle); d > 0.05 {
			t.Errorf("target %v: tilt %v vs closed form %v", target, relaxed.TiltAngle, closed.TiltAngle)
		}

		head := relaxPose.WorldPosition(boneOf(t, relaxPose, joints.Head))
		if d := head.Sub(target).Norm(); d > 1 {
			t.Errorf("target %v: relaxed head is %v away", target, d)
		}
		rot := relaxPose.ComponentTransform(boneOf(t, relaxPose, joints.Gravity)).Rotator()
		if !floatEquals(rot.Roll, 0) || !floatEquals(rot.Pitch, 0) {
			t.Errorf("target %v: gravity rotation %+v, want level", target, rot)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
		err  bool
	}{
		{"", StrategyClosedForm, false},
		{"closed-form", StrategyClosedForm, false},
		{" Relaxation ", StrategyRelaxation, false},
		{"annealing", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseStrategy(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.err && got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWarning_Error(t *testing.T) {
	w := missing(StepGravity, joints.Gravity)
	if !strings.Contains(w.Error(), "jointGravity") || !errors.Is(w, ErrJointNotFound) {
		t.Errorf("missing warning = %q", w.Error())
	}
	d := degenerate(StepTilt)
	if strings.Contains(d.Error(), "[") {
		t.Errorf("degenerate warning names a joint: %q", d.Error())
	}
	s := Warning{Step: StepExtension, Joint: -1, Err: ErrAllocatorStalled, Residual: 12.5}
	if !strings.Contains(s.Error(), "12.500") {
		t.Errorf("stall warning = %q", s.Error())
	}
}
