package kinematics

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-technocrane/pkg/joints"
)

// Sentinel errors for solver conditions.
var (
	// ErrConfigurationMissing is returned when no crane preset is bound.
	// The skeleton is left untouched.
	ErrConfigurationMissing = errors.New("kinematics: no crane preset bound")

	// ErrNoSkeleton is returned when Compute is given no skeleton.
	ErrNoSkeleton = errors.New("kinematics: no skeleton")

	// ErrJointNotFound marks a step skipped because its joint is absent.
	ErrJointNotFound = errors.New("kinematics: joint not found")

	// ErrDegenerateGeometry marks a rotation skipped because its angle was
	// undefined, such as a target directly above the beam pivot.
	ErrDegenerateGeometry = errors.New("kinematics: degenerate geometry")

	// ErrAllocatorStalled marks a beam allocation that left a residual
	// after every segment saturated.
	ErrAllocatorStalled = errors.New("kinematics: beam allocation stalled")

	// ErrUnknownStrategy is returned by ParseStrategy.
	ErrUnknownStrategy = errors.New("kinematics: unknown strategy")
)

// Step names a stage of the solve.
type Step string

const (
	StepBase      Step = "base"
	StepYaw       Step = "yaw"
	StepTilt      Step = "tilt"
	StepExtension Step = "extension"
	StepGravity   Step = "gravity"
	StepNeck      Step = "neck"
	StepHead      Step = "head"
)

// Warning is a per-tick condition that skipped or limited one step.
// None of them abort the solve.
type Warning struct {
	Step  Step
	Joint joints.JointID
	Err   error

	// Residual is set for allocator stalls.
	Residual float64
}

// Error implements the error interface.
func (w Warning) Error() string {
	switch {
	case errors.Is(w.Err, ErrAllocatorStalled):
		return fmt.Sprintf("%s: %v (residual %.3f)", w.Step, w.Err, w.Residual)
	case w.Joint.Valid():
		return fmt.Sprintf("%s [%s]: %v", w.Step, w.Joint, w.Err)
	}
	return fmt.Sprintf("%s: %v", w.Step, w.Err)
}

// Unwrap returns the underlying sentinel.
func (w Warning) Unwrap() error {
	return w.Err
}

func missing(step Step, id joints.JointID) Warning {
	return Warning{Step: step, Joint: id, Err: ErrJointNotFound}
}

func degenerate(step Step) Warning {
	return Warning{Step: step, Joint: -1, Err: ErrDegenerateGeometry}
}
