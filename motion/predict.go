package motion

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidArgument marks inputs that violate a precondition.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNegativeStep is returned by PredictChecked for a negative or NaN
	// time step. It wraps ErrInvalidArgument.
	ErrNegativeStep = fmt.Errorf("%w: negative time step", ErrInvalidArgument)
)

// Predict advances s by deltaTime seconds after turning it by deltaYaw radians.
//
// The yaw change is applied first and the position is integrated along the
// new heading, which the returned state keeps. Speed is carried through.
// deltaTime must be >= 0; the result for a negative step is undefined, use
// PredictChecked to reject it. NaN and Inf inputs propagate without error.
func Predict(s State, deltaYaw, deltaTime float64) State {
	yaw := s.Pose.Yaw + deltaYaw
	sin, cos := math.Sincos(yaw)

	return State{
		Pose: Pose{
			X:   s.Pose.X + s.Speed*cos*deltaTime,
			Y:   s.Pose.Y + s.Speed*sin*deltaTime,
			Yaw: yaw,
		},
		Speed:   s.Speed,
		Elapsed: s.Elapsed + deltaTime,
	}
}

// PredictChecked is Predict with the time step precondition enforced.
func PredictChecked(s State, deltaYaw, deltaTime float64) (State, error) {
	if deltaTime < 0 || math.IsNaN(deltaTime) {
		return State{}, fmt.Errorf("%w: %v", ErrNegativeStep, deltaTime)
	}
	return Predict(s, deltaYaw, deltaTime), nil
}

// Marker returns the endpoints of a heading segment of the given length
// starting at p. Renderers draw one per node.
func Marker(p Pose, length float64) (x0, y0, x1, y1 float64) {
	sin, cos := math.Sincos(p.Yaw)
	return p.X, p.Y, p.X + cos*length, p.Y + sin*length
}
