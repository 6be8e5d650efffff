// Package motion defines the kinematic state types of a point vehicle and
// the constant-speed step function used to propagate them.
//
// States are small value types. Propagation never mutates its input, so the
// same parent state can be fanned out to any number of children (and from
// any number of goroutines) without copying ceremony.
package motion

import (
	"errors"
	"fmt"
	"math"
)

// ErrNonFinite is returned when a state carries NaN or infinite values.
var ErrNonFinite = errors.New("non-finite state")

// Pose is a planar position in metres and a heading in radians.
// Yaw is never wrapped; it grows without bound along turning branches.
type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

// State is the vehicle at one instant.
// Speed is constant across a tree; Elapsed is seconds since the root.
type State struct {
	Pose    Pose    `json:"pose"`
	Speed   float64 `json:"speed"`
	Elapsed float64 `json:"elapsed"`
}

// Validate reports whether every field of s is finite.
func (s State) Validate() error {
	fields := [...]struct {
		name string
		v    float64
	}{
		{"x", s.Pose.X},
		{"y", s.Pose.Y},
		{"yaw", s.Pose.Yaw},
		{"speed", s.Speed},
		{"elapsed", s.Elapsed},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrNonFinite, f.name, f.v)
		}
	}
	return nil
}
