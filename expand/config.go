package expand

import (
	"errors"
	"fmt"
	"math"

	"github.com/brensch/primtree/motion"
)

var (
	// ErrInvalidArgument marks configurations or root states the expander
	// refuses. It is motion.ErrInvalidArgument, so step errors match it too.
	ErrInvalidArgument = motion.ErrInvalidArgument
	// ErrTreeTooLarge is returned when a tree would exceed Config.MaxNodes.
	ErrTreeTooLarge = errors.New("tree too large")
)

// stepTolerance absorbs float64 error in remaining/DeltaTime, so a horizon of
// 0.3 with a step of 0.1 counts as three steps rather than 2.9999999999999996.
const stepTolerance = 1e-9

// Config holds the sampling and horizon parameters of an expansion.
// All times are seconds, angles radians.
type Config struct {
	DeltaTime float64 `json:"delta_time" jsonschema:"description=Seconds per tree edge"`
	Horizon   float64 `json:"time_horizon" jsonschema:"description=Total prediction window in seconds"`
	YawStep   float64 `json:"yaw_step" jsonschema:"description=Radians between neighbouring yaw samples"`
	Branching int     `json:"branching_factor" jsonschema:"description=Yaw samples per expansion,minimum=1"`

	// Workers bounds BuildParallel; 0 means GOMAXPROCS.
	Workers int `json:"workers,omitempty" jsonschema:"description=Goroutines used by parallel expansion or 0 for GOMAXPROCS,minimum=0"`
	// MaxNodes rejects oversized trees before they are built; 0 disables the check.
	MaxNodes int `json:"max_nodes,omitempty" jsonschema:"description=Refuse trees with more nodes than this or 0 for no limit,minimum=0"`
}

// DefaultConfig returns the 0.1 s / 0.3 s / 0.1 rad / 10 sample configuration.
func DefaultConfig() Config {
	return Config{
		DeltaTime: 0.1,
		Horizon:   0.3,
		YawStep:   0.1,
		Branching: 10,
	}
}

// Validate checks the configuration and wraps ErrInvalidArgument on failure.
func (c Config) Validate() error {
	switch {
	case !finite(c.DeltaTime) || c.DeltaTime <= 0:
		return fmt.Errorf("%w: delta_time must be positive and finite, got %v", ErrInvalidArgument, c.DeltaTime)
	case !finite(c.Horizon):
		return fmt.Errorf("%w: time_horizon must be finite, got %v", ErrInvalidArgument, c.Horizon)
	case !finite(c.YawStep):
		return fmt.Errorf("%w: yaw_step must be finite, got %v", ErrInvalidArgument, c.YawStep)
	case c.Branching <= 0:
		return fmt.Errorf("%w: branching_factor must be positive, got %d", ErrInvalidArgument, c.Branching)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidArgument, c.Workers)
	case c.MaxNodes < 0:
		return fmt.Errorf("%w: max_nodes must not be negative, got %d", ErrInvalidArgument, c.MaxNodes)
	}
	return nil
}

// Steps returns how many whole DeltaTime steps fit into remaining seconds.
// It is the depth of a subtree expanded with that much time left, clamped
// to math.MaxInt for horizons too long to count.
func (c Config) Steps(remaining float64) int {
	if c.DeltaTime <= 0 || !(remaining >= c.DeltaTime*(1-stepTolerance)) {
		return 0
	}
	q := math.Floor(remaining/c.DeltaTime + stepTolerance)
	if q >= math.MaxInt {
		return math.MaxInt
	}
	return int(q)
}

// Depth is the depth of a full tree built with this configuration.
func (c Config) Depth() int {
	return c.Steps(c.Horizon)
}

// NodeCount returns the number of non-root nodes a full tree holds:
// K + K^2 + ... + K^depth. It saturates at math.MaxInt.
func (c Config) NodeCount() int {
	return c.subtreeCount(c.Depth())
}

// subtreeCount is the number of nodes below a node expanded for steps
// levels. For K >= 2 the loop saturates within 63 iterations.
func (c Config) subtreeCount(steps int) int {
	switch {
	case c.Branching <= 0 || steps <= 0:
		return 0
	case c.Branching == 1:
		return steps
	}
	total, level := 0, 1
	for d := 0; d < steps; d++ {
		if level > math.MaxInt/c.Branching {
			return math.MaxInt
		}
		level *= c.Branching
		if total > math.MaxInt-level {
			return math.MaxInt
		}
		total += level
	}
	return total
}

// CheckSize returns ErrTreeTooLarge when MaxNodes is set and exceeded.
func (c Config) CheckSize() error {
	return c.checkSteps(c.Depth())
}

func (c Config) checkSteps(steps int) error {
	if c.MaxNodes > 0 {
		if n := c.subtreeCount(steps); n > c.MaxNodes {
			return fmt.Errorf("%w: %d nodes exceeds max_nodes %d", ErrTreeTooLarge, n, c.MaxNodes)
		}
	}
	return nil
}

// SampleIndices returns the K sample indices in ascending order, starting
// at -K/2 (truncating division). For even K the window is [-K/2, K/2),
// one sample heavier on the negative side.
func (c Config) SampleIndices() []int {
	if c.Branching <= 0 {
		return nil
	}
	out := make([]int, c.Branching)
	first := -c.Branching / 2
	for i := range out {
		out[i] = first + i
	}
	return out
}

// Samples returns the yaw delta of each sample index.
func (c Config) Samples() []float64 {
	idx := c.SampleIndices()
	out := make([]float64, len(idx))
	for i, k := range idx {
		out[i] = float64(k) * c.YawStep
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
