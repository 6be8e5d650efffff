// Package expand builds motion-primitive trees: from a root state it applies
// every yaw sample for one time step, then recurses into each child until
// the time horizon is used up.
package expand

import (
	"fmt"

	"github.com/brensch/primtree/motion"
)

// Expander builds trees for one Config. It is immutable and safe for
// concurrent use.
type Expander struct {
	cfg     Config
	indices []int
	samples []float64
}

// New validates cfg and precomputes the sample window.
func New(cfg Config) (*Expander, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Expander{
		cfg:     cfg,
		indices: cfg.SampleIndices(),
		samples: cfg.Samples(),
	}, nil
}

// Config returns the configuration the expander was built with.
func (e *Expander) Config() Config {
	return e.cfg
}

// Expand returns the children of node with remaining seconds of horizon left,
// each expanded recursively. The caller attaches them to node. The result is
// empty when less than one DeltaTime remains. MaxNodes applies to the
// subtree below node.
func (e *Expander) Expand(node *motion.Node, remaining float64) ([]motion.Node, error) {
	if err := node.State.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	steps := e.cfg.Steps(remaining)
	if err := e.cfg.checkSteps(steps); err != nil {
		return nil, err
	}
	return e.expand(node.State, steps), nil
}

// Build returns a root node for state with the full tree below it.
func (e *Expander) Build(state motion.State) (*motion.Node, error) {
	if err := e.prepare(state); err != nil {
		return nil, err
	}
	root := motion.NewNode(state, 0)
	root.Children = e.expand(state, e.cfg.Depth())
	return &root, nil
}

func (e *Expander) prepare(state motion.State) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return e.cfg.CheckSize()
}

// expand creates one child per sample, in sample order, then fills each
// child's subtree. steps is the number of levels still to build.
func (e *Expander) expand(s motion.State, steps int) []motion.Node {
	if steps < 1 {
		return nil
	}

	children := make([]motion.Node, len(e.samples))
	for i, dyaw := range e.samples {
		children[i] = motion.NewNode(motion.Predict(s, dyaw, e.cfg.DeltaTime), e.indices[i])
	}
	for i := range children {
		children[i].Children = e.expand(children[i].State, steps-1)
	}
	return children
}

// Build is a convenience wrapper around New and (*Expander).Build.
func Build(cfg Config, state motion.State) (*motion.Node, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return e.Build(state)
}
