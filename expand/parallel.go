package expand

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/primtree/motion"
)

// BuildParallel builds the same tree as Build, expanding independent
// subtrees on up to Config.Workers goroutines.
//
// The tree is first built sequentially down to the shallowest level with at
// least one node per worker. Each node on that frontier then gets its subtree
// from a single task, so children stay in sample order. On cancellation the
// context error is returned and no tree.
func (e *Expander) BuildParallel(ctx context.Context, state motion.State) (*motion.Node, error) {
	if err := e.prepare(state); err != nil {
		return nil, err
	}

	workers := e.cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	depth := e.cfg.Depth()
	root := motion.NewNode(state, 0)
	if depth == 0 {
		return &root, nil
	}

	frontierDepth, width := 1, len(e.samples)
	for width < workers && frontierDepth < depth {
		frontierDepth++
		width *= len(e.samples)
	}
	root.Children = e.expand(state, frontierDepth)

	var frontier []*motion.Node
	root.Walk(func(n *motion.Node, d int) bool {
		if d == frontierDepth {
			frontier = append(frontier, n)
			return false
		}
		return true
	})

	rest := depth - frontierDepth
	if rest == 0 {
		return &root, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, n := range frontier {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			children, err := e.expandContext(gctx, n.State, rest)
			if err != nil {
				return err
			}
			n.Children = children
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &root, nil
}

// expandContext is expand with a cancellation check before each non-leaf level.
func (e *Expander) expandContext(ctx context.Context, s motion.State, steps int) ([]motion.Node, error) {
	if steps < 1 {
		return nil, nil
	}
	if steps == 1 {
		return e.expand(s, 1), nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	children := make([]motion.Node, len(e.samples))
	for i, dyaw := range e.samples {
		children[i] = motion.NewNode(motion.Predict(s, dyaw, e.cfg.DeltaTime), e.indices[i])
	}
	for i := range children {
		sub, err := e.expandContext(ctx, children[i].State, steps-1)
		if err != nil {
			return nil, err
		}
		children[i].Children = sub
	}
	return children, nil
}
