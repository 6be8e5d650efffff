package motion

import (
	"errors"
	"fmt"
)

// ErrMalformedArena is returned by Unflatten for inconsistent parent edges.
var ErrMalformedArena = errors.New("malformed flattened tree")

// FlatNode is one entry of a flattened tree.
// Parent indexes into the same slice; the root has Parent == -1.
type FlatNode struct {
	ID     int   `json:"id"`
	Parent int   `json:"parent"`
	Depth  int   `json:"depth"`
	Sample int   `json:"sample"`
	State  State `json:"state"`
}

// Flatten lays the tree out in pre-order with parent index edges.
// Children of a node appear in sample order.
func Flatten(root *Node) []FlatNode {
	out := make([]FlatNode, 0, root.Count()+1)
	var visit func(n *Node, parent, depth int)
	visit = func(n *Node, parent, depth int) {
		id := len(out)
		out = append(out, FlatNode{
			ID:     id,
			Parent: parent,
			Depth:  depth,
			Sample: n.Sample,
			State:  n.State,
		})
		for i := range n.Children {
			visit(&n.Children[i], id, depth+1)
		}
	}
	visit(root, -1, 0)
	return out
}

// Unflatten rebuilds an owned tree from a pre-order flattening.
// Entries must be sorted by ID with IDs equal to their index, the first
// entry must be the only root, and each parent must precede its children.
func Unflatten(nodes []FlatNode) (*Node, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedArena)
	}

	children := make([][]int, len(nodes))
	for i, fn := range nodes {
		if fn.ID != i {
			return nil, fmt.Errorf("%w: entry %d has id %d", ErrMalformedArena, i, fn.ID)
		}
		if i == 0 {
			if fn.Parent != -1 {
				return nil, fmt.Errorf("%w: first entry is not a root", ErrMalformedArena)
			}
			continue
		}
		if fn.Parent < 0 || fn.Parent >= i {
			return nil, fmt.Errorf("%w: entry %d has parent %d", ErrMalformedArena, i, fn.Parent)
		}
		if fn.Depth != nodes[fn.Parent].Depth+1 {
			return nil, fmt.Errorf("%w: entry %d depth %d under parent depth %d", ErrMalformedArena, i, fn.Depth, nodes[fn.Parent].Depth)
		}
		children[fn.Parent] = append(children[fn.Parent], i)
	}

	var build func(i int) Node
	build = func(i int) Node {
		n := NewNode(nodes[i].State, nodes[i].Sample)
		if len(children[i]) > 0 {
			n.Children = make([]Node, len(children[i]))
			for j, c := range children[i] {
				n.Children[j] = build(c)
			}
		}
		return n
	}

	root := build(0)
	return &root, nil
}
