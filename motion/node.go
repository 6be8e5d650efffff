package motion

// Node is one state in a motion-primitive tree.
// A node owns its children; trees never share subtrees.
type Node struct {
	State State `json:"state"`
	// Sample is the yaw sample index that produced this node (0 for the root).
	Sample   int    `json:"sample"`
	Children []Node `json:"children,omitempty"`
}

// NewNode creates a childless node.
func NewNode(state State, sample int) Node {
	return Node{State: state, Sample: sample}
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Walk visits n and its descendants depth-first in pre-order. The root is
// at depth 0. Returning false from fn skips that node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(node *Node, depth int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for i := range n.Children {
		n.Children[i].walk(fn, depth+1)
	}
}

// Count returns the number of nodes below n, excluding n itself.
func (n *Node) Count() int {
	total := 0
	for i := range n.Children {
		total += 1 + n.Children[i].Count()
	}
	return total
}

// Depth returns the number of edges on the longest path from n to a leaf.
func (n *Node) Depth() int {
	best := 0
	for i := range n.Children {
		if d := 1 + n.Children[i].Depth(); d > best {
			best = d
		}
	}
	return best
}

// Leaves returns the number of leaf nodes under n (n itself if it has no children).
func (n *Node) Leaves() int {
	if n.IsLeaf() {
		return 1
	}
	total := 0
	for i := range n.Children {
		total += n.Children[i].Leaves()
	}
	return total
}
