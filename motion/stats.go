package motion

import "math"

// Stats summarizes a tree for logs and dashboards.
type Stats struct {
	Nodes    int   `json:"nodes"` // excluding the root
	Leaves   int   `json:"leaves"`
	Depth    int   `json:"depth"`
	PerDepth []int `json:"per_depth"` // PerDepth[0] is the root

	MinX   float64 `json:"min_x"`
	MaxX   float64 `json:"max_x"`
	MinY   float64 `json:"min_y"`
	MaxY   float64 `json:"max_y"`
	MinYaw float64 `json:"min_yaw"`
	MaxYaw float64 `json:"max_yaw"`
}

// Summarize walks the tree once and collects counts and pose bounds.
func Summarize(root *Node) Stats {
	st := Stats{
		MinX: math.Inf(1), MaxX: math.Inf(-1),
		MinY: math.Inf(1), MaxY: math.Inf(-1),
		MinYaw: math.Inf(1), MaxYaw: math.Inf(-1),
	}

	root.Walk(func(n *Node, depth int) bool {
		for len(st.PerDepth) <= depth {
			st.PerDepth = append(st.PerDepth, 0)
		}
		st.PerDepth[depth]++
		if depth > st.Depth {
			st.Depth = depth
		}
		if depth > 0 {
			st.Nodes++
		}
		if n.IsLeaf() {
			st.Leaves++
		}

		p := n.State.Pose
		st.MinX = math.Min(st.MinX, p.X)
		st.MaxX = math.Max(st.MaxX, p.X)
		st.MinY = math.Min(st.MinY, p.Y)
		st.MaxY = math.Max(st.MaxY, p.Y)
		st.MinYaw = math.Min(st.MinYaw, p.Yaw)
		st.MaxYaw = math.Max(st.MaxYaw, p.Yaw)
		return true
	})

	return st
}
