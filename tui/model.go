// Package tui is an interactive terminal dashboard for exploring how the
// expansion parameters change the size and reach of a motion-primitive tree.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/primtree/expand"
	"github.com/brensch/primtree/motion"
)

// DefaultMaxNodes keeps interactive rebuilds responsive.
const DefaultMaxNodes = 2_000_000

const (
	yawStepIncrement = 0.05
	barWidth         = 40
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

// BuiltMsg reports the result of a background rebuild.
type BuiltMsg struct {
	Config expand.Config
	Stats  motion.Stats
	Took   time.Duration
	Err    error
}

// Model is the bubbletea model.
type Model struct {
	ctx   context.Context
	root  motion.State
	cfg   expand.Config
	stats motion.Stats
	took  time.Duration
	err   error

	building bool
	pending  bool
}

// New returns a model that expands from root with cfg. A zero MaxNodes in
// cfg is replaced by DefaultMaxNodes. The first build is started by Init.
func New(ctx context.Context, root motion.State, cfg expand.Config) Model {
	if cfg.MaxNodes == 0 {
		cfg.MaxNodes = DefaultMaxNodes
	}
	return Model{ctx: ctx, root: root, cfg: cfg, building: true}
}

// Config returns the configuration currently shown.
func (m Model) Config() expand.Config {
	return m.cfg
}

func (m Model) Init() tea.Cmd {
	return buildCmd(m.ctx, m.root, m.cfg)
}

func buildCmd(ctx context.Context, root motion.State, cfg expand.Config) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		e, err := expand.New(cfg)
		if err != nil {
			return BuiltMsg{Config: cfg, Err: err}
		}
		tree, err := e.BuildParallel(ctx, root)
		if err != nil {
			return BuiltMsg{Config: cfg, Err: err}
		}
		return BuiltMsg{Config: cfg, Stats: motion.Summarize(tree), Took: time.Since(start)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		next, changed := m.adjust(msg.String())
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if !changed {
			return m, nil
		}
		m.cfg = next
		if m.building {
			m.pending = true
			return m, nil
		}
		m.building = true
		return m, buildCmd(m.ctx, m.root, m.cfg)

	case BuiltMsg:
		m.building = false
		if msg.Config != m.cfg {
			if m.pending {
				m.pending = false
				m.building = true
				return m, buildCmd(m.ctx, m.root, m.cfg)
			}
			return m, nil
		}
		m.pending = false
		m.err = msg.Err
		if msg.Err == nil {
			m.stats = msg.Stats
			m.took = msg.Took
		}
		return m, nil
	}
	return m, nil
}

// adjust applies a key to the configuration. It reports false for keys that
// do not change anything.
func (m Model) adjust(key string) (expand.Config, bool) {
	cfg := m.cfg
	switch key {
	case "up", "k":
		cfg.Horizon += cfg.DeltaTime
	case "down", "j":
		cfg.Horizon = math.Max(0, cfg.Horizon-cfg.DeltaTime)
	case "right", "l":
		cfg.Branching++
	case "left", "h":
		if cfg.Branching > 1 {
			cfg.Branching--
		}
	case "]":
		cfg.YawStep += yawStepIncrement
	case "[":
		cfg.YawStep = math.Max(0, cfg.YawStep-yawStepIncrement)
	default:
		return cfg, false
	}
	return cfg, cfg != m.cfg
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("primtree explorer"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %.3f s   %s %.3f s   %s %d   %s %.3f rad   %s %.2f m/s\n",
		labelStyle.Render("dt"), m.cfg.DeltaTime,
		labelStyle.Render("horizon"), m.cfg.Horizon,
		labelStyle.Render("K"), m.cfg.Branching,
		labelStyle.Render("yaw step"), m.cfg.YawStep,
		labelStyle.Render("speed"), m.root.Speed,
	)
	fmt.Fprintf(&b, "%s %d   %s %d\n\n",
		labelStyle.Render("depth"), m.cfg.Depth(),
		labelStyle.Render("expected nodes"), m.cfg.NodeCount(),
	)

	switch {
	case m.err != nil:
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	case m.building && m.stats.PerDepth == nil:
		b.WriteString("building...\n")
	default:
		b.WriteString(m.statsView())
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("up/down horizon  left/right branching  [/] yaw step  q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) statsView() string {
	var b strings.Builder
	st := m.stats
	fmt.Fprintf(&b, "%s %d   %s %d   %s %s\n",
		labelStyle.Render("nodes"), st.Nodes,
		labelStyle.Render("leaves"), st.Leaves,
		labelStyle.Render("built in"), m.took.Round(time.Microsecond),
	)
	fmt.Fprintf(&b, "%s x [%.3f, %.3f]  y [%.3f, %.3f]  yaw [%.3f, %.3f]\n\n",
		labelStyle.Render("reach"),
		st.MinX, st.MaxX, st.MinY, st.MaxY, st.MinYaw, st.MaxYaw,
	)

	widest := 0
	for _, n := range st.PerDepth {
		widest = max(widest, n)
	}
	for d, n := range st.PerDepth {
		width := 0
		if widest > 0 {
			width = int(math.Ceil(float64(n) / float64(widest) * barWidth))
		}
		fmt.Fprintf(&b, "%s %s %d\n",
			labelStyle.Render(fmt.Sprintf("d%-2d", d)),
			barStyle.Render(strings.Repeat("█", width)),
			n,
		)
	}
	return b.String()
}
