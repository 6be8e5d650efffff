package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/primtree/expand"
	"github.com/brensch/primtree/motion"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run feeds msg to m and executes any resulting build command synchronously.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		out := cmd()
		if _, ok := out.(BuiltMsg); !ok {
			break
		}
		next, cmd = m.Update(out)
		m = next.(Model)
	}
	return m
}

func TestInitBuildsDefaultTree(t *testing.T) {
	m := New(context.Background(), motion.State{Speed: 0.5}, expand.DefaultConfig())
	msg := m.Init()().(BuiltMsg)
	if msg.Err != nil {
		t.Fatalf("build failed: %v", msg.Err)
	}
	next, _ := m.Update(msg)
	m = next.(Model)

	if m.stats.Nodes != 1110 {
		t.Errorf("Expected 1110 nodes, got %d", m.stats.Nodes)
	}
	view := m.View()
	for _, want := range []string{"primtree explorer", "1110", "d3"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q:\n%s", want, view)
		}
	}
}

// started returns m after its initial build has been applied.
func started(t *testing.T, m Model) Model {
	t.Helper()
	return run(t, m, m.Init()())
}

func TestBuildingUntilFirstResult(t *testing.T) {
	m := New(context.Background(), motion.State{Speed: 0.5}, expand.DefaultConfig())
	if view := m.View(); !strings.Contains(view, "building...") || strings.Contains(view, "Inf") {
		t.Errorf("Expected building placeholder before the first result:\n%s", view)
	}

	first := m.Init()()
	next, cmd := m.Update(key("left"))
	m = next.(Model)
	if cmd != nil {
		t.Fatalf("Expected key during the first build to be queued, not to start a second build")
	}
	m = run(t, m, first)
	if m.Config().Branching != 9 || m.stats.Nodes != 9+81+729 {
		t.Errorf("Expected queued K=9 rebuild, got K=%d nodes=%d", m.Config().Branching, m.stats.Nodes)
	}
	if m.building || m.pending {
		t.Errorf("Expected idle model, got building=%v pending=%v", m.building, m.pending)
	}
}

func TestKeysAdjustConfig(t *testing.T) {
	m := started(t, New(context.Background(), motion.State{Speed: 0.5}, expand.DefaultConfig()))

	m = run(t, m, key("left"))
	if m.Config().Branching != 9 || m.stats.Nodes != 9+81+729 {
		t.Errorf("Expected K=9 tree, got K=%d nodes=%d", m.Config().Branching, m.stats.Nodes)
	}

	m = run(t, m, key("down"))
	if m.Config().Depth() != 2 || m.stats.Depth != 2 {
		t.Errorf("Expected depth 2, got cfg %d stats %d", m.Config().Depth(), m.stats.Depth)
	}

	m = run(t, m, key("]"))
	if m.Config().YawStep <= 0.1 {
		t.Errorf("Expected yaw step to grow, got %v", m.Config().YawStep)
	}

	before := m.Config()
	m = run(t, m, key("x"))
	if m.Config() != before {
		t.Errorf("Expected unknown key to leave config alone")
	}
}

func TestBranchingFloor(t *testing.T) {
	cfg := expand.DefaultConfig()
	cfg.Branching = 1
	m := New(context.Background(), motion.State{Speed: 1}, cfg)
	if _, changed := m.adjust("left"); changed {
		t.Errorf("Expected branching to stay at 1")
	}
}

func TestTooLargeShowsError(t *testing.T) {
	cfg := expand.DefaultConfig()
	cfg.MaxNodes = 1200
	m := started(t, New(context.Background(), motion.State{Speed: 1}, cfg))
	m = run(t, m, key("up"))
	if m.err == nil {
		t.Fatalf("Expected size error")
	}
	if !strings.Contains(m.View(), "error:") {
		t.Errorf("Expected error in view")
	}
}

func TestQuit(t *testing.T) {
	m := New(context.Background(), motion.State{Speed: 1}, expand.DefaultConfig())
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatalf("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("Expected tea.QuitMsg")
	}
}
