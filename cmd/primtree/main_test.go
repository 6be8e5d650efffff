package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/brensch/primtree/expand"
	"github.com/brensch/primtree/store"
)

func TestResolvePrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "primtree.json")
	body := `{"expansion": {"delta_time": 0.1, "time_horizon": 0.5, "yaw_step": 0.2, "branching_factor": 4}}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRIMTREE_YAW_STEP", "0.3")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	common := addCommonFlags(fs)
	if err := fs.Parse([]string{"-config", cfgPath, "-branching", "6"}); err != nil {
		t.Fatal(err)
	}
	file, err := common.resolve(fs)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if file.Expansion.Horizon != 0.5 {
		t.Errorf("Expected horizon from file 0.5, got %v", file.Expansion.Horizon)
	}
	if file.Expansion.YawStep != 0.3 {
		t.Errorf("Expected yaw step from env 0.3, got %v", file.Expansion.YawStep)
	}
	if file.Expansion.Branching != 6 {
		t.Errorf("Expected branching from flag 6, got %d", file.Expansion.Branching)
	}
}

func TestResolveFlagRepairsFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "primtree.json")
	body := `{"expansion": {"delta_time": 0.1, "time_horizon": 0.3, "yaw_step": 0.1, "branching_factor": 0}}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	common := addCommonFlags(fs)
	if err := fs.Parse([]string{"-config", cfgPath, "-branching", "5"}); err != nil {
		t.Fatal(err)
	}
	file, err := common.resolve(fs)
	if err != nil {
		t.Fatalf("Expected flag to override the file's branching factor, got %v", err)
	}
	if file.Expansion.Branching != 5 {
		t.Errorf("Expected branching 5, got %d", file.Expansion.Branching)
	}
}

func TestResolveRejectsInvalid(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	common := addCommonFlags(fs)
	if err := fs.Parse([]string{"-delta-time", "0"}); err != nil {
		t.Fatal(err)
	}
	if _, err := common.resolve(fs); err == nil {
		t.Errorf("Expected error for zero delta time")
	}
}

func TestSweepGrid(t *testing.T) {
	grid := sweepGrid(expand.DefaultConfig(), []float64{0.1, 0.2}, []int{2, 3}, []float64{0.1})
	if len(grid) != 4 {
		t.Fatalf("Expected 4 points, got %d", len(grid))
	}
	if grid[0].Horizon != 0.1 || grid[0].Branching != 2 || grid[3].Horizon != 0.2 || grid[3].Branching != 3 {
		t.Errorf("Unexpected grid order: %+v", grid)
	}
	if grid[0].DeltaTime != 0.1 {
		t.Errorf("Expected base delta time kept, got %v", grid[0].DeltaTime)
	}
}

func TestParseLists(t *testing.T) {
	fl, err := parseFloatList(" 0.1, 0.2 ,,0.3")
	if err != nil || len(fl) != 3 || fl[2] != 0.3 {
		t.Errorf("Unexpected floats %v (%v)", fl, err)
	}
	if _, err := parseFloatList("0.1,x"); err == nil {
		t.Errorf("Expected error for bad float")
	}
	if _, err := parseIntList(" , "); err == nil {
		t.Errorf("Expected error for empty list")
	}
	il, err := parseIntList("2,4")
	if err != nil || len(il) != 2 || il[1] != 4 {
		t.Errorf("Unexpected ints %v (%v)", il, err)
	}
}

func TestSweepWritesAndResumes(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PRIMTREE_LOG_LEVEL", "error")
	args := []string{
		"-horizons", "0.1,0.2",
		"-branchings", "3",
		"-yaw-steps", "0.1",
		"-jobs", "2",
	}
	t.Setenv("PRIMTREE_CONFIG", writeOutputConfig(t, dir))

	if err := runSweep(context.Background(), args); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "out", "sweep_*.parquet"))
	if len(files) != 1 {
		t.Fatalf("Expected one sweep file, got %v", files)
	}
	rows, err := store.ReadTreeParquet(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	trees := store.GroupTrees(rows)
	if len(trees) != 2 {
		t.Fatalf("Expected 2 trees, got %d", len(trees))
	}
	total := 0
	for _, tr := range trees {
		total += len(tr.Rows)
	}
	if total != (1+3)+(1+3+9) {
		t.Errorf("Expected 17 rows, got %d", total)
	}

	if err := runSweep(context.Background(), args); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	files, _ = filepath.Glob(filepath.Join(dir, "out", "sweep_*.parquet"))
	if len(files) != 1 {
		t.Errorf("Expected resumed sweep to write nothing, got %v", files)
	}
}

func TestBuildAndInspect(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PRIMTREE_LOG_LEVEL", "error")
	out := filepath.Join(dir, "tree.parquet")
	if err := runBuild(context.Background(), []string{"-out", out, "-branching", "4"}); err != nil {
		t.Fatalf("build: %v", err)
	}
	rows, err := store.ReadTreeParquet(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1+4+16+64 {
		t.Errorf("Expected 85 rows, got %d", len(rows))
	}
	if err := runInspect(context.Background(), []string{out}); err != nil {
		t.Errorf("inspect: %v", err)
	}
}

func writeOutputConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "primtree.json")
	body := `{"output": {"dir": "` + filepath.ToSlash(filepath.Join(dir, "out")) + `", "manifest": "` +
		filepath.ToSlash(filepath.Join(dir, "out", "manifest.log")) + `"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
