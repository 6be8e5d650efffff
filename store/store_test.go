package store

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/brensch/primtree/expand"
	"github.com/brensch/primtree/motion"
)

func buildTree(t *testing.T, cfg expand.Config) *motion.Node {
	t.Helper()
	root, err := expand.Build(cfg, motion.State{Pose: motion.Pose{Yaw: 0.1}, Speed: 0.5})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return root
}

func TestRowsFromTree(t *testing.T) {
	cfg := expand.DefaultConfig()
	root := buildTree(t, cfg)
	rows := RowsFromTree("t1", cfg, root)

	if len(rows) != 1111 {
		t.Fatalf("Expected 1111 rows, got %d", len(rows))
	}
	if rows[0].Parent != -1 || rows[0].Depth != 0 {
		t.Errorf("Expected root row first, got %+v", rows[0])
	}
	for _, r := range rows {
		if r.TreeID != "t1" || r.Branching != 10 || r.DeltaTime != 0.1 {
			t.Fatalf("Row missing tree metadata: %+v", r)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := expand.DefaultConfig()
	root := buildTree(t, cfg)

	id := NewTreeID()
	path := filepath.Join(dir, "out", "tree.parquet")
	if err := WriteTreeParquet(path, RowsFromTree(id, cfg, root)); err != nil {
		t.Fatalf("WriteTreeParquet failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("Expected temp file to be gone, stat err=%v", err)
	}

	rows, err := ReadTreeParquet(path)
	if err != nil {
		t.Fatalf("ReadTreeParquet failed: %v", err)
	}
	trees := GroupTrees(rows)
	if len(trees) != 1 || trees[0].ID != id {
		t.Fatalf("Expected one tree %s, got %+v", id, len(trees))
	}
	if trees[0].Config.Branching != cfg.Branching || trees[0].Config.Horizon != cfg.Horizon {
		t.Errorf("Unexpected config %+v", trees[0].Config)
	}

	back, err := TreeFromRows(trees[0].Rows)
	if err != nil {
		t.Fatalf("TreeFromRows failed: %v", err)
	}
	if !reflect.DeepEqual(root, back) {
		t.Errorf("Tree read back differs from the tree written")
	}
}

func TestTreeFromRows_Unordered(t *testing.T) {
	cfg := expand.Config{DeltaTime: 0.1, Horizon: 0.2, YawStep: 0.1, Branching: 3}
	root := buildTree(t, cfg)
	rows := RowsFromTree("t", cfg, root)
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	back, err := TreeFromRows(rows)
	if err != nil {
		t.Fatalf("TreeFromRows failed: %v", err)
	}
	if !reflect.DeepEqual(root, back) {
		t.Errorf("Expected row order not to matter")
	}
}

func TestTreeFromRows_MixedTrees(t *testing.T) {
	rows := []NodeRow{{TreeID: "a", ID: 0, Parent: -1}, {TreeID: "b", ID: 1, Parent: 0, Depth: 1}}
	if _, err := TreeFromRows(rows); err == nil || !strings.Contains(err.Error(), "mixed") {
		t.Errorf("Expected mixed tree error, got %v", err)
	}
	if _, err := TreeFromRows(nil); err == nil {
		t.Errorf("Expected error for no rows")
	}
}

func TestWriteBatchParquetAtomic(t *testing.T) {
	dir := t.TempDir()
	cfg := expand.Config{DeltaTime: 0.1, Horizon: 0.1, YawStep: 0.1, Branching: 4}
	rows := append(RowsFromTree("a", cfg, buildTree(t, cfg)), RowsFromTree("b", cfg, buildTree(t, cfg))...)

	path, err := WriteBatchParquetAtomic(dir, rows)
	if err != nil {
		t.Fatalf("WriteBatchParquetAtomic failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("Expected file in %s, got %s", dir, path)
	}

	got, err := ReadTreeParquet(path)
	if err != nil {
		t.Fatalf("ReadTreeParquet failed: %v", err)
	}
	trees := GroupTrees(got)
	if len(trees) != 2 || trees[0].ID != "a" || trees[1].ID != "b" {
		t.Fatalf("Expected trees a and b, got %d", len(trees))
	}
	if len(trees[1].Rows) != 5 {
		t.Errorf("Expected 5 rows in tree b, got %d", len(trees[1].Rows))
	}
}

func TestBatchWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir)
	if err != nil {
		t.Fatalf("NewBatchWriter failed: %v", err)
	}

	ids := map[string]bool{}
	for _, k := range []int{2, 3} {
		cfg := expand.Config{DeltaTime: 0.1, Horizon: 0.2, YawStep: 0.1, Branching: k}
		id, err := w.Add(ConfigKey(cfg, 1), cfg, buildTree(t, cfg))
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		ids[id] = true
	}
	if w.Trees() != 2 || w.Rows() != (1+2+4)+(1+3+9) {
		t.Errorf("Unexpected counts: trees=%d rows=%d", w.Trees(), w.Rows())
	}
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Errorf("Expected no output file before Finalize, stat err=%v", err)
	}

	res, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if res.Rows != 20 || res.Trees != 2 || res.Path != w.Path() || len(res.Keys) != 2 {
		t.Errorf("Unexpected finalize result: %+v", res)
	}
	if res.Keys[0] != "dt=0.1,h=0.2,yaw=0.1,k=2,v=1" {
		t.Errorf("Expected keys in write order, got %v", res.Keys)
	}
	if leftovers, _ := filepath.Glob(filepath.Join(dir, "tmp", "*")); len(leftovers) != 0 {
		t.Errorf("Expected staged file to be moved, found %v", leftovers)
	}
	if _, err := w.Add("late", expand.DefaultConfig(), buildTree(t, expand.DefaultConfig())); err == nil {
		t.Errorf("Expected Add after Finalize to fail")
	}
	if _, err := w.Finalize(); err == nil {
		t.Errorf("Expected second Finalize to fail")
	}

	got, err := ReadTreeParquet(res.Path)
	if err != nil {
		t.Fatalf("ReadTreeParquet failed: %v", err)
	}
	trees := GroupTrees(got)
	if len(trees) != 2 {
		t.Fatalf("Expected 2 trees in batch file, got %d", len(trees))
	}
	for _, tr := range trees {
		if !ids[tr.ID] {
			t.Errorf("Unexpected tree id %q", tr.ID)
		}
	}
}

func TestBatchWriter_EmptyFinalize(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir)
	if err != nil {
		t.Fatalf("NewBatchWriter failed: %v", err)
	}
	res, err := w.Finalize()
	if err != nil || res.Path != "" || res.Rows != 0 || res.Trees != 0 {
		t.Errorf("Expected empty finalize, got %+v err=%v", res, err)
	}
	if leftovers, _ := filepath.Glob(filepath.Join(dir, "tmp", "*")); len(leftovers) != 0 {
		t.Errorf("Expected staged file to be removed, found %v", leftovers)
	}
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Errorf("Expected no output file, stat err=%v", err)
	}
}

func TestManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "manifest.log")
	m, err := OpenManifest(path)
	if err != nil {
		t.Fatalf("OpenManifest failed: %v", err)
	}

	key := ConfigKey(expand.DefaultConfig(), 0.5)
	if m.Has(key) {
		t.Errorf("Expected empty manifest")
	}
	if err := m.AddMany([]string{key, "", key}); err != nil {
		t.Fatalf("AddMany failed: %v", err)
	}
	if !m.Has(key) || m.Count() != 1 {
		t.Errorf("Expected one key, got %d", m.Count())
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := m.AddMany([]string{"other"}); err == nil {
		t.Errorf("Expected AddMany on closed manifest to fail")
	}

	reopened, err := OpenManifest(path)
	if err != nil {
		t.Fatalf("OpenManifest failed: %v", err)
	}
	defer reopened.Close()
	if !reopened.Has(key) || reopened.Count() != 1 {
		t.Errorf("Expected key to survive reopen")
	}
}

func TestConfigKey(t *testing.T) {
	cfg := expand.DefaultConfig()
	want := "dt=0.1,h=0.3,yaw=0.1,k=10,v=0.5"
	if got := ConfigKey(cfg, 0.5); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	cfg.Workers = 8
	if got := ConfigKey(cfg, 0.5); got != want {
		t.Errorf("Expected workers not to affect the key, got %q", got)
	}
}
