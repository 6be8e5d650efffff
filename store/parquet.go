// Package store persists motion-primitive trees as Parquet files.
//
// A tree is stored flattened: one row per node in pre-order, with the parent
// row id as the edge. Several trees may share a file; rows are grouped by
// TreeID and rebuilt with TreeFromRows.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/primtree/expand"
	"github.com/brensch/primtree/motion"
)

// SchemaName is written into the key/value metadata of every file.
const SchemaName = "primtree_node_v1"

// NodeRow is a single tree node.
//
// ID is the pre-order index within its tree and Parent the ID of the parent
// row (-1 for the root). The expansion parameters are repeated on every row
// so that a file of many trees can be filtered without a side table.
type NodeRow struct {
	TreeID string `parquet:"tree_id,dict"`
	ID     int32  `parquet:"id"`
	Parent int32  `parquet:"parent"`
	Depth  int32  `parquet:"depth"`
	Sample int32  `parquet:"sample"`

	X       float64 `parquet:"x"`
	Y       float64 `parquet:"y"`
	Yaw     float64 `parquet:"yaw"`
	Speed   float64 `parquet:"speed"`
	Elapsed float64 `parquet:"elapsed"`

	DeltaTime float64 `parquet:"delta_time"`
	Horizon   float64 `parquet:"time_horizon"`
	YawStep   float64 `parquet:"yaw_step"`
	Branching int32   `parquet:"branching_factor"`
}

// Tree is the rows of one tree plus the parameters it was built with.
type Tree struct {
	ID     string
	Config expand.Config
	Rows   []NodeRow
}

// NewTreeID returns a fresh random tree identifier.
func NewTreeID() string {
	return uuid.NewString()
}

// RowsFromTree flattens root into rows tagged with treeID and cfg.
func RowsFromTree(treeID string, cfg expand.Config, root *motion.Node) []NodeRow {
	flat := motion.Flatten(root)
	rows := make([]NodeRow, len(flat))
	for i, fn := range flat {
		p := fn.State.Pose
		rows[i] = NodeRow{
			TreeID:    treeID,
			ID:        int32(fn.ID),
			Parent:    int32(fn.Parent),
			Depth:     int32(fn.Depth),
			Sample:    int32(fn.Sample),
			X:         p.X,
			Y:         p.Y,
			Yaw:       p.Yaw,
			Speed:     fn.State.Speed,
			Elapsed:   fn.State.Elapsed,
			DeltaTime: cfg.DeltaTime,
			Horizon:   cfg.Horizon,
			YawStep:   cfg.YawStep,
			Branching: int32(cfg.Branching),
		}
	}
	return rows
}

// TreeFromRows rebuilds the tree held in rows. All rows must share a TreeID;
// their order does not matter.
func TreeFromRows(rows []NodeRow) (*motion.Node, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	sorted := make([]NodeRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	flat := make([]motion.FlatNode, len(sorted))
	for i, r := range sorted {
		if r.TreeID != sorted[0].TreeID {
			return nil, fmt.Errorf("mixed tree ids %q and %q", sorted[0].TreeID, r.TreeID)
		}
		flat[i] = motion.FlatNode{
			ID:     int(r.ID),
			Parent: int(r.Parent),
			Depth:  int(r.Depth),
			Sample: int(r.Sample),
			State: motion.State{
				Pose:    motion.Pose{X: r.X, Y: r.Y, Yaw: r.Yaw},
				Speed:   r.Speed,
				Elapsed: r.Elapsed,
			},
		}
	}
	return motion.Unflatten(flat)
}

// GroupTrees splits rows into trees, in order of first appearance.
func GroupTrees(rows []NodeRow) []Tree {
	var trees []Tree
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.TreeID]
		if !ok {
			i = len(trees)
			index[r.TreeID] = i
			trees = append(trees, Tree{
				ID: r.TreeID,
				Config: expand.Config{
					DeltaTime: r.DeltaTime,
					Horizon:   r.Horizon,
					YawStep:   r.YawStep,
					Branching: int(r.Branching),
				},
			})
		}
		trees[i].Rows = append(trees[i].Rows, r)
	}
	return trees
}

func writeOptions() []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", SchemaName),
	}
}

// WriteTreeParquet writes rows to outPath via a temp file and rename, so
// readers never observe a partial file.
func WriteTreeParquet(outPath string, rows []NodeRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, writeOptions()...); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteBatchParquetAtomic writes rows into outDir/tmp and then moves the
// file into outDir. The returned path is the final parquet file path.
func WriteBatchParquetAtomic(outDir string, rows []NodeRow) (string, error) {
	stage, final, err := stagedPaths(outDir, "trees")
	if err != nil {
		return "", err
	}
	if err := parquet.WriteFile(stage, rows, writeOptions()...); err != nil {
		_ = os.Remove(stage)
		return "", fmt.Errorf("write parquet: %w", err)
	}
	if err := os.Rename(stage, final); err != nil {
		_ = os.Remove(stage)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return final, nil
}

// ReadTreeParquet reads every row of a file written by this package.
func ReadTreeParquet(path string) ([]NodeRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	if schema, ok := pf.Lookup("schema"); ok && schema != SchemaName {
		return nil, fmt.Errorf("unexpected schema %q", schema)
	}

	reader := parquet.NewGenericReader[NodeRow](pf)
	defer reader.Close()

	rows := make([]NodeRow, 0, reader.NumRows())
	buf := make([]NodeRow, 1024)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return rows, nil
}
