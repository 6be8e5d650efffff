package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/brensch/primtree/expand"
	"github.com/brensch/primtree/motion"
)

var errBatchClosed = errors.New("batch writer is closed")

// BatchResult describes a finalized batch file.
type BatchResult struct {
	Path  string
	Trees int
	Rows  int
	// Keys are the sweep keys passed to Add, in write order.
	Keys []string
}

// BatchWriter streams trees from a sweep into one parquet file. The file is
// staged under outDir/tmp and only appears in outDir after Finalize, so a
// crashed sweep never leaves a partial file next to finished ones.
// Not safe for concurrent use.
type BatchWriter struct {
	stage string
	final string

	file *os.File
	w    *parquet.GenericWriter[NodeRow]

	res BatchResult
}

// stagedPaths returns a fresh tmp path under outDir/tmp and the path the
// file moves to once complete.
func stagedPaths(outDir, prefix string) (stage, final string, err error) {
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create tmp dir: %w", err)
	}
	name := fmt.Sprintf("%s_%d.parquet", prefix, time.Now().UnixNano())
	return filepath.Join(tmpDir, name), filepath.Join(outDir, name), nil
}

func NewBatchWriter(outDir string) (*BatchWriter, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}
	stage, final, err := stagedPaths(outDir, "sweep")
	if err != nil {
		return nil, err
	}
	f, err := os.Create(stage)
	if err != nil {
		return nil, fmt.Errorf("open staged parquet: %w", err)
	}
	return &BatchWriter{
		stage: stage,
		final: final,
		file:  f,
		w:     parquet.NewGenericWriter[NodeRow](f, writeOptions()...),
	}, nil
}

// Path is where the file will appear after Finalize.
func (b *BatchWriter) Path() string { return b.final }

// Trees and Rows count what has been added so far.
func (b *BatchWriter) Trees() int { return b.res.Trees }
func (b *BatchWriter) Rows() int  { return b.res.Rows }

// Add flattens root under a new tree id and appends it. key identifies the
// sweep point and is reported back by Finalize.
func (b *BatchWriter) Add(key string, cfg expand.Config, root *motion.Node) (treeID string, err error) {
	if b.w == nil {
		return "", errBatchClosed
	}
	treeID = NewTreeID()
	rows := RowsFromTree(treeID, cfg, root)
	if _, err := b.w.Write(rows); err != nil {
		return "", fmt.Errorf("write tree %s: %w", key, err)
	}
	b.res.Trees++
	b.res.Rows += len(rows)
	b.res.Keys = append(b.res.Keys, key)
	return treeID, nil
}

// Finalize closes the file and moves it into place. A batch with no trees
// is discarded and returns a zero BatchResult.
func (b *BatchWriter) Finalize() (BatchResult, error) {
	if b.w == nil {
		return BatchResult{}, errBatchClosed
	}
	err := errors.Join(b.w.Close(), b.file.Sync(), b.file.Close())
	b.w, b.file = nil, nil
	if err != nil {
		_ = os.Remove(b.stage)
		return BatchResult{}, fmt.Errorf("close parquet: %w", err)
	}

	if b.res.Trees == 0 {
		_ = os.Remove(b.stage)
		return BatchResult{}, nil
	}
	if err := os.Rename(b.stage, b.final); err != nil {
		return BatchResult{}, fmt.Errorf("rename parquet: %w", err)
	}
	res := b.res
	res.Path = b.final
	return res, nil
}
