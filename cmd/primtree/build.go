package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/brensch/primtree/expand"
	"github.com/brensch/primtree/motion"
	"github.com/brensch/primtree/store"
)

func runBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	common := addCommonFlags(fs)
	out := fs.String("out", "", "Output parquet path (default: a trees_<ts>.parquet under the configured output dir)")
	sequential := fs.Bool("sequential", false, "Expand on a single goroutine")
	if err := fs.Parse(args); err != nil {
		return err
	}

	file, err := common.resolve(fs)
	if err != nil {
		return err
	}
	logger, err := newLogger(file)
	if err != nil {
		return err
	}

	e, err := expand.New(file.Expansion)
	if err != nil {
		return err
	}

	start := time.Now()
	var root *motion.Node
	if *sequential {
		root, err = e.Build(file.Root)
	} else {
		root, err = e.BuildParallel(ctx, file.Root)
	}
	if err != nil {
		return fmt.Errorf("build tree: %w", err)
	}
	took := time.Since(start)

	st := motion.Summarize(root)
	treeID := store.NewTreeID()
	logger.Info("tree built",
		"tree_id", treeID,
		"nodes", st.Nodes,
		"leaves", st.Leaves,
		"depth", st.Depth,
		"per_depth", st.PerDepth,
		"took", took,
	)

	rows := store.RowsFromTree(treeID, file.Expansion, root)
	path := *out
	if path == "" {
		path, err = store.WriteBatchParquetAtomic(file.Output.Dir, rows)
	} else {
		err = store.WriteTreeParquet(path, rows)
	}
	if err != nil {
		return err
	}
	logger.Info("tree written", "path", path, "rows", len(rows))
	return nil
}

func runInspect(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: primtree inspect [flags] file.parquet...")
	}

	file, err := common.resolve(fs)
	if err != nil {
		return err
	}
	logger, err := newLogger(file)
	if err != nil {
		return err
	}

	for _, path := range fs.Args() {
		rows, err := store.ReadTreeParquet(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, tree := range store.GroupTrees(rows) {
			root, err := store.TreeFromRows(tree.Rows)
			if err != nil {
				return fmt.Errorf("%s: tree %s: %w", path, tree.ID, err)
			}
			st := motion.Summarize(root)
			logger.Info("tree",
				"path", path,
				"tree_id", tree.ID,
				"horizon", tree.Config.Horizon,
				"branching", tree.Config.Branching,
				"yaw_step", tree.Config.YawStep,
				"nodes", st.Nodes,
				"depth", st.Depth,
			)
		}
	}
	return nil
}
