package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/primtree/config"
	"github.com/brensch/primtree/expand"
	"github.com/brensch/primtree/motion"
	"github.com/brensch/primtree/store"
)

// sweepResult is one finished tree on its way to the writer goroutine.
type sweepResult struct {
	key  string
	cfg  expand.Config
	root *motion.Node
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	common := addCommonFlags(fs)
	horizons := fs.String("horizons", "0.1,0.2,0.3", "Comma separated horizons in seconds")
	branching := fs.String("branchings", "2,4,6,8,10", "Comma separated branching factors")
	yawSteps := fs.String("yaw-steps", "0.05,0.1,0.2", "Comma separated yaw steps in radians")
	jobs := fs.Int("jobs", config.GetEnvIntOrDefault("SWEEP_JOBS", runtime.NumCPU()), "Trees built concurrently (env PRIMTREE_SWEEP_JOBS)")
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

	hs, err := parseFloatList(*horizons)
	if err != nil {
		return fmt.Errorf("-horizons: %w", err)
	}
	ks, err := parseIntList(*branching)
	if err != nil {
		return fmt.Errorf("-branchings: %w", err)
	}
	ys, err := parseFloatList(*yawSteps)
	if err != nil {
		return fmt.Errorf("-yaw-steps: %w", err)
	}

	manifest, err := store.OpenManifest(file.Output.Manifest)
	if err != nil {
		return err
	}
	defer manifest.Close()

	grid := sweepGrid(file.Expansion, hs, ks, ys)
	var todo []expand.Config
	for _, cfg := range grid {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("sweep point %s: %w", store.ConfigKey(cfg, file.Root.Speed), err)
		}
		if manifest.Has(store.ConfigKey(cfg, file.Root.Speed)) {
			continue
		}
		todo = append(todo, cfg)
	}
	logger.Info("sweep starting",
		"points", len(grid),
		"skipped", len(grid)-len(todo),
		"jobs", *jobs,
		"out_dir", file.Output.Dir,
	)
	if len(todo) == 0 {
		return nil
	}

	results := make(chan sweepResult, max(*jobs, 1)*2)
	writerErr := make(chan error, 1)
	go func() {
		writerErr <- sweepWriterLoop(logger, file.Output.Dir, manifest, results)
	}()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*jobs, 1))
	for _, cfg := range todo {
		g.Go(func() error {
			root, err := expand.Build(cfg, file.Root)
			if err != nil {
				return fmt.Errorf("sweep point %s: %w", store.ConfigKey(cfg, file.Root.Speed), err)
			}
			select {
			case results <- sweepResult{key: store.ConfigKey(cfg, file.Root.Speed), cfg: cfg, root: root}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	buildErr := g.Wait()
	close(results)
	if err := <-writerErr; err != nil {
		return err
	}
	if buildErr != nil {
		return buildErr
	}
	logger.Info("sweep complete", "trees", len(todo), "took", time.Since(start))
	return nil
}

// sweepGrid returns the cartesian product of the given parameters on top of
// base, in horizon, branching, yaw step order.
func sweepGrid(base expand.Config, horizons []float64, branching []int, yawSteps []float64) []expand.Config {
	grid := make([]expand.Config, 0, len(horizons)*len(branching)*len(yawSteps))
	for _, h := range horizons {
		for _, k := range branching {
			for _, y := range yawSteps {
				cfg := base
				cfg.Horizon = h
				cfg.Branching = k
				cfg.YawStep = y
				grid = append(grid, cfg)
			}
		}
	}
	return grid
}

// sweepWriterLoop drains in into a single parquet file and records the
// written keys in the manifest once the file is in place. It keeps draining
// after a write error so builders never block.
func sweepWriterLoop(logger *slog.Logger, outDir string, manifest *store.Manifest, in <-chan sweepResult) error {
	bw, err := store.NewBatchWriter(outDir)
	if err != nil {
		for range in {
		}
		return err
	}

	var writeErr error
	for res := range in {
		if writeErr != nil {
			continue
		}
		treeID, err := bw.Add(res.key, res.cfg, res.root)
		if err != nil {
			writeErr = err
			continue
		}
		logger.Debug("tree buffered",
			"key", res.key,
			"tree_id", treeID,
			"trees", bw.Trees(),
			"rows", bw.Rows(),
		)
	}

	batch, err := bw.Finalize()
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		return err
	}
	if batch.Trees == 0 {
		return nil
	}
	if err := manifest.AddMany(batch.Keys); err != nil {
		return fmt.Errorf("update manifest: %w", err)
	}
	logger.Info("sweep written", "path", batch.Path, "trees", batch.Trees, "rows", batch.Rows)
	return nil
}

func parseFloatList(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	return out, nil
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	return out, nil
}
