// Command primtree builds motion-primitive trees: the set of short-horizon
// states a constant-speed vehicle can reach by sampling yaw changes at every
// time step. Trees are written to parquet, served to a renderer, or explored
// interactively.
//
// Usage:
//
//	primtree build   [flags]   expand once and write a parquet file
//	primtree sweep   [flags]   expand a grid of configurations into one file
//	primtree inspect [flags] f summarize trees stored in parquet files
//	primtree serve   [flags]   serve trees over HTTP and websocket
//	primtree explore [flags]   interactive terminal dashboard
//	primtree schema  [-out p]  print or write the config file JSON schema
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brensch/primtree/config"
	"github.com/brensch/primtree/logging"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = []command{
	{"build", "expand once and write a parquet file", runBuild},
	{"sweep", "expand a grid of configurations into one parquet file", runSweep},
	{"inspect", "summarize the trees stored in parquet files", runInspect},
	{"serve", "serve trees over HTTP and websocket", runServe},
	{"explore", "interactive terminal dashboard", runExplore},
	{"schema", "print or write the config file JSON schema", runSchema},
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := os.Args[1]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "primtree %s: %v\n", name, err)
			os.Exit(1)
		}
		return
	}

	if name == "-h" || name == "-help" || name == "help" {
		usage(os.Stdout)
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	usage(os.Stderr)
	os.Exit(2)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: primtree <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
}

// commonFlags are shared by every command that builds trees.
type commonFlags struct {
	configPath string
	logFormat  string
	logLevel   string

	deltaTime float64
	horizon   float64
	yawStep   float64
	branching int
	workers   int
	maxNodes  int
	speed     float64
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	def := config.Default()
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", config.GetEnvOrDefault("CONFIG", ""), "Path to a JSON config file (env PRIMTREE_CONFIG)")
	fs.StringVar(&c.logFormat, "log-format", def.Log.Format, "Log format: pretty, json or text (env PRIMTREE_LOG_FORMAT)")
	fs.StringVar(&c.logLevel, "log-level", def.Log.Level, "Log level: debug, info, warn or error (env PRIMTREE_LOG_LEVEL)")
	fs.Float64Var(&c.deltaTime, "delta-time", def.Expansion.DeltaTime, "Seconds per tree edge (env PRIMTREE_DELTA_TIME)")
	fs.Float64Var(&c.horizon, "horizon", def.Expansion.Horizon, "Total prediction window in seconds (env PRIMTREE_TIME_HORIZON)")
	fs.Float64Var(&c.yawStep, "yaw-step", def.Expansion.YawStep, "Radians between yaw samples (env PRIMTREE_YAW_STEP)")
	fs.IntVar(&c.branching, "branching", def.Expansion.Branching, "Yaw samples per expansion (env PRIMTREE_BRANCHING_FACTOR)")
	fs.IntVar(&c.workers, "workers", def.Expansion.Workers, "Goroutines for parallel expansion, 0 = GOMAXPROCS (env PRIMTREE_WORKERS)")
	fs.IntVar(&c.maxNodes, "max-nodes", def.Expansion.MaxNodes, "Refuse trees larger than this, 0 = unlimited (env PRIMTREE_MAX_NODES)")
	fs.Float64Var(&c.speed, "speed", def.Root.Speed, "Root speed in m/s (env PRIMTREE_SPEED)")
	return c
}

// resolve loads the config file and applies, for each setting, the explicit
// flag if given, else the environment variable, else the file value.
func (c *commonFlags) resolve(fs *flag.FlagSet) (config.File, error) {
	file, err := config.Load(c.configPath)
	if err != nil {
		return config.File{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	str := func(flagName, env string, v string, dst *string) {
		if set[flagName] {
			*dst = v
			return
		}
		*dst = config.GetEnvOrDefault(env, *dst)
	}
	num := func(flagName, env string, v float64, dst *float64) {
		if set[flagName] {
			*dst = v
			return
		}
		*dst = config.GetEnvFloatOrDefault(env, *dst)
	}
	integer := func(flagName, env string, v int, dst *int) {
		if set[flagName] {
			*dst = v
			return
		}
		*dst = config.GetEnvIntOrDefault(env, *dst)
	}

	str("log-format", "LOG_FORMAT", c.logFormat, &file.Log.Format)
	str("log-level", "LOG_LEVEL", c.logLevel, &file.Log.Level)
	num("delta-time", "DELTA_TIME", c.deltaTime, &file.Expansion.DeltaTime)
	num("horizon", "TIME_HORIZON", c.horizon, &file.Expansion.Horizon)
	num("yaw-step", "YAW_STEP", c.yawStep, &file.Expansion.YawStep)
	integer("branching", "BRANCHING_FACTOR", c.branching, &file.Expansion.Branching)
	integer("workers", "WORKERS", c.workers, &file.Expansion.Workers)
	integer("max-nodes", "MAX_NODES", c.maxNodes, &file.Expansion.MaxNodes)
	num("speed", "SPEED", c.speed, &file.Root.Speed)

	if err := file.Validate(); err != nil {
		return config.File{}, err
	}
	return file, nil
}

func newLogger(file config.File) (*slog.Logger, error) {
	return logging.NewLogger(os.Stderr, file.Log.Format, file.Log.Level)
}
