// Package config loads the primtree configuration file and resolves
// environment-variable defaults for command-line flags.
//
// Precedence, lowest first: built-in defaults, the JSON file, PRIMTREE_*
// environment variables, explicit flags.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/brensch/primtree/expand"
	"github.com/brensch/primtree/motion"
)

// EnvPrefix prefixes every environment variable read by the commands.
const EnvPrefix = "PRIMTREE_"

// File is the on-disk configuration.
type File struct {
	Root      motion.State  `json:"root" jsonschema:"description=Root vehicle state; elapsed is normally 0"`
	Expansion expand.Config `json:"expansion"`
	Output    OutputConfig  `json:"output"`
	Viewer    ViewerConfig  `json:"viewer"`
	Log       LogConfig     `json:"log"`
}

// OutputConfig controls where trees are written.
type OutputConfig struct {
	Dir      string `json:"dir" jsonschema:"description=Directory for parquet output"`
	Manifest string `json:"manifest" jsonschema:"description=Append-only log of finished sweep points"`
}

// ViewerConfig controls the HTTP viewer.
type ViewerConfig struct {
	Addr     string `json:"addr" jsonschema:"description=Listen address"`
	MaxNodes int    `json:"max_nodes" jsonschema:"description=Largest tree served per request,minimum=1"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `json:"format" jsonschema:"enum=pretty,enum=json,enum=text"`
	Level  string `json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Root:      motion.State{Speed: 0.5},
		Expansion: expand.DefaultConfig(),
		Output: OutputConfig{
			Dir:      "data/trees",
			Manifest: "data/trees/manifest.log",
		},
		Viewer: ViewerConfig{
			Addr:     ":8080",
			MaxNodes: 200_000,
		},
		Log: LogConfig{
			Format: "pretty",
			Level:  "info",
		},
	}
}

// Load reads a JSON configuration file on top of Default. Unknown fields are
// rejected. An empty path returns the defaults. The result is not validated;
// call Validate once flag and environment overrides are applied.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return File{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the expansion parameters and the root state.
func (f File) Validate() error {
	if err := f.Expansion.Validate(); err != nil {
		return err
	}
	if err := f.Root.Validate(); err != nil {
		return fmt.Errorf("%w: root: %w", expand.ErrInvalidArgument, err)
	}
	if f.Viewer.MaxNodes < 0 {
		return fmt.Errorf("%w: viewer max_nodes must not be negative", expand.ErrInvalidArgument)
	}
	return nil
}

func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

func GetEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
			return i
		}
	}
	return defaultVal
}

func GetEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		var f float64
		if _, err := fmt.Sscanf(val, "%g", &f); err == nil {
			return f
		}
	}
	return defaultVal
}

func GetEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
