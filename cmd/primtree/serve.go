package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/primtree/config"
	"github.com/brensch/primtree/tui"
	"github.com/brensch/primtree/viewer"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common := addCommonFlags(fs)
	addr := fs.String("addr", "", "Listen address (env PRIMTREE_ADDR, default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	file, err := common.resolve(fs)
	if err != nil {
		return err
	}
	if *addr != "" {
		file.Viewer.Addr = *addr
	} else {
		file.Viewer.Addr = config.GetEnvOrDefault("ADDR", file.Viewer.Addr)
	}
	logger, err := newLogger(file)
	if err != nil {
		return err
	}

	return viewer.NewServer(file, logger).ListenAndServe(ctx)
}

func runExplore(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("explore", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	file, err := common.resolve(fs)
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.New(ctx, file.Root, file.Expansion), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("explore: %w", err)
	}
	return nil
}

func runSchema(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	out := fs.String("out", "", "Write the schema to this path instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *out != "" {
		return config.WriteSchema(*out)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(config.Schema())
}
