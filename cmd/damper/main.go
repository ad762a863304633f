//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vmxdev/damper/internal/config"
	"github.com/vmxdev/damper/internal/engine"
	"github.com/vmxdev/damper/internal/modules"
	"github.com/vmxdev/damper/internal/source"
)

func main() {
	root := &cobra.Command{
		Use:   "damper <config-path>",
		Short: "User-space priority traffic shaper",
		Long: `damper intercepts IPv4 packets diverted from the kernel, scores each one
through a chain of pluggable modules, admits it into a fixed-capacity priority
buffer, and releases packets downstream at a configured byte-rate limit. A
statistics subsystem records per-second pass/drop counters and, optionally,
per-module weight averages.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0])
		},
	}

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	cfg, err := config.Parse(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Limit == 0 {
		slog.Warn("limit is 0: every packet will be dropped")
	}

	registry := modules.NewRegistry()
	for _, d := range cfg.Modules {
		if err := registry.Configure(d.Module, d.Arg1, d.Arg2); err != nil {
			slog.Warn("module configure failed, ignoring", "module", d.Module, "error", err)
		}
	}
	for _, name := range registry.PostConf() {
		slog.Warn("module disabled after postconf", "module", name)
	}
	defer registry.Close()

	// The real NFQUEUE binding is a platform-specific adapter this build
	// doesn't include; wiring the in-memory source here keeps the shaping
	// engine independently runnable and testable. A production build
	// swaps this for a cgo/NFQUEUE adapter implementing
	// internal/source.Source.
	src := source.NewChannelSource(cfg.NFQLen)
	defer src.Close()

	e := engine.New(slog.Default(), cfg, registry, src)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return e.Run(ctx)
}
