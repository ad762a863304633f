package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmxdev/damper/internal/chart"
)

func main() {
	var (
		statDir  string
		cacheDir string
		addr     string
	)

	root := &cobra.Command{
		Use:   "damperimg",
		Short: "Render traffic charts from damper statistics files",
		Long: `damperimg serves PNG charts of pass/drop traffic (packets or bytes) over
HTTP, reading the binary per-second files a running damper instance writes
to its statistics directory. Per-module weight-average series are not
charted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(statDir, cacheDir, addr)
		},
	}

	root.Flags().StringVar(&statDir, "statdir", "/var/lib/damper/stat", "directory containing dstat/module statistics files")
	root.Flags().StringVar(&cacheDir, "cachedir", "", "directory to cache rendered PNGs in (disabled if empty)")
	root.Flags().StringVar(&addr, "addr", ":8090", "address to listen on")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(statDir, cacheDir, addr string) error {
	log := slog.Default()
	srv := chart.NewServer(log, statDir, cacheDir)

	log.Info("damperimg listening", "addr", addr, "statdir", statDir)
	if err := http.ListenAndServe(addr, srv); err != nil {
		return fmt.Errorf("serving charts: %w", err)
	}
	return nil
}
