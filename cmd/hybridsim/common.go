package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/nvandessel/hybridsim/internal/config"
	"github.com/nvandessel/hybridsim/internal/store"
	"github.com/spf13/cobra"
)

// loadConfig reads --config (or the defaults) and applies the global
// --log-level, --store and --db overrides.
func loadConfig(cmd *cobra.Command) (*config.SimConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Backend = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.Store.Path = v
	}
	return cfg, nil
}

// openStore opens the run store selected by the configuration and flags.
func openStore(cmd *cobra.Command) (store.RunStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	s, err := store.NewRunStore(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

// signalContext returns a context cancelled on SIGINT (and SIGTERM where
// available).
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	notifySignals(ch)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
