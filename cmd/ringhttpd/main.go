// File: cmd/ringhttpd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ringhttpd is the process entry point: it wires config, telemetry, and
// the event loop together, and owns signal-driven shutdown. Modeled on
// the pack's cobra-based CLI bootstraps (e.g. fenilsonani-vcs/cmd/vcs).
//
//go:build linux

package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/candtechsoftware/zever/internal/affinity"
	"github.com/candtechsoftware/zever/internal/config"
	"github.com/candtechsoftware/zever/internal/server"
	"github.com/candtechsoftware/zever/internal/telemetry"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	cfg := config.DefaultConfig()
	var pinCPU int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the io_uring HTTP/1.x echo server",
		Long: `Starts a single-threaded HTTP/1.x server driven directly by
io_uring: accept, recv, parse, and send all flow through one submission
and completion ring, with no per-connection goroutine.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg, pinCPU)
		},
	}

	cmd.Flags().StringVar(&cfg.Host, "host", cfg.Host, "listen address")
	cmd.Flags().Uint16Var(&cfg.Port, "port", cfg.Port, "listen port")
	cmd.Flags().Uint32Var(&cfg.QueueDepth, "queue-depth", cfg.QueueDepth, "io_uring submission/completion queue depth")
	cmd.Flags().IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "per-slot recv/send buffer size in bytes")
	cmd.Flags().IntVar(&cfg.BufferCount, "buffer-count", cfg.BufferCount, "number of slots in the buffer pool")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "minimum telemetry level to log (debug|warn|error)")
	cmd.Flags().IntVar(&pinCPU, "pin-cpu", -1, "pin the event loop's OS thread to this CPU core (-1 disables pinning)")

	return cmd
}

func runServe(cfg *config.ServerConfig, pinCPU int) error {
	sink := telemetry.New(2, telemetry.ParseLevel(cfg.LogLevel))
	defer sink.Close()

	// store publishes the resolved log level to the telemetry sink at
	// startup, and lets a SIGHUP re-publish a changed level (sourced from
	// RINGHTTPD_LOG_LEVEL) without restarting the process — the ambient
	// reload-hook pattern the teacher's control.ConfigStore provides.
	store := config.NewStore()
	store.OnReload(func() {
		snap := store.Snapshot()
		if lv, ok := snap[config.LogLevelKey].(string); ok {
			sink.SetMinLevel(telemetry.ParseLevel(lv))
		}
	})
	store.Set(map[string]any{config.LogLevelKey: cfg.LogLevel})

	if pinCPU >= 0 {
		runtime.LockOSThread()
		if err := affinity.Pin(pinCPU); err != nil {
			return fmt.Errorf("pinning event loop to cpu %d: %w", pinCPU, err)
		}
	}

	srv, err := server.New(cfg, sink)
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				if lv, ok := os.LookupEnv("RINGHTTPD_LOG_LEVEL"); ok {
					store.Set(map[string]any{config.LogLevelKey: lv})
				}
				continue
			}
			srv.Stop()
			return
		}
	}()

	serveErr := srv.Serve()
	signal.Stop(sigCh)
	close(sigCh)
	srv.Close()

	fmt.Fprintf(os.Stderr, "ringhttpd: %s\n", sink.Counts.String())

	return serveErr
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ringhttpd",
		Short: "ringhttpd runs a minimal HTTP/1.x server directly on io_uring",
	}
	root.AddCommand(newServeCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
