package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"buzzerd/internal/config"
	"buzzerd/internal/logging"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to YAML config (built-in defaults when empty)")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
			os.Exit(1)
		}
	}

	logs := logging.NewBuffer(cfg.Log.BufferLines)
	log, closeLog, err := logging.New(cfg.Log, logs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt := newRuntime(cfg, configPath, logs, log)
	log.Info("buzzerd starting", "listen", cfg.Listen, "backend", cfg.Buzzer.Backend, "pin", cfg.Buzzer.Pin, "active_low", cfg.Buzzer.ActiveLow)

	runErr := rt.Run(ctx)
	if err := rt.Close(); err != nil {
		log.Warn("buzzer release failed", "err", err)
	}
	if runErr != nil {
		log.Error("buzzerd stopped", "err", runErr)
		closeLog()
		os.Exit(1)
	}
	log.Info("buzzerd stopped")
}
