package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/config"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/gateway"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/iec104"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/iec61850"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/logging"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/mapping"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/metrics"
)

// defaultMappingFile is used when no positional argument is given.
const defaultMappingFile = "config.local.ini"

func runGateway(cmd *cobra.Command, args []string) error {
	// Load runtime settings (defaults apply when the file is absent)
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := logging.Level(cfg.Logging.Level)
	if verbose {
		level = logging.LevelDebug
	}
	log := logging.New(logging.Config{
		Level:  level,
		Format: logging.Format(cfg.Logging.Format),
	})

	mappingPath := defaultMappingFile
	if len(args) > 0 {
		mappingPath = args[0]
	}
	if _, err := os.Stat(mappingPath); err != nil {
		return fmt.Errorf("mapping file not found: %s", mappingPath)
	}

	log.Info("gateway starting", "mapping", mappingPath)

	tables, err := mapping.Build(mappingPath, log)
	if err != nil {
		return err
	}

	m := metrics.New()
	if cfg.Metrics.ListenAddress != "" {
		go serveMetrics(cfg.Metrics.ListenAddress, m, log)
	}

	adapter := iec104.New(cfg.IEC104.ListenAddress, cfg.IEC104.CommonAddress, log)
	gw := gateway.New(cfg, tables, adapter, iec61850.DefaultFactory, log, m)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go watchSignals(cancel, log)

	return gw.Run(ctx)
}

// watchSignals cancels the run context on SIGINT or SIGTERM.
func watchSignals(cancel context.CancelFunc, log *logging.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())
	cancel()
	signal.Stop(sigCh)
}

// serveMetrics exposes the Prometheus endpoint.
func serveMetrics(addr string, m *metrics.Metrics, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	log.Info("serving metrics", "listen", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics endpoint failed", "error", err.Error())
	}
}
