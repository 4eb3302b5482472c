// ha-monitor watches the Home Assistant availability topic on an MQTT
// broker and runs the engine helper whenever Home Assistant comes back
// online.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/victor-fedorov-wb/ha-monitor/internal/action"
	"github.com/victor-fedorov-wb/ha-monitor/internal/infrastructure/config"
	"github.com/victor-fedorov-wb/ha-monitor/internal/infrastructure/influxdb"
	"github.com/victor-fedorov-wb/ha-monitor/internal/infrastructure/logging"
	"github.com/victor-fedorov-wb/ha-monitor/internal/infrastructure/mqtt"
	"github.com/victor-fedorov-wb/ha-monitor/internal/watcher"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// configEnvVar names the config file when --config is not given.
const configEnvVar = "HAMONITOR_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "ha-monitor",
		Short: "Run the engine helper when Home Assistant comes back online",
		Long: `ha-monitor subscribes to the Home Assistant availability topic and runs
the configured action on the first "online" status and on every
offline to online transition after that.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "",
		"path to YAML config file (env "+configEnvVar+")")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ha-monitor %s (commit %s, built %s)\n", version, commit, date)
		},
	})

	return root
}

// resolveConfigPath prefers the flag, then the environment. Empty means
// defaults plus environment overrides only.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(configEnvVar)
}

// run wires the components and blocks until ctx is cancelled or the
// connection manager gives up.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting ha-monitor",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	runner := action.NewRunner(action.Config{
		Name:    "action",
		Binary:  cfg.Action.Binary,
		Args:    cfg.Action.Args,
		Async:   cfg.Action.Async,
		Timeout: cfg.Action.GetTimeout(),
	})
	runner.SetLogger(log.With("component", "action"))

	var watchOpts []watcher.Option

	telemetry, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Debug("telemetry disabled")
	case err != nil:
		// Telemetry is optional; the watcher runs without it
		log.Warn("telemetry unavailable", "url", cfg.InfluxDB.URL, "error", err)
	default:
		defer func() {
			log.Info("closing telemetry")
			if closeErr := telemetry.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		telemetry.SetOnError(func(writeErr error) {
			log.Warn("telemetry write failed", "error", writeErr)
		})
		runner.SetRecorder(telemetry)
		watchOpts = append(watchOpts, watcher.WithRecorder(telemetry))
		log.Info("telemetry connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	mgr, err := mqtt.NewManager(cfg.MQTT, cfg.Watch.Topic,
		mqtt.WithLogger(log.With("component", "mqtt")),
	)
	if err != nil {
		return fmt.Errorf("creating mqtt manager: %w", err)
	}

	// Drain running actions before telemetry closes so their outcomes are recorded
	defer func() {
		if runner.InFlight() == 0 {
			return
		}
		log.Info("waiting for running actions", "count", runner.InFlight(), "grace", cfg.Action.GetShutdownGrace())
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Action.GetShutdownGrace())
		defer cancel()
		if waitErr := runner.Wait(waitCtx); waitErr != nil {
			log.Warn("leaving actions running", "error", waitErr)
		}
	}()

	w := watcher.New(cfg.Watch.Topic, runner, log.With("component", "watcher"), watchOpts...)

	mqttErr := make(chan error, 1)
	go func() {
		mqttErr <- mgr.Run(ctx)
	}()

	log.Info("ha-monitor started",
		"broker", mgr.Broker(),
		"topic", cfg.Watch.Topic,
		"action", cfg.Action.Binary,
	)

	// Returns once ctx is cancelled or the manager closes the event stream
	if err := w.Run(ctx, mgr.Events()); err != nil {
		return fmt.Errorf("watcher: %w", err)
	}

	if err := <-mqttErr; err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	log.Info("ha-monitor stopped",
		"actions_run", runner.Runs(),
		"actions_failed", runner.Failures(),
	)
	return nil
}
