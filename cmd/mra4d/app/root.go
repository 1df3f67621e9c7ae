// cmd/mra4d/app/root.go
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"

	"github.com/tamzrod/mra4-gateway/internal/alarm"
	"github.com/tamzrod/mra4-gateway/internal/api"
	"github.com/tamzrod/mra4-gateway/internal/config"
	"github.com/tamzrod/mra4-gateway/internal/control"
	"github.com/tamzrod/mra4-gateway/internal/gateway"
	"github.com/tamzrod/mra4-gateway/internal/history"
	"github.com/tamzrod/mra4-gateway/internal/logbuf"
	"github.com/tamzrod/mra4-gateway/internal/poller"
	"github.com/tamzrod/mra4-gateway/internal/publish"
	"github.com/tamzrod/mra4-gateway/internal/status"
)

const (
	componentName = "mra4d"

	shutdownTimeout = 5 * time.Second
)

// NewCommand returns the mra4d root command with its subcommands.
func NewCommand() *cobra.Command {
	o := &Options{}

	cmd := &cobra.Command{
		Use:           componentName,
		Short:         "Gateway for a Woodward MRA 4 protection relay over Modbus TCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.Config()
			if err != nil {
				klog.ErrorS(err, "Invalid configuration", "file", o.ConfigFile)
				return err
			}
			return run(cfg)
		},
	}

	o.AddFlags(cmd.PersistentFlags())
	cmd.AddCommand(newProbeCommand(o))

	return cmd
}

func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logs := installLogBuffer()
	klog.InfoS("Starting", "component", componentName, "mode", cfg.Device.Mode, "host", cfg.Device.Host, "port", cfg.Device.Port)

	// ---- poller ----
	p, err := poller.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			klog.V(1).InfoS("Device close failed", "error", err)
		}
	}()

	// ---- publishers ----
	pubs, err := publish.Build(cfg.MQTT)
	if err != nil {
		// Keep running without MQTT.
		klog.ErrorS(err, "MQTT disabled")
	}
	defer pubs.Close()

	tracker := status.NewTracker()
	hist := history.New(cfg.History.Points)
	evaluator := alarm.Evaluator{MaxPowerKW: cfg.Alarm.MaxPowerKW, WarnPercent: cfg.Alarm.WarnPercent}

	// ---- channel between poller and orchestrator ----
	out := make(chan poller.PollResult)
	orch := gateway.New(tracker, hist, evaluator, pubs)

	go orch.Run(ctx, out)
	go p.Run(ctx, out)

	// ---- HTTP API ----
	if cfg.API.Enabled {
		dispatcher := control.New(control.Config{
			Pulse:        cfg.Device.CouplingPulse(),
			UnlockWindow: cfg.Device.CouplingUnlock(),
		}, p)

		srv := api.NewServer(cfg.API.Listen, api.Deps{
			Poller:    p,
			Status:    tracker,
			History:   hist,
			Control:   dispatcher,
			Evaluator: evaluator,
			Logs:      logs,
		})
		shutdown := srv.Serve()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			shutdown(sctx)
		}()
	}

	<-ctx.Done()
	exitOnSecondSignal()
	klog.InfoS("Shutting down")
	return nil
}

// installLogBuffer routes klog through a sink that keeps recent lines for
// GET /api/v1/logs and still writes every line to stderr.
func installLogBuffer() *logbuf.Sink {
	stderr := textlogger.NewLogger(textlogger.NewConfig(textlogger.Output(os.Stderr)))
	sink := logbuf.NewSink(stderr.GetSink(), logbuf.DefaultCapacity, logbuf.DefaultDebugCapacity)
	klog.SetLogger(logr.New(sink))
	return sink
}

// exitOnSecondSignal makes a second SIGINT/SIGTERM fatal during shutdown.
func exitOnSecondSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		klog.Flush()
		os.Exit(1)
	}()
}
