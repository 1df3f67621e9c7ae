// cmd/mra4d/app/probe.go
package app

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tamzrod/mra4-gateway/internal/alarm"
	"github.com/tamzrod/mra4-gateway/internal/config"
	"github.com/tamzrod/mra4-gateway/internal/device"
	"github.com/tamzrod/mra4-gateway/internal/poller"
)

type probeOutput struct {
	Reading    device.Reading   `json:"reading"`
	Evaluation alarm.Evaluation `json:"evaluation"`
}

func newProbeCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Connect once, read every value and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.Config()
			if err != nil {
				return err
			}
			return probe(cmd.Context(), cfg)
		},
	}
}

func probe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	dev, err := poller.NewFactory(cfg.Device)(device.Mode(cfg.Device.Mode))
	if err != nil {
		return err
	}
	if err := poller.Probe(ctx, dev, cfg.Device.Timeout(), cfg.Probe.Interval()); err != nil {
		return err
	}
	defer dev.Disconnect()

	r := dev.ReadAllData()
	ev := alarm.Evaluator{MaxPowerKW: cfg.Alarm.MaxPowerKW, WarnPercent: cfg.Alarm.WarnPercent}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(probeOutput{Reading: r, Evaluation: ev.Evaluate(r)}); err != nil {
		return err
	}
	if r.Failed >= device.ReadingFields {
		return poller.ErrNoData
	}
	return nil
}
