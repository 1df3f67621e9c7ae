// cmd/mra4d/app/options.go
package app

import (
	goflag "flag"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/tamzrod/mra4-gateway/internal/config"
)

// Options are the command-line overrides applied on top of the config file.
type Options struct {
	ConfigFile string
	Simulator  bool
	Listen     string
}

// AddFlags binds the options and the klog flags to fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "Path to the YAML configuration file. Defaults apply when empty.")
	fs.BoolVar(&o.Simulator, "simulator", o.Simulator, "Start with the simulated relay regardless of device.mode.")
	fs.StringVar(&o.Listen, "listen", o.Listen, "HTTP API listen address, overrides api.listen.")

	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)
	fs.AddGoFlagSet(klogFlags)
}

// Config loads, overrides, validates and normalizes the configuration.
func (o *Options) Config() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, err
	}

	if o.Simulator {
		cfg.Device.Mode = "simulator"
	}
	if o.Listen != "" {
		cfg.API.Listen = o.Listen
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}
