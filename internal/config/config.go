// Package config assembles a stress.Config from defaults, an optional YAML
// file and command line flags, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/thetarby/rrwlock/internal/stress"
)

// Flags holds the values bound to a flag set by Register.
type Flags struct {
	path string
	cfg  stress.Config
}

// Register adds the stress flags to fs.
func Register(fs *pflag.FlagSet) *Flags {
	f := &Flags{cfg: stress.DefaultConfig()}
	fs.StringVar(&f.path, "config", "", "YAML file with stress settings")
	fs.IntVar(&f.cfg.Contenders, "contenders", f.cfg.Contenders, "reader and writer goroutines per trial")
	fs.IntVar(&f.cfg.Trials, "trials", f.cfg.Trials, "number of trials")
	fs.StringVar(&f.cfg.Variant, "variant", f.cfg.Variant,
		"lock variant: "+strings.Join(stress.Variants(), ", "))
	fs.IntVar(&f.cfg.Depth, "depth", f.cfg.Depth, "recursive entries per contender")
	fs.BoolVar(&f.cfg.Upgrades, "upgrades", f.cfg.Upgrades, "let readers upgrade to writer")
	fs.DurationVar(&f.cfg.TrialTimeout, "trial-timeout", f.cfg.TrialTimeout, "deadline for a single trial")
	fs.IntVar(&f.cfg.LogEvery, "log-every", f.cfg.LogEvery, "log progress every n trials, 0 to disable")
	return f
}

// Resolve returns the effective configuration: defaults, overlaid by the
// config file if one was given, overlaid by every flag set explicitly in fs.
func (f *Flags) Resolve(fs *pflag.FlagSet) (stress.Config, error) {
	cfg := stress.DefaultConfig()
	if f.path != "" {
		var err error
		if cfg, err = Load(f.path); err != nil {
			return stress.Config{}, err
		}
	}

	fs.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "contenders":
			cfg.Contenders = f.cfg.Contenders
		case "trials":
			cfg.Trials = f.cfg.Trials
		case "variant":
			cfg.Variant = f.cfg.Variant
		case "depth":
			cfg.Depth = f.cfg.Depth
		case "upgrades":
			cfg.Upgrades = f.cfg.Upgrades
		case "trial-timeout":
			cfg.TrialTimeout = f.cfg.TrialTimeout
		case "log-every":
			cfg.LogEvery = f.cfg.LogEvery
		}
	})

	if err := cfg.Validate(); err != nil {
		return stress.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Load reads a YAML config file. Keys missing from the file keep their
// default values.
func Load(path string) (stress.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return stress.Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := stress.DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return stress.Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
