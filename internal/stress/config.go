package stress

import (
	"fmt"
	"time"

	"github.com/thetarby/rrwlock"
)

// Lock variants selectable by name.
const (
	VariantBaseline = "baseline"
	VariantFair     = "fair"
)

// Variants lists every name accepted by NewLock.
func Variants() []string {
	return []string{VariantBaseline, VariantFair}
}

// NewLock constructs the lock variant called name.
func NewLock(name string) (rrwlock.ReentrantRWLock, error) {
	switch name {
	case VariantBaseline:
		return rrwlock.New(), nil
	case VariantFair:
		return rrwlock.New2(), nil
	default:
		return nil, fmt.Errorf("unknown lock variant %q (want one of %v)", name, Variants())
	}
}

// Config describes a stress run.
type Config struct {
	// Contenders is the number of reader and, separately, writer goroutines
	// started per trial.
	Contenders int `yaml:"contenders"`

	Trials  int    `yaml:"trials"`
	Variant string `yaml:"variant"`

	// Depth is how many times each contender re-enters its side.
	Depth int `yaml:"depth"`

	// Upgrades makes readers try to upgrade to writer while reading.
	Upgrades bool `yaml:"upgrades"`

	// TrialTimeout bounds a single trial; exceeding it is reported as a
	// deadlock.
	TrialTimeout time.Duration `yaml:"trial_timeout"`

	// LogEvery logs progress every that many trials; 0 disables it.
	LogEvery int `yaml:"log_every"`
}

// DefaultConfig matches the scenario the locks are usually checked with.
func DefaultConfig() Config {
	return Config{
		Contenders:   4,
		Trials:       1000,
		Variant:      VariantFair,
		Depth:        1,
		TrialTimeout: 10 * time.Second,
		LogEvery:     10,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Contenders <= 0:
		return fmt.Errorf("contenders must be positive, got %d", c.Contenders)
	case c.Trials <= 0:
		return fmt.Errorf("trials must be positive, got %d", c.Trials)
	case c.Depth <= 0:
		return fmt.Errorf("depth must be positive, got %d", c.Depth)
	case c.TrialTimeout <= 0:
		return fmt.Errorf("trial timeout must be positive, got %v", c.TrialTimeout)
	case c.LogEvery < 0:
		return fmt.Errorf("log every must not be negative, got %d", c.LogEvery)
	}
	_, err := NewLock(c.Variant)
	return err
}
