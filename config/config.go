// Package config holds all operator-tunable settings for the retrohunt
// engine. Every knob has a default; a config file and RETROHUNT_* environment
// variables override it.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DormancyConfig tunes the dormancy-activation detector.
type DormancyConfig struct {
	LookbackDays  int `mapstructure:"lookback_days" validate:"gt=0"`
	DaysThreshold int `mapstructure:"days_threshold" validate:"gt=0"`
}

// BeaconingConfig tunes the beaconing detector.
type BeaconingConfig struct {
	LookbackDays         int     `mapstructure:"lookback_days" validate:"gt=0"`
	ActiveDaysThreshold  int     `mapstructure:"active_days_threshold" validate:"gt=0"`
	ConsistencyThreshold float64 `mapstructure:"consistency_threshold" validate:"gt=0,lte=1"`
}

// ExfiltrationConfig tunes the baseline-deviation exfiltration detector.
type ExfiltrationConfig struct {
	LookbackDays int `mapstructure:"lookback_days" validate:"gt=0"`
}

// ReconConfig tunes the distributed reconnaissance correlator.
type ReconConfig struct {
	LookbackDays int `mapstructure:"lookback_days" validate:"gt=0"`
}

// ServiceAccountConfig tunes the service-account novel-access detector. The
// baseline window ends RecentDays before the run clock and extends
// BaselineDays further back; the recent window covers everything after.
type ServiceAccountConfig struct {
	BaselineDays int `mapstructure:"baseline_days" validate:"gt=0"`
	RecentDays   int `mapstructure:"recent_days" validate:"gt=0"`
}

// AttackChainConfig tunes the cross-system attack-chain reconstructor.
type AttackChainConfig struct {
	LookbackDays int `mapstructure:"lookback_days" validate:"gt=0"`
	MinHosts     int `mapstructure:"min_hosts" validate:"gt=0"`
	MinDays      int `mapstructure:"min_days" validate:"gte=0"`
}

// Config is the full configuration surface of the engine.
type Config struct {
	Engine struct {
		// MaxAlerts caps each detector's ranked output.
		MaxAlerts int `mapstructure:"max_alerts" validate:"gt=0"`
	} `mapstructure:"engine"`

	Detectors struct {
		Dormancy       DormancyConfig       `mapstructure:"dormancy"`
		Beaconing      BeaconingConfig      `mapstructure:"beaconing"`
		Exfiltration   ExfiltrationConfig   `mapstructure:"exfiltration"`
		Recon          ReconConfig          `mapstructure:"recon"`
		ServiceAccount ServiceAccountConfig `mapstructure:"service_account"`
		AttackChain    AttackChainConfig    `mapstructure:"attack_chain"`
	} `mapstructure:"detectors"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.max_alerts", 100)

	v.SetDefault("detectors.dormancy.lookback_days", 90)
	v.SetDefault("detectors.dormancy.days_threshold", 30)

	v.SetDefault("detectors.beaconing.lookback_days", 60)
	v.SetDefault("detectors.beaconing.active_days_threshold", 10)
	v.SetDefault("detectors.beaconing.consistency_threshold", 0.8)

	v.SetDefault("detectors.exfiltration.lookback_days", 60)

	v.SetDefault("detectors.recon.lookback_days", 30)

	v.SetDefault("detectors.service_account.baseline_days", 90)
	v.SetDefault("detectors.service_account.recent_days", 30)

	v.SetDefault("detectors.attack_chain.lookback_days", 60)
	v.SetDefault("detectors.attack_chain.min_hosts", 3)
	v.SetDefault("detectors.attack_chain.min_days", 7)
}

// Load reads configuration from the optional YAML file at path, applies
// RETROHUNT_* environment overrides, fills defaults, and validates the
// result. An empty path means defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RETROHUNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration, which matches the documented
// per-detector defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults are validated in tests; a failure here is programmer error.
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// Validate checks threshold sanity. It rejects non-positive windows and
// consistency thresholds outside (0, 1].
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
