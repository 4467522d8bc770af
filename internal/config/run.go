/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/logging"
	"github.com/llm-d/market-equilibrium/internal/subsector"
)

// EnvPrefix prefixes environment overrides, e.g. EQ_WORKERS=4.
const EnvPrefix = "EQ"

// Configuration keys. Flags use the same names.
const (
	KeyConfigFile               = "config"
	KeyScenario                 = "scenario"
	KeyCalibrationEnabled       = "calibrationEnabled"
	KeyCalAccuracy              = "calAccuracy"
	KeyPrintWarnings            = "printWarnings"
	KeyMaxCalibrationIterations = "maxCalibrationIterations"
	KeyWorkers                  = "workers"
	KeyCapLimitMode             = "capLimitMode"
	KeyRegions                  = "regions"
	KeyMetricsFile              = "metricsFile"
	KeyLogLevel                 = "logLevel"
	KeyDevelopment              = "development"
)

// Defaults.
const (
	DefaultCalAccuracy              = 0.001
	DefaultMaxCalibrationIterations = 20
	DefaultWorkers                  = 1
)

// RunConfig holds the settings of one model run.
type RunConfig struct {
	// Scenario is the path of the scenario YAML file.
	Scenario string `yaml:"scenario" json:"scenario"`

	// CalibrationEnabled gates calibration scaling of share weights.
	CalibrationEnabled bool `yaml:"calibrationEnabled" json:"calibrationEnabled"`

	// CalAccuracy is the relative and absolute tolerance of calibration
	// checks.
	CalAccuracy float64 `yaml:"calAccuracy" json:"calAccuracy"`

	// PrintWarnings logs every uncalibrated sector. It does not change
	// results.
	PrintWarnings bool `yaml:"printWarnings,omitempty" json:"printWarnings,omitempty"`

	// MaxCalibrationIterations bounds the calc passes run per period while
	// calibrating.
	MaxCalibrationIterations int `yaml:"maxCalibrationIterations" json:"maxCalibrationIterations"`

	// Workers is the number of regions solved concurrently.
	Workers int `yaml:"workers" json:"workers"`

	// CapLimitMode selects hard or smooth capacity limits for every
	// subsector without an explicit mode.
	CapLimitMode subsector.CapLimitMode `yaml:"capLimitMode" json:"capLimitMode"`

	// Regions restricts calc passes to these regions. Empty means all.
	Regions []string `yaml:"regions,omitempty" json:"regions,omitempty"`

	// MetricsFile receives the run metrics in Prometheus text format.
	MetricsFile string `yaml:"metricsFile,omitempty" json:"metricsFile,omitempty"`

	// LogLevel is the logging verbosity: 0 info, 1 debug, 2 trace.
	LogLevel int `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`

	// Development switches to human readable logs.
	Development bool `yaml:"development,omitempty" json:"development,omitempty"`
}

// BindFlags registers the run flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfigFile, "", "Optional YAML file with run settings.")
	fs.String(KeyScenario, "", "Path of the scenario YAML file.")
	fs.Bool(KeyCalibrationEnabled, true, "Scale share weights to match calibration data.")
	fs.Float64(KeyCalAccuracy, DefaultCalAccuracy, "Tolerance of calibration checks.")
	fs.Bool(KeyPrintWarnings, false, "Log every uncalibrated sector.")
	fs.Int(KeyMaxCalibrationIterations, DefaultMaxCalibrationIterations, "Maximum calc passes per period while calibrating.")
	fs.Int(KeyWorkers, DefaultWorkers, "Number of regions solved concurrently.")
	fs.String(KeyCapLimitMode, string(subsector.CapLimitHard), "Capacity limit mode: hard or smooth.")
	fs.StringSlice(KeyRegions, nil, "Solve only these regions.")
	fs.String(KeyMetricsFile, "", "Write run metrics in Prometheus text format to this file (\"-\" for standard output).")
	fs.Int(KeyLogLevel, 0, "Log verbosity: 0 info, 1 debug, 2 trace.")
	fs.Bool(KeyDevelopment, false, "Human readable logs.")
}

// NewViper returns a viper instance reading EQ_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyCalibrationEnabled, true)
	v.SetDefault(KeyCalAccuracy, DefaultCalAccuracy)
	v.SetDefault(KeyMaxCalibrationIterations, DefaultMaxCalibrationIterations)
	v.SetDefault(KeyWorkers, DefaultWorkers)
	v.SetDefault(KeyCapLimitMode, string(subsector.CapLimitHard))
	return v
}

// Load resolves the run configuration. Explicit flags win over EQ_*
// environment variables, which win over the optional config file, which
// wins over defaults.
func Load(fs *pflag.FlagSet) (*RunConfig, error) {
	v := NewViper()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	cfg := &RunConfig{
		Scenario:                 v.GetString(KeyScenario),
		CalibrationEnabled:       v.GetBool(KeyCalibrationEnabled),
		CalAccuracy:              v.GetFloat64(KeyCalAccuracy),
		PrintWarnings:            v.GetBool(KeyPrintWarnings),
		MaxCalibrationIterations: v.GetInt(KeyMaxCalibrationIterations),
		Workers:                  v.GetInt(KeyWorkers),
		CapLimitMode:             subsector.CapLimitMode(v.GetString(KeyCapLimitMode)),
		Regions:                  v.GetStringSlice(KeyRegions),
		MetricsFile:              v.GetString(KeyMetricsFile),
		LogLevel:                 v.GetInt(KeyLogLevel),
		Development:              v.GetBool(KeyDevelopment),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctrl.Log.V(logging.DEBUG).Info("Loaded run config",
		"scenario", cfg.Scenario,
		"calibrationEnabled", cfg.CalibrationEnabled,
		"calAccuracy", cfg.CalAccuracy,
		"workers", cfg.Workers,
		"capLimitMode", cfg.CapLimitMode)
	return cfg, nil
}

// Validate checks for invalid configuration values.
func (c *RunConfig) Validate() error {
	var errs field.ErrorList
	if c.Scenario == "" {
		errs = append(errs, field.Required(field.NewPath(KeyScenario), "a scenario file is required"))
	}
	if c.CalAccuracy <= 0 {
		errs = append(errs, field.Invalid(field.NewPath(KeyCalAccuracy), c.CalAccuracy, "must be > 0"))
	}
	if c.MaxCalibrationIterations < 1 {
		errs = append(errs, field.Invalid(field.NewPath(KeyMaxCalibrationIterations), c.MaxCalibrationIterations, "must be >= 1"))
	}
	if c.Workers < 1 {
		errs = append(errs, field.Invalid(field.NewPath(KeyWorkers), c.Workers, "must be >= 1"))
	}
	switch c.CapLimitMode {
	case subsector.CapLimitHard, subsector.CapLimitSmooth:
	default:
		errs = append(errs, field.NotSupported(field.NewPath(KeyCapLimitMode), c.CapLimitMode,
			[]subsector.CapLimitMode{subsector.CapLimitHard, subsector.CapLimitSmooth}))
	}
	if c.LogLevel < 0 || c.LogLevel > logging.TRACE {
		errs = append(errs, field.Invalid(field.NewPath(KeyLogLevel), c.LogLevel, fmt.Sprintf("must be between 0 and %d", logging.TRACE)))
	}
	for i, r := range c.Regions {
		if r == "" {
			errs = append(errs, field.Required(field.NewPath(KeyRegions).Index(i), "region name must not be empty"))
		}
	}
	return interfaces.NewConfigurationError("run", errs)
}

// UnitSubset returns Regions as unit identities.
func (c *RunConfig) UnitSubset() []interfaces.UnitID {
	out := make([]interfaces.UnitID, len(c.Regions))
	for i, r := range c.Regions {
		out[i] = interfaces.UnitID(r)
	}
	return out
}
