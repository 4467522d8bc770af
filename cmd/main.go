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

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/config"
	"github.com/llm-d/market-equilibrium/internal/controller"
	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/logging"
	"github.com/llm-d/market-equilibrium/internal/metrics"
	"github.com/llm-d/market-equilibrium/internal/scenario"
	"github.com/llm-d/market-equilibrium/internal/world"
)

var setupLog = ctrl.Log.WithName("setup")

func main() {
	fs := pflag.NewFlagSet("market-equilibrium", pflag.ExitOnError)
	config.BindFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		logging.NewLogger(logging.Options{})
		setupLog.Error(err, "invalid configuration")
		os.Exit(2)
	}
	logging.NewLogger(logging.Options{Level: cfg.LogLevel, Development: cfg.Development})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = ctrl.LoggerInto(ctx, ctrl.Log.WithName("run"))

	if err := run(ctx, cfg); err != nil {
		for _, cfgErr := range interfaces.ConfigurationErrors(err) {
			for _, fe := range cfgErr.Errs {
				setupLog.Info("Configuration problem", "unit", cfgErr.Unit, "field", fe.Field, "detail", fe.ErrorBody())
			}
		}
		var div *interfaces.NumericDivergenceError
		if errors.As(err, &div) {
			setupLog.Info("Numeric divergence", "unit", div.Unit, "period", div.Period, "field", div.Field, "value", div.Value)
		}
		setupLog.Error(err, "run failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.RunConfig) error {
	sc, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return err
	}
	w, err := scenario.Build(ctx, sc, scenario.BuildOptions{
		World: world.Config{
			Workers:            cfg.Workers,
			CalibrationEnabled: cfg.CalibrationEnabled,
			CalAccuracy:        cfg.CalAccuracy,
			PrintWarnings:      cfg.PrintWarnings,
		},
		CapLimitMode: cfg.CapLimitMode,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}

	report, runErr := controller.NewRunner(w, controller.RunnerConfig{
		MaxCalibrationIterations: cfg.MaxCalibrationIterations,
		CalAccuracy:              cfg.CalAccuracy,
		PrintWarnings:            cfg.PrintWarnings,
		Subset:                   cfg.UnitSubset(),
	}, rec).Run(ctx)

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextFile(reg, cfg.MetricsFile); err != nil {
			setupLog.Error(err, "unable to write metrics file", "path", cfg.MetricsFile)
		}
	}
	if runErr != nil {
		return runErr
	}

	if uncalibrated := report.Uncalibrated(); len(uncalibrated) > 0 && cfg.CalibrationEnabled {
		setupLog.Info("Run finished with uncalibrated periods", "periods", uncalibrated)
	}
	setupLog.Info("Run complete",
		"scenario", sc.Metadata.Name,
		"periods", len(report.Periods),
		"calcPasses", w.CalcCounter().Value())
	return nil
}
