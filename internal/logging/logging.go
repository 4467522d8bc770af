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

package logging

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Verbosity levels used with logger.V(...).
const (
	// DEBUG logs per-unit and per-pass solve details.
	DEBUG = 1
	// TRACE logs per-subsector share and calibration arithmetic.
	TRACE = 2
)

// Options controls logger construction.
type Options struct {
	// Level is the maximum verbosity that is emitted (0, DEBUG or TRACE).
	Level int
	// Development selects the human readable console encoder.
	Development bool
}

// NewLogger builds a zap backed logr.Logger and installs it as the
// controller-runtime global logger.
func NewLogger(opts Options) logr.Logger {
	logger := crzap.New(
		crzap.UseDevMode(opts.Development),
		crzap.Level(zapcore.Level(-opts.Level)),
		crzap.WriteTo(os.Stderr),
	)
	ctrl.SetLogger(logger)
	return logger
}

// NewTestLogger installs a development logger writing to w at TRACE
// verbosity. Suites pass GinkgoWriter so output only shows for failing specs.
func NewTestLogger(w io.Writer) logr.Logger {
	logger := crzap.New(
		crzap.UseDevMode(true),
		crzap.Level(zapcore.Level(-TRACE)),
		crzap.WriteTo(w),
	)
	ctrl.SetLogger(logger)
	return logger
}
