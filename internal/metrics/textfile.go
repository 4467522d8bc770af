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

package metrics

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// StdoutPath is the metrics file name that selects standard output.
const StdoutPath = "-"

// WriteText writes everything g gathers to w in the Prometheus text
// exposition format.
func WriteText(g prometheus.Gatherer, w io.Writer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

// WriteTextFile replaces path with everything g gathers. The metrics go to a
// temporary file in the same directory that is then renamed over path, so
// readers never see a partial file. A path of StdoutPath writes to standard
// output instead.
func WriteTextFile(g prometheus.Gatherer, path string) error {
	if path == StdoutPath {
		return WriteText(g, os.Stdout)
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}
