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

package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/llm-d/market-equilibrium/api/v1alpha1"
)

// ErrEmptyScenario is returned when a scenario document has no content.
var ErrEmptyScenario = errors.New("empty scenario")

// Load reads and decodes the scenario file at path.
func Load(path string) (*v1alpha1.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scenario: %w", err)
	}
	defer f.Close()

	sc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Decode decodes one scenario document. Unknown fields are rejected so
// typos in input names do not silently fall back to defaults.
func Decode(r io.Reader) (*v1alpha1.Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc v1alpha1.Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyScenario
		}
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	return &sc, nil
}
