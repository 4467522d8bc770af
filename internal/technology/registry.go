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

package technology

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrDuplicateTechnology is returned when a template name is registered twice.
	ErrDuplicateTechnology = errors.New("technology already registered")
	// ErrUnknownTechnology is returned when instantiating an unregistered template.
	ErrUnknownTechnology = errors.New("unknown technology")
)

// Registry holds the global technology templates of a run. Subsectors get
// independent copies through Instantiate.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Standard
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Standard)}
}

// Register stores a template under its name.
func (r *Registry) Register(t *Standard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[t.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTechnology, t.Name())
	}
	r.templates[t.Name()] = t
	return nil
}

// Instantiate returns a deep copy of the named template.
func (r *Registry) Instantiate(name string) (*Standard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTechnology, name)
	}
	return t.Clone(), nil
}

// Names returns the registered template names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for n := range r.templates {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}
