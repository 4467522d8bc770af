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

package world

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/llm-d/market-equilibrium/internal/interfaces"
)

var (
	// ErrDuplicateUnit is returned when two units share an identity.
	ErrDuplicateUnit = errors.New("duplicate unit")
	// ErrUnknownUnit is returned when a subset names a unit the world does
	// not own.
	ErrUnknownUnit = errors.New("unknown unit")
)

// LookupBuilder collects unit positions before the lookup is frozen.
type LookupBuilder struct {
	index map[interfaces.UnitID]int
	order []interfaces.UnitID
}

func NewLookupBuilder() *LookupBuilder {
	return &LookupBuilder{index: make(map[interfaces.UnitID]int)}
}

// Add records the storage position of id.
func (b *LookupBuilder) Add(id interfaces.UnitID, pos int) error {
	if _, ok := b.index[id]; ok {
		return fmt.Errorf("%w %q", ErrDuplicateUnit, id)
	}
	b.index[id] = pos
	b.order = append(b.order, id)
	return nil
}

// Freeze returns the read-only lookup. The builder must not be used after.
func (b *LookupBuilder) Freeze() *Lookup {
	l := &Lookup{index: b.index, order: b.order}
	b.index = nil
	b.order = nil
	return l
}

// Lookup maps unit identities to storage positions. It is never modified
// after Freeze, so concurrent reads are safe.
type Lookup struct {
	index map[interfaces.UnitID]int
	order []interfaces.UnitID
}

// Position returns the storage position of id.
func (l *Lookup) Position(id interfaces.UnitID) (int, bool) {
	pos, ok := l.index[id]
	return pos, ok
}

func (l *Lookup) Len() int {
	return len(l.index)
}

// IDs returns every identity in insertion order.
func (l *Lookup) IDs() []interfaces.UnitID {
	return append([]interfaces.UnitID(nil), l.order...)
}

// Resolve maps a subset to storage positions in the order given, dropping
// repeated identities. An empty subset selects every unit in insertion
// order.
func (l *Lookup) Resolve(subset []interfaces.UnitID) ([]int, error) {
	if len(subset) == 0 {
		out := make([]int, len(l.order))
		for i, id := range l.order {
			out[i] = l.index[id]
		}
		return out, nil
	}
	seen := sets.New[interfaces.UnitID]()
	out := make([]int, 0, len(subset))
	var unknown []interfaces.UnitID
	for _, id := range subset {
		if seen.Has(id) {
			continue
		}
		seen.Insert(id)
		pos, ok := l.index[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		out = append(out, pos)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownUnit, unknown)
	}
	return out, nil
}
