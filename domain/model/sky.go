package model

import (
	"fmt"

	"gammastack/domain/core"
)

// SkyModel is a named source: a spectrum with an optional light curve
type SkyModel struct {
	Name     string
	Spectral SpectralModel
	Temporal TemporalModel
	// DatasetNames restricts the model to these datasets; empty means all
	DatasetNames []string
}

// NewSkyModel creates a source; an empty name is replaced by a generated one
func NewSkyModel(name string, spectral SpectralModel, temporal TemporalModel) *SkyModel {
	return &SkyModel{Name: core.NameOrNew(name), Spectral: spectral, Temporal: temporal}
}

// Parameters returns the spectral then temporal parameters
func (s *SkyModel) Parameters() *Parameters {
	lists := []*Parameters{s.Spectral.Parameters()}
	if s.Temporal != nil {
		lists = append(lists, s.Temporal.Parameters())
	}
	return Union(lists...)
}

// AppliesTo reports whether the model contributes to the named dataset
func (s *SkyModel) AppliesTo(dataset string) bool {
	if len(s.DatasetNames) == 0 {
		return true
	}
	for _, n := range s.DatasetNames {
		if n == dataset {
			return true
		}
	}
	return false
}

// Copy returns an independent model; name keeps the current name when empty
func (s *SkyModel) Copy(name string) *SkyModel {
	if name == "" {
		name = s.Name
	}
	cp := &SkyModel{Name: name, Spectral: s.Spectral.Copy(), DatasetNames: append([]string(nil), s.DatasetNames...)}
	if s.Temporal != nil {
		cp.Temporal = s.Temporal.Copy()
	}
	return cp
}

// String implements fmt.Stringer
func (s *SkyModel) String() string {
	temporal := "none"
	if s.Temporal != nil {
		temporal = s.Temporal.Type()
	}
	return fmt.Sprintf("SkyModel %s: spectral=%s temporal=%s", s.Name, s.Spectral.Type(), temporal)
}

// Models is an ordered collection of sky models with unique names
type Models struct {
	items []*SkyModel
}

// NewModels builds a collection, rejecting duplicate names
func NewModels(models ...*SkyModel) (*Models, error) {
	ms := &Models{}
	for _, m := range models {
		if err := ms.Append(m); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

// Append adds m at the end
func (ms *Models) Append(m *SkyModel) error {
	if ms.Index(m.Name) >= 0 {
		return fmt.Errorf("%w: model %s", core.ErrDuplicateName, m.Name)
	}
	ms.items = append(ms.items, m)
	return nil
}

// Len returns the number of models
func (ms *Models) Len() int {
	if ms == nil {
		return 0
	}
	return len(ms.items)
}

// All returns the models in order
func (ms *Models) All() []*SkyModel {
	if ms == nil {
		return nil
	}
	return append([]*SkyModel(nil), ms.items...)
}

// Index returns the position of the model named name, or -1
func (ms *Models) Index(name string) int {
	if ms == nil {
		return -1
	}
	for i, m := range ms.items {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// Get returns the model named name
func (ms *Models) Get(name string) (*SkyModel, error) {
	if i := ms.Index(name); i >= 0 {
		return ms.items[i], nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrModelNotFound, name)
}

// Names returns the model names in order
func (ms *Models) Names() []string {
	out := make([]string, 0, ms.Len())
	for _, m := range ms.All() {
		out = append(out, m.Name)
	}
	return out
}

// Parameters returns the union of all model parameters
func (ms *Models) Parameters() *Parameters {
	lists := make([]*Parameters, 0, ms.Len())
	for _, m := range ms.All() {
		lists = append(lists, m.Parameters())
	}
	return Union(lists...)
}

// ForDataset returns the models that contribute to the named dataset
func (ms *Models) ForDataset(name string) []*SkyModel {
	var out []*SkyModel
	for _, m := range ms.All() {
		if m.AppliesTo(name) {
			out = append(out, m)
		}
	}
	return out
}

// Copy returns a collection of independent model copies
func (ms *Models) Copy() *Models {
	if ms == nil {
		return nil
	}
	out := &Models{items: make([]*SkyModel, len(ms.items))}
	for i, m := range ms.items {
		out.items[i] = m.Copy("")
	}
	return out
}
