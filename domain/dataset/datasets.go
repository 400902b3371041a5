package dataset

import (
	"fmt"

	"gammastack/domain/core"
	"gammastack/domain/model"
)

// Datasets is an ordered collection of datasets with unique names. Its
// StatSum is the joint likelihood the fit engine minimises.
type Datasets struct {
	items []Dataset
}

// NewDatasets builds a collection, rejecting duplicate names
func NewDatasets(items ...Dataset) (*Datasets, error) {
	ds := &Datasets{}
	for _, d := range items {
		if err := ds.Append(d); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// Append adds d at the end
func (ds *Datasets) Append(d Dataset) error {
	if ds.Index(d.Name()) >= 0 {
		return fmt.Errorf("%w: dataset %s", core.ErrDuplicateName, d.Name())
	}
	ds.items = append(ds.items, d)
	return nil
}

func (ds *Datasets) Len() int { return len(ds.items) }

// All returns the datasets in order
func (ds *Datasets) All() []Dataset {
	return append([]Dataset(nil), ds.items...)
}

// At returns the i-th dataset
func (ds *Datasets) At(i int) Dataset {
	return ds.items[i]
}

// Index returns the position of the dataset named name, or -1
func (ds *Datasets) Index(name string) int {
	for i, d := range ds.items {
		if d.Name() == name {
			return i
		}
	}
	return -1
}

// Get returns the dataset named name
func (ds *Datasets) Get(name string) (Dataset, error) {
	if i := ds.Index(name); i >= 0 {
		return ds.items[i], nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, name)
}

// Names returns the dataset names in order
func (ds *Datasets) Names() []string {
	out := make([]string, len(ds.items))
	for i, d := range ds.items {
		out[i] = d.Name()
	}
	return out
}

// StatSum is the sum of the per-dataset statistics
func (ds *Datasets) StatSum() (float64, error) {
	var total float64
	for _, d := range ds.items {
		s, err := d.StatSum()
		if err != nil {
			return 0, fmt.Errorf("dataset %s: %w", d.Name(), err)
		}
		total += s
	}
	return total, nil
}

// Models returns the models of all datasets; a model shared by several
// datasets appears once
func (ds *Datasets) Models() *model.Models {
	out := &model.Models{}
	for _, d := range ds.items {
		for _, m := range d.Models().All() {
			if out.Index(m.Name) >= 0 {
				continue
			}
			_ = out.Append(m)
		}
	}
	return out
}

// SetModels attaches models to every dataset
func (ds *Datasets) SetModels(models *model.Models) {
	for _, d := range ds.items {
		d.SetModels(models)
	}
}

// Parameters returns the parameters of all models, shared ones once
func (ds *Datasets) Parameters() *model.Parameters {
	return ds.Models().Parameters()
}

// IsAllSameType reports whether every dataset has the same type
func (ds *Datasets) IsAllSameType() bool {
	for _, d := range ds.items {
		if d.Type() != ds.items[0].Type() {
			return false
		}
	}
	return true
}

// StackReduce stacks every dataset into a copy of the first one
func (ds *Datasets) StackReduce(name string) (Dataset, error) {
	if len(ds.items) == 0 {
		return nil, core.NewValidationError("datasets", "cannot stack an empty collection")
	}
	if !ds.IsAllSameType() {
		return nil, fmt.Errorf("%w: stacking requires datasets of a single type", core.ErrIncompatibleType)
	}
	stacked := ds.items[0].CopyAs(name)
	for _, d := range ds.items[1:] {
		if err := stacked.Stack(d); err != nil {
			return nil, fmt.Errorf("stacking %s: %w", d.Name(), err)
		}
	}
	return stacked, nil
}

// InfoTable returns one Info per dataset. With cumulative set, row i
// describes the stack of datasets 0..i.
func (ds *Datasets) InfoTable(cumulative bool) ([]Info, error) {
	rows := make([]Info, 0, len(ds.items))
	if !cumulative {
		for _, d := range ds.items {
			rows = append(rows, d.Info())
		}
		return rows, nil
	}
	if len(ds.items) == 0 {
		return rows, nil
	}
	if !ds.IsAllSameType() {
		return nil, fmt.Errorf("%w: cumulative info requires datasets of a single type", core.ErrIncompatibleType)
	}

	stacked := ds.items[0].CopyAs("stacked")
	rows = append(rows, stacked.Info())
	for _, d := range ds.items[1:] {
		if err := stacked.Stack(d); err != nil {
			return nil, fmt.Errorf("stacking %s: %w", d.Name(), err)
		}
		rows = append(rows, stacked.Info())
	}
	return rows, nil
}

// Copy returns a collection of deep copies keeping the names. Models shared
// between datasets stay shared between the copies.
func (ds *Datasets) Copy() *Datasets {
	shared := ds.Models().Copy()
	out := &Datasets{items: make([]Dataset, len(ds.items))}
	for i, d := range ds.items {
		cp := d.CopyAs(d.Name())
		if d.Models() != nil {
			own := &model.Models{}
			for _, name := range d.Models().Names() {
				m, _ := shared.Get(name)
				_ = own.Append(m)
			}
			cp.SetModels(own)
		}
		out.items[i] = cp
	}
	return out
}
