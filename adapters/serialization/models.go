package serialization

import (
	"fmt"
	"os"

	"gammastack/domain/core"
	"gammastack/domain/model"
	"gammastack/internal/errors"

	"gopkg.in/yaml.v3"
)

// ModelsFile is the YAML layout of a model collection
type ModelsFile struct {
	Components []Component `yaml:"components"`
}

// Component is one sky model
type Component struct {
	Name          string        `yaml:"name"`
	Type          string        `yaml:"type"`
	DatasetsNames []string      `yaml:"datasets_names,omitempty"`
	Spectral      ModelSpec     `yaml:"spectral"`
	Temporal      *TemporalSpec `yaml:"temporal,omitempty"`
}

// ModelSpec is a model type with its parameters
type ModelSpec struct {
	Type       string          `yaml:"type"`
	Parameters []ParameterSpec `yaml:"parameters"`
}

// TemporalSpec extends ModelSpec with the tables of the template models
type TemporalSpec struct {
	ModelSpec `yaml:",inline"`

	Reference float64   `yaml:"reference,omitempty"`
	Times     []float64 `yaml:"times,omitempty"`
	Phases    []float64 `yaml:"phases,omitempty"`
	Norms     []float64 `yaml:"norms,omitempty"`
}

// ParameterSpec is a serialized parameter. Unbounded limits are .nan.
type ParameterSpec struct {
	Name   string  `yaml:"name"`
	Value  float64 `yaml:"value"`
	Unit   string  `yaml:"unit"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Frozen bool    `yaml:"frozen"`
	Error  float64 `yaml:"error,omitempty"`
}

const typeSkyModel = "SkyModel"

// EncodeModels converts models to their file layout
func EncodeModels(models *model.Models) *ModelsFile {
	file := &ModelsFile{Components: []Component{}}
	if models == nil {
		return file
	}
	for _, m := range models.All() {
		c := Component{
			Name:          m.Name,
			Type:          typeSkyModel,
			DatasetsNames: append([]string(nil), m.DatasetNames...),
			Spectral:      ModelSpec{Type: m.Spectral.Type(), Parameters: encodeParameters(m.Spectral.Parameters())},
		}
		if m.Temporal != nil {
			t := &TemporalSpec{ModelSpec: ModelSpec{Type: m.Temporal.Type(), Parameters: encodeParameters(m.Temporal.Parameters())}}
			switch tm := m.Temporal.(type) {
			case *model.LightCurveTable:
				t.Reference = float64(tm.Reference)
				t.Times = append([]float64(nil), tm.Times...)
				t.Norms = append([]float64(nil), tm.Norms...)
			case *model.PhaseCurveTable:
				t.Phases = append([]float64(nil), tm.Phases...)
				t.Norms = append([]float64(nil), tm.Norms...)
			}
			c.Temporal = t
		}
		file.Components = append(file.Components, c)
	}
	return file
}

func encodeParameters(ps *model.Parameters) []ParameterSpec {
	out := make([]ParameterSpec, 0, ps.Len())
	for _, p := range ps.All() {
		out = append(out, ParameterSpec{
			Name: p.Name, Value: p.Value, Unit: p.Unit,
			Min: p.Min, Max: p.Max, Frozen: p.Frozen, Error: p.Error,
		})
	}
	return out
}

// DecodeModels rebuilds the models of a file
func DecodeModels(file *ModelsFile) (*model.Models, error) {
	models, err := model.NewModels()
	if err != nil {
		return nil, err
	}
	for _, c := range file.Components {
		if c.Type != "" && c.Type != typeSkyModel {
			return nil, core.NewValidationError("component "+c.Name, fmt.Sprintf("unsupported type %q", c.Type))
		}
		spectral, err := model.NewSpectralModel(c.Spectral.Type)
		if err != nil {
			return nil, err
		}
		if err := applyParameters(spectral.Parameters(), c.Spectral.Parameters); err != nil {
			return nil, fmt.Errorf("component %s: %w", c.Name, err)
		}

		var temporal model.TemporalModel
		if c.Temporal != nil {
			if temporal, err = decodeTemporal(c.Temporal); err != nil {
				return nil, fmt.Errorf("component %s: %w", c.Name, err)
			}
		}

		sky := model.NewSkyModel(c.Name, spectral, temporal)
		sky.DatasetNames = append([]string(nil), c.DatasetsNames...)
		if err := models.Append(sky); err != nil {
			return nil, err
		}
	}
	return models, nil
}

func decodeTemporal(spec *TemporalSpec) (model.TemporalModel, error) {
	var (
		m   model.TemporalModel
		err error
	)
	switch spec.Type {
	case model.TypeConstantTemporal:
		m = model.NewConstantTemporal()
	case model.TypeLightCurve:
		m, err = model.NewLightCurveTable(core.MJD(spec.Reference), spec.Times, spec.Norms)
	case model.TypePhaseCurve:
		// timing parameters are restored from the parameter list below
		m, err = model.NewPhaseCurveTable(spec.Phases, spec.Norms, 0, 0, 0, 0, 0)
	default:
		return nil, core.NewValidationError("temporal model", fmt.Sprintf("unknown type %q", spec.Type))
	}
	if err != nil {
		return nil, err
	}
	if err := applyParameters(m.Parameters(), spec.Parameters); err != nil {
		return nil, err
	}
	return m, nil
}

func applyParameters(ps *model.Parameters, specs []ParameterSpec) error {
	for _, s := range specs {
		p, err := ps.Get(s.Name)
		if err != nil {
			return err
		}
		p.Value, p.Unit, p.Min, p.Max, p.Frozen, p.Error = s.Value, s.Unit, s.Min, s.Max, s.Frozen, s.Error
	}
	return nil
}

// WriteModels writes models as YAML
func WriteModels(path string, models *model.Models, overwrite bool) error {
	return writeYAML(path, EncodeModels(models), overwrite)
}

// ReadModels reads a models file
func ReadModels(path string) (*model.Models, error) {
	var file ModelsFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}
	models, err := DecodeModels(&file)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid models in %s", path)
	}
	return models, nil
}

func writeYAML(path string, v interface{}, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.IOError(path, os.ErrExist)
		}
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.IOError(path, err)
	}
	return nil
}

func readYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.IOError(path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.FormatError(path, err.Error())
	}
	return nil
}
