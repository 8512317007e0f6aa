package ml

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// Params are caller-supplied hyperparameters, typically decoded from JSON.
type Params map[string]any

// decodeParams overlays raw onto out, which must already hold the defaults.
// Numbers given as strings and the like are converted.
func decodeParams(algorithm Algorithm, raw Params, out any) error {
	if len(raw) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "param",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(raw)); err != nil {
		return core.Wrap(core.CategoryInvalidArgument, err, "invalid hyperparameters for %s", algorithm)
	}
	return nil
}

func oneOf(algorithm Algorithm, name, value string, options ...string) error {
	for _, o := range options {
		if value == o {
			return nil
		}
	}
	return core.Errorf(core.CategoryInvalidArgument, "invalid %s for %s: %q", name, algorithm, value)
}

// ParamType is the input kind of a hyperparameter.
type ParamType string

// Parameter kinds.
const (
	ParamInt     ParamType = "int"
	ParamFloat   ParamType = "float"
	ParamSelect  ParamType = "select"
	ParamText    ParamType = "text"
	ParamBoolean ParamType = "boolean"
)

// ParamSpec describes the accepted values of one hyperparameter.
type ParamSpec struct {
	Name        string    `json:"-"`
	Type        ParamType `json:"type"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Options     []string  `json:"options,omitempty"`
	Default     any       `json:"default"`
	Description string    `json:"description,omitempty"`
}

func intParam(name string, lo, hi float64, def int, desc string) ParamSpec {
	return ParamSpec{Name: name, Type: ParamInt, Min: &lo, Max: &hi, Default: def, Description: desc}
}

func floatParam(name string, lo, hi, def float64, desc string) ParamSpec {
	return ParamSpec{Name: name, Type: ParamFloat, Min: &lo, Max: &hi, Default: def, Description: desc}
}

func selectParam(name string, options []string, def, desc string) ParamSpec {
	return ParamSpec{Name: name, Type: ParamSelect, Options: options, Default: def, Description: desc}
}
