package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// StringList accepts a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*s = StringList{value.Value}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*s = append(StringList{}, list...)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = append(StringList{}, list...)
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (s *StringList) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*s = StringList{v}
	case []interface{}:
		list := make(StringList, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected a string, got %T", item)
			}
			list = append(list, str)
		}
		*s = list
	default:
		return fmt.Errorf("expected a string or a list of strings, got %T", data)
	}
	return nil
}

// Resource declares a conventional CRUD resource. The bare string form sets
// Name.
type Resource struct {
	Name    string            `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Pattern string            `json:"pattern,omitempty" yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	Params  map[string]string `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`
}

// resourceFields avoids recursing into the custom unmarshalers.
type resourceFields Resource

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Resource) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*r = Resource{Name: value.Value}
		return nil
	}
	var fields resourceFields
	if err := value.Decode(&fields); err != nil {
		return err
	}
	*r = Resource(fields)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Resource) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*r = Resource{Name: name}
		return nil
	}
	var fields resourceFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = Resource(fields)
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (r *Resource) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*r = Resource{Name: v}
		return nil
	case map[string]interface{}:
		var res Resource
		var ok bool
		if raw, found := v["name"]; found {
			if res.Name, ok = raw.(string); !ok {
				return fmt.Errorf("resource name must be a string, got %T", raw)
			}
		}
		if raw, found := v["pattern"]; found {
			if res.Pattern, ok = raw.(string); !ok {
				return fmt.Errorf("resource pattern must be a string, got %T", raw)
			}
		}
		if raw, found := v["params"]; found {
			params, isMap := raw.(map[string]interface{})
			if !isMap {
				return fmt.Errorf("resource params must be a table, got %T", raw)
			}
			res.Params = make(map[string]string, len(params))
			for k, p := range params {
				str, isStr := p.(string)
				if !isStr {
					return fmt.Errorf("resource param %q must be a string, got %T", k, p)
				}
				res.Params[k] = str
			}
		}
		*r = res
		return nil
	default:
		return fmt.Errorf("resource must be a string or a table, got %T", data)
	}
}
