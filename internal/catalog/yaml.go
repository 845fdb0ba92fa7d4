package catalog

import (
	"fmt"

	"github.com/tidwall/jsonc"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"pidcheck/pkg/domain"
	"pidcheck/pkg/domain/value"
)

// DecodeYAML reads component type definitions from a YAML document. The
// document is either a sequence of definitions, a mapping from type id to
// definition, or a mapping with a "components" key holding one of those.
// Parameter and port order follows the document.
func DecodeYAML(data []byte) ([]domain.ComponentType, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.MappingNode {
		if c := mappingValue(root, "components"); c != nil {
			root = c
		}
	}
	switch root.Kind {
	case yaml.SequenceNode:
		out := make([]domain.ComponentType, 0, len(root.Content))
		for i, item := range root.Content {
			t, err := decodeType(item, "")
			if err != nil {
				return nil, fmt.Errorf("components[%d]: %w", i, err)
			}
			out = append(out, t)
		}
		return out, nil
	case yaml.MappingNode:
		out := make([]domain.ComponentType, 0, len(root.Content)/2)
		for i := 0; i+1 < len(root.Content); i += 2 {
			id := root.Content[i].Value
			t, err := decodeType(root.Content[i+1], id)
			if err != nil {
				return nil, fmt.Errorf("components.%s: %w", id, err)
			}
			out = append(out, t)
		}
		return out, nil
	}
	return nil, fmt.Errorf("line %d: catalog must be a sequence or mapping of component types", root.Line)
}

// DecodeJSON reads the same shapes as DecodeYAML from JSON. Comments and
// trailing commas are tolerated.
func DecodeJSON(data []byte) ([]domain.ComponentType, error) {
	return DecodeYAML(jsonc.ToJSON(data))
}

func decodeType(n *yaml.Node, key string) (domain.ComponentType, error) {
	if n.Kind != yaml.MappingNode {
		return domain.ComponentType{}, fmt.Errorf("line %d: component type must be a mapping", n.Line)
	}
	t := domain.ComponentType{ID: key}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		var err error
		switch k.Value {
		case "id":
			var id string
			if err = v.Decode(&id); err == nil {
				if key != "" && id != key {
					return t, fmt.Errorf("line %d: id %q does not match key %q", v.Line, id, key)
				}
				t.ID = id
			}
		case "name":
			err = v.Decode(&t.Name)
		case "category":
			err = v.Decode(&t.Category)
		case "icon":
			err = v.Decode(&t.Icon)
		case "parameters":
			t.Parameters, err = decodeParameters(v)
		case "connections", "ports":
			t.Ports, err = decodePorts(v)
		case "constraints":
			err = v.Decode(&t.Constraints)
		default:
			err = fmt.Errorf("line %d: unknown field %q", k.Line, k.Value)
		}
		if err != nil {
			return t, fmt.Errorf("%s: %w", k.Value, err)
		}
	}
	if t.ID == "" {
		return t, fmt.Errorf("line %d: component type id is required", n.Line)
	}
	return t, nil
}

func decodeParameters(n *yaml.Node) ([]domain.ParameterSpec, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: parameters must be a mapping", n.Line)
	}
	out := make([]domain.ParameterSpec, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, body := n.Content[i].Value, n.Content[i+1]
		p := domain.ParameterSpec{Name: name, Default: value.Null}
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: parameter %s must be a mapping", body.Line, name)
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			k, v := body.Content[j], body.Content[j+1]
			var err error
			switch k.Value {
			case "value", "default":
				p.Default, err = decodeValue(v)
			case "unit":
				err = v.Decode(&p.Unit)
			case "required":
				err = v.Decode(&p.Required)
			case "options":
				if v.Kind != yaml.SequenceNode {
					err = fmt.Errorf("line %d: options must be a list", v.Line)
					break
				}
				for _, item := range v.Content {
					opt, oerr := decodeValue(item)
					if oerr != nil {
						err = oerr
						break
					}
					p.Options = append(p.Options, opt)
				}
			default:
				err = fmt.Errorf("line %d: unknown field %q", k.Line, k.Value)
			}
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", name, err)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func decodePorts(n *yaml.Node) ([]domain.PortSpec, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: connections must be a mapping", n.Line)
	}
	out := make([]domain.PortSpec, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, body := n.Content[i].Value, n.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: connection %s must be a mapping", body.Line, name)
		}
		p := domain.PortSpec{Name: name}
		for j := 0; j+1 < len(body.Content); j += 2 {
			k, v := body.Content[j], body.Content[j+1]
			var err error
			switch k.Value {
			case "type":
				p.Type = domain.ConnectionType(v.Value)
			case "direction":
				p.Direction = domain.Direction(v.Value)
			case "optional":
				err = v.Decode(&p.Optional)
			default:
				err = fmt.Errorf("line %d: unknown field %q", k.Line, k.Value)
			}
			if err != nil {
				return nil, fmt.Errorf("connection %s: %w", name, err)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func decodeValue(n *yaml.Node) (cty.Value, error) {
	var raw any
	if err := n.Decode(&raw); err != nil {
		return value.Null, fmt.Errorf("line %d: %w", n.Line, err)
	}
	v, err := value.FromAny(raw)
	if err != nil {
		return value.Null, fmt.Errorf("line %d: %w", n.Line, err)
	}
	return v, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
