package catalog

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"pidcheck/pkg/domain"
	"pidcheck/pkg/domain/value"
)

// hclCatalogFile is the top-level structure of an HCL catalog file:
//
//	component "tank" {
//	  name        = "Storage Tank"
//	  constraints = ["volume > 0"]
//	  parameter "volume" {
//	    unit     = "m³"
//	    required = true
//	  }
//	  port "inlet" {
//	    type      = "pipe"
//	    direction = "in"
//	  }
//	}
type hclCatalogFile struct {
	Components []*hclComponent `hcl:"component,block"`
}

type hclComponent struct {
	ID          string          `hcl:"id,label"`
	Name        string          `hcl:"name,optional"`
	Category    string          `hcl:"category,optional"`
	Icon        string          `hcl:"icon,optional"`
	Constraints []string        `hcl:"constraints,optional"`
	Parameters  []*hclParameter `hcl:"parameter,block"`
	Ports       []*hclPort      `hcl:"port,block"`
}

type hclParameter struct {
	Name     string    `hcl:"name,label"`
	Unit     string    `hcl:"unit,optional"`
	Required bool      `hcl:"required,optional"`
	Value    cty.Value `hcl:"value,optional"`
	Options  cty.Value `hcl:"options,optional"`
}

type hclPort struct {
	Name      string `hcl:"name,label"`
	Type      string `hcl:"type"`
	Direction string `hcl:"direction"`
	Optional  bool   `hcl:"optional,optional"`
}

// DecodeHCL reads component type definitions from HCL source. filename is
// used for diagnostics only.
func DecodeHCL(src []byte, filename string) ([]domain.ComponentType, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	var parsed hclCatalogFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	out := make([]domain.ComponentType, 0, len(parsed.Components))
	for _, c := range parsed.Components {
		t, err := c.componentType()
		if err != nil {
			return nil, fmt.Errorf("%s: component %s: %w", filename, c.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *hclComponent) componentType() (domain.ComponentType, error) {
	t := domain.ComponentType{
		ID:          c.ID,
		Name:        c.Name,
		Category:    c.Category,
		Icon:        c.Icon,
		Constraints: c.Constraints,
	}
	for _, p := range c.Parameters {
		def, err := value.Normalize(p.Value)
		if err != nil {
			return t, fmt.Errorf("parameter %s value: %w", p.Name, err)
		}
		spec := domain.ParameterSpec{Name: p.Name, Unit: p.Unit, Required: p.Required, Default: def}
		if !p.Options.IsNull() {
			ty := p.Options.Type()
			if !ty.IsTupleType() && !ty.IsListType() && !ty.IsSetType() {
				return t, fmt.Errorf("parameter %s options must be a list", p.Name)
			}
			for _, opt := range p.Options.AsValueSlice() {
				norm, err := value.Normalize(opt)
				if err != nil {
					return t, fmt.Errorf("parameter %s option: %w", p.Name, err)
				}
				spec.Options = append(spec.Options, norm)
			}
		}
		t.Parameters = append(t.Parameters, spec)
	}
	for _, p := range c.Ports {
		t.Ports = append(t.Ports, domain.PortSpec{
			Name:      p.Name,
			Type:      domain.ConnectionType(p.Type),
			Direction: domain.Direction(p.Direction),
			Optional:  p.Optional,
		})
	}
	return t, nil
}
