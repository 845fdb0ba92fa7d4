package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pidcheck/pkg/domain"
)

//go:embed builtin.yaml
var builtinYAML []byte

// AddBuiltins registers the built-in component types: tank, control_valve,
// pump, level_controller and pipe, in that order.
func (b *Builder) AddBuiltins() error {
	types, err := DecodeYAML(builtinYAML)
	if err != nil {
		return fmt.Errorf("builtin catalog: %w", err)
	}
	if err := b.Add(types...); err != nil {
		return fmt.Errorf("builtin catalog: %w", err)
	}
	b.logger.Debug("catalog loaded", "source", "builtin", "types", len(types))
	return nil
}

// LoadFile registers every type defined in path. The format is chosen by
// extension: .yaml/.yml, .json/.jsonc or .hcl.
func (b *Builder) LoadFile(path string) error {
	// #nosec G304 -- catalog paths come from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", path, err)
	}
	types, err := decodeByExtension(path, data)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	if err := b.Add(types...); err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	b.logger.Info("catalog loaded", "source", path, "types", len(types))
	return nil
}

func decodeByExtension(path string, data []byte) ([]domain.ComponentType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	case ".json", ".jsonc":
		return DecodeJSON(data)
	case ".hcl":
		return DecodeHCL(data, path)
	}
	return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
}

// Builtin returns a catalog holding only the built-in types.
func Builtin(opts ...Option) (*Catalog, error) {
	return Load(nil, opts...)
}

// Load builds a catalog from the built-in types followed by the types in
// each of paths, in order. Any invalid definition fails the whole load.
func Load(paths []string, opts ...Option) (*Catalog, error) {
	b := NewBuilder(opts...)
	if err := b.AddBuiltins(); err != nil {
		return nil, err
	}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := b.LoadFile(p); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
