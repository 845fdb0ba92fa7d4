package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestBackendImportBoundaries checks that storage backends are only reached
// through their owning package: blob backends through internal/blob and
// schematic stores through internal/core.
func TestBackendImportBoundaries(t *testing.T) {
	boundaries := []struct {
		backend string
		allowed []string
	}{
		{backend: "pidcheck/internal/infra/blob", allowed: []string{"pidcheck/internal/blob"}},
		{backend: "pidcheck/internal/infra/persistence", allowed: []string{"pidcheck/internal/core"}},
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "pidcheck/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	var violations []string
	for _, pkg := range pkgs {
		for _, b := range boundaries {
			if within(pkg.PkgPath, "pidcheck/internal/infra") || withinAny(pkg.PkgPath, b.allowed) {
				continue
			}
			for importPath := range pkg.Imports {
				if within(importPath, b.backend) {
					violations = append(violations, pkg.PkgPath+": "+importPath)
				}
			}
		}
	}
	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("forbidden backend import: %s", v)
	}
}

func within(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func withinAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if within(path, p) {
			return true
		}
	}
	return false
}
