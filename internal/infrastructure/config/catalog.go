package configinfra

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tridirt/tridirt/internal/core/domain"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Packages []domain.Package `yaml:"packages"`
}

// DefaultCatalog returns the built-in package catalog.
func DefaultCatalog() (domain.Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// ParseCatalog decodes a YAML package list.
func ParseCatalog(data []byte) (domain.Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	catalog := make(domain.Catalog, len(file.Packages))
	for _, pkg := range file.Packages {
		if _, dup := catalog[pkg.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate package %q", pkg.Name)
		}
		catalog[pkg.Name] = pkg
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return catalog, nil
}

// ApplyOverrides returns a copy of base with the non-empty fields of each
// override merged in. Overrides naming unknown packages add them.
func ApplyOverrides(base domain.Catalog, overrides map[string]domain.Package) (domain.Catalog, error) {
	merged := make(domain.Catalog, len(base)+len(overrides))
	for name, pkg := range base {
		merged[name] = pkg
	}

	for name, o := range overrides {
		pkg, ok := merged[name]
		if !ok {
			pkg = domain.Package{Name: name}
		}
		if o.Title != "" {
			pkg.Title = o.Title
		}
		if o.URL != "" {
			pkg.URL = o.URL
		}
		if o.Entrypoint != "" {
			pkg.Entrypoint = o.Entrypoint
		}
		if o.Provides != "" {
			pkg.Provides = o.Provides
		}
		if o.Interpreter != "" {
			pkg.Interpreter = o.Interpreter
		}
		if o.Requires != nil {
			pkg.Requires = append([]string(nil), o.Requires...)
		}
		if o.SHA256 != "" {
			pkg.SHA256 = o.SHA256
		}
		if o.SignatureURL != "" {
			pkg.SignatureURL = o.SignatureURL
		}
		if o.PublicKeyFile != "" {
			pkg.PublicKeyFile = o.PublicKeyFile
		}
		merged[name] = pkg
	}

	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("package overrides: %w", err)
	}
	return merged, nil
}
