package domain

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// InterpreterPython marks packages whose entrypoint is a Python script.
const InterpreterPython = "python"

// Package describes one installable TrID artifact
type Package struct {
	Name          string   `yaml:"name"`
	Title         string   `yaml:"title"`
	URL           string   `yaml:"url"`
	Entrypoint    string   `yaml:"entrypoint,omitempty"`
	Provides      string   `yaml:"provides,omitempty"`
	Interpreter   string   `yaml:"interpreter,omitempty"`
	Requires      []string `yaml:"requires,omitempty"`
	SHA256        string   `yaml:"sha256,omitempty"`
	SignatureURL  string   `yaml:"signature_url,omitempty"`
	PublicKeyFile string   `yaml:"public_key_file,omitempty"`
}

// Marker returns the file whose presence means the package is installed,
// relative to the install directory.
func (p Package) Marker() string {
	if p.Entrypoint != "" {
		return p.Entrypoint
	}
	return p.Provides
}

// Runnable reports whether the package can be dispatched to.
func (p Package) Runnable() bool {
	return p.Entrypoint != ""
}

// DisplayName returns the title, falling back to the package name.
func (p Package) DisplayName() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Name
}

// ArtifactName returns the file name of the downloadable artifact.
func (p Package) ArtifactName() string {
	name := path.Base(strings.SplitN(p.URL, "?", 2)[0])
	if name == "." || name == "/" || name == "" {
		return p.Name + ".zip"
	}
	return name
}

// Validate checks that a package entry is usable
func (p Package) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("package name cannot be empty")
	}
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("package %s: url cannot be empty", p.Name)
	}
	if p.Marker() == "" {
		return fmt.Errorf("package %s: entrypoint or provides is required", p.Name)
	}
	if !IsLocalPath(p.Marker()) {
		return fmt.Errorf("package %s: marker %q must be a relative path inside the install directory", p.Name, p.Marker())
	}
	if p.Interpreter != "" && p.Interpreter != InterpreterPython {
		return fmt.Errorf("package %s: unsupported interpreter %q", p.Name, p.Interpreter)
	}
	if p.SignatureURL != "" && p.PublicKeyFile == "" {
		return fmt.Errorf("package %s: signature_url requires public_key_file", p.Name)
	}
	return nil
}

// Catalog is the set of packages known to the dispatcher, keyed by name
type Catalog map[string]Package

// Lookup returns the named package.
func (c Catalog) Lookup(name string) (Package, error) {
	pkg, ok := c[name]
	if !ok {
		return Package{}, fmt.Errorf("%w: %s", ErrUnknownPackage, name)
	}
	return pkg, nil
}

// Names returns the package names in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstallOrder returns the named package preceded by everything it requires,
// dependencies first, each package listed once.
func (c Catalog) InstallOrder(name string) ([]Package, error) {
	var (
		order    []Package
		visited  = make(map[string]bool)
		visiting = make(map[string]bool)
	)

	var visit func(string) error
	visit = func(n string) error {
		if visited[n] {
			return nil
		}
		if visiting[n] {
			return fmt.Errorf("package %s: dependency cycle", n)
		}
		pkg, err := c.Lookup(n)
		if err != nil {
			return err
		}
		visiting[n] = true
		for _, dep := range pkg.Requires {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[n] = false
		visited[n] = true
		order = append(order, pkg)
		return nil
	}

	if err := visit(name); err != nil {
		return nil, err
	}
	return order, nil
}

// Validate checks every package and its requirements.
func (c Catalog) Validate() error {
	for _, name := range c.Names() {
		pkg := c[name]
		if pkg.Name != name {
			return fmt.Errorf("package %s: name mismatch %q", name, pkg.Name)
		}
		if err := pkg.Validate(); err != nil {
			return err
		}
		if _, err := c.InstallOrder(name); err != nil {
			return err
		}
	}
	return nil
}

// IsLocalPath reports whether p is a relative, slash-separated path that stays
// inside its root once cleaned.
func IsLocalPath(p string) bool {
	if p == "" || strings.Contains(p, "\\") || strings.HasPrefix(p, "/") {
		return false
	}
	if len(p) >= 2 && p[1] == ':' {
		return false
	}
	clean := path.Clean(p)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}
