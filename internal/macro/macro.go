// Package macro indexes Starlark macro definitions so compiled generic
// tests can be checked against the macros that implement them. Each .star
// file in the macros directory is a namespace (from its filename); files
// are parsed statically, never executed.
package macro

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.starlark.net/syntax"
)

// Function is one macro definition found in a .star file.
type Function struct {
	Name string
	Line int
}

// Registry maps namespaces to the macro functions they export.
type Registry struct {
	modules map[string]map[string]Function
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]map[string]Function)}
}

// LoadDir scans dir for .star files and indexes their exported functions.
// A missing directory yields an empty registry, not an error.
func LoadDir(dir string) (*Registry, error) {
	registry := NewRegistry()

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return registry, nil
		}
		return nil, fmt.Errorf("accessing macros directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("macros path is not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.star"))
	if err != nil {
		return nil, fmt.Errorf("scanning macros directory: %w", err)
	}

	for _, file := range files {
		if err := registry.loadFile(file); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// loadFile statically parses one .star file and records its exported
// function definitions under the filename-derived namespace.
func (r *Registry) loadFile(path string) error {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from globbing the macros directory
	if err != nil {
		return &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	namespace := strings.TrimSuffix(filepath.Base(path), ".star")
	if err := validateNamespace(namespace); err != nil {
		return &LoadError{File: path, Message: err.Error()}
	}
	if _, dup := r.modules[namespace]; dup {
		return &LoadError{File: path, Message: fmt.Sprintf("duplicate namespace %q", namespace)}
	}

	f, err := syntax.Parse(path, content, 0) //nolint:staticcheck // SA1019: will migrate to ParseOptions later
	if err != nil {
		return &LoadError{File: path, Message: fmt.Sprintf("Starlark parse error: %v", err)}
	}

	exports := make(map[string]Function)
	for _, stmt := range f.Stmts {
		def, ok := stmt.(*syntax.DefStmt)
		if !ok {
			continue
		}
		// Names starting with _ are private to the file.
		if strings.HasPrefix(def.Name.Name, "_") {
			continue
		}
		exports[def.Name.Name] = Function{
			Name: def.Name.Name,
			Line: int(def.Name.NamePos.Line),
		}
	}

	r.modules[namespace] = exports
	return nil
}

// Namespaces returns the registered namespaces, sorted.
func (r *Registry) Namespaces() []string {
	return slices.Sorted(maps.Keys(r.modules))
}

// Has reports whether the namespace exports the named function.
func (r *Registry) Has(namespace, function string) bool {
	exports, ok := r.modules[namespace]
	if !ok {
		return false
	}
	_, ok = exports[function]
	return ok
}

// Lookup resolves a macro name of the form "fn" or "namespace.fn". A bare
// name matches a function exported by any namespace.
func (r *Registry) Lookup(macroName string) bool {
	if ns, fn, ok := strings.Cut(macroName, "."); ok {
		return r.Has(ns, fn)
	}
	for _, exports := range r.modules {
		if _, ok := exports[macroName]; ok {
			return true
		}
	}
	return false
}

// Len returns the number of registered namespaces.
func (r *Registry) Len() int {
	return len(r.modules)
}

// validateNamespace checks that a namespace is a valid identifier.
func validateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	for i, r := range name {
		if i == 0 {
			if !isLetter(r) && r != '_' {
				return fmt.Errorf("namespace must start with letter or underscore: %s", name)
			}
		} else {
			if !isLetter(r) && !isDigit(r) && r != '_' {
				return fmt.Errorf("namespace contains invalid character: %s", name)
			}
		}
	}
	return nil
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// LoadError represents an error loading a macro file.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("macros/%s: %s", filepath.Base(e.File), e.Message)
}
