package extension

import (
	"strings"

	"github.com/viant/x"
)

// Import associates a package alias with its import path for data type
// lookups by dotted name.
type Import struct {
	Package string
	PkgPath string
}

// Imports is a lookup list of package imports.
type Imports []*Import

// PkgPath returns the import path registered for a package alias.
func (i Imports) PkgPath(pkg string) string {
	for _, item := range i {
		if item.Package == pkg {
			return item.PkgPath
		}
	}
	return ""
}

func (i Imports) hasPkgPath(pkgPath string) bool {
	for _, item := range i {
		if strings.HasPrefix(item.PkgPath, pkgPath) {
			return true
		}
	}
	return false
}

// Types registers the Go types that may appear as context values, so
// steps like value.assert.type can resolve a dotted type name to a
// reflect type.
type Types struct {
	x.Registry
	imports Imports
}

// Register adds a data type to the registry.
func (t *Types) Register(dataType *x.Type) {
	if dataType.PkgPath != "" {
		if idx := strings.LastIndex(dataType.PkgPath, "/"); idx > 0 {
			if !t.imports.hasPkgPath(dataType.PkgPath[:idx]) {
				t.imports = append(t.imports, &Import{Package: dataType.PkgPath[idx+1:], PkgPath: dataType.PkgPath})
			}
		}
	}
	t.Registry.Register(dataType)
}

// Lookup returns the data type registered under a dotted name, resolving
// the package alias through registered imports. It returns nil when the
// name is unknown.
func (t *Types) Lookup(dataType string) *x.Type {
	if idx := strings.LastIndex(dataType, "."); idx != -1 {
		pkg, typeName := dataType[:idx], dataType[idx+1:]
		if pkgPath := t.imports.PkgPath(pkg); pkgPath != "" {
			pkg = pkgPath
		}
		dataType = pkg + "." + typeName
	}
	return t.Registry.Lookup(dataType)
}

// Imports returns the registered imports.
func (t *Types) Imports() Imports {
	return t.imports
}

// NewTypes creates a new data type registry.
func NewTypes(options ...x.RegistryOption) *Types {
	return &Types{Registry: *x.NewRegistry(options...)}
}
