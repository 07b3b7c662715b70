// Package plugin locates and opens worker shared objects. It is a thin
// wrapper over the standard library's plugin package, which is the only
// dlopen-equivalent Go offers — the direct counterpart of the original
// implementation's dlopen/dlsym pair in worker_info.cpp.
package plugin

import (
	"path/filepath"
	stdplugin "plugin"
	"strings"
	"unicode"

	"github.com/amdinfer/inference-server/pkg/errors"
)

// LibraryName derives the shared-object filename for a worker kind, the Go
// stand-in for the original's "libworker<Name>.so" convention: the
// "-config" suffix some kind names carry (to distinguish differently
// parameterized loads of the same worker) is stripped and the remainder is
// title-cased.
func LibraryName(kind string) string {
	base := kind
	if idx := strings.IndexByte(base, '-'); idx >= 0 {
		base = base[:idx]
	}
	if base == "" {
		return ""
	}
	r := []rune(base)
	r[0] = unicode.ToUpper(r[0])
	return "libworker" + string(r) + ".so"
}

// Open loads the plugin backing kind from dir and resolves symbolName
// within it.
func Open(dir, kind, symbolName string) (stdplugin.Symbol, error) {
	libPath := filepath.Join(dir, LibraryName(kind))
	p, err := stdplugin.Open(libPath)
	if err != nil {
		return nil, errors.Wrap(errors.FileNotFound, err, "loading worker plugin %q", libPath)
	}
	sym, err := p.Lookup(symbolName)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidArgument, err, "symbol %q not found in %q", symbolName, libPath)
	}
	return sym, nil
}
