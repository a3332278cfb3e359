package abi

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"tabi/internal/target"
	"tabi/internal/types"
)

// symbolEscape tells the IR layer to emit the name verbatim, without the
// platform's global prefix.
const symbolEscape = "\x01"

// normalizeSymbol puts identifiers into NFC so equal source names produce
// equal symbols regardless of how the front end spelled them.
func normalizeSymbol(name string) string {
	return norm.NFC.String(name)
}

// mangleFunction applies the Windows x86 naming rules: D names carry an
// explicit leading underscore, MSVC C++ names ('?...') must not get one.
func mangleFunction(cfg target.Config, name string, l types.Linkage) string {
	name = normalizeSymbol(name)
	if !cfg.IsWindows() {
		return name
	}
	switch l {
	case types.LinkD, types.LinkDefault:
		return symbolEscape + "_" + name
	case types.LinkCpp:
		if strings.HasPrefix(name, "?") {
			return symbolEscape + name
		}
	}
	return name
}

func mangleVariable(cfg target.Config, name string, l types.Linkage) string {
	name = normalizeSymbol(name)
	if cfg.IsWindows() && l == types.LinkCpp && strings.HasPrefix(name, "?") {
		return symbolEscape + name
	}
	return name
}
