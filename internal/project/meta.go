package project

import (
	"path/filepath"
	"strings"
	"unicode"

	"tabi/internal/source"
)

// ImportMeta is one entry of a unit's `imports` list.
type ImportMeta struct {
	Name string
	Span source.Span
}

// UnitMeta is what the unit graph needs to know about a unit file.
type UnitMeta struct {
	Name        string
	Path        string       // путь к файлу описания
	Span        source.Span  // span объявления имени (или начала файла)
	Imports     []ImportMeta // импорты в порядке объявления
	ContentHash Digest       // хеш содержимого файла
	UnitHash    Digest       // агрегированный хеш юнита с учётом импортов
}

// IsValidUnitName accepts ASCII identifiers with optional '.' separated
// segments, e.g. "core" or "net.http".
func IsValidUnitName(name string) bool {
	if name == "" {
		return false
	}
	for _, seg := range strings.Split(name, ".") {
		if !isIdent(seg) {
			return false
		}
	}
	return true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
		if i == 0 && r != '_' && !unicode.IsLetter(r) {
			return false
		}
		if i > 0 && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// DefaultUnitName derives a unit name from the file name: "dir/core.toml"
// becomes "core". Characters that cannot appear in a name become '_'.
func DefaultUnitName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	for i, r := range base {
		switch {
		case r <= unicode.MaxASCII && (unicode.IsLetter(r) || r == '_'):
			b.WriteRune(r)
		case r <= unicode.MaxASCII && unicode.IsDigit(r) && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
