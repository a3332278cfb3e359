package diag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"tabi/internal/source"
)

type shortDiagnostic struct {
	Severity string
	Code     string
	Path     string
	Line     uint32
	Column   uint32
	Message  string
}

// FormatShortDiagnostics renders diagnostics one per line, sorted by
// position: "error ABI2001 unit.toml:3:7 message". Spans that do not belong
// to a registered file render as "<backend>".
func FormatShortDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}

	rendered := make([]shortDiagnostic, 0, len(diags))
	for i := range diags {
		d := &diags[i]
		rendered = append(rendered, render(fs, d.Severity.String(), d.Code, d.Primary, d.Message))
		if includeNotes {
			for _, note := range d.Notes {
				rendered = append(rendered, render(fs, "note", d.Code, note.Span, note.Msg))
			}
		}
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		return di.Column < dj.Column
	})

	var b strings.Builder
	for i, d := range rendered {
		if d.Path == "" {
			fmt.Fprintf(&b, "%s %s <backend> %s", d.Severity, d.Code, d.Message)
		} else {
			fmt.Fprintf(&b, "%s %s %s:%d:%d %s", d.Severity, d.Code, d.Path, d.Line, d.Column, d.Message)
		}
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func render(fs *source.FileSet, sev string, code Code, span source.Span, msg string) shortDiagnostic {
	out := shortDiagnostic{Severity: sev, Code: code.ID(), Message: sanitizeMessage(msg)}
	if f := fs.Get(span.File); f != nil && span != source.NoSpan {
		start, _ := fs.Resolve(span)
		out.Path = filepath.ToSlash(f.Path)
		out.Line, out.Column = start.Line, start.Col
	}
	return out
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
