package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"tabi/internal/diag"
	"tabi/internal/driver"
)

var (
	unitColor   = color.New(color.Bold)
	cachedColor = color.New(color.FgGreen)
	brokenColor = color.New(color.FgRed, color.Bold)
	symColor    = color.New(color.FgCyan)
	dimColor    = color.New(color.Faint)
	errColor    = color.New(color.FgRed)
	warnColor   = color.New(color.FgYellow)
)

func renderLowerPretty(w io.Writer, res *driver.Result) {
	for i, u := range res.Units {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := fmt.Sprintf("unit %s", unitColor.Sprint(u.Name))
		if u.Path != "" {
			header += dimColor.Sprintf(" (%s)", u.Path)
		}
		if u.Target != "" {
			header += " target " + u.Target
		}
		switch {
		case u.Broken:
			header += " " + brokenColor.Sprint("[broken]")
		case u.Cached:
			header += " " + cachedColor.Sprint("[cached]")
		}
		fmt.Fprintln(w, header)
		for j := range u.Funcs {
			renderFunc(w, &u.Funcs[j])
		}
		for _, v := range u.Vars {
			fmt.Fprintf(w, "  var %s -> %s\n", v.Name, symColor.Sprint(v.Symbol))
		}
	}
}

func renderFunc(w io.Writer, f *driver.FuncResult) {
	fmt.Fprintf(w, "  fn %s -> %s  cc=%s ret=%s\n", f.Name, symColor.Sprint(f.Symbol), f.CallConv, f.RetMode)
	fmt.Fprintf(w, "    %s\n", dimColor.Sprint(f.Native))
	renderParam(w, "ret", &f.Ret)
	for i := range f.Params {
		p := &f.Params[i]
		label := p.Slot
		if p.Name != "" {
			label += " " + p.Name
		}
		renderParam(w, label, p)
	}
	for _, n := range f.Notes {
		fmt.Fprintf(w, "    note: %s\n", n)
	}
}

func renderParam(w io.Writer, label string, p *driver.ParamInfo) {
	var b strings.Builder
	fmt.Fprintf(&b, "    %-14s %-24s %s", label, p.Native, p.Mode)
	if p.Attrs != "" {
		b.WriteString(" [" + p.Attrs + "]")
	}
	if p.Rewrite != "" {
		b.WriteString(" via " + p.Rewrite)
	}
	fmt.Fprintln(w, b.String())
}

func printDiagnostics(w io.Writer, res *driver.Result, withNotes bool) {
	all := make([]diag.Diagnostic, 0, 16)
	for _, u := range res.Units {
		if u.Bag != nil {
			all = append(all, u.Bag.Items()...)
		}
	}
	text := diag.FormatShortDiagnostics(all, res.FileSet, withNotes)
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "error"):
			fmt.Fprintln(w, errColor.Sprint(line))
		case strings.HasPrefix(line, "warning"):
			fmt.Fprintln(w, warnColor.Sprint(line))
		default:
			fmt.Fprintln(w, line)
		}
	}
}

func printTimings(w io.Writer, res *driver.Result) {
	if res.Timer == nil {
		return
	}
	fmt.Fprint(w, res.Timer.Summary())
	for _, d := range res.Bag.Items() {
		if d.Code == diag.ObsTimings {
			fmt.Fprintln(w, dimColor.Sprint(d.Message))
		}
	}
}

func printSummary(w io.Writer, units, cached, broken int) {
	msg := fmt.Sprintf("%d units lowered (%d cached)", units, cached)
	if broken > 0 {
		fmt.Fprintf(w, "\n%s, %s\n", msg, brokenColor.Sprintf("%d broken", broken))
		return
	}
	fmt.Fprintf(w, "\n%s\n", msg)
}
