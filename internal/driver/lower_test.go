package driver_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tabi/internal/diag"
	"tabi/internal/driver"
	"tabi/internal/trace"
)

const coreUnit = `
[unit]
name = "core"

[[struct]]
name = "Pair"
fields = ["a: int", "b: int"]

[[func]]
name = "printf"
linkage = "c"
varargs = "c"
result = "int"
params = ["fmt: char*"]

[[var]]
name = "errno"
linkage = "c"
type = "int"
`

const appUnit = `
[unit]
name = "app"
imports = ["core"]

[[func]]
name = "swap"
linkage = "c"
result = "core.Pair"
params = ["p: Pair"]
`

func writeUnits(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func unitByName(t *testing.T, res *driver.Result, name string) *driver.UnitResult {
	t.Helper()
	for _, u := range res.Units {
		if u.Name == name {
			return u
		}
	}
	t.Fatalf("unit %q not in result", name)
	return nil
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestLowerOrdersUnitsByImports(t *testing.T) {
	dir := writeUnits(t, map[string]string{"app.toml": appUnit, "core.toml": coreUnit})

	res, err := driver.Lower(context.Background(), []string{dir}, driver.Options{Jobs: 2, Timings: true})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if res.HasErrors() {
		for _, u := range res.Units {
			t.Logf("%s: %v", u.Name, u.Bag.Items())
		}
		t.Fatalf("unexpected errors")
	}
	if len(res.Units) != 2 || res.Units[0].Name != "core" || res.Units[1].Name != "app" {
		t.Fatalf("units out of order: %+v", res.Units)
	}

	core := res.Units[0]
	if core.Target != driver.DefaultTriple {
		t.Fatalf("core target = %q", core.Target)
	}
	if len(core.Funcs) != 1 || core.Funcs[0].Symbol != "printf" {
		t.Fatalf("core funcs = %+v", core.Funcs)
	}
	if len(core.Vars) != 1 || core.Vars[0].Symbol != "errno" {
		t.Fatalf("core vars = %+v", core.Vars)
	}

	app := res.Units[1]
	if len(app.Funcs) != 1 {
		t.Fatalf("app funcs = %+v", app.Funcs)
	}
	swap := app.Funcs[0]
	if swap.Name != "swap" || swap.Native == "" || len(swap.Params) == 0 {
		t.Fatalf("swap = %+v", swap)
	}
	if core.Hash.IsZero() || app.Hash.IsZero() || core.Hash == app.Hash {
		t.Fatalf("unit hashes not computed: %s / %s", core.Hash, app.Hash)
	}
	if !hasCode(res.Bag, diag.ObsTimings) {
		t.Fatalf("missing timings diagnostic: %v", res.Bag.Items())
	}
}

func TestLowerUsesDiskCache(t *testing.T) {
	dir := writeUnits(t, map[string]string{"app.toml": appUnit, "core.toml": coreUnit})
	cache, err := driver.OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	opts := driver.Options{Cache: cache}

	first, err := driver.Lower(context.Background(), []string{dir}, opts)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Cached() != 0 {
		t.Fatalf("cold cache served %d units", first.Cached())
	}

	second, err := driver.Lower(context.Background(), []string{dir}, opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Cached() != 2 {
		t.Fatalf("warm cache served %d units, want 2", second.Cached())
	}
	a, b := unitByName(t, first, "app"), unitByName(t, second, "app")
	if len(a.Funcs) != len(b.Funcs) || a.Funcs[0].Native != b.Funcs[0].Native || a.Funcs[0].Symbol != b.Funcs[0].Symbol {
		t.Fatalf("cached result differs: %+v vs %+v", a.Funcs, b.Funcs)
	}

	// другой таргет не должен попадать в кэш
	opts.Target = "i386-pc-windows-msvc"
	third, err := driver.Lower(context.Background(), []string{dir}, opts)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if third.Cached() != 0 {
		t.Fatalf("target override must miss the cache, got %d hits", third.Cached())
	}
	if got := unitByName(t, third, "core").Target; got != "i386-pc-windows-msvc" {
		t.Fatalf("target override ignored: %q", got)
	}
}

func TestLowerBrokenDependency(t *testing.T) {
	dir := writeUnits(t, map[string]string{
		"core.toml": `
[unit]
name = "core"

[[func]]
name = "f"
params = ["Missing"]
`,
		"app.toml": appUnit,
	})

	res, err := driver.Lower(context.Background(), []string{dir}, driver.Options{})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	core := unitByName(t, res, "core")
	if !core.Broken || !hasCode(core.Bag, diag.PrjUnknownType) {
		t.Fatalf("core should be broken: %v", core.Bag.Items())
	}
	app := unitByName(t, res, "app")
	if !app.Broken || !hasCode(app.Bag, diag.PrjDependencyFailed) {
		t.Fatalf("app should report the failed dependency: %v", app.Bag.Items())
	}
	if len(app.Funcs) != 0 {
		t.Fatalf("app must not be lowered: %+v", app.Funcs)
	}
}

func TestLowerImportCycle(t *testing.T) {
	dir := writeUnits(t, map[string]string{
		"a.toml": "[unit]\nname = \"a\"\nimports = [\"b\"]\n",
		"b.toml": "[unit]\nname = \"b\"\nimports = [\"a\"]\n",
		"c.toml": "[unit]\nname = \"c\"\nimports = [\"a\"]\n",
	})

	res, err := driver.Lower(context.Background(), []string{dir}, driver.Options{})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	for _, name := range []string{"a", "b", "c"} {
		u := unitByName(t, res, name)
		if !u.Broken || !hasCode(u.Bag, diag.PrjImportCycle) {
			t.Fatalf("%s: %v", name, u.Bag.Items())
		}
	}
}

func TestLowerReportsUnreadableAndDuplicateUnits(t *testing.T) {
	dir := writeUnits(t, map[string]string{
		"one.toml": "[unit]\nname = \"dup\"\n",
		"two.toml": "[unit]\nname = \"dup\"\n",
		"bad.toml": "[unit\n",
	})

	res, err := driver.Lower(context.Background(), []string{dir}, driver.Options{})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(res.Units) != 3 {
		t.Fatalf("units = %d, want 3", len(res.Units))
	}
	var dups, parse int
	for _, u := range res.Units {
		if hasCode(u.Bag, diag.PrjDuplicateDecl) {
			dups++
		}
		if hasCode(u.Bag, diag.PrjParseError) {
			parse++
			if u.Err == nil || !u.Broken {
				t.Fatalf("parse failure must be broken with an error: %+v", u)
			}
		}
	}
	if dups != 1 || parse != 1 {
		t.Fatalf("dups=%d parse=%d", dups, parse)
	}
}

func TestLowerEmitsProgress(t *testing.T) {
	dir := writeUnits(t, map[string]string{"app.toml": appUnit, "core.toml": coreUnit})

	ch := make(chan driver.Event, 64)
	var phases []string
	opts := driver.Options{
		Sink: driver.ChannelSink{Ch: ch},
		Observer: func(ev driver.PhaseEvent) {
			if ev.Status == driver.PhaseEnd {
				phases = append(phases, ev.Name)
			}
		},
	}
	if _, err := driver.Lower(context.Background(), []string{dir}, opts); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	close(ch)

	done := map[driver.Stage]int{}
	for ev := range ch {
		if ev.Status == driver.StatusDone {
			done[ev.Stage]++
		}
	}
	if done[driver.StageLoad] != 2 || done[driver.StageLower] != 2 {
		t.Fatalf("done events = %v", done)
	}
	if len(phases) != 3 || phases[0] != "load" || phases[1] != "graph" || phases[2] != "lower" {
		t.Fatalf("phases = %v", phases)
	}
}

func TestLowerCancelled(t *testing.T) {
	dir := writeUnits(t, map[string]string{"core.toml": coreUnit})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := driver.Lower(ctx, []string{dir}, driver.Options{}); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestLowerDiscoversImportsAboveImporter(t *testing.T) {
	dir := writeUnits(t, map[string]string{"core.toml": coreUnit})
	sub := filepath.Join(dir, "app")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	appPath := filepath.Join(sub, "app.toml")
	if err := os.WriteFile(appPath, []byte(appUnit), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := driver.Lower(context.Background(), []string{appPath}, driver.Options{})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if res.HasErrors() || len(res.Units) != 2 || res.Units[0].Name != "core" {
		t.Fatalf("units = %+v", res.Units)
	}

	u, _, err := driver.OpenUnit(context.Background(), appPath, driver.Options{})
	if err != nil {
		t.Fatalf("OpenUnit: %v", err)
	}
	if _, err := u.ResolveType("core.Pair"); err != nil {
		t.Fatalf("imported type: %v", err)
	}
	if u.Decls.Len() != 1 {
		t.Fatalf("declarations = %d", u.Decls.Len())
	}
	v, err := u.EvalNull("Pair*")
	if err != nil || v.Text != "0x0" {
		t.Fatalf("null Pair* = %+v, %v", v, err)
	}
}

func TestLowerTracesDeclDecisions(t *testing.T) {
	dir := writeUnits(t, map[string]string{"m.toml": `
[unit]
name = "m"

[[func]]
name = "get"
linkage = "d"
result = "int"
params = ["x: int"]
`})
	ring := trace.NewRingTracer(256, trace.LevelDebug)
	if _, err := driver.Lower(context.Background(), []string{dir}, driver.Options{Tracer: ring}); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	var unitSpan, declSpan uint64
	var begins int
	for _, ev := range ring.Snapshot() {
		if ev.Kind != trace.KindSpanBegin {
			continue
		}
		switch {
		case ev.Scope == trace.ScopeUnit && ev.Name == "m":
			unitSpan = ev.SpanID
		case ev.Scope == trace.ScopeDecl:
			begins++
			declSpan = ev.SpanID
			if ev.Name != "decl:get" {
				t.Fatalf("decl span %q", ev.Name)
			}
		}
	}
	if begins != 1 || unitSpan == 0 {
		t.Fatalf("decl spans = %d, unit span = %d", begins, unitSpan)
	}

	var parent uint64
	var inReg bool
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindSpanBegin && ev.SpanID == declSpan {
			parent = ev.ParentID
		}
		if ev.Kind == trace.KindPoint && ev.Scope == trace.ScopeDecl && ev.ParentID == declSpan &&
			strings.Contains(ev.Detail, "in register") {
			inReg = true
		}
	}
	if parent != unitSpan {
		t.Fatalf("decl span parent = %d, want unit span %d", parent, unitSpan)
	}
	if !inReg {
		t.Fatalf("missing register decision event: %+v", ring.Snapshot())
	}
}
