package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tabi/internal/diag"
	"tabi/internal/source"
	"tabi/internal/target"
	"tabi/internal/types"
)

func loadString(t *testing.T, fs *source.FileSet, path, content string) (*Unit, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(32)
	u, err := Load(fs, fs.Add(path, []byte(content)), diag.NewBagReporter(bag))
	if err != nil {
		t.Fatalf("Load(%s): %v", path, err)
	}
	return u, bag
}

func codes(b *diag.Bag) []diag.Code {
	out := make([]diag.Code, 0, b.Len())
	for _, d := range b.Items() {
		out = append(out, d.Code)
	}
	return out
}

func hasCode(b *diag.Bag, c diag.Code) bool {
	for _, d := range b.Items() {
		if d.Code == c {
			return true
		}
	}
	return false
}

func TestParseTypeExpr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"int", "int"},
		{"Pair*", "Pair*"},
		{"int[4]*", "int[4]*"},
		{"ubyte[]", "ubyte[]"},
		{"vector( float , 4 )", "vector(float,4)"},
		{"class Object", "class Object"},
		{"enum Color : ubyte", "enum Color : ubyte"},
		{"aa(int, Pair*)", "aa(int,Pair*)"},
		{"aa", "aa"},
		{"delegate", "delegate"},
		{"fn*", "fn*"},
		{"core.Pair", "core.Pair"},
	}
	for _, tt := range tests {
		e, err := ParseTypeExpr(tt.in)
		if err != nil {
			t.Fatalf("ParseTypeExpr(%q): %v", tt.in, err)
		}
		if got := e.String(); got != tt.want {
			t.Fatalf("ParseTypeExpr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "int[", "int[x]", "vector(int)", "ref int", "int int", "int$", "int[99999999999]"} {
		if _, err := ParseTypeExpr(bad); err == nil {
			t.Fatalf("ParseTypeExpr(%q) succeeded", bad)
		}
	}
}

func TestParseParam(t *testing.T) {
	p, err := ParseParam("x: ref Pair", true)
	if err != nil {
		t.Fatalf("ParseParam: %v", err)
	}
	if p.Name != "x" || p.Storage != types.StorageRef || p.Type.String() != "Pair" {
		t.Fatalf("ParseParam = %+v", p)
	}
	p, err = ParseParam("in int[]", true)
	if err != nil || p.Storage != types.StorageIn || p.Name != "" {
		t.Fatalf("ParseParam(in) = %+v, %v", p, err)
	}
	if _, err := ParseParam("ref int", false); err == nil {
		t.Fatalf("fields must not take a storage class")
	}
}

const pairUnit = `
[unit]
name = "core"

[target]
triple = "i686-pc-linux-gnu"

[[struct]]
name = "Pair"
fields = ["a: int", "b: int"]
size = 8

[[struct]]
name = "Guard"
fields = ["int"]
dtor = true

[[enum]]
name = "Color"
base = "ubyte"

[[func]]
name = "make"
result = "Pair"
params = ["x: int", "g: ref Guard", "c: Color"]
this = true

[[func]]
name = "printf"
linkage = "c"
varargs = "c"
result = "int"
params = ["fmt: char*"]

[[var]]
name = "counter"
linkage = "system"
type = "int"
`

func TestLoadAndPopulate(t *testing.T) {
	fs := source.NewFileSet()
	u, bag := loadString(t, fs, "units/core.toml", pairUnit)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	if u.Meta.Name != "core" || u.Triple != "i686-pc-linux-gnu" {
		t.Fatalf("header = %+v / %q", u.Meta, u.Triple)
	}
	if len(u.Structs) != 2 || len(u.Enums) != 1 || len(u.Funcs) != 2 || len(u.Vars) != 1 {
		t.Fatalf("decl counts: %d structs, %d enums, %d funcs, %d vars", len(u.Structs), len(u.Enums), len(u.Funcs), len(u.Vars))
	}
	if u.Meta.ContentHash.IsZero() {
		t.Fatalf("content hash not set")
	}

	in := types.NewInterner()
	s := NewScope(in, target.MustParse(u.Triple), diag.NewBagReporter(bag))
	decls, err := Populate(s, u, nil)
	if err != nil {
		t.Fatalf("Populate: %v (%v)", err, bag.Items())
	}
	if len(decls.Structs) != 2 {
		t.Fatalf("structs = %v", decls.Structs)
	}
	guard, _ := in.StructInfo(decls.Structs[1])
	if guard.POD || !guard.HasDtor {
		t.Fatalf("Guard must be non-POD: %+v", guard)
	}

	mk := decls.Funcs[0].Sig
	if !mk.HasThis || mk.Linkage != types.LinkD || len(mk.Params) != 3 {
		t.Fatalf("make sig = %+v", mk)
	}
	if mk.Params[1].Storage != types.StorageRef || in.Strings.MustLookup(mk.Params[1].Name) != "g" {
		t.Fatalf("make param 1 = %+v", mk.Params[1])
	}
	if in.BaseKind(mk.Params[2].Type) != types.KindUint {
		t.Fatalf("enum param should have an unsigned base, got %s", in.TypeString(mk.Params[2].Type))
	}
	pf := decls.Funcs[1].Sig
	if pf.Linkage != types.LinkC || pf.VarArgs != types.VarArgsVariadic {
		t.Fatalf("printf sig = %+v", pf)
	}
	if v := decls.Vars[0]; v.Linkage != types.LinkC || v.Type != in.Builtins().Int32 {
		t.Fatalf("system linkage on linux should be C: %+v", v)
	}
}

func TestSystemLinkageOnWindows(t *testing.T) {
	fs := source.NewFileSet()
	u, bag := loadString(t, fs, "w.toml", `
[[func]]
name = "Sleep"
linkage = "system"
params = ["uint"]
`)
	s := NewScope(types.NewInterner(), target.MustParse("i686-pc-windows-msvc"), diag.NewBagReporter(bag))
	decls, err := Populate(s, u, nil)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if got := decls.Funcs[0].Sig.Linkage; got != types.LinkWindows {
		t.Fatalf("linkage = %s, want windows", got)
	}
}

func TestStaticMemberHasNoThis(t *testing.T) {
	fs := source.NewFileSet()
	u, bag := loadString(t, fs, "s.toml", `
[[func]]
name = "make"
linkage = "c++"
static = true
params = ["int"]
`)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", codes(bag))
	}
	s := NewScope(types.NewInterner(), target.MustParse("i686-pc-windows-msvc"), diag.NewBagReporter(bag))
	decls, err := Populate(s, u, nil)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if sig := decls.Funcs[0].Sig; sig.HasThis || len(sig.Params) != 1 {
		t.Fatalf("static member must lower without this: %+v", sig)
	}
}

func TestLoadReportsProblems(t *testing.T) {
	fs := source.NewFileSet()
	u, bag := loadString(t, fs, "bad.toml", `
[unit]
name = "9lives"
bogus = 1

[target]
triple = "sparc-sun-solaris"

[[struct]]
name = "int"

[[struct]]
name = "S"
fields = ["int"]

[[struct]]
name = "S"

[[struct]]
name = "P"
packed = true
align = 4

[[func]]
name = "f"
linkage = "pascal"

[[func]]
name = "g"
static = true
this = true

[[func]]
name = "h"
params = ["int["]
`)
	for _, want := range []diag.Code{
		diag.PrjUnknownKey,
		diag.PrjInvalidValue,
		diag.PrjBadTarget,
		diag.PrjDuplicateDecl,
		diag.LayConflictingAttrs,
		diag.PrjUnknownLinkage,
		diag.PrjParseError,
	} {
		if !hasCode(bag, want) {
			t.Fatalf("missing %v in %v", want, codes(bag))
		}
	}
	if u.Meta.Name != "bad" {
		t.Fatalf("invalid name should fall back to the file name, got %q", u.Meta.Name)
	}
	if len(u.Structs) != 1 || u.Structs[0].Name != "S" || len(u.Funcs) != 0 {
		t.Fatalf("bad entries should be dropped: %+v / %+v", u.Structs, u.Funcs)
	}
	for _, d := range bag.Items() {
		if d.Code == diag.PrjUnknownKey && d.Severity != diag.SevWarning {
			t.Fatalf("unknown keys are warnings: %+v", d)
		}
	}
}

func TestLoadSyntaxError(t *testing.T) {
	fs := source.NewFileSet()
	bag := diag.NewBag(4)
	_, err := Load(fs, fs.Add("broken.toml", []byte("[unit\nname = 1\n")), diag.NewBagReporter(bag))
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse TOML") {
		t.Fatalf("error = %v", err)
	}
	if bag.Len() != 1 || bag.Items()[0].Code != diag.PrjParseError {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestPopulateReportsTypeErrors(t *testing.T) {
	fs := source.NewFileSet()
	u, bag := loadString(t, fs, "t.toml", `
[[struct]]
name = "Node"
fields = ["int", "Node"]

[[struct]]
name = "Sized"
fields = ["int", "ubyte"]
size = 5

[[func]]
name = "f"
params = ["Missing"]
`)
	s := NewScope(types.NewInterner(), target.MustParse("i686-pc-linux-gnu"), diag.NewBagReporter(bag))
	if _, err := Populate(s, u, nil); err == nil {
		t.Fatalf("expected Populate to fail")
	}
	for _, want := range []diag.Code{diag.LayRecursiveUnsized, diag.LaySizeMismatch, diag.PrjUnknownType} {
		if !hasCode(bag, want) {
			t.Fatalf("missing %v in %v", want, codes(bag))
		}
	}
}

func TestPopulateSeesImportedTypes(t *testing.T) {
	fs := source.NewFileSet()
	core, _ := loadString(t, fs, "core.toml", `
[[struct]]
name = "Pair"
fields = ["int", "int"]
`)
	gfx, _ := loadString(t, fs, "gfx.toml", `
[[struct]]
name = "Pair"
fields = ["float", "float"]
`)
	app, bag := loadString(t, fs, "app.toml", `
[unit]
imports = ["core", "gfx"]

[[func]]
name = "f"
result = "core.Pair"
params = ["gfx.Pair", "class Object", "enum Mode : int", "enum Mode"]

[[func]]
name = "g"
params = ["Pair"]
`)
	in := types.NewInterner()
	s := NewScope(in, target.MustParse("i686-pc-linux-gnu"), diag.NewBagReporter(bag))
	decls, err := Populate(s, app, []*Unit{core, gfx})
	if err == nil {
		t.Fatalf("unqualified Pair is ambiguous and must fail")
	}
	if len(decls.Funcs) != 1 {
		t.Fatalf("f should still resolve: %+v", decls.Funcs)
	}
	sig := decls.Funcs[0].Sig
	if in.Name(sig.Result) != "Pair" || in.Name(sig.Params[0].Type) != "Pair" || sig.Result == sig.Params[0].Type {
		t.Fatalf("qualified names must pick distinct structs: %s / %s", in.TypeString(sig.Result), in.TypeString(sig.Params[0].Type))
	}
	if in.BaseKind(sig.Params[1].Type) != types.KindClass {
		t.Fatalf("class param = %s", in.TypeString(sig.Params[1].Type))
	}
	if sig.Params[2].Type != sig.Params[3].Type {
		t.Fatalf("enum declared inline must be reused")
	}
	if !hasCode(bag, diag.PrjUnknownType) {
		t.Fatalf("missing ambiguity report: %v", codes(bag))
	}
}

func TestFindUnitFiles(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(rel string) {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("# unit\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("a.toml")
	mustWrite("sub/b.toml")
	mustWrite("sub/readme.md")
	mustWrite(".hidden/c.toml")

	got, err := FindUnitFiles([]string{dir, filepath.Join(dir, "a.toml")})
	if err != nil {
		t.Fatalf("FindUnitFiles: %v", err)
	}
	want := []string{filepath.Join(dir, "a.toml"), filepath.Join(dir, "sub", "b.toml")}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("FindUnitFiles = %v, want %v", got, want)
	}

	p, ok, err := FindUnitByName(filepath.Join(dir, "sub"), "a")
	if err != nil || !ok || p != filepath.Join(dir, "a.toml") {
		t.Fatalf("FindUnitByName = %q %v %v", p, ok, err)
	}
}

func TestUnitNames(t *testing.T) {
	if !IsValidUnitName("net.http") || IsValidUnitName("net..http") || IsValidUnitName("1x") {
		t.Fatalf("IsValidUnitName misclassifies")
	}
	if got := DefaultUnitName("dir/my-unit.toml"); got != "my_unit" {
		t.Fatalf("DefaultUnitName = %q", got)
	}
	a, b := DigestOf([]byte("a")), DigestOf([]byte("b"))
	if Combine(a, b) == Combine(b, a) {
		t.Fatalf("Combine must be order sensitive")
	}
}
