package project

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"

	"tabi/internal/diag"
	"tabi/internal/source"
	"tabi/internal/target"
	"tabi/internal/types"
)

// LoadFile reads path into fs and loads it.
func LoadFile(fs *source.FileSet, path string, r diag.Reporter) (*Unit, error) {
	id, err := fs.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Load(fs, id, r)
}

// Load decodes and validates one unit description. Syntax errors are
// reported and returned; semantic problems are reported only, and the
// offending entries are dropped from the returned Unit.
func Load(fs *source.FileSet, id source.FileID, r diag.Reporter) (*Unit, error) {
	f := fs.Get(id)
	if f == nil {
		return nil, fmt.Errorf("unknown file #%d", id)
	}
	if r == nil {
		r = diag.NopReporter{}
	}
	var raw unitFile
	meta, err := toml.Decode(string(f.Content), &raw)
	if err != nil {
		diag.ReportError(r, diag.PrjParseError, parseErrorSpan(f, err), err.Error()).Emit()
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", f.Path, err)
	}

	l := &loader{
		file:  f,
		r:     r,
		types: make(map[string]source.Span, len(raw.Structs)+len(raw.Enums)+len(raw.Classes)),
		funcs: make(map[string]source.Span, len(raw.Funcs)),
		vars:  make(map[string]source.Span, len(raw.Vars)),
	}
	for _, key := range meta.Undecoded() {
		last := key[len(key)-1]
		diag.ReportWarning(r, diag.PrjUnknownKey, l.spanOf(last), fmt.Sprintf("unknown key %q", key.String())).Emit()
	}

	u := &Unit{File: id}
	u.Meta.Path = f.Path
	u.Meta.ContentHash = DigestOf(f.Content)
	l.unitHeader(u, &raw, meta)
	l.targetHeader(u, &raw)
	for i := range raw.Structs {
		if d, ok := l.structDecl(&raw.Structs[i]); ok {
			u.Structs = append(u.Structs, d)
		}
	}
	for i := range raw.Enums {
		if d, ok := l.enumDecl(&raw.Enums[i]); ok {
			u.Enums = append(u.Enums, d)
		}
	}
	for i := range raw.Classes {
		if d, ok := l.classDecl(&raw.Classes[i]); ok {
			u.Classes = append(u.Classes, d)
		}
	}
	for i := range raw.Funcs {
		if d, ok := l.funcDecl(&raw.Funcs[i]); ok {
			u.Funcs = append(u.Funcs, d)
		}
	}
	for i := range raw.Vars {
		if d, ok := l.varDecl(&raw.Vars[i]); ok {
			u.Vars = append(u.Vars, d)
		}
	}
	return u, nil
}

type loader struct {
	file  *source.File
	r     diag.Reporter
	types map[string]source.Span
	funcs map[string]source.Span
	vars  map[string]source.Span
}

func (l *loader) spanOf(needle string) source.Span {
	if sp, ok := l.file.Find(needle); ok {
		return sp
	}
	return source.Span{File: l.file.ID}
}

func (l *loader) quoted(s string) source.Span {
	return l.spanOf(strconv.Quote(s))
}

func (l *loader) errorf(code diag.Code, sp source.Span, format string, args ...any) {
	diag.ReportError(l.r, code, sp, fmt.Sprintf(format, args...)).Emit()
}

func (l *loader) unitHeader(u *Unit, raw *unitFile, meta toml.MetaData) {
	u.Meta.Name = DefaultUnitName(l.file.Path)
	u.Meta.Span = source.Span{File: l.file.ID}
	if meta.IsDefined("unit", "name") {
		sp := l.quoted(raw.Unit.Name)
		if IsValidUnitName(raw.Unit.Name) {
			u.Meta.Name = raw.Unit.Name
			u.Meta.Span = sp
		} else {
			l.errorf(diag.PrjInvalidValue, sp, "invalid unit name %q", raw.Unit.Name)
		}
	}
	seen := make(map[string]struct{}, len(raw.Unit.Imports))
	for _, imp := range raw.Unit.Imports {
		sp := l.quoted(imp)
		if !IsValidUnitName(imp) {
			l.errorf(diag.PrjInvalidValue, sp, "invalid import %q", imp)
			continue
		}
		if _, dup := seen[imp]; dup {
			diag.ReportWarning(l.r, diag.PrjDuplicateDecl, sp, fmt.Sprintf("unit %q imported twice", imp)).Emit()
			continue
		}
		seen[imp] = struct{}{}
		u.Meta.Imports = append(u.Meta.Imports, ImportMeta{Name: imp, Span: sp})
	}
}

func (l *loader) targetHeader(u *Unit, raw *unitFile) {
	if raw.Target.Triple != "" {
		sp := l.quoted(raw.Target.Triple)
		if _, err := target.Parse(raw.Target.Triple); err != nil {
			l.errorf(diag.PrjBadTarget, sp, "%v", err)
		} else {
			u.Triple = raw.Target.Triple
			u.TripleSpan = sp
		}
	}
	if raw.Target.TLS != "" {
		if _, err := target.ParseTLSModel(raw.Target.TLS); err != nil {
			l.errorf(diag.PrjInvalidValue, l.quoted(raw.Target.TLS), "%v", err)
		} else {
			u.TLS = raw.Target.TLS
		}
	}
}

// declareType checks a nominal type name for validity and uniqueness.
func (l *loader) declareType(kind, name string) (source.Span, bool) {
	if name == "" {
		l.errorf(diag.PrjInvalidValue, source.Span{File: l.file.ID}, "%s without a name", kind)
		return source.Span{}, false
	}
	sp := l.quoted(name)
	if !isIdent(name) || IsBuiltinName(name) {
		l.errorf(diag.PrjInvalidValue, sp, "%q cannot be used as a %s name", name, kind)
		return sp, false
	}
	if prev, dup := l.types[name]; dup {
		diag.ReportError(l.r, diag.PrjDuplicateDecl, sp, fmt.Sprintf("type %q declared twice", name)).
			WithNote(prev, "previous declaration").
			Emit()
		return sp, false
	}
	l.types[name] = sp
	return sp, true
}

func (l *loader) typeExpr(s string, sp source.Span) (*TypeExpr, bool) {
	t, err := ParseTypeExpr(s)
	if err != nil {
		l.errorf(diag.PrjParseError, sp, "%v", err)
		return nil, false
	}
	return t, true
}

func (l *loader) params(list []string, allowStorage bool) ([]ParamExpr, bool) {
	out := make([]ParamExpr, 0, len(list))
	ok := true
	for _, s := range list {
		p, err := ParseParam(s, allowStorage)
		if err != nil {
			l.errorf(diag.PrjParseError, l.quoted(s), "%v", err)
			ok = false
			continue
		}
		out = append(out, p)
	}
	return out, ok
}

func (l *loader) structDecl(e *structEntry) (StructDecl, bool) {
	sp, ok := l.declareType("struct", e.Name)
	if !ok {
		return StructDecl{}, false
	}
	d := StructDecl{
		Name:   e.Name,
		Span:   sp,
		POD:    e.POD == nil || *e.POD,
		Ctor:   e.Ctor,
		Dtor:   e.Dtor,
		Size:   e.Size,
		Packed: e.Packed,
		Align:  e.Align,
	}
	if d.Fields, ok = l.params(e.Fields, false); !ok {
		return StructDecl{}, false
	}
	if e.Size != nil && *e.Size < 0 {
		l.errorf(diag.PrjInvalidValue, sp, "struct %q: negative size %d", e.Name, *e.Size)
		return StructDecl{}, false
	}
	if e.Align != nil {
		if a := *e.Align; a <= 0 || a&(a-1) != 0 {
			l.errorf(diag.PrjInvalidValue, sp, "struct %q: alignment %d is not a power of two", e.Name, a)
			return StructDecl{}, false
		}
		if e.Packed {
			l.errorf(diag.LayConflictingAttrs, sp, "struct %q: packed conflicts with align(%d)", e.Name, *e.Align)
			return StructDecl{}, false
		}
	}
	return d, true
}

func (l *loader) enumDecl(e *enumEntry) (EnumDecl, bool) {
	sp, ok := l.declareType("enum", e.Name)
	if !ok {
		return EnumDecl{}, false
	}
	base := e.Base
	if base == "" {
		base = "int"
	}
	t, ok := l.typeExpr(base, sp)
	if !ok {
		return EnumDecl{}, false
	}
	return EnumDecl{Name: e.Name, Span: sp, Base: t}, true
}

func (l *loader) classDecl(e *classEntry) (ClassDecl, bool) {
	sp, ok := l.declareType("class", e.Name)
	if !ok {
		return ClassDecl{}, false
	}
	return ClassDecl{Name: e.Name, Span: sp}, true
}

func (l *loader) funcDecl(e *funcEntry) (FuncDecl, bool) {
	if e.Name == "" {
		l.errorf(diag.PrjInvalidValue, source.Span{File: l.file.ID}, "function without a name")
		return FuncDecl{}, false
	}
	sp := l.quoted(e.Name)
	if prev, dup := l.funcs[e.Name]; dup {
		diag.ReportError(l.r, diag.PrjDuplicateDecl, sp, fmt.Sprintf("function %q declared twice", e.Name)).
			WithNote(prev, "previous declaration").
			Emit()
		return FuncDecl{}, false
	}
	l.funcs[e.Name] = sp

	d := FuncDecl{Name: e.Name, Span: sp, ResultRef: e.ResultRef, This: e.This, Nest: e.Nest}
	lk, ok := ParseLinkage(e.Linkage)
	if !ok {
		l.errorf(diag.PrjUnknownLinkage, l.quoted(e.Linkage), "function %q: unknown linkage %q", e.Name, e.Linkage)
		return FuncDecl{}, false
	}
	d.Linkage = lk
	va, ok := ParseVarArgs(e.VarArgs)
	if !ok {
		l.errorf(diag.PrjInvalidValue, l.quoted(e.VarArgs), "function %q: unknown varargs form %q", e.Name, e.VarArgs)
		return FuncDecl{}, false
	}
	d.VarArgs = va
	if e.Static && e.This {
		l.errorf(diag.PrjInvalidValue, sp, "function %q: a static member has no 'this'", e.Name)
		return FuncDecl{}, false
	}

	result := e.Result
	if result == "" {
		result = "void"
	}
	if d.Result, ok = l.typeExpr(result, l.quoted(result)); !ok {
		return FuncDecl{}, false
	}
	if d.ResultRef && d.Result.Kind == ExprNamed && d.Result.Name == "void" {
		l.errorf(diag.PrjInvalidValue, sp, "function %q: cannot return void by reference", e.Name)
		return FuncDecl{}, false
	}
	if d.Params, ok = l.params(e.Params, true); !ok {
		return FuncDecl{}, false
	}
	if d.VarArgs == types.VarArgsTypesafe {
		if n := len(d.Params); n == 0 || d.Params[n-1].Type.Kind != ExprSlice {
			l.errorf(diag.PrjInvalidValue, sp, "function %q: typesafe variadic needs a trailing slice parameter", e.Name)
			return FuncDecl{}, false
		}
	}
	return d, true
}

func (l *loader) varDecl(e *varEntry) (VarDecl, bool) {
	if e.Name == "" {
		l.errorf(diag.PrjInvalidValue, source.Span{File: l.file.ID}, "variable without a name")
		return VarDecl{}, false
	}
	sp := l.quoted(e.Name)
	if prev, dup := l.vars[e.Name]; dup {
		diag.ReportError(l.r, diag.PrjDuplicateDecl, sp, fmt.Sprintf("variable %q declared twice", e.Name)).
			WithNote(prev, "previous declaration").
			Emit()
		return VarDecl{}, false
	}
	l.vars[e.Name] = sp
	lk, ok := ParseLinkage(e.Linkage)
	if !ok {
		l.errorf(diag.PrjUnknownLinkage, l.quoted(e.Linkage), "variable %q: unknown linkage %q", e.Name, e.Linkage)
		return VarDecl{}, false
	}
	d := VarDecl{Name: e.Name, Span: sp, Linkage: lk}
	if e.Type != "" {
		if d.Type, ok = l.typeExpr(e.Type, l.quoted(e.Type)); !ok {
			return VarDecl{}, false
		}
	}
	return d, true
}

// ParseLinkage accepts the linkage spellings of unit files; "" means d.
func ParseLinkage(s string) (types.Linkage, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "d":
		return types.LinkD, true
	case "default":
		return types.LinkDefault, true
	case "windows":
		return types.LinkWindows, true
	case "c":
		return types.LinkC, true
	case "objc", "objective-c":
		return types.LinkObjC, true
	case "cpp", "c++":
		return types.LinkCpp, true
	case "system":
		return types.LinkSystem, true
	default:
		return types.LinkD, false
	}
}

// ParseVarArgs accepts none (or ""), c / variadic and typesafe.
func ParseVarArgs(s string) (types.VarArgs, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return types.VarArgsNone, true
	case "c", "variadic":
		return types.VarArgsVariadic, true
	case "typesafe":
		return types.VarArgsTypesafe, true
	default:
		return types.VarArgsNone, false
	}
}

func parseErrorSpan(f *source.File, err error) source.Span {
	var pe toml.ParseError
	if !errors.As(err, &pe) {
		return source.Span{File: f.ID}
	}
	start, errS := safecast.Conv[uint32](pe.Position.Start)
	end, errE := safecast.Conv[uint32](pe.Position.Start + pe.Position.Len)
	if errS != nil || errE != nil || int(end) > len(f.Content) {
		return source.Span{File: f.ID}
	}
	return source.Span{File: f.ID, Start: start, End: end}
}
