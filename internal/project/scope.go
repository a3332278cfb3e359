package project

import (
	"errors"
	"fmt"

	"tabi/internal/diag"
	"tabi/internal/layout"
	"tabi/internal/source"
	"tabi/internal/target"
	"tabi/internal/types"
)

// FuncSig is a function declaration with its resolved signature.
type FuncSig struct {
	Name string
	Span source.Span
	Sig  *types.FuncSignature
}

// VarSig is a resolved variable declaration.
type VarSig struct {
	Name    string
	Span    source.Span
	Linkage types.Linkage
	Type    types.TypeID // NoTypeID when the unit did not give one
}

// Decls is what Populate produced for the unit itself. Types of imports are
// registered as well but listed only through Scope.
type Decls struct {
	Structs []types.TypeID
	Funcs   []FuncSig
	Vars    []VarSig
}

// ambiguous marks an unqualified name declared by more than one import.
const ambiguous = ^types.TypeID(0)

// Scope resolves type expressions of one unit against an interner: builtins,
// the unit's own types, and the types of its imports, which are also
// reachable as "unit.Name".
type Scope struct {
	Types  *types.Interner
	Target target.Config

	r       diag.Reporter
	names   map[string]types.TypeID
	fnType  types.TypeID
	classes map[string]types.TypeID
}

// NewScope returns an empty scope over in.
func NewScope(in *types.Interner, cfg target.Config, r diag.Reporter) *Scope {
	if r == nil {
		r = diag.NopReporter{}
	}
	return &Scope{
		Types:   in,
		Target:  cfg,
		r:       r,
		names:   make(map[string]types.TypeID, 32),
		classes: make(map[string]types.TypeID, 8),
	}
}

func (s *Scope) errorf(code diag.Code, sp source.Span, format string, args ...any) {
	diag.ReportError(s.r, code, sp, fmt.Sprintf(format, args...)).Emit()
}

func (s *Scope) bind(unit, name string, id types.TypeID, own bool) {
	s.names[unit+"."+name] = id
	if prev, ok := s.names[name]; ok && !own && prev != id {
		s.names[name] = ambiguous
		return
	}
	s.names[name] = id
}

// Populate registers deps (in dependency order) and then u into the scope's
// interner and resolves u's declarations. It returns an error when any
// diagnostic of error severity was reported for u.
func Populate(s *Scope, u *Unit, deps []*Unit) (*Decls, error) {
	// deps were checked when they were lowered themselves; broken ones are
	// reported through the unit graph, not here
	saved := s.r
	s.r = diag.NopReporter{}
	for _, d := range deps {
		_, _ = s.addTypes(d, false)
	}
	s.r = saved

	failed := false
	structs, err := s.addTypes(u, true)
	out := &Decls{Structs: structs}
	if err != nil {
		failed = true
	}
	for i := range u.Funcs {
		fs, ok := s.funcSig(&u.Funcs[i])
		if !ok {
			failed = true
			continue
		}
		out.Funcs = append(out.Funcs, fs)
	}
	for i := range u.Vars {
		v := &u.Vars[i]
		vs := VarSig{Name: v.Name, Span: v.Span, Linkage: s.linkage(v.Linkage)}
		if v.Type != nil {
			id, ok := s.Resolve(v.Type, v.Span)
			if !ok {
				failed = true
				continue
			}
			vs.Type = id
		}
		out.Vars = append(out.Vars, vs)
	}
	if failed {
		return out, fmt.Errorf("unit %q: declarations have errors", u.Meta.Name)
	}
	return out, nil
}

// addTypes registers the nominal types of u. Structs are registered first so
// fields may refer to any of them regardless of order.
func (s *Scope) addTypes(u *Unit, own bool) ([]types.TypeID, error) {
	in := s.Types
	unit := u.Meta.Name
	failed := false

	ids := make([]types.TypeID, len(u.Structs))
	for i := range u.Structs {
		d := &u.Structs[i]
		ids[i] = in.RegisterStruct(in.Strings.Intern(d.Name), d.Span)
		s.bind(unit, d.Name, ids[i], own)
	}
	for i := range u.Classes {
		d := &u.Classes[i]
		id := in.RegisterClass(in.Strings.Intern(d.Name), d.Span)
		s.classes[d.Name] = id
		s.bind(unit, d.Name, id, own)
	}
	for i := range u.Enums {
		d := &u.Enums[i]
		base, ok := s.Resolve(d.Base, d.Span)
		if ok && !s.isEnumBase(base) {
			s.errorf(diag.PrjInvalidValue, d.Span, "enum %q: base type %s is not integral or floating", d.Name, in.TypeString(base))
			ok = false
		}
		if !ok {
			failed = true
			continue
		}
		s.bind(unit, d.Name, in.RegisterEnum(in.Strings.Intern(d.Name), d.Span, base), own)
	}
	for i := range u.Structs {
		d := &u.Structs[i]
		fields := make([]types.StructField, 0, len(d.Fields))
		for j, f := range d.Fields {
			ft, ok := s.Resolve(f.Type, d.Span)
			if ok && !s.isValueType(ft) {
				s.errorf(diag.PrjInvalidValue, d.Span, "struct %q: field %d has no storage (%s)", d.Name, j, in.TypeString(ft))
				ok = false
			}
			if !ok {
				failed = true
				continue
			}
			name := source.NoStringID
			if f.Name != "" {
				name = in.Strings.Intern(f.Name)
			}
			fields = append(fields, types.StructField{Name: name, Type: ft})
		}
		in.SetStructFields(ids[i], fields)
		in.SetStructSemantics(ids[i], d.POD, d.Ctor, d.Dtor)
		if d.Size != nil {
			in.SetStructSize(ids[i], *d.Size)
		}
		if d.Packed || d.Align != nil {
			in.SetTypeLayoutAttrs(ids[i], types.LayoutAttrs{Packed: d.Packed, AlignOverride: d.Align})
		}
	}
	if own && !failed {
		failed = !s.checkLayouts(u, ids)
	}
	if failed {
		return ids, fmt.Errorf("unit %q: type declarations have errors", unit)
	}
	return ids, nil
}

// checkLayouts runs the layout engine over the unit's structs so recursive
// value types and wrong declared sizes are reported at their declaration.
func (s *Scope) checkLayouts(u *Unit, ids []types.TypeID) bool {
	le := layout.New(s.Target, s.Types)
	ok := true
	for i, id := range ids {
		_, err := le.LayoutOf(id)
		if err == nil {
			continue
		}
		ok = false
		d := &u.Structs[i]
		var lerr *layout.LayoutError
		if !errors.As(err, &lerr) {
			s.errorf(diag.LayInfo, d.Span, "struct %q: %v", d.Name, err)
			continue
		}
		switch lerr.Kind {
		case layout.LayoutErrRecursiveUnsized:
			s.errorf(diag.LayRecursiveUnsized, d.Span, "struct %q contains itself by value", d.Name)
		case layout.LayoutErrSizeMismatch:
			s.errorf(diag.LaySizeMismatch, d.Span, "struct %q: declared size %d, target layout gives %d", d.Name, lerr.Declared, lerr.Computed)
		case layout.LayoutErrLengthConversion:
			s.errorf(diag.LayLengthOverflow, d.Span, "struct %q: %v", d.Name, lerr)
		case layout.LayoutErrConflictingAttrs:
			s.errorf(diag.LayConflictingAttrs, d.Span, "struct %q: packed conflicts with align", d.Name)
		default:
			s.errorf(diag.LayInfo, d.Span, "struct %q: %v", d.Name, lerr)
		}
	}
	return ok
}

func (s *Scope) isEnumBase(id types.TypeID) bool {
	switch s.Types.BaseKind(id) {
	case types.KindBool, types.KindInt, types.KindUint, types.KindFloat:
		return true
	default:
		return false
	}
}

func (s *Scope) isValueType(id types.TypeID) bool {
	switch s.Types.BaseKind(id) {
	case types.KindVoid, types.KindNoreturn, types.KindInvalid:
		return false
	default:
		return true
	}
}

// linkage resolves `system` the way the target's C toolchain does.
func (s *Scope) linkage(l types.Linkage) types.Linkage {
	if l != types.LinkSystem {
		return l
	}
	if s.Target.IsWindows() {
		return types.LinkWindows
	}
	return types.LinkC
}

func (s *Scope) funcSig(d *FuncDecl) (FuncSig, bool) {
	in := s.Types
	sig := &types.FuncSignature{
		Linkage:   s.linkage(d.Linkage),
		VarArgs:   d.VarArgs,
		ResultRef: d.ResultRef,
		HasThis:   d.This,
		HasNest:   d.Nest,
		Params:    make([]types.Param, 0, len(d.Params)),
	}
	ok := true
	if rt, rok := s.Resolve(d.Result, d.Span); rok {
		sig.Result = rt
	} else {
		ok = false
	}
	for i, p := range d.Params {
		pt, pok := s.Resolve(p.Type, d.Span)
		if pok && !s.isValueType(pt) {
			s.errorf(diag.PrjInvalidValue, d.Span, "function %q: parameter %d has type %s", d.Name, i, in.TypeString(pt))
			pok = false
		}
		if !pok {
			ok = false
			continue
		}
		prm := types.Param{Type: pt, Storage: p.Storage}
		if p.Name != "" {
			prm.Name = in.Strings.Intern(p.Name)
		}
		sig.Params = append(sig.Params, prm)
	}
	if !ok {
		return FuncSig{}, false
	}
	return FuncSig{Name: d.Name, Span: d.Span, Sig: sig}, true
}

// Resolve turns a type expression into a TypeID, reporting PrjUnknownType
// at sp when a name is not in scope. `class Name` and `enum Name : T`
// declare the type on first use.
func (s *Scope) Resolve(e *TypeExpr, sp source.Span) (types.TypeID, bool) {
	in := s.Types
	b := in.Builtins()
	switch e.Kind {
	case ExprNamed:
		if f, ok := builtinNames[e.Name]; ok {
			return f(b), true
		}
		id, ok := s.names[e.Name]
		switch {
		case !ok:
			s.errorf(diag.PrjUnknownType, sp, "unknown type %q", e.Name)
			return types.NoTypeID, false
		case id == ambiguous:
			s.errorf(diag.PrjUnknownType, sp, "type %q is declared by several imports; qualify it", e.Name)
			return types.NoTypeID, false
		}
		return id, true
	case ExprPointer, ExprArray, ExprSlice, ExprVector:
		elem, ok := s.Resolve(e.Elem, sp)
		if !ok {
			return types.NoTypeID, false
		}
		switch e.Kind {
		case ExprPointer:
			return in.Intern(types.MakePointer(elem)), true
		case ExprArray:
			return in.Intern(types.MakeArray(elem, e.Count)), true
		case ExprSlice:
			return in.Intern(types.MakeSlice(elem)), true
		}
		switch in.BaseKind(elem) {
		case types.KindInt, types.KindUint, types.KindFloat:
		default:
			s.errorf(diag.PrjInvalidValue, sp, "vector element %s is not a numeric scalar", in.TypeString(elem))
			return types.NoTypeID, false
		}
		if e.Count == 0 || e.Count&(e.Count-1) != 0 {
			s.errorf(diag.PrjInvalidValue, sp, "vector length %d is not a power of two", e.Count)
			return types.NoTypeID, false
		}
		return in.Intern(types.MakeVector(elem, e.Count)), true
	case ExprClass:
		if id, ok := s.classes[e.Name]; ok {
			return id, true
		}
		id := in.RegisterClass(in.Strings.Intern(e.Name), sp)
		s.classes[e.Name] = id
		if _, taken := s.names[e.Name]; !taken {
			s.names[e.Name] = id
		}
		return id, true
	case ExprEnum:
		if id, ok := s.names[e.Name]; ok && id != ambiguous {
			info, isEnum := in.EnumInfo(id)
			if !isEnum {
				s.errorf(diag.PrjInvalidValue, sp, "%q is not an enum", e.Name)
				return types.NoTypeID, false
			}
			if e.Key != nil {
				base, ok := s.Resolve(e.Key, sp)
				if !ok {
					return types.NoTypeID, false
				}
				if !in.Same(base, info.Base) {
					s.errorf(diag.PrjInvalidValue, sp, "enum %q has base %s, not %s", e.Name, in.TypeString(info.Base), in.TypeString(base))
					return types.NoTypeID, false
				}
			}
			return id, true
		}
		if e.Key == nil {
			s.errorf(diag.PrjUnknownType, sp, "unknown enum %q (write `enum %s : T` to declare it)", e.Name, e.Name)
			return types.NoTypeID, false
		}
		base, ok := s.Resolve(e.Key, sp)
		if !ok {
			return types.NoTypeID, false
		}
		if !s.isEnumBase(base) {
			s.errorf(diag.PrjInvalidValue, sp, "enum %q: base type %s is not integral or floating", e.Name, in.TypeString(base))
			return types.NoTypeID, false
		}
		id := in.RegisterEnum(in.Strings.Intern(e.Name), sp, base)
		s.names[e.Name] = id
		return id, true
	case ExprDelegate:
		return in.Intern(types.MakeDelegate(types.NoTypeID)), true
	case ExprAssocArray:
		key, val := b.VoidPtr, b.VoidPtr
		if e.Key != nil {
			var ok bool
			if key, ok = s.Resolve(e.Key, sp); !ok {
				return types.NoTypeID, false
			}
			if val, ok = s.Resolve(e.Elem, sp); !ok {
				return types.NoTypeID, false
			}
		}
		return in.Intern(types.MakeAssocArray(key, val)), true
	case ExprFn:
		if s.fnType == types.NoTypeID {
			s.fnType = in.RegisterFn(&types.FuncSignature{Result: b.Void})
		}
		return s.fnType, true
	}
	s.errorf(diag.PrjUnknownType, sp, "unsupported type expression %s", e)
	return types.NoTypeID, false
}
