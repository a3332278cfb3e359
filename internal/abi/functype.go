package abi

import (
	"fmt"
	"strings"

	"tabi/internal/classify"
	"tabi/internal/ir"
	"tabi/internal/types"
)

// Attr is one native parameter attribute.
type Attr uint8

const (
	AttrInReg Attr = 1 << iota
	AttrNoAlias
	AttrByVal
	AttrStructRet
	AttrNonNull
	AttrAlignment
)

var attrNames = []struct {
	a    Attr
	name string
}{
	{AttrStructRet, "sret"},
	{AttrByVal, "byval"},
	{AttrInReg, "inreg"},
	{AttrNoAlias, "noalias"},
	{AttrNonNull, "nonnull"},
}

// Attrs is the attribute set of a parameter. Align is meaningful only while
// AttrAlignment is set.
type Attrs struct {
	Set   Attr
	Align int
}

func (a Attrs) Has(x Attr) bool { return a.Set&x != 0 }

func (a *Attrs) Add(x Attr) { a.Set |= x }

func (a *Attrs) AddAlignment(n int) {
	a.Set |= AttrAlignment
	a.Align = n
}

func (a *Attrs) Remove(x Attr) {
	a.Set &^= x
	if x&AttrAlignment != 0 {
		a.Align = 0
	}
}

func (a *Attrs) Clear() { *a = Attrs{} }

func (a Attrs) String() string {
	parts := make([]string, 0, 4)
	for _, n := range attrNames {
		if a.Has(n.a) {
			parts = append(parts, n.name)
		}
	}
	if a.Has(AttrAlignment) {
		parts = append(parts, fmt.Sprintf("align %d", a.Align))
	}
	return strings.Join(parts, " ")
}

// PassMode is how an argument reaches the callee.
type PassMode uint8

const (
	Direct            PassMode = iota
	ByRef                      // pointer to caller storage (ref params, byval)
	ByRefImmutable             // pointer to caller storage the callee must not write
	ByRefIndirectCopy          // pointer to a caller-owned temporary copy
)

func (m PassMode) String() string {
	switch m {
	case ByRef:
		return "byref"
	case ByRefImmutable:
		return "byref-immutable"
	case ByRefIndirectCopy:
		return "indirect-copy"
	default:
		return "direct"
	}
}

// RetMode is how the result comes back.
type RetMode uint8

const (
	DirectValue RetMode = iota
	IntegerRepacked
	HiddenPointer
)

func (m RetMode) String() string {
	switch m {
	case IntegerRepacked:
		return "integer"
	case HiddenPointer:
		return "sret"
	default:
		return "direct"
	}
}

// ArgKind says which slot of the native signature an Arg fills.
type ArgKind uint8

const (
	ArgExplicit ArgKind = iota
	ArgReturn
	ArgSret
	ArgThis
	ArgNest
	ArgVararg
)

// Arg is one native parameter (or the return slot).
type Arg struct {
	Kind    ArgKind
	Name    string
	Type    types.TypeID // source type
	Native  *ir.Type     // native type as passed
	Mode    PassMode
	Attrs   Attrs
	Rewrite Rewrite
}

// ByRef reports arguments passed as a pointer to caller storage.
func (a *Arg) ByRef() bool { return a.Mode == ByRef || a.Mode == ByRefImmutable }

func (a *Arg) IsByVal() bool { return a.Attrs.Has(AttrByVal) }

func (a *Arg) String() string {
	var b strings.Builder
	b.WriteString(a.Native.String())
	if s := a.Attrs.String(); s != "" {
		b.WriteString(" " + s)
	}
	if a.Name != "" {
		b.WriteString(" %" + a.Name)
	}
	return b.String()
}

// FuncType is the native form of one signature. NewFuncType builds the
// initial form; Policy.RewriteFunctionType finalizes it.
type FuncType struct {
	Sig      *types.FuncSignature // private copy
	CallConv CallConv

	Ret  *Arg
	Sret *Arg
	This *Arg
	Nest *Arg
	Args []*Arg

	Finalized bool
	// Notes records the register and rewrite decisions taken, in order.
	Notes []string

	class *classify.Classifier
}

// Classifier returns the classifier ft was built with.
func (ft *FuncType) Classifier() *classify.Classifier { return ft.class }

func (ft *FuncType) note(format string, args ...any) {
	ft.Notes = append(ft.Notes, fmt.Sprintf(format, args...))
}

// RetMode summarises how the result is returned.
func (ft *FuncType) RetMode() RetMode {
	if ft.Sret != nil {
		return HiddenPointer
	}
	if _, ok := ft.Ret.Rewrite.(*IntegerRewrite); ok {
		return IntegerRepacked
	}
	return DirectValue
}

// Params returns the native parameter list in order: sret, this, nest,
// then the explicit parameters.
func (ft *FuncType) Params() []*Arg {
	out := make([]*Arg, 0, len(ft.Args)+3)
	for _, a := range []*Arg{ft.Sret, ft.This, ft.Nest} {
		if a != nil {
			out = append(out, a)
		}
	}
	return append(out, ft.Args...)
}

// String renders the native signature, e.g.
// "x86_stdcallcc i64 (ptr inreg %this, i32 inreg %x)".
func (ft *FuncType) String() string {
	params := ft.Params()
	parts := make([]string, 0, len(params)+1)
	for _, a := range params {
		parts = append(parts, a.String())
	}
	if ft.Sig != nil && ft.Sig.VarArgs == types.VarArgsVariadic {
		parts = append(parts, "...")
	}
	ret := ft.Ret.Native.String()
	if s := ft.Ret.Attrs.String(); s != "" {
		ret += " " + s
	}
	return fmt.Sprintf("%s %s (%s)", ft.CallConv, ret, strings.Join(parts, ", "))
}

// NewFuncType builds the initial native form of sig the way the IR layer
// sees it before the policy rewrites it: hidden result pointer when the
// policy asks for one, implicit this/context pointers, reference and byval
// parameters. sig itself is not modified.
func NewFuncType(p Policy, c *classify.Classifier, sig *types.FuncSignature) *FuncType {
	sig = sig.Clone()
	ft := &FuncType{
		Sig:      sig,
		CallConv: p.CallingConvention(sig),
		class:    c,
	}
	b := c.Types.Builtins()

	if p.ReturnInArg(c, sig, sig.HasThis) {
		ft.Sret = &Arg{Kind: ArgSret, Name: "sret", Type: sig.Result, Native: ir.PtrType(), Mode: ByRef}
		ft.Sret.Attrs.Add(AttrStructRet | AttrNoAlias)
		ft.Ret = &Arg{Kind: ArgReturn, Type: b.Void, Native: ir.VoidType()}
	} else {
		ft.Ret = &Arg{Kind: ArgReturn, Type: sig.Result, Native: c.NativeType(c.ExtraLoweredReturnType(sig.Result))}
		if sig.ResultRef {
			ft.Ret.Mode = ByRef
			ft.Ret.Native = ir.PtrType()
		}
	}

	if sig.HasThis {
		ft.This = &Arg{Kind: ArgThis, Name: "this", Type: b.VoidPtr, Native: ir.PtrType()}
		ft.This.Attrs.Add(AttrNonNull)
	}
	if sig.HasNest {
		ft.Nest = &Arg{Kind: ArgNest, Name: "nest", Type: b.VoidPtr, Native: ir.PtrType()}
	}

	ft.Args = make([]*Arg, 0, len(sig.Params))
	for i, prm := range sig.Params {
		a := newArg(p, c, sig, prm.Type, prm.Storage)
		a.Name = paramName(c, prm, i)
		ft.Args = append(ft.Args, a)
	}
	return ft
}

func newArg(p Policy, c *classify.Classifier, sig *types.FuncSignature, t types.TypeID, st types.Storage) *Arg {
	a := &Arg{Kind: ArgExplicit, Type: t}
	switch {
	case st == types.StorageRef:
		a.Mode, a.Native = ByRef, ir.PtrType()
		a.Attrs.Add(AttrNonNull)
	case st == types.StorageIn:
		a.Mode, a.Native = ByRefImmutable, ir.PtrType()
		a.Attrs.Add(AttrNonNull)
	case p.PassByVal(c, sig, t):
		a.Mode, a.Native = ByRef, ir.PtrType()
		a.Attrs.Add(AttrByVal)
		a.Attrs.AddAlignment(c.Align(t))
	default:
		a.Native = c.NativeType(t)
	}
	return a
}

func paramName(c *classify.Classifier, prm types.Param, i int) string {
	if c.Types.Strings != nil {
		if s, ok := c.Types.Strings.Lookup(prm.Name); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("a%d", i)
}

// LowerVarargs builds the native arguments for values passed through the
// variadic slot of ft and lets the policy rewrite them.
func LowerVarargs(p Policy, ft *FuncType, ts ...types.TypeID) []*Arg {
	args := make([]*Arg, 0, len(ts))
	for i, t := range ts {
		a := newArg(p, ft.class, ft.Sig, t, types.StorageValue)
		a.Kind = ArgVararg
		a.Name = fmt.Sprintf("va%d", i)
		args = append(args, a)
	}
	p.RewriteVarargs(ft, args)
	return args
}
