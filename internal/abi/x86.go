package abi

import (
	"slices"

	"tabi/internal/classify"
	"tabi/internal/target"
	"tabi/internal/types"
)

// x86Policy implements the 32-bit x86 conventions: cdecl/stdcall/thiscall,
// MSVC++ return rules, EAX promotion for the native linkage and Darwin
// empty struct elision.
type x86Policy struct {
	cfg                 target.Config
	isDarwin            bool
	isMSVC              bool
	returnStructsInRegs bool
}

func newX86(cfg target.Config) *x86Policy {
	return &x86Policy{
		cfg:                 cfg,
		isDarwin:            cfg.IsDarwin(),
		isMSVC:              cfg.IsMSVC(),
		returnStructsInRegs: cfg.ReturnStructsInRegisters,
	}
}

func (p *x86Policy) Arch() Architecture { return ArchX86 }

func (p *x86Policy) Target() target.Config { return p.cfg }

func (p *x86Policy) isMSVCpp(sig *types.FuncSignature) bool {
	return p.isMSVC && sig.Linkage == types.LinkCpp
}

func (p *x86Policy) CallingConvention(sig *types.FuncSignature) CallConv {
	if sig.VarArgs == types.VarArgsVariadic {
		return CallC
	}
	switch sig.Linkage {
	case types.LinkC, types.LinkObjC:
		return CallC
	case types.LinkCpp:
		if p.isMSVC && sig.HasThis {
			return CallX86ThisCall
		}
		return CallC
	case types.LinkD, types.LinkDefault, types.LinkWindows:
		return CallX86StdCall
	default:
		internalf("calling convention", "unhandled linkage %s", sig.Linkage)
		return CallC
	}
}

func (p *x86Policy) ReturnInArg(c *classify.Classifier, sig *types.FuncSignature, needsThis bool) bool {
	if sig.ResultRef {
		return false
	}

	rt := c.ExtraLoweredReturnType(sig.Result)
	externD := sig.IsNative()

	// non-aggregates are returned directly
	if !c.IsAggregate(rt) {
		return false
	}

	if c.IsComplex(rt) {
		// native linkage returns the pair directly; elsewhere cfloat travels
		// as a 64-bit integer and wider complex types use sret
		if externD {
			return false
		}
		return c.Types.MustLookup(rt).Width != types.Width32
	}

	if !externD && !p.returnStructsInRegs {
		return true
	}

	isMSVCpp := p.isMSVCpp(sig)

	// MSVC++ member functions always return structs through sret
	if isMSVCpp && needsThis && c.Types.BaseKind(rt) == types.KindStruct {
		return true
	}

	if !c.IsPOD(rt, isMSVCpp) {
		return true
	}

	return !c.CanRewriteAsInt(rt)
}

func (p *x86Policy) PassByVal(c *classify.Classifier, sig *types.FuncSignature, t types.TypeID) bool {
	// non-POD arguments are passed indirectly (except for MSVC++)
	if !p.isMSVCpp(sig) && !c.IsPOD(t, false) {
		return false
	}
	return c.IsInMemoryOnly(t)
}

func (p *x86Policy) RewriteFunctionType(ft *FuncType) {
	if ft.Finalized {
		return
	}
	defer func() { ft.Finalized = true }()

	c := ft.class
	externD := ft.Sig.IsNative()

	if !skipReturnValueRewrite(c, ft) {
		rt := c.ExtraLoweredReturnType(ft.Sig.Result)
		cfloat := c.IsComplex(rt) && c.Types.MustLookup(rt).Width == types.Width32
		if c.IsAggregate(rt) && c.CanRewriteAsInt(rt) && !(externD && cfloat) {
			applyIntegerRewriteIfNotObsolete(c, ft.Ret, rt)
			if ft.Ret.Rewrite != nil {
				ft.note("return repacked as %s", ft.Ret.Native)
			}
		}
	}

	if !p.isMSVCpp(ft.Sig) {
		for _, a := range ft.Args {
			if !a.ByRef() && !c.IsPOD(a.Type, false) {
				applyIndirectByval(c, a)
				ft.note("%s passed as indirect copy", a.Name)
			}
		}
	}

	if externD {
		p.promoteToRegister(c, ft)
	}

	p.workaroundByvalAlignment(ft.Args)

	// Clang drops empty structs while GCC passes them; assume Clang on Darwin.
	if externD || !p.isDarwin {
		return
	}
	ft.Args = slices.DeleteFunc(ft.Args, func(a *Arg) bool {
		if c.Types.BaseKind(a.Type) != types.KindStruct || c.HasFields(a.Type) {
			return false
		}
		ft.note("empty struct %s elided", a.Name)
		return true
	})
}

// promoteToRegister passes one argument in EAX: this, the context pointer,
// the sret pointer, or else the last explicit argument when it fits.
func (p *x86Policy) promoteToRegister(c *classify.Classifier, ft *FuncType) {
	switch {
	case ft.This != nil:
		ft.This.Attrs.Add(AttrInReg)
		ft.note("putting 'this' in register")
	case ft.Nest != nil:
		ft.Nest.Attrs.Add(AttrInReg)
		ft.note("putting context ptr in register")
	case ft.Sret != nil:
		// sret and inreg are incompatible, but EAX is where the ABI wants it
		ft.Sret.Attrs.Remove(AttrStructRet)
		ft.Sret.Attrs.Add(AttrInReg)
		ft.note("putting sret ptr in register")
	case len(ft.Args) > 0:
		last := ft.Args[len(ft.Args)-1]
		if _, indirect := last.Rewrite.(*IndirectByvalRewrite); indirect || (last.ByRef() && !last.IsByVal()) {
			last.Attrs.Add(AttrInReg)
			ft.note("putting last (byref) parameter in register")
			return
		}
		lt := c.Types.Base(last.Type)
		sz := c.Size(lt)
		if c.IsFloating(lt) || (sz != 1 && sz != 2 && sz != 4) {
			return
		}
		if c.IsInMemoryOnly(lt) {
			// inreg needs an integer; drop the byval form
			applyIntegerRewrite(c, last, lt)
			last.Mode = Direct
			last.Attrs.Clear()
		}
		last.Attrs.Add(AttrInReg)
		ft.note("putting last parameter %s in register", last.Name)
	}
}

// workaroundByvalAlignment strips alignment from byval arguments on MSVC,
// whose object format cannot express it.
func (p *x86Policy) workaroundByvalAlignment(args []*Arg) {
	if !p.isMSVC {
		return
	}
	for _, a := range args {
		if a.IsByVal() {
			a.Attrs.Remove(AttrAlignment)
		}
	}
}

func (p *x86Policy) RewriteVarargs(ft *FuncType, args []*Arg) {
	for _, a := range args {
		if !a.ByRef() {
			promoteVararg(ft.class, a)
		}
	}
	p.workaroundByvalAlignment(args)
}

func (p *x86Policy) ObjCMsgSend(ret types.TypeID, ft *FuncType) string {
	if !p.isDarwin {
		internalf("objc_msgSend", "Objective-C dispatch on non-Darwin target %s", p.cfg.Triple)
	}
	if ft.Sret != nil {
		return "objc_msgSend_stret"
	}
	c := ft.class
	if ret != types.NoTypeID && c.IsReal(ret) {
		return "objc_msgSend_fpret"
	}
	return "objc_msgSend"
}

func (p *x86Policy) MangleFunction(name string, l types.Linkage) string {
	return mangleFunction(p.cfg, name, l)
}

func (p *x86Policy) MangleVariable(name string, l types.Linkage) string {
	return mangleVariable(p.cfg, name, l)
}

// skipReturnValueRewrite reports results that are never repacked: already
// rewritten, void/noreturn, or returned by reference.
func skipReturnValueRewrite(c *classify.Classifier, ft *FuncType) bool {
	if ft.Ret.Rewrite != nil || ft.Ret.ByRef() {
		return true
	}
	k := c.Types.BaseKind(ft.Ret.Type)
	return k == types.KindVoid || k == types.KindNoreturn
}
