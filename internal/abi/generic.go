package abi

import (
	"tabi/internal/classify"
	"tabi/internal/target"
	"tabi/internal/types"
)

// genericPolicy is the fallback for architectures without a dedicated
// table: C calling convention, in-memory aggregates through sret, non-POD
// arguments as indirect copies.
type genericPolicy struct {
	cfg  target.Config
	arch Architecture
}

func newGeneric(cfg target.Config) *genericPolicy {
	return &genericPolicy{cfg: cfg, arch: ArchitectureOf(cfg.Arch)}
}

func (p *genericPolicy) Arch() Architecture { return p.arch }

func (p *genericPolicy) Target() target.Config { return p.cfg }

func (p *genericPolicy) CallingConvention(sig *types.FuncSignature) CallConv {
	switch sig.Linkage {
	case types.LinkD, types.LinkDefault, types.LinkWindows, types.LinkC, types.LinkObjC, types.LinkCpp:
		return CallC
	default:
		internalf("calling convention", "unhandled linkage %s", sig.Linkage)
		return CallC
	}
}

func (p *genericPolicy) ReturnInArg(c *classify.Classifier, sig *types.FuncSignature, _ bool) bool {
	if sig.ResultRef {
		return false
	}
	return c.IsInMemoryOnly(c.ExtraLoweredReturnType(sig.Result))
}

func (p *genericPolicy) PassByVal(*classify.Classifier, *types.FuncSignature, types.TypeID) bool {
	return false
}

func (p *genericPolicy) RewriteFunctionType(ft *FuncType) {
	if ft.Finalized {
		return
	}
	c := ft.class
	for _, a := range ft.Args {
		if !a.ByRef() && !c.IsPOD(a.Type, false) {
			applyIndirectByval(c, a)
			ft.note("%s passed as indirect copy", a.Name)
		}
	}
	ft.Finalized = true
}

func (p *genericPolicy) RewriteVarargs(ft *FuncType, args []*Arg) {
	for _, a := range args {
		promoteVararg(ft.class, a)
	}
}

func (p *genericPolicy) ObjCMsgSend(_ types.TypeID, _ *FuncType) string {
	if !p.cfg.IsDarwin() {
		internalf("objc_msgSend", "Objective-C dispatch on non-Darwin target %s", p.cfg.Triple)
	}
	return "objc_msgSend"
}

func (p *genericPolicy) MangleFunction(name string, _ types.Linkage) string {
	return normalizeSymbol(name)
}

func (p *genericPolicy) MangleVariable(name string, _ types.Linkage) string {
	return normalizeSymbol(name)
}
