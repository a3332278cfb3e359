package testkit

import (
	"fmt"

	"tabi/internal/abi"
	"tabi/internal/ir"
)

// CheckFuncTypeInvariants runs the structural invariants every finalized
// native signature must satisfy:
// 1) the rewrite has run (Finalized)
// 2) at most one parameter is promoted to a register
// 3) sret and inreg never sit on the same parameter
// 4) a hidden result pointer implies a void native result
// 5) rewritten arguments carry the native type their rewrite produces
// 6) byval parameters are pointers passed by reference
func CheckFuncTypeInvariants(ft *abi.FuncType) error {
	if ft == nil {
		return fmt.Errorf("nil function type")
	}
	if !ft.Finalized {
		return fmt.Errorf("function type not finalized")
	}

	inreg := 0
	for _, a := range ft.Params() {
		if a.Attrs.Has(abi.AttrInReg) {
			inreg++
			if a.Attrs.Has(abi.AttrStructRet) {
				return fmt.Errorf("%s: sret and inreg together", a.Name)
			}
		}
		if err := checkArg(ft, a); err != nil {
			return err
		}
	}
	if inreg > 1 {
		return fmt.Errorf("%d parameters in registers, want at most one", inreg)
	}

	if ft.Sret != nil {
		if ft.Ret.Native.Kind != ir.Void {
			return fmt.Errorf("hidden result pointer with native result %s", ft.Ret.Native)
		}
		if ft.Sret.Native.Kind != ir.Ptr {
			return fmt.Errorf("sret parameter is %s, want ptr", ft.Sret.Native)
		}
	}
	if ft.Ret.Rewrite != nil {
		return checkRewrite(ft, ft.Ret)
	}
	return nil
}

func checkArg(ft *abi.FuncType, a *abi.Arg) error {
	if a.Native == nil {
		return fmt.Errorf("%s: no native type", a.Name)
	}
	if a.IsByVal() {
		if a.Mode != abi.ByRef || a.Native.Kind != ir.Ptr {
			return fmt.Errorf("%s: byval on %s %s", a.Name, a.Mode, a.Native)
		}
	}
	if a.Mode == abi.ByRefIndirectCopy {
		if _, ok := a.Rewrite.(*abi.IndirectByvalRewrite); !ok {
			return fmt.Errorf("%s: indirect copy without its rewrite", a.Name)
		}
	}
	if a.Rewrite != nil {
		return checkRewrite(ft, a)
	}
	return nil
}

func checkRewrite(ft *abi.FuncType, a *abi.Arg) error {
	switch r := a.Rewrite.(type) {
	case *abi.IntegerRewrite:
		t := a.Type
		if a.Kind == abi.ArgReturn {
			t = ft.Classifier().ExtraLoweredReturnType(t)
		}
		size := ft.Classifier().Size(t)
		if r.Bits != 8*size || a.Native.Kind != ir.Int || a.Native.Bits != r.Bits {
			return fmt.Errorf("%s: %s rewrite of a %d byte value as %s", a.Name, r.Name(), size, a.Native)
		}
	case *abi.IndirectByvalRewrite:
		if a.Native.Kind != ir.Ptr || !a.Attrs.Has(abi.AttrNoAlias) {
			return fmt.Errorf("%s: indirect copy passed as %s %s", a.Name, a.Native, a.Attrs)
		}
	case *abi.PromoteRewrite:
		if !a.Native.Equal(r.To) {
			return fmt.Errorf("%s: promoted to %s but passed as %s", a.Name, r.To, a.Native)
		}
	}
	return nil
}
