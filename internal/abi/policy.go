// Package abi decides how resolved function signatures are passed at the
// native level: calling convention, hidden return pointers, by-value and
// indirect arguments, register promotion, and the symbol names handed to
// the IR builder.
//
// A Policy is built once per target and is read-only afterwards; it may be
// shared by units lowered in parallel. Everything per unit (types,
// classifier, rewritten signatures) lives in FuncType and DeclTable.
package abi

import (
	"fmt"

	"tabi/internal/classify"
	"tabi/internal/target"
	"tabi/internal/types"
)

// Architecture tags the policy variant.
type Architecture uint8

const (
	ArchX86 Architecture = iota
	ArchX86_64
	ArchARM
	ArchAArch64
	ArchGeneric
)

func (a Architecture) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchX86_64:
		return "x86_64"
	case ArchARM:
		return "arm"
	case ArchAArch64:
		return "aarch64"
	default:
		return "generic"
	}
}

// ArchitectureOf maps a target architecture onto a policy variant.
func ArchitectureOf(a target.Arch) Architecture {
	switch a {
	case target.ArchX86:
		return ArchX86
	case target.ArchX86_64:
		return ArchX86_64
	case target.ArchARM:
		return ArchARM
	case target.ArchAArch64:
		return ArchAArch64
	default:
		return ArchGeneric
	}
}

// CallConv is a native calling convention.
type CallConv uint8

const (
	CallC CallConv = iota
	CallX86StdCall
	CallX86ThisCall
)

func (cc CallConv) String() string {
	switch cc {
	case CallX86StdCall:
		return "x86_stdcallcc"
	case CallX86ThisCall:
		return "x86_thiscallcc"
	default:
		return "ccc"
	}
}

// ID is the numeric calling convention identifier used by LLVM.
func (cc CallConv) ID() int {
	switch cc {
	case CallX86StdCall:
		return 64
	case CallX86ThisCall:
		return 70
	default:
		return 0
	}
}

// Policy is the per-architecture decision table.
type Policy interface {
	Arch() Architecture
	Target() target.Config

	// CallingConvention picks the native convention of sig.
	CallingConvention(sig *types.FuncSignature) CallConv
	// ReturnInArg reports whether the result goes through a hidden pointer.
	ReturnInArg(c *classify.Classifier, sig *types.FuncSignature, needsThis bool) bool
	// PassByVal reports whether an in-memory argument of type t uses byval.
	PassByVal(c *classify.Classifier, sig *types.FuncSignature, t types.TypeID) bool
	// RewriteFunctionType finalizes ft. It is a no-op on a finalized ft.
	RewriteFunctionType(ft *FuncType)
	// RewriteVarargs rewrites arguments passed through a C variadic slot.
	RewriteVarargs(ft *FuncType, args []*Arg)
	// ObjCMsgSend selects the objc_msgSend variant for a message send.
	ObjCMsgSend(ret types.TypeID, ft *FuncType) string

	MangleFunction(name string, l types.Linkage) string
	MangleVariable(name string, l types.Linkage) string
}

// ForTarget returns the policy for cfg.
func ForTarget(cfg target.Config) Policy {
	switch ArchitectureOf(cfg.Arch) {
	case ArchX86:
		return newX86(cfg)
	default:
		return newGeneric(cfg)
	}
}

// InternalError is raised (as a panic) when the front end handed over
// something no rule covers. It never reaches users as a diagnostic.
type InternalError struct {
	Op     string
	Detail string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal ABI inconsistency in %s: %s", e.Op, e.Detail)
}

func internalf(op, format string, args ...any) {
	panic(&InternalError{Op: op, Detail: fmt.Sprintf(format, args...)})
}
