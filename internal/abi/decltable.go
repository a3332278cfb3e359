package abi

import (
	"fmt"

	"fortio.org/safecast"

	"tabi/internal/classify"
	"tabi/internal/trace"
	"tabi/internal/types"
)

// DeclID identifies a declaration inside one DeclTable. Zero is invalid.
type DeclID uint32

const NoDeclID DeclID = 0

// DeclState is the lowering lifecycle of a declaration.
type DeclState uint8

const (
	Unresolved DeclState = iota
	Resolved
	Finalized
)

func (s DeclState) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Finalized:
		return "finalized"
	default:
		return "unresolved"
	}
}

type declEntry struct {
	name   string
	symbol string
	sig    *types.FuncSignature
	state  DeclState
	ft     *FuncType
}

// DeclTable is the per-unit side table of function declarations. It makes
// lowering idempotent: every declaration is rewritten once and the cached
// FuncType is returned afterwards. Not safe for concurrent use.
type DeclTable struct {
	Policy Policy
	Class  *classify.Classifier

	// Tracer receives one ScopeDecl span per Lower. Parent is the span ID
	// of the enclosing unit.
	Tracer trace.Tracer
	Parent uint64

	decls  []declEntry
	byName map[string]DeclID
}

func NewDeclTable(p Policy, c *classify.Classifier) *DeclTable {
	return &DeclTable{
		Policy: p,
		Class:  c,
		Tracer: trace.Nop,
		decls:  make([]declEntry, 1, 16), // slot 0 is NoDeclID
		byName: make(map[string]DeclID, 16),
	}
}

// Declare registers a declaration in the Unresolved state. sig is copied.
// Redeclaring a name is an error.
func (t *DeclTable) Declare(name string, sig *types.FuncSignature) (DeclID, error) {
	if sig == nil {
		return NoDeclID, fmt.Errorf("declare %q: nil signature", name)
	}
	if _, dup := t.byName[name]; dup {
		return NoDeclID, fmt.Errorf("declare %q: already declared", name)
	}
	id, err := safecast.Conv[DeclID](len(t.decls))
	if err != nil {
		return NoDeclID, fmt.Errorf("declare %q: %w", name, err)
	}
	t.decls = append(t.decls, declEntry{name: name, sig: sig.Clone()})
	t.byName[name] = id
	return id, nil
}

// Lookup finds a declaration by name.
func (t *DeclTable) Lookup(name string) (DeclID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Len is the number of declarations.
func (t *DeclTable) Len() int { return len(t.decls) - 1 }

// IDs returns all declaration IDs in declaration order.
func (t *DeclTable) IDs() []DeclID {
	out := make([]DeclID, 0, t.Len())
	for i := 1; i < len(t.decls); i++ {
		out = append(out, DeclID(i)) //nolint:gosec // bounded by Declare
	}
	return out
}

func (t *DeclTable) entry(id DeclID) *declEntry {
	if id == NoDeclID || int(id) >= len(t.decls) {
		internalf("decl table", "unknown declaration #%d", id)
	}
	return &t.decls[id]
}

func (t *DeclTable) Name(id DeclID) string { return t.entry(id).name }

func (t *DeclTable) State(id DeclID) DeclState { return t.entry(id).state }

// Signature returns the declared signature. Callers must not modify it.
func (t *DeclTable) Signature(id DeclID) *types.FuncSignature { return t.entry(id).sig }

// Resolve checks the signature against the policy and computes the symbol
// name. Resolving twice is a no-op.
func (t *DeclTable) Resolve(id DeclID) {
	e := t.entry(id)
	if e.state != Unresolved {
		return
	}
	// panics on linkages no calling convention covers
	t.Policy.CallingConvention(e.sig)
	e.symbol = t.Policy.MangleFunction(e.name, e.sig.Linkage)
	e.state = Resolved
}

// Symbol returns the mangled symbol name, resolving the declaration first.
func (t *DeclTable) Symbol(id DeclID) string {
	t.Resolve(id)
	return t.entry(id).symbol
}

// Lower returns the finalized native signature of id, rewriting it on the
// first call only.
func (t *DeclTable) Lower(id DeclID) *FuncType {
	e := t.entry(id)
	if e.state == Finalized {
		return e.ft
	}
	t.Resolve(id)

	span := trace.Begin(t.Tracer, trace.ScopeDecl, "decl:"+e.name, t.Parent)
	ft := NewFuncType(t.Policy, t.Class, e.sig)
	t.Policy.RewriteFunctionType(ft)
	for _, n := range ft.Notes {
		trace.Point(t.Tracer, trace.ScopeDecl, "abi", n, span.ID())
	}
	span.WithExtra("cc", ft.CallConv.String()).
		WithExtra("ret", ft.RetMode().String()).
		WithExtra("symbol", e.symbol)
	span.End(ft.String())

	e.ft = ft
	e.state = Finalized
	return ft
}
