package driver

import (
	"fmt"

	"tabi/internal/abi"
	"tabi/internal/classify"
	"tabi/internal/diag"
	"tabi/internal/ir"
	"tabi/internal/layout"
	"tabi/internal/lower"
	"tabi/internal/project"
	"tabi/internal/source"
	"tabi/internal/target"
	"tabi/internal/trace"
	"tabi/internal/types"
)

// Unit is the per-compilation-unit state. Everything mutable lives here, so
// units lowered in parallel share nothing but the Policy and the target.
type Unit struct {
	Desc   *project.Unit
	Target target.Config
	Policy abi.Policy

	Types  *types.Interner
	Layout *layout.LayoutEngine
	Class  *classify.Classifier
	Decls  *abi.DeclTable
	Eval   *ir.Evaluator

	Bag      *diag.Bag
	Reporter diag.Reporter

	// Tracer and Span are set with Trace.
	Tracer trace.Tracer
	Span   uint64

	dedup *diag.DedupReporter
	scope *project.Scope
	spans []source.Span // by DeclID
	vars  []project.VarSig
}

// NewUnit prepares an empty unit for desc. desc may be nil for scratch
// units (the cast and null commands).
func NewUnit(desc *project.Unit, cfg target.Config, p abi.Policy, maxDiagnostics int) *Unit {
	if desc == nil {
		desc = &project.Unit{}
	}
	if p == nil {
		p = abi.ForTarget(cfg)
	}
	in := types.NewInterner()
	le := layout.New(cfg, in)
	c := classify.New(cfg, in, le)
	bag := diag.NewBag(maxDiagnostics)
	rep := diag.NewDedupReporter(diag.NewBagReporter(bag))
	return &Unit{
		Desc:     desc,
		Target:   cfg,
		Policy:   p,
		Types:    in,
		Layout:   le,
		Class:    c,
		Decls:    abi.NewDeclTable(p, c),
		Eval:     ir.NewEvaluator(ir.DataLayoutFor(cfg)),
		Bag:      bag,
		Reporter: rep,
		dedup:    rep,
		scope:    project.NewScope(in, cfg, rep),
		spans:    []source.Span{{}},
	}
}

// Trace routes the unit's events to tr under the span parent: the decl
// spans and ABI decisions of the DeclTable and the value engine events.
func (u *Unit) Trace(tr trace.Tracer, parent uint64) {
	if tr == nil {
		tr = trace.Nop
	}
	u.Tracer, u.Span = tr, parent
	u.Decls.Tracer, u.Decls.Parent = tr, parent
}

// Name is the unit name.
func (u *Unit) Name() string { return u.Desc.Meta.Name }

// Populate registers the types of deps and of the unit, then declares every
// function of the unit. deps must be in dependency order.
func (u *Unit) Populate(deps []*project.Unit) error {
	decls, err := project.Populate(u.scope, u.Desc, deps)
	if decls == nil {
		return err
	}
	for _, f := range decls.Funcs {
		if _, derr := u.Decls.Declare(f.Name, f.Sig); derr != nil {
			diag.ReportError(u.Reporter, diag.PrjDuplicateDecl, f.Span, derr.Error()).Emit()
			err = derr
			continue
		}
		u.spans = append(u.spans, f.Span)
	}
	u.vars = decls.Vars
	return err
}

// ResolveType parses and resolves a type expression in the unit's scope.
func (u *Unit) ResolveType(expr string) (types.TypeID, error) {
	e, err := project.ParseTypeExpr(expr)
	if err != nil {
		return types.NoTypeID, err
	}
	before := u.Bag.Len()
	id, ok := u.scope.Resolve(e, source.NoSpan)
	if !ok {
		if u.Bag.Len() > before {
			return types.NoTypeID, fmt.Errorf("%s", u.Bag.Items()[u.Bag.Len()-1].Message)
		}
		return types.NoTypeID, fmt.Errorf("cannot resolve type %q", expr)
	}
	return id, nil
}

// Lower rewrites one declaration. An internal inconsistency is reported as
// AbiInternal at the declaration and returned; it does not stop the unit.
func (u *Unit) Lower(id abi.DeclID) (ft *abi.FuncType, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ie, ok := r.(*abi.InternalError)
		if !ok {
			panic(r)
		}
		var sp source.Span
		if int(id) < len(u.spans) {
			sp = u.spans[id]
		}
		diag.ReportError(u.Reporter, diag.AbiInternal, sp,
			fmt.Sprintf("%s: %v", u.Decls.Name(id), ie)).Emit()
		trace.Point(u.Tracer, trace.ScopeDecl, "internal error", ie.Error(), u.Span)
		ft, err = nil, ie
	}()
	return u.Decls.Lower(id), nil
}

// Engine returns a value engine over the unit's evaluator.
func (u *Unit) Engine(tr trace.Tracer, parent uint64) *lower.Engine {
	e := lower.New(u.Class, u.Eval, u.Reporter)
	if tr == nil {
		tr = u.Tracer
	}
	if tr != nil {
		e.Tracer = tr
	}
	e.Parent = parent
	return e
}

// LowerAll lowers every declaration and mangles every variable.
func (u *Unit) LowerAll() ([]FuncResult, []VarResult, error) {
	var firstErr error
	funcs := make([]FuncResult, 0, u.Decls.Len())
	for _, id := range u.Decls.IDs() {
		ft, err := u.Lower(id)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		funcs = append(funcs, describeFunc(u.Decls.Name(id), u.Decls.Symbol(id), ft))
	}
	if n := u.dedup.Suppressed(); n > 0 {
		trace.Point(u.Tracer, trace.ScopeUnit, "dedup", fmt.Sprintf("%d duplicate diagnostics dropped", n), u.Span)
	}
	vars := make([]VarResult, 0, len(u.vars))
	for _, v := range u.vars {
		vars = append(vars, VarResult{Name: v.Name, Symbol: u.Policy.MangleVariable(v.Name, v.Linkage)})
	}
	return funcs, vars, firstErr
}
