package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tabi/internal/abi"
	"tabi/internal/diag"
	"tabi/internal/observ"
	"tabi/internal/project"
	"tabi/internal/project/dag"
	"tabi/internal/source"
	"tabi/internal/target"
	"tabi/internal/trace"
)

// DefaultTriple is used for units that name no target.
const DefaultTriple = "i686-pc-linux-gnu"

// Options configures a Lower run.
type Options struct {
	// Target overrides the triple of every unit when non-empty.
	Target         string
	Jobs           int
	MaxDiagnostics int

	Cache    *DiskCache
	Units    *UnitCache
	Sink     ProgressSink
	Tracer   trace.Tracer
	Observer PhaseObserver

	// Timings attaches an ObsTimings diagnostic to Result.Bag.
	Timings bool
}

// Result is the outcome of a Lower run. Units are in dependency order;
// units that could not be ordered (cycles, unreadable files) come last.
type Result struct {
	FileSet *source.FileSet
	Units   []*UnitResult
	Bag     *diag.Bag
	Timer   *observ.Timer
}

// HasErrors reports whether any unit is broken.
func (r *Result) HasErrors() bool {
	for _, u := range r.Units {
		if u.Broken {
			return true
		}
	}
	return r.Bag != nil && r.Bag.HasErrors()
}

// Cached counts units served from the disk cache.
func (r *Result) Cached() int {
	n := 0
	for _, u := range r.Units {
		if u.Cached {
			n++
		}
	}
	return n
}

type policySet struct {
	mu   sync.Mutex
	byID map[string]abi.Policy
}

func (p *policySet) get(cfg target.Config) abi.Policy {
	key := fmt.Sprintf("%s/%d", cfg.Triple, cfg.TLSModel)
	p.mu.Lock()
	defer p.mu.Unlock()
	if pol, ok := p.byID[key]; ok {
		return pol
	}
	pol := abi.ForTarget(cfg)
	p.byID[key] = pol
	return pol
}

type run struct {
	opts     *Options
	fs       *source.FileSet
	loaded   []loadedUnit
	byPath   map[string]int
	idx      dag.UnitIndex
	graph    dag.Graph
	slots    []dag.UnitSlot
	results  []*UnitResult // by UnitID
	policies policySet
	span     uint64
}

// Lower loads the unit files found under paths, orders them by their
// imports and lowers every declaration. Independent units of one batch are
// lowered in parallel. Diagnostics never make Lower fail; the error is
// reserved for I/O on the inputs and cancellation.
func Lower(ctx context.Context, paths []string, opts Options) (*Result, error) {
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = 100
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.FromContext(ctx)
	} else if trace.FromContext(ctx) != opts.Tracer {
		ctx = trace.WithTracer(ctx, opts.Tracer)
	}

	timer := observ.NewTimer()
	res := &Result{
		FileSet: source.NewFileSet(),
		Bag:     diag.NewBag(opts.MaxDiagnostics),
		Timer:   timer,
	}
	root, ctx := trace.StartSpan(ctx, trace.ScopeDriver, "lower")
	defer func() { root.End(fmt.Sprintf("%d units", len(res.Units))) }()

	r := &run{
		opts:     &opts,
		fs:       res.FileSet,
		policies: policySet{byID: make(map[string]abi.Policy, 2)},
		span:     root.ID(),
	}

	end := r.phase(timer, "load")
	files, err := project.FindUnitFiles(paths)
	if err != nil {
		end(err.Error())
		return res, err
	}
	r.loaded, err = loadUnits(ctx, r.fs, files, &opts)
	if err != nil {
		end(err.Error())
		return res, err
	}
	r.loaded = discoverImports(r.fs, r.loaded, &opts)
	end(fmt.Sprintf("%d files", len(r.loaded)))

	end = r.phase(timer, "graph")
	topo := r.buildGraph()
	end(fmt.Sprintf("%d batches", len(topo.Batches)))

	end = r.phase(timer, "lower")
	err = r.lowerBatches(ctx, topo)
	end("")
	if err != nil {
		return res, err
	}

	r.finish(topo, res)
	if opts.Timings {
		appendTimingDiagnostic(res.Bag, timingPayloadFor(timer, len(res.Units), res.Cached()))
	}
	return res, nil
}

func (r *run) phase(t *observ.Timer, name string) func(string) {
	obs := r.opts.Observer
	if obs != nil {
		obs(PhaseEvent{Name: name, Status: PhaseStart})
	}
	began := time.Now()
	idx := t.Begin(name)
	return func(note string) {
		t.End(idx, note)
		if obs != nil {
			obs(PhaseEvent{Name: name, Status: PhaseEnd, Elapsed: time.Since(began)})
		}
	}
}

func firstError(bag *diag.Bag) *diag.Diagnostic {
	for _, d := range bag.Items() {
		if d.Severity >= diag.SevError {
			return &d
		}
	}
	return nil
}

// buildGraph indexes the decoded units and reports graph problems into the
// bag of the unit that caused them.
func (r *run) buildGraph() *dag.Topo {
	metas := make([]project.UnitMeta, 0, len(r.loaded))
	nodes := make([]dag.UnitNode, 0, len(r.loaded))
	r.byPath = make(map[string]int, len(r.loaded))
	for i := range r.loaded {
		lu := &r.loaded[i]
		if lu.Unit == nil {
			continue
		}
		r.byPath[lu.Unit.Meta.Path] = i
		metas = append(metas, lu.Unit.Meta)
		nodes = append(nodes, dag.UnitNode{
			Meta:     lu.Unit.Meta,
			Reporter: diag.NewBagReporter(lu.Bag),
			Broken:   lu.Bag.HasErrors(),
			FirstErr: firstError(lu.Bag),
		})
	}

	r.idx = dag.BuildIndex(metas)
	r.graph, r.slots = dag.BuildGraph(r.idx, nodes)
	r.results = make([]*UnitResult, len(r.slots))

	topo := dag.ToposortKahn(r.graph)
	dag.ReportCycles(r.idx, r.slots, topo)
	for _, id := range topo.Cycles {
		slot := &r.slots[int(id)]
		slot.Broken = true
		if lu := r.loadedFor(id); lu != nil && slot.FirstErr == nil {
			slot.FirstErr = firstError(lu.Bag)
		}
	}
	ComputeUnitHashes(r.graph, r.slots, topo)
	return topo
}

func (r *run) loadedFor(id dag.UnitID) *loadedUnit {
	slot := &r.slots[int(id)]
	if !slot.Present {
		return nil
	}
	i, ok := r.byPath[slot.Meta.Path]
	if !ok {
		return nil
	}
	return &r.loaded[i]
}

func (r *run) lowerBatches(ctx context.Context, topo *dag.Topo) error {
	for _, batch := range topo.Batches {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(r.opts.Jobs, len(batch)))
		for _, id := range batch {
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				r.results[int(id)] = r.lowerOne(id)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		// слоты пишутся только между батчами
		for _, id := range batch {
			ur := r.results[int(id)]
			if ur != nil && ur.Broken {
				slot := &r.slots[int(id)]
				slot.Broken = true
				if slot.FirstErr == nil && ur.Bag != nil {
					slot.FirstErr = firstError(ur.Bag)
				}
			}
		}
	}
	return nil
}

func (r *run) configFor(u *project.Unit) (target.Config, error) {
	triple := r.opts.Target
	if triple == "" {
		triple = u.Triple
	}
	if triple == "" {
		triple = DefaultTriple
	}
	var opts []target.Option
	if u.TLS != "" {
		m, err := target.ParseTLSModel(u.TLS)
		if err != nil {
			return target.Config{}, err
		}
		opts = append(opts, target.WithTLSModel(m))
	}
	return target.Parse(triple, opts...)
}

func (r *run) depsBroken(id dag.UnitID) bool {
	for _, d := range r.graph.Deps[int(id)] {
		if r.slots[int(d)].Broken {
			return true
		}
	}
	return false
}

// lowerOne runs on a worker. It reads only slots of earlier batches.
func (r *run) lowerOne(id dag.UnitID) *UnitResult {
	slot := r.slots[int(id)]
	lu := r.loadedFor(id)
	if lu == nil {
		return nil
	}
	desc := lu.Unit
	out := &UnitResult{
		Name: desc.Meta.Name,
		Path: desc.Meta.Path,
		Hash: slot.Meta.UnitHash,
		Bag:  lu.Bag,
	}

	sp := trace.Begin(r.opts.Tracer, trace.ScopeUnit, desc.Meta.Name, r.span)
	defer func() { sp.End(fmt.Sprintf("broken=%t cached=%t", out.Broken, out.Cached)) }()

	if slot.Broken || r.depsBroken(id) {
		out.Broken = true
		emit(r.opts.Sink, Event{File: lu.Path, Stage: StageResolve, Status: StatusError})
		return out
	}

	cfg, err := r.configFor(desc)
	if err != nil {
		diag.ReportError(diag.NewBagReporter(lu.Bag), diag.PrjBadTarget, desc.TripleSpan, err.Error()).Emit()
		out.Broken, out.Err = true, err
		sp.Fail(err)
		emit(r.opts.Sink, Event{File: lu.Path, Stage: StageResolve, Status: StatusError, Err: err})
		return out
	}
	out.Target = cfg.Triple

	// при цикле хэши не считаются, кэш не используется
	useCache := r.opts.Cache != nil && !slot.Meta.UnitHash.IsZero()
	key := CacheKey(slot.Meta.UnitHash, cfg.Triple)
	if useCache {
		began := time.Now()
		var payload DiskPayload
		hit, cerr := r.opts.Cache.Get(key, &payload)
		if cerr == nil && hit && payload.Name == out.Name {
			out.Funcs, out.Vars, out.Cached = payload.Funcs, payload.Vars, true
			sp.WithExtra("cache", "hit")
			emit(r.opts.Sink, Event{File: lu.Path, Stage: StageCache, Status: StatusDone, Elapsed: time.Since(began)})
			return out
		}
	}

	emit(r.opts.Sink, Event{File: lu.Path, Stage: StageResolve, Status: StatusWorking})
	began := time.Now()
	unit := NewUnit(desc, cfg, r.policies.get(cfg), r.opts.MaxDiagnostics)
	unit.Trace(r.opts.Tracer, sp.ID())

	closure := r.graph.Closure(id)
	deps := make([]*project.Unit, 0, len(closure))
	for _, d := range closure {
		if dl := r.loadedFor(d); dl != nil {
			deps = append(deps, dl.Unit)
		}
	}
	perr := unit.Populate(deps)

	emit(r.opts.Sink, Event{File: lu.Path, Stage: StageLower, Status: StatusWorking})
	out.Funcs, out.Vars, err = unit.LowerAll()
	out.Err = errors.Join(perr, err)
	sp.Fail(out.Err)

	lu.Bag.Merge(unit.Bag)
	out.Broken = out.Err != nil || lu.Bag.HasErrors()

	status := StatusDone
	if out.Broken {
		status = StatusError
	}
	emit(r.opts.Sink, Event{File: lu.Path, Stage: StageLower, Status: status, Err: out.Err, Elapsed: time.Since(began)})

	if useCache && !out.Broken {
		if cerr := r.opts.Cache.Put(key, resultToPayload(out)); cerr != nil {
			sp.WithExtra("cache", "put failed: "+cerr.Error())
		}
	}
	return out
}

// finish reports failed dependencies and collects results in order.
func (r *run) finish(topo *dag.Topo, res *Result) {
	dag.ReportBrokenDeps(r.idx, r.slots)

	seen := make(map[int]bool, len(r.loaded))
	add := func(ur *UnitResult, li int) {
		if ur == nil {
			return
		}
		seen[li] = true
		res.Units = append(res.Units, ur)
	}
	for _, id := range topo.Order {
		if ur := r.results[int(id)]; ur != nil {
			add(ur, r.byPath[ur.Path])
		}
	}
	for _, id := range topo.Cycles {
		lu := r.loadedFor(id)
		if lu == nil {
			continue
		}
		add(&UnitResult{
			Name:   lu.Unit.Meta.Name,
			Path:   lu.Path,
			Bag:    lu.Bag,
			Broken: true,
		}, r.byPath[lu.Unit.Meta.Path])
	}
	// нечитаемые файлы и дубликаты имён
	for i := range r.loaded {
		if seen[i] {
			continue
		}
		lu := &r.loaded[i]
		ur := &UnitResult{Path: lu.Path, Bag: lu.Bag, Broken: true, Err: lu.Err}
		if lu.Unit != nil {
			ur.Name = lu.Unit.Meta.Name
		}
		res.Units = append(res.Units, ur)
	}
	for _, ur := range res.Units {
		ur.Bag.Sort()
	}
}
