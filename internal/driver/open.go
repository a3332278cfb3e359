package driver

import (
	"context"
	"fmt"

	"tabi/internal/abi"
	"tabi/internal/project"
	"tabi/internal/source"
	"tabi/internal/trace"
)

// OpenUnit loads the unit at path together with everything it imports and
// returns it populated, ready for type queries and value evaluation. The
// returned Unit carries the load diagnostics of the file in its Bag.
func OpenUnit(ctx context.Context, path string, opts Options) (*Unit, *source.FileSet, error) {
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = 100
	}
	fs := source.NewFileSet()
	r := &run{
		opts:     &opts,
		fs:       fs,
		policies: policySet{byID: make(map[string]abi.Policy, 1)},
	}
	loaded, err := loadUnits(ctx, fs, []string{path}, &opts)
	if err != nil {
		return nil, fs, err
	}
	r.loaded = discoverImports(fs, loaded, &opts)
	lu := &r.loaded[0]
	if lu.Unit == nil {
		if lu.Err == nil {
			lu.Err = fmt.Errorf("%s: cannot load unit", path)
		}
		return nil, fs, lu.Err
	}
	r.buildGraph()

	cfg, err := r.configFor(lu.Unit)
	if err != nil {
		return nil, fs, err
	}
	u := NewUnit(lu.Unit, cfg, r.policies.get(cfg), opts.MaxDiagnostics)
	tr := opts.Tracer
	if tr == nil {
		tr = trace.FromContext(ctx)
	}
	u.Trace(tr, trace.SpanFromContext(ctx))

	var deps []*project.Unit
	if id, ok := r.idx.NameToID[lu.Unit.Meta.Name]; ok {
		for _, d := range r.graph.Closure(id) {
			if dl := r.loadedFor(d); dl != nil {
				deps = append(deps, dl.Unit)
			}
		}
		if r.slots[int(id)].Meta.Path != lu.Unit.Meta.Path {
			return nil, fs, fmt.Errorf("%s: unit name %q is taken by %s", path, lu.Unit.Meta.Name, r.slots[int(id)].Meta.Path)
		}
	}
	u.Bag.Merge(lu.Bag)
	if err := u.Populate(deps); err != nil {
		return u, fs, err
	}
	if u.Bag.HasErrors() {
		return u, fs, fmt.Errorf("%s: unit has errors", path)
	}
	return u, fs, nil
}
