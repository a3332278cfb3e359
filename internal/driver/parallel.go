package driver

import (
	"context"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"tabi/internal/diag"
	"tabi/internal/project"
	"tabi/internal/source"
)

// loadedUnit is the result of decoding one unit file.
type loadedUnit struct {
	Path   string
	FileID source.FileID
	Unit   *project.Unit // nil when the file could not be read or parsed
	Bag    *diag.Bag
	Err    error
}

// loadUnits reads every file into fs and decodes them in parallel. The
// FileSet is filled up front so the workers only read from it.
func loadUnits(ctx context.Context, fs *source.FileSet, files []string, opts *Options) ([]loadedUnit, error) {
	if len(files) == 0 {
		return nil, nil
	}

	fileIDs := make(map[string]source.FileID, len(files))
	loadErrors := make(map[string]error, len(files))
	for _, path := range files {
		id, err := fs.Load(path)
		if err != nil {
			loadErrors[path] = err
			continue
		}
		fileIDs[path] = id
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// индексы уникальны для каждой горутины, мьютекс не нужен
	results := make([]loadedUnit, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			bag := diag.NewBag(opts.MaxDiagnostics)
			res := loadedUnit{Path: path, Bag: bag}
			if loadErr, failed := loadErrors[path]; failed {
				bag.Add(diag.NewError(diag.IOLoadFileError, source.NoSpan, "failed to load file: "+loadErr.Error()))
				res.Err = loadErr
				results[i] = res
				emit(opts.Sink, Event{File: path, Stage: StageLoad, Status: StatusError, Err: loadErr})
				return nil
			}

			emit(opts.Sink, Event{File: path, Stage: StageLoad, Status: StatusWorking})
			began := time.Now()
			res.FileID = fileIDs[path]
			content := project.DigestOf(fs.Get(res.FileID).Content)
			if u, diags, hit := opts.Units.Get(fs.Get(res.FileID).Path, res.FileID, content); hit {
				for _, d := range diags {
					bag.Add(d)
				}
				res.Unit = u
			} else {
				res.Unit, res.Err = project.Load(fs, res.FileID, diag.NewBagReporter(bag))
				if res.Err == nil {
					opts.Units.Put(res.Unit, bag.Items())
				}
			}
			results[i] = res

			status := StatusDone
			if res.Err != nil || bag.HasErrors() {
				status = StatusError
			}
			emit(opts.Sink, Event{File: path, Stage: StageLoad, Status: status, Err: res.Err, Elapsed: time.Since(began)})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// discoverImports loads imports that were not passed in but live next to
// (or above) their importer as "<name>.toml". Runs until no new file shows up.
func discoverImports(fs *source.FileSet, loaded []loadedUnit, opts *Options) []loadedUnit {
	abs := func(p string) string {
		if a, err := filepath.Abs(p); err == nil {
			return a
		}
		return filepath.Clean(p)
	}
	names := make(map[string]bool, len(loaded))
	paths := make(map[string]bool, len(loaded))
	for _, lu := range loaded {
		paths[abs(lu.Path)] = true
		if lu.Unit != nil {
			names[lu.Unit.Meta.Name] = true
		}
	}
	for i := 0; i < len(loaded); i++ {
		u := loaded[i].Unit
		if u == nil {
			continue
		}
		for _, imp := range u.Meta.Imports {
			if names[imp.Name] {
				continue
			}
			path, ok, err := project.FindUnitByName(filepath.Dir(loaded[i].Path), imp.Name)
			if err != nil || !ok {
				continue
			}
			if paths[abs(path)] {
				continue
			}
			paths[abs(path)] = true

			bag := diag.NewBag(opts.MaxDiagnostics)
			began := time.Now()
			lu := loadedUnit{Path: path, Bag: bag}
			lu.Unit, lu.Err = project.LoadFile(fs, path, diag.NewBagReporter(bag))
			if lu.Unit != nil {
				lu.FileID = lu.Unit.File
				names[lu.Unit.Meta.Name] = true
			}
			status := StatusDone
			if lu.Err != nil || bag.HasErrors() {
				status = StatusError
			}
			emit(opts.Sink, Event{File: path, Stage: StageLoad, Status: status, Err: lu.Err, Elapsed: time.Since(began)})
			loaded = append(loaded, lu)
		}
	}
	return loaded
}
