package dag

import (
	"fmt"
	"slices"
	"strings"

	"tabi/internal/diag"
	"tabi/internal/project"
	"tabi/internal/source"
)

// Graph stores import edges from a unit to the units importing it, so that
// Kahn's algorithm yields dependencies before their importers.
type Graph struct {
	Edges   [][]UnitID // Edges[dep] = []importer
	Deps    [][]UnitID // Deps[importer] = []dep (только присутствующие)
	Indeg   []int      // число присутствующих импортов юнита
	Present []bool     // юнит реально загружен (а не только импортируется)
}

type UnitNode struct {
	Meta     project.UnitMeta
	Reporter diag.Reporter
	Broken   bool
	FirstErr *diag.Diagnostic
}

type UnitSlot struct {
	Meta     project.UnitMeta
	Reporter diag.Reporter
	Present  bool
	Broken   bool
	FirstErr *diag.Diagnostic
}

func BuildGraph(idx UnitIndex, nodes []UnitNode) (Graph, []UnitSlot) {
	nodeCount := len(idx.IDToName)
	g := Graph{
		Edges:   make([][]UnitID, nodeCount),
		Deps:    make([][]UnitID, nodeCount),
		Indeg:   make([]int, nodeCount),
		Present: make([]bool, nodeCount),
	}
	slots := make([]UnitSlot, nodeCount)
	for i, name := range idx.IDToName {
		slots[i].Meta.Name = name
	}

	for _, node := range nodes {
		meta := node.Meta
		if meta.Name == "" {
			continue
		}
		id, ok := idx.NameToID[meta.Name]
		if !ok {
			// не должно происходить, индекс строится на тех же метаданных
			continue
		}
		slot := &slots[int(id)]
		if slot.Present {
			if node.Reporter != nil {
				notes := make([]diag.Note, 0, 1)
				if slot.Meta.Span != (source.Span{}) {
					notes = append(notes, diag.Note{
						Span: slot.Meta.Span,
						Msg:  fmt.Sprintf("previous declaration of %q in %s", slot.Meta.Name, slot.Meta.Path),
					})
				}
				node.Reporter.Report(
					diag.PrjDuplicateDecl,
					diag.SevError,
					meta.Span,
					fmt.Sprintf("duplicate unit %q", meta.Name),
					notes,
				)
			}
			continue
		}
		slot.Meta = meta
		slot.Reporter = node.Reporter
		slot.Present = true
		slot.Broken = node.Broken
		slot.FirstErr = node.FirstErr
		g.Present[int(id)] = true
	}

	for from := range slots {
		slot := &slots[from]
		if !slot.Present || len(slot.Meta.Imports) == 0 {
			continue
		}
		seen := make(map[UnitID]struct{}, len(slot.Meta.Imports))
		for _, dep := range slot.Meta.Imports {
			if dep.Name == "" {
				continue
			}
			toID, ok := idx.NameToID[dep.Name]
			if !ok {
				continue
			}
			if UnitID(from) == toID { //nolint:gosec // from indexes slots
				if slot.Reporter != nil {
					slot.Reporter.Report(
						diag.PrjSelfImport,
						diag.SevError,
						dep.Span,
						fmt.Sprintf("unit %q imports itself", slot.Meta.Name),
						nil,
					)
				}
				continue
			}
			if _, dup := seen[toID]; dup {
				continue
			}
			seen[toID] = struct{}{}

			if !g.Present[int(toID)] {
				if slot.Reporter != nil {
					slot.Reporter.Report(
						diag.PrjMissingUnit,
						diag.SevError,
						dep.Span,
						fmt.Sprintf("unit %q imports missing unit %q", slot.Meta.Name, dep.Name),
						nil,
					)
				}
				continue
			}
			g.Edges[int(toID)] = append(g.Edges[int(toID)], UnitID(from)) //nolint:gosec // from indexes slots
			g.Deps[from] = append(g.Deps[from], toID)
			g.Indeg[from]++
		}
		slices.Sort(g.Deps[from])
	}
	for i := range g.Edges {
		slices.Sort(g.Edges[i])
	}

	return g, slots
}

// Closure returns every unit id depends on, transitively, in dependency
// order (deps of deps first). id itself is not included.
func (g Graph) Closure(id UnitID) []UnitID {
	seen := make(map[UnitID]bool, 8)
	out := make([]UnitID, 0, 8)
	var visit func(UnitID)
	visit = func(u UnitID) {
		for _, d := range g.Deps[int(u)] {
			if seen[d] {
				continue
			}
			seen[d] = true
			visit(d)
			out = append(out, d)
		}
	}
	seen[id] = true
	visit(id)
	return out
}

func ReportCycles(idx UnitIndex, slots []UnitSlot, topo *Topo) {
	if !topo.Cyclic || len(topo.Cycles) == 0 {
		return
	}
	names := make([]string, 0, len(topo.Cycles))
	for _, id := range topo.Cycles {
		names = append(names, idx.IDToName[int(id)])
	}
	summary := strings.Join(names, " -> ")

	for _, id := range topo.Cycles {
		slot := slots[int(id)]
		if !slot.Present || slot.Reporter == nil {
			continue
		}
		msg := fmt.Sprintf("unit %q participates in an import cycle: %s", slot.Meta.Name, summary)
		slot.Reporter.Report(diag.PrjImportCycle, diag.SevError, slot.Meta.Span, msg, nil)
	}
}

func ReportBrokenDeps(idx UnitIndex, slots []UnitSlot) {
	for i := range slots {
		slotFrom := &slots[i]
		if !slotFrom.Present || slotFrom.Reporter == nil || len(slotFrom.Meta.Imports) == 0 {
			continue
		}
		emitted := make(map[string]struct{}, len(slotFrom.Meta.Imports))
		for _, imp := range slotFrom.Meta.Imports {
			toID, ok := idx.NameToID[imp.Name]
			if !ok {
				continue
			}
			depSlot := slots[int(toID)]
			if !depSlot.Broken {
				continue
			}
			key := imp.Name + "|" + imp.Span.String()
			if _, seen := emitted[key]; seen {
				continue
			}
			emitted[key] = struct{}{}

			notes := []diag.Note(nil)
			if depSlot.FirstErr != nil {
				notes = append(notes, diag.Note{
					Span: depSlot.FirstErr.Primary,
					Msg:  fmt.Sprintf("first error in dependency: %s", depSlot.FirstErr.Message),
				})
			}

			msg := fmt.Sprintf("imported unit %q has errors", imp.Name)
			slotFrom.Reporter.Report(diag.PrjDependencyFailed, diag.SevError, imp.Span, msg, notes)
		}
	}
}
