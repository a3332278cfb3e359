package driver

import (
	"tabi/internal/project"
	"tabi/internal/project/dag"
)

// ComputeUnitHashes вычисляет UnitHash в порядке топосортировки: импорты
// раньше импортёров. Для циклического графа ничего не делает (оставляет нули).
func ComputeUnitHashes(g dag.Graph, slots []dag.UnitSlot, topo *dag.Topo) {
	if topo == nil || topo.Cyclic {
		return
	}
	for _, id := range topo.Order {
		slot := &slots[int(id)]
		if !slot.Present {
			continue
		}
		deps := make([]project.Digest, 0, len(g.Deps[int(id)]))
		for _, dep := range g.Deps[int(id)] {
			deps = append(deps, slots[int(dep)].Meta.UnitHash)
		}
		slot.Meta.UnitHash = project.Combine(slot.Meta.ContentHash, deps...)
	}
}
