package dag

import (
	"sort"

	"tabi/internal/project"
)

type UnitID uint32

type UnitIndex struct {
	NameToID map[string]UnitID
	IDToName []string
}

// собрать уникальные имена, sort.Strings, раздать ID по порядку
func BuildIndex(metas []project.UnitMeta) UnitIndex {
	uniq := make(map[string]struct{}, len(metas))
	for _, meta := range metas {
		if meta.Name != "" {
			uniq[meta.Name] = struct{}{}
		}
		for _, dep := range meta.Imports {
			if dep.Name == "" {
				continue
			}
			uniq[dep.Name] = struct{}{}
		}
	}

	names := make([]string, 0, len(uniq))
	for name := range uniq {
		names = append(names, name)
	}
	sort.Strings(names)

	nameToID := make(map[string]UnitID, len(names))
	for i, name := range names {
		nameToID[name] = UnitID(i) //nolint:gosec // bounded by the number of unit files
	}

	return UnitIndex{
		NameToID: nameToID,
		IDToName: names,
	}
}
