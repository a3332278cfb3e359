package driver

import (
	"sync"

	"tabi/internal/diag"
	"tabi/internal/project"
	"tabi/internal/source"
)

// minimal per-process cache by unit path + content hash
type cached struct {
	content project.Digest
	file    source.FileID
	unit    *project.Unit
	diags   []diag.Diagnostic
}

// UnitCache keeps decoded unit descriptions between Lower runs of one
// process. Spans inside a Unit refer to the FileSet it was loaded into, so
// an entry only hits when the file got the same FileID again.
type UnitCache struct {
	mu     sync.RWMutex
	byPath map[string]cached // key: canonical slash path
}

// NewUnitCache creates a UnitCache with the given capacity hint.
func NewUnitCache(capHint int) *UnitCache {
	return &UnitCache{byPath: make(map[string]cached, capHint)}
}

// Get returns the decoded unit and its load diagnostics.
func (c *UnitCache) Get(path string, file source.FileID, content project.Digest) (*project.Unit, []diag.Diagnostic, bool) {
	if c == nil {
		return nil, nil, false
	}
	c.mu.RLock()
	rec, ok := c.byPath[path]
	c.mu.RUnlock()
	if !ok || rec.content != content || rec.file != file {
		return nil, nil, false
	}
	return rec.unit, rec.diags, true
}

// Put remembers a successfully decoded unit. The unit must not be modified
// afterwards.
func (c *UnitCache) Put(u *project.Unit, diags []diag.Diagnostic) {
	if c == nil || u == nil {
		return
	}
	c.mu.Lock()
	c.byPath[u.Meta.Path] = cached{
		content: u.Meta.ContentHash,
		file:    u.File,
		unit:    u,
		diags:   append([]diag.Diagnostic(nil), diags...),
	}
	c.mu.Unlock()
}

// Len is the number of cached units.
func (c *UnitCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byPath)
}
