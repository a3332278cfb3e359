package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
)

// FileID identifies a unit description file inside a FileSet.
type FileID uint32

// File holds the content of one unit description together with its line index.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32 // offsets of '\n'
}

// LineCol is a 1-based position.
type LineCol struct {
	Line uint32
	Col  uint32
}

// FileSet keeps every unit file a driver run has loaded so that diagnostics
// can be resolved back to line/column positions.
type FileSet struct {
	files []File
	index map[string]FileID
}

func NewFileSet() *FileSet {
	return &FileSet{index: make(map[string]FileID)}
}

// Add registers content under path and returns its FileID.
func (fs *FileSet) Add(path string, content []byte) FileID {
	n, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("file count overflow: %w", err))
	}
	id := FileID(n)
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	p := filepath.ToSlash(filepath.Clean(path))
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    p,
		Content: content,
		LineIdx: lineIndex(content),
	})
	fs.index[p] = id
	return id
}

// Load reads path from disk and registers it.
func (fs *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return fs.Add(path, content), nil
}

// Get returns the file for id, or nil when id is unknown.
func (fs *FileSet) Get(id FileID) *File {
	if fs == nil || int(id) >= len(fs.files) {
		return nil
	}
	return &fs.files[id]
}

// Lookup finds a previously registered path.
func (fs *FileSet) Lookup(path string) (FileID, bool) {
	id, ok := fs.index[filepath.ToSlash(filepath.Clean(path))]
	return id, ok
}

// Resolve converts a span into start/end positions.
func (fs *FileSet) Resolve(span Span) (start, end LineCol) {
	f := fs.Get(span.File)
	if f == nil {
		return LineCol{Line: 1, Col: 1}, LineCol{Line: 1, Col: 1}
	}
	return toLineCol(f.LineIdx, span.Start), toLineCol(f.LineIdx, span.End)
}

// Find returns the span of the first occurrence of needle in the file.
func (f *File) Find(needle string) (Span, bool) {
	if f == nil || needle == "" {
		return Span{}, false
	}
	i := bytes.Index(f.Content, []byte(needle))
	if i < 0 {
		return Span{}, false
	}
	start, err := safecast.Conv[uint32](i)
	if err != nil {
		return Span{}, false
	}
	end, err := safecast.Conv[uint32](i + len(needle))
	if err != nil {
		return Span{}, false
	}
	return Span{File: f.ID, Start: start, End: end}, true
}

func lineIndex(content []byte) []uint32 {
	out := make([]uint32, 0, 64)
	for i, b := range content {
		if b == '\n' {
			out = append(out, uint32(i)) //nolint:gosec // content size is bounded by Find/Add callers
		}
	}
	return out
}

func toLineCol(lineIdx []uint32, off uint32) LineCol {
	// largest i with lineIdx[i] < off
	lo, hi := 0, len(lineIdx)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		if lineIdx[mid] < off {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if hi < 0 {
		return LineCol{Line: 1, Col: off + 1}
	}
	start := lineIdx[hi] + 1
	return LineCol{Line: uint32(hi + 2), Col: off - start + 1} //nolint:gosec
}
