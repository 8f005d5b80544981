package store

import (
	"path/filepath"
)

// Index maps record IDs to document paths within one directory.
// It is built by a single directory scan and meant to live for the duration
// of one operation; it is not kept in sync with writes made by other callers.
type Index struct {
	dir   string
	order []string
	paths map[string]string
}

// BuildIndex scans dir once and indexes every "<prefix>_<id>.json" file.
func BuildIndex(dir string) (*Index, error) {
	names, err := ListJSON(dir)
	if err != nil {
		return nil, err
	}
	ix := &Index{
		dir:   dir,
		order: make([]string, 0, len(names)),
		paths: make(map[string]string, len(names)),
	}
	for _, name := range names {
		id, ok := IDFromFilename(name)
		if !ok {
			continue
		}
		ix.put(id, filepath.Join(dir, name))
	}
	return ix, nil
}

func (ix *Index) put(id, path string) {
	if _, exists := ix.paths[id]; !exists {
		ix.order = append(ix.order, id)
	}
	ix.paths[id] = path
}

// Dir returns the indexed directory.
func (ix *Index) Dir() string { return ix.dir }

// Path returns the document path for id.
func (ix *Index) Path(id string) (string, bool) {
	p, ok := ix.paths[id]
	return p, ok
}

// Add records a newly written document.
func (ix *Index) Add(id, filename string) string {
	p := filepath.Join(ix.dir, filename)
	ix.put(id, p)
	return p
}

// Forget drops id from the index.
func (ix *Index) Forget(id string) {
	if _, ok := ix.paths[id]; !ok {
		return
	}
	delete(ix.paths, id)
	for i, v := range ix.order {
		if v == id {
			ix.order = append(ix.order[:i], ix.order[i+1:]...)
			break
		}
	}
}

// IDs returns the indexed IDs in directory order.
func (ix *Index) IDs() []string {
	out := make([]string, len(ix.order))
	copy(out, ix.order)
	return out
}

// Len returns the number of indexed records.
func (ix *Index) Len() int { return len(ix.order) }
