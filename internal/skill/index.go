package skill

import (
	"fmt"
	"sort"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
)

// Summary is a compact (name, description) pair used in planning prompts.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Index maps skill names to refs. It is read-only after construction and
// safe for concurrent use.
type Index struct {
	byName map[string]*Ref
	order  []string
}

// NewIndex builds an index from refs. If a name repeats, the first ref wins.
func NewIndex(refs []*Ref) *Index {
	idx := &Index{byName: make(map[string]*Ref, len(refs))}
	for _, r := range refs {
		if r == nil {
			continue
		}
		if _, ok := idx.byName[r.Name()]; ok {
			continue
		}
		idx.byName[r.Name()] = r
		idx.order = append(idx.order, r.Name())
	}
	return idx
}

// Len returns the number of skills.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.byName)
}

// Get returns the ref for name, if present.
func (i *Index) Get(name string) (*Ref, bool) {
	if i == nil {
		return nil, false
	}
	r, ok := i.byName[name]
	return r, ok
}

// Require returns the ref for name or an error wrapping ErrNotFound.
func (i *Index) Require(name string) (*Ref, error) {
	r, ok := i.Get(name)
	if !ok {
		return nil, fmt.Errorf("skill not found: %s: %w", name, perrors.ErrNotFound)
	}
	return r, nil
}

// LoadBody re-reads the instructions of the named skill.
func (i *Index) LoadBody(name string) (string, error) {
	r, err := i.Require(name)
	if err != nil {
		return "", err
	}
	return LoadBody(r.Path)
}

// Skills returns refs in discovery order.
func (i *Index) Skills() []*Ref {
	if i == nil {
		return nil
	}
	out := make([]*Ref, 0, len(i.order))
	for _, n := range i.order {
		out = append(out, i.byName[n])
	}
	return out
}

// Names returns skill names sorted lexicographically.
func (i *Index) Names() []string {
	if i == nil {
		return nil
	}
	names := append([]string(nil), i.order...)
	sort.Strings(names)
	return names
}

// Compact returns name-sorted (name, description) pairs.
func (i *Index) Compact() []Summary {
	names := i.Names()
	out := make([]Summary, 0, len(names))
	for _, n := range names {
		out = append(out, Summary{Name: n, Description: i.byName[n].Description()})
	}
	return out
}
