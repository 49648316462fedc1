package export

import (
	"fmt"
	"strings"
	"sync"
)

// BackendKind says whether a format is a plain tabular dump (Native) or
// needs a format-specific encoder (CustomRequired). Only CustomRequired
// formats may be left without a backend.
type BackendKind int

const (
	Native BackendKind = iota
	CustomRequired
)

func (k BackendKind) String() string {
	switch k {
	case Native:
		return "native"
	case CustomRequired:
		return "custom"
	default:
		return "unknown"
	}
}

// ExcelRowLimit is the worksheet row capacity minus the header row and one
// row of headroom.
const ExcelRowLimit = 1048576 - 2

// Descriptor describes one output format.
type Descriptor struct {
	Key       string
	Extension string
	Kind      BackendKind
	// RowLimit is the largest row count the format accepts; 0 means no limit.
	RowLimit int
	Aliases  []string
}

// Registry is an ordered, case-insensitive table of descriptors. It is
// read-only once built.
type Registry struct {
	ordered []Descriptor
	index   map[string]int
}

// NewRegistry builds a registry. Keys and aliases must be unique across
// the whole table.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		ordered: make([]Descriptor, 0, len(descs)),
		index:   make(map[string]int, len(descs)),
	}
	for _, d := range descs {
		if d.Key == "" || d.Extension == "" {
			return nil, fmt.Errorf("descriptor %+v needs a key and an extension", d)
		}
		d.Key = strings.ToLower(d.Key)
		pos := len(r.ordered)
		for _, name := range append([]string{d.Key}, d.Aliases...) {
			name = strings.ToLower(name)
			if _, dup := r.index[name]; dup {
				return nil, fmt.Errorf("format name '%s' registered twice", name)
			}
			r.index[name] = pos
		}
		r.ordered = append(r.ordered, d)
	}
	return r, nil
}

// DefaultDescriptors lists every format the tool knows, in display order.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{Key: "txt", Extension: "txt", Kind: CustomRequired, Aliases: []string{"text"}},
		{Key: "out", Extension: "out", Kind: CustomRequired},
		{Key: "dat", Extension: "dat", Kind: CustomRequired},
		{Key: "xlsx", Extension: "xlsx", Kind: Native, RowLimit: ExcelRowLimit, Aliases: []string{"excel"}},
		{Key: "csv", Extension: "csv", Kind: Native},
		{Key: "json", Extension: "json", Kind: Native},
		{Key: "xml", Extension: "xml", Kind: Native},
		{Key: "markdown", Extension: "md", Kind: Native, Aliases: []string{"md"}},
		{Key: "latex", Extension: "tex", Kind: Native, Aliases: []string{"tex"}},
		{Key: "parquet", Extension: "parquet", Kind: Native},
		{Key: "pickle", Extension: "pickle", Kind: Native, Aliases: []string{"pkl"}},
		{Key: "sql", Extension: "db", Kind: Native, Aliases: []string{"sqlite"}},
		{Key: "matlab", Extension: "mat", Kind: CustomRequired, Aliases: []string{"mat"}},
		{Key: "wav", Extension: "wav", Kind: CustomRequired},
		{Key: "edf", Extension: "edf", Kind: CustomRequired},
		{Key: "feather", Extension: "fea", Kind: Native, Aliases: []string{"arrow"}},
		{Key: "stata", Extension: "dta", Kind: Native},
		{Key: "html", Extension: "html", Kind: Native},
		// hdf5 has no pure-Go writer; see the not-implemented path.
		{Key: "hdf5", Extension: "h5", Kind: CustomRequired},
		{Key: "yaml", Extension: "yaml", Kind: Native, Aliases: []string{"yml"}},
	}
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(DefaultDescriptors()...)
	if err != nil {
		panic(fmt.Sprintf("default export registry: %v", err))
	}
	return r
})

// DefaultRegistry returns the process-wide registry, built on first use.
func DefaultRegistry() *Registry { return defaultRegistry() }

// Lookup resolves a key or alias, ignoring case.
func (r *Registry) Lookup(key string) (Descriptor, error) {
	pos, ok := r.index[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Descriptor{}, &UnsupportedFormatError{Key: key}
	}
	return r.ordered[pos], nil
}

// All returns the descriptors in registration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Keys returns the canonical keys in registration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.ordered))
	for i, d := range r.ordered {
		keys[i] = d.Key
	}
	return keys
}

// Extensions returns the file extensions in registration order.
func (r *Registry) Extensions() []string {
	exts := make([]string, len(r.ordered))
	for i, d := range r.ordered {
		exts[i] = d.Extension
	}
	return exts
}
