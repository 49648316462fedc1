package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_Order(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []string{
		"txt", "out", "dat", "xlsx", "csv", "json", "xml", "markdown", "latex", "parquet",
		"pickle", "sql", "matlab", "wav", "edf", "feather", "stata", "html", "hdf5", "yaml",
	}, reg.Keys())
	assert.Len(t, reg.Extensions(), len(reg.Keys()))
	assert.Same(t, reg, DefaultRegistry())
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name string
		key  string
		want string
		ext  string
	}{
		{"canonical", "csv", "csv", "csv"},
		{"upper case", "CSV", "csv", "csv"},
		{"padded", "  json ", "json", "json"},
		{"alias excel", "excel", "xlsx", "xlsx"},
		{"alias md", "md", "markdown", "md"},
		{"alias tex", "TeX", "latex", "tex"},
		{"alias sqlite", "sqlite", "sql", "db"},
		{"alias yml", "yml", "yaml", "yaml"},
		{"alias arrow", "arrow", "feather", "fea"},
		{"alias pkl", "PKL", "pickle", "pickle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := reg.Lookup(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Key)
			assert.Equal(t, tt.ext, d.Extension)
		})
	}
}

func TestRegistryLookup_Unknown(t *testing.T) {
	_, err := DefaultRegistry().Lookup("docx")
	var unsupported *UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "docx", unsupported.Key)
}

func TestRegistry_ExcelRowLimit(t *testing.T) {
	d, err := DefaultRegistry().Lookup("xlsx")
	require.NoError(t, err)
	assert.Equal(t, 1048574, d.RowLimit)
	assert.Equal(t, Native, d.Kind)
}

func TestDefaultDescriptors_Kinds(t *testing.T) {
	custom := map[string]bool{}
	for _, d := range DefaultDescriptors() {
		if d.Kind == CustomRequired {
			custom[d.Key] = true
		}
	}
	assert.Equal(t, map[string]bool{
		"txt": true, "out": true, "dat": true, "matlab": true,
		"wav": true, "edf": true, "hdf5": true,
	}, custom)
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		Descriptor{Key: "csv", Extension: "csv"},
		Descriptor{Key: "tsv", Extension: "tsv", Aliases: []string{"CSV"}},
	)
	assert.ErrorContains(t, err, "registered twice")

	_, err = NewRegistry(Descriptor{Key: "csv"})
	assert.ErrorContains(t, err, "needs a key and an extension")
}

func TestBackendKindString(t *testing.T) {
	assert.Equal(t, "native", Native.String())
	assert.Equal(t, "custom", CustomRequired.String())
}
