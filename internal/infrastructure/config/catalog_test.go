package configinfra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tridirt/tridirt/internal/core/domain"
)

func TestDefaultCatalog(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	trid, err := catalog.Lookup("trid")
	require.NoError(t, err)
	assert.Equal(t, "https://mark0.net/download/trid.zip", trid.URL)
	assert.Equal(t, "trid.py", trid.Marker())
	assert.Equal(t, domain.InterpreterPython, trid.Interpreter)

	defs, err := catalog.Lookup("triddefs")
	require.NoError(t, err)
	assert.False(t, defs.Runnable())
	assert.Equal(t, "triddefs.trd", defs.Marker())

	order, err := catalog.InstallOrder("trid")
	require.NoError(t, err)
	require.Len(t, order, 2)
	assert.Equal(t, "triddefs", order[0].Name)
	assert.Equal(t, "trid", order[1].Name)
}

func TestParseCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name: "duplicate",
			yaml: `
packages:
  - {name: a, url: https://x/a.zip, entrypoint: a}
  - {name: a, url: https://x/b.zip, entrypoint: b}
`,
			errMsg: "duplicate package",
		},
		{
			name:   "missing_marker",
			yaml:   "packages:\n  - {name: a, url: https://x/a.zip}\n",
			errMsg: "entrypoint or provides is required",
		},
		{
			name:   "escaping_marker",
			yaml:   "packages:\n  - {name: a, url: https://x/a.zip, entrypoint: ../a}\n",
			errMsg: "must be a relative path",
		},
		{
			name:   "unknown_requirement",
			yaml:   "packages:\n  - {name: a, url: https://x/a.zip, entrypoint: a, requires: [b]}\n",
			errMsg: "unknown package",
		},
		{
			name: "cycle",
			yaml: `
packages:
  - {name: a, url: https://x/a.zip, entrypoint: a, requires: [b]}
  - {name: b, url: https://x/b.zip, entrypoint: b, requires: [a]}
`,
			errMsg: "dependency cycle",
		},
		{
			name:   "bad_interpreter",
			yaml:   "packages:\n  - {name: a, url: https://x/a.zip, entrypoint: a, interpreter: perl}\n",
			errMsg: "unsupported interpreter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestApplyOverrides_DoesNotMutateBase(t *testing.T) {
	base, err := DefaultCatalog()
	require.NoError(t, err)

	merged, err := ApplyOverrides(base, map[string]domain.Package{
		"trid": {URL: "https://mirror.example.org/trid.zip", Requires: []string{}},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://mark0.net/download/trid.zip", base["trid"].URL)
	assert.Equal(t, "https://mirror.example.org/trid.zip", merged["trid"].URL)
	assert.Empty(t, merged["trid"].Requires, "an explicit empty list clears requirements")
}
