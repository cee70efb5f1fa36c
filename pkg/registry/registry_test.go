package registry

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Add(t *testing.T) {
	r := New("1.0.0")

	require.NoError(t, r.Add(Activity{TaskType: "jcr-query", InputSchema: json.RawMessage(`{"type":"object"}`)}))
	require.NoError(t, r.Add(Activity{TaskType: "classified-list"}))

	assert.Error(t, r.Add(Activity{TaskType: "jcr-query"}), "duplicate task type")
	assert.Error(t, r.Add(Activity{ID: "x"}), "missing task type")
	assert.Error(t, r.Add(Activity{TaskType: "broken", InputSchema: json.RawMessage(`{`)}))

	a, ok := r.Find("jcr-query")
	require.True(t, ok)
	assert.Equal(t, "jcr-query", a.ID)
	assert.NotNil(t, a.ErrorCodes)

	snap := r.Snapshot()
	assert.Equal(t, "1.0.0", snap.Version)
	assert.NotEmpty(t, snap.LastUpdated)
	require.Len(t, snap.Activities, 2)
	assert.Equal(t, "classified-list", snap.Activities[0].TaskType)
}

func TestRegistry_WriteAndLoad(t *testing.T) {
	r := New("2.1.0")
	require.NoError(t, r.Add(Activity{TaskType: "classified-search", ErrorCodes: []string{"QUERY_SUPERSEDED"}, Retries: 2}))

	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, r.WriteFile(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, r.Snapshot(), *loaded)
}
