package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, `{
		"users": [{"id": "alice", "name": "Alice", "email": "alice@example.com", "role": "user"}],
		"appointments": [{"id": "0b7e7f4e-4a43-4d8e-9a3f-1f0f5b8a9c01", "title": "Checkup", "status": "scheduled"}]
	}`)

	data, err := Load(path)
	require.NoError(t, err)
	require.Len(t, data.Users, 1)
	assert.Equal(t, "Alice", data.Users[0].Name)
	require.Len(t, data.Appointments, 1)
	assert.Equal(t, 1, data.Appointments[0].Version)
}

func TestLoad_EmptyPath(t *testing.T) {
	data, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, data.Users)
}

func TestLoad_Rejects(t *testing.T) {
	_, err := Load(write(t, `{"users": [{"name": "nobody"}]}`))
	assert.Error(t, err)

	_, err = Load(write(t, `not json`))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
