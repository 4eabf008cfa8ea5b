package atomicwrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWriteFileReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "f.txt")

	require.NoError(t, WriteFile(path, []byte("one"), 0o600))
	require.NoError(t, WriteFile(path, []byte("two"), 0o600))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(b))

	// no quedan temporales
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.yaml")
	require.NoError(t, WriteYAML(path, map[string]int{"max_pool_size": 4}, 0o600))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]int
	require.NoError(t, yaml.Unmarshal(b, &out))
	require.Equal(t, 4, out["max_pool_size"])
}
