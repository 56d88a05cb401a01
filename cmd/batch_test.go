package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "files.txt")
	require.NoError(t, os.WriteFile(path, []byte("a.wav\n\n# skipped\n  b.mp3  \n"), 0o644))

	paths, err := readFileList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.wav", "b.mp3"}, paths)

	_, err = readFileList(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestFlagKeysAreConfigKeys(t *testing.T) {
	for _, c := range []struct {
		flag string
		key  string
	}{
		{"model", "inference.model_path"},
		{"concurrency", "batch.max_concurrency"},
		{"output", "output_format"},
	} {
		assert.Equal(t, c.key, flagKeys[c.flag], c.flag)
	}
}
