package logfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_UTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte("[ RUN      ] Café.Test\n"), 0o644))

	content, enc, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, enc)
	assert.Equal(t, "[ RUN      ] Café.Test\n", content)
}

func TestRead_Latin1Fallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	// 0xE9 is é in Latin-1 and an invalid lone byte in UTF-8.
	require.NoError(t, os.WriteFile(path, []byte("caf\xe9 \xff\n"), 0o644))

	content, enc, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, EncodingLatin1, enc)
	assert.Equal(t, "café ÿ\n", content)
}

func TestRead_MissingFile(t *testing.T) {
	_, _, err := Read(filepath.Join(t.TempDir(), "nope.log"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "failed to read log file")
}

func TestDecode_Empty(t *testing.T) {
	content, enc, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, enc)
	assert.Empty(t, content)
}
