package timestamp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMissingFile(t *testing.T) {
	t.Parallel()

	_, found, err := Read(filepath.Join(t.TempDir(), "muk.timestamp"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteThenRead(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "muk.timestamp")
	mark := time.Date(2013, 4, 1, 12, 30, 0, 0, time.UTC)

	require.NoError(t, Write(path, mark))

	got, found, err := Read(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, got.Equal(mark))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "20130401123000Z\n", string(data))
}

func TestWriteRefusesBackwardsMove(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "muk.timestamp")
	newer := time.Date(2013, 4, 2, 0, 0, 0, 0, time.UTC)
	older := time.Date(2013, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, Write(path, newer))
	require.Error(t, Write(path, older))

	// the persisted value is untouched
	got, found, err := Read(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, got.Equal(newer))
}

func TestWriteSameValueIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "muk.timestamp")
	mark := time.Date(2013, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, Write(path, mark))
	require.NoError(t, Write(path, mark))
}

func TestReadCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "muk.timestamp")
	require.NoError(t, os.WriteFile(path, []byte("not a timestamp\n"), 0644))

	_, _, err := Read(path)
	require.Error(t, err)
}

func TestWriteCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run", "muk.timestamp")
	require.NoError(t, Write(path, time.Date(2013, 4, 1, 0, 0, 0, 0, time.UTC)))

	_, found, err := Read(path)
	require.NoError(t, err)
	assert.True(t, found)
}
