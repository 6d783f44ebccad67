package locking

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPIDPayload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "muk_sync.lock")
	lock := New(path)

	require.NoError(t, lock.Acquire())
	defer func() { require.NoError(t, lock.Release()) }()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fields := strings.Fields(string(data))
	require.Len(t, fields, 2)
	assert.Equal(t, fmt.Sprintf("%d", os.Getpid()), fields[0])
}

func TestReleaseClearsPayload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "muk_sync.lock")
	lock := New(path)

	require.NoError(t, lock.Acquire())
	require.NoError(t, lock.Release())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestAcquireAfterRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "muk_sync.lock")

	first := New(path)
	require.NoError(t, first.Acquire())
	require.NoError(t, first.Release())

	second := New(path)
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}

func TestAcquireReclaimsStalePayload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "muk_sync.lock")

	// A payload without a live flock is what an unclean exit leaves behind.
	stale := fmt.Sprintf("%d %d\n", 999999, time.Now().Add(-time.Hour).Unix())
	require.NoError(t, os.WriteFile(path, []byte(stale), 0644))

	lock := New(path)
	require.NoError(t, lock.Acquire())
	defer func() { require.NoError(t, lock.Release()) }()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), fmt.Sprintf("%d ", os.Getpid())))
}
