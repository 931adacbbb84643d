package filelock

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockExcludesSecondHolder(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out", "model.gob")

	first := New(target)
	require.NoError(t, first.Lock())
	assert.Equal(t, target+Suffix, first.Path())
	assert.FileExists(t, first.Path())

	second := New(target)
	ok, err := second.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "second lock should not be granted while the first is held")

	require.NoError(t, first.Unlock())

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock())
}

func TestWithReleasesOnError(t *testing.T) {
	target := filepath.Join(t.TempDir(), "stats.txt")
	boom := errors.New("boom")

	err := With(target, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	fl := New(target)
	ok, err := fl.TryLock()
	require.NoError(t, err)
	assert.True(t, ok, "lock should be free after With returns")
	require.NoError(t, fl.Unlock())
}
