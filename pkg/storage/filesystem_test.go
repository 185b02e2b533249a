package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := s.Save("2026/10/report.csv", []byte("row,outcome\n"))
	require.NoError(t, err)

	rc, err := s.Open(name)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "row,outcome\n", string(data))

	require.NoError(t, s.Delete(name))
	require.NoError(t, s.Delete(name))
}

func TestLocalStorageRejectsEscapes(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save("../outside.csv", []byte("x"))
	require.ErrorIs(t, err, ErrInvalidPath)
	_, err = s.Open("/etc/passwd")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = s.Save("old.csv", []byte("old"))
	require.NoError(t, err)
	_, err = s.Save("fresh.csv", []byte("fresh"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), past, past))

	deleted, err := s.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, deleted)

	_, err = os.Stat(filepath.Join(dir, "fresh.csv"))
	assert.NoError(t, err)
}
