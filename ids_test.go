package heapdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_TableIDForPath_StableAcrossCalls(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "table.dat")

	require.Equal(t, TableIDForPath(path), TableIDForPath(path))
}

func Test_TableIDForPath_DiffersAcrossPaths(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.dat")
	b := filepath.Join(dir, "b.dat")

	require.NotEqual(t, TableIDForPath(a), TableIDForPath(b))
}

func Test_NewTID_ProducesDistinctIDs(t *testing.T) {
	t.Parallel()
	a, b := NewTID(), NewTID()
	require.NotEqual(t, a, b)
}
