package updates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_FindsPackagesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pkg.tgz", "a.pkg.tgz", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	got, err := Scan(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.pkg.tgz"),
		filepath.Join(dir, "b.pkg.tgz"),
	}, got)
}

func TestScan_EmptyDirConfigured(t *testing.T) {
	got, err := Scan("", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScan_NoMatches(t *testing.T) {
	got, err := Scan(t.TempDir(), "*.pkg.tgz")
	require.NoError(t, err)
	assert.Empty(t, got)
}
