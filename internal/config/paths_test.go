package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ResolvePaths tests ---

func TestResolvePaths_Default(t *testing.T) {
	t.Setenv("MMASSIST_HOME", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".mmassist")
	assert.Equal(t, base, paths.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(base, "logs"), paths.Logs)
	assert.Equal(t, filepath.Join(base, "data"), paths.Data)
	assert.Equal(t, filepath.Join(base, "data", "journal.db"), paths.Journal)
}

func TestResolvePaths_CustomHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("MMASSIST_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(tmp, "data", "journal.db"), paths.Journal)
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("MMASSIST_HOME", filepath.Join(t.TempDir(), "nested", "home"))

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs(), "second call should succeed")

	for _, d := range []string{paths.Base, paths.Logs, paths.Data} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestLayout(t *testing.T) {
	p := layout("/srv/mmassist")
	assert.Equal(t, Paths{
		Base:    "/srv/mmassist",
		Config:  "/srv/mmassist/config.yaml",
		Logs:    "/srv/mmassist/logs",
		Data:    "/srv/mmassist/data",
		Journal: "/srv/mmassist/data/journal.db",
	}, p)
}
