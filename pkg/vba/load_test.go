package vba

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Helpers.bas")
	require.NoError(t, os.WriteFile(path, []byte("Const LogFile = \"~/logs/run.txt\"\r\n"), 0o644))

	m, err := ModuleFromFile(path, StandardModule, WithUserProfilePath("/Users/dev/"), WithMacPaths(true))
	require.NoError(t, err)
	assert.Equal(t, "Helpers", m.Name)
	assert.Equal(t, StandardModule, m.Kind)
	assert.Equal(t, "Const LogFile = \"/Users/dev/logs/run.txt\"\r\n", m.Source)

	_, err = ModuleFromFile(filepath.Join(dir, "missing.bas"), StandardModule)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ModuleFromFile(path, ModuleKind(9))
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestExpandProfilePath(t *testing.T) {
	assert.Equal(t, `C:\Users\dev\a.txt`, ExpandProfilePath("~/a.txt", `C:\Users\dev\`, `\`))
	assert.Equal(t, "/home/dev/a ~ /home/dev/b", ExpandProfilePath("~/a ~ ~/b", "/home/dev", "/"))
	assert.Equal(t, "~/a.txt", ExpandProfilePath("~/a.txt", "", "/"))
}
