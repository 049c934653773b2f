package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goopsie/vbamc/pkg/compiler"
	"github.com/goopsie/vbamc/pkg/vba"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const yamlDefinition = `name: Reporting
id: "{917DED54-440B-4FD1-A5C1-74ACF261E600}"
version: 1.2.0
company: Example Ltd
description: Monthly report macros
helpFile: C:\help\reporting.chm
constants: "DEBUG = 1"
codePage: 1250
userProfilePath: /Users/report
mac: true
modules:
  - path: src/Main.bas
  - path: src/Report.cls
    kind: class
  - path: src/ThisWorkbook.txt
    kind: document
`

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "Main.bas"), "Const Out = \"~/out.csv\"\r\n")
	writeFile(t, filepath.Join(dir, "src", "Report.cls"), "Public Title As String\r\n")
	writeFile(t, filepath.Join(dir, "src", "ThisWorkbook.txt"), "")
	path := filepath.Join(dir, "project.yaml")
	writeFile(t, path, yamlDefinition)

	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Reporting", def.Name)
	assert.Equal(t, uint16(1250), def.CodePage)
	assert.True(t, def.Mac)
	assert.Equal(t, dir, def.BaseDir)
	require.Len(t, def.Modules, 3)
	assert.Equal(t, "class", def.Modules[1].Kind)

	p, err := def.Build()
	require.NoError(t, err)
	assert.Equal(t, uuid.MustParse("917ded54-440b-4fd1-a5c1-74acf261e600"), p.ID)
	assert.Equal(t, "Monthly report macros", p.Description)
	assert.Equal(t, `C:\help\reporting.chm`, p.HelpFile)
	assert.Equal(t, "DEBUG = 1", p.Constants)
	assert.Equal(t, "1.2.0", p.Version)
	assert.Equal(t, "Example Ltd", p.Company)

	assert.Equal(t, []vba.Module{
		{Name: "Main", Kind: vba.StandardModule, Source: "Const Out = \"/Users/report/out.csv\"\r\n"},
		{Name: "Report", Kind: vba.ClassModule, Source: "Public Title As String\r\n"},
		{Name: "ThisWorkbook", Kind: vba.DocumentModule, Source: ""},
	}, p.Modules)

	opts, err := def.CompilerOptions()
	require.NoError(t, err)
	data, err := compiler.New(opts...).Compile(p)
	require.NoError(t, err)

	c, err := compiler.Open(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(1250), c.Info.CodePage)
	assert.Len(t, c.Modules(), 3)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Module1.bas"), "Sub A()\r\nEnd Sub\r\n")
	path := filepath.Join(dir, "project.toml")
	writeFile(t, path, `name = "TomlProject"
sysKind = "win64"
hidden = true

[[modules]]
path = "Module1.bas"
`)

	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(vba.DefaultCodePage), def.CodePage)

	p, err := def.Build()
	require.NoError(t, err)
	assert.Equal(t, "TomlProject", p.Name)
	assert.True(t, p.Hidden)
	assert.NotEqual(t, uuid.Nil, p.ID)
	require.Len(t, p.Modules, 1)
	assert.Equal(t, vba.StandardModule, p.Modules[0].Kind)

	kind, err := ParseSysKind(def.SysKind)
	require.NoError(t, err)
	assert.Equal(t, vba.SysKindWin64, kind)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.json")
	writeFile(t, path, `{"name": "FromFile", "codePage": 1252}`)

	t.Setenv("VBAMC_NAME", "FromEnv")
	t.Setenv("VBAMC_CODEPAGE", "1251")
	t.Setenv("VBAMC_HIDDEN", "true")

	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "FromEnv", def.Name)
	assert.Equal(t, uint16(1251), def.CodePage)
	assert.True(t, def.Hidden)
}

func TestSourceDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "vba", "b", "Zeta.bas"), "")
	writeFile(t, filepath.Join(dir, "vba", "Alpha.cls"), "")
	writeFile(t, filepath.Join(dir, "vba", "Sheet1.doccls"), "")
	writeFile(t, filepath.Join(dir, "vba", "README.md"), "# notes")
	writeFile(t, filepath.Join(dir, "Extra.bas"), "")
	path := filepath.Join(dir, "project.yaml")
	writeFile(t, path, "name: Scanned\nsourceDir: vba\nmodules:\n  - path: Extra.bas\n")

	def, err := Load(path)
	require.NoError(t, err)
	p, err := def.Build()
	require.NoError(t, err)

	var names []string
	var kinds []vba.ModuleKind
	for _, m := range p.Modules {
		names = append(names, m.Name)
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []string{"Extra", "Alpha", "Sheet1", "Zeta"}, names)
	assert.Equal(t, []vba.ModuleKind{vba.StandardModule, vba.ClassModule, vba.DocumentModule, vba.StandardModule}, kinds)
}

func TestScanModules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Module1.BAS"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "")

	specs, err := ScanModules(dir)
	require.NoError(t, err)
	assert.Equal(t, []ModuleSpec{{Path: filepath.Join(dir, "Module1.BAS"), Kind: "Module"}}, specs)

	_, err = ScanModules(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("BadID", func(t *testing.T) {
		def := &Project{Name: "P", ID: "not-a-guid"}
		_, err := def.Build()
		assert.ErrorContains(t, err, "not-a-guid")
	})

	t.Run("UnknownExtension", func(t *testing.T) {
		def := &Project{Name: "P", BaseDir: dir, Modules: []ModuleSpec{{Path: "Form1.frm"}}}
		_, err := def.Build()
		assert.ErrorIs(t, err, vba.ErrUnsupportedKind)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		def := &Project{Name: "P", BaseDir: dir, Modules: []ModuleSpec{{Path: "Form1.bas", Kind: "form"}}}
		_, err := def.Build()
		assert.ErrorIs(t, err, vba.ErrUnsupportedKind)
	})

	t.Run("MissingModule", func(t *testing.T) {
		def := &Project{Name: "P", BaseDir: dir, Modules: []ModuleSpec{{Path: "Gone.bas"}}}
		_, err := def.Build()
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("UnknownSysKind", func(t *testing.T) {
		def := &Project{Name: "P", SysKind: "amiga"}
		_, err := def.CompilerOptions()
		assert.Error(t, err)
	})
}
