package vba

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goopsie/vbamc/pkg/compression"
)

func mustEncoding(t *testing.T, cp uint16) *Encoding {
	t.Helper()
	enc, err := NewEncoding(cp)
	require.NoError(t, err)
	return enc
}

func sampleProject() *Project {
	p := &Project{
		ID:   uuid.MustParse("12345678-1234-1234-1234-123456789abc"),
		Name: "Sample",
	}
	p.AddModule("Class1", ClassModule, "Public Value As Long\r\n")
	p.AddModule("Module1", StandardModule, "Sub Main()\r\nEnd Sub\r\n")
	p.AddModule("ThisDocument", DocumentModule, "")
	p.AddModule("Module2", StandardModule, "Sub Other()\r\nEnd Sub\r\n")
	return p
}

func TestBuildDirRoundTrip(t *testing.T) {
	enc := mustEncoding(t, DefaultCodePage)
	p := sampleProject()
	p.Description = "Grüße aus Köln €"
	p.HelpFile = `C:\help\project.chm`
	p.Constants = "DEBUG = 1 : TRACE = 0"

	dir, err := BuildDir(p, enc, DefaultInformation())
	require.NoError(t, err)

	info, err := DecodeDir(compression.Compress(dir))
	require.NoError(t, err)

	assert.Equal(t, SysKindWin32, info.SysKind)
	assert.Equal(t, uint32(2), info.CompatVersion)
	assert.Equal(t, uint32(DefaultLCID), info.LCID)
	assert.Equal(t, uint32(DefaultLCID), info.LCIDInvoke)
	assert.Equal(t, uint16(1252), info.CodePage)
	assert.Equal(t, "Sample", info.Name)
	assert.Equal(t, p.Description, info.Description)
	assert.Equal(t, p.HelpFile, info.HelpFile)
	assert.Equal(t, p.Constants, info.Constants)
	assert.Equal(t, VersionOffice365, info.Version)

	require.Len(t, info.References, 2)
	for i, ref := range info.References {
		assert.Equal(t, StandardReferences[i], ref)
	}

	require.Len(t, info.Modules, len(p.Modules))
	for i, m := range info.Modules {
		assert.Equal(t, p.Modules[i].Name, m.Name)
		assert.Equal(t, p.Modules[i].Name, m.StreamName)
		assert.Equal(t, p.Modules[i].Kind, m.Kind)
		assert.Zero(t, m.Offset)
		assert.Empty(t, m.DocString)
		assert.Equal(t, p.Modules[i].Kind == ClassModule, m.Private)
		assert.False(t, m.ReadOnly)
	}
}

func TestBuildDirModuleRecord(t *testing.T) {
	enc := mustEncoding(t, DefaultCodePage)
	p := &Project{ID: uuid.New(), Name: "P"}
	p.AddModule("A", ClassModule, "")

	dir, err := BuildDir(p, enc, DefaultInformation())
	require.NoError(t, err)

	want := []byte{
		0x0F, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, // PROJECTMODULES
		0x13, 0x00, 0x02, 0x00, 0x00, 0x00, 0xFF, 0xFF, // PROJECTCOOKIE
		0x19, 0x00, 0x01, 0x00, 0x00, 0x00, 0x41,
		0x47, 0x00, 0x02, 0x00, 0x00, 0x00, 0x41, 0x00,
		0x1A, 0x00, 0x01, 0x00, 0x00, 0x00, 0x41,
		0x32, 0x00, 0x02, 0x00, 0x00, 0x00, 0x41, 0x00,
		0x1C, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x48, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x31, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x1E, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x2C, 0x00, 0x02, 0x00, 0x00, 0x00, 0xFF, 0xFF,
		0x22, 0x00, 0x00, 0x00, 0x00, 0x00, // MODULETYPE
		0x28, 0x00, 0x00, 0x00, 0x00, 0x00, // MODULEPRIVATE
		0x2B, 0x00, 0x00, 0x00, 0x00, 0x00, // module terminator
		0x10, 0x00, 0x00, 0x00, 0x00, 0x00, // dir terminator
	}
	require.GreaterOrEqual(t, len(dir), len(want))
	assert.Equal(t, want, dir[len(dir)-len(want):])
}

func TestBuildDirInformation(t *testing.T) {
	enc := mustEncoding(t, DefaultCodePage)
	p := &Project{ID: uuid.New(), Name: "VBAProject"}

	dir, err := BuildDir(p, enc, DefaultInformation())
	require.NoError(t, err)

	le := binary.LittleEndian
	assert.Equal(t, []byte{0x01, 0x00, 0x04, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}, dir[:10], "SYSKIND")
	assert.Equal(t, []byte{0x4A, 0x00, 0x04, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}, dir[10:20], "COMPATVERSION")
	assert.Equal(t, uint16(idLCID), le.Uint16(dir[20:]))
	assert.Equal(t, uint16(idLCIDInvoke), le.Uint16(dir[30:]))
	assert.Equal(t, []byte{0x03, 0x00, 0x02, 0x00, 0x00, 0x00, 0xE4, 0x04}, dir[40:48], "CODEPAGE")
	assert.Equal(t, uint16(idName), le.Uint16(dir[48:]))
	assert.Equal(t, uint32(10), le.Uint32(dir[50:]))
	assert.Equal(t, "VBAProject", string(dir[54:64]))
}

func TestDirOrdering(t *testing.T) {
	enc := mustEncoding(t, DefaultCodePage)
	p := sampleProject()

	dir, err := BuildDir(p, enc, DefaultInformation())
	require.NoError(t, err)
	info, err := ParseDir(dir)
	require.NoError(t, err)

	var dirOrder []string
	for _, m := range info.Modules {
		dirOrder = append(dirOrder, m.Name)
	}
	assert.Equal(t, []string{"Class1", "Module1", "ThisDocument", "Module2"}, dirOrder)

	var names []string
	for _, m := range p.SortedModules() {
		names = append(names, m.Name)
	}
	wm, err := ParseModuleNameTable(BuildModuleNameTable(names, enc))
	require.NoError(t, err)
	assert.Equal(t, []string{"Module1", "Module2", "Class1", "ThisDocument"}, wm)
	assert.NotEqual(t, dirOrder, wm)
}

func TestValidationBoundaries(t *testing.T) {
	enc := mustEncoding(t, DefaultCodePage)

	tests := []struct {
		name   string
		mutate func(p *Project)
		field  string
	}{
		{"NameMax", func(p *Project) { p.Name = strings.Repeat("n", 128) }, ""},
		{"NameTooLong", func(p *Project) { p.Name = strings.Repeat("n", 129) }, "ProjectName"},
		{"NameEmpty", func(p *Project) { p.Name = "" }, "ProjectName"},
		{"NameNUL", func(p *Project) { p.Name = "a\x00b" }, "ProjectName"},
		{"DescriptionMax", func(p *Project) { p.Description = strings.Repeat("d", 2000) }, ""},
		{"DescriptionTooLong", func(p *Project) { p.Description = strings.Repeat("d", 2001) }, "ProjectDescription"},
		{"DescriptionNUL", func(p *Project) { p.Description = "x\x00" }, "ProjectDescription"},
		{"HelpFileMax", func(p *Project) { p.HelpFile = strings.Repeat("h", 260) }, ""},
		{"HelpFileTooLong", func(p *Project) { p.HelpFile = strings.Repeat("h", 261) }, "ProjectHelpFilePath"},
		{"HelpFileNUL", func(p *Project) { p.HelpFile = "\x00" }, "ProjectHelpFilePath"},
		{"ConstantsMax", func(p *Project) { p.Constants = strings.Repeat("c", 1015) }, ""},
		{"ConstantsTooLong", func(p *Project) { p.Constants = strings.Repeat("c", 1016) }, "ProjectConstants"},
		{"ConstantsNUL", func(p *Project) { p.Constants = "A = 1\x00" }, "ProjectConstants"},
		{"ModuleNameEmpty", func(p *Project) { p.Modules[0].Name = "" }, "ModuleName"},
		{"ModuleNameNUL", func(p *Project) { p.Modules[0].Name = "Mod\x00ule" }, "ModuleName"},
		{"MultiByteName", func(p *Project) { p.Name = strings.Repeat("é", 128) }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sampleProject()
			tt.mutate(p)

			dir, err := BuildDir(p, enc, DefaultInformation())
			if tt.field == "" {
				require.NoError(t, err)
				assert.NotEmpty(t, dir)
				return
			}

			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Contains(t, err.Error(), tt.field)
			assert.Nil(t, dir)
		})
	}
}

func TestUnsupportedKind(t *testing.T) {
	enc := mustEncoding(t, DefaultCodePage)
	p := sampleProject()
	p.Modules[1].Kind = ModuleKind(42)

	_, err := BuildDir(p, enc, DefaultInformation())
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	_, err = moduleTypeID(ModuleKind(-1))
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	_, err = RenderSource(Module{Name: "X", Kind: ModuleKind(3)})
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestCodePages(t *testing.T) {
	t.Run("Cyrillic", func(t *testing.T) {
		enc := mustEncoding(t, 1251)
		p := &Project{ID: uuid.New(), Name: "Проект"}
		p.AddModule("Модуль", StandardModule, "")

		dir, err := BuildDir(p, enc, DefaultInformation())
		require.NoError(t, err)
		info, err := ParseDir(dir)
		require.NoError(t, err)
		assert.Equal(t, uint16(1251), info.CodePage)
		assert.Equal(t, "Проект", info.Name)
		assert.Equal(t, "Модуль", info.Modules[0].Name)
	})

	t.Run("Unrepresentable", func(t *testing.T) {
		enc := mustEncoding(t, DefaultCodePage)
		assert.Equal(t, []byte("a?b"), enc.ANSI("a☃b"))
		assert.Equal(t, []byte{0x80}, enc.ANSI("€"))
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := NewEncoding(65001)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestParseDirErrors(t *testing.T) {
	enc := mustEncoding(t, DefaultCodePage)
	dir, err := BuildDir(sampleProject(), enc, DefaultInformation())
	require.NoError(t, err)

	t.Run("UnexpectedRecord", func(t *testing.T) {
		bad := append([]byte{}, dir...)
		bad[0] = 0x77
		_, err := ParseDir(bad)

		var rerr *RecordError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, uint16(0x0077), rerr.Got)
		assert.Equal(t, []uint16{idSysKind}, rerr.Want)
		assert.Zero(t, rerr.Offset)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Contains(t, err.Error(), "0x0077")
		assert.Contains(t, err.Error(), "0x0001")
	})

	t.Run("BadModuleType", func(t *testing.T) {
		bad := append([]byte{}, dir...)
		// Corrupt the MODULETYPE of the final module.
		typeOffset := len(bad) - 6 - 6 - 6
		require.Equal(t, idModuleProcedural, binary.LittleEndian.Uint16(bad[typeOffset:]))
		binary.LittleEndian.PutUint16(bad[typeOffset:], 0x0099)

		_, err := ParseDir(bad)
		var rerr *RecordError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, uint16(0x0099), rerr.Got)
		assert.Equal(t, []uint16{idModuleProcedural, idModuleNonProc}, rerr.Want)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := ParseDir(dir[:len(dir)-3])
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("NotCompressed", func(t *testing.T) {
		_, err := DecodeDir(dir[1:])
		assert.ErrorIs(t, err, compression.ErrInvalidSignature)
	})
}

func TestParseDirForeignReferences(t *testing.T) {
	enc := mustEncoding(t, DefaultCodePage)
	p := &Project{ID: uuid.New(), Name: "P"}

	var w recordBuffer
	writeInformation(&w, p, enc, DefaultInformation())

	// Project reference.
	w.dual(idReferenceName, []byte("Shared"), idReferenceNameUni, UTF16("Shared"))
	abs, rel := []byte(`*\CC:\lib\Shared.xlam`), []byte(`*\CShared.xlam`)
	w.u16(idReferenceProject)
	w.u32(uint32(4 + len(abs) + 4 + len(rel) + 6))
	w.u32(uint32(len(abs)))
	w.raw(abs)
	w.u32(uint32(len(rel)))
	w.raw(rel)
	w.u32(1706735520)
	w.u16(7)

	// Original reference followed by its control reference.
	w.dual(idReferenceName, []byte("MSForms"), idReferenceNameUni, UTF16("MSForms"))
	original := []byte(`*\G{0D452EE1-E08F-101A-852E-02608C4D0BB4}#2.0#0#FM20.DLL#Microsoft Forms 2.0 Object Library`)
	w.sized(idReferenceOriginal, original)
	twiddled := []byte(`*\G{00000000-0000-0000-0000-000000000000}#0.0#0##`)
	w.u16(idReferenceControl)
	w.u32(uint32(4 + len(twiddled) + 6))
	w.u32(uint32(len(twiddled)))
	w.raw(twiddled)
	w.u32(0)
	w.u16(0)
	w.sized(idReferenceExtended, make([]byte, 30))

	w.sizedU16(idProjectModules, 0)
	w.sizedU16(idProjectCookie, cookieValue)
	w.reserved(idDirTerminator)

	info, err := ParseDir(w.bytes())
	require.NoError(t, err)
	require.Len(t, info.References, 2)

	assert.Equal(t, Reference{
		Name:          "Shared",
		Kind:          ReferenceProject,
		Libid:         string(abs),
		RelativeLibid: string(rel),
		MajorVersion:  1706735520,
		MinorVersion:  7,
	}, info.References[0])

	assert.Equal(t, "MSForms", info.References[1].Name)
	assert.Equal(t, ReferenceOriginal, info.References[1].Kind)
	assert.Equal(t, string(original), info.References[1].Libid)
	assert.Empty(t, info.Modules)
}
