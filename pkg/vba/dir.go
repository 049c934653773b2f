package vba

import "fmt"

// SysKind is the platform the project was compiled for.
type SysKind uint32

const (
	SysKindWin16 SysKind = 0
	SysKindWin32 SysKind = 1
	SysKindMac   SysKind = 2
	SysKindWin64 SysKind = 3
)

func (k SysKind) String() string {
	switch k {
	case SysKindWin16:
		return "Win16"
	case SysKindWin32:
		return "Win32"
	case SysKindMac:
		return "Mac"
	case SysKindWin64:
		return "Win64"
	default:
		return fmt.Sprintf("SysKind(%d)", uint32(k))
	}
}

// ProjectVersion is the PROJECTVERSION record value.
type ProjectVersion struct {
	Major uint32
	Minor uint16
}

var (
	// VersionOffice365 is the version written by current Office builds.
	VersionOffice365 = ProjectVersion{Major: 0x645BE109, Minor: 11}

	// VersionOffice2003 is the version written by Office 2003.
	VersionOffice2003 = ProjectVersion{Major: 0x645E9423, Minor: 6}
)

// DefaultLCID is the en-US locale.
const DefaultLCID = 0x0409

const compatVersion = 2

// Information holds the dir stream fields that do not come from the Project.
type Information struct {
	SysKind    SysKind
	LCID       uint32
	LCIDInvoke uint32
	Version    ProjectVersion
}

// DefaultInformation returns the values Office uses for a 32-bit en-US project.
func DefaultInformation() Information {
	return Information{
		SysKind:    SysKindWin32,
		LCID:       DefaultLCID,
		LCIDInvoke: DefaultLCID,
		Version:    VersionOffice365,
	}
}

// ReferenceKind identifies the record type of a reference.
type ReferenceKind int

const (
	ReferenceRegistered ReferenceKind = iota
	ReferenceProject
	ReferenceControl
	ReferenceOriginal
)

func (k ReferenceKind) String() string {
	switch k {
	case ReferenceRegistered:
		return "registered"
	case ReferenceProject:
		return "project"
	case ReferenceControl:
		return "control"
	case ReferenceOriginal:
		return "original"
	default:
		return fmt.Sprintf("ReferenceKind(%d)", int(k))
	}
}

// Reference is an external type library or project the project depends on.
type Reference struct {
	Name  string
	Kind  ReferenceKind
	Libid string
	// RelativeLibid and the versions are only set for project references.
	RelativeLibid string
	MajorVersion  uint32
	MinorVersion  uint16
}

// StandardReferences are written to every compiled project.
var StandardReferences = []Reference{
	{
		Name:  "stdole",
		Kind:  ReferenceRegistered,
		Libid: `*\G{00020430-0000-0000-C000-000000000046}#2.0#0#C:\Windows\SysWOW64\stdole2.tlb#OLE Automation`,
	},
	{
		Name:  "Office",
		Kind:  ReferenceRegistered,
		Libid: `*\G{2DF8D04C-5BFA-101B-BDE5-00AA0044DE52}#2.0#0#C:\Program Files (x86)\Common Files\Microsoft Shared\OFFICE16\MSO.DLL#Microsoft Office 16.0 Object Library`,
	},
}

// BuildDir returns the uncompressed dir stream for p. The project is
// validated first; nothing is returned on error.
func BuildDir(p *Project, enc *Encoding, info Information) ([]byte, error) {
	if err := p.Validate(enc); err != nil {
		return nil, err
	}

	var w recordBuffer
	writeInformation(&w, p, enc, info)

	for _, ref := range StandardReferences {
		if err := writeReference(&w, ref, enc); err != nil {
			return nil, err
		}
	}

	w.sizedU16(idProjectModules, uint16(len(p.Modules)))
	w.sizedU16(idProjectCookie, cookieValue)
	for _, m := range p.Modules {
		if err := writeModule(&w, m, enc); err != nil {
			return nil, err
		}
	}

	w.reserved(idDirTerminator)
	return w.bytes(), nil
}

func writeInformation(w *recordBuffer, p *Project, enc *Encoding, info Information) {
	w.sizedU32(idSysKind, uint32(info.SysKind))
	w.sizedU32(idCompatVersion, compatVersion)
	w.sizedU32(idLCID, info.LCID)
	w.sizedU32(idLCIDInvoke, info.LCIDInvoke)
	w.sizedU16(idCodePage, enc.CodePage())
	w.sized(idName, enc.ANSI(p.Name))
	w.dual(idDocString, enc.ANSI(p.Description), idDocStringUni, UTF16(p.Description))

	// Both help file path copies carry the same code page bytes.
	help := enc.ANSI(p.HelpFile)
	w.dual(idHelpFilePath, help, idHelpFilePath2, help)

	w.sizedU32(idHelpContext, 0)
	w.sizedU32(idLibFlags, 0)

	// PROJECTVERSION has a fixed reserved size of 4 followed by 6 bytes.
	w.u16(idVersion)
	w.u32(4)
	w.u32(info.Version.Major)
	w.u16(info.Version.Minor)

	w.dual(idConstants, enc.ANSI(p.Constants), idConstantsUni, UTF16(p.Constants))
}

func writeReference(w *recordBuffer, ref Reference, enc *Encoding) error {
	name := enc.ANSI(ref.Name)
	if hasNUL(name) {
		return validationErrorf("ReferenceName", "%q must not contain NUL characters", ref.Name)
	}
	if ref.Kind != ReferenceRegistered {
		return fmt.Errorf("write reference %q: %s references are not supported", ref.Name, ref.Kind)
	}

	w.dual(idReferenceName, name, idReferenceNameUni, UTF16(ref.Name))

	libid := enc.ANSI(ref.Libid)
	w.u16(idReferenceRegister)
	w.u32(uint32(4 + len(libid) + 4 + 2))
	w.u32(uint32(len(libid)))
	w.raw(libid)
	w.u32(0)
	w.u16(0)
	return nil
}

func writeModule(w *recordBuffer, m Module, enc *Encoding) error {
	typeID, err := moduleTypeID(m.Kind)
	if err != nil {
		return fmt.Errorf("module %q: %w", m.Name, err)
	}

	name := enc.ANSI(m.Name)
	uni := UTF16(m.Name)

	w.sized(idModuleName, name)
	w.sized(idModuleNameUni, uni)
	// The stream name repeats the module name.
	w.dual(idModuleStreamName, name, idModuleStreamUni, uni)
	w.dual(idModuleDocString, nil, idModuleDocUni, nil)
	// No performance cache is written, so source starts at offset 0.
	w.sizedU32(idModuleOffset, 0)
	w.sizedU32(idModuleHelpContext, 0)
	w.sizedU16(idModuleCookie, cookieValue)
	w.reserved(typeID)
	if m.Kind == ClassModule {
		w.reserved(idModulePrivate)
	}
	w.reserved(idModuleTerminator)
	return nil
}

func moduleTypeID(kind ModuleKind) (uint16, error) {
	switch kind {
	case StandardModule:
		return idModuleProcedural, nil
	case ClassModule, DocumentModule:
		return idModuleNonProc, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedKind, int(kind))
	}
}
