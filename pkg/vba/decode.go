package vba

import (
	"encoding/binary"
	"fmt"

	"github.com/goopsie/vbamc/pkg/compression"
)

// DirInfo is the decoded content of a dir stream.
type DirInfo struct {
	SysKind       SysKind
	CompatVersion uint32
	LCID          uint32
	LCIDInvoke    uint32
	CodePage      uint16
	Name          string
	Description   string
	HelpFile      string
	HelpContext   uint32
	LibFlags      uint32
	Version       ProjectVersion
	Constants     string
	References    []Reference
	Modules       []ModuleInfo
}

// ModuleInfo is one entry of the module table.
type ModuleInfo struct {
	Name        string
	StreamName  string
	DocString   string
	Offset      uint32
	HelpContext uint32
	// Kind is StandardModule for procedural modules. Non-procedural modules
	// carrying a private marker decode as ClassModule, the rest as
	// DocumentModule.
	Kind     ModuleKind
	ReadOnly bool
	Private  bool
}

// DecodeDir decompresses and parses a dir stream.
func DecodeDir(compressed []byte) (*DirInfo, error) {
	data, err := compression.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress dir stream: %w", err)
	}
	return ParseDir(data)
}

// ParseDir parses an uncompressed dir stream.
func ParseDir(data []byte) (*DirInfo, error) {
	d := &dirDecoder{data: data}
	info := &DirInfo{}

	if err := d.information(info); err != nil {
		return nil, err
	}
	enc, err := NewEncoding(info.CodePage)
	if err != nil {
		return nil, err
	}
	d.enc = enc
	if err := d.decodeStrings(info); err != nil {
		return nil, err
	}
	if err := d.references(info); err != nil {
		return nil, err
	}
	if err := d.modules(info); err != nil {
		return nil, err
	}
	if _, err := d.expect(idDirTerminator); err != nil {
		return nil, err
	}
	if _, err := d.u32(); err != nil {
		return nil, err
	}
	return info, nil
}

type dirDecoder struct {
	data []byte
	pos  int
	enc  *Encoding

	// raw code page strings, decoded once the code page is known
	name, description, helpFile, constants []byte
	descriptionUni, constantsUni          []byte
}

func (d *dirDecoder) truncated(what string) error {
	return fmt.Errorf("%w: truncated %s at offset %d", ErrMalformed, what, d.pos)
}

func (d *dirDecoder) u16() (uint16, error) {
	if d.pos+2 > len(d.data) {
		return 0, d.truncated("uint16")
	}
	v := binary.LittleEndian.Uint16(d.data[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *dirDecoder) u32() (uint32, error) {
	if d.pos+4 > len(d.data) {
		return 0, d.truncated("uint32")
	}
	v := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *dirDecoder) take(n uint32) ([]byte, error) {
	if uint64(d.pos)+uint64(n) > uint64(len(d.data)) {
		return nil, d.truncated("record payload")
	}
	b := d.data[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return b, nil
}

func (d *dirDecoder) peek() (uint16, bool) {
	if d.pos+2 > len(d.data) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(d.data[d.pos:]), true
}

// expect consumes a record id that must be one of want.
func (d *dirDecoder) expect(want ...uint16) (uint16, error) {
	start := d.pos
	id, err := d.u16()
	if err != nil {
		return 0, err
	}
	for _, w := range want {
		if id == w {
			return id, nil
		}
	}
	return 0, &RecordError{Offset: start, Got: id, Want: want}
}

// sized consumes id, a 32-bit length and the payload.
func (d *dirDecoder) sized(id uint16) ([]byte, error) {
	if _, err := d.expect(id); err != nil {
		return nil, err
	}
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	return d.take(n)
}

func (d *dirDecoder) sizedU32(id uint16) (uint32, error) {
	b, err := d.sized(id)
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("%w: record 0x%04X has size %d, want 4", ErrMalformed, id, len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *dirDecoder) sizedU16(id uint16) (uint16, error) {
	b, err := d.sized(id)
	if err != nil {
		return 0, err
	}
	if len(b) != 2 {
		return 0, fmt.Errorf("%w: record 0x%04X has size %d, want 2", ErrMalformed, id, len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *dirDecoder) information(info *DirInfo) error {
	kind, err := d.sizedU32(idSysKind)
	if err != nil {
		return err
	}
	info.SysKind = SysKind(kind)

	if id, ok := d.peek(); ok && id == idCompatVersion {
		if info.CompatVersion, err = d.sizedU32(idCompatVersion); err != nil {
			return err
		}
	}
	if info.LCID, err = d.sizedU32(idLCID); err != nil {
		return err
	}
	if info.LCIDInvoke, err = d.sizedU32(idLCIDInvoke); err != nil {
		return err
	}
	if info.CodePage, err = d.sizedU16(idCodePage); err != nil {
		return err
	}
	if d.name, err = d.sized(idName); err != nil {
		return err
	}
	if d.description, err = d.sized(idDocString); err != nil {
		return err
	}
	if d.descriptionUni, err = d.sized(idDocStringUni); err != nil {
		return err
	}
	if d.helpFile, err = d.sized(idHelpFilePath); err != nil {
		return err
	}
	if _, err = d.sized(idHelpFilePath2); err != nil {
		return err
	}
	if info.HelpContext, err = d.sizedU32(idHelpContext); err != nil {
		return err
	}
	if info.LibFlags, err = d.sizedU32(idLibFlags); err != nil {
		return err
	}

	if _, err = d.expect(idVersion); err != nil {
		return err
	}
	if _, err = d.u32(); err != nil {
		return err
	}
	if info.Version.Major, err = d.u32(); err != nil {
		return err
	}
	if info.Version.Minor, err = d.u16(); err != nil {
		return err
	}

	if d.constants, err = d.sized(idConstants); err != nil {
		return err
	}
	d.constantsUni, err = d.sized(idConstantsUni)
	return err
}

func (d *dirDecoder) decodeStrings(info *DirInfo) error {
	var err error
	if info.Name, err = d.enc.DecodeANSI(d.name); err != nil {
		return err
	}
	if info.Description, err = d.preferUnicode(d.description, d.descriptionUni); err != nil {
		return err
	}
	if info.HelpFile, err = d.enc.DecodeANSI(d.helpFile); err != nil {
		return err
	}
	info.Constants, err = d.preferUnicode(d.constants, d.constantsUni)
	return err
}

func (d *dirDecoder) preferUnicode(ansi, uni []byte) (string, error) {
	if len(uni) > 0 {
		return DecodeUTF16(uni)
	}
	return d.enc.DecodeANSI(ansi)
}

func (d *dirDecoder) references(info *DirInfo) error {
	for {
		id, ok := d.peek()
		if !ok {
			return d.truncated("references")
		}
		if id == idProjectModules {
			return nil
		}

		var ref Reference
		if id == idReferenceName {
			name, err := d.referenceName()
			if err != nil {
				return err
			}
			ref.Name = name
		}

		if err := d.reference(&ref); err != nil {
			return err
		}
		info.References = append(info.References, ref)
	}
}

func (d *dirDecoder) referenceName() (string, error) {
	ansi, err := d.sized(idReferenceName)
	if err != nil {
		return "", err
	}
	var uni []byte
	if id, ok := d.peek(); ok && id == idReferenceNameUni {
		if uni, err = d.sized(idReferenceNameUni); err != nil {
			return "", err
		}
	}
	return d.preferUnicode(ansi, uni)
}

func (d *dirDecoder) reference(ref *Reference) error {
	id, err := d.expect(idReferenceRegister, idReferenceProject, idReferenceControl, idReferenceOriginal)
	if err != nil {
		return err
	}

	switch id {
	case idReferenceRegister:
		ref.Kind = ReferenceRegistered
		body, err := d.sizedBody()
		if err != nil {
			return err
		}
		ref.Libid, _, err = d.lengthPrefixed(body)
		return err

	case idReferenceProject:
		ref.Kind = ReferenceProject
		body, err := d.sizedBody()
		if err != nil {
			return err
		}
		absolute, rest, err := d.lengthPrefixed(body)
		if err != nil {
			return err
		}
		relative, rest, err := d.lengthPrefixed(rest)
		if err != nil {
			return err
		}
		if len(rest) < 6 {
			return fmt.Errorf("%w: short project reference", ErrMalformed)
		}
		ref.Libid, ref.RelativeLibid = absolute, relative
		ref.MajorVersion = binary.LittleEndian.Uint32(rest)
		ref.MinorVersion = binary.LittleEndian.Uint16(rest[4:])
		return nil

	case idReferenceOriginal:
		ref.Kind = ReferenceOriginal
		libid, err := d.sizedBody()
		if err != nil {
			return err
		}
		if ref.Libid, err = d.enc.DecodeANSI(libid); err != nil {
			return err
		}
		// An original reference is always followed by its control reference.
		if _, err := d.expect(idReferenceControl); err != nil {
			return err
		}
		return d.controlReference(ref)

	default:
		ref.Kind = ReferenceControl
		return d.controlReference(ref)
	}
}

// controlReference reads a REFERENCECONTROL record whose id was consumed.
func (d *dirDecoder) controlReference(ref *Reference) error {
	twiddled, err := d.sizedBody()
	if err != nil {
		return err
	}
	if ref.Libid == "" {
		if ref.Libid, _, err = d.lengthPrefixed(twiddled); err != nil {
			return err
		}
	}

	if id, ok := d.peek(); ok && id == idReferenceName {
		name, err := d.referenceName()
		if err != nil {
			return err
		}
		if ref.Name == "" {
			ref.Name = name
		}
	}

	_, err = d.sized(idReferenceExtended)
	return err
}

func (d *dirDecoder) sizedBody() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	return d.take(n)
}

func (d *dirDecoder) lengthPrefixed(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, fmt.Errorf("%w: short length prefix", ErrMalformed)
	}
	n := binary.LittleEndian.Uint32(b)
	if uint64(n) > uint64(len(b)-4) {
		return "", nil, fmt.Errorf("%w: string of %d bytes overruns record", ErrMalformed, n)
	}
	s, err := d.enc.DecodeANSI(b[4 : 4+n])
	return s, b[4+n:], err
}

func (d *dirDecoder) modules(info *DirInfo) error {
	count, err := d.sizedU16(idProjectModules)
	if err != nil {
		return err
	}
	if _, err := d.sizedU16(idProjectCookie); err != nil {
		return err
	}

	info.Modules = make([]ModuleInfo, 0, count)
	for i := uint16(0); i < count; i++ {
		m, err := d.module()
		if err != nil {
			return err
		}
		info.Modules = append(info.Modules, m)
	}
	return nil
}

func (d *dirDecoder) module() (ModuleInfo, error) {
	var m ModuleInfo

	name, err := d.sized(idModuleName)
	if err != nil {
		return m, err
	}
	var nameUni []byte
	if id, ok := d.peek(); ok && id == idModuleNameUni {
		if nameUni, err = d.sized(idModuleNameUni); err != nil {
			return m, err
		}
	}
	if m.Name, err = d.preferUnicode(name, nameUni); err != nil {
		return m, err
	}

	streamName, err := d.sized(idModuleStreamName)
	if err != nil {
		return m, err
	}
	streamUni, err := d.sized(idModuleStreamUni)
	if err != nil {
		return m, err
	}
	if m.StreamName, err = d.preferUnicode(streamName, streamUni); err != nil {
		return m, err
	}

	doc, err := d.sized(idModuleDocString)
	if err != nil {
		return m, err
	}
	docUni, err := d.sized(idModuleDocUni)
	if err != nil {
		return m, err
	}
	if m.DocString, err = d.preferUnicode(doc, docUni); err != nil {
		return m, err
	}

	if m.Offset, err = d.sizedU32(idModuleOffset); err != nil {
		return m, err
	}
	if m.HelpContext, err = d.sizedU32(idModuleHelpContext); err != nil {
		return m, err
	}
	if _, err = d.sizedU16(idModuleCookie); err != nil {
		return m, err
	}

	typeID, err := d.expect(idModuleProcedural, idModuleNonProc)
	if err != nil {
		return m, err
	}
	if _, err = d.u32(); err != nil {
		return m, err
	}

	for {
		id, err := d.expect(idModuleReadOnly, idModulePrivate, idModuleTerminator)
		if err != nil {
			return m, err
		}
		if _, err := d.u32(); err != nil {
			return m, err
		}
		switch id {
		case idModuleReadOnly:
			m.ReadOnly = true
		case idModulePrivate:
			m.Private = true
		default:
			m.Kind = decodedKind(typeID, m.Private)
			return m, nil
		}
	}
}

func decodedKind(typeID uint16, private bool) ModuleKind {
	switch {
	case typeID == idModuleProcedural:
		return StandardModule
	case private:
		return ClassModule
	default:
		return DocumentModule
	}
}
