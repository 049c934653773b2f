package vba

import "encoding/binary"

// Dir stream record identifiers.
const (
	idSysKind        uint16 = 0x0001
	idLCID           uint16 = 0x0002
	idCodePage       uint16 = 0x0003
	idName           uint16 = 0x0004
	idDocString      uint16 = 0x0005
	idHelpFilePath   uint16 = 0x0006
	idHelpContext    uint16 = 0x0007
	idLibFlags       uint16 = 0x0008
	idVersion        uint16 = 0x0009
	idConstants      uint16 = 0x000C
	idLCIDInvoke     uint16 = 0x0014
	idCompatVersion  uint16 = 0x004A
	idDocStringUni   uint16 = 0x0040
	idHelpFilePath2  uint16 = 0x003D
	idConstantsUni   uint16 = 0x003C
	idDirTerminator  uint16 = 0x0010
	idProjectModules uint16 = 0x000F
	idProjectCookie  uint16 = 0x0013

	idReferenceName     uint16 = 0x0016
	idReferenceNameUni  uint16 = 0x003E
	idReferenceRegister uint16 = 0x000D
	idReferenceProject  uint16 = 0x000E
	idReferenceControl  uint16 = 0x002F
	idReferenceExtended uint16 = 0x0030
	idReferenceOriginal uint16 = 0x0033

	idModuleName        uint16 = 0x0019
	idModuleNameUni     uint16 = 0x0047
	idModuleStreamName  uint16 = 0x001A
	idModuleStreamUni   uint16 = 0x0032
	idModuleDocString   uint16 = 0x001C
	idModuleDocUni      uint16 = 0x0048
	idModuleOffset      uint16 = 0x0031
	idModuleHelpContext uint16 = 0x001E
	idModuleCookie      uint16 = 0x002C
	idModuleProcedural  uint16 = 0x0021
	idModuleNonProc     uint16 = 0x0022
	idModuleReadOnly    uint16 = 0x0025
	idModulePrivate     uint16 = 0x0028
	idModuleTerminator  uint16 = 0x002B
)

const cookieValue uint16 = 0xFFFF

// recordBuffer appends little-endian records to a growing byte slice.
type recordBuffer struct {
	b []byte
}

func (w *recordBuffer) u16(v uint16) {
	w.b = binary.LittleEndian.AppendUint16(w.b, v)
}

func (w *recordBuffer) u32(v uint32) {
	w.b = binary.LittleEndian.AppendUint32(w.b, v)
}

func (w *recordBuffer) raw(p []byte) {
	w.b = append(w.b, p...)
}

// sized appends id, a 32-bit length and the payload.
func (w *recordBuffer) sized(id uint16, payload []byte) {
	w.u16(id)
	w.u32(uint32(len(payload)))
	w.raw(payload)
}

// dual appends an ANSI record followed by its UTF-16 companion.
func (w *recordBuffer) dual(id uint16, ansi []byte, uniID uint16, uni []byte) {
	w.sized(id, ansi)
	w.sized(uniID, uni)
}

func (w *recordBuffer) sizedU32(id uint16, v uint32) {
	w.u16(id)
	w.u32(4)
	w.u32(v)
}

func (w *recordBuffer) sizedU16(id uint16, v uint16) {
	w.u16(id)
	w.u32(2)
	w.u16(v)
}

// reserved appends an id followed by a zero 32-bit reserved field.
func (w *recordBuffer) reserved(id uint16) {
	w.u16(id)
	w.u32(0)
}

func (w *recordBuffer) bytes() []byte {
	return w.b
}
