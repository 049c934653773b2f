package vba

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/goopsie/vbamc/pkg/compression"
	"github.com/goopsie/vbamc/pkg/encryption"
)

// Container stream and storage names.
const (
	ProjectStreamName   = "PROJECT"
	ProjectWmStreamName = "PROJECTwm"
	StorageName         = "VBA"
	VBAProjectName      = "_VBA_PROJECT"
	DirStreamName       = "dir"
)

const (
	// VersionCompatible32 is the fixed PROJECT stream compatibility value.
	VersionCompatible32 = "393222000"

	hostExtenderVBE = "&H00000001={3832D640-CF90-11CF-8E43-00A0C911005A};VBE;&H00000000"
)

// Payloads encrypted into the CMG, DPB and GC properties.
var (
	unprotectedState = []byte{0x00, 0x00, 0x00, 0x00}
	noPassword       = []byte{0x00}
	visibleState     = []byte{0xFF}
	hiddenState      = []byte{0x00}
)

// VBAProjectStream returns the _VBA_PROJECT stream content: reserved 0x61CC,
// version 0xFFFF and three reserved zero bytes. Office rebuilds the
// performance cache on first load.
func VBAProjectStream() []byte {
	return []byte{0xCC, 0x61, 0xFF, 0xFF, 0x00, 0x00, 0x00}
}

// BuildProjectStream returns the PROJECT stream text. Module lines are in
// kind order. Every encrypted property draws a fresh seed from src.
func BuildProjectStream(p *Project, enc *Encoding, src encryption.Source) ([]byte, error) {
	if err := p.Validate(enc); err != nil {
		return nil, err
	}

	id := p.IDString()
	visibility := visibleState
	if p.Hidden {
		visibility = hiddenState
	}

	cmg, err := encryption.EncryptHex(id, unprotectedState, src)
	if err != nil {
		return nil, fmt.Errorf("encrypt protection state: %w", err)
	}
	dpb, err := encryption.EncryptHex(id, noPassword, src)
	if err != nil {
		return nil, fmt.Errorf("encrypt password: %w", err)
	}
	gc, err := encryption.EncryptHex(id, visibility, src)
	if err != nil {
		return nil, fmt.Errorf("encrypt visibility state: %w", err)
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	line(`ID="%s"`, id)
	for _, m := range p.SortedModules() {
		name := m.Name
		if m.Kind == DocumentModule {
			name += "/&H00000000"
		}
		line("%s=%s", m.Kind, name)
	}
	line(`Name="%s"`, p.Name)
	line(`HelpContextID="0"`)
	line(`VersionCompatible32="%s"`, VersionCompatible32)
	line(`CMG="%s"`, cmg)
	line(`DPB="%s"`, dpb)
	line(`GC="%s"`, gc)
	line("")
	line("[Host Extender Info]")
	line(hostExtenderVBE)

	return enc.ANSI(b.String()), nil
}

// ProjectProperties holds the parsed key/value lines of a PROJECT stream.
type ProjectProperties struct {
	ID         string
	Name       string
	Modules    []Module
	Properties map[string]string
}

// ParseProjectStream reads the properties section of a PROJECT stream.
// Module entries carry name and kind only.
func ParseProjectStream(data []byte, enc *Encoding) (*ProjectProperties, error) {
	text, err := enc.DecodeANSI(data)
	if err != nil {
		return nil, err
	}

	props := &ProjectProperties{Properties: map[string]string{}}
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		l := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(l, "[") {
			break
		}
		key, value, ok := strings.Cut(l, "=")
		if !ok {
			continue
		}

		switch key {
		case "Module", "Class", "Document":
			kind, err := ParseModuleKind(key)
			if err != nil {
				return nil, err
			}
			name, _, _ := strings.Cut(value, "/")
			props.Modules = append(props.Modules, Module{Name: name, Kind: kind})
		default:
			props.Properties[key] = strings.Trim(value, `"`)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan project stream: %w", err)
	}

	props.ID = props.Properties["ID"]
	props.Name = props.Properties["Name"]
	return props, nil
}

// Visible decrypts the GC property.
func (p *ProjectProperties) Visible() (bool, error) {
	gc, err := encryption.DecryptHex(p.ID, p.Properties["GC"])
	if err != nil {
		return false, fmt.Errorf("decrypt GC: %w", err)
	}
	return bytes.Equal(gc, visibleState), nil
}

// BuildModuleNameTable returns the PROJECTwm stream for the given names:
// each name in code page bytes and UTF-16, both NUL terminated, then a
// final two-byte terminator.
func BuildModuleNameTable(names []string, enc *Encoding) []byte {
	var out []byte
	for _, name := range names {
		out = append(out, enc.ANSI(name)...)
		out = append(out, 0x00)
		out = append(out, UTF16(name)...)
		out = append(out, 0x00, 0x00)
	}
	return append(out, 0x00, 0x00)
}

// ParseModuleNameTable reverses BuildModuleNameTable.
func ParseModuleNameTable(data []byte) ([]string, error) {
	var names []string
	for pos := 0; ; {
		if pos+2 > len(data) {
			return nil, fmt.Errorf("%w: PROJECTwm missing terminator", ErrMalformed)
		}
		if data[pos] == 0 && data[pos+1] == 0 {
			return names, nil
		}

		end := bytes.IndexByte(data[pos:], 0)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated PROJECTwm name", ErrMalformed)
		}
		pos += end + 1

		start := pos
		for pos+1 < len(data) && (data[pos] != 0 || data[pos+1] != 0) {
			pos += 2
		}
		if pos+1 >= len(data) {
			return nil, fmt.Errorf("%w: unterminated PROJECTwm unicode name", ErrMalformed)
		}
		name, err := DecodeUTF16(data[start:pos])
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		pos += 2
	}
}

const standardHeader = "Attribute VB_Name = \"%s\"\r\n\r\n"

const classHeader = "Attribute VB_Name = \"%s\"\r\n" +
	"Attribute VB_Base = \"0{FCFB3D2A-A0FA-1068-A738-08002B3371B5}\"\r\n" +
	"Attribute VB_GlobalNameSpace = False\r\n" +
	"Attribute VB_Creatable = False\r\n" +
	"Attribute VB_PredeclaredId = False\r\n" +
	"Attribute VB_Exposed = False\r\n" +
	"Attribute VB_TemplateDerived = False\r\n" +
	"Attribute VB_Customizable = False\r\n" +
	"\r\n"

const documentHeader = "Attribute VB_Name = \"%s\"\r\n" +
	"Attribute VB_Base = \"1Normal.ThisDocument\"\r\n" +
	"Attribute VB_GlobalNameSpace = False\r\n" +
	"Attribute VB_Creatable = False\r\n" +
	"Attribute VB_PredeclaredId = True\r\n" +
	"Attribute VB_Exposed = True\r\n" +
	"Attribute VB_TemplateDerived = True\r\n" +
	"Attribute VB_Customizable = True\r\n" +
	"\r\n"

// RenderSource prepends the attribute header for the module kind.
func RenderSource(m Module) (string, error) {
	var header string
	switch m.Kind {
	case StandardModule:
		header = standardHeader
	case ClassModule:
		header = classHeader
	case DocumentModule:
		header = documentHeader
	default:
		return "", fmt.Errorf("render module %q: %w: %d", m.Name, ErrUnsupportedKind, int(m.Kind))
	}
	return fmt.Sprintf(header, m.Name) + m.Source, nil
}

// EncodeModule renders the module, encodes it in the code page and
// compresses it into the module stream content.
func EncodeModule(m Module, enc *Encoding) ([]byte, error) {
	src, err := RenderSource(m)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := compression.NewWriter(&buf)
	if _, err := w.Write(enc.ANSI(src)); err != nil {
		return nil, fmt.Errorf("compress module %q: %w", m.Name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress module %q: %w", m.Name, err)
	}
	return buf.Bytes(), nil
}
