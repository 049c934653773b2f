package cfb

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
	"time"
	"unicode/utf16"
)

const (
	freeSect   uint32 = 0xFFFFFFFF
	endOfChain uint32 = 0xFFFFFFFE
	fatSect    uint32 = 0xFFFFFFFD
	difSect    uint32 = 0xFFFFFFFC
	noStream   uint32 = 0xFFFFFFFF

	headerDIFATEntries = 109
	fatEntriesPerSect  = SectorSize / 4
	difatEntriesPerSec = fatEntriesPerSect - 1
	dirEntriesPerSect  = SectorSize / DirEntrySize

	typeStorage = 1
	typeStream  = 2
	typeRoot    = 5
	colorBlack  = 1

	// filetimeEpochOffset is the number of 100ns intervals between 1601 and 1970.
	filetimeEpochOffset = 116444736000000000
)

// Signature identifies a compound file.
var Signature = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

type dirEntry struct {
	name       string
	objectType byte
	left       uint32
	right      uint32
	child      uint32
	created    uint64
	modified   uint64
	start      uint32
	size       uint64
	data       []byte
}

// sectorPlan records where each region of the file starts.
type sectorPlan struct {
	fatSectors   int
	difatSectors int
	dirStart     int
	dirSectors   int
	miniFATStart int
	miniFATSects int
	miniStart    int
	miniSectors  int
	total        int
}

// Bytes lays out the file and returns the complete container image.
func (f *File) Bytes() ([]byte, error) {
	now := filetime(f.clock())
	entries := f.flatten(now)

	var (
		miniFAT    []uint32
		miniStream []byte
		large      []*dirEntry
	)
	for _, e := range entries {
		if e.objectType != typeStream {
			continue
		}
		switch {
		case len(e.data) == 0:
			e.start = endOfChain
		case len(e.data) < MiniStreamCutoff:
			e.start = uint32(len(miniFAT))
			miniFAT = appendChain(miniFAT, len(miniFAT), ceilDiv(len(e.data), MiniSectorSize))
			miniStream = append(miniStream, e.data...)
			miniStream = append(miniStream, make([]byte, padding(len(e.data), MiniSectorSize))...)
		default:
			if uint64(len(e.data)) > math.MaxUint32 {
				return nil, fmt.Errorf("stream %q too large: %d bytes", e.name, len(e.data))
			}
			large = append(large, e)
		}
	}

	plan := sectorPlan{
		dirSectors:   ceilDiv(len(entries), dirEntriesPerSect),
		miniFATSects: ceilDiv(len(miniFAT), fatEntriesPerSect),
		miniSectors:  ceilDiv(len(miniStream), SectorSize),
	}
	largeSectors := 0
	for _, e := range large {
		largeSectors += ceilDiv(len(e.data), SectorSize)
	}
	plan.solveFAT(plan.dirSectors + plan.miniFATSects + plan.miniSectors + largeSectors)

	plan.dirStart = plan.fatSectors + plan.difatSectors
	plan.miniFATStart = plan.dirStart + plan.dirSectors
	plan.miniStart = plan.miniFATStart + plan.miniFATSects

	fat := make([]uint32, plan.fatSectors*fatEntriesPerSect)
	for i := range fat {
		fat[i] = freeSect
	}
	for i := 0; i < plan.fatSectors; i++ {
		fat[i] = fatSect
	}
	for i := 0; i < plan.difatSectors; i++ {
		fat[plan.fatSectors+i] = difSect
	}
	setChain(fat, plan.dirStart, plan.dirSectors)
	setChain(fat, plan.miniFATStart, plan.miniFATSects)
	setChain(fat, plan.miniStart, plan.miniSectors)

	root := entries[0]
	root.start, root.size = endOfChain, 0
	if plan.miniSectors > 0 {
		root.start = uint32(plan.miniStart)
		root.size = uint64(len(miniStream))
	}

	next := plan.miniStart + plan.miniSectors
	for _, e := range large {
		n := ceilDiv(len(e.data), SectorSize)
		e.start = uint32(next)
		setChain(fat, next, n)
		next += n
	}

	out := make([]byte, SectorSize*(plan.total+1))
	writeHeader(out[:SectorSize], &plan, len(miniFAT) > 0)

	for i := 0; i < plan.fatSectors; i++ {
		putUint32s(sector(out, i), fat[i*fatEntriesPerSect:(i+1)*fatEntriesPerSect])
	}
	writeDIFAT(out, &plan)

	dir := out[sectorOffset(plan.dirStart):sectorOffset(plan.dirStart+plan.dirSectors)]
	for i := 0; i < plan.dirSectors*dirEntriesPerSect; i++ {
		slot := dir[i*DirEntrySize : (i+1)*DirEntrySize]
		if i < len(entries) {
			encodeDirEntry(slot, entries[i])
		} else {
			encodeUnusedEntry(slot)
		}
	}

	if len(miniFAT) > 0 {
		table := make([]uint32, plan.miniFATSects*fatEntriesPerSect)
		for i := range table {
			table[i] = freeSect
		}
		copy(table, miniFAT)
		putUint32s(out[sectorOffset(plan.miniFATStart):], table)
		copy(out[sectorOffset(plan.miniStart):], miniStream)
	}

	for _, e := range large {
		copy(out[sectorOffset(int(e.start)):], e.data)
	}

	return out, nil
}

// WriteTo writes the container image to w.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	data, err := f.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	if err != nil {
		return int64(n), fmt.Errorf("write compound file: %w", err)
	}
	return int64(n), nil
}

// flatten assigns directory indices. Index 0 is the root; the children of
// every storage form a balanced binary tree ordered by compareNames.
func (f *File) flatten(now uint64) []*dirEntry {
	root := &dirEntry{
		name:       RootName,
		objectType: typeRoot,
		left:       noStream,
		right:      noStream,
		modified:   now,
	}
	entries := []*dirEntry{root}

	var walk func(s *Storage, parent *dirEntry)
	walk = func(s *Storage, parent *dirEntry) {
		first := len(entries)
		indices := make([]int, 0, len(s.entries))
		for _, child := range s.entries {
			e := &dirEntry{
				name:       child.name,
				objectType: typeStream,
				left:       noStream,
				right:      noStream,
				child:      noStream,
				size:       uint64(len(child.data)),
				data:       child.data,
			}
			if child.isStorage() {
				e.objectType = typeStorage
				e.created, e.modified = now, now
				e.size, e.data = 0, nil
			}
			indices = append(indices, len(entries))
			entries = append(entries, e)
		}

		slices.SortFunc(indices, func(a, b int) int {
			return compareNames(entries[a].name, entries[b].name)
		})
		parent.child = buildTree(entries, indices)

		for i, child := range s.entries {
			if child.isStorage() {
				walk(child.storage, entries[first+i])
			}
		}
	}
	walk(f.root, root)
	return entries
}

func buildTree(entries []*dirEntry, sorted []int) uint32 {
	if len(sorted) == 0 {
		return noStream
	}
	mid := len(sorted) / 2
	e := entries[sorted[mid]]
	e.left = buildTree(entries, sorted[:mid])
	e.right = buildTree(entries, sorted[mid+1:])
	return uint32(sorted[mid])
}

// solveFAT finds the number of FAT and DIFAT sectors needed to describe
// themselves plus the given data sectors.
func (p *sectorPlan) solveFAT(dataSectors int) {
	fatN, difN := 0, 0
	for {
		total := dataSectors + fatN + difN
		needFAT := ceilDiv(total, fatEntriesPerSect)
		needDIF := 0
		if needFAT > headerDIFATEntries {
			needDIF = ceilDiv(needFAT-headerDIFATEntries, difatEntriesPerSec)
		}
		if needFAT == fatN && needDIF == difN {
			break
		}
		fatN, difN = needFAT, needDIF
	}
	p.fatSectors, p.difatSectors = fatN, difN
	p.total = dataSectors + fatN + difN
}

func writeHeader(h []byte, p *sectorPlan, hasMiniFAT bool) {
	le := binary.LittleEndian
	copy(h[0:8], Signature[:])
	le.PutUint16(h[24:], 0x003E) // minor version
	le.PutUint16(h[26:], 0x0003) // major version
	le.PutUint16(h[28:], 0xFFFE) // byte order
	le.PutUint16(h[30:], 9)      // sector shift
	le.PutUint16(h[32:], 6)      // mini sector shift
	le.PutUint32(h[44:], uint32(p.fatSectors))
	le.PutUint32(h[48:], uint32(p.dirStart))
	le.PutUint32(h[56:], MiniStreamCutoff)

	le.PutUint32(h[60:], endOfChain)
	if hasMiniFAT {
		le.PutUint32(h[60:], uint32(p.miniFATStart))
	}
	le.PutUint32(h[64:], uint32(p.miniFATSects))

	le.PutUint32(h[68:], endOfChain)
	if p.difatSectors > 0 {
		le.PutUint32(h[68:], uint32(p.fatSectors))
	}
	le.PutUint32(h[72:], uint32(p.difatSectors))

	for i := 0; i < headerDIFATEntries; i++ {
		v := freeSect
		if i < p.fatSectors {
			v = uint32(i)
		}
		le.PutUint32(h[76+i*4:], v)
	}
}

func writeDIFAT(out []byte, p *sectorPlan) {
	next := headerDIFATEntries
	for d := 0; d < p.difatSectors; d++ {
		table := make([]uint32, fatEntriesPerSect)
		for i := 0; i < difatEntriesPerSec; i++ {
			table[i] = freeSect
			if next < p.fatSectors {
				table[i] = uint32(next)
				next++
			}
		}
		table[difatEntriesPerSec] = endOfChain
		if d+1 < p.difatSectors {
			table[difatEntriesPerSec] = uint32(p.fatSectors + d + 1)
		}
		putUint32s(sector(out, p.fatSectors+d), table)
	}
}

func encodeDirEntry(b []byte, e *dirEntry) {
	le := binary.LittleEndian
	name := utf16.Encode([]rune(e.name))
	for i, c := range name {
		le.PutUint16(b[i*2:], c)
	}
	le.PutUint16(b[64:], uint16((len(name)+1)*2))
	b[66] = e.objectType
	b[67] = colorBlack
	le.PutUint32(b[68:], e.left)
	le.PutUint32(b[72:], e.right)
	le.PutUint32(b[76:], e.child)
	le.PutUint64(b[100:], e.created)
	le.PutUint64(b[108:], e.modified)
	le.PutUint32(b[116:], e.start)
	le.PutUint64(b[120:], e.size)
}

func encodeUnusedEntry(b []byte) {
	le := binary.LittleEndian
	le.PutUint32(b[68:], noStream)
	le.PutUint32(b[72:], noStream)
	le.PutUint32(b[76:], noStream)
}

func appendChain(table []uint32, start, n int) []uint32 {
	for i := 0; i < n; i++ {
		if i == n-1 {
			table = append(table, endOfChain)
		} else {
			table = append(table, uint32(start+i+1))
		}
	}
	return table
}

func setChain(fat []uint32, start, n int) {
	for i := 0; i < n; i++ {
		if i == n-1 {
			fat[start+i] = endOfChain
		} else {
			fat[start+i] = uint32(start + i + 1)
		}
	}
}

func putUint32s(b []byte, values []uint32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
}

func sectorOffset(i int) int {
	return SectorSize * (i + 1)
}

func sector(out []byte, i int) []byte {
	return out[sectorOffset(i):sectorOffset(i+1)]
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

func padding(n, align int) int {
	return ceilDiv(n, align)*align - n
}

func filetime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100 + filetimeEpochOffset)
}
