// Package macho writes relocatable Mach-O object files (MH_OBJECT) for
// the ARM64 macOS native target (§6.3: "Apple AArch64 variant"): a
// single anonymous __TEXT,__text section plus a symbol table, handed to
// the system linker (cc/ld) the same way internal/objfile/elf hands its
// ELF64 ET_REL output to cc/ld on Linux. Structs and constants are
// grounded on other_examples' xyproto/flapc macho.go (MachOHeader64,
// LoadCommand, SegmentCommand64, Section64, SymtabCommand, Nlist64);
// that file builds a fully linked MH_EXECUTE with __PAGEZERO, dyld load
// commands and chained fixups, none of which an MH_OBJECT needs -- an
// object file is one unnamed segment, one section, a symbol table, and
// nothing else, left for cc/ld to place and link.
package macho

import (
	"bytes"
	"encoding/binary"
)

const (
	magic64 = 0xfeedfacf // MH_MAGIC_64

	cpuTypeArm64     = 0x0100000c
	cpuSubtypeArmAll = 0x00000000

	mhObject = 0x1 // MH_OBJECT: relocatable, not linked

	lcSegment64 = 0x19
	lcSymtab    = 0x2

	vmProtRead  = 0x1
	vmProtWrite = 0x2
	vmProtExec  = 0x4

	sAttrPureInstructions = 0x80000000
	sAttrSomeInstructions = 0x00000400

	nUndf = 0x0
	nSect = 0xe
	nExt  = 0x1
)

// RelocType names a pending relocation using §4.5.6's MachReloc
// vocabulary, mirroring internal/objfile/elf.RelocType. Only the four
// kinds the ARM64 ISA emits are meaningful here -- the x86-64 backend's
// relocations only ever target ELF (§6.3 names no x86-64 Mach-O path).
type RelocType int

const (
	Abs8 RelocType = iota
	Arm64Call
	AdrPrelPgHi21
	AddAbsLo12Nc
)

func (t RelocType) machoType() (rtype uint8, length uint8, pcrel bool) {
	switch t {
	case Arm64Call:
		return 2, 2, true // ARM64_RELOC_BRANCH26, 4 bytes, PC-relative
	case AdrPrelPgHi21:
		return 3, 2, true // ARM64_RELOC_PAGE21
	case AddAbsLo12Nc:
		return 4, 2, false // ARM64_RELOC_PAGEOFF12
	default:
		return 0, 3, false // ARM64_RELOC_UNSIGNED, 8 bytes, absolute
	}
}

// Reloc is one relocation against Code, naming the symbol (by its Name
// in Symbols) the linker must resolve it against. Write drops a Reloc
// whose Symbol matches no entry in Symbols.
type Reloc struct {
	Offset uint64
	Symbol string
	Type   RelocType
}

// Symbol is a .text-relative defined symbol or an external, undefined
// one a Reloc refers to -- the same shape as elf.Symbol.
type Symbol struct {
	Name    string
	Value   uint64
	Defined bool
	Global  bool
}

// Object is the input to Write.
type Object struct {
	Code    []byte
	Symbols []Symbol
	Relocs  []Reloc
}

type machHeader64 struct {
	Magic      uint32
	CPUType    uint32
	CPUSubtype uint32
	FileType   uint32
	NCmds      uint32
	SizeOfCmds uint32
	Flags      uint32
	Reserved   uint32
}

type segmentCommand64 struct {
	Cmd      uint32
	CmdSize  uint32
	SegName  [16]byte
	VMAddr   uint64
	VMSize   uint64
	FileOff  uint64
	FileSize uint64
	MaxProt  uint32
	InitProt uint32
	NSects   uint32
	Flags    uint32
}

type section64 struct {
	SectName  [16]byte
	SegName   [16]byte
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     uint32
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32
}

type symtabCommand struct {
	Cmd     uint32
	CmdSize uint32
	Symoff  uint32
	Nsyms   uint32
	Stroff  uint32
	Strsize uint32
}

type nlist64 struct {
	Nstrx  uint32
	Ntype  uint8
	Nsect  uint8
	Ndesc  uint16
	Nvalue uint64
}

// relocationInfo is Mach-O's on-disk relocation_info, packed by hand
// since its bitfields (r_symbolnum:24, r_pcrel:1, r_length:2,
// r_extern:1, r_type:4) don't map onto a plain Go struct.
func packReloc(addr int32, symbolNum uint32, pcrel bool, length uint8, extern bool, rtype uint8) uint64 {
	var info uint32
	info = symbolNum & 0xffffff
	if pcrel {
		info |= 1 << 24
	}
	info |= uint32(length&0x3) << 25
	if extern {
		info |= 1 << 27
	}
	info |= uint32(rtype&0xf) << 28
	return uint64(uint32(addr))<<32 | uint64(info)
}

func name16(s string) [16]byte {
	var out [16]byte
	copy(out[:], s)
	return out
}

// Write encodes obj as a complete Mach-O ARM64 MH_OBJECT file.
func Write(obj *Object) []byte {
	strtab := []byte{0}
	symbolIndex := map[string]uint32{}
	var syms []nlist64

	addSym := func(name string, value uint64, defined, global bool) uint32 {
		idx := uint32(len(syms))
		strOff := uint32(len(strtab))
		strtab = append(strtab, name...)
		strtab = append(strtab, 0)

		ntype := uint8(nUndf)
		nsect := uint8(0)
		if defined {
			ntype = nSect
			nsect = 1
		}
		if global || !defined {
			ntype |= nExt
		}
		syms = append(syms, nlist64{Nstrx: strOff, Ntype: ntype, Nsect: nsect, Nvalue: value})
		symbolIndex[name] = idx
		return idx
	}
	for _, sym := range obj.Symbols {
		addSym(sym.Name, sym.Value, sym.Defined, sym.Global)
	}

	var relocBuf bytes.Buffer
	for _, r := range obj.Relocs {
		symIdx, ok := symbolIndex[r.Symbol]
		if !ok {
			continue
		}
		rtype, length, pcrel := r.Type.machoType()
		packed := packReloc(int32(r.Offset), symIdx, pcrel, length, true, rtype)
		binary.Write(&relocBuf, binary.LittleEndian, uint32(packed>>32))
		binary.Write(&relocBuf, binary.LittleEndian, uint32(packed))
	}

	const (
		headerSize  = 32
		segCmdSize  = 72
		sectCmdSize = 80
		symtabSize  = 24
	)
	ncmds := uint32(2) // __TEXT segment, LC_SYMTAB
	sizeOfCmds := uint32(segCmdSize + sectCmdSize + symtabSize)
	fileHeaderSize := uint32(headerSize) + sizeOfCmds

	textOff := fileHeaderSize
	relocOff := textOff + uint32(len(obj.Code))
	symOff := relocOff + uint32(relocBuf.Len())
	strOff := symOff + uint32(len(syms))*16

	var out bytes.Buffer
	hdr := machHeader64{
		Magic:      magic64,
		CPUType:    cpuTypeArm64,
		CPUSubtype: cpuSubtypeArmAll,
		FileType:   mhObject,
		NCmds:      ncmds,
		SizeOfCmds: sizeOfCmds,
	}
	binary.Write(&out, binary.LittleEndian, hdr)

	seg := segmentCommand64{
		Cmd:      lcSegment64,
		CmdSize:  segCmdSize + sectCmdSize,
		SegName:  name16(""),
		FileOff:  uint64(textOff),
		FileSize: uint64(len(obj.Code)),
		MaxProt:  vmProtRead | vmProtWrite | vmProtExec,
		InitProt: vmProtRead | vmProtExec,
		NSects:   1,
	}
	binary.Write(&out, binary.LittleEndian, seg)

	sect := section64{
		SectName: name16("__text"),
		SegName:  name16("__TEXT"),
		Size:     uint64(len(obj.Code)),
		Offset:   textOff,
		Align:    2,
		Reloff:   relocOff,
		Nreloc:   uint32(relocBuf.Len() / 8),
		Flags:    sAttrPureInstructions | sAttrSomeInstructions,
	}
	binary.Write(&out, binary.LittleEndian, sect)

	symtab := symtabCommand{
		Cmd:     lcSymtab,
		CmdSize: symtabSize,
		Symoff:  symOff,
		Nsyms:   uint32(len(syms)),
		Stroff:  strOff,
		Strsize: uint32(len(strtab)),
	}
	binary.Write(&out, binary.LittleEndian, symtab)

	out.Write(obj.Code)
	out.Write(relocBuf.Bytes())
	for _, s := range syms {
		binary.Write(&out, binary.LittleEndian, s)
	}
	out.Write(strtab)

	return out.Bytes()
}
