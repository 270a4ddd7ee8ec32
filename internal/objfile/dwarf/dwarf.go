// Package dwarf builds the minimal DWARF4 a native compile needs
// (§4.5.6): a .debug_line line-number program plus just enough of
// .debug_abbrev/.debug_info to wrap it in a loadable compile unit --
// source debugging beyond line tables is a spec.md non-goal, so nothing
// past what a debugger needs to resolve an address to a file:line is
// built here. No example repo in the pack writes DWARF (the hits are
// all stdlib debug/dwarf readers), so the line-number program's opcode
// encoding follows the DWARF4 standard directly, using the LINE_BASE,
// LINE_RANGE and OPCODE_BASE constants spec §4.5.6 names; the
// byte-buffer-and-uleb128 writing style still follows the rest of this
// tree's object writers (internal/objfile/elf, internal/leb128).
package dwarf

import (
	"bytes"
	"encoding/binary"

	"github.com/cot-lang/cotc/internal/leb128"
)

const (
	lineBase   = -4
	lineRange  = 10
	opcodeBase = 11

	dwLNSCopy        = 1
	dwLNSAdvancePC   = 2
	dwLNSAdvanceLine = 3
	dwLNSSetFile     = 4
	dwLNSSetColumn   = 5
	dwLNEEndSequence = 1
	dwLNESetAddress  = 2
)

// Row is one row of the line-number matrix: the address of the first
// instruction for (File, Line, Col).
type Row struct {
	Address uint64
	File    int // 1-based index into Files
	Line    int
	Col     int
}

// LineTable holds the inputs to a DWARF4 .debug_line program.
type LineTable struct {
	CompDir string
	Files   []string // relative to CompDir
	Rows    []Row
	LowPC   uint64
	HighPC  uint64
}

// specialOpcode returns the DWARF4 special opcode encoding a given
// (address advance, line advance) pair, or 0 and false if it can't be
// represented in one byte and must fall back to the standard opcodes.
func specialOpcode(addrAdvance uint64, lineAdvance int) (byte, bool) {
	if lineAdvance < lineBase || lineAdvance >= lineBase+lineRange {
		return 0, false
	}
	opcode := (lineAdvance-lineBase) + lineRange*int(addrAdvance) + opcodeBase
	if opcode < opcodeBase || opcode > 255 {
		return 0, false
	}
	return byte(opcode), true
}

// buildProgram encodes t's line-number program (the body following the
// header) per the DWARF4 state machine.
func buildProgram(t *LineTable) []byte {
	var buf bytes.Buffer

	buf.WriteByte(0) // extended opcode
	buf.Write(leb128.EncodeUint64(1 + 8))
	buf.WriteByte(dwLNESetAddress)
	binary.Write(&buf, binary.LittleEndian, t.LowPC)

	curAddr := t.LowPC
	curLine := 1
	curFile := 1

	for _, r := range t.Rows {
		if r.File != curFile {
			buf.WriteByte(dwLNSSetFile)
			buf.Write(leb128.EncodeUint64(uint64(r.File)))
			curFile = r.File
		}
		if r.Col != 0 {
			buf.WriteByte(dwLNSSetColumn)
			buf.Write(leb128.EncodeUint64(uint64(r.Col)))
		}

		addrAdvance := r.Address - curAddr
		lineAdvance := r.Line - curLine

		if op, ok := specialOpcode(addrAdvance, lineAdvance); ok {
			buf.WriteByte(op)
		} else {
			if lineAdvance != 0 {
				buf.WriteByte(dwLNSAdvanceLine)
				buf.Write(leb128.EncodeInt64(int64(lineAdvance)))
			}
			if addrAdvance != 0 {
				buf.WriteByte(dwLNSAdvancePC)
				buf.Write(leb128.EncodeUint64(addrAdvance))
			}
			buf.WriteByte(dwLNSCopy)
		}

		curAddr = r.Address
		curLine = r.Line
	}

	endAdvance := t.HighPC - curAddr
	if endAdvance != 0 {
		buf.WriteByte(dwLNSAdvancePC)
		buf.Write(leb128.EncodeUint64(endAdvance))
	}
	buf.WriteByte(0) // extended opcode
	buf.Write(leb128.EncodeUint64(1))
	buf.WriteByte(dwLNEEndSequence)

	return buf.Bytes()
}

// stdOpcodeLengths is the number of ULEB128 operands each standard
// opcode (1..opcodeBase-1) takes, per the DWARF4 header's
// standard_opcode_lengths array.
var stdOpcodeLengths = []byte{0, 1, 1, 1, 1, 0, 0, 0, 1, 0}

// WriteDebugLine encodes t as a complete .debug_line section: DWARF4
// header (unit length, version, header length, the opcode-base table,
// include-directories and file-name tables) followed by the
// line-number program.
func WriteDebugLine(t *LineTable) []byte {
	program := buildProgram(t)

	var header bytes.Buffer
	header.WriteByte(4) // minimum_instruction_length
	header.WriteByte(1) // default_is_stmt
	lb := int8(lineBase)
	header.WriteByte(byte(lb)) // line_base, a signed byte
	header.WriteByte(lineRange)
	header.WriteByte(opcodeBase)
	header.Write(stdOpcodeLengths)

	header.WriteByte(0) // include_directories: none beyond comp_dir

	for _, f := range t.Files {
		header.WriteString(f)
		header.WriteByte(0)
		header.Write(leb128.EncodeUint64(0)) // directory index
		header.Write(leb128.EncodeUint64(0)) // mtime
		header.Write(leb128.EncodeUint64(0)) // length
	}
	header.WriteByte(0) // file_names terminator

	var unit bytes.Buffer
	binary.Write(&unit, binary.LittleEndian, uint16(4)) // version
	binary.Write(&unit, binary.LittleEndian, uint32(header.Len()))
	unit.Write(header.Bytes())
	unit.Write(program)

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, uint32(unit.Len()))
	out.Write(unit.Bytes())
	return out.Bytes()
}

// WriteCompileUnit emits the smallest .debug_abbrev/.debug_info pair
// that makes the .debug_line program above loadable as a standalone
// DWARF4 unit: one abbreviation (DW_TAG_compile_unit with DW_AT_name,
// DW_AT_comp_dir, DW_AT_low_pc, DW_AT_high_pc and DW_AT_stmt_list) and
// one DIE using it.
func WriteCompileUnit(t *LineTable, name string) (abbrev, info []byte) {
	const (
		dwTagCompileUnit = 0x11
		dwChildrenNo     = 0
		dwAtName         = 0x03
		dwAtCompDir      = 0x1b
		dwAtLowPC        = 0x11
		dwAtHighPC       = 0x12
		dwAtStmtList     = 0x10
		dwFormString     = 0x08
		dwFormAddr       = 0x01
		dwFormData8      = 0x07
		dwFormSecOffset  = 0x17
	)

	var ab bytes.Buffer
	ab.Write(leb128.EncodeUint64(1)) // abbrev code 1
	ab.Write(leb128.EncodeUint64(dwTagCompileUnit))
	ab.WriteByte(dwChildrenNo)
	ab.Write(leb128.EncodeUint64(dwAtName))
	ab.Write(leb128.EncodeUint64(dwFormString))
	ab.Write(leb128.EncodeUint64(dwAtCompDir))
	ab.Write(leb128.EncodeUint64(dwFormString))
	ab.Write(leb128.EncodeUint64(dwAtLowPC))
	ab.Write(leb128.EncodeUint64(dwFormAddr))
	ab.Write(leb128.EncodeUint64(dwAtHighPC))
	ab.Write(leb128.EncodeUint64(dwFormData8))
	ab.Write(leb128.EncodeUint64(dwAtStmtList))
	ab.Write(leb128.EncodeUint64(dwFormSecOffset))
	ab.WriteByte(0) // end of attribute list
	ab.WriteByte(0)
	ab.WriteByte(0) // null terminator for the abbreviation table

	var die bytes.Buffer
	die.Write(leb128.EncodeUint64(1)) // abbrev code 1
	die.WriteString(name)
	die.WriteByte(0)
	die.WriteString(t.CompDir)
	die.WriteByte(0)
	binary.Write(&die, binary.LittleEndian, t.LowPC)
	binary.Write(&die, binary.LittleEndian, t.HighPC-t.LowPC)
	binary.Write(&die, binary.LittleEndian, uint32(0)) // DW_AT_stmt_list: offset 0 into .debug_line

	var cu bytes.Buffer
	binary.Write(&cu, binary.LittleEndian, uint16(4)) // version
	binary.Write(&cu, binary.LittleEndian, uint32(0))  // abbrev offset
	cu.WriteByte(8)                                    // address_size
	cu.Write(die.Bytes())

	var infoOut bytes.Buffer
	binary.Write(&infoOut, binary.LittleEndian, uint32(cu.Len()))
	infoOut.Write(cu.Bytes())

	return ab.Bytes(), infoOut.Bytes()
}
