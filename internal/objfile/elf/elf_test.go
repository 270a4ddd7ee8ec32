package elf

import (
	"encoding/binary"
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestWriteHeaderFields(t *testing.T) {
	obj := &Object{
		Machine: MachineX86_64,
		Code:    []byte{0x90, 0x90, 0xc3},
		Symbols: []Symbol{
			{Name: "main", Value: 0, Size: 3, Defined: true, Global: true},
		},
	}
	out := Write(obj)

	require.True(t, len(out) > 64)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, out[:4])
	require.Equal(t, byte(2), out[4]) // ELFCLASS64
	require.Equal(t, byte(1), out[5]) // ELFDATA2LSB

	etype := binary.LittleEndian.Uint16(out[16:18])
	require.Equal(t, uint16(1), etype) // ET_REL

	machine := binary.LittleEndian.Uint16(out[18:20])
	require.Equal(t, uint16(MachineX86_64), machine)
}

func TestWriteEmbedsCode(t *testing.T) {
	code := []byte{0xde, 0xad, 0xbe, 0xef}
	obj := &Object{Machine: MachineAArch64, Code: code}
	out := Write(obj)

	// .text immediately follows the 64-byte ELF header.
	require.Equal(t, code, out[64:68])
}

func TestWriteWithDebugLine(t *testing.T) {
	obj := &Object{
		Machine:   MachineX86_64,
		Code:      []byte{0x90},
		DebugLine: []byte{0x01, 0x02, 0x03},
	}
	withDebug := Write(obj)

	obj.DebugLine = nil
	withoutDebug := Write(obj)

	require.True(t, len(withDebug) > len(withoutDebug))
}

func TestRelocTypeNumericCodes(t *testing.T) {
	require.Equal(t, uint32(2), X86PCRel4.elfType(MachineX86_64))
	require.Equal(t, uint32(4), X86CallPLTRel4.elfType(MachineX86_64))
	require.Equal(t, uint32(1), Abs8.elfType(MachineX86_64))
	require.Equal(t, uint32(257), Abs8.elfType(MachineAArch64))
	require.Equal(t, uint32(283), Arm64Call.elfType(MachineAArch64))
	require.Equal(t, uint32(275), AdrPrelPgHi21.elfType(MachineAArch64))
	require.Equal(t, uint32(277), AddAbsLo12Nc.elfType(MachineAArch64))
}

func TestWriteSkipsRelocWithUnknownSymbol(t *testing.T) {
	obj := &Object{
		Machine: MachineX86_64,
		Code:    []byte{0x90, 0x90, 0x90, 0x90},
		Relocs: []Reloc{
			{Offset: 1, Symbol: "nonexistent", Type: X86PCRel4},
		},
	}
	// Must not panic despite the dangling relocation.
	require.True(t, len(Write(obj)) > 0)
}
