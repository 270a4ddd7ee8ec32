package macho

import (
	"encoding/binary"
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestWriteHeaderFields(t *testing.T) {
	obj := &Object{
		Code: []byte{0x1f, 0x20, 0x03, 0xd5, 0xc0, 0x03, 0x5f, 0xd6},
		Symbols: []Symbol{
			{Name: "_main", Value: 0, Defined: true, Global: true},
		},
	}
	out := Write(obj)

	require.True(t, len(out) > 32)
	magic := binary.LittleEndian.Uint32(out[0:4])
	require.Equal(t, uint32(magic64), magic)

	cpuType := binary.LittleEndian.Uint32(out[4:8])
	require.Equal(t, uint32(cpuTypeArm64), cpuType)

	fileType := binary.LittleEndian.Uint32(out[12:16])
	require.Equal(t, uint32(mhObject), fileType)

	ncmds := binary.LittleEndian.Uint32(out[16:20])
	require.Equal(t, uint32(2), ncmds) // __TEXT segment + LC_SYMTAB
}

func TestRelocTypeEncoding(t *testing.T) {
	rtype, length, pcrel := Arm64Call.machoType()
	require.Equal(t, uint8(2), rtype)
	require.Equal(t, uint8(2), length)
	require.True(t, pcrel)

	rtype, _, pcrel = Abs8.machoType()
	require.Equal(t, uint8(0), rtype)
	require.False(t, pcrel)
}

func TestWriteSkipsRelocWithUnknownSymbol(t *testing.T) {
	obj := &Object{
		Code:   []byte{0x1f, 0x20, 0x03, 0xd5},
		Relocs: []Reloc{{Offset: 0, Symbol: "ghost", Type: Arm64Call}},
	}
	require.True(t, len(Write(obj)) > 0)
}

func TestPackRelocFields(t *testing.T) {
	packed := packReloc(4, 7, true, 2, true, 2)
	addr := int32(packed >> 32)
	info := uint32(packed)

	require.Equal(t, int32(4), addr)
	require.Equal(t, uint32(7), info&0xffffff)
	require.Equal(t, uint32(1), (info>>24)&1) // r_pcrel
	require.Equal(t, uint32(2), (info>>25)&3) // r_length
	require.Equal(t, uint32(1), (info>>27)&1) // r_extern
	require.Equal(t, uint32(2), (info>>28)&0xf)
}
