// Package platform isolates the handful of host-specific facts the native
// backend needs: which x86-64 extensions the build target may assume.
//
// cotc never executes the code it emits, so unlike a JIT this package does
// not need page-permission or mmap helpers - only instruction-selection
// feature gating survives from that concern.
package platform

import "golang.org/x/sys/cpu"

// CpuFeature is a bit flag for a base x86-64 feature set used to decide
// whether an instruction selection rule is legal on the host running the
// compiler (used when cross-compilation is not requested and cotc assumes
// "compile for this machine").
type CpuFeature uint64

// CpuFeatureFlags abstracts over CpuFeature queries so tests can substitute
// a fixed flag set without depending on the real host CPU.
type CpuFeatureFlags interface {
	// Has returns true if the base feature is supported.
	Has(flag CpuFeature) bool
	// HasExtra returns true if the extended feature is supported.
	HasExtra(flag CpuFeature) bool
	// Raw returns the raw feature bits, for debugging/format output.
	Raw() uint64
}

const (
	CpuFeatureAmd64SSE3 CpuFeature = 1 << iota
	CpuFeatureAmd64SSE4_1
	CpuFeatureAmd64SSE4_2
)

const (
	// CpuExtraFeatureAmd64ABM is the advanced-bit-manipulation extension
	// group (LZCNT/POPCNT), gating the single-instruction lowering of
	// clz/ctz/popcnt on amd64; see machine.go's lowering of IPopcnt et al.
	CpuExtraFeatureAmd64ABM CpuFeature = 1 << iota
)

type hostCpuFeatureFlags struct{}

func (hostCpuFeatureFlags) Has(flag CpuFeature) bool {
	switch flag {
	case CpuFeatureAmd64SSE3:
		return cpu.X86.HasSSE3
	case CpuFeatureAmd64SSE4_1:
		return cpu.X86.HasSSE41
	case CpuFeatureAmd64SSE4_2:
		return cpu.X86.HasSSE42
	default:
		return false
	}
}

func (hostCpuFeatureFlags) HasExtra(flag CpuFeature) bool {
	switch flag {
	case CpuExtraFeatureAmd64ABM:
		return cpu.X86.HasLZCNT && cpu.X86.HasPOPCNT
	default:
		return false
	}
}

func (hostCpuFeatureFlags) Raw() uint64 { return 0 }

// CpuFeatures is the CpuFeatureFlags for the machine currently running the
// compiler. Cross-compiling builds should construct an explicit
// CpuFeatureFlags for the target instead of using this package variable.
var CpuFeatures CpuFeatureFlags = hostCpuFeatureFlags{}
