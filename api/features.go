// Package api holds the small set of types a cot compilation unit's
// public surface needs regardless of backend target.
package api

// CoreFeatures is a bit flag of WebAssembly core spec features the
// decoder and frontend may assume are available. cot always targets a
// fixed, modern feature set (no staged opt-in), but the flag type is kept
// so internal/wasm2clif can share its block-type decoding logic with the
// upstream algorithm it is grounded on.
type CoreFeatures uint64

const (
	// CoreFeatureMultiValue allows block/if/loop types with more than one
	// result, and function types with more than one result.
	CoreFeatureMultiValue CoreFeatures = 1 << iota
	// CoreFeatureSignExtensionOps enables the i32/i64 sign-extension
	// instructions used by cot's @intCast/@truncate lowering.
	CoreFeatureSignExtensionOps
	// CoreFeatureNonTrappingFloatToIntConversion enables the saturating
	// float-to-int conversion opcodes.
	CoreFeatureNonTrappingFloatToIntConversion

	// CoreFeaturesV2 is the feature set cot always compiles against:
	// multi-value, sign-extension ops and non-trapping float-to-int
	// conversion. It does not include bulk memory, reference types, SIMD
	// or threads. cot's concurrency model is single-threaded (see spec
	// §5), so the threads proposal
	// (shared memory, atomics) is never enabled - there is no
	// CoreFeatureThreads constant in this package.
	CoreFeaturesV2 = CoreFeatureMultiValue | CoreFeatureSignExtensionOps | CoreFeatureNonTrappingFloatToIntConversion
)

// IsEnabled returns true if all bits of f are set in c.
func (c CoreFeatures) IsEnabled(f CoreFeatures) bool {
	return c&f == f
}

// String implements fmt.Stringer.
func (c CoreFeatures) String() string {
	switch c {
	case CoreFeaturesV2:
		return "2.0"
	default:
		return "custom"
	}
}
