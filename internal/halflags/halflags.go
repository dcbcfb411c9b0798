// Package halflags holds the small typed option structs SPEC_FULL.md
// §2.3 calls for: the liftover, summarize-mutations and mask-extract
// tools decode their flags once into one of these before reaching
// library code, rather than passing *string/*bool flag pointers straight
// into package APIs. hal-synteny and hal-validate read their few flags
// directly and have no struct here. Mirrors the teacher's own
// "parse once into a plain struct" split between cmd/bio-pamtool/cmd's
// flag declarations and the checksumOpts/viewFlags structs those flags
// populate in cmd/bio-pamtool/checksum.go and view.go.
package halflags

// LiftoverOpts mirrors liftover.Options' shape for flag decoding.
type LiftoverOpts struct {
	NoDupes          bool
	CoalescenceLimit int64
}

// MutationOpts mirrors mutations.Options' shape for flag decoding.
type MutationOpts struct {
	GapThreshold int64
	MaxNFraction float64
	JustSubs     bool
}

// MaskExtractOpts configures cmd/hal-mask-extract, grounded on
// original_source/mask/impl/halMaskExtractMain.cpp's --extend/--extendPct
// pair (mutually exclusive padding of each masked interval).
type MaskExtractOpts struct {
	Extend    int64
	ExtendPct float64
}
