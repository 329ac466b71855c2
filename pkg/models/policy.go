package models

// Policy is a declarative constraint set evaluated against intent
// parameters before submission. Every field is optional; an empty policy
// always passes. Policies are stateless and never mutated.
type Policy struct {
	// MaxAmountIn caps the input amount, as a decimal-integer string.
	MaxAmountIn string `json:"maxAmountIn,omitempty"`
	// AllowedSourceChains and AllowedDestChains restrict chains when
	// non-empty.
	AllowedSourceChains []string `json:"allowedSourceChains,omitempty"`
	AllowedDestChains   []string `json:"allowedDestChains,omitempty"`
	// AllowedTokensIn and AllowedTokensOut restrict tokens when non-empty.
	// Compared case-insensitively since hex addresses have no canonical
	// casing here.
	AllowedTokensIn  []string `json:"allowedTokensIn,omitempty"`
	AllowedTokensOut []string `json:"allowedTokensOut,omitempty"`
	// MaxDeadlineOffsetMs caps how far in the future a deadline may be,
	// in milliseconds from evaluation time. Zero means unlimited.
	MaxDeadlineOffsetMs int64 `json:"maxDeadlineOffsetMs,omitempty"`
}
