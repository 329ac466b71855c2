package models

// Quote is the routing aggregator's answer for a set of intent
// parameters. When the aggregator is unreachable the client synthesizes a
// deterministic fallback quote instead of raising: Fallback is set and
// AmountOut echoes the caller's minimum.
type Quote struct {
	AmountOut   string    `json:"amountOut"`
	Route       []string  `json:"route,omitempty"`
	EstimatedMs int64     `json:"estimatedMs,omitempty"`
	Fallback    *Fallback `json:"fallback,omitempty"`
}

// IsFallback reports whether the quote was synthesized locally.
func (q *Quote) IsFallback() bool {
	return q != nil && q.Fallback != nil
}
