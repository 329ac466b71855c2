package models

// ChannelStatus is the status of a state channel as reported by the
// clearnode.
type ChannelStatus string

const (
	ChannelVoid    ChannelStatus = "VOID"
	ChannelInitial ChannelStatus = "INITIAL"
	ChannelActive  ChannelStatus = "ACTIVE"
	ChannelDispute ChannelStatus = "DISPUTE"
	ChannelFinal   ChannelStatus = "FINAL"
)

// StateIntent is the intent encoded in a channel state update.
type StateIntent string

const (
	StateInitialize StateIntent = "INITIALIZE"
	StateOperate    StateIntent = "OPERATE"
	StateResize     StateIntent = "RESIZE"
	StateFinalize   StateIntent = "FINALIZE"
)

// Allocation is one participant's share of a channel's funds.
type Allocation struct {
	Participant string `json:"participant"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
}

// ChannelState is a locally cached snapshot of a state channel. The
// clearnode is the source of truth; cached entries are never assumed
// authoritative.
type ChannelState struct {
	ChannelID   string        `json:"channelId"`
	Allocations []Allocation  `json:"allocations,omitempty"`
	Status      ChannelStatus `json:"status,omitempty"`
	StateIntent StateIntent   `json:"stateIntent,omitempty"`
}

// Fallback is the machine-readable envelope returned when an operation
// degrades instead of failing. Callers branch on its presence rather than
// catching an error.
type Fallback struct {
	ReasonCode string `json:"reasonCode"`
	Message    string `json:"message"`
}

// ChannelStateResult is either a live channel state or an explicit
// fallback when the clearnode is unreachable.
type ChannelStateResult struct {
	ChannelID string        `json:"channelId"`
	State     *ChannelState `json:"state,omitempty"`
	Fallback  *Fallback     `json:"fallback,omitempty"`
}
