package models

import (
	"encoding/json"
	"time"
)

// ExecutionStatus represents the lifecycle stage of an intent.
type ExecutionStatus string

const (
	// StatusCreated is the initial status assigned on submission.
	StatusCreated ExecutionStatus = "CREATED"
	// StatusQuoted indicates a quote was accepted for the intent.
	StatusQuoted ExecutionStatus = "QUOTED"
	// StatusExecuting indicates routing/execution is in progress.
	StatusExecuting ExecutionStatus = "EXECUTING"
	// StatusSettling indicates settlement has been submitted on-chain.
	StatusSettling ExecutionStatus = "SETTLING"
	// StatusSettled is the terminal success status.
	StatusSettled ExecutionStatus = "SETTLED"
	// StatusAborted is the terminal status for failed or cancelled intents.
	StatusAborted ExecutionStatus = "ABORTED"
	// StatusExpired is the terminal status for intents past their deadline.
	StatusExpired ExecutionStatus = "EXPIRED"
)

// IsTerminal reports whether no further transitions can leave the status.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusSettled, StatusAborted, StatusExpired:
		return true
	}
	return false
}

// StepStatus represents the state of a single execution step.
type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepCompleted  StepStatus = "COMPLETED"
	StepFailed     StepStatus = "FAILED"
)

// ExecutionStep is one entry in an intent's ordered execution trace.
type ExecutionStep struct {
	Name      string     `json:"name"`
	Status    StepStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Detail    string     `json:"detail,omitempty"`
}

// IntentParams is the user-authored request for a cross-chain intent. The
// seven canonical fields form the signing payload; any extra keys attached
// by the application are preserved on the wire but never signed.
type IntentParams struct {
	SourceChain  string `json:"sourceChain"`
	DestChain    string `json:"destChain"`
	TokenIn      string `json:"tokenIn"`
	TokenOut     string `json:"tokenOut"`
	AmountIn     string `json:"amountIn"`
	MinAmountOut string `json:"minAmountOut"`
	// Deadline is epoch milliseconds, strictly in the future at
	// validation time.
	Deadline int64 `json:"deadline"`

	// Extra holds application-defined keys. Preserved on the wire but
	// excluded from the canonical signing payload.
	Extra map[string]interface{} `json:"-"`
}

// CanonicalFieldNames lists the signed fields in their fixed order.
var CanonicalFieldNames = []string{
	"sourceChain", "destChain", "tokenIn", "tokenOut",
	"amountIn", "minAmountOut", "deadline",
}

// intentParamsWire avoids recursing into the custom JSON methods below.
type intentParamsWire IntentParams

// MarshalJSON emits the canonical fields plus any extra keys.
func (p IntentParams) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(intentParamsWire(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range p.Extra {
		// Canonical fields win over colliding extra keys.
		if _, taken := merged[key]; taken {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		merged[key] = raw
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the canonical fields and collects the remaining
// keys into Extra.
func (p *IntentParams) UnmarshalJSON(data []byte) error {
	var wire intentParamsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	var all map[string]interface{}
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, name := range CanonicalFieldNames {
		delete(all, name)
	}
	*p = IntentParams(wire)
	if len(all) > 0 {
		p.Extra = all
	}
	return nil
}

// Intent is a read-only snapshot of a server-side intent. Created on
// submission and mutated only by the server; the client holds snapshots
// fetched by polling.
type Intent struct {
	// ID is assigned by the server, by convention "JK-" plus nine
	// alphanumerics. Never validated client-side.
	ID           string          `json:"id"`
	Params       IntentParams    `json:"params"`
	Signature    string          `json:"signature,omitempty"`
	Status       ExecutionStatus `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	Steps        []ExecutionStep `json:"steps,omitempty"`
	SettlementTx string          `json:"settlementTx,omitempty"`
}
