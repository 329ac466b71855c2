package yellow

import (
	"strings"

	"github.com/jetkite-hq/jetkite-go/pkg/models"
)

// StatusMapping normalizes a heterogeneous channel signal into the
// canonical execution-status vocabulary.
type StatusMapping struct {
	ExecutionStatus models.ExecutionStatus
	StepStatus      models.StepStatus
	StepLabel       string
	IsTerminal      bool
}

// eventMappings keys are normalized event names: lower-cased, trimmed,
// hyphens and underscores stripped.
var eventMappings = map[string]StatusMapping{
	// Quote acceptance
	"quoteaccepted": {models.StatusQuoted, models.StepCompleted, "Quote accepted", false},

	// Execution / routing start
	"executionstarted": {models.StatusExecuting, models.StepInProgress, "Execution started", false},
	"routingstarted":   {models.StatusExecuting, models.StepInProgress, "Routing started", false},

	// Settlement submission
	"settlementsubmitted": {models.StatusSettling, models.StepInProgress, "Settlement submitted", false},

	// Settlement / finalization success
	"settled":              {models.StatusSettled, models.StepCompleted, "Settled", true},
	"settlementconfirmed":  {models.StatusSettled, models.StepCompleted, "Settlement confirmed", true},
	"finalized":            {models.StatusSettled, models.StepCompleted, "Finalized", true},

	// Failures and cancellation
	"failed":           {models.StatusAborted, models.StepFailed, "Failed", true},
	"executionfailed":  {models.StatusAborted, models.StepFailed, "Execution failed", true},
	"settlementfailed": {models.StatusAborted, models.StepFailed, "Settlement failed", true},
	"cancelled":        {models.StatusAborted, models.StepFailed, "Cancelled", true},

	// Expiry
	"expired":         {models.StatusExpired, models.StepFailed, "Expired", true},
	"deadlineexpired": {models.StatusExpired, models.StepFailed, "Deadline expired", true},
}

var channelStatusMappings = map[models.ChannelStatus]StatusMapping{
	models.ChannelVoid:    {models.StatusCreated, models.StepCompleted, "Channel void", false},
	models.ChannelInitial: {models.StatusQuoted, models.StepInProgress, "Channel initializing", false},
	models.ChannelActive:  {models.StatusExecuting, models.StepInProgress, "Channel active", false},
	models.ChannelDispute: {models.StatusExecuting, models.StepInProgress, "Channel in dispute", false},
	models.ChannelFinal:   {models.StatusSettled, models.StepCompleted, "Channel finalized", true},
}

// RESIZE maps to COMPLETED while the execution stays non-terminal: a
// resize acknowledged by the clearnode is treated as already applied.
var stateIntentMappings = map[models.StateIntent]StatusMapping{
	models.StateInitialize: {models.StatusQuoted, models.StepInProgress, "Channel initialize", false},
	models.StateOperate:    {models.StatusExecuting, models.StepInProgress, "Channel operate", false},
	models.StateResize:     {models.StatusExecuting, models.StepCompleted, "Channel resize", false},
	models.StateFinalize:   {models.StatusSettled, models.StepCompleted, "Channel finalize", true},
}

// normalizeEventName strips casing, whitespace, hyphens and underscores.
func normalizeEventName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "-", "")
	name = strings.ReplaceAll(name, "_", "")
	return name
}

// MapYellowEvent maps a clearnode event name to the canonical vocabulary.
// Unknown names return nil, never a guessed default.
func MapYellowEvent(name string) *StatusMapping {
	if m, ok := eventMappings[normalizeEventName(name)]; ok {
		mapping := m
		return &mapping
	}
	return nil
}

// MapChannelStatus maps a channel status, case-insensitively.
func MapChannelStatus(status string) *StatusMapping {
	key := models.ChannelStatus(strings.ToUpper(strings.TrimSpace(status)))
	if m, ok := channelStatusMappings[key]; ok {
		mapping := m
		return &mapping
	}
	return nil
}

// MapStateIntent maps a channel state intent, case-insensitively.
func MapStateIntent(stateIntent string) *StatusMapping {
	key := models.StateIntent(strings.ToUpper(strings.TrimSpace(stateIntent)))
	if m, ok := stateIntentMappings[key]; ok {
		mapping := m
		return &mapping
	}
	return nil
}

// Signals bundles the heterogeneous fields a channel update may carry.
type Signals struct {
	Event         string
	ChannelStatus string
	StateIntent   string
}

// InferMapping tries the event name first, then the channel status, then
// the state intent, returning the first recognized mapping. Nil only when
// none of the three is recognized.
func InferMapping(signals Signals) *StatusMapping {
	if signals.Event != "" {
		if m := MapYellowEvent(signals.Event); m != nil {
			return m
		}
	}
	if signals.ChannelStatus != "" {
		if m := MapChannelStatus(signals.ChannelStatus); m != nil {
			return m
		}
	}
	if signals.StateIntent != "" {
		if m := MapStateIntent(signals.StateIntent); m != nil {
			return m
		}
	}
	return nil
}
