package intent

import (
	"encoding/json"
	"fmt"

	"github.com/jetkite-hq/jetkite-go/pkg/models"
)

// canonicalParams pins the seven signed fields in their fixed order.
// encoding/json preserves struct field order, so serialization is
// deterministic for identical inputs.
type canonicalParams struct {
	SourceChain  string `json:"sourceChain"`
	DestChain    string `json:"destChain"`
	TokenIn      string `json:"tokenIn"`
	TokenOut     string `json:"tokenOut"`
	AmountIn     string `json:"amountIn"`
	MinAmountOut string `json:"minAmountOut"`
	Deadline     int64  `json:"deadline"`
}

// SerializeIntentParams encodes the canonical fields deterministically.
// Extra application keys are dropped: they are never part of the signing
// payload.
func SerializeIntentParams(params models.IntentParams) (string, error) {
	data, err := json.Marshal(canonicalParams{
		SourceChain:  params.SourceChain,
		DestChain:    params.DestChain,
		TokenIn:      params.TokenIn,
		TokenOut:     params.TokenOut,
		AmountIn:     params.AmountIn,
		MinAmountOut: params.MinAmountOut,
		Deadline:     params.Deadline,
	})
	if err != nil {
		return "", fmt.Errorf("failed to serialize intent params: %w", err)
	}
	return string(data), nil
}

// ParseIntentParams decodes a serialized payload back into params. Every
// canonical field must be present; malformed input or a missing field
// fails with a descriptive error.
func ParseIntentParams(data string) (models.IntentParams, error) {
	var params models.IntentParams

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return params, fmt.Errorf("malformed intent params payload: %w", err)
	}
	for _, name := range models.CanonicalFieldNames {
		if _, ok := fields[name]; !ok {
			return params, fmt.Errorf("intent params payload missing required field %q", name)
		}
	}

	var canonical canonicalParams
	if err := json.Unmarshal([]byte(data), &canonical); err != nil {
		return params, fmt.Errorf("malformed intent params payload: %w", err)
	}

	params = models.IntentParams{
		SourceChain:  canonical.SourceChain,
		DestChain:    canonical.DestChain,
		TokenIn:      canonical.TokenIn,
		TokenOut:     canonical.TokenOut,
		AmountIn:     canonical.AmountIn,
		MinAmountOut: canonical.MinAmountOut,
		Deadline:     canonical.Deadline,
	}
	return params, nil
}
