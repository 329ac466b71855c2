// Package quoter consumes the routing aggregator through its one stable
// boundary: given normalized intent parameters, return a quote or a
// deterministic fallback quote. The aggregator's internal catalogs and
// retry policy are its own business.
package quoter

import (
	"context"
	"encoding/json"

	"github.com/jetkite-hq/jetkite-go/pkg/logger"
	"github.com/jetkite-hq/jetkite-go/pkg/models"
	"github.com/jetkite-hq/jetkite-go/pkg/transport"
)

// QuotePath is the aggregator quote endpoint.
const QuotePath = "/quotes"

// FallbackReasonUnavailable marks a quote synthesized locally because the
// aggregator could not be reached.
const FallbackReasonUnavailable = "QUOTE_UNAVAILABLE"

// Quoter fetches quotes through the transport client.
type Quoter struct {
	transport *transport.Client
	logger    logger.Logger
}

// New creates a quoter.
func New(tc *transport.Client, log logger.Logger) *Quoter {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Quoter{transport: tc, logger: log}
}

// FetchQuote asks the aggregator for a quote. Any transport failure
// degrades to a deterministic fallback quote echoing the caller's own
// minimum, never an error: callers branch on Quote.Fallback.
func (q *Quoter) FetchQuote(ctx context.Context, params models.IntentParams) *models.Quote {
	raw, err := q.transport.Post(ctx, QuotePath, params, nil)
	if err != nil {
		q.logger.Debug("Quote fetch failed, using fallback: %v", err)
		return fallbackQuote(params)
	}

	var quote models.Quote
	if err := json.Unmarshal(raw, &quote); err != nil || quote.AmountOut == "" {
		q.logger.Debug("Quote response unusable, using fallback")
		return fallbackQuote(params)
	}
	return &quote
}

// fallbackQuote echoes minAmountOut as the quoted amount: the most
// conservative answer that still lets a caller proceed.
func fallbackQuote(params models.IntentParams) *models.Quote {
	return &models.Quote{
		AmountOut: params.MinAmountOut,
		Fallback: &models.Fallback{
			ReasonCode: FallbackReasonUnavailable,
			Message:    "routing aggregator unavailable, echoing minimum output",
		},
	}
}
