package reasoner

import (
	"context"

	"github.com/shopspring/decimal"

	"sybil/internal/models"
)

// Input is the evidence bundle handed to the reasoner for one judgment.
type Input struct {
	EventTitle         string
	EventDescription   string
	ResolutionCriteria string
	Items              []models.RawItem
}

// Result is the reasoner's structured judgment. Degraded marks results
// substituted after a reasoner failure.
type Result struct {
	Probability float64
	Rationale   string
	// RankedItemIDs cites the raw items that justified the judgment,
	// most important first.
	RankedItemIDs []string
	Relevance     map[string]float64
	Degraded      bool
}

// Usage captures the cost of one reasoner invocation for the tool-call
// trace.
type Usage struct {
	TokensIn  int
	TokensOut int
	CostUSD   decimal.Decimal
	LatencyMs int
}

// Reasoner is the external judgment capability. The ledger and the
// resolution core never call it directly; orchestration does, which
// keeps the core deterministic and testable offline.
type Reasoner interface {
	Judge(ctx context.Context, input Input) (Result, Usage, error)
}

// Func adapts a plain function to the Reasoner interface.
type Func func(ctx context.Context, input Input) (Result, Usage, error)

func (f Func) Judge(ctx context.Context, input Input) (Result, Usage, error) {
	return f(ctx, input)
}

// Fallback is the neutral judgment substituted when the reasoner fails
// or returns unparsable output. The failure itself is recorded in the
// tool-call trace by the caller.
func Fallback() Result {
	return Result{
		Probability: 0.5,
		Rationale:   "reasoner unavailable; neutral fallback",
		Degraded:    true,
	}
}
