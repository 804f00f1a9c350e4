package protocol

import (
	"context"
	"errors"

	"sybil/internal/models"
	"sybil/internal/reasoner"
)

// ErrAwaitingInput is returned by the human protocol: a prediction can
// only arrive through the API, never from Produce.
var ErrAwaitingInput = errors.New("protocol awaits human input")

// Judgment is one produced probability with its citations.
type Judgment struct {
	P            float64
	HorizonHours *int
	Rationale    string
	// RankedItemIDs is the attribution order, most important first.
	RankedItemIDs []string
	Relevance     map[string]float64
	Degraded      bool
	Usage         reasoner.Usage
}

// Protocol produces predictions for an event from its raw evidence
// items. The workflow layer is agnostic to which variant ran.
type Protocol interface {
	Kind() models.ProtocolKind
	// RequiresCitations makes the attribution ranker reject an empty
	// item list for this protocol.
	RequiresCitations() bool
	Produce(ctx context.Context, event *models.Event, items []models.RawItem) (*Judgment, error)
}
