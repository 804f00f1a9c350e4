package lifecycle

import (
	"fmt"

	"sybil/internal/models"
)

// StateConflictError reports an illegal lifecycle transition. It is
// fatal to the caller and never retried.
type StateConflictError struct {
	Entity    string
	Current   string
	Attempted string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s: illegal transition %s -> %s", e.Entity, e.Current, e.Attempted)
}

var proposalTransitions = map[models.ProposalStatus][]models.ProposalStatus{
	models.ProposalPending: {models.ProposalAccepted, models.ProposalRejected, models.ProposalMerged},
}

var eventTransitions = map[models.EventState][]models.EventState{
	models.EventDraft:    {models.EventActive, models.EventCanceled},
	models.EventActive:   {models.EventLocked, models.EventResolved, models.EventCanceled},
	models.EventLocked:   {models.EventResolved, models.EventCanceled},
	models.EventResolved: {models.EventArchived},
	models.EventCanceled: {models.EventArchived},
}

var runTransitions = map[models.RunStatus][]models.RunStatus{
	models.RunRunning: {models.RunCompleted, models.RunFailed},
}

var resolutionTransitions = map[models.ResolutionStatus][]models.ResolutionStatus{
	models.ResolutionOpen: {models.ResolutionResolved, models.ResolutionContradicted},
	// contradicted -> resolved/open exists only via explicit override,
	// see CheckResolutionOverride.
}

// CheckProposal validates a proposal status transition.
func CheckProposal(current, next models.ProposalStatus) error {
	if contains(proposalTransitions[current], next) {
		return nil
	}
	return &StateConflictError{Entity: "event_proposal", Current: string(current), Attempted: string(next)}
}

// CheckEvent validates an event state transition.
func CheckEvent(current, next models.EventState) error {
	if contains(eventTransitions[current], next) {
		return nil
	}
	return &StateConflictError{Entity: "event", Current: string(current), Attempted: string(next)}
}

// CheckRun validates a workflow run status transition.
func CheckRun(current, next models.RunStatus) error {
	if contains(runTransitions[current], next) {
		return nil
	}
	return &StateConflictError{Entity: "workflow_run", Current: string(current), Attempted: string(next)}
}

// CheckResolution validates a resolution status transition performed by
// the engine itself. The engine may re-derive any status from open, but
// may never leave contradicted on its own.
func CheckResolution(current, next models.ResolutionStatus) error {
	if current == next {
		return nil
	}
	if contains(resolutionTransitions[current], next) {
		return nil
	}
	return &StateConflictError{Entity: "event_resolution", Current: string(current), Attempted: string(next)}
}

// CheckResolutionOverride validates the human override path:
// contradicted may move to resolved or open, nothing else.
func CheckResolutionOverride(current, next models.ResolutionStatus) error {
	if current == models.ResolutionContradicted &&
		(next == models.ResolutionResolved || next == models.ResolutionOpen) {
		return nil
	}
	return &StateConflictError{Entity: "event_resolution", Current: string(current), Attempted: string(next)}
}

// EventTerminal reports whether an event state is terminal (archivable).
func EventTerminal(s models.EventState) bool {
	return s == models.EventResolved || s == models.EventCanceled
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
