package models

// SourceKind identifies the class of an external content producer.
type SourceKind string

const (
	SourceKindRSS     SourceKind = "rss"
	SourceKindPRWires SourceKind = "prwires"
	SourceKindEdgar   SourceKind = "edgar"
	SourceKindMarket  SourceKind = "market"
	SourceKindCustom  SourceKind = "custom"
)

// ProposalStatus is the review state of an EventProposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
	ProposalMerged   ProposalStatus = "merged"
)

// EventState is the lifecycle state of a canonical Event.
type EventState string

const (
	EventDraft    EventState = "draft"
	EventActive   EventState = "active"
	EventLocked   EventState = "locked"
	EventResolved EventState = "resolved"
	EventCanceled EventState = "canceled"
	EventArchived EventState = "archived"
)

// RunStatus is the lifecycle state of a WorkflowRun.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ResolutionStatus is the state of a per-event resolution record. It is
// independent of EventState: an event stays active while its resolution
// record is open or contradicted.
type ResolutionStatus string

const (
	ResolutionOpen         ResolutionStatus = "open"
	ResolutionResolved     ResolutionStatus = "resolved"
	ResolutionContradicted ResolutionStatus = "contradicted"
)

// ProtocolKind distinguishes how predictions are produced.
type ProtocolKind string

const (
	ProtocolAgent     ProtocolKind = "agent"
	ProtocolRandom    ProtocolKind = "random"
	ProtocolHeuristic ProtocolKind = "heuristic"
	ProtocolHuman     ProtocolKind = "human"
)

// ToolCallKind classifies one traced step inside a workflow run.
type ToolCallKind string

const (
	ToolCallLLM         ToolCallKind = "llm"
	ToolCallAPI         ToolCallKind = "api"
	ToolCallSearch      ToolCallKind = "search"
	ToolCallCalculation ToolCallKind = "calculation"
	ToolCallDataFetch   ToolCallKind = "data_fetch"
)

// ScoreType names a prediction accuracy metric.
type ScoreType string

const (
	ScoreBrier       ScoreType = "brier"
	ScoreLogLoss     ScoreType = "logloss"
	ScoreCalibration ScoreType = "calibration"
)
