package domain

import "time"

// Stage enumerates the report workflow milestones.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageFetchingNews     Stage = "fetching_news"
	StageGeneratingReport Stage = "generating_report"
	StageReviewing        Stage = "reviewing"
	StageSentToPrimary    Stage = "sent_to_primary"
	StageCompleted        Stage = "completed"
)

// IdleCondition distinguishes the flavours of Idle. It is derived from field presence and is
// not a separate stage.
type IdleCondition int

const (
	IdleNotIdle IdleCondition = iota
	IdleFresh
	IdleWithNews
	IdleFetchFailed
	IdleGenerationFailed
)

// LogEntry is a single timestamped line of the workflow log.
type LogEntry struct {
	At      time.Time
	Message string
}

// Failure is the current user-facing error.
type Failure struct {
	Kind    FailureKind
	Message string
}

// CredentialRelated reports whether guidance about the AI credential applies.
func (f Failure) CredentialRelated() bool {
	return f.Kind == FailureMissingCredential || f.Kind == FailureInvalidCredential
}

// WorkflowState is the whole session state. Log is stored oldest first.
type WorkflowState struct {
	Stage Stage
	News  []NewsItem
	Draft *ReportDraft
	Err   *Failure
	Log   []LogEntry
	// SendInFlight is set while a mailer call is outstanding.
	SendInFlight bool
}

// InitialState returns a fresh idle state.
func InitialState() WorkflowState {
	return WorkflowState{Stage: StageIdle}
}

// Idle reports which Idle flavour the state is in.
func (s WorkflowState) Idle() IdleCondition {
	if s.Stage != StageIdle {
		return IdleNotIdle
	}
	switch {
	case s.Err != nil && len(s.News) == 0:
		return IdleFetchFailed
	case s.Err != nil && s.Draft == nil:
		return IdleGenerationFailed
	case len(s.News) > 0:
		return IdleWithNews
	default:
		return IdleFresh
	}
}

// CanFetch reports whether the fetch guard passes.
func (s WorkflowState) CanFetch() bool {
	return s.Stage == StageIdle && len(s.News) == 0
}

// CanGenerate reports whether the generate guard passes.
func (s WorkflowState) CanGenerate() bool {
	return s.Stage == StageIdle && len(s.News) > 0 && s.Draft == nil
}

// Clone returns a deep copy safe to hand to readers.
func (s WorkflowState) Clone() WorkflowState {
	out := WorkflowState{Stage: s.Stage, SendInFlight: s.SendInFlight}
	if len(s.News) > 0 {
		out.News = make([]NewsItem, len(s.News))
		copy(out.News, s.News)
	}
	if s.Draft != nil {
		d := *s.Draft
		out.Draft = &d
	}
	if s.Err != nil {
		e := *s.Err
		out.Err = &e
	}
	if len(s.Log) > 0 {
		out.Log = make([]LogEntry, len(s.Log))
		copy(out.Log, s.Log)
	}
	return out
}
