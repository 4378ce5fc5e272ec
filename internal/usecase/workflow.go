package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ReportDesk/internal/domain"
	"ReportDesk/internal/ports"
	"ReportDesk/internal/report"
)

var (
	// ErrTransitionRejected is returned when a guard refuses an operation. State is untouched.
	ErrTransitionRejected = errors.New("transition rejected")
	// ErrStaleResult is returned when a reset happened while the operation was in flight.
	ErrStaleResult = errors.New("result discarded after reset")
)

// NewsCollector is the collector contract the workflow depends on.
type NewsCollector interface {
	Collect(ctx context.Context, sites, keywords string) (Collection, error)
}

// ReportGenerator is the generator contract the workflow depends on.
type ReportGenerator interface {
	Generate(ctx context.Context, news []domain.NewsItem, dateLabel string) (domain.ReportDraft, error)
	Model() string
}

// SearchFilters are the two static query expressions.
type SearchFilters struct {
	Sites    string
	Keywords string
}

// WorkflowDeps wires collaborators and static configuration into the state machine.
type WorkflowDeps struct {
	Collector NewsCollector
	Generator ReportGenerator
	Mailer    ports.Mailer
	Roster    domain.Roster
	Filters   SearchFilters
	Composer  *report.Composer
	Clock     func() time.Time
	DateLabel func(time.Time) string
	Logger    *slog.Logger
}

// Workflow owns the report session state. All mutations happen under mu; collaborator calls
// run outside it and are matched back to the session by epoch.
type Workflow struct {
	collector NewsCollector
	generator ReportGenerator
	mailer    ports.Mailer
	roster    domain.Roster
	filters   SearchFilters
	composer  *report.Composer
	clock     func() time.Time
	dateLabel func(time.Time) string
	logger    *slog.Logger

	mu          sync.Mutex
	state       domain.WorkflowState
	epoch       uint64
	reviewID    string
	broadcastID string
	subscribers map[int]chan domain.WorkflowState
	nextSubID   int
}

// NewWorkflow constructs the state machine in the fresh idle state.
func NewWorkflow(deps WorkflowDeps) *Workflow {
	w := &Workflow{
		collector:   deps.Collector,
		generator:   deps.Generator,
		mailer:      deps.Mailer,
		roster:      deps.Roster,
		filters:     deps.Filters,
		composer:    deps.Composer,
		clock:       deps.Clock,
		dateLabel:   deps.DateLabel,
		logger:      deps.Logger,
		state:       domain.InitialState(),
		subscribers: map[int]chan domain.WorkflowState{},
	}
	if w.clock == nil {
		w.clock = time.Now
	}
	if w.dateLabel == nil {
		w.dateLabel = func(t time.Time) string { return t.Format("2006/01/02") }
	}
	if w.composer == nil {
		w.composer = report.NewComposer(report.ComposerConfig{})
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	return w
}

// Snapshot returns a deep copy of the current state.
func (w *Workflow) Snapshot() domain.WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Clone()
}

// Subscribe returns a channel that always holds the latest snapshot after a change, and a
// function that detaches it.
func (w *Workflow) Subscribe() (<-chan domain.WorkflowState, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSubID
	w.nextSubID++
	ch := make(chan domain.WorkflowState, 1)
	w.subscribers[id] = ch
	ch <- w.state.Clone()
	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if sub, ok := w.subscribers[id]; ok {
			delete(w.subscribers, id)
			close(sub)
		}
	}
}

// Fetch collects news. Allowed only from a news-empty Idle.
func (w *Workflow) Fetch(ctx context.Context) error {
	w.mu.Lock()
	if !w.state.CanFetch() {
		w.mu.Unlock()
		return ErrTransitionRejected
	}
	w.state.Stage = domain.StageFetchingNews
	w.state.Err = nil
	w.appendLogLocked(logFetchStart)
	epoch := w.epoch
	w.publishLocked()
	w.mu.Unlock()

	var (
		collected Collection
		err       error
	)
	if w.collector == nil {
		err = &domain.CollectionError{Message: msgSearchUnavailable}
	} else {
		collected, err = w.collector.Collect(ctx, w.filters.Sites, w.filters.Keywords)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		w.logger.Debug("discard stale fetch result", "epoch", epoch)
		return ErrStaleResult
	}

	w.state.Stage = domain.StageIdle
	if err != nil {
		w.failLocked(err, logFetchFailed)
		w.logger.Warn("fetch failed", "error", err)
		return fmt.Errorf("fetch news: %w", err)
	}

	w.state.News = collected.Items
	w.appendLogLocked(fmt.Sprintf(logFetchDone, collected.Received))
	w.publishLocked()
	w.logger.Info("news fetched", "received", collected.Received, "kept", len(collected.Items))
	return nil
}

// Generate drafts the report from collected news. Allowed only from Idle with news and no draft.
func (w *Workflow) Generate(ctx context.Context) error {
	w.mu.Lock()
	if !w.state.CanGenerate() {
		w.mu.Unlock()
		return ErrTransitionRejected
	}
	model := ""
	if w.generator != nil {
		model = w.generator.Model()
	}
	w.state.Stage = domain.StageGeneratingReport
	w.state.Err = nil
	w.appendLogLocked(fmt.Sprintf(logGenerateStart, model))
	news := make([]domain.NewsItem, len(w.state.News))
	copy(news, w.state.News)
	dateLabel := w.dateLabel(w.clock())
	epoch := w.epoch
	w.publishLocked()
	w.mu.Unlock()

	var (
		draft domain.ReportDraft
		err   error
	)
	if w.generator == nil {
		err = &domain.GenerationError{Kind: domain.FailureGeneration, Message: msgGenerationFailed}
	} else {
		draft, err = w.generator.Generate(ctx, news, dateLabel)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		w.logger.Debug("discard stale generation result", "epoch", epoch)
		return ErrStaleResult
	}

	if err != nil {
		w.state.Stage = domain.StageIdle
		w.failLocked(err, logGenerateFailed)
		w.logger.Warn("generation failed", "error", err)
		return fmt.Errorf("generate report: %w", err)
	}

	w.state.Draft = &draft
	w.state.Stage = domain.StageReviewing
	w.reviewID, w.broadcastID = "", ""
	w.appendLogLocked(logGenerateDone)
	w.publishLocked()
	w.logger.Info("report drafted", "date", draft.DateLabel, "bytes", len(draft.HTMLBody))
	return nil
}

// SendToPrimary mails the draft to the primary reviewer. Allowed only from Reviewing.
func (w *Workflow) SendToPrimary(ctx context.Context) error {
	w.mu.Lock()
	if w.state.Stage != domain.StageReviewing || w.state.SendInFlight || w.state.Draft == nil {
		w.mu.Unlock()
		return ErrTransitionRejected
	}
	primary := w.roster.Primary()
	if w.reviewID == "" {
		w.reviewID = uuid.NewString()
	}
	w.state.SendInFlight = true
	w.appendLogLocked(fmt.Sprintf(logPrimaryStart, primary.DisplayName))
	msg := message(w.reviewID, w.composer.Review(*w.state.Draft, primary))
	epoch := w.epoch
	w.publishLocked()
	w.mu.Unlock()

	err := w.deliver(func(m ports.Mailer) error { return m.SendTo(ctx, msg, primary) })

	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		w.logger.Debug("discard stale send result", "epoch", epoch)
		return ErrStaleResult
	}
	w.state.SendInFlight = false

	if err != nil {
		sendErr := &domain.SendError{Message: msgSendPrimaryFailed, Err: err}
		w.failLocked(sendErr, logPrimaryFailed)
		w.logger.Warn("send to primary failed", "error", err)
		return fmt.Errorf("send to primary: %w", sendErr)
	}

	w.state.Stage = domain.StageSentToPrimary
	w.state.Err = nil
	w.appendLogLocked(fmt.Sprintf(logPrimaryDone, primary.Email))
	w.publishLocked()
	w.logger.Info("review copy sent", "message_id", msg.ID)
	return nil
}

// ApproveAndSendAll blind-copies the report to every recipient. Allowed only from SentToPrimary.
func (w *Workflow) ApproveAndSendAll(ctx context.Context) error {
	w.mu.Lock()
	if w.state.Stage != domain.StageSentToPrimary || w.state.SendInFlight || w.state.Draft == nil {
		w.mu.Unlock()
		return ErrTransitionRejected
	}
	recipients := w.roster.All()
	if w.broadcastID == "" {
		w.broadcastID = uuid.NewString()
	}
	w.state.SendInFlight = true
	w.appendLogLocked(logApproveStart)
	msg := message(w.broadcastID, w.composer.Broadcast(*w.state.Draft))
	epoch := w.epoch
	w.publishLocked()
	w.mu.Unlock()

	err := w.deliver(func(m ports.Mailer) error { return m.SendBlindCopyTo(ctx, msg, recipients) })

	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		w.logger.Debug("discard stale broadcast result", "epoch", epoch)
		return ErrStaleResult
	}
	w.state.SendInFlight = false

	if err != nil {
		sendErr := &domain.SendError{Message: msgSendAllFailed, Err: err}
		w.failLocked(sendErr, logApproveFailed)
		w.logger.Warn("broadcast failed", "error", err)
		return fmt.Errorf("approve and send all: %w", sendErr)
	}

	w.state.Stage = domain.StageCompleted
	w.state.Err = nil
	w.appendLogLocked(logApproveDone)
	w.publishLocked()
	w.logger.Info("report distributed", "message_id", msg.ID, "recipients", len(recipients))
	return nil
}

// Reset returns to a fresh Idle. Results of calls still in flight are discarded.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.epoch++
	w.reviewID, w.broadcastID = "", ""
	w.state = domain.InitialState()
	w.publishLocked()
	w.logger.Info("workflow reset", "epoch", w.epoch)
}

// DismissError clears the current error without touching the stage.
func (w *Workflow) DismissError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Err == nil {
		return
	}
	w.state.Err = nil
	w.publishLocked()
}

func (w *Workflow) deliver(send func(ports.Mailer) error) error {
	if w.mailer == nil {
		return errors.New(msgMailerMissing)
	}
	return send(w.mailer)
}

// message stamps env with id. Retries of one send reuse the same id.
func message(id string, env report.Envelope) ports.Message {
	return ports.Message{
		ID:       id,
		FromName: env.FromName,
		Subject:  env.Subject,
		HTMLBody: env.HTML,
	}
}

func (w *Workflow) failLocked(err error, logFormat string) {
	w.state.Err = failureFrom(err)
	w.appendLogLocked(fmt.Sprintf(logFormat, w.state.Err.Message))
	w.publishLocked()
}

func (w *Workflow) appendLogLocked(message string) {
	w.state.Log = append(w.state.Log, domain.LogEntry{At: w.clock(), Message: message})
}

func (w *Workflow) publishLocked() {
	if len(w.subscribers) == 0 {
		return
	}
	snapshot := w.state.Clone()
	for _, ch := range w.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func failureFrom(err error) *domain.Failure {
	var (
		genErr  *domain.GenerationError
		colErr  *domain.CollectionError
		sendErr *domain.SendError
	)
	switch {
	case errors.As(err, &genErr):
		return &domain.Failure{Kind: genErr.Kind, Message: genErr.Error()}
	case errors.As(err, &colErr):
		return &domain.Failure{Kind: domain.FailureCollection, Message: colErr.Error()}
	case errors.As(err, &sendErr):
		return &domain.Failure{Kind: domain.FailureSend, Message: sendErr.Error()}
	default:
		return &domain.Failure{Kind: domain.FailureGeneration, Message: err.Error()}
	}
}
