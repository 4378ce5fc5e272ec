package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"ReportDesk/internal/domain"
	"ReportDesk/internal/ports"
)

type harness struct {
	wf       *Workflow
	searcher *fakeSearcher
	text     *fakeTextGenerator
	mailer   *fakeMailer
}

func newHarness(t *testing.T, credential string, text *fakeTextGenerator) *harness {
	t.Helper()
	if text == nil {
		text = &fakeTextGenerator{texts: []string{"```html\n<div>報告</div>\n```"}}
	}
	h := &harness{
		searcher: &fakeSearcher{batch: ports.SearchBatch{Status: "ok", Items: sampleRaw(3)}},
		text:     text,
		mailer:   &fakeMailer{},
	}
	h.wf = NewWorkflow(WorkflowDeps{
		Collector: NewCollector(h.searcher, nil),
		Generator: NewGenerator(text, GeneratorConfig{Credential: credential}, nil),
		Mailer:    h.mailer,
		Roster:    testRoster(),
		Filters:   SearchFilters{Sites: "(site:a.com)", Keywords: "(基金)"},
		Clock:     newStepClock().Now,
	})
	return h
}

func mustSucceed(t *testing.T, name string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
}

func TestWorkflowHappyPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, "key", nil)

	mustSucceed(t, "fetch", h.wf.Fetch(ctx))
	mustSucceed(t, "generate", h.wf.Generate(ctx))
	mustSucceed(t, "send to primary", h.wf.SendToPrimary(ctx))
	mustSucceed(t, "approve", h.wf.ApproveAndSendAll(ctx))

	state := h.wf.Snapshot()
	if state.Stage != domain.StageCompleted {
		t.Fatalf("expected completed, got %s", state.Stage)
	}
	if state.Err != nil {
		t.Fatalf("unexpected error: %+v", state.Err)
	}
	if len(state.Log) != 8 {
		t.Fatalf("expected 8 log entries, got %d", len(state.Log))
	}

	starts := []string{logFetchStart, fmt.Sprintf(logGenerateStart, DefaultModel), fmt.Sprintf(logPrimaryStart, "洪主管"), logApproveStart}
	successes := []string{fmt.Sprintf(logFetchDone, 3), logGenerateDone, fmt.Sprintf(logPrimaryDone, "reviewer@example.com"), logApproveDone}
	for i := range successes {
		if got := state.Log[2*i].Message; got != starts[i] {
			t.Fatalf("entry %d: expected %q, got %q", 2*i, starts[i], got)
		}
		if got := state.Log[2*i+1].Message; got != successes[i] {
			t.Fatalf("entry %d: expected %q, got %q", 2*i+1, successes[i], got)
		}
	}
	for i := 1; i < len(state.Log); i++ {
		if !state.Log[i].At.After(state.Log[i-1].At) {
			t.Fatalf("log not chronological at %d", i)
		}
	}

	if len(h.mailer.reviewers) != 1 || h.mailer.reviewers[0].Email != "reviewer@example.com" {
		t.Fatalf("review copy not sent to primary: %+v", h.mailer.reviewers)
	}
	review := h.mailer.reviews[0]
	if review.Subject != "📈 基金市場報告 - 2026/10/17" {
		t.Fatalf("unexpected subject: %q", review.Subject)
	}
	if !strings.Contains(review.HTMLBody, "<strong>洪主管</strong>") || !strings.Contains(review.HTMLBody, "<div>報告</div>") {
		t.Fatalf("review copy missing greeting or body: %s", review.HTMLBody)
	}
	if len(h.mailer.bcc) != 1 || len(h.mailer.bcc[0]) != 3 {
		t.Fatalf("expected one broadcast to 3 recipients, got %+v", h.mailer.bcc)
	}
	broadcast := h.mailer.broadcast[0]
	if !strings.Contains(broadcast.HTMLBody, "<strong>投資夥伴</strong>") {
		t.Fatalf("broadcast greeting missing")
	}
	if review.ID == "" || review.ID == broadcast.ID {
		t.Fatalf("expected distinct message ids, got %q and %q", review.ID, broadcast.ID)
	}
}

func TestWorkflowGenerateWithoutCredential(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, "", nil)
	mustSucceed(t, "fetch", h.wf.Fetch(ctx))

	err := h.wf.Generate(ctx)
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != domain.FailureMissingCredential {
		t.Fatalf("expected missing credential error, got %v", err)
	}

	state := h.wf.Snapshot()
	if state.Stage != domain.StageIdle {
		t.Fatalf("expected idle, got %s", state.Stage)
	}
	if len(state.News) != 3 {
		t.Fatalf("news should be untouched, got %d", len(state.News))
	}
	if state.Err == nil || !state.Err.CredentialRelated() {
		t.Fatalf("expected credential-related error, got %+v", state.Err)
	}
	if state.Idle() != domain.IdleGenerationFailed {
		t.Fatalf("expected generation-failed idle, got %d", state.Idle())
	}
	if h.text.calls() != 0 {
		t.Fatalf("collaborator must not be called without a credential")
	}
	last := state.Log[len(state.Log)-1].Message
	if last != fmt.Sprintf(logGenerateFailed, msgMissingCredential) {
		t.Fatalf("unexpected failure entry: %q", last)
	}
}

func TestWorkflowGenerateFailureAllowsRetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	text := &fakeTextGenerator{
		texts: []string{"", "<div>ok</div>"},
		errs:  []error{errors.New("upstream exploded"), nil},
	}
	h := newHarness(t, "key", text)
	mustSucceed(t, "fetch", h.wf.Fetch(ctx))

	if err := h.wf.Generate(ctx); err == nil {
		t.Fatalf("expected generate to fail")
	}
	state := h.wf.Snapshot()
	if state.Stage != domain.StageIdle || state.Err == nil || len(state.News) != 3 || state.Draft != nil {
		t.Fatalf("unexpected state after failure: %+v", state)
	}
	if !state.CanGenerate() {
		t.Fatalf("generate should be permitted again")
	}

	mustSucceed(t, "retry generate", h.wf.Generate(ctx))
	state = h.wf.Snapshot()
	if state.Stage != domain.StageReviewing || state.Err != nil {
		t.Fatalf("retry did not reach reviewing: %+v", state)
	}
	if state.Draft.HTMLBody != "<div>ok</div>" {
		t.Fatalf("unexpected draft: %q", state.Draft.HTMLBody)
	}
}

func TestWorkflowRejectsOutOfOrderOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, "key", nil)

	for name, op := range map[string]func(context.Context) error{
		"generate":        h.wf.Generate,
		"send to primary": h.wf.SendToPrimary,
		"approve":         h.wf.ApproveAndSendAll,
	} {
		if err := op(ctx); !errors.Is(err, ErrTransitionRejected) {
			t.Fatalf("%s from fresh idle: expected rejection, got %v", name, err)
		}
	}
	if state := h.wf.Snapshot(); !reflect.DeepEqual(state, domain.InitialState()) {
		t.Fatalf("rejected operations changed state: %+v", state)
	}

	mustSucceed(t, "fetch", h.wf.Fetch(ctx))
	if err := h.wf.Fetch(ctx); !errors.Is(err, ErrTransitionRejected) {
		t.Fatalf("second fetch: expected rejection, got %v", err)
	}
	mustSucceed(t, "generate", h.wf.Generate(ctx))
	if err := h.wf.Generate(ctx); !errors.Is(err, ErrTransitionRejected) {
		t.Fatalf("generate with draft: expected rejection, got %v", err)
	}
	if err := h.wf.ApproveAndSendAll(ctx); !errors.Is(err, ErrTransitionRejected) {
		t.Fatalf("approve before review: expected rejection, got %v", err)
	}
	if got := len(h.wf.Snapshot().Log); got != 4 {
		t.Fatalf("rejections must not log, got %d entries", got)
	}
	if h.searcher.calls != 1 {
		t.Fatalf("expected a single search, got %d", h.searcher.calls)
	}
}

type staticCollector struct{ items []domain.NewsItem }

func (s staticCollector) Collect(context.Context, string, string) (Collection, error) {
	return Collection{Items: s.items, Received: len(s.items)}, nil
}

type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingGenerator) Generate(_ context.Context, _ []domain.NewsItem, dateLabel string) (domain.ReportDraft, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	<-b.release
	return domain.ReportDraft{HTMLBody: "<div>slow</div>", DateLabel: dateLabel}, nil
}

func (b *blockingGenerator) Model() string { return "stub" }

func TestWorkflowConcurrentGenerateIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gen := &blockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	wf := NewWorkflow(WorkflowDeps{
		Collector: staticCollector{items: sampleNews(3)},
		Generator: gen,
		Roster:    testRoster(),
	})
	mustSucceed(t, "fetch", wf.Fetch(ctx))

	done := make(chan error, 1)
	go func() { done <- wf.Generate(ctx) }()
	<-gen.started

	if err := wf.Generate(ctx); !errors.Is(err, ErrTransitionRejected) {
		t.Fatalf("expected rejection while generating, got %v", err)
	}
	if stage := wf.Snapshot().Stage; stage != domain.StageGeneratingReport {
		t.Fatalf("expected generating stage, got %s", stage)
	}

	close(gen.release)
	mustSucceed(t, "generate", <-done)
	if stage := wf.Snapshot().Stage; stage != domain.StageReviewing {
		t.Fatalf("expected reviewing, got %s", stage)
	}
	if gen.calls.Load() != 1 {
		t.Fatalf("expected one generator call, got %d", gen.calls.Load())
	}
}

func TestWorkflowResetDiscardsInFlightResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	collector := newBlockingCollector(sampleNews(3))
	wf := NewWorkflow(WorkflowDeps{Collector: collector, Roster: testRoster()})

	done := make(chan error, 1)
	go func() { done <- wf.Fetch(ctx) }()
	<-collector.started

	wf.Reset()
	close(collector.release)

	if err := <-done; !errors.Is(err, ErrStaleResult) {
		t.Fatalf("expected stale result, got %v", err)
	}
	if state := wf.Snapshot(); !reflect.DeepEqual(state, domain.InitialState()) {
		t.Fatalf("stale result leaked into state: %+v", state)
	}
}

type blockingMailer struct {
	fakeMailer
	started chan struct{}
	release chan struct{}
}

func (b *blockingMailer) SendTo(ctx context.Context, msg ports.Message, to domain.Recipient) error {
	close(b.started)
	<-b.release
	return b.fakeMailer.SendTo(ctx, msg, to)
}

func TestWorkflowSendInFlightRejectsDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mailer := &blockingMailer{started: make(chan struct{}), release: make(chan struct{})}
	wf := NewWorkflow(WorkflowDeps{
		Collector: staticCollector{items: sampleNews(1)},
		Generator: NewGenerator(&fakeTextGenerator{texts: []string{"<div/>"}}, GeneratorConfig{Credential: "key"}, nil),
		Mailer:    mailer,
		Roster:    testRoster(),
	})
	mustSucceed(t, "fetch", wf.Fetch(ctx))
	mustSucceed(t, "generate", wf.Generate(ctx))

	done := make(chan error, 1)
	go func() { done <- wf.SendToPrimary(ctx) }()
	<-mailer.started

	inFlight := wf.Snapshot()
	if !inFlight.SendInFlight || inFlight.Stage != domain.StageReviewing {
		t.Fatalf("snapshot should expose the outstanding send: %+v", inFlight)
	}
	if err := wf.SendToPrimary(ctx); !errors.Is(err, ErrTransitionRejected) {
		t.Fatalf("expected duplicate send to be rejected, got %v", err)
	}
	close(mailer.release)
	mustSucceed(t, "send", <-done)
	if len(mailer.reviews) != 1 {
		t.Fatalf("expected exactly one review mail, got %d", len(mailer.reviews))
	}
	if after := wf.Snapshot(); after.SendInFlight || after.Stage != domain.StageSentToPrimary {
		t.Fatalf("send flag should clear on completion: %+v", after)
	}
}

func TestWorkflowResetClearsSendInFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mailer := &blockingMailer{started: make(chan struct{}), release: make(chan struct{})}
	wf := NewWorkflow(WorkflowDeps{
		Collector: staticCollector{items: sampleNews(1)},
		Generator: NewGenerator(&fakeTextGenerator{texts: []string{"<div/>"}}, GeneratorConfig{Credential: "key"}, nil),
		Mailer:    mailer,
		Roster:    testRoster(),
	})
	mustSucceed(t, "fetch", wf.Fetch(ctx))
	mustSucceed(t, "generate", wf.Generate(ctx))

	done := make(chan error, 1)
	go func() { done <- wf.SendToPrimary(ctx) }()
	<-mailer.started

	wf.Reset()
	if state := wf.Snapshot(); state.SendInFlight {
		t.Fatalf("reset should clear the send flag")
	}
	close(mailer.release)
	if err := <-done; !errors.Is(err, ErrStaleResult) {
		t.Fatalf("expected stale result, got %v", err)
	}
	if state := wf.Snapshot(); !reflect.DeepEqual(state, domain.InitialState()) {
		t.Fatalf("late send leaked into state: %+v", state)
	}
}

func TestWorkflowRetryReusesMessageID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, "key", &fakeTextGenerator{texts: []string{"<div>a</div>", "<div>b</div>"}})
	mustSucceed(t, "fetch", h.wf.Fetch(ctx))
	mustSucceed(t, "generate", h.wf.Generate(ctx))

	h.mailer.setErrors(errors.New("client timeout"), nil)
	if err := h.wf.SendToPrimary(ctx); err == nil {
		t.Fatalf("expected review send to fail")
	}
	h.mailer.setErrors(nil, nil)
	mustSucceed(t, "retry send", h.wf.SendToPrimary(ctx))

	h.mailer.setErrors(nil, errors.New("client timeout"))
	if err := h.wf.ApproveAndSendAll(ctx); err == nil {
		t.Fatalf("expected broadcast to fail")
	}
	h.mailer.setErrors(nil, nil)
	mustSucceed(t, "retry broadcast", h.wf.ApproveAndSendAll(ctx))

	ids := h.mailer.attempts
	if len(ids) != 4 {
		t.Fatalf("expected 4 send attempts, got %d", len(ids))
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Fatalf("review retry changed the message id: %v", ids)
	}
	if ids[2] != ids[3] {
		t.Fatalf("broadcast retry changed the message id: %v", ids)
	}
	if ids[0] == ids[2] {
		t.Fatalf("review and broadcast must not share an id: %v", ids)
	}

	h.wf.Reset()
	mustSucceed(t, "fetch after reset", h.wf.Fetch(ctx))
	mustSucceed(t, "generate after reset", h.wf.Generate(ctx))
	mustSucceed(t, "send after reset", h.wf.SendToPrimary(ctx))
	if next := h.mailer.attempts[4]; next == ids[0] {
		t.Fatalf("a new report after reset must get a new id")
	}
}

func TestWorkflowFetchLogsReceivedCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, "key", nil)
	h.searcher.batch.Items = sampleRaw(15)
	mustSucceed(t, "fetch", h.wf.Fetch(ctx))

	state := h.wf.Snapshot()
	if len(state.News) != MaxNewsItems {
		t.Fatalf("expected %d kept items, got %d", MaxNewsItems, len(state.News))
	}
	if got, want := state.Log[len(state.Log)-1].Message, fmt.Sprintf(logFetchDone, 15); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWorkflowSendFailureKeepsStage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, "key", nil)
	mustSucceed(t, "fetch", h.wf.Fetch(ctx))
	mustSucceed(t, "generate", h.wf.Generate(ctx))

	h.mailer.setErrors(errors.New("relay unavailable"), nil)
	err := h.wf.SendToPrimary(ctx)
	var sendErr *domain.SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected SendError, got %v", err)
	}
	state := h.wf.Snapshot()
	if state.Stage != domain.StageReviewing || state.Err == nil || state.Err.Kind != domain.FailureSend || state.Draft == nil {
		t.Fatalf("unexpected state after failed review send: %+v", state)
	}

	h.mailer.setErrors(nil, nil)
	mustSucceed(t, "retry send", h.wf.SendToPrimary(ctx))
	if state := h.wf.Snapshot(); state.Stage != domain.StageSentToPrimary || state.Err != nil {
		t.Fatalf("retry did not reach sent-to-primary: %+v", state)
	}

	h.mailer.setErrors(nil, errors.New("quota exceeded"))
	if err := h.wf.ApproveAndSendAll(ctx); err == nil {
		t.Fatalf("expected broadcast failure")
	}
	if state := h.wf.Snapshot(); state.Stage != domain.StageSentToPrimary || state.Err == nil {
		t.Fatalf("unexpected state after failed broadcast: %+v", state)
	}

	h.mailer.setErrors(nil, nil)
	mustSucceed(t, "retry broadcast", h.wf.ApproveAndSendAll(ctx))
	if stage := h.wf.Snapshot().Stage; stage != domain.StageCompleted {
		t.Fatalf("expected completed, got %s", stage)
	}
}

func TestWorkflowResetFromEveryStage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	drives := map[string]func(h *harness){
		"fresh":         func(h *harness) {},
		"with news":     func(h *harness) { _ = h.wf.Fetch(ctx) },
		"fetch failed":  func(h *harness) { h.searcher.err = errors.New("down"); _ = h.wf.Fetch(ctx) },
		"reviewing":     func(h *harness) { _ = h.wf.Fetch(ctx); _ = h.wf.Generate(ctx) },
		"sent":          func(h *harness) { _ = h.wf.Fetch(ctx); _ = h.wf.Generate(ctx); _ = h.wf.SendToPrimary(ctx) },
		"completed":     func(h *harness) { _ = h.wf.Fetch(ctx); _ = h.wf.Generate(ctx); _ = h.wf.SendToPrimary(ctx); _ = h.wf.ApproveAndSendAll(ctx) },
		"send rejected": func(h *harness) { h.mailer.setErrors(errors.New("x"), nil); _ = h.wf.Fetch(ctx); _ = h.wf.Generate(ctx); _ = h.wf.SendToPrimary(ctx) },
	}

	for name, drive := range drives {
		name, drive := name, drive
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, "key", nil)
			drive(h)
			h.wf.Reset()
			if state := h.wf.Snapshot(); !reflect.DeepEqual(state, domain.InitialState()) {
				t.Fatalf("reset left state behind: %+v", state)
			}
		})
	}
}

func TestWorkflowErrorLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, "key", nil)
	h.searcher.err = errors.New("down")

	if err := h.wf.Fetch(ctx); err == nil {
		t.Fatalf("expected fetch failure")
	}
	state := h.wf.Snapshot()
	if state.Idle() != domain.IdleFetchFailed || state.Err.Kind != domain.FailureCollection {
		t.Fatalf("expected fetch-failed idle, got %+v", state)
	}
	logLen := len(state.Log)

	h.wf.DismissError()
	state = h.wf.Snapshot()
	if state.Err != nil || state.Stage != domain.StageIdle || len(state.Log) != logLen {
		t.Fatalf("dismiss should only clear the error: %+v", state)
	}

	h.searcher.err = errors.New("down again")
	_ = h.wf.Fetch(ctx)
	h.searcher.err = nil
	mustSucceed(t, "fetch", h.wf.Fetch(ctx))
	state = h.wf.Snapshot()
	if state.Err != nil || len(state.News) != 3 {
		t.Fatalf("successful fetch should clear the error: %+v", state)
	}
}

func TestWorkflowSubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, "key", nil)
	updates, cancel := h.wf.Subscribe()

	if first := <-updates; first.Stage != domain.StageIdle || len(first.News) != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", first)
	}

	mustSucceed(t, "fetch", h.wf.Fetch(ctx))
	latest := <-updates
	if latest.Stage != domain.StageIdle || len(latest.News) != 3 || len(latest.Log) != 2 {
		t.Fatalf("expected latest snapshot after fetch, got %+v", latest)
	}

	cancel()
	if _, ok := <-updates; ok {
		t.Fatalf("expected channel to be closed after cancel")
	}
	mustSucceed(t, "generate", h.wf.Generate(ctx))
}
