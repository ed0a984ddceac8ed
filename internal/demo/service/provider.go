// Package service owns the demo session: one simulated KYC account per
// browser profile, its persistence, and the timers that walk uploaded
// documents through processing to verification.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"decentrakyc/internal/demo/metrics"
	"decentrakyc/internal/demo/models"
	"decentrakyc/internal/demo/store"
	"decentrakyc/internal/notify"
	dErrors "decentrakyc/pkg/domain-errors"
	"decentrakyc/pkg/platform/sentinel"
	"decentrakyc/pkg/requestcontext"
)

// Simulated latencies of the verification pipeline.
const (
	ProcessingDelay   = 1 * time.Second
	VerificationDelay = 3 * time.Second
)

// Simulated analysis confidence is drawn from [minConfidence, minConfidence+confidenceSpread).
const (
	minConfidence    = 85
	confidenceSpread = 15
)

const callbackTimeout = 5 * time.Second

const tracerName = "decentrakyc/internal/demo/service"

// Provider is the sole owner and mutator of one profile's DemoUser.
type Provider struct {
	profile   string
	store     store.Store
	scheduler Scheduler
	clock     func() time.Time
	random    func(n int) int
	newID     func() string
	logger    *slog.Logger
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	mountOnce sync.Once

	mu     sync.Mutex
	user   *models.DemoUser
	isDemo bool
}

type Option func(*Provider)

func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithRandom sets the source used for simulated confidence scores. fn(n)
// must return a value in [0, n).
func WithRandom(fn func(n int) int) Option {
	return func(p *Provider) {
		if fn != nil {
			p.random = fn
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(p *Provider) {
		if fn != nil {
			p.newID = fn
		}
	}
}

func WithScheduler(s Scheduler) Option {
	return func(p *Provider) {
		if s != nil {
			p.scheduler = s
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithNotifier sets where background transitions are announced.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Provider) {
		p.notifier = n
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

// NewProvider constructs an unmounted provider for profile.
func NewProvider(profile string, st store.Store, opts ...Option) *Provider {
	p := &Provider{
		profile:   profile,
		store:     st,
		scheduler: NewTimerScheduler(),
		clock:     time.Now,
		random:    rand.IntN,
		newID:     func() string { return "doc-" + uuid.NewString() },
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Profile returns the browser profile this provider serves.
func (p *Provider) Profile() string {
	return p.profile
}

// Mount loads the persisted user or seeds a default one. Only the first call
// has any effect. A corrupt or unreadable record is treated as absent.
func (p *Provider) Mount(ctx context.Context) {
	p.mountOnce.Do(func() {
		ctx = requestcontext.WithProfileID(ctx, p.profile)
		ctx, span := p.startSpan(ctx, "demo.mount")
		defer span.End()

		user, err := p.store.Load(ctx, p.profile)
		switch {
		case err == nil:
		case errors.Is(err, sentinel.ErrNotFound):
		case errors.Is(err, sentinel.ErrCorrupt):
			p.logger.WarnContext(ctx, "discarding corrupt demo record",
				"profile", p.profile,
				"error", err,
			)
		default:
			p.metrics.IncrementStoreFailure("load")
			p.logger.WarnContext(ctx, "failed to load demo record, seeding default",
				"profile", p.profile,
				"error", err,
			)
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		if user != nil {
			p.user = user
			span.SetAttributes(attribute.Bool("demo.rehydrated", true))
		} else {
			p.user = models.NewDefaultDemoUser(p.clock())
			if err := p.persistLocked(ctx); err != nil {
				recordSpanError(span, err)
				p.logger.ErrorContext(ctx, "failed to persist seeded demo user",
					"profile", p.profile,
					"error", err,
				)
			}
		}
		p.isDemo = true
	})
}

// IsDemo reports whether a demo session is active.
func (p *Provider) IsDemo() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isDemo
}

// User returns a snapshot of the current user, or nil before Mount.
func (p *Provider) User() *models.DemoUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user.Clone()
}

// ConnectWallet attaches the demo wallet address.
func (p *Provider) ConnectWallet(ctx context.Context) error {
	ctx, span := p.startSpan(ctx, "demo.connect_wallet")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return nil
	}
	p.user.WalletAddress = models.DemoWalletAddress
	return spanError(span, p.persistLocked(ctx))
}

// UploadDocument records a new document in the uploaded state and schedules
// its processing. Any earlier document of the same type is superseded: its
// pending timers are cancelled and it is removed.
func (p *Provider) UploadDocument(ctx context.Context, docType models.DocumentType, filename string) (models.DemoDocument, error) {
	ctx, span := p.startSpan(ctx, "demo.upload_document",
		attribute.String("document.type", docType.String()),
	)
	defer span.End()

	if !docType.IsValid() {
		return models.DemoDocument{}, spanError(span, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown document type %q", docType)))
	}
	if filename == "" {
		return models.DemoDocument{}, spanError(span, dErrors.New(dErrors.CodeBadRequest, "filename is required"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return models.DemoDocument{}, nil
	}

	cancelled := 0
	for _, id := range p.user.RemoveDocumentsOfType(docType) {
		if p.scheduler.Cancel(id) {
			cancelled++
		}
	}
	p.metrics.AddTimersCancelled(cancelled)

	doc := models.NewDemoDocument(p.newID(), docType, filename, p.clock())
	p.user.Documents = append(p.user.Documents, doc)
	p.user.RaiseStep(models.StepDocumentUploaded)
	err := p.persistLocked(ctx)

	id := doc.ID
	p.scheduler.Schedule(id, ProcessingDelay, func() { p.advanceToProcessing(id) })
	p.metrics.IncrementUpload(docType.String())

	span.SetAttributes(attribute.String("document.id", id))
	p.logger.InfoContext(ctx, "document uploaded",
		"profile", p.profile,
		"document_id", id,
		"document_type", docType.String(),
		"superseded_timers", cancelled,
		"request_id", requestcontext.RequestID(ctx),
	)
	return doc.Clone(), spanError(span, err)
}

// UpdateKycStatus overrides the overall status.
func (p *Provider) UpdateKycStatus(ctx context.Context, status models.KycStatus) error {
	ctx, span := p.startSpan(ctx, "demo.update_kyc_status",
		attribute.String("kyc.status", string(status)),
	)
	defer span.End()

	if !status.IsValid() {
		return spanError(span, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown kyc status %q", status)))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return nil
	}
	p.user.KycStatus = status
	return spanError(span, p.persistLocked(ctx))
}

// UpdateVerificationStep overrides the step. The value is not clamped to
// the current step; callers that want monotonic progress pass
// max(current, desired).
func (p *Provider) UpdateVerificationStep(ctx context.Context, step int) error {
	ctx, span := p.startSpan(ctx, "demo.update_verification_step",
		attribute.Int("kyc.step", step),
	)
	defer span.End()

	if step < models.StepInitial || step > models.StepKycComplete {
		return spanError(span, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("verification step %d out of range", step)))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return nil
	}
	p.user.VerificationStep = step
	return spanError(span, p.persistLocked(ctx))
}

// Reset replaces the user with a fresh default, cancels every pending
// document timer, then clears the stored record. The fresh user stays in
// memory only.
func (p *Provider) Reset(ctx context.Context) error {
	ctx, span := p.startSpan(ctx, "demo.reset")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	cancelled := p.cancelPendingLocked()
	p.user = models.NewDefaultDemoUser(p.clock())
	if err := p.persistLocked(ctx); err != nil {
		return spanError(span, err)
	}
	if err := p.store.Clear(ctx, p.profile); err != nil {
		p.metrics.IncrementStoreFailure("clear")
		return spanError(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear demo record"))
	}

	p.logger.InfoContext(ctx, "demo session reset",
		"profile", p.profile,
		"cancelled_timers", cancelled,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Close cancels pending document timers. The provider stays usable.
func (p *Provider) Close() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelPendingLocked()
}

func (p *Provider) advanceToProcessing(id string) {
	ctx, cancel, span := p.callbackContext("demo.document.processing", id)
	defer cancel()
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	doc, ok := p.documentInStatusLocked(id, models.DocumentStatusUploaded)
	if !ok {
		return
	}
	doc.Status = models.DocumentStatusProcessing
	p.user.ReplaceDocument(doc)
	if p.user.IsLatestDocument(id) {
		p.user.KycStatus = models.KycStatusInProgress
	}
	p.persistInCallbackLocked(ctx, span, id)

	p.scheduler.Schedule(id, VerificationDelay, func() { p.completeVerification(id) })
	p.metrics.IncrementTransition(string(models.DocumentStatusProcessing))
	notify.Info(ctx, p.notifier, fmt.Sprintf("%s is being processed", documentName(doc.Type)))
}

func (p *Provider) completeVerification(id string) {
	ctx, cancel, span := p.callbackContext("demo.document.verified", id)
	defer cancel()
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	doc, ok := p.documentInStatusLocked(id, models.DocumentStatusProcessing)
	if !ok {
		return
	}
	doc.Status = models.DocumentStatusVerified
	doc.AIConfidence = minConfidence + p.random(confidenceSpread)
	doc.ExtractedData = models.CannedExtractedData(doc.Type)
	p.user.ReplaceDocument(doc)
	p.user.KycStatus = models.KycStatusVerified
	p.user.RaiseStep(models.StepKycComplete)
	p.persistInCallbackLocked(ctx, span, id)

	span.SetAttributes(attribute.Int("document.confidence", doc.AIConfidence))
	p.metrics.IncrementTransition(string(models.DocumentStatusVerified))
	notify.Success(ctx, p.notifier, fmt.Sprintf("%s verified", documentName(doc.Type)))
}

// documentInStatusLocked returns the document with id when it is still in the
// expected status. Timers for superseded or reset documents land here and
// find nothing to do.
func (p *Provider) documentInStatusLocked(id string, status models.DocumentStatus) (models.DemoDocument, bool) {
	if p.user == nil {
		return models.DemoDocument{}, false
	}
	i := p.user.FindDocument(id)
	if i < 0 || p.user.Documents[i].Status != status {
		return models.DemoDocument{}, false
	}
	return p.user.Documents[i].Clone(), true
}

func (p *Provider) cancelPendingLocked() int {
	if p.user == nil {
		return 0
	}
	cancelled := 0
	for _, d := range p.user.Documents {
		if p.scheduler.Cancel(d.ID) {
			cancelled++
		}
	}
	p.metrics.AddTimersCancelled(cancelled)
	return cancelled
}

func (p *Provider) persistLocked(ctx context.Context) error {
	start := time.Now()
	err := p.store.Save(ctx, p.profile, p.user)
	p.metrics.ObserveSaveLatency(time.Since(start))
	if err != nil {
		p.metrics.IncrementStoreFailure("save")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist demo user")
	}
	return nil
}

func (p *Provider) persistInCallbackLocked(ctx context.Context, span trace.Span, id string) {
	if err := p.persistLocked(ctx); err != nil {
		recordSpanError(span, err)
		p.logger.ErrorContext(ctx, "failed to persist document transition",
			"profile", p.profile,
			"document_id", id,
			"error", err,
		)
	}
}

func (p *Provider) callbackContext(name, id string) (context.Context, context.CancelFunc, trace.Span) {
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	ctx = requestcontext.WithProfileID(ctx, p.profile)
	ctx, span := p.startSpan(ctx, name, attribute.String("document.id", id))
	return ctx, cancel, span
}

func (p *Provider) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("demo.profile", p.profile))
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func spanError(span trace.Span, err error) error {
	if err != nil {
		recordSpanError(span, err)
	}
	return err
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func documentName(docType models.DocumentType) string {
	if spec, ok := models.Spec(docType); ok {
		return spec.Name
	}
	return docType.String()
}
