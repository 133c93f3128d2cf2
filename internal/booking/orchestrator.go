// Package booking drives the appointment conversation: it reads a patient's
// message, advances the session's stage and talks to the calendar.
package booking

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"dentalbot/internal/audit"
	"dentalbot/internal/availability"
	"dentalbot/internal/calendar"
	"dentalbot/internal/clinic"
	"dentalbot/internal/intent"
	"dentalbot/internal/metrics"
	"dentalbot/internal/pricing"
	"dentalbot/internal/session"
)

const (
	outcomeOK       = "ok"
	outcomeDegraded = "degraded"
	outcomeError    = "error"

	classifierHistory = 6
	maxCandidates     = 20
)

// Config holds scheduling policy and upstream limits.
type Config struct {
	Policy     availability.Policy
	SearchDays int
	// SlotStep is the grid candidate start times are cut on.
	SlotStep          time.Duration
	CalendarTimeout   time.Duration
	ClassifierTimeout time.Duration
	CreateAttempts    int
	RetryBackoff      time.Duration
}

func (c Config) withDefaults() Config {
	if c.Policy.EndHour <= c.Policy.StartHour {
		c.Policy.StartHour, c.Policy.EndHour = 9, 18
	}
	if c.Policy.MinDurationMinutes <= 0 {
		c.Policy.MinDurationMinutes = 15
	}
	if c.Policy.Location == nil {
		c.Policy.Location = time.UTC
	}
	if c.SearchDays <= 0 {
		c.SearchDays = 14
	}
	if c.SlotStep <= 0 {
		c.SlotStep = 15 * time.Minute
	}
	if c.CalendarTimeout <= 0 {
		c.CalendarTimeout = 10 * time.Second
	}
	if c.ClassifierTimeout <= 0 {
		c.ClassifierTimeout = 8 * time.Second
	}
	if c.CreateAttempts <= 0 {
		c.CreateAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	return c
}

// Orchestrator is safe for concurrent use. Turns for the same conversation are
// serialized; different conversations proceed in parallel.
type Orchestrator struct {
	store      session.Store
	cal        calendar.Calendar
	classifier intent.Classifier
	fallback   intent.Keyword
	catalog    clinic.Catalog
	prices     pricing.Source
	auditor    audit.Auditor
	cfg        Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	locks keyedMutex
}

type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithPricing(src pricing.Source) Option {
	return func(o *Orchestrator) { o.prices = src }
}

func WithAuditor(a audit.Auditor) Option {
	return func(o *Orchestrator) { o.auditor = a }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(store session.Store, cal calendar.Calendar, classifier intent.Classifier, catalog clinic.Catalog, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		cal:        cal,
		classifier: classifier,
		fallback:   intent.Keyword{BookingTerms: catalog.BookingTerms()},
		catalog:    catalog,
		cfg:        cfg.withDefaults(),
		logger:     zap.NewNop(),
		now:        time.Now,
		sleep:      sleepContext,
	}
	if o.classifier == nil {
		o.classifier = o.fallback
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleTurn processes one inbound message and returns the reply. It never fails:
// upstream and storage errors are logged and turned into patient-safe text.
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID, phone, text string) (reply string) {
	unlock := o.locks.Lock(conversationID)
	defer unlock()

	log := o.logger.With(zap.String("conversation_id", conversationID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling turn", zap.Any("panic", r))
			o.metrics.ObserveTurn(outcomeError)
			reply = replyInternalError
		}
	}()

	if err := o.store.AppendMessage(ctx, conversationID, session.RoleUser, text); err != nil {
		log.Error("failed to record inbound message", zap.Error(err))
		o.metrics.ObserveTurn(outcomeError)
		return replyInternalError
	}
	s, err := o.store.Get(ctx, conversationID)
	if err != nil {
		log.Error("failed to load session", zap.Error(err))
		o.metrics.ObserveTurn(outcomeError)
		return replyInternalError
	}
	if strings.TrimSpace(phone) != "" {
		s.Phone = phone
	}

	t := &turn{
		o:       o,
		s:       s,
		text:    text,
		lower:   normalizeText(text),
		now:     o.now().In(o.cfg.Policy.Location),
		log:     log,
		outcome: outcomeOK,
	}
	reply = t.run(ctx)

	if _, err := o.store.Update(ctx, conversationID, func(stored *session.Session) {
		history := stored.History
		*stored = *s
		stored.History = history
	}); err != nil {
		log.Error("failed to save session", zap.Error(err), zap.String("stage", string(s.Stage)))
		o.metrics.ObserveTurn(outcomeError)
		return replyInternalError
	}
	if err := o.store.AppendMessage(ctx, conversationID, session.RoleAssistant, reply); err != nil {
		log.Warn("failed to record reply", zap.Error(err))
	}
	log.Debug("turn handled", zap.String("stage", string(s.Stage)), zap.String("outcome", t.outcome))
	o.metrics.ObserveTurn(t.outcome)
	return reply
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
