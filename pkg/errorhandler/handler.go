// Package errorhandler classifies node failures and decides whether a run
// should retry the node, continue past it or stop.
package errorhandler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/flowsmith/pkg/log"
	"github.com/google/uuid"
)

// Decision is the outcome of handling one failure. Delay is advisory: the
// caller schedules the retry and must drop it if the run is cancelled meanwhile.
type Decision struct {
	ShouldRetry    bool           `json:"shouldRetry"`
	ShouldContinue bool           `json:"shouldContinue"`
	Delay          time.Duration  `json:"delay,omitempty"`
	Attempt        int            `json:"attempt"`
	Error          *WorkflowError `json:"error"`
}

// Handler applies the error handling policy and keeps a bounded error log.
// It is safe for concurrent use.
type Handler struct {
	cfgMu      sync.RWMutex
	config     Config
	classifier *Classifier
	log        *errorLog
	notifiers  map[string]Notifier
	metrics    Metrics
	logger     *slog.Logger
	now        func() time.Time
	random     func() float64

	notifyMu sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// Option configures a Handler.
type Option func(*Handler)

func WithClassifier(c *Classifier) Option {
	return func(h *Handler) { h.classifier = c }
}

// WithNotifier registers the notifier used for a channel name.
func WithNotifier(channel string, n Notifier) Option {
	return func(h *Handler) { h.notifiers[channel] = n }
}

func WithMetrics(m Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithLogCapacity overrides the error log capacity.
func WithLogCapacity(capacity int) Option {
	return func(h *Handler) { h.log = newErrorLog(capacity) }
}

func withRandom(random func() float64) Option {
	return func(h *Handler) { h.random = random }
}

// New creates a Handler. The config is validated.
func New(cfg Config, opts ...Option) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Handler{
		config:     cfg,
		classifier: DefaultClassifier(),
		log:        newErrorLog(DefaultLogCapacity),
		notifiers:  make(map[string]Notifier),
		metrics:    Noop{},
		logger:     log.WithModule("errorhandler"),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Config returns the live configuration.
func (h *Handler) Config() Config {
	h.cfgMu.RLock()
	defer h.cfgMu.RUnlock()

	cfg := h.config
	cfg.ErrorNotificationChannels = append([]string(nil), h.config.ErrorNotificationChannels...)

	return cfg
}

// UpdateConfig applies a partial update. The error log is kept.
func (h *Handler) UpdateConfig(update ConfigUpdate) (Config, error) {
	h.cfgMu.Lock()
	defer h.cfgMu.Unlock()

	next := update.Apply(h.config)
	if err := next.Validate(); err != nil {
		return h.config, err
	}

	h.config = next

	h.logger.Info("error handler config updated",
		"strategy", next.Strategy,
		"retry_attempts", next.RetryAttempts,
		"retry_backoff", next.RetryBackoff)

	return next, nil
}

// Handle decides the fate of a failed node attempt using the live configuration.
func (h *Handler) Handle(ctx context.Context, err error, ec ErrorContext) Decision {
	return h.HandleWithConfig(ctx, h.Config(), err, ec)
}

// HandleWithConfig is Handle with an explicit policy, typically the live config
// overridden by per-workflow settings. The error is logged and notified as usual.
func (h *Handler) HandleWithConfig(ctx context.Context, cfg Config, err error, ec ErrorContext) Decision {
	if ec.AttemptNumber < 1 {
		ec.AttemptNumber = 1
	}

	we := h.classifier.Normalize(err, ec)
	if we.ID == "" {
		we.ID = uuid.NewString()
	}

	if we.Timestamp.IsZero() {
		we.Timestamp = h.now().UTC()
	}

	decision := Decision{Attempt: ec.AttemptNumber, Error: we}

	switch cfg.Strategy {
	case StrategyContinue, StrategySkip:
		decision.ShouldContinue = true
	case StrategyRetry:
		decision.ShouldRetry = we.Retryable && ec.AttemptNumber < cfg.RetryAttempts
	case StrategyStop:
	}

	if decision.ShouldRetry {
		random := h.random
		if random == nil {
			decision.Delay = ComputeDelay(cfg, ec.AttemptNumber)
		} else {
			decision.Delay = computeDelay(cfg, ec.AttemptNumber, random)
		}

		h.metrics.ObserveRetry(decision.Delay)
	} else if cfg.ContinueOnFail {
		decision.ShouldContinue = true
	}

	h.log.append(we.clone())
	h.metrics.IncErrors(we.Type, we.Severity)

	h.logger.WarnContext(ctx, "node failed",
		"error_id", we.ID,
		"type", we.Type,
		"severity", we.Severity,
		"node_id", we.NodeID,
		"node_name", we.NodeName,
		"execution_id", we.ExecutionID,
		"attempt", we.Attempt,
		"retryable", we.Retryable,
		"should_retry", decision.ShouldRetry,
		"should_continue", decision.ShouldContinue,
		"delay", decision.Delay,
		"error", we.Message)

	if cfg.NotifyOnError {
		h.notify(ctx, cfg, we)
	}

	return decision
}

// notify dispatches we to every configured channel without blocking the caller.
// Failures are logged and counted, never returned.
func (h *Handler) notify(ctx context.Context, cfg Config, we *WorkflowError) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	if h.closed {
		return
	}

	timeout := cfg.NotificationTimeout
	if timeout <= 0 {
		timeout = DefaultNotificationTimeout
	}

	for _, channel := range cfg.ErrorNotificationChannels {
		notifier, ok := h.notifiers[channel]
		if !ok {
			h.logger.DebugContext(ctx, "no notifier registered for channel", "channel", channel)

			continue
		}

		h.inflight.Add(1)

		go func(channel string, notifier Notifier, we *WorkflowError) {
			defer h.inflight.Done()

			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
			defer cancel()

			if err := notifier.Notify(nctx, we); err != nil {
				h.metrics.IncNotificationFailures(channel)
				h.logger.Error("error notification failed",
					"channel", channel,
					"error_id", we.ID,
					"error", err)
			}
		}(channel, notifier, we.clone())
	}
}

// Close stops accepting notifications and waits for in-flight ones.
func (h *Handler) Close() {
	h.notifyMu.Lock()
	h.closed = true
	h.notifyMu.Unlock()

	h.inflight.Wait()
}

// ErrorStats summarizes the logged errors within r; nil means all.
func (h *Handler) ErrorStats(r *TimeRange) Stats {
	return computeStats(h.log.snapshot(func(we *WorkflowError) bool {
		return r.contains(we.Timestamp)
	}))
}

// ExecutionErrors returns the logged errors of one execution, oldest first.
func (h *Handler) ExecutionErrors(executionID string) []*WorkflowError {
	return h.log.snapshot(func(we *WorkflowError) bool {
		return we.ExecutionID == executionID
	})
}

// ClearErrorLog drops every logged error.
func (h *Handler) ClearErrorLog() {
	h.log.clear()
	h.logger.Info("error log cleared")
}

// LoggedErrors returns the number of errors currently held in the log.
func (h *Handler) LoggedErrors() int {
	return h.log.count()
}
