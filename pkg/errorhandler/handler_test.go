package errorhandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/flowsmith/pkg/errorhandler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T, mutate func(*errorhandler.Config), opts ...errorhandler.Option) *errorhandler.Handler {
	t.Helper()

	cfg := errorhandler.DefaultConfig()
	cfg.NotifyOnError = false

	if mutate != nil {
		mutate(&cfg)
	}

	h, err := errorhandler.New(cfg, opts...)
	require.NoError(t, err)

	t.Cleanup(h.Close)

	return h
}

func TestHandler_RetryExhaustion(t *testing.T) {
	h := newHandler(t, func(c *errorhandler.Config) {
		c.Strategy = errorhandler.StrategyRetry
		c.RetryAttempts = 2
	})

	ctx := context.Background()
	failure := errors.New("request timed out")

	first := h.Handle(ctx, failure, errorhandler.ErrorContext{NodeName: "Fetch", ExecutionID: "exec-1", AttemptNumber: 1})
	assert.True(t, first.ShouldRetry)
	assert.Equal(t, time.Second, first.Delay)
	assert.Equal(t, errorhandler.ErrorTypeTimeout, first.Error.Type)

	second := h.Handle(ctx, failure, errorhandler.ErrorContext{NodeName: "Fetch", ExecutionID: "exec-1", AttemptNumber: 2})
	assert.False(t, second.ShouldRetry)

	third := h.Handle(ctx, failure, errorhandler.ErrorContext{NodeName: "Fetch", ExecutionID: "exec-1", AttemptNumber: 3})
	assert.False(t, third.ShouldRetry)
	assert.False(t, third.ShouldContinue)
	assert.Zero(t, third.Delay)
	assert.Equal(t, 3, third.Attempt)
	assert.True(t, third.Error.Retryable)
}

func TestHandler_Strategies(t *testing.T) {
	tests := []struct {
		name           string
		strategy       errorhandler.Strategy
		continueOnFail bool
		err            error
		shouldRetry    bool
		shouldContinue bool
	}{
		{"stop", errorhandler.StrategyStop, false, errors.New("network down"), false, false},
		{"continue", errorhandler.StrategyContinue, false, errors.New("network down"), false, true},
		{"skip", errorhandler.StrategySkip, false, errors.New("unauthorized"), false, true},
		{"retry retryable", errorhandler.StrategyRetry, false, errors.New("network down"), true, false},
		{"retry non-retryable", errorhandler.StrategyRetry, false, errors.New("network: unauthorized"), false, false},
		{"stop with continueOnFail", errorhandler.StrategyStop, true, errors.New("network down"), false, true},
		{"retry non-retryable with continueOnFail", errorhandler.StrategyRetry, true, errors.New("validation failed"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, func(c *errorhandler.Config) {
				c.Strategy = tt.strategy
				c.ContinueOnFail = tt.continueOnFail
			})

			decision := h.Handle(context.Background(), tt.err, errorhandler.ErrorContext{AttemptNumber: 1})

			assert.Equal(t, tt.shouldRetry, decision.ShouldRetry)
			assert.Equal(t, tt.shouldContinue, decision.ShouldContinue)
			require.NotNil(t, decision.Error)
			assert.NotEmpty(t, decision.Error.ID)
		})
	}
}

func TestHandler_HandleWithConfigOverridesLiveConfig(t *testing.T) {
	h := newHandler(t, nil)

	cfg := h.Config()
	cfg.Strategy = errorhandler.StrategyRetry
	cfg.RetryBackoff = errorhandler.BackoffLinear
	cfg.RetryDelay = 250 * time.Millisecond

	decision := h.HandleWithConfig(context.Background(), cfg, errors.New("timeout"), errorhandler.ErrorContext{AttemptNumber: 2})

	assert.True(t, decision.ShouldRetry)
	assert.Equal(t, 500*time.Millisecond, decision.Delay)
	assert.Equal(t, errorhandler.StrategyStop, h.Config().Strategy)
}

func TestHandler_ErrorLogIsBounded(t *testing.T) {
	h := newHandler(t, nil, errorhandler.WithLogCapacity(5))

	for i := range 8 {
		h.Handle(context.Background(), fmt.Errorf("failure %d", i), errorhandler.ErrorContext{ExecutionID: "exec-1"})
	}

	assert.Equal(t, 5, h.LoggedErrors())

	logged := h.ExecutionErrors("exec-1")
	require.Len(t, logged, 5)
	assert.Equal(t, "failure 3", logged[0].Message)
	assert.Equal(t, "failure 7", logged[4].Message)
}

func TestHandler_ErrorStats(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	var tick atomic.Int64

	h := newHandler(t, nil, errorhandler.WithClock(func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Minute)
	}))

	ctx := context.Background()
	h.Handle(ctx, errors.New("request timed out"), errorhandler.ErrorContext{NodeID: "a", ExecutionID: "e1"})
	h.Handle(ctx, errors.New("unauthorized"), errorhandler.ErrorContext{NodeID: "b", ExecutionID: "e1"})
	h.Handle(ctx, errors.New("network down"), errorhandler.ErrorContext{NodeID: "a", ExecutionID: "e2"})

	stats := h.ErrorStats(nil)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByType[errorhandler.ErrorTypeTimeout])
	assert.Equal(t, 1, stats.ByType[errorhandler.ErrorTypeAuthentication])
	assert.Equal(t, 1, stats.ByType[errorhandler.ErrorTypeConnection])
	assert.Equal(t, 2, stats.ByNode["a"])
	assert.Equal(t, 2, stats.RetryableCount)
	require.Len(t, stats.RecentErrors, 3)
	assert.Equal(t, "network down", stats.RecentErrors[0].Message)

	ranged := h.ErrorStats(&errorhandler.TimeRange{From: base.Add(2 * time.Minute)})
	assert.Equal(t, 2, ranged.Total)

	assert.Len(t, h.ExecutionErrors("e1"), 2)

	h.ClearErrorLog()
	assert.Zero(t, h.ErrorStats(nil).Total)
}

func TestHandler_RecentErrorsLimit(t *testing.T) {
	h := newHandler(t, nil)

	for i := range 15 {
		h.Handle(context.Background(), fmt.Errorf("failure %d", i), errorhandler.ErrorContext{})
	}

	stats := h.ErrorStats(nil)
	assert.Equal(t, 15, stats.Total)
	require.Len(t, stats.RecentErrors, 10)
	assert.Equal(t, "failure 14", stats.RecentErrors[0].Message)
}

func TestHandler_UpdateConfigKeepsHistory(t *testing.T) {
	h := newHandler(t, nil)
	h.Handle(context.Background(), errors.New("boom"), errorhandler.ErrorContext{})

	strategy := errorhandler.StrategyRetry
	attempts := 5

	cfg, err := h.UpdateConfig(errorhandler.ConfigUpdate{Strategy: &strategy, RetryAttempts: &attempts})
	require.NoError(t, err)
	assert.Equal(t, errorhandler.StrategyRetry, cfg.Strategy)
	assert.Equal(t, 5, h.Config().RetryAttempts)
	assert.Equal(t, errorhandler.BackoffExponential, h.Config().RetryBackoff)
	assert.Equal(t, 1, h.LoggedErrors())

	invalid := errorhandler.Strategy("explode")
	_, err = h.UpdateConfig(errorhandler.ConfigUpdate{Strategy: &invalid})
	require.Error(t, err)
	assert.Equal(t, errorhandler.StrategyRetry, h.Config().Strategy)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := errorhandler.DefaultConfig()
	cfg.RetryBackoff = "quadratic"

	_, err := errorhandler.New(cfg)
	assert.Error(t, err)
}

func TestHandler_NotificationFailureIsNotPropagated(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := errorhandler.NewProm("flowsmith", registry)

	var calls atomic.Int32

	failing := errorhandler.NotifierFunc(func(context.Context, *errorhandler.WorkflowError) error {
		calls.Add(1)

		return errors.New("smtp unreachable")
	})

	h, err := errorhandler.New(errorhandler.DefaultConfig(),
		errorhandler.WithNotifier(errorhandler.ChannelEmail, failing),
		errorhandler.WithMetrics(metrics))
	require.NoError(t, err)

	decision := h.Handle(context.Background(), errors.New("request timed out"), errorhandler.ErrorContext{AttemptNumber: 1})
	h.Close()

	assert.Equal(t, "request timed out", decision.Error.Message)
	assert.Equal(t, int32(1), calls.Load())

	expected := `
# HELP flowsmith_error_notification_failures_total Failed error notifications by channel
# TYPE flowsmith_error_notification_failures_total counter
flowsmith_error_notification_failures_total{channel="email"} 1
# HELP flowsmith_node_errors_total Node errors by type and severity
# TYPE flowsmith_node_errors_total counter
flowsmith_node_errors_total{severity="low",type="timeout"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"flowsmith_error_notification_failures_total", "flowsmith_node_errors_total"))
}

func TestHandler_NotifiesHTTPChannels(t *testing.T) {
	var (
		slackBody   atomic.Value
		webhookBody atomic.Value
	)

	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		slackBody.Store(payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer slack.Close()

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload errorhandler.WorkflowError
		_ = json.NewDecoder(r.Body).Decode(&payload)
		webhookBody.Store(payload)
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	cfg := errorhandler.DefaultConfig()
	cfg.ErrorNotificationChannels = []string{errorhandler.ChannelSlack, errorhandler.ChannelWebhook}

	h, err := errorhandler.New(cfg,
		errorhandler.WithNotifier(errorhandler.ChannelSlack, errorhandler.NewSlackNotifier(slack.URL, nil)),
		errorhandler.WithNotifier(errorhandler.ChannelWebhook,
			errorhandler.NewWebhookNotifier(webhook.URL, nil, map[string]string{"X-Token": "secret"})))
	require.NoError(t, err)

	h.Handle(context.Background(), errors.New("http status 502"),
		errorhandler.ErrorContext{NodeName: "Create Ticket", ExecutionID: "exec-9", AttemptNumber: 1})
	h.Close()

	slackPayload, ok := slackBody.Load().(map[string]any)
	require.True(t, ok)
	assert.Contains(t, slackPayload["text"], `node "Create Ticket"`)

	webhookPayload, ok := webhookBody.Load().(errorhandler.WorkflowError)
	require.True(t, ok)
	assert.Equal(t, errorhandler.ErrorTypeAPI, webhookPayload.Type)
	assert.Equal(t, "exec-9", webhookPayload.ExecutionID)
}

func TestSlackNotifier_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := errorhandler.NewSlackNotifier(server.URL, nil).Notify(context.Background(), &errorhandler.WorkflowError{Message: "x"})
	assert.Error(t, err)
}

func TestHandler_ClearErrorLog(t *testing.T) {
	h := newHandler(t, nil)

	h.Handle(context.Background(), errors.New("network error"), errorhandler.ErrorContext{ExecutionID: "exec-1"})
	h.Handle(context.Background(), errors.New("invalid input"), errorhandler.ErrorContext{ExecutionID: "exec-2"})
	require.Equal(t, 2, h.LoggedErrors())

	h.ClearErrorLog()

	assert.Zero(t, h.LoggedErrors())
	assert.Empty(t, h.ExecutionErrors("exec-1"))
	assert.Zero(t, h.ErrorStats(nil).Total)
}
