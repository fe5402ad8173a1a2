package errorhandler

import (
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowsmith/pkg/channels/gochannel"
	"github.com/dukex/flowsmith/pkg/eventbus"
	"github.com/dukex/flowsmith/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleError() *WorkflowError {
	return &WorkflowError{
		ID:          "err-1",
		Type:        ErrorTypeTimeout,
		Severity:    SeverityMedium,
		Message:     "network timeout",
		NodeID:      "node-1",
		NodeName:    "Fetch Orders",
		ExecutionID: "exec-1",
		Attempt:     2,
		Retryable:   true,
		Timestamp:   time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC),
	}
}

func TestEmailNotifier_Notify(t *testing.T) {
	n := NewEmailNotifier("smtp.example.com:25", "flowsmith@example.com", []string{"ops@example.com", "dev@example.com"}, nil)

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)

	n.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotMsg = string(msg)

		return nil
	}

	require.NoError(t, n.Notify(context.Background(), sampleError()))

	assert.Equal(t, "smtp.example.com:25", gotAddr)
	assert.Equal(t, []string{"ops@example.com", "dev@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "To: ops@example.com, dev@example.com\r\n")
	assert.Contains(t, gotMsg, "Subject: [flowsmith] medium error in Fetch Orders\r\n")
	assert.Contains(t, gotMsg, `Workflow error [timeout/medium] in node "Fetch Orders" (execution exec-1, attempt 2): network timeout`)
}

func TestEmailNotifier_SendFailure(t *testing.T) {
	n := NewEmailNotifier("smtp.example.com:25", "a@example.com", []string{"b@example.com"}, nil)
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := n.Notify(context.Background(), sampleError())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEmailNotifier_ContextDone(t *testing.T) {
	n := NewEmailNotifier("smtp.example.com:25", "a@example.com", []string{"b@example.com"}, nil)

	release := make(chan struct{})
	defer close(release)

	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-release

		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, n.Notify(ctx, sampleError()), context.DeadlineExceeded)
}

func TestNodeLabel(t *testing.T) {
	assert.Equal(t, "Fetch", nodeLabel(&WorkflowError{NodeName: "Fetch", NodeID: "n1"}))
	assert.Equal(t, "n1", nodeLabel(&WorkflowError{NodeID: "n1"}))
	assert.Equal(t, "workflow", nodeLabel(&WorkflowError{}))
}

func TestEventBusNotifier_Publishes(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.New(slog.DiscardHandler))
	defer func() { _ = bus.Close() }()

	received := make(chan *events.NodeExecutionFailed, 1)

	require.NoError(t, bus.Handle(events.NodeExecutionFailedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.NodeExecutionFailed)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	notifier := NewEventBusNotifier(bus)
	require.NoError(t, notifier.Notify(WithWorkflowID(ctx, "wf-42"), sampleError()))

	select {
	case event := <-received:
		assert.Equal(t, "wf-42", event.WorkflowID)
		assert.Equal(t, "exec-1", event.ExecutionID)
		assert.Equal(t, "Fetch Orders", event.NodeName)
		assert.Equal(t, "timeout", event.ErrorType)
		assert.Equal(t, 2, event.Attempt)
		assert.True(t, event.Retryable)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWorkflowIDFromContext(t *testing.T) {
	assert.Empty(t, WorkflowIDFromContext(context.Background()))
	assert.Equal(t, "wf-1", WorkflowIDFromContext(WithWorkflowID(context.Background(), "wf-1")))
}

func TestEventBusNotifier_KeyAndFailure(t *testing.T) {
	var gotKey string

	failing := eventbus.PublisherFunc(func(_ context.Context, key string, event eventbus.Event) error {
		gotKey = key
		assert.Equal(t, events.NodeExecutionFailedEvent, event.GetType())

		return errors.New("broker down")
	})

	err := NewEventBusNotifier(failing).Notify(WithWorkflowID(context.Background(), "wf-7"), sampleError())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, "exec-1", gotKey, "events are keyed by execution")
}
