package errorhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/dukex/flowsmith/pkg/eventbus"
	"github.com/dukex/flowsmith/pkg/events"
)

// Notifier delivers an error notification on one channel.
type Notifier interface {
	Notify(ctx context.Context, we *WorkflowError) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, we *WorkflowError) error

func (f NotifierFunc) Notify(ctx context.Context, we *WorkflowError) error {
	return f(ctx, we)
}

func summary(we *WorkflowError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Workflow error [%s/%s]", we.Type, we.Severity)

	if we.NodeName != "" {
		fmt.Fprintf(&b, " in node %q", we.NodeName)
	}

	if we.ExecutionID != "" {
		fmt.Fprintf(&b, " (execution %s, attempt %d)", we.ExecutionID, we.Attempt)
	}

	fmt.Fprintf(&b, ": %s", we.Message)

	return b.String()
}

// EmailNotifier sends notifications through an SMTP relay.
type EmailNotifier struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a notifier sending to the given recipients through addr (host:port).
// auth may be nil for relays without authentication.
func NewEmailNotifier(addr, from string, to []string, auth smtp.Auth) *EmailNotifier {
	return &EmailNotifier{
		addr: addr,
		auth: auth,
		from: from,
		to:   to,
		send: smtp.SendMail,
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, we *WorkflowError) error {
	var msg bytes.Buffer

	fmt.Fprintf(&msg, "From: %s\r\n", n.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.to, ", "))
	fmt.Fprintf(&msg, "Subject: [flowsmith] %s error in %s\r\n", we.Severity, nodeLabel(we))
	fmt.Fprintf(&msg, "Date: %s\r\n", we.Timestamp.Format(time.RFC1123Z))
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(summary(we))
	msg.WriteString("\r\n")

	done := make(chan error, 1)

	go func() {
		done <- n.send(n.addr, n.auth, n.from, n.to, msg.Bytes())
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email notification: %w", err)
		}

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nodeLabel(we *WorkflowError) string {
	if we.NodeName != "" {
		return we.NodeName
	}

	if we.NodeID != "" {
		return we.NodeID
	}

	return "workflow"
}

// SlackNotifier posts notifications to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewSlackNotifier(webhookURL string, client *http.Client) *SlackNotifier {
	if client == nil {
		client = http.DefaultClient
	}

	return &SlackNotifier{webhookURL: webhookURL, client: client}
}

func (n *SlackNotifier) Notify(ctx context.Context, we *WorkflowError) error {
	return postJSON(ctx, n.client, n.webhookURL, map[string]any{"text": summary(we)}, nil)
}

// WebhookNotifier posts the classified error as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	headers map[string]string
}

func NewWebhookNotifier(url string, client *http.Client, headers map[string]string) *WebhookNotifier {
	if client == nil {
		client = http.DefaultClient
	}

	return &WebhookNotifier{url: url, client: client, headers: headers}
}

func (n *WebhookNotifier) Notify(ctx context.Context, we *WorkflowError) error {
	return postJSON(ctx, n.client, n.url, we, n.headers)
}

func postJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}

	return nil
}

// EventBusNotifier publishes a node.execution.failed event.
type EventBusNotifier struct {
	publisher  eventbus.EventPublisher
	workflowID func(ctx context.Context) string
}

// NewEventBusNotifier creates a notifier publishing on publisher. The workflow id
// of the event is read from the context set by WithWorkflowID.
func NewEventBusNotifier(publisher eventbus.EventPublisher) *EventBusNotifier {
	return &EventBusNotifier{publisher: publisher, workflowID: WorkflowIDFromContext}
}

func (n *EventBusNotifier) Notify(ctx context.Context, we *WorkflowError) error {
	workflowID := n.workflowID(ctx)

	event := events.NodeExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.NodeExecutionFailedEvent, workflowID),
		ExecutionID: we.ExecutionID,
		NodeID:      we.NodeID,
		NodeName:    we.NodeName,
		ErrorID:     we.ID,
		ErrorType:   string(we.Type),
		Severity:    string(we.Severity),
		Error:       we.Message,
		Attempt:     we.Attempt,
		Retryable:   we.Retryable,
	}

	key := we.ExecutionID
	if key == "" {
		key = workflowID
	}

	return n.publisher.Publish(ctx, key, event)
}

type workflowIDKey struct{}

// WithWorkflowID attaches the id of the running workflow to ctx for notifiers.
func WithWorkflowID(ctx context.Context, workflowID string) context.Context {
	return context.WithValue(ctx, workflowIDKey{}, workflowID)
}

// WorkflowIDFromContext returns the workflow id set by WithWorkflowID.
func WorkflowIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(workflowIDKey{}).(string)

	return id
}
