// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "flowsmith.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Definition lifecycle events.
	WorkflowSavedEvent    EventType = "workflow.saved"
	WorkflowDeletedEvent  EventType = "workflow.deleted"
	WorkflowImportedEvent EventType = "workflow.imported"

	// Template events.
	TemplateCreatedEvent      EventType = "template.created"
	TemplateInstantiatedEvent EventType = "template.instantiated"

	// Execution events.
	NodeExecutionFailedEvent EventType = "node.execution.failed"
	ExecutionFinishedEvent   EventType = "execution.finished"
)

// EventTypes lists every event type published on Topic.
var EventTypes = []EventType{
	WorkflowSavedEvent,
	WorkflowDeletedEvent,
	WorkflowImportedEvent,
	TemplateCreatedEvent,
	TemplateInstantiatedEvent,
	NodeExecutionFailedEvent,
	ExecutionFinishedEvent,
}

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

type WorkflowSaved struct {
	BaseEvent

	Name    string `json:"name"`
	Version string `json:"version"`
	Created bool   `json:"created"`
}

func (e WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (e WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

type WorkflowImported struct {
	BaseEvent

	Name   string `json:"name"`
	Format string `json:"format"`
}

func (e WorkflowImported) GetType() EventType {
	return WorkflowImportedEvent
}

type TemplateCreated struct {
	BaseEvent

	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
}

func (e TemplateCreated) GetType() EventType {
	return TemplateCreatedEvent
}

// TemplateInstantiated is published when a template produces a new workflow.
// WorkflowID refers to the new workflow.
type TemplateInstantiated struct {
	BaseEvent

	TemplateID string `json:"template_id"`
	UsageCount int    `json:"usage_count"`
}

func (e TemplateInstantiated) GetType() EventType {
	return TemplateInstantiatedEvent
}

type NodeExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	NodeName    string `json:"node_name"`
	ErrorID     string `json:"error_id"`
	ErrorType   string `json:"error_type"`
	Severity    string `json:"severity"`
	Error       string `json:"error"`
	Attempt     int    `json:"attempt"`
	Retryable   bool   `json:"retryable"`
}

func (e NodeExecutionFailed) GetType() EventType {
	return NodeExecutionFailedEvent
}

type ExecutionFinished struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	NodeCount   int           `json:"node_count"`
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}
