package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/flowsmith/pkg/eventbus"
	"github.com/dukex/flowsmith/pkg/events"
	"github.com/dukex/flowsmith/pkg/log"
	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/otelhelper"
	"github.com/dukex/flowsmith/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Manager saves, loads and transforms workflow definitions and templates.
// Mutations of one record are serialized; different records proceed in parallel.
type Manager struct {
	persistence persistence.Persistence
	cache       *Cache
	locks       *keyedMutex
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPublisher publishes lifecycle events on p.
func WithPublisher(p eventbus.EventPublisher) ManagerOption {
	return func(m *Manager) { m.publisher = p }
}

// WithCache shares c between managers of the same process.
func WithCache(c *Cache) ManagerOption {
	return func(m *Manager) { m.cache = c }
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *Manager) { m.tracer = tracer }
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager on top of p.
func NewManager(p persistence.Persistence, opts ...ManagerOption) *Manager {
	m := &Manager{
		persistence: p,
		cache:       NewCache(),
		locks:       newKeyedMutex(),
		logger:      log.WithModule("manager"),
		tracer:      otelhelper.Tracer(),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// HealthCheck checks the health of the persistence layer.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if m.persistence == nil {
		return ErrManagerUnavailable
	}

	if err := m.persistence.HealthCheck(ctx); err != nil {
		return fmt.Errorf("persistence layer is unhealthy: %w", err)
	}

	return nil
}

// Save fills omitted fields with defaults, recomputes the metadata, validates
// and persists the workflow. The input is not modified; the stored aggregate
// is returned.
func (m *Manager) Save(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	w := workflow.Clone()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}

	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "manager.save",
		attribute.String(otelhelper.WorkflowIDKey, w.ID),
		attribute.String(otelhelper.WorkflowNameKey, w.Name))
	defer span.End()

	unlock := m.locks.Lock(workflowKey(w.ID))
	defer unlock()

	saved, created, err := m.saveLocked(ctx, w)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	m.publish(ctx, saved.ID, events.WorkflowSaved{
		BaseEvent: events.NewBaseEvent(events.WorkflowSavedEvent, saved.ID),
		Name:      saved.Name,
		Version:   saved.Version,
		Created:   created,
	})

	return saved, nil
}

// saveLocked persists w. The caller holds the lock for w.ID.
func (m *Manager) saveLocked(ctx context.Context, w *models.Workflow) (*models.Workflow, bool, error) {
	existing, err := m.loadWorkflow(ctx, w.ID)
	if err != nil {
		return nil, false, err
	}

	applyDefaults(w)

	now := m.now().UTC()

	if existing != nil {
		w.CreatedAt = existing.CreatedAt
		w.Metadata.ExecutionCount = existing.Metadata.ExecutionCount
		w.Metadata.SuccessRate = existing.Metadata.SuccessRate
		w.Metadata.LastExecuted = existing.Metadata.LastExecuted

		if w.Metadata.Category == "" {
			w.Metadata.Category = existing.Metadata.Category
		}

		if w.CreatedBy == "" {
			w.CreatedBy = existing.CreatedBy
		}
	} else {
		w.CreatedAt = now
		w.Metadata.ExecutionCount = 0
		w.Metadata.SuccessRate = 0
		w.Metadata.LastExecuted = nil
	}

	w.UpdatedAt = now
	w.Metadata = models.ComputeMetadata(w)

	if err := models.Validate(w); err != nil {
		return nil, false, fmt.Errorf("save workflow %s: %w", w.ID, err)
	}

	if err := m.persistence.SaveWorkflow(ctx, w); err != nil {
		return nil, false, fmt.Errorf("failed to save workflow: %w", err)
	}

	m.cache.PutWorkflow(w)

	m.logger.InfoContext(ctx, "workflow saved",
		"workflow_id", w.ID,
		"name", w.Name,
		"nodes", w.Metadata.NodeCount,
		"created", existing == nil)

	return w, existing == nil, nil
}

// applyDefaults fills every omitted field the schema defines a default for.
func applyDefaults(w *models.Workflow) {
	if w.Version == "" {
		w.Version = models.DefaultVersion
	}

	if w.Settings == nil {
		settings := models.DefaultSettings()
		w.Settings = &settings
	} else {
		w.Settings.ApplyDefaults()
	}

	if w.Variables == nil {
		w.Variables = make(map[string]any)
	}

	w.Tags = models.NormalizeTags(w.Tags)

	if w.Nodes == nil {
		w.Nodes = make([]*models.Node, 0)
	}

	if w.Connections == nil {
		w.Connections = make([]*models.Connection, 0)
	}

	for _, node := range w.Nodes {
		if node == nil {
			continue
		}

		if node.ID == "" {
			node.ID = uuid.NewString()
		}

		if node.Parameters == nil {
			node.Parameters = make(map[string]any)
		}

		fillPortIDs(node.ID, node.Inputs)
		fillPortIDs(node.ID, node.Outputs)
	}

	for _, conn := range w.Connections {
		if conn != nil && conn.ID == "" {
			conn.ID = uuid.NewString()
		}
	}
}

func fillPortIDs(nodeID string, ports []models.Port) {
	for i := range ports {
		if ports[i].ID == "" && ports[i].Name != "" {
			ports[i].ID = models.MakePortID(nodeID, ports[i].Name)
		}
	}
}

// Load returns the workflow with id, from the cache when possible.
func (m *Manager) Load(ctx context.Context, id string) (*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "manager.load",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	w, err := m.loadWorkflow(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if w == nil {
		return nil, ErrWorkflowNotFound
	}

	return w, nil
}

func (m *Manager) loadWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	if w, ok := m.cache.Workflow(id); ok {
		return w, nil
	}

	w, err := m.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	if w == nil {
		return nil, nil
	}

	m.cache.PutWorkflow(w)

	return w, nil
}

// Delete removes the workflow from the cache and the backend. It reports
// false, without error, when the workflow does not exist.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "manager.delete",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	unlock := m.locks.Lock(workflowKey(id))
	defer unlock()

	existing, err := m.loadWorkflow(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return false, err
	}

	if existing == nil {
		return false, nil
	}

	if err := m.persistence.DeleteWorkflow(ctx, id); err != nil {
		otelhelper.SetError(span, err)

		return false, fmt.Errorf("failed to delete workflow: %w", err)
	}

	m.cache.RemoveWorkflow(id)

	m.logger.InfoContext(ctx, "workflow deleted", "workflow_id", id)
	m.publish(ctx, id, events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, id),
	})

	return true, nil
}

// ListFilter narrows List. Empty fields do not filter.
type ListFilter struct {
	// Tags keeps workflows carrying at least one of the tags.
	Tags      []string
	Category  string
	CreatedBy string
	// Search matches name, description or any tag, case-insensitively.
	Search string
	Active *bool
}

func (f ListFilter) matches(w *models.Workflow) bool {
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, w.HasTag) {
		return false
	}

	if f.Category != "" && !strings.EqualFold(f.Category, w.Metadata.Category) {
		return false
	}

	if f.CreatedBy != "" && f.CreatedBy != w.CreatedBy {
		return false
	}

	if f.Active != nil && *f.Active != w.Active {
		return false
	}

	if f.Search != "" {
		search := strings.ToLower(f.Search)

		found := strings.Contains(strings.ToLower(w.Name), search) ||
			strings.Contains(strings.ToLower(w.Description), search) ||
			slices.ContainsFunc(w.Tags, func(tag string) bool {
				return strings.Contains(strings.ToLower(tag), search)
			})

		if !found {
			return false
		}
	}

	return true
}

// List loads every workflow and returns those matching filter, most recently
// updated first.
func (m *Manager) List(ctx context.Context, filter ListFilter) ([]*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "manager.list")
	defer span.End()

	all, err := m.persistence.Workflows(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	result := make([]*models.Workflow, 0, len(all))

	for _, w := range all {
		m.cache.PutWorkflow(w)

		if filter.matches(w) {
			result = append(result, w)
		}
	}

	slices.SortStableFunc(result, func(a, b *models.Workflow) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.Name, b.Name)
	})

	span.SetAttributes(attribute.Int("flowsmith.workflows.count", len(result)))

	return result, nil
}

// Duplicate saves a deep copy of the workflow with fresh workflow, node and
// connection ids. Node names are kept. The copy is inactive and named
// newName, or "<name> (Copy)" when newName is empty.
func (m *Manager) Duplicate(ctx context.Context, id, newName string) (*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "manager.duplicate",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	unlockSource := m.locks.Lock(workflowKey(id))

	source, err := m.loadWorkflow(ctx, id)

	unlockSource()

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if source == nil {
		return nil, ErrWorkflowNotFound
	}

	duplicate := source.CloneWithFreshIDs()
	duplicate.Active = false

	duplicate.Name = newName
	if duplicate.Name == "" {
		duplicate.Name = source.Name + " (Copy)"
	}

	unlock := m.locks.Lock(workflowKey(duplicate.ID))
	defer unlock()

	saved, _, err := m.saveLocked(ctx, duplicate)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	m.publish(ctx, saved.ID, events.WorkflowSaved{
		BaseEvent: events.NewBaseEvent(events.WorkflowSavedEvent, saved.ID),
		Name:      saved.Name,
		Version:   saved.Version,
		Created:   true,
	})

	return saved, nil
}

// RecordExecution folds one run outcome into the workflow's execution
// statistics. It does not count as a structural save, so updatedAt is kept.
func (m *Manager) RecordExecution(ctx context.Context, id string, success bool, at time.Time) (*models.Workflow, error) {
	unlock := m.locks.Lock(workflowKey(id))
	defer unlock()

	w, err := m.loadWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	if w == nil {
		return nil, ErrWorkflowNotFound
	}

	w.Metadata.RecordExecution(success, at)

	if err := m.persistence.SaveWorkflow(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to record execution: %w", err)
	}

	m.cache.PutWorkflow(w)

	return w, nil
}

// publish sends event when a publisher is configured. Failures are logged only.
func (m *Manager) publish(ctx context.Context, key string, event eventbus.Event) {
	if m.publisher == nil {
		return
	}

	if err := m.publisher.Publish(ctx, key, event); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(),
			"key", key,
			"error", err)
	}
}
