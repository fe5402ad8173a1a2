package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/flowsmith/pkg/events"
	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// TemplateOverrides replaces template fields that would otherwise be
// derived from the source workflow. Zero values keep the derived value.
type TemplateOverrides struct {
	Name        string
	Description string
	Category    string
	Tags        []string
	Difficulty  models.Difficulty
	Preview     string
}

// SaveAsTemplate snapshots the structural fields of a stored workflow into a
// new template. Identity, ownership and execution statistics are dropped;
// usage count and rating start at zero.
func (m *Manager) SaveAsTemplate(ctx context.Context, workflowID string, overrides TemplateOverrides) (*models.WorkflowTemplate, error) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "manager.save_as_template",
		attribute.String(otelhelper.WorkflowIDKey, workflowID))
	defer span.End()

	w, err := m.Load(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	now := m.now().UTC()

	tmpl := &models.WorkflowTemplate{
		ID:          uuid.NewString(),
		Name:        firstNonEmpty(overrides.Name, w.Name),
		Description: firstNonEmpty(overrides.Description, w.Description),
		Category:    firstNonEmpty(overrides.Category, w.Metadata.Category),
		Tags:        w.Tags,
		Difficulty:  w.Metadata.Difficulty,
		Preview:     overrides.Preview,
		CreatedAt:   now,
		UpdatedAt:   now,
		Workflow:    models.TemplateBody(w),
	}

	if overrides.Tags != nil {
		tmpl.Tags = overrides.Tags
	}

	tmpl.Tags = models.NormalizeTags(tmpl.Tags)

	if overrides.Difficulty != "" {
		tmpl.Difficulty = overrides.Difficulty
	}

	span.SetAttributes(attribute.String(otelhelper.TemplateIDKey, tmpl.ID))

	if tmpl.Name == "" {
		err := NewValidationError("save_as_template", "missing_name", "template name is required", nil)
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := m.persistence.SaveTemplate(ctx, tmpl); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	m.cache.PutTemplate(tmpl)

	m.logger.InfoContext(ctx, "template saved",
		"template_id", tmpl.ID,
		"workflow_id", workflowID,
		"name", tmpl.Name)

	m.publish(ctx, workflowID, events.TemplateCreated{
		BaseEvent:  events.NewBaseEvent(events.TemplateCreatedEvent, workflowID),
		TemplateID: tmpl.ID,
		Name:       tmpl.Name,
		Category:   tmpl.Category,
	})

	return tmpl.Clone(), nil
}

// InstantiateTemplate saves a new workflow built from the template body with
// fresh identifiers and increments the template's usage count. The usage
// count only moves once the workflow has been saved.
func (m *Manager) InstantiateTemplate(ctx context.Context, templateID, workflowName string) (*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "manager.instantiate_template",
		attribute.String(otelhelper.TemplateIDKey, templateID))
	defer span.End()

	unlock := m.locks.Lock(templateKey(templateID))
	defer unlock()

	tmpl, err := m.loadTemplate(ctx, templateID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if tmpl == nil {
		return nil, ErrTemplateNotFound
	}

	w := tmpl.NewWorkflow(workflowName)

	unlockWorkflow := m.locks.Lock(workflowKey(w.ID))
	saved, _, err := m.saveLocked(ctx, w)

	unlockWorkflow()

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	tmpl.UsageCount++
	tmpl.UpdatedAt = m.now().UTC()

	if err := m.persistence.SaveTemplate(ctx, tmpl); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to update template usage: %w", err)
	}

	m.cache.PutTemplate(tmpl)

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, saved.ID))

	m.logger.InfoContext(ctx, "template instantiated",
		"template_id", templateID,
		"workflow_id", saved.ID,
		"usage_count", tmpl.UsageCount)

	m.publish(ctx, saved.ID, events.WorkflowSaved{
		BaseEvent: events.NewBaseEvent(events.WorkflowSavedEvent, saved.ID),
		Name:      saved.Name,
		Version:   saved.Version,
		Created:   true,
	})
	m.publish(ctx, saved.ID, events.TemplateInstantiated{
		BaseEvent:  events.NewBaseEvent(events.TemplateInstantiatedEvent, saved.ID),
		TemplateID: templateID,
		UsageCount: tmpl.UsageCount,
	})

	return saved, nil
}

// LoadTemplate returns the template with id.
func (m *Manager) LoadTemplate(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	tmpl, err := m.loadTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	if tmpl == nil {
		return nil, ErrTemplateNotFound
	}

	return tmpl, nil
}

func (m *Manager) loadTemplate(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	if tmpl, ok := m.cache.Template(id); ok {
		return tmpl, nil
	}

	tmpl, err := m.persistence.TemplateByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	if tmpl == nil {
		return nil, nil
	}

	m.cache.PutTemplate(tmpl)

	return tmpl, nil
}

// ListTemplates returns templates, optionally restricted to a category,
// most used first.
func (m *Manager) ListTemplates(ctx context.Context, category string) ([]*models.WorkflowTemplate, error) {
	all, err := m.persistence.Templates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	result := make([]*models.WorkflowTemplate, 0, len(all))

	for _, tmpl := range all {
		if category != "" && !strings.EqualFold(category, tmpl.Category) {
			continue
		}

		result = append(result, tmpl)
	}

	slices.SortStableFunc(result, func(a, b *models.WorkflowTemplate) int {
		if a.UsageCount != b.UsageCount {
			return b.UsageCount - a.UsageCount
		}

		return strings.Compare(a.Name, b.Name)
	})

	return result, nil
}

// DeleteTemplate removes the template. It reports false when it does not exist.
func (m *Manager) DeleteTemplate(ctx context.Context, id string) (bool, error) {
	unlock := m.locks.Lock(templateKey(id))
	defer unlock()

	tmpl, err := m.loadTemplate(ctx, id)
	if err != nil {
		return false, err
	}

	if tmpl == nil {
		return false, nil
	}

	if err := m.persistence.DeleteTemplate(ctx, id); err != nil {
		return false, fmt.Errorf("failed to delete template: %w", err)
	}

	m.cache.RemoveTemplate(id)

	m.logger.InfoContext(ctx, "template deleted", "template_id", id)

	return true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
