// Package persistence provides the storage abstraction for workflow definitions and templates.
package persistence

import (
	"context"

	"github.com/dukex/flowsmith/pkg/models"
)

// Persistence stores workflow definitions and templates as whole aggregates.
// Lookups of absent records return (nil, nil) and deletes of absent records
// succeed, so callers decide what "not found" means.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error

	Templates(ctx context.Context) ([]*models.WorkflowTemplate, error)
	TemplateByID(ctx context.Context, id string) (*models.WorkflowTemplate, error)
	SaveTemplate(ctx context.Context, template *models.WorkflowTemplate) error
	DeleteTemplate(ctx context.Context, id string) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
