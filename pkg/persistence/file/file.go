// Package file provides file-based persistence for workflows and templates.
// Each record is one JSON document under <root>/workflows or <root>/templates.
package file

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	workflowRepo *repository[models.Workflow]
	templateRepo *repository[models.WorkflowTemplate]
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
// A leading file:// scheme is stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: newRepository[models.Workflow](cleanRoot, "workflows"),
		templateRepo: newRepository[models.WorkflowTemplate](cleanRoot, "templates"),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	info, err := os.Stat(fp.root)
	if err != nil {
		return fmt.Errorf("file persistence root %s: %w", fp.root, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("file persistence root %s is not a directory", fp.root)
	}

	return nil
}

func (fp *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	workflows, err := fp.workflowRepo.all()
	if err != nil {
		return nil, persistence.NewWorkflowError("Workflows", "", err)
	}

	return workflows, nil
}

func (fp *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	workflow, err := fp.workflowRepo.get(id)
	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return workflow, nil
}

func (fp *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	if err := fp.workflowRepo.save(workflow.ID, workflow); err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

func (fp *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	if err := fp.workflowRepo.delete(id); err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	return nil
}

func (fp *Persistence) Templates(_ context.Context) ([]*models.WorkflowTemplate, error) {
	templates, err := fp.templateRepo.all()
	if err != nil {
		return nil, persistence.NewTemplateError("Templates", "", err)
	}

	return templates, nil
}

func (fp *Persistence) TemplateByID(_ context.Context, id string) (*models.WorkflowTemplate, error) {
	template, err := fp.templateRepo.get(id)
	if err != nil {
		return nil, persistence.NewTemplateError("TemplateByID", id, err)
	}

	return template, nil
}

func (fp *Persistence) SaveTemplate(_ context.Context, template *models.WorkflowTemplate) error {
	if err := fp.templateRepo.save(template.ID, template); err != nil {
		return persistence.NewTemplateError("SaveTemplate", template.ID, err)
	}

	return nil
}

func (fp *Persistence) DeleteTemplate(_ context.Context, id string) error {
	if err := fp.templateRepo.delete(id); err != nil {
		return persistence.NewTemplateError("DeleteTemplate", id, err)
	}

	return nil
}

var _ persistence.Persistence = (*Persistence)(nil)
