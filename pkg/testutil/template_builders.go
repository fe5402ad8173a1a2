package testutil

import (
	"time"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/google/uuid"
)

// CreateTestTemplate creates a template whose body is CreateTestWorkflowWithNodes.
func CreateTestTemplate(overrides ...func(*models.WorkflowTemplate)) *models.WorkflowTemplate {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	template := &models.WorkflowTemplate{
		ID:          uuid.New().String(),
		Name:        "Test Template",
		Description: "A template for testing",
		Category:    "test",
		Tags:        []string{"test"},
		Difficulty:  models.DifficultyBeginner,
		CreatedAt:   now,
		UpdatedAt:   now,
		Workflow:    models.TemplateBody(CreateTestWorkflowWithNodes()),
	}

	for _, override := range overrides {
		override(template)
	}

	return template
}
