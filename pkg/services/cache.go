package services

import (
	"sync"

	"github.com/dukex/flowsmith/pkg/models"
)

// Cache holds loaded workflows and templates keyed by id. Values are copied on
// the way in and out so callers never share state with the cache.
type Cache struct {
	mu        sync.RWMutex
	workflows map[string]*models.Workflow
	templates map[string]*models.WorkflowTemplate
}

func NewCache() *Cache {
	return &Cache{
		workflows: make(map[string]*models.Workflow),
		templates: make(map[string]*models.WorkflowTemplate),
	}
}

func (c *Cache) Workflow(id string) (*models.Workflow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	w, ok := c.workflows[id]
	if !ok {
		return nil, false
	}

	return w.Clone(), true
}

func (c *Cache) PutWorkflow(w *models.Workflow) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.workflows[w.ID] = w.Clone()
}

func (c *Cache) RemoveWorkflow(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.workflows, id)
}

func (c *Cache) Template(id string) (*models.WorkflowTemplate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.templates[id]
	if !ok {
		return nil, false
	}

	return t.Clone(), true
}

func (c *Cache) PutTemplate(t *models.WorkflowTemplate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.templates[t.ID] = t.Clone()
}

func (c *Cache) RemoveTemplate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.templates, id)
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.workflows)
	clear(c.templates)
}

// Len returns the number of cached workflows and templates.
func (c *Cache) Len() (workflows, templates int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.workflows), len(c.templates)
}
