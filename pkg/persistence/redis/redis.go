// Package redis provides Redis persistence for workflows and templates.
// Documents live under flowsmith:workflow:<id> and flowsmith:template:<id>;
// sorted sets scored by update time index them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix        = "flowsmith:"
	workflowIndexKey = keyPrefix + "workflows"
	templateIndexKey = keyPrefix + "templates"
	pingTimeout      = 2 * time.Second
)

func workflowKey(id string) string { return keyPrefix + "workflow:" + id }
func templateKey(id string) string { return keyPrefix + "template:" + id }

// Persistence implements persistence.Persistence on top of a Redis client.
type Persistence struct {
	client *goredis.Client
}

// NewPersistence connects to the Redis server addressed by url (redis://host:port/db).
func NewPersistence(ctx context.Context, url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &Persistence{client: client}, nil
}

func (p *Persistence) Close(_ context.Context) error {
	if p.client == nil {
		return nil
	}

	return p.client.Close()
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := all[models.Workflow](ctx, p.client, workflowIndexKey, workflowKey)
	if err != nil {
		return nil, persistence.NewWorkflowError("Workflows", "", err)
	}

	return workflows, nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := get[models.Workflow](ctx, p.client, workflowKey(id))
	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return workflow, nil
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	err := save(ctx, p.client, workflowIndexKey, workflowKey(workflow.ID), workflow.ID, workflow.UpdatedAt, workflow)
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	if err := remove(ctx, p.client, workflowIndexKey, workflowKey(id), id); err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	return nil
}

func (p *Persistence) Templates(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	templates, err := all[models.WorkflowTemplate](ctx, p.client, templateIndexKey, templateKey)
	if err != nil {
		return nil, persistence.NewTemplateError("Templates", "", err)
	}

	return templates, nil
}

func (p *Persistence) TemplateByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	template, err := get[models.WorkflowTemplate](ctx, p.client, templateKey(id))
	if err != nil {
		return nil, persistence.NewTemplateError("TemplateByID", id, err)
	}

	return template, nil
}

func (p *Persistence) SaveTemplate(ctx context.Context, template *models.WorkflowTemplate) error {
	err := save(ctx, p.client, templateIndexKey, templateKey(template.ID), template.ID, template.UpdatedAt, template)
	if err != nil {
		return persistence.NewTemplateError("SaveTemplate", template.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteTemplate(ctx context.Context, id string) error {
	if err := remove(ctx, p.client, templateIndexKey, templateKey(id), id); err != nil {
		return persistence.NewTemplateError("DeleteTemplate", id, err)
	}

	return nil
}

func save(ctx context.Context, client *goredis.Client, index, key, id string, updatedAt time.Time, record any) error {
	if id == "" {
		return persistence.ErrInvalidID
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := client.TxPipeline()
	pipe.Set(ctx, key, payload, 0)
	pipe.ZAdd(ctx, index, goredis.Z{Score: float64(updatedAt.UnixMilli()), Member: id})
	_, err = pipe.Exec(ctx)

	return err
}

func remove(ctx context.Context, client *goredis.Client, index, key, id string) error {
	pipe := client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, index, id)
	_, err := pipe.Exec(ctx)

	return err
}

func get[T any](ctx context.Context, client *goredis.Client, key string) (*T, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}

		return nil, err
	}

	var record T
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", persistence.ErrCorruptRecord, key, err)
	}

	return &record, nil
}

// all returns the indexed records, most recently updated first. Index entries
// whose document has vanished are skipped.
func all[T any](ctx context.Context, client *goredis.Client, index string, key func(string) string) ([]*T, error) {
	ids, err := client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*T, 0, len(ids))

	for _, id := range ids {
		record, err := get[T](ctx, client, key(id))
		if err != nil {
			return nil, err
		}

		if record != nil {
			records = append(records, record)
		}
	}

	return records, nil
}

var _ persistence.Persistence = (*Persistence)(nil)
