// Package bolt provides embedded bbolt persistence for workflows and templates.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/persistence"
	"go.etcd.io/bbolt"
)

var (
	workflowsBucket = []byte("workflows")
	templatesBucket = []byte("templates")
)

const openTimeout = time.Second

// Persistence stores each record as a JSON value keyed by id in its bucket.
type Persistence struct {
	db *bbolt.DB
}

// NewPersistence opens (or creates) the database file. A leading bolt:// scheme is stripped.
func NewPersistence(filename string) (*Persistence, error) {
	filename = strings.TrimPrefix(filename, "bolt://")

	db, err := bbolt.Open(filename, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt database %s: %w", filename, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{workflowsBucket, templatesBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Persistence{db: db}, nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return p.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(workflowsBucket) == nil || tx.Bucket(templatesBucket) == nil {
			return fmt.Errorf("bolt database %s is missing buckets", p.db.Path())
		}

		return nil
	})
}

func (p *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	workflows, err := all[models.Workflow](p.db, workflowsBucket)
	if err != nil {
		return nil, persistence.NewWorkflowError("Workflows", "", err)
	}

	return workflows, nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	workflow, err := get[models.Workflow](p.db, workflowsBucket, id)
	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return workflow, nil
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	if err := put(p.db, workflowsBucket, workflow.ID, workflow); err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	if err := remove(p.db, workflowsBucket, id); err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	return nil
}

func (p *Persistence) Templates(_ context.Context) ([]*models.WorkflowTemplate, error) {
	templates, err := all[models.WorkflowTemplate](p.db, templatesBucket)
	if err != nil {
		return nil, persistence.NewTemplateError("Templates", "", err)
	}

	return templates, nil
}

func (p *Persistence) TemplateByID(_ context.Context, id string) (*models.WorkflowTemplate, error) {
	template, err := get[models.WorkflowTemplate](p.db, templatesBucket, id)
	if err != nil {
		return nil, persistence.NewTemplateError("TemplateByID", id, err)
	}

	return template, nil
}

func (p *Persistence) SaveTemplate(_ context.Context, template *models.WorkflowTemplate) error {
	if err := put(p.db, templatesBucket, template.ID, template); err != nil {
		return persistence.NewTemplateError("SaveTemplate", template.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteTemplate(_ context.Context, id string) error {
	if err := remove(p.db, templatesBucket, id); err != nil {
		return persistence.NewTemplateError("DeleteTemplate", id, err)
	}

	return nil
}

func put(db *bbolt.DB, bucket []byte, id string, record any) error {
	if id == "" {
		return persistence.ErrInvalidID
	}

	js, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(id), js)
	})
}

func remove(db *bbolt.DB, bucket []byte, id string) error {
	if id == "" {
		return persistence.ErrInvalidID
	}

	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(id))
	})
}

func get[T any](db *bbolt.DB, bucket []byte, id string) (*T, error) {
	if id == "" {
		return nil, persistence.ErrInvalidID
	}

	var record *T

	err := db.View(func(tx *bbolt.Tx) error {
		// Values are only valid inside the transaction; Unmarshal copies them.
		bs := tx.Bucket(bucket).Get([]byte(id))
		if bs == nil {
			return nil
		}

		var decoded T
		if err := json.Unmarshal(bs, &decoded); err != nil {
			return fmt.Errorf("%w: %s: %w", persistence.ErrCorruptRecord, id, err)
		}

		record = &decoded

		return nil
	})

	return record, err
}

// all returns the bucket's records in key order.
func all[T any](db *bbolt.DB, bucket []byte) ([]*T, error) {
	records := make([]*T, 0)

	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var record T
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("%w: %s: %w", persistence.ErrCorruptRecord, k, err)
			}

			records = append(records, &record)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

var _ persistence.Persistence = (*Persistence)(nil)
