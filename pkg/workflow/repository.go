package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/registry"
)

// Repository wraps the persistence layer with workflow lifecycle rules:
// identifiers, timestamps and save-time validation.
type Repository struct {
	persistence persistence.Persistence
	registry    *registry.Registry
}

func NewRepository(store persistence.Persistence, reg *registry.Registry) *Repository {
	return &Repository{
		persistence: store,
		registry:    reg,
	}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.Workflows(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	return workflows, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.persistence.WorkflowByID(ctx, id)
}

// Create validates and saves a new workflow, assigning an ID when absent.
func (r *Repository) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	err := Validate(wf, r.registry)
	if err != nil {
		return nil, err
	}

	err = r.persistence.SaveWorkflow(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

// Update validates and saves a new version of an existing workflow,
// preserving its identity and creation time.
func (r *Repository) Update(ctx context.Context, id string, wf *models.Workflow) (*models.Workflow, error) {
	existing, err := r.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	wf.ID = existing.ID
	wf.CreatedAt = existing.CreatedAt
	wf.UpdatedAt = time.Now().UTC()

	err = Validate(wf, r.registry)
	if err != nil {
		return nil, err
	}

	err = r.persistence.SaveWorkflow(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.persistence.DeleteWorkflow(ctx, id)
}
