package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type IModelRepository interface {
	WithTx(tx *bun.Tx) IModelRepository
	WithDB(db *bun.DB) IModelRepository
	Upsert(ctx context.Context, model *InstalledModel) (*InstalledModel, error)
	GetByName(ctx context.Context, category, name string) (*InstalledModel, error)
	ListByCategory(ctx context.Context, category string) ([]InstalledModel, error)
	InstalledSet(ctx context.Context, category string) (map[string]bool, error)
	All(ctx context.Context) ([]InstalledModel, error)
	DeleteByName(ctx context.Context, category, name string) error
}

type ModelRepository struct {
	db bun.IDB
}

func NewModelRepository(db *bun.DB) IModelRepository {
	return &ModelRepository{db: db}
}

func (r *ModelRepository) Upsert(ctx context.Context, model *InstalledModel) (*InstalledModel, error) {
	if model == nil {
		return nil, fmt.Errorf("installed model is nil")
	}

	if model.ID == uuid.Nil {
		model.ID = uuid.New()
	}

	_, err := r.db.NewInsert().
		Model(model).
		On("CONFLICT (category, name) DO UPDATE").
		Set("source = EXCLUDED.source").
		Set("path = EXCLUDED.path").
		Set("digest = EXCLUDED.digest").
		Set("size_bytes = EXCLUDED.size_bytes").
		Set("updated_at = CURRENT_TIMESTAMP").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return model, nil
}

func (r *ModelRepository) GetByName(ctx context.Context, category, name string) (*InstalledModel, error) {
	var model InstalledModel
	err := r.db.NewSelect().
		Model(&model).
		Where("category = ?", category).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return &model, nil
}

func (r *ModelRepository) ListByCategory(ctx context.Context, category string) ([]InstalledModel, error) {
	var models []InstalledModel
	err := r.db.NewSelect().
		Model(&models).
		Where("category = ?", category).
		Order("name ASC").
		Scan(ctx)
	return models, err
}

// InstalledSet returns the category's installed identifiers keyed for
// presence lookups; it is the shape the selection snapshot wants.
func (r *ModelRepository) InstalledSet(ctx context.Context, category string) (map[string]bool, error) {
	models, err := r.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	installed := make(map[string]bool, len(models))
	for _, model := range models {
		installed[model.Name] = true
	}

	return installed, nil
}

func (r *ModelRepository) All(ctx context.Context) ([]InstalledModel, error) {
	var models []InstalledModel
	err := r.db.NewSelect().
		Model(&models).
		Order("category ASC").
		Order("name ASC").
		Scan(ctx)
	return models, err
}

func (r *ModelRepository) DeleteByName(ctx context.Context, category, name string) error {
	_, err := r.db.NewDelete().
		Model((*InstalledModel)(nil)).
		Where("category = ?", category).
		Where("name = ?", name).
		Exec(ctx)
	return err
}

func (r *ModelRepository) WithTx(tx *bun.Tx) IModelRepository {
	return &ModelRepository{db: tx}
}

func (r *ModelRepository) WithDB(db *bun.DB) IModelRepository {
	return &ModelRepository{db: db}
}
