package registry

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// InstalledModel is one installed artifact as recorded in the registry.
// Identity is (category, name); Path points at the artifact on disk when the
// installer placed a concrete file there, and is empty for hub-managed repos
// living in the shared cache.
type InstalledModel struct {
	bun.BaseModel `bun:"table:installed_models"`

	ID        uuid.UUID    `bun:",type:uuid,pk"`
	Name      string       `bun:",notnull,unique:installed_models_category_name"`
	Category  string       `bun:",notnull,unique:installed_models_category_name"`
	Source    string       `bun:",nullzero"`
	Path      string       `bun:",nullzero"`
	Digest    string       `bun:",nullzero"`
	SizeBytes int64        `bun:",nullzero"`
	CreatedAt bun.NullTime `bun:",nullzero,default:current_timestamp"`
	UpdatedAt bun.NullTime `bun:",nullzero,default:current_timestamp"`
}
