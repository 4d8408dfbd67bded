package identity

import (
	"database/sql"
	"io/fs"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/schema"
)

// RegisterModels registers every model with the persistence layer. Safe to
// call more than once.
func RegisterModels() {
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*Role)(nil))
	persistence.RegisterModel((*UserRole)(nil))
	persistence.RegisterModel((*Token)(nil))
	persistence.RegisterModel((*BlacklistEntry)(nil))
	persistence.RegisterModel((*Picture)(nil))
}

// NewPersistenceClient wires the models and embedded migrations into a
// persistence client. The caller still owns Migrate and Seed.
func NewPersistenceClient(cfg persistence.Config, db *sql.DB, dialect schema.Dialect) (*persistence.Client, error) {
	RegisterModels()

	client, err := persistence.New(cfg, db, dialect)
	if err != nil {
		return nil, err
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	return client, nil
}
