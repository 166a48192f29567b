package client

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/innerwell/internal/client/migrations"
	"github.com/dmitrijs2005/innerwell/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/innerwell/internal/dbx"
)

// Repositories bundles the local database and the repositories built on it.
type Repositories struct {
	DB       *sql.DB
	Metadata metadata.Repository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

// InitDatabase opens the SQLite file at dsn, applies the embedded migrations
// and wires the repositories.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := dbx.OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
	}, nil
}
