package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/properbooky/internal/dbx"
	"github.com/dmitrijs2005/properbooky/internal/server/repositories/books"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Books(db dbx.DBTX) books.Repository
}
