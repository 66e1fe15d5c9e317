// Package services contains server-side business logic. CatalogService
// records uploaded books and answers catalog listings.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/dbx"
	"github.com/dmitrijs2005/properbooky/internal/server/models"
	"github.com/dmitrijs2005/properbooky/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/properbooky/internal/uploader"
	"github.com/dmitrijs2005/properbooky/internal/validator"
	"github.com/google/uuid"
)

type CatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	newID       func() string
}

var _ uploader.Registrar = (*CatalogService)(nil)

func NewCatalogService(db *sql.DB, m repomanager.RepositoryManager) *CatalogService {
	return &CatalogService{db: db, repomanager: m, newID: uuid.NewString}
}

// TitleFromFileName strips directories and the extension: "dir/Dune.pdf"
// becomes "Dune".
func TitleFromFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	title := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if title == "" || title == "." {
		return strings.TrimSpace(base)
	}
	return title
}

// Register stores a catalog row for an uploaded file. A book with the same
// title (case-insensitive) already owned by the user yields
// common.ErrTitleConflict; every failure wraps common.ErrCatalog.
func (s *CatalogService) Register(ctx context.Context, r uploader.Registration) error {
	format, ok := validator.ExtensionFor(r.MediaType)
	if !ok {
		return fmt.Errorf("%w: unsupported media type %q", common.ErrCatalog, r.MediaType)
	}

	book := &models.Book{
		ID:         s.newID(),
		OwnerID:    r.OwnerID,
		Title:      TitleFromFileName(r.FileName),
		Format:     format,
		FileURL:    r.URL,
		StorageKey: r.Key,
		SizeBytes:  r.Size,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Books(tx)

		exists, err := repo.ExistsByTitle(ctx, book.OwnerID, book.Title)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %q", common.ErrTitleConflict, book.Title)
		}

		if _, err := repo.Insert(ctx, book); err != nil {
			if dbx.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %q", common.ErrTitleConflict, book.Title)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrCatalog, err)
	}

	return nil
}

// ListBooks returns the owner's catalog, newest first.
func (s *CatalogService) ListBooks(ctx context.Context, ownerID string) ([]models.Book, error) {
	books, err := s.repomanager.Books(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCatalog, err)
	}
	return books, nil
}
