// Package books persists catalog rows in PostgreSQL.
package books

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/properbooky/internal/dbx"
	"github.com/dmitrijs2005/properbooky/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ExistsByTitle compares titles case-insensitively, matching the unique index.
func (r *PostgresRepository) ExistsByTitle(ctx context.Context, ownerID, title string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM books WHERE owner_id = $1 AND lower(title) = lower($2))`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, ownerID, title).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, book *models.Book) (*models.Book, error) {
	query :=
		`INSERT INTO books (id, owner_id, title, format, file_url, storage_key, size_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		book.ID, book.OwnerID, book.Title, book.Format, book.FileURL, book.StorageKey, book.SizeBytes,
	).Scan(&book.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return book, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Book, error) {
	query :=
		`SELECT id, owner_id, title, format, file_url, storage_key, size_bytes, created_at
		 FROM books
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, title`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Book
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Format, &b.FileURL, &b.StorageKey, &b.SizeBytes, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
