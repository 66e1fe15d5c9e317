package books

import (
	"context"

	"github.com/dmitrijs2005/properbooky/internal/server/models"
)

type Repository interface {
	ExistsByTitle(ctx context.Context, ownerID, title string) (bool, error)
	Insert(ctx context.Context, book *models.Book) (*models.Book, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Book, error)
}
