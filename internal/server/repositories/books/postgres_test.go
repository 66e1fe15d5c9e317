package books

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/properbooky/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	existsQ = `(?s)^SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+books\s+WHERE\s+owner_id\s*=\s*\$1\s+AND\s+lower\(title\)\s*=\s*lower\(\$2\)\)$`
	insertQ = `(?s)^INSERT\s+INTO\s+books\s*\(id,\s*owner_id,\s*title,\s*format,\s*file_url,\s*storage_key,\s*size_bytes\)\s*VALUES\s*\(\$1,.*\$7\)\s*RETURNING\s+created_at$`
	listQ   = `(?s)^SELECT\s+id,\s*owner_id,.*FROM\s+books\s+WHERE\s+owner_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC,\s*title$`
)

func TestExistsByTitle(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(existsQ).
		WithArgs("u-1", "Dune").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	got, err := repo.ExistsByTitle(context.Background(), "u-1", "Dune")
	if err != nil {
		t.Fatalf("ExistsByTitle error: %v", err)
	}
	if !got {
		t.Fatal("expected title to exist")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestExistsByTitle_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(existsQ).WillReturnError(errors.New("db down"))

	_, err := repo.ExistsByTitle(context.Background(), "u-1", "Dune")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestInsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(insertQ).
		WithArgs("b-1", "u-1", "Dune", "pdf", "http://s3/books/u-1/k.pdf", "u-1/k.pdf", int64(2048)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	b := &models.Book{
		ID: "b-1", OwnerID: "u-1", Title: "Dune", Format: "pdf",
		FileURL: "http://s3/books/u-1/k.pdf", StorageKey: "u-1/k.pdf", SizeBytes: 2048,
	}
	got, err := repo.Insert(context.Background(), b)
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at not scanned: %v", got.CreatedAt)
	}
}

func TestInsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("unique violation"))

	_, err := repo.Insert(context.Background(), &models.Book{ID: "b-1"})
	if err == nil || !regexp.MustCompile(`db error: .*unique violation`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListByOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "owner_id", "title", "format", "file_url", "storage_key", "size_bytes", "created_at"}).
		AddRow("b-2", "u-1", "Emma", "epub", "url2", "k2", int64(20), now).
		AddRow("b-1", "u-1", "Dune", "pdf", "url1", "k1", int64(10), now.Add(-time.Hour))
	mock.ExpectQuery(listQ).WithArgs("u-1").WillReturnRows(rows)

	got, err := repo.ListByOwner(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("ListByOwner error: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Emma" || got[1].SizeBytes != 10 {
		t.Fatalf("unexpected books: %+v", got)
	}
}

func TestListByOwner_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "owner_id", "title", "format", "file_url", "storage_key", "size_bytes", "created_at"}).
		AddRow("b-1", "u-1", "Dune", "pdf", "url", "k", "not-a-number", time.Now())
	mock.ExpectQuery(listQ).WithArgs("u-1").WillReturnRows(rows)

	if _, err := repo.ListByOwner(context.Background(), "u-1"); err == nil {
		t.Fatal("expected scan error")
	}
}

func TestListByOwner_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(listQ).WithArgs("u-1").WillReturnError(errors.New("boom"))

	if _, err := repo.ListByOwner(context.Background(), "u-1"); err == nil {
		t.Fatal("expected error")
	}
}
