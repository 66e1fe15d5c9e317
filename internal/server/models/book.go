package models

import "time"

// Book is a catalog row; the file itself lives in object storage under
// StorageKey.
type Book struct {
	ID         string
	OwnerID    string
	Title      string
	Format     string
	FileURL    string
	StorageKey string
	SizeBytes  int64
	CreatedAt  time.Time
}
