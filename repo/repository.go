package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/htol/shelf/book"
	"github.com/htol/shelf/config"
)

var (
	// ErrParse is returned when the backing store exists but does not hold a valid book list
	ErrParse = errors.New("malformed library store")
	// ErrWrite is returned when the library could not be persisted
	ErrWrite = errors.New("write library store")
)

// Repository is the durable side of the catalog. Save always replaces the
// whole sequence; Load returns it in the order it was saved.
type Repository interface {
	// Load returns the persisted books, or an empty slice when nothing was saved yet
	Load(ctx context.Context) ([]book.Book, error)

	// Save replaces the persisted books with books
	Save(ctx context.Context, books []book.Book) error

	// Health check
	Ping() error

	Close() error
}

// Open returns the repository selected by cfg.Driver.
func Open(cfg config.StoreConfig) (Repository, error) {
	switch cfg.Driver {
	case config.DriverJSON, "":
		return NewJSONFile(cfg.Location(), WithBackups(cfg.Backups))
	case config.DriverSQLite:
		return NewSQLite(cfg.Location())
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
