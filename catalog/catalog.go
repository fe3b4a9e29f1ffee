// Package catalog holds the in-memory, ordered book list and keeps it in sync
// with a repo.Repository.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/htol/shelf/book"
	"github.com/htol/shelf/logger"
	"github.com/htol/shelf/repo"
)

var (
	// ErrInvalidBook is returned by Add when required fields are missing or out of range
	ErrInvalidBook = errors.New("invalid book")
	// ErrIndexOutOfRange is returned when a toggle index does not address a displayed book
	ErrIndexOutOfRange = errors.New("index out of range")
)

// AllGenres disables the genre facet.
const AllGenres = "All"

// Filter selects books by genre and read status. The zero value matches everything.
type Filter struct {
	Genre  string
	Status book.Status
}

func (f Filter) matches(b book.Book) bool {
	if f.Genre != "" && f.Genre != AllGenres && b.Genre != f.Genre {
		return false
	}
	return f.Status.Matches(b.Read)
}

// Removal reports the outcome of Remove.
type Removal struct {
	Title string
	Count int
}

// Found reports whether at least one book was removed.
func (r Removal) Found() bool {
	return r.Count > 0
}

// Catalog is the ordered book list. Insertion order is display order.
// Mutations are persisted before they become visible; a failed save leaves
// the catalog unchanged.
type Catalog struct {
	repo repo.Repository

	mu    sync.RWMutex
	books []book.Book
}

// Open creates a catalog hydrated from r.
func Open(ctx context.Context, r repo.Repository) (*Catalog, error) {
	c := &Catalog{repo: r}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload replaces the in-memory list with the persisted one. The write lock
// is held across the load so no commit can land between reading and swapping.
func (c *Catalog) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	books, err := c.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load library: %w", err)
	}
	c.books = books
	logger.Debug("Catalog loaded", "count", len(books))
	return nil
}

// commit persists next and, on success, makes it the current list.
// Callers must hold c.mu for writing.
func (c *Catalog) commit(ctx context.Context, next []book.Book) error {
	if err := c.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("save library: %w", err)
	}
	c.books = next
	return nil
}

// Add validates b and appends it to the end of the list.
func (c *Catalog) Add(ctx context.Context, b book.Book) (book.Book, error) {
	if err := b.Validate(); err != nil {
		return book.Book{}, fmt.Errorf("%w: %w", ErrInvalidBook, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := append(slices.Clone(c.books), b)
	if err := c.commit(ctx, next); err != nil {
		return book.Book{}, err
	}
	logger.Info("Book added", "title", b.Title, "author", b.Author, "total", len(next))
	return b, nil
}

// Rejected pairs a book with the reason AddBatch skipped it.
type Rejected struct {
	Book book.Book
	Err  error
}

// AddBatch appends every valid book in order with a single save. Invalid
// books are returned as rejections and do not fail the batch. Nothing is
// written when no book is valid.
func (c *Catalog) AddBatch(ctx context.Context, books []book.Book) (int, []Rejected, error) {
	var rejected []Rejected
	valid := make([]book.Book, 0, len(books))
	for _, b := range books {
		if err := b.Validate(); err != nil {
			rejected = append(rejected, Rejected{Book: b, Err: fmt.Errorf("%w: %w", ErrInvalidBook, err)})
			continue
		}
		valid = append(valid, b)
	}
	if len(valid) == 0 {
		return 0, rejected, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := append(slices.Clone(c.books), valid...)
	if err := c.commit(ctx, next); err != nil {
		return 0, rejected, err
	}
	logger.Info("Books added", "added", len(valid), "rejected", len(rejected), "total", len(next))
	return len(valid), rejected, nil
}

// Remove deletes every book whose title equals title, ignoring case.
// A zero count is reported through Removal.Found, not as an error, and
// nothing is written.
func (c *Catalog) Remove(ctx context.Context, title string) (Removal, error) {
	key := fold(title)

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]book.Book, 0, len(c.books))
	for _, b := range c.books {
		if fold(b.Title) != key {
			next = append(next, b)
		}
	}

	res := Removal{Title: title, Count: len(c.books) - len(next)}
	if !res.Found() {
		logger.Debug("No book to remove", "title", title)
		return res, nil
	}
	if err := c.commit(ctx, next); err != nil {
		return Removal{Title: title}, err
	}
	logger.Info("Book removed", "title", title, "count", res.Count)
	return res, nil
}

// Search returns books whose title or author contains term, ignoring case.
// An empty term matches every book. The result is never nil.
func (c *Catalog) Search(ctx context.Context, term string) []book.Book {
	needle := fold(term)

	c.mu.RLock()
	defer c.mu.RUnlock()

	results := []book.Book{}
	for _, b := range c.books {
		if strings.Contains(fold(b.Title), needle) || strings.Contains(fold(b.Author), needle) {
			results = append(results, b)
		}
	}
	return results
}

// Filter returns the books matching both facets, in catalog order.
func (c *Catalog) Filter(ctx context.Context, f Filter) []book.Book {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results := []book.Book{}
	for _, b := range c.books {
		if f.matches(b) {
			results = append(results, b)
		}
	}
	return results
}

// ToggleRead flips the read flag of the book at index in the unfiltered list.
func (c *Catalog) ToggleRead(ctx context.Context, index int) (book.Book, error) {
	return c.ToggleReadInView(ctx, Filter{}, index)
}

// ToggleReadInView flips the read flag of the book shown at index in the view
// produced by Filter(f). The index must come from the view the caller displayed.
func (c *Catalog) ToggleReadInView(ctx context.Context, f Filter, index int) (book.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.resolve(f, index)
	if !ok {
		return book.Book{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	next := slices.Clone(c.books)
	next[pos].Read = !next[pos].Read
	if err := c.commit(ctx, next); err != nil {
		return book.Book{}, err
	}
	logger.Info("Read status toggled", "title", next[pos].Title, "read", next[pos].Read)
	return next[pos], nil
}

// resolve maps an index into the filtered view onto a position in c.books.
func (c *Catalog) resolve(f Filter, index int) (int, bool) {
	if index < 0 {
		return 0, false
	}
	seen := 0
	for pos, b := range c.books {
		if !f.matches(b) {
			continue
		}
		if seen == index {
			return pos, true
		}
		seen++
	}
	return 0, false
}

// Statistics counts all, read and unread books.
func (c *Catalog) Statistics(ctx context.Context) book.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return book.Summarize(c.books)
}

// Books returns a copy of the full list.
func (c *Catalog) Books(ctx context.Context) []book.Book {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]book.Book{}, c.books...)
}

// Genres returns the distinct genres, sorted.
func (c *Catalog) Genres(ctx context.Context) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	genres := make([]string, 0, len(c.books))
	for _, b := range c.books {
		genres = append(genres, b.Genre)
	}
	slices.Sort(genres)
	return slices.Compact(genres)
}

// Ping checks the backing store.
func (c *Catalog) Ping(ctx context.Context) error {
	if err := c.repo.Ping(); err != nil {
		return fmt.Errorf("repository ping: %w", err)
	}
	return nil
}

func fold(s string) string {
	return cases.Fold().String(s)
}
