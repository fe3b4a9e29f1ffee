package repo

import (
	"context"
	"fmt"

	"github.com/htol/shelf/book"
)

func (s *SQLite) Load(ctx context.Context) ([]book.Book, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT title, author, year, genre, image_url, read
        FROM books
        ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := []book.Book{}
	for rows.Next() {
		var b book.Book
		if err := rows.Scan(&b.Title, &b.Author, &b.Year, &b.Genre, &b.ImageURL, &b.Read); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, s.path, err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

// Save replaces every row inside one transaction.
func (s *SQLite) Save(ctx context.Context, books []book.Book) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrWrite, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM books"); err != nil {
		return fmt.Errorf("%w: clear books: %w", ErrWrite, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO books (position, title, author, year, genre, image_url, read)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %w", ErrWrite, err)
	}
	defer stmt.Close()

	for i, b := range books {
		if _, err := stmt.ExecContext(ctx, i, b.Title, b.Author, b.Year, b.Genre, b.ImageURL, b.Read); err != nil {
			return fmt.Errorf("%w: insert %q: %w", ErrWrite, b.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrWrite, err)
	}
	return nil
}
