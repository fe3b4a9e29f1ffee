package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	jsoniter "github.com/json-iterator/go"

	"github.com/htol/shelf/book"
	"github.com/htol/shelf/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const lockRetryDelay = 50 * time.Millisecond

// JSONFile stores the library as a single JSON array on disk.
// Every Load and Save holds an advisory lock on a sidecar "<path>.lock" file.
type JSONFile struct {
	path    string
	lock    *flock.Flock
	backups int
}

// Option configures a JSONFile.
type Option func(*JSONFile)

// WithBackups keeps the n previous versions of the file as <path>.1 ... <path>.n.
func WithBackups(n int) Option {
	return func(j *JSONFile) {
		if n > 0 {
			j.backups = n
		}
	}
}

// NewJSONFile returns a store backed by path. The file itself is created on first Save.
func NewJSONFile(path string, opts ...Option) (*JSONFile, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	j := &JSONFile{
		path: path,
		lock: flock.New(path + ".lock"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Path returns the location of the backing file.
func (j *JSONFile) Path() string {
	return j.path
}

func (j *JSONFile) Load(ctx context.Context) ([]book.Book, error) {
	ok, err := j.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		return nil, fmt.Errorf("lock %s: %w", j.lock.Path(), lockErr(ctx, err))
	}
	defer j.unlock()

	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Library file not found, starting empty", "path", j.path)
			return []book.Book{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", j.path, err)
	}

	books, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, j.path, err)
	}
	logger.Debug("Library loaded", "path", j.path, "count", len(books))
	return books, nil
}

// record mirrors book.Book with pointer fields so absent keys can be told
// apart from zero values. image_url is optional.
type record struct {
	Title    *string `json:"title"`
	Author   *string `json:"author"`
	Year     *int    `json:"year"`
	Genre    *string `json:"genre"`
	ImageURL string  `json:"image_url"`
	Read     *bool   `json:"read"`
}

func (r *record) book() (book.Book, error) {
	var missing []string
	if r.Title == nil {
		missing = append(missing, "title")
	}
	if r.Author == nil {
		missing = append(missing, "author")
	}
	if r.Year == nil {
		missing = append(missing, "year")
	}
	if r.Genre == nil {
		missing = append(missing, "genre")
	}
	if r.Read == nil {
		missing = append(missing, "read")
	}
	if len(missing) > 0 {
		return book.Book{}, fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return book.Book{
		Title:    *r.Title,
		Author:   *r.Author,
		Year:     *r.Year,
		Genre:    *r.Genre,
		ImageURL: r.ImageURL,
		Read:     *r.Read,
	}, nil
}

func decode(data []byte) ([]book.Book, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("file is empty")
	}
	var records []*record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	books := make([]book.Book, 0, len(records))
	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("entry %d is null", i)
		}
		b, err := r.book()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		books = append(books, b)
	}
	return books, nil
}

// Save writes books to a temp file in the same directory and renames it over
// the target, so readers never observe a partially written file.
func (j *JSONFile) Save(ctx context.Context, books []book.Book) error {
	if books == nil {
		books = []book.Book{}
	}
	data, err := json.MarshalIndent(books, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrWrite, err)
	}

	ok, err := j.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		return fmt.Errorf("%w: lock %s: %w", ErrWrite, j.lock.Path(), lockErr(ctx, err))
	}
	defer j.unlock()

	if j.backups > 0 {
		if err := rotateBackups(j.path, j.backups); err != nil {
			return fmt.Errorf("%w: rotate backups: %w", ErrWrite, err)
		}
	}

	if err := writeAtomic(j.path, append(data, '\n')); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	logger.Debug("Library saved", "path", j.path, "count", len(books))
	return nil
}

func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		return errors.Join(fmt.Errorf("write temp file: %w", err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Sync(); err != nil {
		return errors.Join(fmt.Errorf("sync temp file: %w", err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return errors.Join(fmt.Errorf("chmod temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("rename temp file: %w", err), os.Remove(tmpPath))
	}
	return nil
}

func (j *JSONFile) unlock() {
	if err := j.lock.Unlock(); err != nil {
		logger.Warn("Failed to release store lock", "path", j.lock.Path(), "error", err)
	}
}

func lockErr(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("lock not acquired")
}

// Ping reports whether the store directory is reachable.
func (j *JSONFile) Ping() error {
	_, err := os.Stat(filepath.Dir(j.path))
	return err
}

func (j *JSONFile) Close() error {
	return j.lock.Close()
}
