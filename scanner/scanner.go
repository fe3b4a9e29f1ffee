// Package scanner extracts book metadata from FB2 files for bulk import.
package scanner

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"github.com/htol/shelf/book"
	"github.com/htol/shelf/logger"
)

// ErrNoTitle is returned for FB2 documents without a book-title
var ErrNoTitle = errors.New("title not found")

type author struct {
	FirstName  string `xml:"first-name"`
	MiddleName string `xml:"middle-name"`
	LastName   string `xml:"last-name"`
	Nickname   string `xml:"nickname"`
}

func (a author) name() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.FirstName, a.MiddleName, a.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(a.Nickname)
	}
	return strings.Join(parts, " ")
}

type date struct {
	Value string `xml:"value,attr"`
	Text  string `xml:",chardata"`
}

type titleInfo struct {
	Genres  []string `xml:"genre"`
	Authors []author `xml:"author"`
	Title   string   `xml:"book-title"`
	Date    date     `xml:"date"`
}

type publishInfo struct {
	Year string `xml:"year"`
}

var yearPattern = regexp.MustCompile(`\d{4}`)

func parseYear(candidates ...string) int {
	for _, c := range candidates {
		if m := yearPattern.FindString(c); m != "" {
			if y, err := strconv.Atoi(m); err == nil {
				return y
			}
		}
	}
	return 0
}

// Parse reads the FB2 description from r. The body is never decoded.
// Year is zero when the document carries no recognizable date.
func Parse(r io.Reader) (book.Book, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	var (
		ti titleInfo
		pi publishInfo
	)
loop:
	for {
		t, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return book.Book{}, err
		}
		se, ok := t.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "title-info":
			if err := decoder.DecodeElement(&ti, &se); err != nil {
				return book.Book{}, err
			}
		case "publish-info":
			if err := decoder.DecodeElement(&pi, &se); err != nil {
				return book.Book{}, err
			}
		case "body", "binary":
			break loop
		}
	}

	title := strings.TrimSpace(ti.Title)
	if title == "" {
		return book.Book{}, ErrNoTitle
	}
	b := book.Book{
		Title: title,
		Year:  parseYear(ti.Date.Value, ti.Date.Text, pi.Year),
	}
	if len(ti.Authors) > 0 {
		b.Author = ti.Authors[0].name()
	}
	if len(ti.Genres) > 0 {
		b.Genre = strings.TrimSpace(ti.Genres[0])
	}
	return b, nil
}

// ParseFile parses the FB2 file at path.
func ParseFile(path string) (book.Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return book.Book{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Result is one parsed file.
type Result struct {
	Path string
	Book book.Book
}

// ScanDir parses every *.fb2 file under dir using up to workers goroutines.
// Unreadable or untitled files are logged and skipped. Results are ordered by path.
func ScanDir(ctx context.Context, dir string, workers int) ([]Result, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".fb2") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	logger.Info("Found FB2 files", "dir", dir, "count", len(files))

	if workers < 1 {
		workers = 1
	}
	parsed := make([]*Result, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := ParseFile(path)
			if err != nil {
				logger.Warn("Skipping FB2 file", "path", path, "error", err)
				return nil
			}
			parsed[i] = &Result{Path: path, Book: b}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(parsed))
	for _, r := range parsed {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}
