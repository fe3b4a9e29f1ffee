// Package export renders read-only snapshots of the library as CSV, JSON or YAML.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/htol/shelf/book"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnknownFormat is returned for export formats other than csv, json and yaml
var ErrUnknownFormat = errors.New("unknown export format")

type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	YAML Format = "yaml"
)

// Header is the CSV header row; it matches the JSON keys of book.Book.
var Header = []string{"title", "author", "year", "genre", "image_url", "read"}

// ParseFormat parses a format name, ignoring case. "yml" is accepted for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type used when serving f.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case YAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}

// DefaultFileName returns library_export.<ext>.
func DefaultFileName(f Format) string {
	return "library_export." + string(f)
}

// Write renders books to w in format f.
func Write(w io.Writer, f Format, books []book.Book) error {
	if books == nil {
		books = []book.Book{}
	}
	switch f {
	case CSV:
		return writeCSV(w, books)
	case JSON:
		return json.NewEncoder(w).Encode(books)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(books); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

func writeCSV(w io.Writer, books []book.Book) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, b := range books {
		record := []string{
			b.Title,
			b.Author,
			strconv.Itoa(b.Year),
			b.Genre,
			b.ImageURL,
			strconv.FormatBool(b.Read),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToFile writes a snapshot to path, replacing any existing file.
func ToFile(path string, f Format, books []book.Book) (err error) {
	if _, err := ParseFormat(string(f)); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close export file: %w", cerr)
		}
	}()

	if err := Write(out, f, books); err != nil {
		return fmt.Errorf("export %s: %w", f, err)
	}
	return nil
}
