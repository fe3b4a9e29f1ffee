package book

import (
	"errors"
	"fmt"
	"strings"

	"github.com/htol/shelf/validator"
)

// Publication year bounds accepted for a record.
const (
	MinYear = 1800
	MaxYear = 2100
)

// ErrInvalidStatus is returned when a read-status facet cannot be parsed
var ErrInvalidStatus = errors.New("invalid status: must be All, Read or Unread")

// Book is a single catalog record. The JSON keys are the on-disk format.
type Book struct {
	Title    string `json:"title" yaml:"title"`
	Author   string `json:"author" yaml:"author"`
	Year     int    `json:"year" yaml:"year"`
	Genre    string `json:"genre" yaml:"genre"`
	ImageURL string `json:"image_url" yaml:"image_url"`
	Read     bool   `json:"read" yaml:"read"`
}

// HasCover reports whether the record carries a cover image URL.
func (b Book) HasCover() bool {
	return strings.TrimSpace(b.ImageURL) != ""
}

// Validate checks the required fields and the year bounds.
// All failures are reported together.
func (b Book) Validate() error {
	return errors.Join(
		validator.ValidateNonEmpty("title", b.Title),
		validator.ValidateNonEmpty("author", b.Author),
		validator.ValidateNonEmpty("genre", b.Genre),
		validator.ValidateRange("year", b.Year, MinYear, MaxYear),
	)
}

// Stats summarizes read progress over a sequence of books.
type Stats struct {
	Total  int `json:"total"`
	Read   int `json:"read"`
	Unread int `json:"unread"`
}

// Summarize counts read and unread books.
func Summarize(books []Book) Stats {
	s := Stats{Total: len(books)}
	for _, b := range books {
		if b.Read {
			s.Read++
		}
	}
	s.Unread = s.Total - s.Read
	return s
}

// Status is the read-status facet.
type Status int

const (
	StatusAll Status = iota
	StatusRead
	StatusUnread
)

func (s Status) String() string {
	switch s {
	case StatusRead:
		return "Read"
	case StatusUnread:
		return "Unread"
	default:
		return "All"
	}
}

// Matches reports whether read satisfies the facet.
func (s Status) Matches(read bool) bool {
	switch s {
	case StatusRead:
		return read
	case StatusUnread:
		return !read
	default:
		return true
	}
}

// ParseStatus parses All, Read or Unread, ignoring case. Empty means All.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return StatusAll, nil
	case "read":
		return StatusRead, nil
	case "unread":
		return StatusUnread, nil
	}
	return StatusAll, fmt.Errorf("%w: got %q", ErrInvalidStatus, s)
}
