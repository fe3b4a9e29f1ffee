package api

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/htol/shelf/book"
	"github.com/htol/shelf/catalog"
	"github.com/htol/shelf/export"
	"github.com/htol/shelf/logger"
	"github.com/htol/shelf/validator"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Flash kinds, also used as CSS classes.
const (
	flashSuccess = "success"
	flashWarning = "warning"
	flashError   = "error"
)

type flash struct {
	Kind    string
	Message string
}

type pageData struct {
	Flash    *flash
	Stats    book.Stats
	Genres   []string
	Genre    string
	Status   string
	Statuses []string
	View     []book.Book
	Query    string
	Searched bool
	Results  []book.Book
	Formats  []export.Format
	MinYear  int
	MaxYear  int
}

func indexHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		// An unknown status in a hand-edited URL falls back to All.
		status, _ := book.ParseStatus(q.Get("status"))
		genre := q.Get("genre")
		if genre == "" {
			genre = catalog.AllGenres
		}

		data := pageData{
			Stats:    cat.Statistics(ctx),
			Genres:   cat.Genres(ctx),
			Genre:    genre,
			Status:   status.String(),
			Statuses: []string{book.StatusAll.String(), book.StatusRead.String(), book.StatusUnread.String()},
			View:     cat.Filter(ctx, catalog.Filter{Genre: genre, Status: status}),
			Query:    q.Get("q"),
			Searched: q.Has("q"),
			Formats:  []export.Format{export.CSV, export.JSON, export.YAML},
			MinYear:  book.MinYear,
			MaxYear:  book.MaxYear,
		}
		if data.Searched {
			data.Results = cat.Search(ctx, data.Query)
		}
		if msg := q.Get("msg"); msg != "" {
			data.Flash = &flash{Kind: flashKind(q.Get("kind")), Message: msg}
		}

		var buf bytes.Buffer
		if err := pageTemplate.Execute(&buf, data); err != nil {
			logger.Error("Failed to render page", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := buf.WriteTo(w); err != nil {
			logger.Error("Failed to write page", "error", err)
		}
	})
}

func flashKind(s string) string {
	switch s {
	case flashSuccess, flashWarning:
		return s
	default:
		return flashError
	}
}

// redirectHome sends the browser back to the home page with a flash message.
// Form fields named in keep are carried over as query parameters.
func redirectHome(w http.ResponseWriter, r *http.Request, kind, msg string, keep ...string) {
	q := url.Values{}
	for _, k := range keep {
		if v := r.PostFormValue(k); v != "" {
			q.Set(k, v)
		}
	}
	q.Set("kind", kind)
	q.Set("msg", msg)
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

// bookFromForm builds a Book from the add form. Text fields are trimmed.
func bookFromForm(r *http.Request) (book.Book, error) {
	year, err := validator.ParseInt("year", r.PostFormValue("year"))
	if err != nil {
		return book.Book{}, err
	}
	return book.Book{
		Title:    strings.TrimSpace(r.PostFormValue("title")),
		Author:   strings.TrimSpace(r.PostFormValue("author")),
		Year:     year,
		Genre:    strings.TrimSpace(r.PostFormValue("genre")),
		ImageURL: strings.TrimSpace(r.PostFormValue("image_url")),
		Read:     r.PostFormValue("read") != "",
	}, nil
}

// formErrorMessage turns a validation error into a user-facing sentence.
func formErrorMessage(err error) string {
	fields := validator.Fields(err)
	if errors.Is(err, validator.ErrEmptyString) {
		return "Please fill in all fields: " + strings.Join(fields, ", ") + "."
	}
	return "Please check: " + strings.Join(fields, ", ") + "."
}

func addBookFormHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		b, err := bookFromForm(r)
		if err == nil {
			b, err = cat.Add(r.Context(), b)
		}
		switch {
		case err == nil:
			redirectHome(w, r, flashSuccess, fmt.Sprintf("Book '%s' added successfully!", b.Title))
		case statusFor(err) == http.StatusBadRequest:
			redirectHome(w, r, flashError, formErrorMessage(err))
		default:
			logger.Error("Failed to add book", "error", err)
			redirectHome(w, r, flashError, "Could not save the library.")
		}
	})
}

func removeBookFormHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		title := strings.TrimSpace(r.PostFormValue("title"))
		res, err := cat.Remove(r.Context(), title)
		switch {
		case err != nil:
			logger.Error("Failed to remove book", "error", err)
			redirectHome(w, r, flashError, "Could not save the library.")
		case res.Found():
			redirectHome(w, r, flashWarning, fmt.Sprintf("Book '%s' removed.", title))
		default:
			redirectHome(w, r, flashError, fmt.Sprintf("Book '%s' not found.", title))
		}
	})
}

func toggleReadFormHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		index, err := validator.ParseInt("index", r.PostFormValue("index"))
		if err != nil {
			redirectHome(w, r, flashError, "Invalid book index.", "genre", "status")
			return
		}
		f, err := parseFilter(r.PostForm)
		if err != nil {
			redirectHome(w, r, flashError, "Invalid status filter.")
			return
		}

		b, err := cat.ToggleReadInView(r.Context(), f, index)
		switch {
		case err == nil:
			redirectHome(w, r, flashSuccess,
				fmt.Sprintf("'%s' marked as %s.", b.Title, strings.ToLower(readLabel(b.Read))), "genre", "status")
		case errors.Is(err, catalog.ErrIndexOutOfRange):
			redirectHome(w, r, flashError, "That book is no longer in the list.", "genre", "status")
		default:
			logger.Error("Failed to toggle read status", "error", err)
			redirectHome(w, r, flashError, "Could not save the library.", "genre", "status")
		}
	})
}

func readLabel(read bool) string {
	if read {
		return book.StatusRead.String()
	}
	return book.StatusUnread.String()
}
