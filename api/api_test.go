package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htol/shelf/book"
	"github.com/htol/shelf/catalog"
	"github.com/htol/shelf/config"
	"github.com/htol/shelf/logger"
	"github.com/htol/shelf/middleware"
	"github.com/htol/shelf/repo"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func library() []book.Book {
	return []book.Book{
		{Title: "The Hobbit", Author: "J.R.R. Tolkien", Year: 1937, Genre: "Fantasy", Read: true},
		{Title: "Dune", Author: "Frank Herbert", Year: 1965, Genre: "SciFi", ImageURL: "https://covers.example.com/dune.jpg"},
		{Title: "Foundation", Author: "Isaac Asimov", Year: 1951, Genre: "SciFi", Read: true},
		{Title: "Emma", Author: "Jane Austen", Year: 1815, Genre: "Classic"},
	}
}

// newServer returns a handler over a JSON store seeded with library().
func newServer(t *testing.T) (http.Handler, *catalog.Catalog, *repo.JSONFile) {
	t.Helper()
	ctx := context.Background()
	store, err := repo.NewJSONFile(filepath.Join(t.TempDir(), "library.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Save(ctx, library()))

	cat, err := catalog.Open(ctx, store)
	require.NoError(t, err)
	return NewHandler(cat, config.ServerConfig{BaseURL: "http://shelf.test"}), cat, store
}

// brokenRepo loads a fixed list but cannot save or ping.
type brokenRepo struct{}

func (brokenRepo) Load(context.Context) ([]book.Book, error) { return library(), nil }
func (brokenRepo) Save(context.Context, []book.Book) error {
	return repo.ErrWrite
}
func (brokenRepo) Ping() error  { return errors.New("disk gone") }
func (brokenRepo) Close() error { return nil }

func newBrokenServer(t *testing.T) http.Handler {
	t.Helper()
	cat, err := catalog.Open(context.Background(), brokenRepo{})
	require.NoError(t, err)
	return NewHandler(cat, config.ServerConfig{})
}

func do(h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil && method == http.MethodPost && strings.HasPrefix(target, "/books") {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBooks(t *testing.T, rec *httptest.ResponseRecorder) []book.Book {
	t.Helper()
	var books []book.Book
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &books), rec.Body.String())
	return books
}

func titles(books []book.Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.Title)
	}
	return out
}

func TestListBooks(t *testing.T) {
	h, _, _ := newServer(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"The Hobbit", "Dune", "Foundation", "Emma"}},
		{"?genre=SciFi", []string{"Dune", "Foundation"}},
		{"?genre=All&status=read", []string{"The Hobbit", "Foundation"}},
		{"?genre=SciFi&status=Unread", []string{"Dune"}},
		{"?genre=Horror", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(h, http.MethodGet, "/api/books"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, titles(decodeBooks(t, rec)))
		})
	}

	rec := do(h, http.MethodGet, "/api/books?status=finished", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddBook(t *testing.T) {
	h, cat, store := newServer(t)

	rec := do(h, http.MethodPost, "/api/books",
		strings.NewReader(`{"title":"Mistborn","author":"Brandon Sanderson","year":2006,"genre":"Fantasy","read":false}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	books := cat.Books(context.Background())
	assert.Equal(t, "Mistborn", books[len(books)-1].Title)
	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 5)

	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{"blank title", `{"title":"  ","author":"A","year":2000,"genre":"G"}`, []string{"title"}},
		{"year too old", `{"title":"T","author":"A","year":1700,"genre":"G"}`, []string{"year"}},
		{"everything missing", `{}`, []string{"title", "author", "genre", "year"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/api/books", strings.NewReader(tt.body))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantFields, resp.Fields)
		})
	}

	rec = do(h, http.MethodPost, "/api/books", strings.NewReader(`{"title":"T","pages":10}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
	assert.Len(t, cat.Books(context.Background()), 5)
}

func TestAddBookSaveFailure(t *testing.T) {
	h := newBrokenServer(t)
	rec := do(h, http.MethodPost, "/api/books",
		strings.NewReader(`{"title":"T","author":"A","year":2000,"genre":"G"}`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to add book"}`, rec.Body.String())
}

func TestRemoveBook(t *testing.T) {
	h, cat, _ := newServer(t)

	rec := do(h, http.MethodDelete, "/api/books?title=dUNE", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":1}`, rec.Body.String())
	assert.Len(t, cat.Books(context.Background()), 3)

	rec = do(h, http.MethodDelete, "/api/books?title=dune", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"book not found"}`, rec.Body.String())

	rec = do(h, http.MethodDelete, "/api/books", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleRead(t *testing.T) {
	h, cat, _ := newServer(t)

	// Index 0 of the unread SciFi view is Dune, index 1 overall.
	rec := do(h, http.MethodPost, "/api/books/0/toggle?genre=SciFi&status=Unread", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got book.Book
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Dune", got.Title)
	assert.True(t, got.Read)
	assert.True(t, cat.Books(context.Background())[1].Read)
	assert.True(t, cat.Books(context.Background())[0].Read, "The Hobbit untouched")

	rec = do(h, http.MethodPost, "/api/books/0/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, cat.Books(context.Background())[0].Read)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/api/books/99/toggle", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/api/books/-1/toggle", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/books/first/toggle", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/books/0/toggle?status=maybe", nil).Code)
}

func TestSearchStatsGenres(t *testing.T) {
	h, _, _ := newServer(t)

	rec := do(h, http.MethodGet, "/api/search?q=TOLK", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"The Hobbit"}, titles(decodeBooks(t, rec)))

	rec = do(h, http.MethodGet, "/api/search?q=zzz", nil)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = do(h, http.MethodGet, "/api/search", nil)
	assert.Len(t, decodeBooks(t, rec), 4, "empty term matches everything")

	rec = do(h, http.MethodGet, "/api/stats", nil)
	assert.JSONEq(t, `{"total":4,"read":2,"unread":2}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/api/genres", nil)
	assert.JSONEq(t, `["Classic","Fantasy","SciFi"]`, rec.Body.String())
}

func TestExport(t *testing.T) {
	h, _, _ := newServer(t)

	rec := do(h, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="library_export.csv"`, rec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "title,author,year,genre,image_url,read", lines[0])

	rec = do(h, http.MethodGet, "/api/export?format=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBooks(t, rec), 4)

	rec = do(h, http.MethodGet, "/api/export?format=YAML", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "- title: The Hobbit")

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/export?format=xml", nil).Code)
}

func TestHealth(t *testing.T) {
	h, _, _ := newServer(t)
	rec := do(h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","books":4}`, rec.Body.String())

	rec = do(newBrokenServer(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORS(t *testing.T) {
	h, _, _ := newServer(t)
	rec := do(h, http.MethodOptions, "/api/books", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestIndexPage(t *testing.T) {
	h, _, _ := newServer(t)

	rec := do(h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Total Books: 4")
	assert.Contains(t, body, "Toggle Status for Emma")
	assert.Contains(t, body, `src="https://covers.example.com/dune.jpg"`)
	assert.Contains(t, body, `href="/api/export?format=yaml"`)

	rec = do(h, http.MethodGet, "/?genre=SciFi&status=Read&q=austen", nil)
	body = rec.Body.String()
	assert.Contains(t, body, "Toggle Status for Foundation")
	assert.NotContains(t, body, "Toggle Status for Dune")
	assert.Contains(t, body, "<strong>Emma</strong> by Jane Austen")
	assert.Contains(t, body, `<option value="SciFi" selected>`)

	rec = do(h, http.MethodGet, "/?msg=Hello+%3Cb%3E&kind=success", nil)
	assert.Contains(t, rec.Body.String(), `<p class="flash success" role="status">Hello &lt;b&gt;</p>`)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/missing", nil).Code)
}

func TestIndexPageEmptyLibrary(t *testing.T) {
	ctx := context.Background()
	store, err := repo.NewJSONFile(filepath.Join(t.TempDir(), "library.json"))
	require.NoError(t, err)
	cat, err := catalog.Open(ctx, store)
	require.NoError(t, err)

	rec := do(NewHandler(cat, config.ServerConfig{}), http.MethodGet, "/?q=", nil)
	body := rec.Body.String()
	assert.Contains(t, body, "No books to display statistics.")
	assert.Contains(t, body, "No books match the filter criteria.")
	assert.Contains(t, body, "No books found.")
}

// flashOf follows a post/redirect/get response to its query.
func flashOf(t *testing.T, rec *httptest.ResponseRecorder) url.Values {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)
	return loc.Query()
}

func TestFormHandlers(t *testing.T) {
	h, cat, _ := newServer(t)
	ctx := context.Background()

	form := url.Values{"title": {" Mistborn "}, "author": {"Brandon Sanderson"}, "year": {"2006"}, "genre": {"Fantasy"}, "read": {"on"}}
	q := flashOf(t, do(h, http.MethodPost, "/books", strings.NewReader(form.Encode())))
	assert.Equal(t, "success", q.Get("kind"))
	assert.Equal(t, "Book 'Mistborn' added successfully!", q.Get("msg"))
	last := cat.Books(ctx)[4]
	assert.Equal(t, "Mistborn", last.Title)
	assert.True(t, last.Read)

	form = url.Values{"title": {""}, "author": {"A"}, "year": {"2006"}, "genre": {""}}
	q = flashOf(t, do(h, http.MethodPost, "/books", strings.NewReader(form.Encode())))
	assert.Equal(t, "error", q.Get("kind"))
	assert.Equal(t, "Please fill in all fields: title, genre.", q.Get("msg"))

	form = url.Values{"title": {"T"}, "author": {"A"}, "year": {"someday"}, "genre": {"G"}}
	q = flashOf(t, do(h, http.MethodPost, "/books", strings.NewReader(form.Encode())))
	assert.Equal(t, "Please check: year.", q.Get("msg"))
	assert.Len(t, cat.Books(ctx), 5)

	q = flashOf(t, do(h, http.MethodPost, "/books/remove", strings.NewReader("title=the+hobbit")))
	assert.Equal(t, "warning", q.Get("kind"))
	assert.Equal(t, "Book 'the hobbit' removed.", q.Get("msg"))

	q = flashOf(t, do(h, http.MethodPost, "/books/remove", strings.NewReader("title=Silmarillion")))
	assert.Equal(t, "Book 'Silmarillion' not found.", q.Get("msg"))

	// Library is now Dune, Foundation, Emma, Mistborn; index 1 of the SciFi view is Foundation.
	q = flashOf(t, do(h, http.MethodPost, "/books/toggle", strings.NewReader("index=1&genre=SciFi&status=All")))
	assert.Equal(t, "'Foundation' marked as unread.", q.Get("msg"))
	assert.Equal(t, "SciFi", q.Get("genre"), "facets survive the redirect")
	assert.Equal(t, "All", q.Get("status"))
	assert.False(t, cat.Books(ctx)[1].Read)

	q = flashOf(t, do(h, http.MethodPost, "/books/toggle", strings.NewReader("index=7&genre=SciFi")))
	assert.Equal(t, "That book is no longer in the list.", q.Get("msg"))
}

func TestFormSaveFailure(t *testing.T) {
	h := newBrokenServer(t)
	q := flashOf(t, do(h, http.MethodPost, "/books/toggle", strings.NewReader("index=0")))
	assert.Equal(t, "error", q.Get("kind"))
	assert.Equal(t, "Could not save the library.", q.Get("msg"))
}

func TestOPDS(t *testing.T) {
	h, _, _ := newServer(t)

	rec := do(h, http.MethodGet, "/opds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/atom+xml;profile=opds-catalog;kind=acquisition; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Equal(t, 4, strings.Count(body, "<entry>"))
	assert.Contains(t, body, `href="http://shelf.test/opds/opensearch.xml"`)
	assert.Contains(t, body, `href="http://shelf.test/opds?genre=SciFi"`)

	rec = do(h, http.MethodGet, "/opds?genre=SciFi&status=Read", nil)
	body = rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "<entry>"))
	assert.Contains(t, body, "<title>Foundation</title>")

	rec = do(h, http.MethodGet, "/opds/search?q=herbert", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "<entry>"))
	assert.Contains(t, body, `rel="http://opds-spec.org/image"`)

	rec = do(h, http.MethodGet, "/opds/opensearch.xml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `template="http://shelf.test/opds/search?q={searchTerms}"`)
}

func TestPanicLogCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(io.Discard) })

	h := withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := buf.String()
	assert.Contains(t, out, "panic recovered")
	assert.Contains(t, out, "request_id=req-42")
	assert.Contains(t, out, "status=500", "the recovered request is logged")
}
