package api

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/htol/shelf/book"
	"github.com/htol/shelf/catalog"
	"github.com/htol/shelf/export"
	"github.com/htol/shelf/logger"
)

// parseFilter reads the genre and status facets from q.
func parseFilter(q url.Values) (catalog.Filter, error) {
	status, err := book.ParseStatus(q.Get("status"))
	if err != nil {
		return catalog.Filter{}, err
	}
	return catalog.Filter{Genre: q.Get("genre"), Status: status}, nil
}

func listBooksHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilter(r.URL.Query())
		if err != nil {
			respondWithValidationError(w, err.Error(), "status")
			return
		}
		respondJSON(w, http.StatusOK, cat.Filter(r.Context(), f))
	})
}

func addBookHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b book.Book
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&b); err != nil {
			respondWithValidationError(w, "invalid JSON body: "+err.Error())
			return
		}

		added, err := cat.Add(r.Context(), b)
		if err != nil {
			respondWithCatalogError(w, "failed to add book", err)
			return
		}
		respondJSON(w, http.StatusCreated, added)
	})
}

func removeBookHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title := r.URL.Query().Get("title")
		if strings.TrimSpace(title) == "" {
			respondWithValidationError(w, "missing 'title' query parameter", "title")
			return
		}

		res, err := cat.Remove(r.Context(), title)
		if err != nil {
			respondWithCatalogError(w, "failed to remove book", err)
			return
		}
		if !res.Found() {
			respondWithError(w, "book not found", nil, http.StatusNotFound)
			return
		}
		respondJSON(w, http.StatusOK, map[string]int{"removed": res.Count})
	})
}

func toggleReadHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(r.PathValue("index"))
		if err != nil {
			respondWithValidationError(w, "invalid book index", "index")
			return
		}
		f, err := parseFilter(r.URL.Query())
		if err != nil {
			respondWithValidationError(w, err.Error(), "status")
			return
		}

		b, err := cat.ToggleReadInView(r.Context(), f, index)
		if err != nil {
			respondWithCatalogError(w, "failed to toggle read status", err)
			return
		}
		respondJSON(w, http.StatusOK, b)
	})
}

func searchBooksHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, cat.Search(r.Context(), r.URL.Query().Get("q")))
	})
}

func statsHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, cat.Statistics(r.Context()))
	})
}

func getGenresHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, cat.Genres(r.Context()))
	})
}

func exportHandler(cat *catalog.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("format")
		if name == "" {
			name = string(export.CSV)
		}
		format, err := export.ParseFormat(name)
		if err != nil {
			respondWithValidationError(w, "format must be 'csv', 'json' or 'yaml'", "format")
			return
		}

		// Render fully before writing headers so a failure is still a clean 500.
		var buf bytes.Buffer
		if err := export.Write(&buf, format, cat.Books(r.Context())); err != nil {
			respondWithError(w, "failed to export library", err, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", contentDisposition(export.DefaultFileName(format)))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		if _, err := buf.WriteTo(w); err != nil {
			logger.Error("failed to stream export", "error", err, "format", format)
		}
	})
}

func healthCheckHandler(cat *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := cat.Ping(ctx); err != nil {
			respondWithError(w, "service unavailable", err, http.StatusServiceUnavailable)
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"status": "healthy",
			"books":  cat.Statistics(ctx).Total,
		})
	}
}
