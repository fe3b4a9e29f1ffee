package api

import (
	"net/http"

	"github.com/htol/shelf/catalog"
	"github.com/htol/shelf/config"
	"github.com/htol/shelf/middleware"
)

// maxBodyBytes caps form and JSON request bodies.
const maxBodyBytes = 1 << 20

// NewHandler creates and returns the main HTTP handler (router) for the application
func NewHandler(cat *catalog.Catalog, cfg config.ServerConfig) http.Handler {
	mux := http.NewServeMux()

	// OPDS Catalog routes
	mux.Handle("GET /opds", opdsRootHandler(cat, cfg.BaseURL))
	mux.Handle("GET /opds/search", opdsSearchHandler(cat, cfg.BaseURL))
	mux.Handle("GET /opds/opensearch.xml", opdsOpenSearchHandler(cfg.BaseURL))

	// HTML form UI
	mux.Handle("GET /{$}", indexHandler(cat))
	mux.Handle("POST /books", addBookFormHandler(cat))
	mux.Handle("POST /books/remove", removeBookFormHandler(cat))
	mux.Handle("POST /books/toggle", toggleReadFormHandler(cat))

	// JSON API routes
	mux.Handle("GET /api/books", withCORS(listBooksHandler(cat)))
	mux.Handle("POST /api/books", withCORS(addBookHandler(cat)))
	mux.Handle("DELETE /api/books", withCORS(removeBookHandler(cat)))
	mux.Handle("POST /api/books/{index}/toggle", withCORS(toggleReadHandler(cat)))
	mux.Handle("GET /api/search", withCORS(searchBooksHandler(cat)))
	mux.Handle("GET /api/stats", withCORS(statsHandler(cat)))
	mux.Handle("GET /api/genres", withCORS(getGenresHandler(cat)))
	mux.Handle("GET /api/export", withCORS(exportHandler(cat)))
	mux.Handle("OPTIONS /api/", withCORS(http.NotFoundHandler()))
	mux.HandleFunc("GET /health", healthCheckHandler(cat))

	return withMiddleware(mux)
}

// withMiddleware wraps h so that every log line of a request, including a
// recovered panic, carries its request id.
func withMiddleware(h http.Handler) http.Handler {
	return middleware.Chain(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.MaxBytes(maxBodyBytes),
	)(h)
}
