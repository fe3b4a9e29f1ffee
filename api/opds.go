package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/htol/shelf/book"
	"github.com/htol/shelf/catalog"
	"github.com/htol/shelf/logger"
	"github.com/htol/shelf/opds"
)

const (
	opdsRootURL        = "/opds"
	opdsSearchURL      = "/opds/opensearch.xml"
	catalogTitle       = "My Library"
	catalogDescription = "Search my personal library"
)

type marshaler interface {
	Marshal() ([]byte, error)
}

// respondWithOPDS writes an OPDS document with proper content type
func respondWithOPDS(w http.ResponseWriter, doc marshaler, contentType string) {
	output, err := doc.Marshal()
	if err != nil {
		logger.Error("Failed to generate feed", "error", err)
		http.Error(w, "Failed to generate feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType+"; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(output); err != nil {
		logger.Error("Failed to write feed", "error", err)
	}
}

// baseURLFor returns the configured base URL, or one derived from the request
func baseURLFor(configured string, r *http.Request) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	// Check for X-Forwarded-Proto header (common with reverse proxies)
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// opdsRootHandler returns the whole library as an acquisition feed, narrowed
// by the optional genre and status facets.
func opdsRootHandler(cat *catalog.Catalog, configuredBase string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		baseURL := baseURLFor(configuredBase, r)
		f, err := parseFilter(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		self := baseURL + opdsRootURL
		if r.URL.RawQuery != "" {
			self += "?" + r.URL.RawQuery
		}
		feed := opds.NewAcquisitionFeed("urn:shelf:library", catalogTitle, self, baseURL+opdsRootURL)
		feed.AddSearchLink(baseURL + opdsSearchURL)

		for _, genre := range cat.Genres(ctx) {
			q := url.Values{"genre": {genre}}
			feed.AddFacet(opds.FacetGenre, genre, baseURL+opdsRootURL+"?"+q.Encode(), f.Genre == genre)
		}
		for _, s := range []book.Status{book.StatusRead, book.StatusUnread} {
			q := url.Values{"status": {s.String()}}
			feed.AddFacet(opds.FacetStatus, s.String(), baseURL+opdsRootURL+"?"+q.Encode(), f.Status == s)
		}

		for _, b := range cat.Filter(ctx, f) {
			feed.AddBookEntry(b)
		}
		respondWithOPDS(w, feed, opds.TypeAcquisition)
	})
}

// opdsSearchHandler returns search results as an acquisition feed
func opdsSearchHandler(cat *catalog.Catalog, configuredBase string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		baseURL := baseURLFor(configuredBase, r)

		feed := opds.NewAcquisitionFeed(
			"urn:shelf:search:"+url.QueryEscape(query),
			fmt.Sprintf("Search: %s", query),
			baseURL+"/opds/search?"+url.Values{"q": {query}}.Encode(),
			baseURL+opdsRootURL,
		)
		feed.AddUpLink(baseURL + opdsRootURL)

		for _, b := range cat.Search(r.Context(), query) {
			feed.AddBookEntry(b)
		}
		respondWithOPDS(w, feed, opds.TypeAcquisition)
	})
}

// opdsOpenSearchHandler returns the OpenSearch description document
func opdsOpenSearchHandler(configuredBase string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc := opds.NewOpenSearchDescription(baseURLFor(configuredBase, r), "shelf", catalogDescription)
		respondWithOPDS(w, doc, opds.TypeOpenSearch)
	})
}
