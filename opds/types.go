// Package opds renders the library as an OPDS 1.2 acquisition feed, an Atom
// (RFC 4287) document that e-reader apps can browse and search.
package opds

import (
	"encoding/xml"
	"time"
)

const (
	NamespaceAtom   = "http://www.w3.org/2005/Atom"
	NamespaceDC     = "http://purl.org/dc/terms/"
	NamespaceOpds   = "http://opds-spec.org/2010/catalog"
	NamespaceSearch = "http://a9.com/-/spec/opensearch/1.1/"
)

const (
	TypeAcquisition = "application/atom+xml;profile=opds-catalog;kind=acquisition"
	TypeOpenSearch  = "application/opensearchdescription+xml"
)

// Link relations used by the feed. Covers use the OPDS image relations.
const (
	RelSelf           = "self"
	RelStart          = "start"
	RelUp             = "up"
	RelSearch         = "search"
	RelImage          = "http://opds-spec.org/image"
	RelImageThumbnail = "http://opds-spec.org/image/thumbnail"
	RelFacet          = "http://opds-spec.org/facet"
)

// Facet groups of the library feed.
const (
	FacetGenre  = "Genre"
	FacetStatus = "Status"
)

// Feed is the whole library, or a filtered or searched part of it.
type Feed struct {
	XMLName   xml.Name  `xml:"feed"`
	Xmlns     string    `xml:"xmlns,attr"`
	XmlnsDc   string    `xml:"xmlns:dc,attr"`
	XmlnsOpds string    `xml:"xmlns:opds,attr"`
	ID        string    `xml:"id"`
	Title     string    `xml:"title"`
	Updated   time.Time `xml:"updated"`
	Author    Author    `xml:"author"`
	Links     []Link    `xml:"link"`
	Entries   []Entry   `xml:"entry"`
}

// Entry is one book record. Summary carries the read status and Issued the
// publication year.
type Entry struct {
	ID         string     `xml:"id"`
	Title      string     `xml:"title"`
	Updated    time.Time  `xml:"updated"`
	Authors    []Author   `xml:"author"`
	Summary    string     `xml:"summary"`
	Issued     string     `xml:"dc:issued,omitempty"`
	Categories []Category `xml:"category,omitempty"`
	Links      []Link     `xml:"link"`
}

type Author struct {
	Name string `xml:"name"`
}

// Link is an Atom link. FacetGroup and ActiveFacet are set on facet links only.
type Link struct {
	Rel         string `xml:"rel,attr"`
	Href        string `xml:"href,attr"`
	Type        string `xml:"type,attr,omitempty"`
	Title       string `xml:"title,attr,omitempty"`
	FacetGroup  string `xml:"opds:facetGroup,attr,omitempty"`
	ActiveFacet string `xml:"opds:activeFacet,attr,omitempty"`
}

// Category holds the book's genre.
type Category struct {
	Term  string `xml:"term,attr"`
	Label string `xml:"label,attr,omitempty"`
}
