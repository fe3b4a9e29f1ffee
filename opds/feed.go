package opds

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/htol/shelf/book"
)

// entryNamespace seeds the name-based UUIDs of feed entries.
var entryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/htol/shelf/opds"))

// EntryID derives a stable Atom id for a book from its title, author and year.
// Duplicates of the same book share an id.
func EntryID(b book.Book) string {
	key := fmt.Sprintf("%s\x00%s\x00%d", b.Title, b.Author, b.Year)
	return uuid.NewSHA1(entryNamespace, []byte(key)).URN()
}

// NewAcquisitionFeed creates a new acquisition feed
func NewAcquisitionFeed(id, title, selfURL, startURL string) *Feed {
	return &Feed{
		Xmlns:     NamespaceAtom,
		XmlnsDc:   NamespaceDC,
		XmlnsOpds: NamespaceOpds,
		ID:        id,
		Title:     title,
		Updated:   time.Now().UTC(),
		Author:    Author{Name: "shelf"},
		Links: []Link{
			{Rel: RelSelf, Href: selfURL, Type: TypeAcquisition},
			{Rel: RelStart, Href: startURL, Type: TypeAcquisition},
		},
		Entries: []Entry{},
	}
}

// AddSearchLink adds an OpenSearch link to the feed
func (f *Feed) AddSearchLink(searchURL string) {
	f.Links = append(f.Links, Link{
		Rel:  RelSearch,
		Href: searchURL,
		Type: TypeOpenSearch,
	})
}

// AddUpLink adds a parent link
func (f *Feed) AddUpLink(upURL string) {
	f.Links = append(f.Links, Link{
		Rel:  RelUp,
		Href: upURL,
		Type: TypeAcquisition,
	})
}

// AddFacet adds an OPDS facet link, e.g. one per genre.
func (f *Feed) AddFacet(group, title, href string, active bool) {
	l := Link{
		Rel:        RelFacet,
		Href:       href,
		Type:       TypeAcquisition,
		Title:      title,
		FacetGroup: group,
	}
	if active {
		l.ActiveFacet = "true"
	}
	f.Links = append(f.Links, l)
}

// AddBookEntry adds a catalog record. Books carry no downloadable file, so the
// only links are cover images.
func (f *Feed) AddBookEntry(b book.Book) {
	entry := Entry{
		ID:      EntryID(b),
		Title:   b.Title,
		Updated: f.Updated,
		Authors: []Author{{Name: b.Author}},
		Summary: readLabel(b.Read),
		Links:   []Link{},
	}
	if b.Year != 0 {
		entry.Issued = strconv.Itoa(b.Year)
	}
	if b.Genre != "" {
		entry.Categories = append(entry.Categories, Category{Term: b.Genre, Label: b.Genre})
	}
	if b.HasCover() {
		if u, err := url.Parse(b.ImageURL); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			entry.Links = append(entry.Links,
				Link{Rel: RelImage, Href: b.ImageURL, Type: imageType(u.Path)},
				Link{Rel: RelImageThumbnail, Href: b.ImageURL, Type: imageType(u.Path)},
			)
		}
	}
	f.Entries = append(f.Entries, entry)
}

func readLabel(read bool) string {
	if read {
		return "Read"
	}
	return "Unread"
}

// Marshal returns the XML representation of the feed
func (f *Feed) Marshal() ([]byte, error) {
	output, err := xml.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
