// Package page provides the readable pages the orchestrator works on: a
// listing fetched from the marketplace, or a saved HTML file on disk.
package page

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"vsixgrab/internal/extractor"
	"vsixgrab/internal/marketplace"
)

// Remote is a listing page read over HTTP. Redirects move its location.
type Remote struct {
	gallery marketplace.Gallery

	mu       sync.Mutex
	location string
}

func NewRemote(gallery marketplace.Gallery, location string) *Remote {
	return &Remote{gallery: gallery, location: location}
}

func (p *Remote) Location() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location
}

func (p *Remote) Document(ctx context.Context) (extractor.Document, error) {
	doc, final, err := p.gallery.FetchListing(ctx, p.Location())
	if err != nil {
		return nil, err
	}
	if final != "" {
		p.mu.Lock()
		p.location = final
		p.mu.Unlock()
	}
	return doc, nil
}

// File is a saved listing page. Its location comes from the fixed value
// given at construction or else from the canonical link inside the file.
type File struct {
	path  string
	fixed string

	mu       sync.Mutex
	location string
}

func NewFile(path, location string) *File {
	p := &File{path: path, fixed: location, location: location}
	if location == "" {
		// the file may not exist yet; Refresh picks the location up later
		_ = p.Refresh()
	}
	return p
}

func (p *File) Path() string {
	return p.path
}

func (p *File) Location() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location
}

func (p *File) load() (*goquery.Document, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

func (p *File) Document(_ context.Context) (extractor.Document, error) {
	doc, err := p.load()
	if err != nil {
		return nil, err
	}
	p.updateLocation(doc)
	return doc, nil
}

// Refresh re-reads the location from the file.
func (p *File) Refresh() error {
	if p.fixed != "" {
		return nil
	}
	doc, err := p.load()
	if err != nil {
		return err
	}
	p.updateLocation(doc)
	return nil
}

func (p *File) updateLocation(doc *goquery.Document) {
	if p.fixed != "" {
		return
	}
	loc := CanonicalLocation(doc)
	if loc == "" {
		return
	}
	p.mu.Lock()
	p.location = loc
	p.mu.Unlock()
}

// CanonicalLocation returns the page URL declared by the document itself.
func CanonicalLocation(doc extractor.Document) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return strings.TrimSpace(href)
	}
	if content, ok := doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}
