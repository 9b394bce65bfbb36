// Package extractor recovers an extension's publisher, name and version from
// a listing page. Strategies run in a fixed order; each one only fills fields
// that are still empty, so the first source to supply a value wins.
package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"vsixgrab/internal/models"
)

// Document is the read surface of a listing page. *goquery.Document satisfies it.
type Document interface {
	Find(selector string) *goquery.Selection
}

type strategy struct {
	name string
	// wanted reports whether the strategy still has something to fill.
	wanted func(d *models.Descriptor) bool
	run    func(doc Document, location string, d *models.Descriptor)
}

func needsIdentity(d *models.Descriptor) bool {
	return d.Identifier == "" && (d.Publisher == "" || d.ExtensionName == "")
}

func needsAny(d *models.Descriptor) bool {
	return needsIdentity(d) || d.Version == ""
}

func needsVersion(d *models.Descriptor) bool {
	return d.Version == ""
}

var strategies = []strategy{
	{name: "url-parameter", wanted: needsIdentity, run: fromURLParameter},
	{name: "metadata-table", wanted: needsAny, run: fromMetadataTable},
	{name: "structured-data", wanted: needsVersion, run: fromStructuredData},
	{name: "dom-pattern", wanted: needsVersion, run: fromDOMPattern},
	{name: "page-state", wanted: needsVersion, run: fromPageState},
}

// Extract runs every strategy against doc and location, filling d in place.
// It never fails: fields that cannot be recovered stay empty. A nil doc
// limits extraction to the URL.
func Extract(doc Document, location string, d *models.Descriptor) *models.Descriptor {
	if d == nil {
		d = &models.Descriptor{}
	}
	for _, s := range strategies {
		if !s.wanted(d) {
			continue
		}
		if doc == nil && s.name != "url-parameter" {
			continue
		}
		s.run(doc, location, d)
	}
	d.DeriveIdentifier()
	return d
}

// ExtractNew is Extract on a fresh descriptor.
func ExtractNew(doc Document, location string) models.Descriptor {
	return *Extract(doc, location, nil)
}

// Sanitize strips characters that could be reflected unsafely into generated
// markup and trims surrounding whitespace.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '\'', '&':
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func fromURLParameter(_ Document, location string, d *models.Descriptor) {
	if location == "" {
		return
	}
	u, err := url.Parse(location)
	if err != nil {
		return
	}
	itemName := Sanitize(u.Query().Get("itemName"))
	if !strings.Contains(itemName, ".") {
		return
	}
	d.SetIdentifier(itemName)
}
