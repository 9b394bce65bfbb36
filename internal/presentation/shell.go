// Package presentation renders the download controls into a watched page
// and reports dispatch results on the terminal.
package presentation

import (
	"fmt"
	"html"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"vsixgrab/internal/marketplace"
	"vsixgrab/internal/models"
	"vsixgrab/internal/utils"
)

const MarkerID = "vsixgrab-actions"

// Shell keeps a block of download links inside an HTML file.
type Shell struct {
	path   string
	logger *utils.Logger

	mu   sync.Mutex
	desc models.Descriptor
}

func NewShell(path string) *Shell {
	return &Shell{path: path, logger: utils.NewNamedLogger("presentation")}
}

// SetDescriptor selects what the next Assemble renders.
func (s *Shell) SetDescriptor(d models.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desc = d
}

func (s *Shell) load() (*goquery.Document, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return goquery.NewDocumentFromReader(f)
}

// Present reports whether the file currently holds the controls.
func (s *Shell) Present() bool {
	doc, err := s.load()
	if err != nil {
		return false
	}
	return doc.Find("#"+MarkerID).Length() > 0
}

// Assemble writes the controls for the current descriptor into the file,
// replacing any stale copy.
func (s *Shell) Assemble() error {
	s.mu.Lock()
	desc := s.desc
	s.mu.Unlock()

	if !desc.IsComplete() {
		return fmt.Errorf("%w: nothing to render", models.ErrIncompleteData)
	}

	doc, err := s.load()
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}
	doc.Find("#" + MarkerID).Remove()

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return fmt.Errorf("%w: page has no body", models.ErrMalformedInput)
	}
	body.AppendHtml(Render(desc))

	out, err := doc.Html()
	if err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	err = os.WriteFile(s.path, []byte(out), 0644)
	s.logger.LogFileOperation("inject controls", s.path, err)
	return err
}

// Remove takes the controls out of the file if they are there.
func (s *Shell) Remove() error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	block := doc.Find("#" + MarkerID)
	if block.Length() == 0 {
		return nil
	}
	block.Remove()
	out, err := doc.Html()
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(out), 0644)
}

// Render returns the controls block for a complete descriptor.
func Render(d models.Descriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div id="%s" data-identifier="%s" data-version="%s">`,
		MarkerID, html.EscapeString(d.Identifier), html.EscapeString(d.Version))
	for _, kind := range []models.PackageKind{models.KindVSIX, models.KindVSIXPackage} {
		url := marketplace.ResolveDescriptor(d, kind)
		name := marketplace.Filename(d.Identifier, d.Version, kind)
		fmt.Fprintf(&b, `<a class="vsixgrab-%s" data-action="%s" href="%s" download="%s">Download %s</a>`,
			kind, kind, html.EscapeString(url), html.EscapeString(name), strings.ToUpper(string(kind)))
	}
	fmt.Fprintf(&b, `<button type="button" data-action="%s">Copy URLs</button>`, models.ActionCopyURL)
	b.WriteString(`</div>`)
	return b.String()
}
