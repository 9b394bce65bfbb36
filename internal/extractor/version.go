package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"vsixgrab/internal/models"
)

// versionText matches any numeric triple. It also hits build stamps and
// similar numbers that happen to sit in version-like elements; that
// imprecision is accepted.
var versionText = regexp.MustCompile(`\d+\.\d+\.\d+`)

var structuredDataPaths = []string{
	"version",
	"softwareVersion",
	"mainEntity.softwareVersion",
	"mainEntity.version",
	"offers.version",
}

var versionSelectors = []string{
	".ux-item-version",
	".ux-item-meta-version",
	`[itemprop="softwareVersion"]`,
	".item-version",
	"#version",
	".version",
}

const fallbackScanSelector = "td, th, dd, dt, span, li, div"

func fromStructuredData(doc Document, _ string, d *models.Descriptor) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		payload := strings.TrimSpace(s.Text())
		if !gjson.Valid(payload) {
			return true
		}
		for _, node := range structuredDataNodes(gjson.Parse(payload)) {
			if acceptFromPaths(node.Raw, structuredDataPaths, d) {
				return false
			}
		}
		return true
	})
}

// structuredDataNodes flattens a JSON-LD payload into the objects worth
// probing: the payload itself, top-level array items and "@graph" members.
// "@graph" is walked by hand since gjson treats a leading '@' as a modifier.
func structuredDataNodes(root gjson.Result) []gjson.Result {
	if root.IsArray() {
		var nodes []gjson.Result
		for _, item := range root.Array() {
			nodes = append(nodes, structuredDataNodes(item)...)
		}
		return nodes
	}
	nodes := []gjson.Result{root}
	root.ForEach(func(key, value gjson.Result) bool {
		if key.String() == "@graph" && value.IsArray() {
			nodes = append(nodes, value.Array()...)
			return false
		}
		return true
	})
	return nodes
}

func fromDOMPattern(doc Document, _ string, d *models.Descriptor) {
	for _, selector := range versionSelectors {
		if scanForVersion(doc.Find(selector), d, false) {
			return
		}
	}
	scanForVersion(doc.Find(fallbackScanSelector), d, true)
}

func scanForVersion(sel *goquery.Selection, d *models.Descriptor, requireLabel bool) bool {
	accepted := false
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := s.Text()
		if requireLabel && goquery.NodeName(s) == "div" {
			// a div may wrap the whole page; only its own text counts
			raw = ownText(s)
		}
		text := Sanitize(raw)
		if requireLabel && !strings.Contains(strings.ToLower(text), "version") {
			return true
		}
		if m := versionText.FindString(text); m != "" && d.SetVersion(m) {
			accepted = true
			return false
		}
		return true
	})
	return accepted
}

func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}

// acceptFromPaths probes payload at each path and accepts the first value
// that looks like a version. Array results are scanned element by element.
func acceptFromPaths(payload string, paths []string, d *models.Descriptor) bool {
	for _, path := range paths {
		r := gjson.Get(payload, path)
		if !r.Exists() {
			continue
		}
		candidates := []gjson.Result{r}
		if r.IsArray() {
			candidates = r.Array()
		}
		for _, c := range candidates {
			if c.Type != gjson.String {
				continue
			}
			if d.SetVersion(Sanitize(c.String())) {
				return true
			}
		}
	}
	return false
}
