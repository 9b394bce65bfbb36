package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"vsixgrab/internal/models"
)

// JSON blocks some host frameworks embed for hydration.
var stateBlockSelectors = []string{
	"script#__NEXT_DATA__",
	"script.jiContent",
}

// Globals assigned by inline scripts, e.g. window.__INITIAL_STATE__ = {...};
var stateGlobals = []string{
	"__INITIAL_STATE__",
	"__PRELOADED_STATE__",
	"__NUXT__",
	"__APP_STATE__",
}

var globalAssignment = regexp.MustCompile(`window\.(__[A-Z_]+__)\s*=\s*`)

var pageStatePaths = []string{
	"Versions.0.version",
	"versions.0.version",
	"extension.versions.0.version",
	"props.pageProps.extension.version",
	"item.version",
	"version",
}

func fromPageState(doc Document, _ string, d *models.Descriptor) {
	for _, payload := range pageStatePayloads(doc) {
		if acceptFromPaths(payload, pageStatePaths, d) {
			return
		}
	}
}

// pageStatePayloads returns the valid JSON state objects found in the page,
// hydration blocks first, then inline globals in stateGlobals order.
func pageStatePayloads(doc Document) []string {
	var payloads []string
	for _, selector := range stateBlockSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); gjson.Valid(text) {
				payloads = append(payloads, text)
			}
		})
	}

	globals := make(map[string]string)
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		for _, loc := range globalAssignment.FindAllStringSubmatchIndex(text, -1) {
			name := text[loc[2]:loc[3]]
			if _, seen := globals[name]; seen {
				continue
			}
			if obj, ok := leadingObject(text[loc[1]:]); ok && gjson.Valid(obj) {
				globals[name] = obj
			}
		}
	})
	for _, name := range stateGlobals {
		if obj, ok := globals[name]; ok {
			payloads = append(payloads, obj)
		}
	}
	return payloads
}

// leadingObject returns the balanced {...} literal at the start of s.
func leadingObject(s string) (string, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(s, "{") {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
