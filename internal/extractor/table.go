package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"vsixgrab/internal/models"
)

// Row shapes seen on listing pages, most specific first.
var tableSelectors = []string{
	"table.ux-table-metadata tr",
	".ux-table-metadata tr",
	".ux-item-meta table tr",
	`table[aria-label="Extension metadata"] tr`,
	".item-details table tr",
	".metadata table tr",
}

type tableValues struct {
	identifier string
	publisher  string
	name       string
	version    string
}

func fromMetadataTable(doc Document, _ string, d *models.Descriptor) {
	for _, selector := range tableSelectors {
		rows := doc.Find(selector)
		if rows.Length() == 0 {
			continue
		}
		var values tableValues
		rows.Each(func(_ int, row *goquery.Selection) {
			cells := row.ChildrenFiltered("td, th")
			if cells.Length() != 2 {
				return
			}
			value := Sanitize(cells.Eq(1).Text())
			if value == "" {
				return
			}
			switch normalizeLabel(cells.Eq(0).Text()) {
			case "unique identifier", "identifier":
				setOnce(&values.identifier, value)
			case "publisher":
				setOnce(&values.publisher, value)
			case "extension name", "name":
				setOnce(&values.name, value)
			case "version":
				setOnce(&values.version, value)
			}
		})
		values.apply(d)
		return
	}
}

// apply assigns identifier first so a display-name publisher row cannot
// contradict it.
func (v tableValues) apply(d *models.Descriptor) {
	if v.identifier != "" {
		d.SetIdentifier(v.identifier)
	}
	if v.publisher != "" {
		d.SetPublisher(v.publisher)
	}
	if v.name != "" {
		d.SetExtensionName(v.name)
	}
	if v.version != "" {
		d.SetVersion(v.version)
	}
}

func normalizeLabel(s string) string {
	s = strings.ToLower(Sanitize(s))
	s = strings.TrimSuffix(s, ":")
	return strings.Join(strings.Fields(s), " ")
}

func setOnce(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}
