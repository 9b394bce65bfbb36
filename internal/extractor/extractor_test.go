package extractor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vsixgrab/internal/models"
)

const listingURL = "https://marketplace.visualstudio.com/items?itemName=ms-python.python"

func parse(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + body + "</body></html>"))
	require.NoError(t, err)
	return doc
}

func TestURLParameterStrategy(t *testing.T) {
	tests := []struct {
		publisher string
		name      string
	}{
		{"ms-python", "python"},
		{"redhat", "vscode-yaml"},
		{"esbenp", "prettier-vscode"},
		{"ms_dotnettools", "csharp.extra"},
	}
	for _, tt := range tests {
		t.Run(tt.publisher, func(t *testing.T) {
			location := fmt.Sprintf("https://marketplace.visualstudio.com/items?itemName=%s.%s", tt.publisher, tt.name)
			d := ExtractNew(nil, location)
			assert.Equal(t, tt.publisher, d.Publisher)
			assert.Equal(t, tt.name, d.ExtensionName)
			assert.Equal(t, tt.publisher+"."+tt.name, d.Identifier)
		})
	}
}

func TestURLParameterWithoutDotIsIgnored(t *testing.T) {
	d := ExtractNew(nil, "https://marketplace.visualstudio.com/items?itemName=python")
	assert.Equal(t, models.Descriptor{}, d)

	d = ExtractNew(nil, "://not a url")
	assert.Equal(t, models.Descriptor{}, d)
}

func TestEndToEndListing(t *testing.T) {
	doc := parse(t, `
		<table class="ux-table-metadata">
			<tr><td>Version</td><td> 2024.0.0 </td></tr>
			<tr><td>Released on</td><td>1/1/2024</td></tr>
		</table>`)

	d := ExtractNew(doc, listingURL)
	assert.Equal(t, models.Descriptor{
		Publisher:     "ms-python",
		ExtensionName: "python",
		Identifier:    "ms-python.python",
		Version:       "2024.0.0",
	}, d)
	assert.True(t, d.IsComplete())
}

func TestMetadataTableFillsIdentityWithoutURL(t *testing.T) {
	doc := parse(t, `
		<div class="ux-item-meta"><table>
			<tr><th>Publisher:</th><td>Microsoft</td></tr>
			<tr><th>Unique Identifier</th><td>ms-vscode.cpptools</td></tr>
			<tr><th>Version</th><td>1.19.4</td></tr>
			<tr><td>three</td><td>cell</td><td>row</td></tr>
		</table></div>`)

	d := ExtractNew(doc, "https://example.com/listing")
	assert.Equal(t, "ms-vscode", d.Publisher)
	assert.Equal(t, "cpptools", d.ExtensionName)
	assert.Equal(t, "ms-vscode.cpptools", d.Identifier)
	assert.Equal(t, "1.19.4", d.Version)
}

func TestURLIdentifierIsAuthoritative(t *testing.T) {
	doc := parse(t, `
		<table class="ux-table-metadata">
			<tr><td>Unique Identifier</td><td>someone.else</td></tr>
			<tr><td>Publisher</td><td>someone</td></tr>
			<tr><td>Version</td><td>1.0.0</td></tr>
		</table>`)

	d := ExtractNew(doc, listingURL)
	assert.Equal(t, "ms-python.python", d.Identifier)
	assert.Equal(t, "ms-python", d.Publisher)
	assert.Equal(t, "python", d.ExtensionName)
}

func TestInvalidTableVersionLeavesRoomForLaterStrategies(t *testing.T) {
	doc := parse(t, `
		<table class="ux-table-metadata"><tr><td>Version</td><td>latest</td></tr></table>
		<span class="ux-item-version">v3.2.1</span>`)

	d := ExtractNew(doc, listingURL)
	assert.Equal(t, "3.2.1", d.Version)
}

func TestStructuredDataStrategy(t *testing.T) {
	doc := parse(t, `
		<script type="application/ld+json">{ this is not json</script>
		<script type="application/ld+json">{"@type":"Organization","name":"x"}</script>
		<script type="application/ld+json">{"@type":"SoftwareApplication","softwareVersion":"0.9.1"}</script>`)

	d := ExtractNew(doc, listingURL)
	assert.Equal(t, "0.9.1", d.Version)
}

func TestStructuredDataGraph(t *testing.T) {
	doc := parse(t, `<script type="application/ld+json">
		{"@graph":[{"@type":"WebPage"},{"@type":"SoftwareApplication","softwareVersion":"4.5.6"}]}
	</script>`)

	d := ExtractNew(doc, listingURL)
	assert.Equal(t, "4.5.6", d.Version)
}

func TestDOMPatternStrategy(t *testing.T) {
	t.Run("selector match", func(t *testing.T) {
		doc := parse(t, `<div class="ux-item-version">Version 1.2.3 (build 2024.01.05)</div>`)
		assert.Equal(t, "1.2.3", ExtractNew(doc, listingURL).Version)
	})

	t.Run("labelled element fallback", func(t *testing.T) {
		doc := parse(t, `
			<ul>
				<li>Installs 12.345.678</li>
				<li>Current VERSION: 7.8.9</li>
			</ul>`)
		assert.Equal(t, "7.8.9", ExtractNew(doc, listingURL).Version)
	})

	t.Run("labelled div", func(t *testing.T) {
		doc := parse(t, `<div>Version 1.2.3</div>`)
		assert.Equal(t, "1.2.3", ExtractNew(doc, listingURL).Version)
	})

	t.Run("wrapper div text is ignored", func(t *testing.T) {
		doc := parse(t, `<div>Version history<section><p>Downloads 1.234.567</p></section></div>`)
		assert.Empty(t, ExtractNew(doc, listingURL).Version)
	})

	t.Run("nothing version shaped", func(t *testing.T) {
		doc := parse(t, `<span>Version unknown</span>`)
		assert.Empty(t, ExtractNew(doc, listingURL).Version)
	})
}

func TestPageStateStrategy(t *testing.T) {
	t.Run("inline global", func(t *testing.T) {
		doc := parse(t, `<script>
			var x = 1;
			window.__INITIAL_STATE__ = {"item":{"name":"a \"quoted} name","version":"5.6.7"}};
		</script>`)
		assert.Equal(t, "5.6.7", ExtractNew(doc, listingURL).Version)
	})

	t.Run("hydration block", func(t *testing.T) {
		doc := parse(t, `<script class="jiContent" type="application/json">{"Versions":[{"version":"1.87.0"},{"version":"1.86.0"}]}</script>`)
		assert.Equal(t, "1.87.0", ExtractNew(doc, listingURL).Version)
	})

	t.Run("malformed global skipped", func(t *testing.T) {
		doc := parse(t, `<script>window.__NUXT__ = {"version": "1.0.0"</script>`)
		assert.Empty(t, ExtractNew(doc, listingURL).Version)
	})
}

func TestStrategyPriority(t *testing.T) {
	body := `
		<script>window.__INITIAL_STATE__ = {"version":"9.9.9"};</script>
		<span class="ux-item-version">2.0.0</span>
		<script type="application/ld+json">{"softwareVersion":"1.0.0"}</script>`

	assert.Equal(t, "1.0.0", ExtractNew(parse(t, body), listingURL).Version)

	withTable := body + `<table class="ux-table-metadata"><tr><td>Version</td><td>3.0.0</td></tr></table>`
	assert.Equal(t, "3.0.0", ExtractNew(parse(t, withTable), listingURL).Version)
}

func TestExtractIsIdempotent(t *testing.T) {
	doc := parse(t, `
		<table class="ux-table-metadata"><tr><td>Version</td><td>2024.0.0</td></tr></table>
		<span class="ux-item-version">8.8.8</span>`)

	d := ExtractNew(doc, listingURL)
	require.True(t, d.IsComplete())
	before := d

	Extract(doc, listingURL, &d)
	Extract(doc, "https://marketplace.visualstudio.com/items?itemName=other.thing", &d)
	assert.Equal(t, before, d)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a href=xTom  Jerrys/a", Sanitize(` <a href="x">Tom & Jerry's</a> `))
	assert.Equal(t, "1.2.3", Sanitize("\n\t1.2.3  "))

	d := ExtractNew(nil, "https://marketplace.visualstudio.com/items?itemName=pub.na%3Cme%3E")
	assert.Equal(t, "name", d.ExtensionName)
}

func TestLeadingObject(t *testing.T) {
	obj, ok := leadingObject(`  {"a":{"b":"}"}}; trailing`)
	assert.True(t, ok)
	assert.Equal(t, `{"a":{"b":"}"}}`, obj)

	_, ok = leadingObject(`[1,2]`)
	assert.False(t, ok)
}
