package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"vsixgrab/internal/models"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	extensionQueryPath = "/_apis/public/gallery/extensionquery"
	// filterType 7 selects by "publisher.name".
	filterTypeExtensionName = 7
	queryFlags              = 2151
)

type Client struct {
	client     *http.Client
	userAgent  string
	galleryURL string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(m *Client) { m.client = c }
}

func WithUserAgent(ua string) Option {
	return func(m *Client) {
		if ua != "" {
			m.userAgent = ua
		}
	}
}

// WithGalleryURL points gallery API calls at another base URL.
func WithGalleryURL(base string) Option {
	return func(m *Client) { m.galleryURL = base }
}

func New(opts ...Option) *Client {
	m := &Client{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		userAgent:  defaultUserAgent,
		galleryURL: "https://" + MarketplaceHost,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FetchListing downloads and parses a listing page. The returned location is
// the final URL after redirects.
func (m *Client) FetchListing(ctx context.Context, listingURL string) (*goquery.Document, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("invalid status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse listing page: %w", err)
	}

	location := listingURL
	if resp.Request != nil && resp.Request.URL != nil {
		location = resp.Request.URL.String()
	}
	return doc, location, nil
}

// LatestVersion asks the gallery API for the newest version of an extension.
func (m *Client) LatestVersion(ctx context.Context, identifier string) (models.Descriptor, error) {
	var d models.Descriptor
	if !d.SetIdentifier(identifier) {
		return d, fmt.Errorf("invalid extension identifier %q: %w", identifier, models.ErrMalformedInput)
	}

	requestBody := map[string]interface{}{
		"filters": []map[string]interface{}{
			{
				"criteria": []map[string]interface{}{
					{
						"filterType": filterTypeExtensionName,
						"value":      identifier,
					},
				},
				"pageNumber": 1,
				"pageSize":   1,
			},
		},
		"flags": queryFlags,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return d, fmt.Errorf("failed to serialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.galleryURL+extensionQueryPath, bytes.NewReader(jsonData))
	if err != nil {
		return d, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "application/json; api-version=3.0-preview.1")

	resp, err := m.client.Do(req)
	if err != nil {
		return d, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return d, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return d, fmt.Errorf("invalid status: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var response struct {
		Results []struct {
			Extensions []struct {
				ExtensionName string `json:"extensionName"`
				Versions      []struct {
					Version string `json:"version"`
				} `json:"versions"`
				Publisher struct {
					PublisherName string `json:"publisherName"`
				} `json:"publisher"`
			} `json:"extensions"`
		} `json:"results"`
	}

	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		return d, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Results) == 0 || len(response.Results[0].Extensions) == 0 {
		return d, fmt.Errorf("extension not found: %s", identifier)
	}

	ext := response.Results[0].Extensions[0]
	if len(ext.Versions) == 0 {
		return d, fmt.Errorf("no versions found for extension %s: %w", identifier, models.ErrIncompleteData)
	}

	if !d.SetVersion(ext.Versions[0].Version) {
		return d, fmt.Errorf("unexpected version %q for %s: %w", ext.Versions[0].Version, identifier, models.ErrMalformedInput)
	}
	return d, nil
}
