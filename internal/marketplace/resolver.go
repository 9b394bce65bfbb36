package marketplace

import (
	"fmt"
	"net/url"
	"strings"

	"vsixgrab/internal/models"
)

const (
	MarketplaceHost = "marketplace.visualstudio.com"
	CDNHost         = "gallery.vsassets.io"
	VSIXAssetName   = "Microsoft.VisualStudio.Services.VSIXPackage"
)

// ResolveURL builds the download URL for one package kind. Each variable
// segment is escaped on its own. Empty inputs give a malformed URL rather
// than an error; callers validate the descriptor first.
func ResolveURL(publisher, extensionName, version string, kind models.PackageKind) string {
	p := url.PathEscape(publisher)
	n := url.PathEscape(extensionName)
	v := url.PathEscape(version)

	if kind == models.KindVSIXPackage {
		return fmt.Sprintf("https://%s/_apis/public/gallery/publishers/%s/vsextensions/%s/%s/vspackage",
			MarketplaceHost, p, n, v)
	}
	return fmt.Sprintf("https://%s.%s/_apis/public/gallery/publisher/%s/extension/%s/%s/assetbyname/%s",
		p, CDNHost, p, n, v, VSIXAssetName)
}

func ResolveDescriptor(d models.Descriptor, kind models.PackageKind) string {
	return ResolveURL(d.Publisher, d.ExtensionName, d.Version, kind)
}

// Filename is the suggested name for a saved package, before sanitizing.
func Filename(identifier, version string, kind models.PackageKind) string {
	return fmt.Sprintf("%s_%s%s", identifier, version, kind.Extension())
}

// IsListingURL reports whether location is a marketplace item page.
func IsListingURL(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), MarketplaceHost) && strings.HasPrefix(u.Path, "/items")
}

// ListingURL returns the item page for an identifier.
func ListingURL(identifier string) string {
	q := url.Values{}
	q.Set("itemName", identifier)
	return fmt.Sprintf("https://%s/items?%s", MarketplaceHost, q.Encode())
}

// ParseDownloadURL recovers the descriptor and kind from a URL produced by
// ResolveURL.
func ParseDownloadURL(raw string) (models.Descriptor, models.PackageKind, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return models.Descriptor{}, "", fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
	}

	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, s := range segments {
		if segments[i], err = url.PathUnescape(s); err != nil {
			return models.Descriptor{}, "", fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
		}
	}

	var kind models.PackageKind
	switch {
	case len(segments) == 10 && segments[3] == "publisher" && segments[5] == "extension" && segments[8] == "assetbyname":
		kind = models.KindVSIX
	case len(segments) == 9 && segments[3] == "publishers" && segments[5] == "vsextensions" && segments[8] == "vspackage":
		kind = models.KindVSIXPackage
	default:
		return models.Descriptor{}, "", fmt.Errorf("%w: not a package URL: %s", models.ErrMalformedInput, raw)
	}

	d := models.Descriptor{
		Publisher:     segments[4],
		ExtensionName: segments[6],
		Version:       segments[7],
	}
	d.DeriveIdentifier()
	return d, kind, nil
}
