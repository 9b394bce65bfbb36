package download

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"vsixgrab/internal/marketplace"
	"vsixgrab/internal/models"
	"vsixgrab/internal/utils"
)

const MaxFilenameLength = 200

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	packageFiles  = utils.NewFileUtils()
)

// ValidateURL accepts only HTTPS URLs on the marketplace host or on the CDN
// host and its subdomains.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: %q", models.ErrProtocolNotAllowed, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case host == marketplace.MarketplaceHost:
	case host == marketplace.CDNHost:
	case strings.HasSuffix(host, "."+marketplace.CDNHost):
	default:
		return fmt.Errorf("%w: %q", models.ErrDomainNotAllowed, host)
	}
	return nil
}

func forbidden(r rune) bool {
	return strings.ContainsRune(`<>:"/\|?*`, r) || unicode.IsControl(r)
}

// SanitizeFilename makes name safe to persist inside the download directory.
// The result never contains path separators or "..", never starts with a dot
// and always ends in a package extension, kind's when name carries none.
func SanitizeFilename(name string, kind models.PackageKind) string {
	name = strings.Map(func(r rune) rune {
		if forbidden(r) {
			return '_'
		}
		return r
	}, name)

	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", "")
	}
	name = strings.TrimLeft(name, ".")
	name = whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")

	ext := kind.Extension()
	if packageFiles.IsPackageFile(name) {
		ext = name[strings.LastIndex(name, "."):]
		name = name[:len(name)-len(ext)]
	}
	name = strings.TrimRight(name, ".")
	if name == "" {
		name = "extension"
	}

	limit := MaxFilenameLength - utf8.RuneCountInString(ext)
	if utf8.RuneCountInString(name) > limit {
		name = string([]rune(name)[:limit])
	}
	return name + ext
}
