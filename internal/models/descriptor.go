package models

import (
	"regexp"
	"strings"
)

var (
	publisherPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	versionPattern   = regexp.MustCompile(`^\d+\.\d+\.\d+`)
)

// PackageKind selects one of the two download URL templates.
type PackageKind string

const (
	KindVSIX        PackageKind = "vsix"
	KindVSIXPackage PackageKind = "vsixpackage"
)

// Extension returns the file extension used for packages of this kind.
func (k PackageKind) Extension() string {
	if k == KindVSIXPackage {
		return ".vsixpackage"
	}
	return ".vsix"
}

func (k PackageKind) Valid() bool {
	return k == KindVSIX || k == KindVSIXPackage
}

// Purpose is what the dispatcher does with a resolved URL.
type Purpose string

const (
	PurposeDownload Purpose = "download"
	PurposeCopy     Purpose = "copy"
)

// Action is a user-facing request: one of the two package kinds, or copying both URLs.
type Action string

const (
	ActionVSIX        Action = "vsix"
	ActionVSIXPackage Action = "vsixpackage"
	ActionCopyURL     Action = "copy-url"
)

// Request maps an action onto a package kind and purpose.
func (a Action) Request() (PackageKind, Purpose, bool) {
	switch a {
	case ActionVSIX:
		return KindVSIX, PurposeDownload, true
	case ActionVSIXPackage:
		return KindVSIXPackage, PurposeDownload, true
	case ActionCopyURL:
		return KindVSIX, PurposeCopy, true
	default:
		return "", "", false
	}
}

// Descriptor holds the identifying fields of one extension as recovered from a listing page.
type Descriptor struct {
	Publisher     string `json:"publisher"`
	ExtensionName string `json:"extensionName"`
	Identifier    string `json:"identifier"`
	Version       string `json:"version"`
}

// PackageRequest is one resolved URL request produced by the dispatcher.
type PackageRequest struct {
	Descriptor Descriptor  `json:"descriptor"`
	Kind       PackageKind `json:"kind"`
	Purpose    Purpose     `json:"purpose"`
}

func ValidPublisher(publisher string) bool {
	return publisherPattern.MatchString(publisher)
}

// ValidVersion reports whether v starts with a major.minor.patch triple.
// Trailing qualifiers such as "-beta" are accepted.
func ValidVersion(v string) bool {
	return versionPattern.MatchString(v)
}

// IsComplete reports whether the descriptor carries everything needed to build a download URL.
func (d Descriptor) IsComplete() bool {
	return d.Publisher != "" && d.ExtensionName != "" && ValidVersion(d.Version)
}

// SplitIdentifier splits "publisher.name" on the first dot.
func SplitIdentifier(identifier string) (publisher, name string, ok bool) {
	publisher, name, found := strings.Cut(identifier, ".")
	if !found || name == "" || !ValidPublisher(publisher) {
		return "", "", false
	}
	return publisher, name, true
}

// SetIdentifier assigns the identifier and the publisher/name pair derived from it.
// It refuses when the identifier is already set, is malformed, or contradicts
// a publisher or name that is already known.
func (d *Descriptor) SetIdentifier(identifier string) bool {
	if d.Identifier != "" {
		return false
	}
	publisher, name, ok := SplitIdentifier(identifier)
	if !ok {
		return false
	}
	if (d.Publisher != "" && d.Publisher != publisher) || (d.ExtensionName != "" && d.ExtensionName != name) {
		return false
	}
	d.Identifier = identifier
	d.Publisher = publisher
	d.ExtensionName = name
	return true
}

// SetPublisher fills the publisher when it is still unset and well formed.
func (d *Descriptor) SetPublisher(publisher string) bool {
	if d.Publisher != "" || d.Identifier != "" || !ValidPublisher(publisher) {
		return false
	}
	d.Publisher = publisher
	return true
}

// SetExtensionName fills the extension name when it is still unset.
func (d *Descriptor) SetExtensionName(name string) bool {
	if d.ExtensionName != "" || d.Identifier != "" || name == "" {
		return false
	}
	d.ExtensionName = name
	return true
}

// SetVersion accepts v only when no version has been accepted yet and v is valid.
func (d *Descriptor) SetVersion(v string) bool {
	if d.Version != "" || !ValidVersion(v) {
		return false
	}
	d.Version = v
	return true
}

// DeriveIdentifier fills the identifier from publisher and name when both are known.
func (d *Descriptor) DeriveIdentifier() {
	if d.Identifier == "" && d.Publisher != "" && d.ExtensionName != "" {
		d.Identifier = d.Publisher + "." + d.ExtensionName
	}
}
