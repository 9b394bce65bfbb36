package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidVersion(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1.2.3", true},
		{"2024.0.0", true},
		{"1.2.3-beta.1", true},
		{"10.20.30.40", true},
		{"1.2", false},
		{"v1.2.3", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidVersion(tt.in), tt.in)
	}
}

func TestDescriptorIsComplete(t *testing.T) {
	d := Descriptor{Publisher: "ms-python", ExtensionName: "python"}
	assert.False(t, d.IsComplete())

	d.Version = "latest"
	assert.False(t, d.IsComplete())

	d.Version = "2024.0.0"
	assert.True(t, d.IsComplete())
}

func TestSetIdentifier(t *testing.T) {
	t.Run("splits on first dot", func(t *testing.T) {
		var d Descriptor
		assert.True(t, d.SetIdentifier("redhat.vscode.yaml"))
		assert.Equal(t, "redhat", d.Publisher)
		assert.Equal(t, "vscode.yaml", d.ExtensionName)
		assert.Equal(t, "redhat.vscode.yaml", d.Identifier)
	})

	t.Run("rejects malformed", func(t *testing.T) {
		var d Descriptor
		assert.False(t, d.SetIdentifier("nodot"))
		assert.False(t, d.SetIdentifier("bad publisher.name"))
		assert.False(t, d.SetIdentifier("publisher."))
		assert.Equal(t, Descriptor{}, d)
	})

	t.Run("does not contradict known fields", func(t *testing.T) {
		d := Descriptor{Publisher: "alice"}
		assert.False(t, d.SetIdentifier("bob.tool"))
		assert.True(t, d.SetIdentifier("alice.tool"))
		assert.False(t, d.SetIdentifier("alice.other"))
		assert.Equal(t, "tool", d.ExtensionName)
	})
}

func TestSettersNeverOverwrite(t *testing.T) {
	var d Descriptor
	assert.True(t, d.SetVersion("1.0.0"))
	assert.False(t, d.SetVersion("2.0.0"))
	assert.False(t, d.SetVersion("garbage"))
	assert.Equal(t, "1.0.0", d.Version)

	assert.True(t, d.SetPublisher("acme"))
	assert.False(t, d.SetPublisher("other"))
	assert.True(t, d.SetExtensionName("widget"))
	d.DeriveIdentifier()
	assert.Equal(t, "acme.widget", d.Identifier)
}

func TestActionRequest(t *testing.T) {
	kind, purpose, ok := ActionCopyURL.Request()
	assert.True(t, ok)
	assert.Equal(t, KindVSIX, kind)
	assert.Equal(t, PurposeCopy, purpose)

	kind, purpose, ok = ActionVSIXPackage.Request()
	assert.True(t, ok)
	assert.Equal(t, KindVSIXPackage, kind)
	assert.Equal(t, PurposeDownload, purpose)

	_, _, ok = Action("zip").Request()
	assert.False(t, ok)
}
