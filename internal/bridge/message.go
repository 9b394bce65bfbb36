package bridge

import (
	"errors"

	"vsixgrab/internal/models"
)

const (
	TargetContent    = "content"
	TargetBackground = "background"
)

const (
	ActionExtract     = "extract"
	ActionDownload    = "download"
	ActionCopy        = "copy"
	ActionGetSettings = "getSettings"
	ActionSetSettings = "setSettings"
	ActionPing        = "ping"
)

// ErrReceivingEnd means no handler is registered for the target.
var ErrReceivingEnd = errors.New("receiving end does not exist")

// Message is one request sent over the bridge. Only the fields relevant to
// Action are read.
type Message struct {
	Action        string             `json:"action"`
	Location      string             `json:"location,omitempty"`
	Descriptor    *models.Descriptor `json:"descriptor,omitempty"`
	PackageAction models.Action      `json:"packageAction,omitempty"`
	URL           string             `json:"url,omitempty"`
	Filename      string             `json:"filename,omitempty"`
	Settings      map[string]any     `json:"settings,omitempty"`
}

type Response struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
	Outcome    string             `json:"outcome,omitempty"`
	DownloadID string             `json:"downloadId,omitempty"`
	Descriptor *models.Descriptor `json:"descriptor,omitempty"`
	Complete   bool               `json:"complete,omitempty"`
	Text       string             `json:"text,omitempty"`
	Settings   map[string]any     `json:"settings,omitempty"`
}

// Err returns the application error carried by an unsuccessful response.
func (r *Response) Err() error {
	if r == nil || r.Success {
		return nil
	}
	if r.Error == "" {
		return errors.New("request failed")
	}
	return errors.New(r.Error)
}
