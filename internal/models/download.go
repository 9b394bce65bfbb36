package models

import (
	"time"
)

type DownloadStatus string

const (
	DownloadStarted   DownloadStatus = "started"
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

// DownloadRecord is one entry of the local download history.
type DownloadRecord struct {
	ID         string         `json:"id"`
	Identifier string         `json:"identifier"`
	Version    string         `json:"version"`
	Kind       PackageKind    `json:"kind"`
	URL        string         `json:"url"`
	Filename   string         `json:"filename"`
	FilePath   string         `json:"filePath"`
	Size       int64          `json:"size"`
	Status     DownloadStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}
