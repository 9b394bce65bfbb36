package database

import (
	"vsixgrab/internal/models"
)

func ToDBDownload(rec *models.DownloadRecord) *DownloadDB {
	return &DownloadDB{
		ID:         rec.ID,
		Identifier: rec.Identifier,
		Version:    rec.Version,
		Kind:       string(rec.Kind),
		URL:        rec.URL,
		Filename:   rec.Filename,
		FilePath:   rec.FilePath,
		Size:       rec.Size,
		Status:     string(rec.Status),
		Error:      rec.Error,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func ToDownloadRecord(dl *DownloadDB) *models.DownloadRecord {
	return &models.DownloadRecord{
		ID:         dl.ID,
		Identifier: dl.Identifier,
		Version:    dl.Version,
		Kind:       models.PackageKind(dl.Kind),
		URL:        dl.URL,
		Filename:   dl.Filename,
		FilePath:   dl.FilePath,
		Size:       dl.Size,
		Status:     models.DownloadStatus(dl.Status),
		Error:      dl.Error,
		CreatedAt:  dl.CreatedAt,
		UpdatedAt:  dl.UpdatedAt,
	}
}

func ToDownloadRecords(downloads []DownloadDB) []models.DownloadRecord {
	result := make([]models.DownloadRecord, len(downloads))
	for i := range downloads {
		result[i] = *ToDownloadRecord(&downloads[i])
	}
	return result
}
