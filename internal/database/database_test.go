package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vsixgrab/internal/models"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSettingsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, ok, err := db.GetSetting(ctx, "autoInject")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SetSetting(ctx, "autoInject", "false"))
	require.NoError(t, db.SetSetting(ctx, "autoInject", "true"))

	value, ok, err := db.GetSetting(ctx, "autoInject")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", value)

	all, err := db.GetAllSettings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "autoInject", all[0].Key)
}

func newRecord(id, identifier string, created time.Time) *models.DownloadRecord {
	return &models.DownloadRecord{
		ID:         id,
		Identifier: identifier,
		Version:    "1.0.0",
		Kind:       models.KindVSIX,
		URL:        "https://gallery.vsassets.io/x",
		Filename:   identifier + "-1.0.0.vsix",
		Status:     models.DownloadStarted,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestDownloadLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	rec := newRecord("id-1", "ms-python.python", now)
	require.NoError(t, db.InsertDownload(ctx, ToDBDownload(rec)))

	rec.Status = models.DownloadCompleted
	rec.FilePath = "/tmp/ms-python.python-1.0.0.vsix"
	rec.Size = 42
	rec.UpdatedAt = now.Add(time.Second)
	require.NoError(t, db.UpdateDownload(ctx, ToDBDownload(rec)))

	stored, err := db.GetDownloadByID(ctx, "id-1")
	require.NoError(t, err)
	require.NotNil(t, stored)

	got := ToDownloadRecord(stored)
	assert.Equal(t, models.DownloadCompleted, got.Status)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, rec.FilePath, got.FilePath)
	assert.Equal(t, models.KindVSIX, got.Kind)
	assert.Empty(t, got.Error)

	missing, err := db.GetDownloadByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, db.UpdateDownload(ctx, &DownloadDB{ID: "nope"}))
}

func TestListAndDeleteDownloads(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, db.InsertDownload(ctx, ToDBDownload(newRecord("a", "ms-python.python", base))))
	require.NoError(t, db.InsertDownload(ctx, ToDBDownload(newRecord("b", "golang.go", base.Add(time.Minute)))))
	require.NoError(t, db.InsertDownload(ctx, ToDBDownload(newRecord("c", "ms-python.python", base.Add(2*time.Minute)))))

	all, total, err := db.ListDownloads(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	python, total, err := db.ListDownloads(ctx, "ms-python.python", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, python, 1)
	assert.Equal(t, "c", python[0].ID)

	second, _, err := db.ListDownloads(ctx, "ms-python.python", 2, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "a", second[0].ID)

	require.NoError(t, db.DeleteDownload(ctx, "b"))
	assert.Error(t, db.DeleteDownload(ctx, "b"))

	n, err := db.DeleteAllDownloads(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	records := ToDownloadRecords(nil)
	assert.Empty(t, records)
}
