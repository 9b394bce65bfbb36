package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vsixgrab/internal/config"
	"vsixgrab/internal/utils"

	_ "modernc.org/sqlite"
)

type SettingDB struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DownloadDB struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Version    string    `json:"version"`
	Kind       string    `json:"kind"`
	URL        string    `json:"url"`
	Filename   string    `json:"filename"`
	FilePath   string    `json:"filePath"`
	Size       int64     `json:"size"`
	Status     string    `json:"status"`
	Error      string    `json:"error"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Database struct {
	db     *sql.DB
	logger *utils.Logger
}

// New opens the database named by the loaded configuration.
func New() (*Database, error) {
	cfg := config.GetConfig()
	return Open(cfg.DBPath, cfg.AutoMigrate)
}

func Open(path string, autoMigrate bool) (*Database, error) {
	logger := utils.NewNamedLogger("database")

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// a single connection keeps writers from tripping over SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if autoMigrate {
		if err := createTables(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("database migration error: %w", err)
		}
		logger.LogDatabaseOperation("migrate", nil)
	}

	return &Database{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS downloads (
		id TEXT PRIMARY KEY,
		identifier TEXT NOT NULL,
		version TEXT NOT NULL,
		kind TEXT NOT NULL,
		url TEXT NOT NULL,
		filename TEXT NOT NULL,
		file_path TEXT,
		size INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_identifier ON downloads(identifier);
	CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
	`

	_, err := db.Exec(createTableSQL)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// GetSetting returns the raw stored value and whether the key exists.
func (d *Database) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (d *Database) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	_, err := d.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}

func (d *Database) GetAllSettings(ctx context.Context) ([]SettingDB, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []SettingDB
	for rows.Next() {
		var s SettingDB
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (d *Database) InsertDownload(ctx context.Context, dl *DownloadDB) error {
	query := `
		INSERT INTO downloads (
			id, identifier, version, kind, url, filename, file_path, size, status, error,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, query,
		dl.ID, dl.Identifier, dl.Version, dl.Kind, dl.URL, dl.Filename, dl.FilePath,
		dl.Size, dl.Status, dl.Error, dl.CreatedAt, dl.UpdatedAt,
	)
	return err
}

// UpdateDownload stores the outcome fields of an existing record.
func (d *Database) UpdateDownload(ctx context.Context, dl *DownloadDB) error {
	query := `
		UPDATE downloads SET file_path = ?, size = ?, status = ?, error = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := d.db.ExecContext(ctx, query, dl.FilePath, dl.Size, dl.Status, dl.Error, dl.UpdatedAt, dl.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("download %s not found", dl.ID)
	}
	return nil
}

const downloadColumns = `id, identifier, version, kind, url, filename, file_path, size, status, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDownload(row scanner) (*DownloadDB, error) {
	var dl DownloadDB
	var filePath, errText sql.NullString
	err := row.Scan(
		&dl.ID, &dl.Identifier, &dl.Version, &dl.Kind, &dl.URL, &dl.Filename, &filePath,
		&dl.Size, &dl.Status, &errText, &dl.CreatedAt, &dl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	dl.FilePath = filePath.String
	dl.Error = errText.String
	return &dl, nil
}

func (d *Database) GetDownloadByID(ctx context.Context, id string) (*DownloadDB, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+downloadColumns+` FROM downloads WHERE id = ?`, id)
	dl, err := scanDownload(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return dl, nil
}

// ListDownloads returns one page of history, newest first, and the total count.
// An empty identifier lists every extension.
func (d *Database) ListDownloads(ctx context.Context, identifier string, page, limit int) ([]DownloadDB, int64, error) {
	if page < 1 {
		page = utils.DefaultPage
	}
	if limit < 1 {
		limit = utils.DefaultLimit
	}

	where := ""
	var args []any
	if identifier != "" {
		where = " WHERE identifier = ?"
		args = append(args, identifier)
	}

	var total int64
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	query := `SELECT ` + downloadColumns + ` FROM downloads` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := d.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var downloads []DownloadDB
	for rows.Next() {
		dl, err := scanDownload(rows)
		if err != nil {
			return nil, 0, err
		}
		downloads = append(downloads, *dl)
	}

	return downloads, total, rows.Err()
}

func (d *Database) DeleteDownload(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("download %s not found", id)
	}
	return nil
}

func (d *Database) DeleteAllDownloads(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM downloads`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
