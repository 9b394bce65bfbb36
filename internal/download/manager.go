// Package download is the download capability: it checks resolved URLs
// against the allow-list, fetches packages into the download directory and
// keeps a history of every attempt.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"vsixgrab/internal/database"
	"vsixgrab/internal/marketplace"
	"vsixgrab/internal/models"
	"vsixgrab/internal/utils"
)

// Recorder persists download history.
type Recorder interface {
	InsertDownload(ctx context.Context, dl *database.DownloadDB) error
	UpdateDownload(ctx context.Context, dl *database.DownloadDB) error
}

type Manager struct {
	client    *http.Client
	dir       string
	userAgent string
	recorder  Recorder
	progress  io.Writer
	now       func() time.Time
	newID     func() string
	fileUtils *utils.FileUtils
	logger    *utils.Logger
}

type Option func(*Manager)

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

func WithUserAgent(ua string) Option {
	return func(m *Manager) { m.userAgent = ua }
}

// WithRecorder enables download history.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithProgress sets where the progress bar is drawn; nil disables it.
func WithProgress(w io.Writer) Option {
	return func(m *Manager) { m.progress = w }
}

func NewManager(dir string, opts ...Option) *Manager {
	m := &Manager{
		client:    &http.Client{Timeout: 5 * time.Minute},
		dir:       dir,
		progress:  os.Stderr,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		fileUtils: utils.NewFileUtils(),
		logger:    utils.NewNamedLogger("download"),
	}
	for _, opt := range opts {
		opt(m)
	}
	client := *m.client
	client.CheckRedirect = checkRedirect
	m.client = &client
	return m
}

// maxRedirects matches the net/http default.
const maxRedirects = 10

// checkRedirect refuses to follow a redirect off the allow-list before the
// redirected request is sent.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return ValidateURL(req.URL.String())
}

func (m *Manager) Dir() string {
	return m.dir
}

// Download fetches rawURL into the download directory under a sanitized
// filename and returns the id of the history record. Security failures are
// returned before any record is written or any request is made.
func (m *Manager) Download(ctx context.Context, rawURL, filename string) (string, error) {
	if err := ValidateURL(rawURL); err != nil {
		m.logger.LogWarning("rejected download of %s: %v", rawURL, err)
		return "", err
	}

	kind := models.KindVSIX
	desc, parsedKind, err := marketplace.ParseDownloadURL(rawURL)
	if err == nil {
		kind = parsedKind
	}
	name := SanitizeFilename(filename, kind)
	m.logger.LogDownloadRequest(desc.Identifier, name)

	now := m.now()
	rec := &models.DownloadRecord{
		ID:         m.newID(),
		Identifier: desc.Identifier,
		Version:    desc.Version,
		Kind:       kind,
		URL:        rawURL,
		Filename:   name,
		Status:     models.DownloadStarted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if m.recorder != nil {
		if err := m.recorder.InsertDownload(ctx, database.ToDBDownload(rec)); err != nil {
			m.logger.LogDatabaseOperation("insert download", err)
		}
	}

	path, size, fetchErr := m.fetch(ctx, rawURL, name)

	rec.UpdatedAt = m.now()
	if fetchErr != nil {
		rec.Status = models.DownloadFailed
		rec.Error = fetchErr.Error()
	} else {
		rec.Status = models.DownloadCompleted
		rec.FilePath = path
		rec.Size = size
	}
	if m.recorder != nil {
		if err := m.recorder.UpdateDownload(ctx, database.ToDBDownload(rec)); err != nil {
			m.logger.LogDatabaseOperation("update download", err)
		}
	}

	if fetchErr != nil {
		return rec.ID, fmt.Errorf("%w: %w", models.ErrCapabilityFailure, fetchErr)
	}
	m.logger.LogFileOperation("download", path, nil)
	return rec.ID, nil
}

func (m *Manager) fetch(ctx context.Context, rawURL, name string) (string, int64, error) {
	if err := m.fileUtils.EnsureDirectory(m.dir); err != nil {
		return "", 0, fmt.Errorf("failed to create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	if m.userAgent != "" {
		req.Header.Set(utils.UserAgentHeader, m.userAgent)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("invalid status code: %d", resp.StatusCode)
	}
	// redirects must stay on allowed hosts too
	if err := ValidateURL(resp.Request.URL.String()); err != nil {
		return "", 0, err
	}

	path := m.fileUtils.UniquePath(m.dir, name)
	tmp := path + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}

	var dst io.Writer = file
	if m.progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(m.progress),
			progressbar.OptionSetDescription(filepath.Base(path)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(m.progress) }),
		)
		defer bar.Finish()
		dst = io.MultiWriter(file, bar)
	}

	written, copyErr := io.Copy(dst, resp.Body)
	closeErr := file.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to finalize file: %w", err)
	}
	return path, written, nil
}
