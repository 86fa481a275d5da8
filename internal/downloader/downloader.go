// Package downloader implements parallel-limited HTTP downloads with progress reporting and
// optional HuggingFace authentication.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxParallel is the default number of simultaneous downloads.
const DefaultMaxParallel = 20

// ProgressCallback is called as the download progresses. totalBytes is -1 if the
// server didn't report the content length.
type ProgressCallback func(downloadedBytes, totalBytes int64)

// Manager handles downloads, limiting how many run at the same time.
type Manager struct {
	client    *http.Client
	authToken string
	sem       *semaphore.Weighted
}

// New creates a Manager with DefaultMaxParallel and http.DefaultClient.
func New() *Manager {
	return &Manager{
		client: http.DefaultClient,
		sem:    semaphore.NewWeighted(DefaultMaxParallel),
	}
}

// MaxParallel sets the number of simultaneous downloads. Values <= 0 are ignored.
// It returns itself, so calls can be cascaded.
func (m *Manager) MaxParallel(n int) *Manager {
	if n > 0 {
		m.sem = semaphore.NewWeighted(int64(n))
	}
	return m
}

// WithAuthToken sets the bearer token sent with every request.
// It returns itself, so calls can be cascaded.
func (m *Manager) WithAuthToken(authToken string) *Manager {
	m.authToken = authToken
	return m
}

// WithHTTPClient replaces the HTTP client used.
// It returns itself, so calls can be cascaded.
func (m *Manager) WithHTTPClient(client *http.Client) *Manager {
	m.client = client
	return m
}

func (m *Manager) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "creating request for %q", url)
	}
	if m.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+m.authToken)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "requesting %q", url)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// StatusError is returned when the server answers with something other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %q: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Fetch downloads the contents of url into memory. Used for small metadata requests.
func (m *Manager) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer m.sem.Release(1)

	resp, err := m.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading response from %q", url)
	}
	return content, nil
}

// Download url into filePath, creating or truncating it. If progressCallback is not nil, it's
// called after each chunk is written.
//
// On error the partially written file is left behind: the caller owns filePath.
func (m *Manager) Download(ctx context.Context, url, filePath string, progressCallback ProgressCallback) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)

	resp, err := m.get(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating %q", filePath)
	}
	var w io.Writer = f
	if progressCallback != nil {
		w = &progressWriter{w: f, total: resp.ContentLength, callback: progressCallback}
	}
	if _, err = io.Copy(w, resp.Body); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "downloading %q", url)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "closing %q", filePath)
	}
	return nil
}

type progressWriter struct {
	w        io.Writer
	written  int64
	total    int64
	callback ProgressCallback
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	p.callback(p.written, p.total)
	return n, err
}
