// Package satellite downloads BMKG satellite imagery and tracks whether it
// changed since the last download.
package satellite

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/article"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
)

const (
	// DefaultKind names the Himawari rain-potential composite.
	DefaultKind = "satelit"

	defaultTimeout = 30 * time.Second
	maxImageSize   = 20 << 20
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	referer        = "https://www.bmkg.go.id/"
)

// Image is the result of one download.
type Image struct {
	Kind    string
	Path    string
	Hash    string
	Data    []byte
	Changed bool
}

// Fetcher downloads one image kind into a directory.
type Fetcher struct {
	httpClient *http.Client
	url        string
	dir        string
	kind       string
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = hc }
}

// WithKind sets the image kind used in file names.
func WithKind(kind string) Option {
	return func(f *Fetcher) { f.kind = kind }
}

// WithLogger sets the parent logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logging.Component(l, "satellite") }
}

// WithClock overrides time.Now for file stamps.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher creates a fetcher for url storing files under dir.
func NewFetcher(url, dir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: defaultTimeout},
		url:        url,
		dir:        dir,
		kind:       DefaultKind,
		logger:     logging.Component(nil, "satellite"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// LatestPath is where the most recent image is kept.
func (f *Fetcher) LatestPath() string {
	return filepath.Join(f.dir, f.kind+"_latest.png")
}

func (f *Fetcher) hashPath() string {
	return filepath.Join(f.dir, f.kind+".md5")
}

// Fetch downloads the image and compares its MD5 with the stored hash. A
// changed image is saved as both a timestamped copy and the latest copy.
// An unchanged image whose latest copy went missing counts as changed.
func (f *Fetcher) Fetch(ctx context.Context) (*Image, error) {
	data, err := f.download(ctx)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(data)
	img := &Image{Kind: f.kind, Path: f.LatestPath(), Hash: hex.EncodeToString(sum[:]), Data: data}

	old, err := f.loadHash()
	if err != nil {
		return nil, err
	}
	_, statErr := os.Stat(img.Path)
	img.Changed = old != img.Hash || errors.Is(statErr, os.ErrNotExist)
	if !img.Changed {
		f.logger.Info("image unchanged", "kind", f.kind, "hash", img.Hash)
		return img, nil
	}

	if err := f.save(img); err != nil {
		return nil, err
	}
	f.logger.Info("image updated", "kind", f.kind, "hash", img.Hash, "bytes", len(data))
	return img, nil
}

func (f *Fetcher) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", f.kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", f.kind, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.kind, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download %s: empty image", f.kind)
	}
	return data, nil
}

func (f *Fetcher) loadHash() (string, error) {
	b, err := os.ReadFile(f.hashPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read hash: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (f *Fetcher) save(img *Image) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	stamped := filepath.Join(f.dir, fmt.Sprintf("%s_%s.png", f.kind, f.now().Format("20060102_150405")))
	for _, p := range []string{stamped, img.Path} {
		if err := os.WriteFile(p, img.Data, 0o644); err != nil {
			return fmt.Errorf("save image: %w", err)
		}
	}
	if err := os.WriteFile(f.hashPath(), []byte(img.Hash+"\n"), 0o644); err != nil {
		return fmt.Errorf("save hash: %w", err)
	}
	return nil
}

// Cleanup removes timestamped copies older than maxAge and returns how many
// were deleted. The latest copy is kept.
func (f *Fetcher) Cleanup(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read image dir: %w", err)
	}

	cutoff := f.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, f.kind+"_") || !strings.HasSuffix(name, ".png") || strings.Contains(name, "latest") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, name)); err != nil {
			f.logger.Warn("failed to remove old image", "file", name, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Caption is the text sent with a new satellite image. t is shown in WIB.
func Caption(t time.Time) string {
	if loc, err := time.LoadLocation("Asia/Jakarta"); err == nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("🛰️ Citra Satelit Himawari - Potensi Hujan\n\n"+
		"📅 Update terbaru dari BMKG!\n"+
		"🕐 %s, %s WIB\n\n"+
		"Potensi curah hujan berdasarkan citra inframerah Himawari-9\n"+
		"📊 Sumber: BMKG Indonesia\n🌐 https://www.bmkg.go.id/",
		article.FormatDate(t.Format("2006-01-02 15:04:05")), t.Format("15:04"))
}
