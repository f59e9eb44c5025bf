package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/japaniel/thirukkural/pkg/kural"
)

const (
	DefaultKuralURL  = "https://raw.githubusercontent.com/tk120404/thirukkural/master/thirukkural.json"
	DefaultDetailURL = "https://raw.githubusercontent.com/tk120404/thirukkural/master/detail.json"

	// maxBodySize caps each upstream download; the couplet file is about 4 MB.
	maxBodySize = 32 * 1024 * 1024
)

// Sources names the two upstream files.
type Sources struct {
	KuralURL  string
	DetailURL string
}

// DefaultSources points at the tk120404/thirukkural repository.
func DefaultSources() Sources {
	return Sources{KuralURL: DefaultKuralURL, DetailURL: DefaultDetailURL}
}

// Fetcher downloads and merges the upstream dataset.
type Fetcher struct {
	Client *http.Client
	Logger *zap.Logger
}

// NewFetcher returns a Fetcher with a bounded HTTP client.
func NewFetcher(logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		Client: &http.Client{Timeout: 60 * time.Second},
		Logger: logger,
	}
}

// Fetch downloads both files concurrently and merges them.
func (f *Fetcher) Fetch(ctx context.Context, src Sources) (kural.Document, error) {
	var (
		raw    []RawKural
		detail Detail
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := f.get(ctx, src.KuralURL)
		if err != nil {
			return err
		}
		raw, err = DecodeKurals(bytes.NewReader(body))
		return err
	})
	g.Go(func() error {
		body, err := f.get(ctx, src.DetailURL)
		if err != nil {
			return err
		}
		detail, err = DecodeDetail(bytes.NewReader(body))
		return err
	})
	if err := g.Wait(); err != nil {
		return kural.Document{}, err
	}

	doc := Merge(raw, detail)
	f.Logger.Info("dataset merged",
		zap.Int("kurals", len(doc.Kurals)),
		zap.Int("chapters", len(doc.Chapters)))
	return doc, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "thirukkural-cli")
	req.Header.Set("Accept", "application/json")

	f.Logger.Debug("fetching", zap.String("url", url))
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}
	if resp.ContentLength > maxBodySize {
		return nil, fmt.Errorf("fetch %s: content length %d exceeds %d bytes", url, resp.ContentLength, maxBodySize)
	}
	// Read one byte past the limit so an oversized body is detected, not truncated.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", url, maxBodySize)
	}
	return body, nil
}

// Write stores the document as indented JSON, replacing path atomically.
func Write(path string, doc kural.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".thirukkural-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Ensure leaves an existing dataset alone; otherwise it fetches, merges and writes one.
func (f *Fetcher) Ensure(ctx context.Context, path string, src Sources) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	f.Logger.Info("dataset not found, downloading", zap.String("path", path))
	doc, err := f.Fetch(ctx, src)
	if err != nil {
		return fmt.Errorf("download dataset: %w", err)
	}
	if _, err := kural.New(doc.Kurals, doc.Chapters); err != nil {
		return fmt.Errorf("validate dataset: %w", err)
	}
	return Write(path, doc)
}
