package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/audiolibrelab/headat/internal/metrics"
)

// Artifact is one downloadable file found on a listing page.
type Artifact struct {
	Name string
	URL  string
}

// Progress is called before each artifact download. index is zero-based.
type Progress func(index, total int, a Artifact)

// Fetcher enumerates a remote listing page and downloads the record
// artifacts it links to, one at a time. It enforces no timeout of its own;
// bound it through the context or the HTTP client.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	extensions map[string]bool
	progress   Progress
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithExtensions replaces the accepted artifact extensions (without dot).
func WithExtensions(exts ...string) FetcherOption {
	return func(f *Fetcher) {
		f.extensions = make(map[string]bool, len(exts))
		for _, e := range exts {
			f.extensions[strings.ToLower(strings.TrimPrefix(e, "."))] = true
		}
	}
}

func WithProgress(p Progress) FetcherOption {
	return func(f *Fetcher) { f.progress = p }
}

func WithMetrics(c *metrics.Collector) FetcherOption {
	return func(f *Fetcher) { f.metrics = c }
}

func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:     http.DefaultClient,
		userAgent:  "headat",
		extensions: map[string]bool{"hea": true, "dat": true},
		logger:     slog.Default().With("component", "source.fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// List fetches the listing page at parent and returns the artifacts whose
// extension is accepted, de-duplicated by file name in page order. Links
// that resolve to another host are ignored.
func (f *Fetcher) List(ctx context.Context, parent *url.URL) ([]Artifact, error) {
	link := parent.String()
	body, err := f.get(ctx, link)
	if err != nil {
		return nil, &FetchError{Link: link, Err: err}
	}
	defer body.Close()

	doc, err := html.Parse(body)
	if err != nil {
		return nil, &FetchError{Link: link, Err: fmt.Errorf("failed to parse listing: %w", err)}
	}

	var artifacts []Artifact
	seen := make(map[string]bool)
	for _, href := range anchorHrefs(doc) {
		ref, err := url.Parse(href)
		if err != nil {
			f.logger.Debug("Skipping malformed href", "href", href)
			continue
		}
		abs := parent.ResolveReference(ref)
		if !strings.EqualFold(abs.Host, parent.Host) || !strings.EqualFold(abs.Scheme, parent.Scheme) {
			f.logger.Debug("Skipping off-host link", "href", href)
			continue
		}
		name := path.Base(abs.Path)
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
		if !f.extensions[ext] || seen[name] {
			continue
		}
		seen[name] = true
		artifacts = append(artifacts, Artifact{Name: name, URL: abs.String()})
	}

	return artifacts, nil
}

// Fetch lists parent and downloads every accepted artifact into destDir,
// which is created if needed. The first failure aborts the fetch; files
// already downloaded stay on disk. It returns the local paths written.
func (f *Fetcher) Fetch(ctx context.Context, parent *url.URL, destDir string) ([]string, error) {
	artifacts, err := f.List(ctx, parent)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create samples directory %s: %w", destDir, err)
	}

	if len(artifacts) == 0 {
		f.logger.Warn("Listing contains no record artifacts", "url", parent.String())
		return nil, nil
	}

	paths := make([]string, 0, len(artifacts))
	for i, a := range artifacts {
		if f.progress != nil {
			f.progress(i, len(artifacts), a)
		}
		dest := filepath.Join(destDir, a.Name)
		if err := f.download(ctx, a.URL, dest); err != nil {
			f.metrics.ObserveArtifact(metrics.FetchFailed)
			return paths, &FetchError{Link: a.URL, Err: err}
		}
		f.metrics.ObserveArtifact(metrics.FetchOK)
		paths = append(paths, dest)
	}

	f.logger.Info("Download completed", "url", parent.String(), "files", len(paths))
	return paths, nil
}

func (f *Fetcher) get(ctx context.Context, link string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return resp.Body, nil
}

// download writes link to dest through a .part file so that a failed
// transfer never leaves a truncated artifact under its final name.
func (f *Fetcher) download(ctx context.Context, link, dest string) error {
	body, err := f.get(ctx, link)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to download: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	return os.Rename(tmp, dest)
}

func anchorHrefs(n *html.Node) []string {
	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := getAttr(n, "href"); href != "" {
				hrefs = append(hrefs, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return hrefs
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
