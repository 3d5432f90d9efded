// Package extract recovers a product's price and image from a retailer page.
//
// Extraction never fails from the caller's point of view: network errors,
// unexpected status codes and malformed markup all degrade to a Metadata with
// the affected fields unresolved.
package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds the whole outbound request, body included.
const DefaultTimeout = 10 * time.Second

// DefaultUserAgent identifies as a desktop browser. Many retailers reject
// requests from anything else.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// maxBodyBytes caps how much of a page is parsed.
const maxBodyBytes = 5 << 20

// Metadata is the best-effort result of an extraction. A zero field is unresolved.
type Metadata struct {
	Price    decimal.NullDecimal
	ImageURL string
}

// Empty reports whether neither field was resolved.
func (m Metadata) Empty() bool {
	return !m.Price.Valid && m.ImageURL == ""
}

func (m Metadata) complete() bool {
	return m.Price.Valid && m.ImageURL != ""
}

// fill copies fields from next that m has not resolved yet.
func (m Metadata) fill(next Metadata) Metadata {
	if !m.Price.Valid {
		m.Price = next.Price
	}
	if m.ImageURL == "" {
		m.ImageURL = next.ImageURL
	}
	return m
}

// Options configures an Extractor.
type Options struct {
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	// UserAgent defaults to DefaultUserAgent.
	UserAgent string
	// RequestsPerSecond limits outbound fetches. Zero disables the limit.
	RequestsPerSecond float64
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Extractor fetches pages and runs the extraction cascade over them.
type Extractor struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}

	e := &Extractor{
		client:    &http.Client{Timeout: timeout, Transport: opts.Transport},
		userAgent: ua,
	}
	if opts.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return e
}

// Extract fetches rawURL and returns whatever price and image it can find.
func (e *Extractor) Extract(ctx context.Context, rawURL string) Metadata {
	doc, err := e.fetch(ctx, rawURL)
	if err != nil {
		slog.Warn("product page fetch failed", "url", rawURL, "error", err)
		return Metadata{}
	}

	m := FromDocument(doc)
	if m.ImageURL != "" && doc.Url != nil {
		m.ImageURL = absolute(doc.Url, m.ImageURL)
	}
	return m
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	doc.Url = resp.Request.URL
	return doc, nil
}

// absolute resolves a possibly relative image reference against the page URL.
func absolute(base *url.URL, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
