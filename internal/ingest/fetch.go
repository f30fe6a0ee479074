package ingest

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ragengine/internal/ssrf"
)

// fetchResult carries a fetched URL's raw bytes plus the metadata the
// extraction and document stages need.
type fetchResult struct {
	FinalURL    string
	ContentType string
	StatusCode  int
	Body        []byte
}

// fetcher retrieves URL items with an SSRF guard validating the target
// before any socket opens, then redialing the already-validated IP so a
// second DNS answer (rebinding) can't slip a private address past the
// check.
type fetcher struct {
	guard    *ssrf.Guard
	maxBytes int64
	timeout  time.Duration
}

func newFetcher(guard *ssrf.Guard) *fetcher {
	return &fetcher{guard: guard, maxBytes: 8 * 1000 * 1000, timeout: 20 * time.Second}
}

func (f *fetcher) fetch(ctx context.Context, rawURL string) (fetchResult, error) {
	target, err := f.guard.Validate(ctx, rawURL)
	if err != nil {
		return fetchResult{}, err
	}

	dialer := &net.Dialer{Timeout: 7 * time.Second}
	pinnedAddr := net.JoinHostPort(target.ResolvedIP.String(), target.Port)
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, pinnedAddr)
		},
		TLSHandshakeTimeout: 7 * time.Second,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   f.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return fmt.Errorf("redirects are not followed for ingest fetches")
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fetchResult{}, err
	}
	req.Header.Set("User-Agent", "ragengine-ingest/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fetchResult{}, err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, f.maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return fetchResult{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return fetchResult{}, fmt.Errorf("response exceeds max bytes (%d)", f.maxBytes)
	}

	return fetchResult{
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		Body:        body,
	}, nil
}

// sourceFromURL derives the default item source: origin + pathname.
func sourceFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host + u.Path
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
