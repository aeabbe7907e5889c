// Package fetcher wraps outbound feed fetches with URL safety checks
// and a bounded timeout.
package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/clonedigital/postpilot/internal/apperr"
)

// Hostnames that resolve to cloud metadata services.
var metadataHosts = map[string]bool{
	"169.254.169.254":          true,
	"metadata.google.internal": true,
}

// SafeFetcher performs GET requests after rejecting URLs that point at
// internal or otherwise unsafe destinations.
type SafeFetcher struct {
	client *resty.Client
}

// New creates a fetcher with the given request timeout.
func New(timeout time.Duration) *SafeFetcher {
	return &SafeFetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "postpilot/1.0"),
	}
}

// ValidateURL rejects URLs whose scheme or host must never be fetched.
// This runs before any I/O: a blocked URL is a hard security boundary,
// not a transport failure.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return apperr.BlockedURL(fmt.Sprintf("invalid URL: %v", err))
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return apperr.BlockedURL(fmt.Sprintf("scheme %q is not allowed", parsed.Scheme))
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return apperr.BlockedURL("URL has no host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return apperr.BlockedURL("localhost is not allowed")
	}
	if metadataHosts[host] {
		return apperr.BlockedURL("metadata endpoints are not allowed")
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
			ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return apperr.BlockedURL(fmt.Sprintf("IP %s is in a blocked range", host))
		}
	}

	return nil
}

// Fetch validates the URL and performs a GET. Network failures and
// non-2xx statuses are reported as upstream errors carrying the
// underlying detail; callers convert them into source-status updates.
func (f *SafeFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	return f.get(ctx, rawURL)
}

func (f *SafeFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream("fetch failed", err.Error()), err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, apperr.Upstream("fetch failed", fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), resp.Status()))
	}

	return resp.Body(), nil
}
