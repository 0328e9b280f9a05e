// Package kvclient implements the KV HTTP client consumed by the BFE and
// SFE orchestrators: a standard HTTP(S) GET against a buyer or seller
// key-value service, with the requested keys URL-encoded as a list
// parameter, returning the opaque JSON blob verbatim (spec.md §6).
package kvclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cloudx-io/auctiontee/metrics"
)

// Client is one KV service instance — buyers and sellers each get their own,
// with separate base URLs, per spec.md §6's "separate instances".
type Client struct {
	baseURL  string
	http     *http.Client
	recorder *metrics.Recorder
	callee   string
}

// New builds a Client against baseURL, which must already include scheme and
// host (e.g. "https://kv.buyer-a.example/getvalues"). callee tags this
// client's calls in the §4.10 RPC histograms (e.g. "buyer_kv", "seller_kv");
// recorder may be nil to disable them.
func New(baseURL string, recorder *metrics.Recorder, callee string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}, recorder: recorder, callee: callee}
}

// FetchKeys GETs baseURL with a deduplicated, sorted "keys" list parameter
// and returns the raw JSON response body. Callers apply their own timeout
// via ctx; the signals fetch degrades to an error the caller treats as
// empty signals rather than failing the whole RPC (spec.md §4.7, §4.8).
func (c *Client) FetchKeys(ctx context.Context, timeout time.Duration, keys []string) ([]byte, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	u, err := c.buildURL(keys)
	if err != nil {
		return nil, fmt.Errorf("kvclient: build url: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("kvclient: build request: %w", err)
	}

	sw := c.recorder.Start(c.callee)
	resp, err := c.http.Do(req)
	if err != nil {
		sw.Stop(false, 0)
		return nil, fmt.Errorf("kvclient: fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		sw.Stop(false, 0)
		return nil, fmt.Errorf("kvclient: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		sw.Stop(false, len(body))
		return nil, fmt.Errorf("kvclient: %s returned status %d", u, resp.StatusCode)
	}

	sw.Stop(true, len(body))
	return body, nil
}

func (c *Client) buildURL(keys []string) (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	deduped := dedupeSorted(keys)
	q := parsed.Query()
	q.Set("keys", strings.Join(deduped, ","))
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func dedupeSorted(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
