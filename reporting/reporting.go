// Package reporting implements C9: literal placeholder substitution over a
// debug-report URL template and a detached, best-effort HTTP GET sender
// (spec.md §4.9). Neither success nor failure is observable on the auction
// critical path, so every call here is fire-and-forget by construction.
package reporting

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/cloudx-io/auctiontee/core"
)

// DebugReportingPlaceholder carries the post-auction signals a debug URL
// template may reference (spec.md §4.9).
type DebugReportingPlaceholder struct {
	WinningBid                float64
	MadeWinningBid            bool
	HighestScoringOtherBid    float64
	MadeHighestScoringOtherBid bool
	RejectionReason           core.RejectionReason
}

// Substitute performs literal ${name} replacement; no escaping, no nesting,
// matching spec.md §4.9's "substitution is literal string replace".
func Substitute(template string, p DebugReportingPlaceholder) string {
	replacements := []string{
		"${winningBid}", formatFloat(p.WinningBid),
		"${madeWinningBid}", strconv.FormatBool(p.MadeWinningBid),
		"${highestScoringOtherBid}", formatFloat(p.HighestScoringOtherBid),
		"${madeHighestScoringOtherBid}", strconv.FormatBool(p.MadeHighestScoringOtherBid),
		"${rejectReason}", string(p.RejectionReason),
	}
	return strings.NewReplacer(replacements...).Replace(template)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Sender fires detached, best-effort HTTP GETs for debug report URLs. Its
// http.Client carries a short timeout and its own lifetime is independent
// of any originating request's context.
type Sender struct {
	client  *http.Client
	timeout time.Duration
}

// NewSender builds a Sender with the given detached-request timeout.
func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Sender{client: &http.Client{Timeout: timeout}, timeout: timeout}
}

// FireAndForget sends url via HTTP GET on its own detached goroutine and
// context; it never blocks the caller and never returns an error, only logs
// one on failure, per spec.md §4.9/§5's detached suspension point.
func (s *Sender) FireAndForget(url string) {
	if url == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			glog.Warningf("reporting: build request for %s: %v", url, err)
			return
		}

		resp, err := s.client.Do(req)
		if err != nil {
			glog.Warningf("reporting: GET %s failed: %v", url, err)
			return
		}
		_ = resp.Body.Close()
	}()
}
