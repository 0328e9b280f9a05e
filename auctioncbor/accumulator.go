// Package auctioncbor implements C2: canonical CBOR encode/decode of the
// browser-shaped ProtectedAuctionInput, BuyerInput, and AuctionResult, with
// a best-effort error accumulator so a non-fail-fast decode surfaces every
// defect in one round trip (spec.md §4.2, §7).
package auctioncbor

import "strings"

// Visibility distinguishes errors the client should see (inside the
// encrypted AuctionResult.error) from errors only the ad server's
// auction_config should surface as a plain gRPC status (spec.md §7).
type Visibility int

const (
	ClientVisible Visibility = iota
	AdServerVisible
)

// Issue is one decode/validation defect.
type Issue struct {
	Visibility Visibility
	Code       int32
	Field      string
	Message    string
}

// Accumulator collects Issues across a decode pass. In non-fail-fast mode,
// decoding keeps going after a mismatch so every defect reaches the client
// in a single round trip; FailFast short-circuits on the first Add.
type Accumulator struct {
	FailFast bool
	issues   []Issue
}

// NewAccumulator builds an accumulator; failFast mirrors the request's
// fail_fast flag (spec.md §4.2).
func NewAccumulator(failFast bool) *Accumulator {
	return &Accumulator{FailFast: failFast}
}

// Add records one issue. Returns true if the caller should stop decoding,
// which is on every call in FailFast mode.
func (a *Accumulator) Add(visibility Visibility, code int32, field, message string) bool {
	a.issues = append(a.issues, Issue{Visibility: visibility, Code: code, Field: field, Message: message})
	return a.FailFast
}

// TypeMismatch is the structured ClientVisibleError spec.md §4.2 calls for:
// "Expected X, got Y at field Z".
func (a *Accumulator) TypeMismatch(field, expected, got string) bool {
	return a.Add(ClientVisible, 400, field, "Expected "+expected+", got "+got+" at field "+field)
}

// HasIssues reports whether any issue was recorded.
func (a *Accumulator) HasIssues() bool {
	return len(a.issues) > 0
}

// Issues returns every issue matching visibility, in recorded order.
func (a *Accumulator) Issues(visibility Visibility) []Issue {
	var out []Issue
	for _, iss := range a.issues {
		if iss.Visibility == visibility {
			out = append(out, iss)
		}
	}
	return out
}

// JoinMessages joins every issue's message with "; ", matching §7's "final
// message joins them with a ; delimiter".
func (a *Accumulator) JoinMessages(visibility Visibility) string {
	msgs := make([]string, 0, len(a.issues))
	for _, iss := range a.issues {
		if iss.Visibility == visibility {
			msgs = append(msgs, iss.Message)
		}
	}
	return strings.Join(msgs, "; ")
}
