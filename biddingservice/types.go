// Package biddingservice implements C5: the bidding reactor that batches
// one generateBid dispatch per interest group, parses the results into
// AdWithBid, and applies the bid-drop rule (spec.md §4.5).
package biddingservice

import (
	"encoding/json"

	"github.com/cloudx-io/auctiontee/core"
)

// ReactorState names the bidding reactor's state machine, Start through
// Done (spec.md §4.5). It exists for observability; callers drive the
// reactor through GenerateBids and never set state directly.
type ReactorState int

const (
	StateStart ReactorState = iota
	StateDecrypted
	StateDispatching
	StateCollected
	StateEncrypted
	StateDone
)

// FeatureFlags mirrors the wrapper's JS featureFlags argument.
type FeatureFlags struct {
	EnableLogging            bool
	EnableDebugURLGeneration bool
}

// GenerateBidsRawRequest is the decrypted, already-parsed bidding input for
// one buyer (spec.md §4.5).
type GenerateBidsRawRequest struct {
	InterestGroupsForBidding []core.InterestGroup
	AuctionSignals           string
	BuyerSignals             string
	// BiddingSignals is the opaque trusted-bidding-signals JSON object,
	// top-level keyed by signal key, shared across every IG in this request.
	BiddingSignals       json.RawMessage
	PublisherName        string
	Seller               string
	EnableDebugReporting bool
	FeatureFlags         FeatureFlags
	TimeoutMS            int
}

// GenerateBidsRawResponse is the bidding reactor's output: one AdWithBid
// per surviving interest group, plus any per-IG debug lines for
// observability (never returned to the client).
type GenerateBidsRawResponse struct {
	Bids []core.AdWithBid
	Logs map[string]IGDebugLog
}

// IGDebugLog collects one interest group's console output for local
// observability; it is never serialized onto the wire.
type IGDebugLog struct {
	Logs     []string
	Errors   []string
	Warnings []string
}

type dispatchJSResponse struct {
	Response map[string]interface{} `json:"response"`
	Logs     []string               `json:"logs"`
	Errors   []string               `json:"errors"`
	Warnings []string               `json:"warnings"`
}

type generateBidResponseWire struct {
	Render                string               `json:"render"`
	Bid                   float64              `json:"bid"`
	BidCurrency           string               `json:"bidCurrency"`
	Ad                    interface{}          `json:"ad"`
	AdComponents          []string             `json:"adComponents"`
	AdCost                float64              `json:"adCost"`
	ModelingSignals       int32                `json:"modelingSignals"`
	AllowComponentAuction bool                 `json:"allowComponentAuction"`
	DebugReportUrls       *debugReportUrlsWire `json:"debug_report_urls"`
}

type debugReportUrlsWire struct {
	AuctionDebugWinURL  string `json:"auction_debug_win_url"`
	AuctionDebugLossURL string `json:"auction_debug_loss_url"`
}
