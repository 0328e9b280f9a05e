// Package auctionservice implements C6: the auction reactor that scores
// every candidate bid, selects a winner, computes the highest-scoring
// other bid, dispatches seller/buyer reporting, and fires debug-report URLs
// (spec.md §4.6).
package auctionservice

import (
	"encoding/json"

	"github.com/cloudx-io/auctiontee/core"
)

// ScoreAdsRawRequest is the decrypted, collated scoring input (spec.md §4.6).
type ScoreAdsRawRequest struct {
	AdBids               []core.AdWithBid
	AuctionSignals       string
	SellerSignals        string
	ScoringSignals       json.RawMessage
	PublisherHostname    string
	EnableDebugReporting bool
	PerBuyerSignals      map[string]string
	Seller               string

	EnableReportResultURLGeneration bool
	EnableReportWinURLGeneration    bool
	BuyerReportWinJSByOrigin        map[string]string

	TimeoutMS int
}

// ScoreAdsRawResponse is the auction reactor's output.
type ScoreAdsRawResponse struct {
	Result *core.AuctionResult
}

type dispatchJSResponse struct {
	Response interface{} `json:"response"`
	Logs     []string    `json:"logs"`
	Errors   []string    `json:"errors"`
	Warnings []string    `json:"warnings"`
}

type scoreAdResponseWire struct {
	Desirability          float64                `json:"desirability"`
	AllowComponentAuction bool                   `json:"allowComponentAuction"`
	RejectReason          core.RejectionReason   `json:"rejectReason"`
	DebugReportUrls       *debugReportUrlsWire   `json:"debugReportUrls"`
}

type debugReportUrlsWire struct {
	AuctionDebugWinURL  string `json:"auctionDebugWinUrl"`
	AuctionDebugLossURL string `json:"auctionDebugLossUrl"`
}

type reportResultResponseWire struct {
	ReportResultURL          string            `json:"reportResultUrl"`
	SignalsForWinner         string            `json:"signalsForWinner"`
	InteractionReportingUrls map[string]string `json:"interactionReportingUrls"`
}

type reportWinResponseWire struct {
	ReportWinURL             string            `json:"reportWinUrl"`
	InteractionReportingUrls map[string]string `json:"interactionReportingUrls"`
}

type reportingEntryResponseWire struct {
	ReportResultResponse reportResultResponseWire `json:"reportResultResponse"`
	ReportWinResponse    reportWinResponseWire    `json:"reportWinResponse"`
}
