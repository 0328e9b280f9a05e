// Package core holds the auction domain types and the winner-selection and
// highest-scoring-other-bid logic shared by the bidding and auction reactors.
package core

// BrowserSignals carries the per-interest-group counters generateBid uses to
// shape a bid (join/bid counts, recency, previous wins).
type BrowserSignals struct {
	JoinCount int64      `json:"joinCount"`
	BidCount  int64      `json:"bidCount"`
	Recency   int64      `json:"recency"`
	PrevWins  [][2]any   `json:"prevWins,omitempty"` // [relative_time, ad_render_id]
}

// DebugReportUrls are the win/loss beacons generateBid or scoreAd registered
// via forDebuggingOnly.reportAdAuctionWin/Loss.
type DebugReportUrls struct {
	AuctionDebugWinURL  string `json:"auctionDebugWinUrl,omitempty"`
	AuctionDebugLossURL string `json:"auctionDebugLossUrl,omitempty"`
}

// AdWithBid is the parsed result of one interest group's generateBid call.
type AdWithBid struct {
	Render                string           `json:"render"`
	Bid                    float64          `json:"bid"`
	BidCurrency            string           `json:"bidCurrency,omitempty"`
	Ad                     any              `json:"ad,omitempty"`
	AdComponents           []string         `json:"adComponents,omitempty"`
	AdCost                 float64          `json:"adCost,omitempty"`
	ModelingSignals        int32            `json:"modelingSignals,omitempty"`
	DebugReportUrls        *DebugReportUrls `json:"debugReportUrls,omitempty"`
	AllowComponentAuction  bool             `json:"allowComponentAuction,omitempty"`

	// InterestGroupName/Owner/Index are stamped by the reactor, never by the
	// ad-tech script, so the seller can never spoof an owner it didn't bid as.
	InterestGroupName  string `json:"-"`
	InterestGroupOwner string `json:"-"`
	InterestGroupIndex int    `json:"-"`
}

// RejectionReason is the closed vocabulary scoreAd may use to explain why a
// bid did not win. Any value outside this set is a bug, not client input.
type RejectionReason string

const (
	RejectionNotAvailable               RejectionReason = "not-available"
	RejectionInvalidBid                 RejectionReason = "invalid-bid"
	RejectionBelowAuctionFloor          RejectionReason = "bid-below-auction-floor"
	RejectionPendingApprovalByExchange  RejectionReason = "pending-approval-by-exchange"
	RejectionDisapprovedByExchange      RejectionReason = "disapproved-by-exchange"
	RejectionBlockedByPublisher         RejectionReason = "blocked-by-publisher"
	RejectionLanguageExclusions         RejectionReason = "language-exclusions"
	RejectionCategoryExclusions         RejectionReason = "category-exclusions"
)

// ValidRejectionReasons backs the P9 testable property: every rejection
// reason surfaced to a client is one of these eight strings.
var ValidRejectionReasons = map[RejectionReason]bool{
	RejectionNotAvailable:              true,
	RejectionInvalidBid:                true,
	RejectionBelowAuctionFloor:         true,
	RejectionPendingApprovalByExchange: true,
	RejectionDisapprovedByExchange:     true,
	RejectionBlockedByPublisher:        true,
	RejectionLanguageExclusions:        true,
	RejectionCategoryExclusions:        true,
}

// InteractionReportingUrls maps a registerAdBeacon event name to its URL.
type InteractionReportingUrls map[string]string

// ReportingUrls is either the seller's or a buyer's reportResult/reportWin
// output: a top-level reporting URL plus per-event beacon URLs.
type ReportingUrls struct {
	ReportingURL             string                    `json:"reportingUrl,omitempty"`
	InteractionReportingUrls InteractionReportingUrls `json:"interactionReportingUrls,omitempty"`
}

// WinReportingUrls bundles the seller-side and winning-buyer-side reporting
// URLs produced by the auction reactor's reportResult/reportWin dispatch.
type WinReportingUrls struct {
	SellerReportingUrls ReportingUrls `json:"sellerReportingUrls,omitempty"`
	BuyerReportingUrls  ReportingUrls `json:"buyerReportingUrls,omitempty"`
}

// AdScore is the parsed result of one candidate bid's scoreAd call, plus the
// bookkeeping the auction reactor attaches afterward.
type AdScore struct {
	Desirability               float64            `json:"desirability"`
	BuyerBid                   float64            `json:"buyerBid"`
	Render                     string             `json:"render"`
	InterestGroupName          string             `json:"interestGroupName"`
	InterestGroupOwner         string             `json:"interestGroupOwner"`
	InterestGroupIndex         int                `json:"-"`
	AdComponents               []string           `json:"adComponents,omitempty"`
	IGOwnerHighestOtherBidsMap map[string]float64 `json:"igOwnerHighestScoringOtherBidsMap,omitempty"`
	AllowComponentAuction      bool               `json:"allowComponentAuction,omitempty"`
	DebugReportUrls            *DebugReportUrls   `json:"debugReportUrls,omitempty"`
	AdRejectionReason          RejectionReason    `json:"adRejectionReason,omitempty"`
	WinReportingUrls           *WinReportingUrls  `json:"winReportingUrls,omitempty"`
}

// ScoredCandidate pairs a bid with its seller-assigned score for ranking.
type ScoredCandidate struct {
	Bid   AdWithBid
	Score AdScore
	// Rejected is true when scoreAd produced a non-positive desirability or
	// its call or response could not be used; a rejectReason alongside a
	// positive desirability does not reject. Rejected candidates never win
	// but may still carry debug URLs that get fired.
	Rejected bool
}

// ClientError is the taxonomy of a client-visible error surfaced inside an
// encrypted AuctionResult rather than as a plain gRPC status (§7).
type ClientError struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// AuctionError code namespace, matching §7's ClientEncodingError /
// ClientValidationError surfaced as AuctionResult.error.code.
const (
	ClientSideErrorCode int32 = 400
)

// BiddingGroups maps a buyer owner origin to the indices (in the original
// client-encoded BuyerInput.interest_groups order) of interest groups that
// produced a strictly positive bid. See invariant P4 in spec.md.
type BiddingGroups map[string][]int32

// AuctionResult is the payload returned to the client: exactly one of
// winner, chaff, or error (spec.md §3 invariant).
type AuctionResult struct {
	IsChaff             bool              `json:"isChaff"`
	AdRenderURL         string            `json:"adRenderUrl,omitempty"`
	Bid                 float64           `json:"bid,omitempty"`
	BidCurrency         string            `json:"bidCurrency,omitempty"`
	Score               float64           `json:"score,omitempty"`
	InterestGroupName   string            `json:"interestGroupName,omitempty"`
	InterestGroupOwner  string            `json:"interestGroupOwner,omitempty"`
	AdComponents        []string          `json:"adComponents,omitempty"`
	BiddingGroups       BiddingGroups     `json:"biddingGroups,omitempty"`
	WinReportingUrls    *WinReportingUrls `json:"winReportingUrls,omitempty"`
	Error               *ClientError      `json:"error,omitempty"`
}
