package core

// ConsentedDebugConfig lets one request opt into verboser logging for
// itself only, gated on a shared secret token (spec.md §4.10, P8).
type ConsentedDebugConfig struct {
	IsConsented bool   `json:"isConsented"`
	Token       string `json:"token"`
}

// InterestGroup is one audience membership a buyer's BuyerInput carries.
type InterestGroup struct {
	Name               string          `json:"name"`
	AdRenderIds        []string        `json:"adRenderIds"`
	BiddingSignalsKeys []string        `json:"biddingSignalsKeys"`
	UserBiddingSignals string          `json:"userBiddingSignals,omitempty"` // opaque JSON
	BrowserSignals     *BrowserSignals `json:"browserSignals,omitempty"`
}

// BuyerInput is one buyer's slice of a ProtectedAuctionInput, decoded from
// a gzip-compressed CBOR byte string (spec.md §3, §4.2).
type BuyerInput struct {
	InterestGroups []InterestGroup `json:"interestGroups"`
}

// ProtectedAuctionInput is the full client-encrypted envelope contents
// (spec.md §3). BuyerInputCiphertext holds each buyer's still-gzip-compressed
// CBOR bytes, keyed by buyer origin, as they arrive off the wire; the SFE
// decompresses and CBOR-decodes each independently.
type ProtectedAuctionInput struct {
	GenerationID           string
	PublisherName          string
	EnableDebugReporting   bool
	BuyerInputCiphertext   map[string][]byte
	ConsentedDebugConfig   *ConsentedDebugConfig
}
