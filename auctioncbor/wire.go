package auctioncbor

import "github.com/cloudx-io/auctiontee/core"

// auctionResultWire is the CBOR map shape spec.md §4.2 names exactly:
// bid, score, isChaff, components, adRenderURL, biddingGroups,
// winReportingURLs, interestGroupName, interestGroupOwner, optional error.
// Field tags use the spec's literal key names; canonical (shortlex) key
// ordering is applied by the encoder mode, not by struct field order.
type auctionResultWire struct {
	Bid                 float64                `cbor:"bid,omitempty"`
	Score               float64                `cbor:"score,omitempty"`
	IsChaff             bool                   `cbor:"isChaff"`
	Components          []string               `cbor:"components,omitempty"`
	AdRenderURL         string                 `cbor:"adRenderURL,omitempty"`
	BiddingGroups       map[string][]int32     `cbor:"biddingGroups,omitempty"`
	WinReportingURLs    *winReportingURLsWire  `cbor:"winReportingURLs,omitempty"`
	InterestGroupName   string                 `cbor:"interestGroupName,omitempty"`
	InterestGroupOwner  string                 `cbor:"interestGroupOwner,omitempty"`
	Error               *errorWire             `cbor:"error,omitempty"`
}

type errorWire struct {
	Code    int32  `cbor:"code"`
	Message string `cbor:"message"`
}

type reportingURLsWire struct {
	ReportingURL             string            `cbor:"reportingUrl,omitempty"`
	InteractionReportingURLs map[string]string `cbor:"interactionReportingUrls,omitempty"`
}

type winReportingURLsWire struct {
	SellerReportingURLs reportingURLsWire `cbor:"sellerReportingUrls,omitempty"`
	BuyerReportingURLs  reportingURLsWire `cbor:"buyerReportingUrls,omitempty"`
}

func toWire(r *core.AuctionResult) *auctionResultWire {
	w := &auctionResultWire{
		Bid:                r.Bid,
		Score:              r.Score,
		IsChaff:            r.IsChaff,
		Components:         r.AdComponents,
		AdRenderURL:        r.AdRenderURL,
		InterestGroupName:  r.InterestGroupName,
		InterestGroupOwner: r.InterestGroupOwner,
	}
	if len(r.BiddingGroups) > 0 {
		w.BiddingGroups = make(map[string][]int32, len(r.BiddingGroups))
		for owner, idx := range r.BiddingGroups {
			w.BiddingGroups[owner] = idx
		}
	}
	if r.WinReportingUrls != nil {
		w.WinReportingURLs = &winReportingURLsWire{
			SellerReportingURLs: reportingURLsWire{
				ReportingURL:             r.WinReportingUrls.SellerReportingUrls.ReportingURL,
				InteractionReportingURLs: r.WinReportingUrls.SellerReportingUrls.InteractionReportingUrls,
			},
			BuyerReportingURLs: reportingURLsWire{
				ReportingURL:             r.WinReportingUrls.BuyerReportingUrls.ReportingURL,
				InteractionReportingURLs: r.WinReportingUrls.BuyerReportingUrls.InteractionReportingUrls,
			},
		}
	}
	if r.Error != nil {
		w.Error = &errorWire{Code: r.Error.Code, Message: r.Error.Message}
	}
	return w
}

func fromWire(w *auctionResultWire) *core.AuctionResult {
	r := &core.AuctionResult{
		Bid:                w.Bid,
		Score:              w.Score,
		IsChaff:            w.IsChaff,
		AdComponents:       w.Components,
		AdRenderURL:        w.AdRenderURL,
		InterestGroupName:  w.InterestGroupName,
		InterestGroupOwner: w.InterestGroupOwner,
	}
	if len(w.BiddingGroups) > 0 {
		r.BiddingGroups = core.BiddingGroups(w.BiddingGroups)
	}
	if w.WinReportingURLs != nil {
		r.WinReportingUrls = &core.WinReportingUrls{
			SellerReportingUrls: core.ReportingUrls{
				ReportingURL:             w.WinReportingURLs.SellerReportingURLs.ReportingURL,
				InteractionReportingUrls: w.WinReportingURLs.SellerReportingURLs.InteractionReportingURLs,
			},
			BuyerReportingUrls: core.ReportingUrls{
				ReportingURL:             w.WinReportingURLs.BuyerReportingURLs.ReportingURL,
				InteractionReportingUrls: w.WinReportingURLs.BuyerReportingURLs.InteractionReportingURLs,
			},
		}
	}
	if w.Error != nil {
		r.Error = &core.ClientError{Code: w.Error.Code, Message: w.Error.Message}
	}
	return r
}
