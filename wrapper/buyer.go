// Package wrapper implements C4: string-template codegen that wraps
// ad-tech-authored generateBid/scoreAd/reportWin/reportResult JS in a
// uniform entry-function surface, log capture, and debug-URL plumbing
// (spec.md §4.4).
package wrapper

import (
	"regexp"
	"strings"
)

// Fixed entry-function names the dispatcher always calls by; reactors
// never invent their own.
const (
	GenerateBidEntryFunction = "generateBidEntryFunction"
	ScoreAdEntryFunction     = "scoreAdEntryFunction"
	ReportingEntryFunction   = "reportingEntryFunction"
)

const forDebuggingOnlyPreamble = `
const forDebuggingOnly = {}
forDebuggingOnly.auction_win_url = undefined;
forDebuggingOnly.auction_loss_url = undefined;

forDebuggingOnly.reportAdAuctionLoss = (url) => {
  forDebuggingOnly.auction_loss_url = url;
}

forDebuggingOnly.reportAdAuctionWin = (url) => {
  forDebuggingOnly.auction_win_url = url;
}
`

const buyerEntryFunction = forDebuggingOnlyPreamble + `
function generateBidEntryFunction(interest_group,
                            auction_signals,
                            buyer_signals,
                            trusted_bidding_signals,
                            device_signals,
                            featureFlags) {
  var ps_logs = [];
  var ps_errors = [];
  var ps_warns = [];
  if (featureFlags.enable_logging) {
    console.log = function(...args) { ps_logs.push(JSON.stringify(args)) }
    console.error = function(...args) { ps_errors.push(JSON.stringify(args)) }
    console.warn = function(...args) { ps_warns.push(JSON.stringify(args)) }
  }
  var generateBidResponse = {};
  try {
    generateBidResponse = generateBid(interest_group, auction_signals,
      buyer_signals, trusted_bidding_signals, device_signals);
  } catch (e) {
    console.error("[Error: " + e + "]");
  } finally {
    if (featureFlags.enable_debug_url_generation &&
        (forDebuggingOnly.auction_win_url || forDebuggingOnly.auction_loss_url)) {
      generateBidResponse.debug_report_urls = {
        auction_debug_loss_url: forDebuggingOnly.auction_loss_url,
        auction_debug_win_url: forDebuggingOnly.auction_win_url
      }
    }
  }
  return {
    response: generateBidResponse,
    logs: ps_logs,
    errors: ps_errors,
    warnings: ps_warns
  }
}
`

// BuyerWrappedCode concatenates the generateBid entry function with the
// ad-tech-supplied JS, producing the single blob a worker LoadSync installs.
func BuyerWrappedCode(adtechJS string) string {
	var b strings.Builder
	b.WriteString(buyerEntryFunction)
	b.WriteString(adtechJS)
	return b.String()
}

// FeatureFlagJSON builds the literal JSON object the entry functions expect
// as their featureFlags argument.
func FeatureFlagJSON(enableLogging, enableDebugURLGeneration bool) string {
	var b strings.Builder
	b.WriteString(`{"enable_logging": `)
	b.WriteString(jsonBool(enableLogging))
	b.WriteString(`, "enable_debug_url_generation": `)
	b.WriteString(jsonBool(enableDebugURLGeneration))
	b.WriteString(`}`)
	return b.String()
}

func jsonBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ReportWinWrapperFunctionName derives the per-buyer reportWinWrapper
// function name from a buyer origin: all non-alphanumerics stripped,
// prefixed with "reportWinWrapper" (spec.md §4.4 point 3).
func ReportWinWrapperFunctionName(buyerOrigin string) string {
	return "reportWinWrapper" + nonAlphanumeric.ReplaceAllString(buyerOrigin, "")
}
