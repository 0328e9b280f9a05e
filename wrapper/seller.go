package wrapper

import "strings"

const sellerEntryFunction = forDebuggingOnlyPreamble + `
function scoreAdEntryFunction(adMetadata, bid, auctionConfig, trustedScoringSignals,
                            browserSignals, directFromSellerSignals, featureFlags) {
  var ps_logs = [];
  var ps_errors = [];
  var ps_warns = [];
  if (featureFlags.enable_logging) {
    console.log = function(...args) { ps_logs.push(JSON.stringify(args)) }
    console.error = function(...args) { ps_errors.push(JSON.stringify(args)) }
    console.warn = function(...args) { ps_warns.push(JSON.stringify(args)) }
  }
  var scoreAdResponse = {};
  try {
    scoreAdResponse = scoreAd(adMetadata, bid, auctionConfig,
          trustedScoringSignals, browserSignals, directFromSellerSignals);
  } catch (e) {
    console.error("[Error: " + e + "]");
  } finally {
    if (featureFlags.enable_debug_url_generation &&
          (forDebuggingOnly.auction_win_url || forDebuggingOnly.auction_loss_url)) {
      scoreAdResponse.debugReportUrls = {
        auctionDebugLossUrl: forDebuggingOnly.auction_loss_url,
        auctionDebugWinUrl: forDebuggingOnly.auction_win_url
      }
    }
  }
  return {
    response: scoreAdResponse,
    logs: ps_logs,
    errors: ps_errors,
    warnings: ps_warns
  }
}
`

const reportingEntryFunction = `
function reportingEntryFunction(auctionConfig, sellerReportingSignals, directFromSellerSignals, enable_logging, buyerReportingMetadata) {
  var ps_report_result_response = {
    reportResultUrl: "",
    signalsForWinner: "",
    interactionReportingUrls: {},
    sendReportToInvoked: false,
    registerAdBeaconInvoked: false,
  }
  var ps_logs = [];
  var ps_errors = [];
  var ps_warns = [];
  if (enable_logging) {
    console.log = function(...args) { ps_logs.push(JSON.stringify(args)) }
    console.error = function(...args) { ps_errors.push(JSON.stringify(args)) }
    console.warn = function(...args) { ps_warns.push(JSON.stringify(args)) }
  }
  globalThis.sendReportTo = function sendReportTo(url) {
    if (ps_report_result_response.sendReportToInvoked) {
      throw new Error("sendReportTo function invoked more than once");
    }
    ps_report_result_response.reportResultUrl = url;
    ps_report_result_response.sendReportToInvoked = true;
  }
  globalThis.registerAdBeacon = function registerAdBeacon(eventUrlMap) {
    if (ps_report_result_response.registerAdBeaconInvoked) {
      throw new Error("registerAdBeacon function invoked more than once");
    }
    ps_report_result_response.interactionReportingUrls = eventUrlMap;
    ps_report_result_response.registerAdBeaconInvoked = true;
  }
  ps_report_result_response.signalsForWinner = reportResult(auctionConfig, sellerReportingSignals, directFromSellerSignals);
  try {
    if (buyerReportingMetadata.enableReportWinUrlGeneration) {
      var buyerOrigin = buyerReportingMetadata.buyerOrigin;
      var buyerPrefix = buyerOrigin.replace(/[^a-zA-Z0-9]/g, "");
      var auctionSignals = auctionConfig.auctionSignals;
      var buyerReportingSignals = sellerReportingSignals;
      buyerReportingSignals.interestGroupName = buyerReportingMetadata.interestGroupName;
      buyerReportingSignals.madeHighestScoringOtherBid = buyerReportingMetadata.madeHighestScoringOtherBid;
      var perBuyerSignals = buyerReportingMetadata.perBuyerSignals;
      var signalsForWinner = ps_report_result_response.signalsForWinner;
      var reportWinFunction = "reportWinWrapper" + buyerPrefix +
        "(auctionSignals, perBuyerSignals, signalsForWinner, buyerReportingSignals, directFromSellerSignals, enable_logging)";
      var reportWinResponse = eval(reportWinFunction);
      return {
        reportResultResponse: ps_report_result_response,
        sellerLogs: ps_logs,
        sellerErrors: ps_errors,
        sellerWarnings: ps_warns,
        reportWinResponse: reportWinResponse.response,
        buyerLogs: reportWinResponse.logs
      }
    }
  } catch (ex) {
    console.error(ex.message);
  }
  return {
    reportResultResponse: ps_report_result_response,
    sellerLogs: ps_logs,
    sellerErrors: ps_errors,
    sellerWarnings: ps_warns,
  }
}
`

const reportWinWrapperTemplate = `
function $NAME(auctionSignals, perBuyerSignals, signalsForWinner, buyerReportingSignals,
                          directFromSellerSignals, enable_logging) {
  var ps_report_win_response = {
    reportWinUrl: "",
    interactionReportingUrls: {},
    sendReportToInvoked: false,
    registerAdBeaconInvoked: false,
  }
  var ps_logs = [];
  if (enable_logging) {
    console.log = function(...args) { ps_logs.push(JSON.stringify(args)) }
  }
  globalThis.sendReportTo = function sendReportTo(url) {
    if (ps_report_win_response.sendReportToInvoked) {
      throw new Error("sendReportTo function invoked more than once");
    }
    ps_report_win_response.reportWinUrl = url;
    ps_report_win_response.sendReportToInvoked = true;
  }
  globalThis.registerAdBeacon = function registerAdBeacon(eventUrlMap) {
    if (ps_report_win_response.registerAdBeaconInvoked) {
      throw new Error("registerAdBeacon function invoked more than once");
    }
    ps_report_win_response.interactionReportingUrls = eventUrlMap;
    ps_report_win_response.registerAdBeaconInvoked = true;
  }
  try {
    reportWin(auctionSignals, perBuyerSignals, signalsForWinner, buyerReportingSignals,
                            directFromSellerSignals);
  } catch (ex) {
    console.error(ex.message);
  }
  return {
    response: ps_report_win_response,
    logs: ps_logs,
  }
}
`

// reportWinWrapper renders the per-buyer reportWin wrapper function body,
// substituting the derived function name for the $NAME placeholder and
// appending the buyer's own reportWin JS so the result is self-contained.
func reportWinWrapper(buyerOrigin, buyerReportWinJS string) string {
	fn := strings.Replace(reportWinWrapperTemplate, "$NAME", ReportWinWrapperFunctionName(buyerOrigin), 1)
	return fn + buyerReportWinJS
}

// SellerWrappedCode concatenates the scoreAd entry function, the reporting
// entry function, one reportWinWrapper<Buyer> function per buyer, and the
// seller's own scoreAd/reportResult JS into a single blob — the single
// compiled snapshot that serves every buyer (spec.md §4.4 point 3).
func SellerWrappedCode(sellerJS string, buyerReportWinJSByOrigin map[string]string) string {
	var b strings.Builder
	b.WriteString(sellerEntryFunction)
	b.WriteString(reportingEntryFunction)
	for origin, js := range buyerReportWinJSByOrigin {
		b.WriteString(reportWinWrapper(origin, js))
	}
	b.WriteString(sellerJS)
	return b.String()
}
