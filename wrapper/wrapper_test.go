package wrapper

import (
	"strings"
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestBuyerWrappedCode_ContainsEntryFunctionAndAdTechJS(t *testing.T) {
	code := BuyerWrappedCode(`function generateBid(ig) { return {bid: 1}; }`)
	check.True(t, strings.Contains(code, "function "+GenerateBidEntryFunction))
	check.True(t, strings.Contains(code, "function generateBid(ig)"))
}

func TestFeatureFlagJSON(t *testing.T) {
	flags := FeatureFlagJSON(true, false)
	check.True(t, strings.Contains(flags, `"enable_logging": true`))
	check.True(t, strings.Contains(flags, `"enable_debug_url_generation": false`))
}

func TestReportWinWrapperFunctionName_StripsNonAlphanumerics(t *testing.T) {
	name := ReportWinWrapperFunctionName("https://buyer-a.example:443")
	check.Equal(t, "reportWinWrapperhttpsbuyeraexample443", name)
}

func TestSellerWrappedCode_EmitsOneWrapperPerBuyer(t *testing.T) {
	code := SellerWrappedCode(
		`function scoreAd() { return {desirability: 1}; }`,
		map[string]string{
			"https://buyer-a.example": `function reportWin() {}`,
			"https://buyer-b.example": `function reportWin() {}`,
		},
	)

	check.True(t, strings.Contains(code, "function "+ScoreAdEntryFunction))
	check.True(t, strings.Contains(code, "function "+ReportingEntryFunction))
	check.True(t, strings.Contains(code, "function "+ReportWinWrapperFunctionName("https://buyer-a.example")))
	check.True(t, strings.Contains(code, "function "+ReportWinWrapperFunctionName("https://buyer-b.example")))
}
