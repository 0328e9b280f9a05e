package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SelectWinner implements P5: the surviving (non-rejected) candidate with
// strictly maximum desirability wins; ties are broken by first arrival order
// in the original ad_bids slice (stable), never at random — unlike the
// bidder-ranking tie-break this package's teacher used for price ties, the
// auction reactor's desirability ties must be deterministic so repeated runs
// of the same scoreAd against the same bids always pick the same winner.
//
// Returns the winner's index into candidates, or -1 if every candidate was
// rejected or had non-positive desirability (the caller should return chaff).
func SelectWinner(candidates []ScoredCandidate) int {
	winner := -1
	var winnerDesirability float64

	for i, c := range candidates {
		if c.Rejected || c.Score.Desirability <= 0 {
			continue
		}
		if winner == -1 || c.Score.Desirability > winnerDesirability {
			winner = i
			winnerDesirability = c.Score.Desirability
		}
	}

	return winner
}

// HighestScoringOtherBid implements P6: among surviving candidates excluding
// the winner, group by interest_group_owner, sum each group's buyer bid, and
// return the group with the maximum sum. Ties are broken by first-seen
// owner, matching the deterministic tie-break SelectWinner uses.
//
// Returns the owner and its summed bid; owner is "" if there were no other
// surviving bidders.
func HighestScoringOtherBid(candidates []ScoredCandidate, winnerIndex int) (owner string, sum float64) {
	type group struct {
		owner string
		sum   decimal.Decimal
	}

	order := make([]string, 0, len(candidates))
	sums := make(map[string]decimal.Decimal)

	for i, c := range candidates {
		if i == winnerIndex || c.Rejected || c.Score.Desirability <= 0 {
			continue
		}
		owner := c.Score.InterestGroupOwner
		if _, seen := sums[owner]; !seen {
			order = append(order, owner)
			sums[owner] = decimal.Zero
		}
		sums[owner] = sums[owner].Add(decimal.NewFromFloat(c.Score.BuyerBid))
	}

	if len(order) == 0 {
		return "", 0
	}

	groups := make([]group, 0, len(order))
	for _, o := range order {
		groups = append(groups, group{owner: o, sum: sums[o]})
	}

	// Stable sort on sum descending; the original `order` slice already
	// reflects first-seen order, and sort.SliceStable preserves it for ties.
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].sum.GreaterThan(groups[j].sum)
	})

	best := groups[0]
	f, _ := best.sum.Float64()
	return best.owner, f
}

// BuildBiddingGroups implements P4: for every buyer with at least one
// positive-bid interest group, collect the original insertion indices of the
// interest groups that produced a strictly positive bid.
func BuildBiddingGroups(bidsByOwner map[string][]AdWithBid) BiddingGroups {
	groups := make(BiddingGroups, len(bidsByOwner))
	for owner, bids := range bidsByOwner {
		var indices []int32
		for _, b := range bids {
			if b.Bid > 0 {
				indices = append(indices, int32(b.InterestGroupIndex))
			}
		}
		if len(indices) > 0 {
			groups[owner] = indices
		}
	}
	return groups
}
