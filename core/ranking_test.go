package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestSelectWinner_MaxDesirability(t *testing.T) {
	candidates := []ScoredCandidate{
		{Score: AdScore{Desirability: 2, InterestGroupOwner: "buyerA"}},
		{Score: AdScore{Desirability: 5, InterestGroupOwner: "buyerB"}},
		{Score: AdScore{Desirability: 3, InterestGroupOwner: "buyerC"}},
	}

	check.Equal(t, 1, SelectWinner(candidates))
}

func TestSelectWinner_TieBreaksByFirstArrival(t *testing.T) {
	candidates := []ScoredCandidate{
		{Score: AdScore{Desirability: 5, InterestGroupOwner: "buyerA"}},
		{Score: AdScore{Desirability: 5, InterestGroupOwner: "buyerB"}},
	}

	check.Equal(t, 0, SelectWinner(candidates))
}

func TestSelectWinner_AllRejectedReturnsChaff(t *testing.T) {
	candidates := []ScoredCandidate{
		{Rejected: true, Score: AdScore{Desirability: 5}},
		{Score: AdScore{Desirability: 0}},
	}

	check.Equal(t, -1, SelectWinner(candidates))
}

func TestHighestScoringOtherBid_ExcludesWinner(t *testing.T) {
	candidates := []ScoredCandidate{
		{Score: AdScore{Desirability: 5, BuyerBid: 5, InterestGroupOwner: "winnerOwner"}},
		{Score: AdScore{Desirability: 3, BuyerBid: 3, InterestGroupOwner: "otherOwner"}},
		{Score: AdScore{Desirability: 2, BuyerBid: 2, InterestGroupOwner: "otherOwner"}},
	}

	owner, sum := HighestScoringOtherBid(candidates, 0)
	check.Equal(t, "otherOwner", owner)
	check.Equal(t, 5.0, sum)
}

func TestHighestScoringOtherBid_NoOthers(t *testing.T) {
	candidates := []ScoredCandidate{
		{Score: AdScore{Desirability: 5, BuyerBid: 5, InterestGroupOwner: "winnerOwner"}},
	}

	owner, sum := HighestScoringOtherBid(candidates, 0)
	check.Equal(t, "", owner)
	check.Equal(t, 0.0, sum)
}

func TestBuildBiddingGroups_OnlyPositiveBids(t *testing.T) {
	bidsByOwner := map[string][]AdWithBid{
		"buyerA": {
			{Bid: 1.5, InterestGroupIndex: 0},
			{Bid: 0, InterestGroupIndex: 1},
			{Bid: 2.0, InterestGroupIndex: 2},
		},
		"buyerB": {
			{Bid: 0, InterestGroupIndex: 0},
		},
	}

	groups := BuildBiddingGroups(bidsByOwner)

	check.Equal(t, 1, len(groups))
	check.Equal(t, []int32{0, 2}, groups["buyerA"])
	_, ok := groups["buyerB"]
	check.Equal(t, false, ok)
}
