package elo

import "math"

// DefaultK is the conventional K-factor: the maximum number of rating
// points exchanged in a single match.
const DefaultK = 32

// ExpectedScore returns the probability of player A beating player B
// under the logistic Elo model.
func ExpectedScore(ratingA int, ratingB int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(ratingB-ratingA)/400.0))
}

// RatingChange returns the winner's and loser's rating deltas for a decided
// match (winner scored 1, loser 0). The magnitude k*(1-expected) is rounded
// half away from zero once and then signed per player, so the two deltas are
// always exact negatives of each other.
func RatingChange(winnerRating int, loserRating int, k int) (int, int) {
	expected := ExpectedScore(winnerRating, loserRating)
	magnitude := int(math.Round(float64(k) * (1.0 - expected)))
	return magnitude, -magnitude
}

// NewRatings applies RatingChange and returns the updated ratings.
func NewRatings(winnerRating int, loserRating int, k int) (int, int) {
	winnerDelta, loserDelta := RatingChange(winnerRating, loserRating, k)
	return winnerRating + winnerDelta, loserRating + loserDelta
}
