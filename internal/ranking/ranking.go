// Package ranking maintains the rolling score window of a quiz and ranks new
// scores against it.
package ranking

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/openquiz/internal/domain"
)

// WindowSize is the number of most recent scores a quiz keeps for ranking.
const WindowSize = 1000

const (
	minPercentile = 1
	maxPercentile = 100
)

var hundred = decimal.NewFromInt(100)

// Record appends score to the statistics window, evicting the oldest scores
// beyond WindowSize, and returns the new record with the percentile of score
// within it. s is left untouched so Record can be re-run on a retried update.
func Record(s domain.Statistics, score int) (domain.Statistics, int) {
	old := s.Submissions
	if n := len(old) + 1 - WindowSize; n > 0 {
		old = old[n:]
	}

	window := make([]int, 0, len(old)+1)
	window = append(window, old...)
	window = append(window, score)

	next := domain.Statistics{
		Submissions: window,
		TotalCount:  s.TotalCount + 1,
	}

	return next, Percentile(window, score)
}

// Percentile returns the "top X%" rank of score in window: the count of
// strictly better scores plus one, over the window length, times 100.
// The result is rounded half up and kept within [1, 100].
func Percentile(window []int, score int) int {
	if len(window) == 0 {
		return maxPercentile
	}

	better := 0
	for _, v := range window {
		if v > score {
			better++
		}
	}

	p := decimal.NewFromInt(int64(better + 1)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(len(window)))).
		Round(0).
		IntPart()

	switch {
	case p < minPercentile:
		return minPercentile
	case p > maxPercentile:
		return maxPercentile
	default:
		return int(p)
	}
}
