package attendance

import (
	"math"
	"strconv"
)

// Percentage is present/total*100 rounded to two decimals and kept in [0, 100].
// A non-positive total yields 0. Rounding works on the exact binary value with
// ties to even, so 1 of 32 days is 3.12.
func Percentage(present, total int) float64 {
	if total <= 0 || present <= 0 {
		return 0
	}
	return math.Min(round2(float64(present)/float64(total)*100), 100)
}

func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}

// Summarize turns presence counts into report rows, keeping their order.
func Summarize(counts []PresenceCount, totalWorkingDays int) []Summary {
	out := make([]Summary, 0, len(counts))
	for _, c := range counts {
		out = append(out, Summary{
			Roll:       c.Roll,
			Name:       c.Name,
			Percentage: Percentage(c.Present, totalWorkingDays),
		})
	}
	return out
}
