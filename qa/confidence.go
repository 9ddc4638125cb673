package qa

import (
	"math"
	"strings"
)

const (
	confidenceBase  = 0.55
	docTermCap      = 0.35
	citationTermCap = 0.06
	repairDiscount  = 0.9
)

// Confidence combines retrieval quality, query execution quality, citation
// coverage, and repair cost into a single bounded score. The function is a
// deterministic weighted sum over the run state, clamped to [0, 1] and
// rounded to two decimal places.
func Confidence(s *RunState) float64 {
	score := confidenceBase

	if len(s.Fragments) > 0 {
		var sum float64
		for _, f := range s.Fragments {
			sum += f.Score
		}
		avg := sum / float64(len(s.Fragments))
		score += math.Min(docTermCap, 0.2+0.175*avg)
	}

	if s.QueryResult != nil && s.QueryResult.Success {
		if s.QueryResult.RowCount() > 0 {
			score += 0.35
		} else {
			score += 0.15
		}
	}

	if n := len(s.Citations); n > 0 {
		score += 0.06 + math.Min(citationTermCap, 0.03*float64(n))
		for _, c := range s.Citations {
			if !strings.Contains(c, fragmentIDSeparator) {
				score += 0.02
				break
			}
		}
	}

	score *= math.Pow(repairDiscount, float64(s.RepairCount))

	score = math.Max(0, math.Min(1, score))
	return math.Round(score*100) / 100
}

// fragmentIDSeparator distinguishes document fragment ids from table names in
// the citation set.
const fragmentIDSeparator = "::"
