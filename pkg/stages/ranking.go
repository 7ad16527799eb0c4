package stages

import (
	"context"
	"fmt"
	"sort"

	"github.com/tripsmith/tripsmith/pkg/models"
)

// RankCandidates orders the validated set best-first. The weighted-score
// algorithm starts from the validation quality and applies a diversity
// penalty that grows with every candidate already ranked in the same
// category, so no single category monopolizes the top of the list.
func RankCandidates(_ context.Context, req *Request) (any, error) {
	set, err := candidateSetFrom(req.Inputs["candidates-validated"])
	if err != nil {
		return nil, err
	}
	algorithm := configString(req.Config, "algorithm", "weighted-score")
	if algorithm != "weighted-score" {
		return nil, fmt.Errorf("unknown ranking algorithm %q", algorithm)
	}
	diversityWeight := configFloat(req.Config, "diversity_weight", 0.2)

	remaining := make([]Candidate, len(set.Candidates))
	copy(remaining, set.Candidates)
	// Stable pre-sort makes the greedy pass deterministic for ties.
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].Quality > remaining[j].Quality
	})

	ranked := &CandidateSet{WorkflowID: set.WorkflowID}
	seen := make(map[models.Category]int)
	for len(remaining) > 0 {
		best := 0
		bestScore := effectiveScore(remaining[0], seen, diversityWeight)
		for i := 1; i < len(remaining); i++ {
			if s := effectiveScore(remaining[i], seen, diversityWeight); s > bestScore {
				best, bestScore = i, s
			}
		}
		picked := remaining[best]
		picked.Score = bestScore
		ranked.Candidates = append(ranked.Candidates, picked)
		seen[picked.Category]++
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return ranked, nil
}

func effectiveScore(c Candidate, seen map[models.Category]int, diversityWeight float64) float64 {
	penalty := diversityWeight * float64(seen[c.Category]) * 0.1
	score := c.Quality - penalty
	if score < 0 {
		score = 0
	}
	return score
}
