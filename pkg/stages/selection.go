package stages

import (
	"context"
	"fmt"
	"sort"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// SelectCandidates picks the itinerary's candidates per category and
// persists the result to the selections namespace, which is strongly
// consistent: downstream stages observing the sync notification can read
// the selection back immediately.
//
// Strategies:
//   - "top-ranked": highest score wins within each category
//   - "budget-aware": best value (score per unit price) wins, and a
//     budget constraint from the workflow's constraints entry caps the
//     running total when present
func SelectCandidates(ctx context.Context, req *Request) (any, error) {
	input := req.Inputs["candidates-ranked"]
	if input == nil {
		// Reduced templates select straight from validation.
		input = req.Inputs["candidates-validated"]
	}
	set, err := candidateSetFrom(input)
	if err != nil {
		return nil, err
	}

	strategy := configString(req.Config, "strategy", "top-ranked")
	maxPerCategory := configInt(req.Config, "max_per_category", 1)
	budget := budgetConstraint(ctx, req)

	result := &SelectionSet{WorkflowID: set.WorkflowID, Strategy: strategy}
	for _, category := range models.AllCategories() {
		pool := set.ByCategory()[category]
		if len(pool) == 0 {
			continue
		}
		switch strategy {
		case "top-ranked":
			sort.SliceStable(pool, func(i, j int) bool { return rankOf(pool[i]) > rankOf(pool[j]) })
		case "budget-aware":
			sort.SliceStable(pool, func(i, j int) bool { return valueOf(pool[i]) > valueOf(pool[j]) })
		default:
			return nil, fmt.Errorf("unknown selection strategy %q", strategy)
		}

		taken := 0
		for _, c := range pool {
			if taken >= maxPerCategory {
				break
			}
			if budget > 0 && result.TotalPrice+c.Price > budget {
				continue
			}
			result.Selections = append(result.Selections, Selection{
				Candidate: c,
				Reason:    selectionReason(strategy, c),
			})
			result.TotalPrice += c.Price
			taken++
		}
	}

	if len(result.Selections) == 0 {
		return nil, fmt.Errorf("selection produced no candidates (strategy %s, budget %.2f)", strategy, budget)
	}
	if _, err := req.Board.Write(ctx, models.NamespaceSelections, req.WorkflowID, result, blackboard.WriteOptions{}); err != nil {
		return nil, fmt.Errorf("persisting selections: %w", err)
	}
	return result, nil
}

// budgetConstraint looks up the workflow's budget from the constraints
// namespace. Absence of the entry or of a budget field means unlimited.
func budgetConstraint(ctx context.Context, req *Request) float64 {
	entry, err := req.Board.Read(ctx, models.NamespaceConstraints, req.WorkflowID)
	if err != nil {
		// ErrNotFound and expired entries alike mean no constraint.
		return 0
	}
	constraints, ok := entry.Data.(map[string]any)
	if !ok {
		return 0
	}
	return configFloat(constraints, "budget", 0)
}

// rankOf falls back to quality when a template skipped the ranking stage.
func rankOf(c Candidate) float64 {
	if c.Score > 0 {
		return c.Score
	}
	return c.Quality
}

func valueOf(c Candidate) float64 {
	if c.Price <= 0 {
		return 0
	}
	return rankOf(c) / c.Price
}

func selectionReason(strategy string, c Candidate) string {
	switch strategy {
	case "budget-aware":
		return fmt.Sprintf("best value in %s at %.2f", c.Category, c.Price)
	default:
		return fmt.Sprintf("top ranked in %s", c.Category)
	}
}
