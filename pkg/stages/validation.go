package stages

import (
	"context"
	"fmt"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// ValidateCandidates scores every candidate and drops the ones below the
// configured quality floor. The per-workflow validation summary is
// persisted to the evals namespace.
func ValidateCandidates(ctx context.Context, req *Request) (any, error) {
	set, err := candidateSetFrom(req.Inputs["candidates-generated"])
	if err != nil {
		return nil, err
	}
	minQuality := configFloat(req.Config, "min_quality_score", 0.5)

	validated := &CandidateSet{WorkflowID: set.WorkflowID}
	rejected := 0
	for _, c := range set.Candidates {
		c.Quality = qualityScore(c)
		if c.Quality < minQuality {
			rejected++
			continue
		}
		validated.Candidates = append(validated.Candidates, c)
	}

	summary := map[string]any{
		"workflow_id":       req.WorkflowID,
		"candidates_in":     len(set.Candidates),
		"candidates_out":    len(validated.Candidates),
		"rejected":          rejected,
		"min_quality_score": minQuality,
	}
	if _, err := req.Board.Write(ctx, models.NamespaceEvals, "validation-"+req.WorkflowID, summary, blackboard.WriteOptions{}); err != nil {
		return nil, fmt.Errorf("persisting validation summary: %w", err)
	}

	if len(validated.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates passed validation (floor %.2f, rejected %d)", minQuality, rejected)
	}
	return validated, nil
}

// qualityScore folds rating and price plausibility into a 0..1 score.
// Free or negatively priced candidates are inventory glitches and score
// zero.
func qualityScore(c Candidate) float64 {
	if c.Price <= 0 || c.Name == "" {
		return 0
	}
	rating := c.Rating / 5
	if rating > 1 {
		rating = 1
	}
	// Cheaper options get a small value bonus so budget inventory is not
	// filtered out purely on rating.
	value := 1 / (1 + c.Price/500)
	return rating*0.8 + value*0.2
}
