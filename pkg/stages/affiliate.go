package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// AffiliateService simulates the external booking-link provider that
// premium templates call through an external step. It behaves like a
// remote dependency: a configurable response latency, honored
// cancellation, and results persisted to the affiliate namespace.
type AffiliateService struct {
	latency time.Duration
}

// NewAffiliateService creates the simulated provider. A zero latency
// responds immediately.
func NewAffiliateService(latency time.Duration) *AffiliateService {
	return &AffiliateService{latency: latency}
}

// GenerateLinks builds one booking link per selected candidate.
func (a *AffiliateService) GenerateLinks(ctx context.Context, req *Request) (any, error) {
	selections, err := selectionSetFrom(req.Inputs["candidates-selected"])
	if err != nil {
		return nil, err
	}
	provider := configString(req.Config, "provider", "trippartner")

	if a.latency > 0 {
		select {
		case <-time.After(a.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	result := &AffiliateLinkSet{WorkflowID: selections.WorkflowID}
	for _, sel := range selections.Selections {
		result.Links = append(result.Links, AffiliateLink{
			CandidateID: sel.Candidate.ID,
			Provider:    provider,
			URL: fmt.Sprintf("https://book.%s.example/%s/%s?ref=tripsmith",
				provider, sel.Candidate.Category, sel.Candidate.ID),
		})
	}

	if _, err := req.Board.Write(ctx, models.NamespaceAffiliate, req.WorkflowID, result, blackboard.WriteOptions{}); err != nil {
		return nil, fmt.Errorf("persisting affiliate links: %w", err)
	}
	return result, nil
}
