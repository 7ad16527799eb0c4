package stages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

func newTestBoard(t *testing.T) *blackboard.Blackboard {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	board, err := blackboard.New(config.DefaultBlackboardConfig(), bus)
	require.NoError(t, err)
	return board
}

func testRequest(t *testing.T, inputs, cfg map[string]any) *Request {
	t.Helper()
	return &Request{
		SagaID:     "saga-1",
		WorkflowID: "wf-1",
		StepID:     "step-1",
		Attempt:    1,
		Inputs:     inputs,
		Config:     cfg,
		Board:      newTestBoard(t),
	}
}

func tripRequestInput(request map[string]any) map[string]any {
	return map[string]any{
		"trip-request": map[string]any{
			"workflow_id": "wf-1",
			"saga_id":     "saga-1",
			"request":     request,
		},
	}
}

func TestGenerateCandidates(t *testing.T) {
	req := testRequest(t,
		tripRequestInput(map[string]any{"destination": "Lisbon"}),
		map[string]any{"min_candidates": 3})

	result, err := GenerateCandidates(context.Background(), req)
	require.NoError(t, err)
	set := result.(*CandidateSet)

	assert.Equal(t, "wf-1", set.WorkflowID)
	grouped := set.ByCategory()
	for _, category := range models.AllCategories() {
		assert.NotEmpty(t, grouped[category], "category %s should have candidates", category)
	}
	for _, c := range set.Candidates {
		assert.Equal(t, "Lisbon", c.Location)
		assert.Greater(t, c.Price, 0.0)
	}

	// Each category is persisted under its TTL-matched key prefix.
	entry, err := req.Board.Read(context.Background(), models.NamespaceCandidates, "hotels-wf-1")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.Data.([]Candidate))
	_, err = req.Board.Read(context.Background(), models.NamespaceCandidates, "flights-wf-1")
	require.NoError(t, err)
}

func TestGenerateCandidates_PadsWithPlaceholders(t *testing.T) {
	req := testRequest(t,
		tripRequestInput(map[string]any{"destination": "Lisbon"}),
		map[string]any{"min_candidates": 50})

	result, err := GenerateCandidates(context.Background(), req)
	require.NoError(t, err)
	set := result.(*CandidateSet)

	require.Len(t, set.Candidates, 50)
	placeholders := 0
	for _, c := range set.Candidates {
		if c.Placeholder {
			placeholders++
			assert.Contains(t, c.Tags, "placeholder")
			assert.Contains(t, c.Name, "Standby")
			assert.Equal(t, "Lisbon", c.Location)
		}
	}
	assert.Equal(t, 50-17, placeholders, "catalog entries stay real, the rest are stand-ins")

	// Placeholders land on the blackboard alongside the catalog entries.
	entry, err := req.Board.Read(context.Background(), models.NamespaceCandidates, "hotels-wf-1")
	require.NoError(t, err)
	hotels := entry.Data.([]Candidate)
	assert.Greater(t, len(hotels), 4)
	assert.True(t, hotels[len(hotels)-1].Placeholder)
}

func TestGenerateCandidates_MissingInput(t *testing.T) {
	req := testRequest(t, map[string]any{}, nil)
	_, err := GenerateCandidates(context.Background(), req)
	assert.ErrorContains(t, err, "trip-request")
}

func TestValidateCandidates_FiltersBelowFloor(t *testing.T) {
	input := &CandidateSet{
		WorkflowID: "wf-1",
		Candidates: []Candidate{
			{ID: "a", Category: models.CategoryHotel, Name: "Good Hotel", Price: 150, Rating: 4.8},
			{ID: "b", Category: models.CategoryHotel, Name: "Glitch Hotel", Price: 0, Rating: 5},
			{ID: "c", Category: models.CategoryFlight, Name: "Weak Flight", Price: 900, Rating: 1.2},
		},
	}
	req := testRequest(t,
		map[string]any{"candidates-generated": input},
		map[string]any{"min_quality_score": 0.5})

	result, err := ValidateCandidates(context.Background(), req)
	require.NoError(t, err)
	set := result.(*CandidateSet)

	require.Len(t, set.Candidates, 1)
	assert.Equal(t, "a", set.Candidates[0].ID)
	assert.Greater(t, set.Candidates[0].Quality, 0.5)

	entry, err := req.Board.Read(context.Background(), models.NamespaceEvals, "validation-wf-1")
	require.NoError(t, err)
	summary := entry.Data.(map[string]any)
	assert.Equal(t, 3, summary["candidates_in"])
	assert.Equal(t, 2, summary["rejected"])
}

func TestValidateCandidates_AllRejected(t *testing.T) {
	input := &CandidateSet{
		WorkflowID: "wf-1",
		Candidates: []Candidate{{ID: "a", Name: "Any", Price: 100, Rating: 3}},
	}
	req := testRequest(t,
		map[string]any{"candidates-generated": input},
		map[string]any{"min_quality_score": 0.99})

	_, err := ValidateCandidates(context.Background(), req)
	assert.ErrorContains(t, err, "no candidates passed validation")
}

func TestRankCandidates_DiversityPenalty(t *testing.T) {
	input := &CandidateSet{
		WorkflowID: "wf-1",
		Candidates: []Candidate{
			{ID: "h1", Category: models.CategoryHotel, Quality: 0.95},
			{ID: "h2", Category: models.CategoryHotel, Quality: 0.94},
			{ID: "f1", Category: models.CategoryFlight, Quality: 0.90},
		},
	}
	req := testRequest(t,
		map[string]any{"candidates-validated": input},
		map[string]any{"algorithm": "weighted-score", "diversity_weight": 1.0})

	result, err := RankCandidates(context.Background(), req)
	require.NoError(t, err)
	ranked := result.(*CandidateSet)

	require.Len(t, ranked.Candidates, 3)
	// With full diversity weight the second hotel is penalized below the
	// flight even though its raw quality is higher.
	assert.Equal(t, "h1", ranked.Candidates[0].ID)
	assert.Equal(t, "f1", ranked.Candidates[1].ID)
	assert.Equal(t, "h2", ranked.Candidates[2].ID)
	for _, c := range ranked.Candidates {
		assert.GreaterOrEqual(t, c.Score, 0.0)
	}
}

func TestRankCandidates_UnknownAlgorithm(t *testing.T) {
	req := testRequest(t,
		map[string]any{"candidates-validated": &CandidateSet{WorkflowID: "wf-1"}},
		map[string]any{"algorithm": "coin-flip"})
	_, err := RankCandidates(context.Background(), req)
	assert.ErrorContains(t, err, "coin-flip")
}

func TestSelectCandidates_TopRanked(t *testing.T) {
	input := &CandidateSet{
		WorkflowID: "wf-1",
		Candidates: []Candidate{
			{ID: "h1", Category: models.CategoryHotel, Price: 200, Score: 0.9},
			{ID: "h2", Category: models.CategoryHotel, Price: 100, Score: 0.8},
			{ID: "f1", Category: models.CategoryFlight, Price: 400, Score: 0.7},
		},
	}
	req := testRequest(t,
		map[string]any{"candidates-ranked": input},
		map[string]any{"strategy": "top-ranked", "max_per_category": 1})

	result, err := SelectCandidates(context.Background(), req)
	require.NoError(t, err)
	set := result.(*SelectionSet)

	require.Len(t, set.Selections, 2)
	assert.Equal(t, "h1", set.Selections[0].Candidate.ID)
	assert.Equal(t, "f1", set.Selections[1].Candidate.ID)
	assert.InDelta(t, 600, set.TotalPrice, 0.001)

	// Selection is persisted to the strong selections namespace.
	entry, err := req.Board.Read(context.Background(), models.NamespaceSelections, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, set, entry.Data)
}

func TestSelectCandidates_BudgetAware(t *testing.T) {
	input := &CandidateSet{
		WorkflowID: "wf-1",
		Candidates: []Candidate{
			{ID: "h1", Category: models.CategoryHotel, Price: 300, Score: 0.9},
			{ID: "h2", Category: models.CategoryHotel, Price: 90, Score: 0.8},
			{ID: "f1", Category: models.CategoryFlight, Price: 500, Score: 0.9},
		},
	}
	req := testRequest(t,
		map[string]any{"candidates-ranked": input},
		map[string]any{"strategy": "budget-aware", "max_per_category": 1})
	_, err := req.Board.Write(context.Background(), models.NamespaceConstraints, "wf-1",
		map[string]any{"budget": 200.0}, blackboard.WriteOptions{})
	require.NoError(t, err)

	result, err := SelectCandidates(context.Background(), req)
	require.NoError(t, err)
	set := result.(*SelectionSet)

	// Only the cheap hotel fits: best value per category, then the
	// budget cap rejects the flight.
	require.Len(t, set.Selections, 1)
	assert.Equal(t, "h2", set.Selections[0].Candidate.ID)
	assert.LessOrEqual(t, set.TotalPrice, 200.0)
}

func TestSelectCandidates_FallsBackToValidatedInput(t *testing.T) {
	input := &CandidateSet{
		WorkflowID: "wf-1",
		Candidates: []Candidate{
			{ID: "h1", Category: models.CategoryHotel, Price: 120, Quality: 0.8},
		},
	}
	req := testRequest(t,
		map[string]any{"candidates-validated": input},
		map[string]any{"strategy": "top-ranked", "max_per_category": 1})

	result, err := SelectCandidates(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.(*SelectionSet).Selections, 1)
}

func TestEnrichSelections(t *testing.T) {
	input := &SelectionSet{
		WorkflowID: "wf-1",
		Selections: []Selection{
			{Candidate: Candidate{ID: "h1", Category: models.CategoryHotel, Name: "Grand Plaza Hotel", Rating: 4.6, Tags: []string{"central", "spa"}}},
		},
	}
	req := testRequest(t,
		map[string]any{"candidates-selected": input},
		map[string]any{"include_media": true})

	result, err := EnrichSelections(context.Background(), req)
	require.NoError(t, err)
	set := result.(*EnrichedSet)

	require.Len(t, set.Items, 1)
	item := set.Items[0]
	require.Len(t, item.Media, 2)
	assert.Contains(t, item.Media[0].URL, "hotel/grand-plaza-hotel")
	assert.Contains(t, item.Highlights, "central")
	assert.Contains(t, item.Highlights, "rated 4.6 by travelers")
	assert.False(t, set.Skipped)

	_, err = req.Board.Read(context.Background(), models.NamespaceMedia, "wf-1")
	require.NoError(t, err)
}

func TestEnrichSelections_NoMedia(t *testing.T) {
	input := &SelectionSet{
		WorkflowID: "wf-1",
		Selections: []Selection{{Candidate: Candidate{ID: "h1", Name: "Plain", Rating: 3}}},
	}
	req := testRequest(t,
		map[string]any{"candidates-selected": input},
		map[string]any{"include_media": false})

	result, err := EnrichSelections(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, result.(*EnrichedSet).Items[0].Media)
}

func TestAffiliateService_GenerateLinks(t *testing.T) {
	input := &SelectionSet{
		WorkflowID: "wf-1",
		Selections: []Selection{
			{Candidate: Candidate{ID: "hotel-a-1", Category: models.CategoryHotel}},
			{Candidate: Candidate{ID: "flight-a-1", Category: models.CategoryFlight}},
		},
	}
	req := testRequest(t,
		map[string]any{"candidates-selected": input},
		map[string]any{"provider": "trippartner"})

	svc := NewAffiliateService(0)
	result, err := svc.GenerateLinks(context.Background(), req)
	require.NoError(t, err)
	set := result.(*AffiliateLinkSet)

	require.Len(t, set.Links, 2)
	assert.Equal(t, "hotel-a-1", set.Links[0].CandidateID)
	assert.Contains(t, set.Links[0].URL, "book.trippartner.example/hotel/hotel-a-1")

	_, err = req.Board.Read(context.Background(), models.NamespaceAffiliate, "wf-1")
	require.NoError(t, err)
}

func TestAffiliateService_HonorsCancellation(t *testing.T) {
	input := &SelectionSet{
		WorkflowID: "wf-1",
		Selections: []Selection{{Candidate: Candidate{ID: "h1"}}},
	}
	req := testRequest(t, map[string]any{"candidates-selected": input}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewAffiliateService(time.Minute)
	_, err := svc.GenerateLinks(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateOutput_FromEnriched(t *testing.T) {
	enriched := &EnrichedSet{
		WorkflowID: "wf-1",
		Items: []EnrichedItem{
			{
				Selection:  Selection{Candidate: Candidate{ID: "h1", Category: models.CategoryHotel, Name: "Grand Plaza Hotel", Location: "Lisbon", Price: 240}},
				Media:      []MediaAsset{{Kind: "image", URL: "https://media.tripsmith.io/hotel/grand-plaza-hotel/hero.jpg"}},
				Highlights: []string{"central"},
			},
		},
	}
	req := testRequest(t,
		map[string]any{"candidates-enriched": enriched},
		map[string]any{"format": "itinerary"})

	result, err := GenerateOutput(context.Background(), req)
	require.NoError(t, err)
	itinerary := result.(*Itinerary)

	require.Len(t, itinerary.Entries, 1)
	assert.Equal(t, "Grand Plaza Hotel", itinerary.Entries[0].Name)
	assert.InDelta(t, 240, itinerary.TotalPrice, 0.001)
	assert.Empty(t, itinerary.Warnings)

	// The itinerary lands in the strong namespace before the stage replies.
	entry, err := req.Board.Read(context.Background(), models.NamespaceItinerary, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, itinerary, entry.Data)
}

func TestGenerateOutput_CompensatedEnrichment(t *testing.T) {
	selections := &SelectionSet{
		WorkflowID: "wf-1",
		Selections: []Selection{{Candidate: Candidate{ID: "h1", Category: models.CategoryHotel, Name: "Plain Hotel", Price: 100}}},
	}
	// Shape produced by the skip-enrichment compensation.
	compensated := map[string]any{
		"items":              selections,
		"enrichment_skipped": true,
	}
	req := testRequest(t,
		map[string]any{"candidates-enriched": compensated},
		map[string]any{"format": "itinerary"})

	result, err := GenerateOutput(context.Background(), req)
	require.NoError(t, err)
	itinerary := result.(*Itinerary)

	require.Len(t, itinerary.Entries, 1)
	assert.Empty(t, itinerary.Entries[0].Media)
	require.Len(t, itinerary.Warnings, 1)
	assert.Contains(t, itinerary.Warnings[0], "enrichment unavailable")
}

func TestGenerateOutput_WithAffiliateLinks(t *testing.T) {
	enriched := &EnrichedSet{
		WorkflowID: "wf-1",
		Items:      []EnrichedItem{{Selection: Selection{Candidate: Candidate{ID: "h1", Category: models.CategoryHotel, Name: "Grand Plaza Hotel", Price: 240}}}},
	}
	links := &AffiliateLinkSet{
		WorkflowID: "wf-1",
		Links:      []AffiliateLink{{CandidateID: "h1", Provider: "trippartner", URL: "https://book.trippartner.example/hotel/h1"}},
	}
	req := testRequest(t,
		map[string]any{"candidates-enriched": enriched, "affiliate-links": links},
		map[string]any{"format": "itinerary", "include_booking_links": true})

	result, err := GenerateOutput(context.Background(), req)
	require.NoError(t, err)
	itinerary := result.(*Itinerary)
	assert.Equal(t, "https://book.trippartner.example/hotel/h1", itinerary.Entries[0].BookingURL)
}

func TestGenerateOutput_CompensatedAffiliateLinks(t *testing.T) {
	enriched := &EnrichedSet{
		WorkflowID: "wf-1",
		Items:      []EnrichedItem{{Selection: Selection{Candidate: Candidate{ID: "h1", Category: models.CategoryHotel, Name: "Grand Plaza Hotel", Price: 240}}}},
	}
	// Shape produced by the skip-affiliate-links compensation.
	compensated := map[string]any{"links": []any{}, "skipped": true}
	req := testRequest(t,
		map[string]any{"candidates-enriched": enriched, "affiliate-links": compensated},
		map[string]any{"format": "itinerary", "include_booking_links": true})

	result, err := GenerateOutput(context.Background(), req)
	require.NoError(t, err)
	itinerary := result.(*Itinerary)
	assert.Empty(t, itinerary.Entries[0].BookingURL)
	require.Len(t, itinerary.Warnings, 1)
	assert.Contains(t, itinerary.Warnings[0], "affiliate service unavailable")
}

func TestGenerateOutput_UnknownFormat(t *testing.T) {
	req := testRequest(t,
		map[string]any{"candidates-enriched": &EnrichedSet{WorkflowID: "wf-1", Items: []EnrichedItem{{}}}},
		map[string]any{"format": "csv"})
	_, err := GenerateOutput(context.Background(), req)
	assert.ErrorContains(t, err, "csv")
}
