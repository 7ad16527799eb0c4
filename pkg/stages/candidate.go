package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// catalogEntry is one template the generator instantiates per workflow.
// The catalog is static so runs are deterministic and testable; a real
// deployment would query inventory providers here.
type catalogEntry struct {
	name        string
	description string
	price       float64
	rating      float64
	tags        []string
}

var catalog = map[models.Category][]catalogEntry{
	models.CategoryHotel: {
		{"Grand Plaza Hotel", "Full-service hotel in the city center", 240, 4.6, []string{"central", "spa", "breakfast"}},
		{"Riverside Boutique", "Small boutique hotel by the river", 180, 4.4, []string{"boutique", "quiet"}},
		{"Transit Inn", "Budget stay near the main station", 85, 3.7, []string{"budget", "transit"}},
		{"Skyline Suites", "Serviced apartments with a view", 310, 4.8, []string{"apartment", "view", "kitchen"}},
	},
	models.CategoryFlight: {
		{"Nonstop morning flight", "Direct, departs 08:10", 420, 4.5, []string{"nonstop", "morning"}},
		{"One-stop economy", "Single layover, departs 13:40", 290, 3.9, []string{"one-stop", "cheap"}},
		{"Evening nonstop", "Direct, departs 19:25", 460, 4.3, []string{"nonstop", "evening"}},
	},
	models.CategoryActivity: {
		{"Old town walking tour", "Three-hour guided walk", 35, 4.7, []string{"walking", "history"}},
		{"Harbor kayak rental", "Half-day kayak with gear", 55, 4.5, []string{"outdoor", "water"}},
		{"Museum day pass", "Entry to four major museums", 48, 4.2, []string{"museum", "indoor"}},
		{"Food market tasting", "Evening tasting across six stalls", 62, 4.8, []string{"food", "evening"}},
	},
	models.CategoryRestaurant: {
		{"Casa Verde", "Seasonal tasting menu", 95, 4.9, []string{"fine-dining", "seasonal"}},
		{"Harbor Grill", "Seafood on the waterfront", 60, 4.4, []string{"seafood", "view"}},
		{"Corner Noodles", "Quick bowls, open late", 18, 4.1, []string{"casual", "late-night"}},
	},
	models.CategoryCar: {
		{"Compact automatic", "City-friendly compact", 42, 4.2, []string{"compact", "automatic"}},
		{"Midsize SUV", "Room for four plus luggage", 78, 4.5, []string{"suv", "family"}},
		{"Convertible", "Two-seater for coastal drives", 120, 4.6, []string{"convertible", "premium"}},
	},
}

// categoryKeyPrefix maps a category to its blackboard key prefix in the
// candidates namespace. The prefixes line up with the category TTL rules,
// so flight candidates expire fast and activities live for a day.
var categoryKeyPrefix = map[models.Category]string{
	models.CategoryHotel:      "hotels",
	models.CategoryFlight:     "flights",
	models.CategoryActivity:   "activities",
	models.CategoryRestaurant: "restaurants",
	models.CategoryCar:        "cars",
}

// GenerateCandidates produces the candidate pool for a trip request and
// persists each category's slice to the candidates namespace under
// "{prefix}-{workflowID}". When the catalog falls short of
// min_candidates, the pool is padded with flagged placeholders so the
// pipeline always has enough to work with.
func GenerateCandidates(ctx context.Context, req *Request) (any, error) {
	trip, ok := req.Inputs["trip-request"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing or malformed trip-request input")
	}
	request, _ := trip["request"].(map[string]any)
	destination := destinationFrom(request)
	minCandidates := configInt(req.Config, "min_candidates", 3)

	perCategory := make(map[models.Category][]Candidate, len(catalog))
	total := 0
	for _, category := range models.AllCategories() {
		generated := instantiate(category, destination, req.WorkflowID)
		perCategory[category] = generated
		total += len(generated)
	}

	for n := 1; total < minCandidates; n++ {
		for _, category := range models.AllCategories() {
			if total >= minCandidates {
				break
			}
			perCategory[category] = append(perCategory[category], placeholderCandidate(category, destination, req.WorkflowID, n))
			total++
		}
	}

	set := &CandidateSet{WorkflowID: req.WorkflowID}
	for _, category := range models.AllCategories() {
		generated := perCategory[category]
		set.Candidates = append(set.Candidates, generated...)

		key := categoryKeyPrefix[category] + "-" + req.WorkflowID
		if _, err := req.Board.Write(ctx, models.NamespaceCandidates, key, generated, blackboard.WriteOptions{}); err != nil {
			return nil, fmt.Errorf("persisting %s candidates: %w", category, err)
		}
	}
	return set, nil
}

// placeholderCandidate synthesizes a flagged stand-in for a category
// whose providers came up short of the configured minimum.
func placeholderCandidate(category models.Category, destination, workflowID string, n int) Candidate {
	return Candidate{
		ID:          fmt.Sprintf("%s-%s-standby-%d", category, shortID(workflowID), n),
		Category:    category,
		Name:        fmt.Sprintf("Standby %s option %d", category, n),
		Description: "Placeholder pending provider availability",
		Location:    destination,
		Price:       100,
		Rating:      3.0,
		Tags:        []string{"placeholder"},
		Placeholder: true,
	}
}

// instantiate stamps the static catalog entries for one category into
// workflow-scoped candidates.
func instantiate(category models.Category, destination, workflowID string) []Candidate {
	entries := catalog[category]
	candidates := make([]Candidate, len(entries))
	for i, e := range entries {
		candidates[i] = Candidate{
			ID:          fmt.Sprintf("%s-%s-%d", category, shortID(workflowID), i+1),
			Category:    category,
			Name:        e.name,
			Description: e.description,
			Location:    destination,
			Price:       e.price,
			Rating:      e.rating,
			Tags:        e.tags,
		}
	}
	return candidates
}

func destinationFrom(request map[string]any) string {
	if d, ok := request["destination"].(string); ok && d != "" {
		return d
	}
	return "unspecified"
}

// shortID keeps candidate IDs readable when workflow IDs are UUIDs.
func shortID(workflowID string) string {
	if i := strings.IndexByte(workflowID, '-'); i > 0 {
		return workflowID[:i]
	}
	if len(workflowID) > 8 {
		return workflowID[:8]
	}
	return workflowID
}
