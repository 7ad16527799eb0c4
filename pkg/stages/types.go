package stages

import (
	"fmt"
	"time"

	"github.com/tripsmith/tripsmith/pkg/models"
)

// Candidate is one travel option produced by candidate generation and
// refined by the later pipeline stages. Quality is set by validation,
// Score by ranking; both are zero before their stage runs.
type Candidate struct {
	ID          string          `json:"id"`
	Category    models.Category `json:"category"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location"`
	Price       float64         `json:"price"`
	Rating      float64         `json:"rating"` // 0..5
	Tags        []string        `json:"tags,omitempty"`
	Quality     float64         `json:"quality,omitempty"`
	Score       float64         `json:"score,omitempty"`
	// Placeholder marks a synthesized stand-in generated when providers
	// fall short of the configured minimum candidate count.
	Placeholder bool `json:"placeholder,omitempty"`
}

// CandidateSet is the working set handed from one stage to the next.
type CandidateSet struct {
	WorkflowID string      `json:"workflow_id"`
	Candidates []Candidate `json:"candidates"`
}

// ByCategory groups the set's candidates preserving slice order.
func (s *CandidateSet) ByCategory() map[models.Category][]Candidate {
	grouped := make(map[models.Category][]Candidate)
	for _, c := range s.Candidates {
		grouped[c.Category] = append(grouped[c.Category], c)
	}
	return grouped
}

// Selection is one candidate chosen for the itinerary plus the reason
// the strategy picked it.
type Selection struct {
	Candidate Candidate `json:"candidate"`
	Reason    string    `json:"reason"`
}

// SelectionSet is the selection stage's result, also persisted to the
// selections namespace.
type SelectionSet struct {
	WorkflowID string      `json:"workflow_id"`
	Strategy   string      `json:"strategy"`
	Selections []Selection `json:"selections"`
	TotalPrice float64     `json:"total_price"`
}

// MediaAsset is one piece of media attached during enrichment.
type MediaAsset struct {
	Kind string `json:"kind"` // "image" or "video"
	URL  string `json:"url"`
}

// EnrichedItem is a selection with its enrichment attachments.
type EnrichedItem struct {
	Selection  Selection    `json:"selection"`
	Media      []MediaAsset `json:"media,omitempty"`
	Highlights []string     `json:"highlights,omitempty"`
}

// EnrichedSet is the enrichment stage's result. Skipped is true when the
// items passed through a skip-enrichment compensation instead of the
// enrichment stage.
type EnrichedSet struct {
	WorkflowID string         `json:"workflow_id"`
	Items      []EnrichedItem `json:"items"`
	Skipped    bool           `json:"skipped,omitempty"`
}

// AffiliateLink is one booking link from the affiliate service.
type AffiliateLink struct {
	CandidateID string `json:"candidate_id"`
	Provider    string `json:"provider"`
	URL         string `json:"url"`
}

// AffiliateLinkSet is the affiliate service's result for one workflow.
type AffiliateLinkSet struct {
	WorkflowID string          `json:"workflow_id"`
	Links      []AffiliateLink `json:"links"`
	Skipped    bool            `json:"skipped,omitempty"`
}

// ItineraryEntry is one line of the final itinerary.
type ItineraryEntry struct {
	Category   models.Category `json:"category"`
	Name       string          `json:"name"`
	Location   string          `json:"location"`
	Price      float64         `json:"price"`
	Media      []MediaAsset    `json:"media,omitempty"`
	Highlights []string        `json:"highlights,omitempty"`
	BookingURL string          `json:"booking_url,omitempty"`
}

// Itinerary is the output stage's result, persisted to the itinerary
// namespace before the workflow finalizes.
type Itinerary struct {
	WorkflowID  string           `json:"workflow_id"`
	Format      string           `json:"format"`
	GeneratedAt time.Time        `json:"generated_at"`
	Entries     []ItineraryEntry `json:"entries"`
	TotalPrice  float64          `json:"total_price"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// candidateSetFrom coerces a stage input back into a candidate set.
// Inputs travel in-process, so the typed value normally survives as-is.
func candidateSetFrom(v any) (*CandidateSet, error) {
	switch set := v.(type) {
	case *CandidateSet:
		return set, nil
	case CandidateSet:
		return &set, nil
	default:
		return nil, fmt.Errorf("expected candidate set, got %T", v)
	}
}

// selectionSetFrom coerces a stage input back into a selection set.
func selectionSetFrom(v any) (*SelectionSet, error) {
	switch set := v.(type) {
	case *SelectionSet:
		return set, nil
	case SelectionSet:
		return &set, nil
	default:
		return nil, fmt.Errorf("expected selection set, got %T", v)
	}
}

// enrichedSetFrom coerces the output stage's enrichment input. Besides
// the typed set it accepts the skip-enrichment compensation shape, a map
// carrying the raw selections under "items".
func enrichedSetFrom(v any) (*EnrichedSet, error) {
	switch set := v.(type) {
	case *EnrichedSet:
		return set, nil
	case EnrichedSet:
		return &set, nil
	case map[string]any:
		selections, err := selectionSetFrom(set["items"])
		if err != nil {
			return nil, fmt.Errorf("compensated enrichment input: %w", err)
		}
		items := make([]EnrichedItem, len(selections.Selections))
		for i, sel := range selections.Selections {
			items[i] = EnrichedItem{Selection: sel}
		}
		return &EnrichedSet{WorkflowID: selections.WorkflowID, Items: items, Skipped: true}, nil
	default:
		return nil, fmt.Errorf("expected enriched set, got %T", v)
	}
}

// affiliateLinksFrom coerces the output stage's optional affiliate
// input, accepting the skip-affiliate-links compensation shape.
func affiliateLinksFrom(v any) (*AffiliateLinkSet, error) {
	switch set := v.(type) {
	case nil:
		return nil, nil
	case *AffiliateLinkSet:
		return set, nil
	case AffiliateLinkSet:
		return &set, nil
	case map[string]any:
		// Compensation pass-through: empty links, flagged skipped.
		return &AffiliateLinkSet{Skipped: true}, nil
	default:
		return nil, fmt.Errorf("expected affiliate link set, got %T", v)
	}
}

// configFloat reads a numeric step-config value, tolerating the int
// shapes YAML decoding produces.
func configFloat(cfg map[string]any, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// configInt reads an integer step-config value.
func configInt(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// configString reads a string step-config value.
func configString(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

// configBool reads a boolean step-config value.
func configBool(cfg map[string]any, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}
