package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// GenerateOutput assembles the final itinerary from the enriched
// selections and, for premium runs, the affiliate booking links. It
// tolerates compensated inputs: a skip-enrichment pass-through yields
// plain entries plus a warning, a skip-affiliate-links pass-through
// yields entries without booking URLs.
//
// The itinerary is written to the strongly consistent itinerary
// namespace before the result is returned, so any reader notified of
// completion sees it.
func GenerateOutput(ctx context.Context, req *Request) (any, error) {
	enriched, err := enrichedSetFrom(req.Inputs["candidates-enriched"])
	if err != nil {
		// Reduced templates feed selections straight into output.
		selections, selErr := selectionSetFrom(req.Inputs["candidates-selected"])
		if selErr != nil {
			return nil, err
		}
		enriched = &EnrichedSet{WorkflowID: selections.WorkflowID, Skipped: true}
		for _, sel := range selections.Selections {
			enriched.Items = append(enriched.Items, EnrichedItem{Selection: sel})
		}
	}
	links, err := affiliateLinksFrom(req.Inputs["affiliate-links"])
	if err != nil {
		return nil, err
	}

	format := configString(req.Config, "format", "itinerary")
	if format != "itinerary" {
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	includeLinks := configBool(req.Config, "include_booking_links", false) && links != nil

	byCandidate := make(map[string]string)
	if includeLinks {
		for _, l := range links.Links {
			byCandidate[l.CandidateID] = l.URL
		}
	}

	itinerary := &Itinerary{
		WorkflowID:  req.WorkflowID,
		Format:      format,
		GeneratedAt: time.Now().UTC(),
	}
	for _, item := range enriched.Items {
		c := item.Selection.Candidate
		itinerary.Entries = append(itinerary.Entries, ItineraryEntry{
			Category:   c.Category,
			Name:       c.Name,
			Location:   c.Location,
			Price:      c.Price,
			Media:      item.Media,
			Highlights: item.Highlights,
			BookingURL: byCandidate[c.ID],
		})
		itinerary.TotalPrice += c.Price
	}
	if len(itinerary.Entries) == 0 {
		return nil, fmt.Errorf("no entries to assemble into an itinerary")
	}
	if enriched.Skipped {
		itinerary.Warnings = append(itinerary.Warnings, "enrichment unavailable, entries are unenriched")
	}
	if includeLinks && links.Skipped {
		itinerary.Warnings = append(itinerary.Warnings, "affiliate service unavailable, booking links omitted")
	}

	if _, err := req.Board.Write(ctx, models.NamespaceItinerary, req.WorkflowID, itinerary, blackboard.WriteOptions{}); err != nil {
		return nil, fmt.Errorf("persisting itinerary: %w", err)
	}
	return itinerary, nil
}
