package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// EnrichSelections attaches media and highlight blurbs to every selected
// candidate. Media assets are also persisted to the media namespace so
// repeated runs against the same workflow reuse them via TTL caching.
func EnrichSelections(ctx context.Context, req *Request) (any, error) {
	selections, err := selectionSetFrom(req.Inputs["candidates-selected"])
	if err != nil {
		return nil, err
	}
	includeMedia := configBool(req.Config, "include_media", true)

	enriched := &EnrichedSet{WorkflowID: selections.WorkflowID}
	var assets []MediaAsset
	for _, sel := range selections.Selections {
		item := EnrichedItem{
			Selection:  sel,
			Highlights: highlightsFor(sel.Candidate),
		}
		if includeMedia {
			item.Media = mediaFor(sel.Candidate)
			assets = append(assets, item.Media...)
		}
		enriched.Items = append(enriched.Items, item)
	}

	if len(assets) > 0 {
		if _, err := req.Board.Write(ctx, models.NamespaceMedia, req.WorkflowID, assets, blackboard.WriteOptions{}); err != nil {
			return nil, fmt.Errorf("persisting media assets: %w", err)
		}
	}
	return enriched, nil
}

// mediaFor derives deterministic asset URLs from the candidate identity.
// A production deployment would resolve these against a media CDN.
func mediaFor(c Candidate) []MediaAsset {
	base := fmt.Sprintf("https://media.tripsmith.io/%s/%s", c.Category, slug(c.Name))
	return []MediaAsset{
		{Kind: "image", URL: base + "/hero.jpg"},
		{Kind: "image", URL: base + "/gallery-1.jpg"},
	}
}

func highlightsFor(c Candidate) []string {
	highlights := make([]string, 0, len(c.Tags)+1)
	for _, tag := range c.Tags {
		highlights = append(highlights, strings.ReplaceAll(tag, "-", " "))
	}
	if c.Rating >= 4.5 {
		highlights = append(highlights, fmt.Sprintf("rated %.1f by travelers", c.Rating))
	}
	return highlights
}

func slug(name string) string {
	s := strings.ToLower(name)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-':
			return '-'
		default:
			return -1
		}
	}, s)
	return strings.Trim(s, "-")
}
