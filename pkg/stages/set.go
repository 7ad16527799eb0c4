package stages

import (
	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/events"
)

// Set bundles the full in-process participant roster: the six pipeline
// stages plus the simulated affiliate service. Targets match the step
// targets of the built-in workflow templates.
type Set struct {
	participants []*Participant
}

// NewSet builds the roster against the shared blackboard.
func NewSet(cfg *config.StagesConfig, board *blackboard.Blackboard) *Set {
	affiliate := NewAffiliateService(cfg.AffiliateLatency)
	return &Set{
		participants: []*Participant{
			NewParticipant("candidate", board, GenerateCandidates),
			NewParticipant("validation", board, ValidateCandidates),
			NewParticipant("ranking", board, RankCandidates),
			NewParticipant("selection", board, SelectCandidates),
			NewParticipant("enrichment", board, EnrichSelections),
			NewParticipant("output", board, GenerateOutput),
			NewParticipant("affiliate-service", board, affiliate.GenerateLinks),
		},
	}
}

// Attach subscribes every participant to its request topic.
func (s *Set) Attach(bus *events.Bus) {
	for _, p := range s.participants {
		p.Attach(bus)
	}
}

// Detach removes every participant's subscription.
func (s *Set) Detach(bus *events.Bus) {
	for _, p := range s.participants {
		p.Detach(bus)
	}
}

// Participants exposes the roster, primarily for tests.
func (s *Set) Participants() []*Participant {
	return s.participants
}
