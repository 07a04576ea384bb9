// Package sim generates synthetic registry traffic for demos and load
// checks: a fixed cast of participants registering identities and a random
// mix of the mutations an admin performs on them.
package sim

import (
	"fmt"
	"math/rand"
	"time"
)

type Participant struct {
	Address string
	HipID   string
	Label   string
	Pointer string
}

// ActionKind enumerates the mutations the generator emits after the
// initial registrations.
type ActionKind string

const (
	ActionUpdateContent ActionKind = "update_content"
	ActionVerify        ActionKind = "verify"
	ActionReputation    ActionKind = "reputation"
	ActionInteraction   ActionKind = "interaction"
)

type Action struct {
	Kind    ActionKind
	HipID   string
	Owner   string
	Pointer string
	Level   int
}

type Scenario struct {
	Name         string
	Participants []Participant
}

func CommunityOnboardingScenario() Scenario {
	return Scenario{
		Name: "CommunityOnboarding",
		Participants: []Participant{
			{Address: "addr-sim-001", HipID: "HIP-sim-001", Label: "Archivist collective", Pointer: "ipfs://QmSimArchivist"},
			{Address: "addr-sim-002", HipID: "HIP-sim-002", Label: "Translation guild", Pointer: "ipfs://QmSimTranslator"},
			{Address: "addr-sim-003", HipID: "HIP-sim-003", Label: "Field researcher", Pointer: "ipfs://QmSimResearcher"},
			{Address: "addr-sim-004", HipID: "HIP-sim-004", Label: "Community moderator", Pointer: "ipfs://QmSimModerator"},
		},
	}
}

type Generator struct {
	scenario Scenario
	rnd      *rand.Rand
	revision int
}

func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{scenario: CommunityOnboardingScenario(), rnd: rand.New(rand.NewSource(seed))}
}

// Participants returns a copy of the scenario cast.
func (g *Generator) Participants() []Participant {
	return append([]Participant(nil), g.scenario.Participants...)
}

func (g *Generator) OverrideParticipants(participants []Participant) {
	g.scenario.Participants = append([]Participant(nil), participants...)
}

// NextAction picks a random mutation against a random participant.
func (g *Generator) NextAction() Action {
	ps := g.scenario.Participants
	if len(ps) == 0 {
		panic("scenario requires at least one participant")
	}
	p := ps[g.rnd.Intn(len(ps))]
	switch []ActionKind{ActionUpdateContent, ActionVerify, ActionReputation, ActionInteraction}[g.rnd.Intn(4)] {
	case ActionUpdateContent:
		g.revision++
		return Action{
			Kind:    ActionUpdateContent,
			HipID:   p.HipID,
			Owner:   p.Address,
			Pointer: fmt.Sprintf("%s-rev%d", p.Pointer, g.revision),
		}
	case ActionVerify:
		return Action{Kind: ActionVerify, HipID: p.HipID, Owner: p.Address}
	case ActionReputation:
		return Action{
			Kind:  ActionReputation,
			HipID: p.HipID,
			Owner: p.Address,
			Level: 1 + g.rnd.Intn(5),
		}
	default:
		return Action{Kind: ActionInteraction, HipID: p.HipID, Owner: p.Address}
	}
}
