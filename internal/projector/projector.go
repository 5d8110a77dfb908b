// Package projector keeps a client-side mirror of room state, built
// purely from the frames the coordinator broadcasts. It never computes
// reveal availability or averages itself; the server value always wins.
package projector

import (
	"encoding/json"
	"fmt"

	"github.com/pointdeck/pointdeck/internal/protocol"
)

type User struct {
	Username string
	Voted    bool
	Points   *int
}

type Projector struct {
	voters          []User
	spectators      []User
	revealAvailable bool
	revealing       bool
	revealed        bool
	averageScore    *float64
}

func New() *Projector {
	return &Projector{}
}

// Apply folds one broadcast frame into the mirror.
func (p *Projector) Apply(payload []byte) error {
	var env protocol.Event
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("projector: %w", err)
	}

	switch env.Type {
	case protocol.EventUsersUpdated:
		var ev protocol.UsersUpdatedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("projector: %w", err)
		}
		p.voters = p.voters[:0]
		p.spectators = p.spectators[:0]
		for _, u := range ev.Users {
			if u.IsVoter {
				p.voters = append(p.voters, User{Username: u.Username, Voted: u.HasVoted})
			} else {
				p.spectators = append(p.spectators, User{Username: u.Username})
			}
		}

	case protocol.EventRoundRevealAvailable:
		var ev protocol.RoundRevealAvailableEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("projector: %w", err)
		}
		p.revealAvailable = ev.RevealAvailable

	case protocol.EventUserVoted:
		var ev protocol.UserVotedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("projector: %w", err)
		}
		// Patches exactly one roster entry.
		for i := range p.voters {
			if p.voters[i].Username == ev.Username {
				p.voters[i].Voted = true
				break
			}
		}

	case protocol.EventRoundToReveal:
		p.revealing = true

	case protocol.EventCancelReveal:
		p.revealing = false

	case protocol.EventRoundRevealed:
		var ev protocol.RoundRevealedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("projector: %w", err)
		}
		for i := range p.voters {
			if points, ok := ev.Votes[p.voters[i].Username]; ok {
				v := points
				p.voters[i].Points = &v
			}
		}
		avg := ev.AverageScore
		p.averageScore = &avg
		p.revealing = false
		p.revealed = true

	case protocol.EventRoundStarted:
		for i := range p.voters {
			p.voters[i].Voted = false
			p.voters[i].Points = nil
		}
		p.revealAvailable = false
		p.revealing = false
		p.revealed = false
		p.averageScore = nil

	case protocol.EventPong:
		// liveness only

	default:
		return fmt.Errorf("projector: unhandled frame %q", env.Type)
	}
	return nil
}

func (p *Projector) Voters() []User {
	out := make([]User, len(p.voters))
	copy(out, p.voters)
	return out
}

func (p *Projector) Spectators() []User {
	out := make([]User, len(p.spectators))
	copy(out, p.spectators)
	return out
}

func (p *Projector) RevealAvailable() bool { return p.revealAvailable }

func (p *Projector) Revealing() bool { return p.revealing }

func (p *Projector) Revealed() bool { return p.revealed }

// AverageScore is nil until a reveal commits and again after a new round
// starts.
func (p *Projector) AverageScore() *float64 { return p.averageScore }
