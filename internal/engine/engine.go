package engine

import (
	"errors"
	"maps"
)

var ErrIllegalTransition = errors.New("illegal round transition")
var ErrUnknownUser = errors.New("unknown user")
var ErrInvalidUsername = errors.New("invalid username")
var ErrNotVoter = errors.New("user is not a voter")
var ErrRoleUnchanged = errors.New("role unchanged")
var ErrNotRevealable = errors.New("round not revealable")
var ErrNoVotes = errors.New("no votes to reveal")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Status string

const (
	StatusIdle      Status = "idle"
	StatusVotable   Status = "votable"
	StatusRevealing Status = "revealing"
	StatusRevealed  Status = "revealed"
)

type User struct {
	Username string
	IsVoter  bool
	HasVoted bool
}

// State is the authoritative view of a single room: its roster, the
// round status, and the votes cast in the current round. Votes only ever
// hold entries for users with IsVoter=true.
type State struct {
	Status Status
	Users  map[string]User
	Votes  map[string]int
}

type CommandType string

const (
	CmdJoin         CommandType = "Join"
	CmdLeave        CommandType = "Leave"
	CmdChangeRole   CommandType = "ChangeRole"
	CmdVote         CommandType = "Vote"
	CmdReveal       CommandType = "Reveal"
	CmdCancelReveal CommandType = "CancelReveal"
	CmdCommitReveal CommandType = "CommitReveal"
	CmdStartRound   CommandType = "StartRound"
)

type Command struct {
	Type     CommandType
	Username string
	IsVoter  bool
	Points   int
}

type EventType string

const (
	EvtRosterChanged   EventType = "RosterChanged"
	EvtRevealAvailable EventType = "RevealAvailable"
	EvtUserVoted       EventType = "UserVoted"
	EvtRevealPending   EventType = "RevealPending"
	EvtRevealCancelled EventType = "RevealCancelled"
	EvtRoundRevealed   EventType = "RoundRevealed"
	EvtRoundStarted    EventType = "RoundStarted"
)

type Event struct {
	Type         EventType
	Username     string
	Available    bool
	Votes        map[string]int
	AverageScore float64
}

// Apply runs one command against the state and returns the events to
// broadcast plus the next state. On error the returned state is the input
// unchanged and the caller is expected to drop the command silently.
func Apply(s State, cmd Command) ([]Event, State, error) {
	ns := s
	ns.Users = maps.Clone(s.Users)
	ns.Votes = maps.Clone(s.Votes)

	switch cmd.Type {
	case CmdJoin:
		if cmd.Username == "" {
			return nil, s, ErrInvalidUsername
		}
		// A voter joining mid-round enters with HasVoted=false and is not
		// retroactively added to Votes.
		u := User{Username: cmd.Username, IsVoter: cmd.IsVoter}
		if prev, ok := ns.Users[cmd.Username]; ok && prev.IsVoter && cmd.IsVoter {
			// Reconnect under the same name keeps the recorded vote.
			u.HasVoted = prev.HasVoted
		}
		if !cmd.IsVoter {
			delete(ns.Votes, cmd.Username)
		}
		ns.Users[cmd.Username] = u
		if ns.Status == StatusIdle {
			ns.Status = StatusVotable
		}
		events := []Event{{Type: EvtRosterChanged}}
		events = append(events, settleAfterRosterChange(&ns)...)
		return events, ns, nil

	case CmdLeave:
		if _, ok := ns.Users[cmd.Username]; !ok {
			return nil, s, ErrUnknownUser
		}
		delete(ns.Users, cmd.Username)
		if ns.Status != StatusRevealed {
			delete(ns.Votes, cmd.Username)
		}
		events := []Event{{Type: EvtRosterChanged}}
		events = append(events, settleAfterRosterChange(&ns)...)
		return events, ns, nil

	case CmdChangeRole:
		u, ok := ns.Users[cmd.Username]
		if !ok {
			return nil, s, ErrUnknownUser
		}
		if u.IsVoter == cmd.IsVoter {
			return nil, s, ErrRoleUnchanged
		}
		u.IsVoter = cmd.IsVoter
		u.HasVoted = false
		ns.Users[cmd.Username] = u
		if !cmd.IsVoter && ns.Status != StatusRevealed {
			// A voter turning spectator forfeits their pending vote.
			delete(ns.Votes, cmd.Username)
		}
		events := []Event{{Type: EvtRosterChanged}}
		events = append(events, settleAfterRosterChange(&ns)...)
		return events, ns, nil

	case CmdVote:
		// Votes stay legal during Revealing so a cancelled reveal can
		// return to Votable without anyone re-voting.
		if !acceptsVotes(ns.Status) {
			return nil, s, ErrIllegalTransition
		}
		u, ok := ns.Users[cmd.Username]
		if !ok {
			return nil, s, ErrUnknownUser
		}
		if !u.IsVoter {
			return nil, s, ErrNotVoter
		}
		ns.Votes[cmd.Username] = cmd.Points
		u.HasVoted = true
		ns.Users[cmd.Username] = u
		events := []Event{
			{Type: EvtUserVoted, Username: cmd.Username},
			{Type: EvtRevealAvailable, Available: RevealAvailable(ns)},
		}
		return events, ns, nil

	case CmdReveal:
		if ns.Status != StatusVotable {
			return nil, s, ErrIllegalTransition
		}
		if !RevealAvailable(ns) {
			return nil, s, ErrNotRevealable
		}
		ns.Status = StatusRevealing
		return []Event{{Type: EvtRevealPending}}, ns, nil

	case CmdCancelReveal:
		if ns.Status != StatusRevealing {
			return nil, s, ErrIllegalTransition
		}
		ns.Status = StatusVotable
		return []Event{{Type: EvtRevealCancelled}}, ns, nil

	case CmdCommitReveal:
		if ns.Status != StatusRevealing {
			return nil, s, ErrIllegalTransition
		}
		if len(ns.Votes) == 0 {
			// Guarded against by settleAfterRosterChange; never transition
			// to Revealed over an empty vote set.
			return nil, s, ErrNoVotes
		}
		ns.Status = StatusRevealed
		events := []Event{{
			Type:         EvtRoundRevealed,
			Votes:        maps.Clone(ns.Votes),
			AverageScore: AverageScore(ns.Votes),
		}}
		return events, ns, nil

	case CmdStartRound:
		if ns.Status != StatusRevealed {
			return nil, s, ErrIllegalTransition
		}
		ns.Votes = make(map[string]int)
		for name, u := range ns.Users {
			u.HasVoted = false
			ns.Users[name] = u
		}
		ns.Status = StatusVotable
		events := []Event{
			{Type: EvtRoundStarted},
			{Type: EvtRosterChanged},
			{Type: EvtRevealAvailable, Available: false},
		}
		return events, ns, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func acceptsVotes(st Status) bool {
	return st == StatusVotable || st == StatusRevealing
}

// settleAfterRosterChange recomputes reveal availability after a leave or
// role change, reverting a pending reveal whose vote set just drained.
func settleAfterRosterChange(ns *State) []Event {
	var events []Event
	if ns.Status == StatusRevealing && len(ns.Votes) == 0 {
		ns.Status = StatusVotable
		events = append(events, Event{Type: EvtRevealCancelled})
	}
	if acceptsVotes(ns.Status) {
		events = append(events, Event{Type: EvtRevealAvailable, Available: RevealAvailable(*ns)})
	}
	return events
}
