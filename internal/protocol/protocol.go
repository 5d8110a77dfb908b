// Package protocol defines the JSON wire messages exchanged with room
// clients. Every message carries a "type" discriminator; payload shapes
// are fixed per type.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client -> server action types.
const (
	ActionPing          = "ping"
	ActionUserToVote    = "userToVote"
	ActionChangeRole    = "changeRole"
	ActionRoundToReveal = "roundToReveal"
	ActionCancelReveal  = "cancelReveal"
	ActionRoundToStart  = "roundToStart"
)

// Server -> client event types.
const (
	EventUsersUpdated         = "usersUpdated"
	EventRoundRevealAvailable = "roundRevealAvailable"
	EventUserVoted            = "userVoted"
	EventRoundToReveal        = "roundToReveal"
	EventCancelReveal         = "cancelReveal"
	EventRoundRevealed        = "roundRevealed"
	EventRoundStarted         = "roundStarted"
	EventPong                 = "pong"
)

const (
	RoleVoter     = "voter"
	RoleSpectator = "spectator"
)

type Action struct {
	Type        string `json:"type"`
	Username    string `json:"username,omitempty"`
	StoryPoints int    `json:"storyPoints,omitempty"`
	Role        string `json:"role,omitempty"`
}

// DecodeAction parses one inbound frame. Malformed JSON, an unknown type
// or a bad role value is an error; callers drop the frame and keep the
// connection alive.
func DecodeAction(data []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	switch a.Type {
	case ActionPing, ActionUserToVote, ActionRoundToReveal, ActionCancelReveal, ActionRoundToStart:
	case ActionChangeRole:
		if a.Role != RoleVoter && a.Role != RoleSpectator {
			return Action{}, fmt.Errorf("decode action: bad role %q", a.Role)
		}
	default:
		return Action{}, fmt.Errorf("decode action: unknown type %q", a.Type)
	}
	return a, nil
}

type Event struct {
	Type string `json:"type"`
}

type UserInfo struct {
	Username string `json:"username"`
	IsVoter  bool   `json:"isVoter"`
	HasVoted bool   `json:"hasVoted"`
}

type UsersUpdatedEvent struct {
	Event
	Users []UserInfo `json:"users"`
}

type RoundRevealAvailableEvent struct {
	Event
	RevealAvailable bool `json:"revealAvailable"`
}

// UserVotedEvent deliberately omits the points; they stay hidden until
// the round is revealed.
type UserVotedEvent struct {
	Event
	Username string `json:"username"`
}

type RoundToRevealEvent struct {
	Event
	After int `json:"after"` // grace interval in milliseconds
}

type CancelRevealEvent struct {
	Event
}

type RoundRevealedEvent struct {
	Event
	Votes        map[string]int `json:"votes"`
	AverageScore float64        `json:"averageScore"`
}

type RoundStartedEvent struct {
	Event
}

type PongEvent struct {
	Event
}
