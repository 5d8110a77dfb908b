package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAction(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    Action
		wantErr bool
	}{
		{
			name:    "vote",
			payload: `{"type":"userToVote","username":"alice","storyPoints":5}`,
			want:    Action{Type: ActionUserToVote, Username: "alice", StoryPoints: 5},
		},
		{
			name:    "ping",
			payload: `{"type":"ping"}`,
			want:    Action{Type: ActionPing},
		},
		{
			name:    "change role",
			payload: `{"type":"changeRole","username":"alice","role":"spectator"}`,
			want:    Action{Type: ActionChangeRole, Username: "alice", Role: RoleSpectator},
		},
		{
			name:    "reveal",
			payload: `{"type":"roundToReveal"}`,
			want:    Action{Type: ActionRoundToReveal},
		},
		{
			name:    "bad role",
			payload: `{"type":"changeRole","username":"alice","role":"admin"}`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			payload: `{"type":"selfDestruct"}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			payload: `{"type":`,
			wantErr: true,
		},
		{
			name:    "missing type",
			payload: `{"username":"alice"}`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeAction([]byte(tc.payload))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEventWireShape(t *testing.T) {
	payload, err := json.Marshal(UserVotedEvent{
		Event:    Event{Type: EventUserVoted},
		Username: "alice",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"userVoted","username":"alice"}`, string(payload))

	payload, err = json.Marshal(RoundRevealedEvent{
		Event:        Event{Type: EventRoundRevealed},
		Votes:        map[string]int{"alice": 3, "bob": 5},
		AverageScore: 4,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"roundRevealed","votes":{"alice":3,"bob":5},"averageScore":4}`, string(payload))

	payload, err = json.Marshal(UsersUpdatedEvent{
		Event: Event{Type: EventUsersUpdated},
		Users: []UserInfo{{Username: "alice", IsVoter: true, HasVoted: false}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"usersUpdated","users":[{"username":"alice","isVoter":true,"hasVoted":false}]}`, string(payload))

	payload, err = json.Marshal(RoundRevealAvailableEvent{
		Event:           Event{Type: EventRoundRevealAvailable},
		RevealAvailable: true,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"roundRevealAvailable","revealAvailable":true}`, string(payload))
}
