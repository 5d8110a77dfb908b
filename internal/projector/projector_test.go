package projector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointdeck/pointdeck/internal/protocol"
)

func frame(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return payload
}

func TestProjector_FollowsRoundLifecycle(t *testing.T) {
	p := New()

	require.NoError(t, p.Apply(frame(t, protocol.UsersUpdatedEvent{
		Event: protocol.Event{Type: protocol.EventUsersUpdated},
		Users: []protocol.UserInfo{
			{Username: "alice", IsVoter: true},
			{Username: "bob", IsVoter: true},
			{Username: "sam", IsVoter: false},
		},
	})))

	require.Len(t, p.Voters(), 2)
	require.Len(t, p.Spectators(), 1)
	assert.Equal(t, "sam", p.Spectators()[0].Username)

	// userVoted patches exactly one entry and hides the points.
	require.NoError(t, p.Apply(frame(t, protocol.UserVotedEvent{
		Event:    protocol.Event{Type: protocol.EventUserVoted},
		Username: "alice",
	})))
	voters := p.Voters()
	assert.True(t, voters[0].Voted)
	assert.Nil(t, voters[0].Points)
	assert.False(t, voters[1].Voted)

	require.NoError(t, p.Apply(frame(t, protocol.RoundRevealAvailableEvent{
		Event:           protocol.Event{Type: protocol.EventRoundRevealAvailable},
		RevealAvailable: true,
	})))
	assert.True(t, p.RevealAvailable())

	require.NoError(t, p.Apply(frame(t, protocol.RoundToRevealEvent{
		Event: protocol.Event{Type: protocol.EventRoundToReveal},
		After: 5000,
	})))
	assert.True(t, p.Revealing())
	assert.False(t, p.Revealed())

	require.NoError(t, p.Apply(frame(t, protocol.RoundRevealedEvent{
		Event:        protocol.Event{Type: protocol.EventRoundRevealed},
		Votes:        map[string]int{"alice": 3, "bob": 5},
		AverageScore: 4,
	})))
	assert.False(t, p.Revealing())
	assert.True(t, p.Revealed())
	require.NotNil(t, p.AverageScore())
	assert.InDelta(t, 4, *p.AverageScore(), 1e-9)

	voters = p.Voters()
	require.NotNil(t, voters[0].Points)
	assert.Equal(t, 3, *voters[0].Points)
	require.NotNil(t, voters[1].Points)
	assert.Equal(t, 5, *voters[1].Points)

	// A new round wipes the mirror's derived fields.
	require.NoError(t, p.Apply(frame(t, protocol.RoundStartedEvent{
		Event: protocol.Event{Type: protocol.EventRoundStarted},
	})))
	assert.False(t, p.Revealed())
	assert.False(t, p.RevealAvailable())
	assert.Nil(t, p.AverageScore())
	for _, v := range p.Voters() {
		assert.False(t, v.Voted)
		assert.Nil(t, v.Points)
	}
}

func TestProjector_CancelRevealReturnsToVoting(t *testing.T) {
	p := New()

	require.NoError(t, p.Apply(frame(t, protocol.RoundToRevealEvent{
		Event: protocol.Event{Type: protocol.EventRoundToReveal},
		After: 5000,
	})))
	require.True(t, p.Revealing())

	require.NoError(t, p.Apply(frame(t, protocol.CancelRevealEvent{
		Event: protocol.Event{Type: protocol.EventCancelReveal},
	})))
	assert.False(t, p.Revealing())
	assert.False(t, p.Revealed())
}

func TestProjector_VoterMissingFromVotesKeepsNilPoints(t *testing.T) {
	p := New()

	require.NoError(t, p.Apply(frame(t, protocol.UsersUpdatedEvent{
		Event: protocol.Event{Type: protocol.EventUsersUpdated},
		Users: []protocol.UserInfo{
			{Username: "alice", IsVoter: true},
			{Username: "carol", IsVoter: true}, // joined mid-round, never voted
		},
	})))

	require.NoError(t, p.Apply(frame(t, protocol.RoundRevealedEvent{
		Event:        protocol.Event{Type: protocol.EventRoundRevealed},
		Votes:        map[string]int{"alice": 8},
		AverageScore: 8,
	})))

	voters := p.Voters()
	require.NotNil(t, voters[0].Points)
	assert.Nil(t, voters[1].Points)
}

func TestProjector_RejectsUnknownFrames(t *testing.T) {
	p := New()
	assert.Error(t, p.Apply([]byte(`{"type":"mystery"}`)))
	assert.Error(t, p.Apply([]byte(`not json`)))
	assert.NoError(t, p.Apply(frame(t, protocol.PongEvent{Event: protocol.Event{Type: protocol.EventPong}})))
}
