// Package room hosts the Room Coordinator: one goroutine per room owning
// the authoritative state, with every mutation serialized through an
// inbox channel.
package room

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck/internal/engine"
	"github.com/pointdeck/pointdeck/internal/protocol"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	Username string
	IsVoter  bool
	Outbox   chan []byte // where this client wants to receive frames
}

func (Join) isRoomMsg() {}

// Leave carries the departing connection's outbox so a deferred leave
// from a superseded connection cannot tear down its replacement. A nil
// Outbox leaves unconditionally.
type Leave struct {
	Username string
	Outbox   chan []byte
}

func (Leave) isRoomMsg() {}

type FromClient struct {
	Cmd engine.Command
}

func (FromClient) isRoomMsg() {}

// commitReveal is posted by the grace timer, never by a client.
type commitReveal struct{ gen int }

func (commitReveal) isRoomMsg() {}

// idleExpired is posted when a freshly created room saw no join at all.
type idleExpired struct{}

func (idleExpired) isRoomMsg() {}

// idleWait bounds how long a room created over HTTP may sit with no
// participant before it is reclaimed; var so tests can shorten it.
var idleWait = time.Minute

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetView struct {
	Reply chan View
}

func (GetView) isRoomMsg() {}

type View struct {
	NumClients int
	State      engine.State
}

type Room struct {
	id          string
	inbox       chan Msg
	state       engine.State
	clients     map[string]chan []byte
	grace       time.Duration
	revealGen   int
	revealTimer *time.Timer
	idleTimer   *time.Timer
	onEmpty     func(id string)
	log         *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New starts the coordinator goroutine. onEmpty is invoked once when the
// last participant leaves, just before the room stops; it may be nil.
func New(parent context.Context, id string, grace time.Duration, onEmpty func(string), log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)

	r := &Room{
		id:      id,
		inbox:   make(chan Msg, 64),
		state:   engine.NewEmptyState(),
		clients: make(map[string]chan []byte),
		grace:   grace,
		onEmpty: onEmpty,
		log:     log.With(zap.String("room", id)),
		ctx:     ctx,
		cancel:  cancel,
	}

	r.idleTimer = time.AfterFunc(idleWait, func() {
		select {
		case r.inbox <- idleExpired{}:
		case <-r.ctx.Done():
		}
	})

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

// Inbox exposes the message channel to the WS layer and tests.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				if r.idleTimer != nil {
					r.idleTimer.Stop()
					r.idleTimer = nil
				}
				if prev, ok := r.clients[msg.Username]; ok {
					// Same username reconnecting: the old outbox is dead.
					close(prev)
				}
				r.clients[msg.Username] = msg.Outbox
				r.apply(engine.Command{Type: engine.CmdJoin, Username: msg.Username, IsVoter: msg.IsVoter})
				if _, still := r.clients[msg.Username]; still && r.state.Status == engine.StatusRevealed {
					// Late joiner still gets the committed result.
					r.send(msg.Outbox, protocol.RoundRevealedEvent{
						Event:        protocol.Event{Type: protocol.EventRoundRevealed},
						Votes:        r.state.Votes,
						AverageScore: engine.AverageScore(r.state.Votes),
					})
				}
				r.log.Info("user joined", zap.String("username", msg.Username), zap.Bool("voter", msg.IsVoter))

			case Leave:
				cur, registered := r.clients[msg.Username]
				if registered && msg.Outbox != nil && cur != msg.Outbox {
					// A newer connection owns this username; the old
					// socket's implicit leave must not evict it.
					r.log.Debug("ignored stale leave", zap.String("username", msg.Username))
					break
				}
				if registered {
					close(cur)
					delete(r.clients, msg.Username)
				}
				r.apply(engine.Command{Type: engine.CmdLeave, Username: msg.Username})
				r.log.Info("user left", zap.String("username", msg.Username))
				if len(r.state.Users) == 0 {
					r.log.Info("room empty, closing")
					if r.onEmpty != nil {
						r.onEmpty(r.id)
					}
					r.shutdown()
					return
				}

			case FromClient:
				r.apply(msg.Cmd)

			case commitReveal:
				if msg.gen != r.revealGen {
					break // stale fire from a cancelled timer
				}
				r.apply(engine.Command{Type: engine.CmdCommitReveal})

			case idleExpired:
				if len(r.clients) > 0 {
					break // someone joined while the message was in flight
				}
				r.log.Info("room never joined, closing")
				if r.onEmpty != nil {
					r.onEmpty(r.id)
				}
				r.shutdown()
				return

			case GetView:
				// test-only: reflect internal state without data races
				msg.Reply <- View{NumClients: len(r.clients), State: r.state}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) apply(cmd engine.Command) {
	events, newState, err := engine.Apply(r.state, cmd)
	if err != nil {
		// Illegal transitions are dropped without a broadcast or an
		// error frame back to the sender.
		r.log.Debug("dropped command", zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return
	}
	r.state = newState

	for _, ev := range events {
		switch ev.Type {
		case engine.EvtRosterChanged:
			r.broadcast(protocol.UsersUpdatedEvent{
				Event: protocol.Event{Type: protocol.EventUsersUpdated},
				Users: rosterInfo(r.state),
			})
		case engine.EvtRevealAvailable:
			r.broadcast(protocol.RoundRevealAvailableEvent{
				Event:           protocol.Event{Type: protocol.EventRoundRevealAvailable},
				RevealAvailable: ev.Available,
			})
		case engine.EvtUserVoted:
			r.broadcast(protocol.UserVotedEvent{
				Event:    protocol.Event{Type: protocol.EventUserVoted},
				Username: ev.Username,
			})
		case engine.EvtRevealPending:
			r.armRevealTimer()
			r.broadcast(protocol.RoundToRevealEvent{
				Event: protocol.Event{Type: protocol.EventRoundToReveal},
				After: int(r.grace / time.Millisecond),
			})
		case engine.EvtRevealCancelled:
			r.stopRevealTimer()
			r.broadcast(protocol.CancelRevealEvent{
				Event: protocol.Event{Type: protocol.EventCancelReveal},
			})
		case engine.EvtRoundRevealed:
			r.broadcast(protocol.RoundRevealedEvent{
				Event:        protocol.Event{Type: protocol.EventRoundRevealed},
				Votes:        ev.Votes,
				AverageScore: ev.AverageScore,
			})
		case engine.EvtRoundStarted:
			r.broadcast(protocol.RoundStartedEvent{
				Event: protocol.Event{Type: protocol.EventRoundStarted},
			})
		}
	}
}

// armRevealTimer schedules the Revealing -> Revealed commit. The
// generation counter makes cancellation atomic with the serialized state
// change: a fire from an older generation is discarded by the loop.
func (r *Room) armRevealTimer() {
	r.revealGen++
	gen := r.revealGen
	r.revealTimer = time.AfterFunc(r.grace, func() {
		select {
		case r.inbox <- commitReveal{gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) stopRevealTimer() {
	r.revealGen++
	if r.revealTimer != nil {
		r.revealTimer.Stop()
		r.revealTimer = nil
	}
}

func (r *Room) broadcast(frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		r.log.Error("marshal frame", zap.Error(err))
		return
	}
	for username, ch := range r.clients {
		select {
		case ch <- payload:
			// ok
		default:
			// Client is slow/full - drop them. The WS layer notices the
			// closed channel and tears the connection down.
			close(ch)
			delete(r.clients, username)
			r.log.Warn("dropped slow client", zap.String("username", username))
		}
	}
}

// send delivers a frame to a single outbox with the same drop policy as
// broadcast.
func (r *Room) send(ch chan []byte, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		r.log.Error("marshal frame", zap.Error(err))
		return
	}
	select {
	case ch <- payload:
	default:
	}
}

func (r *Room) shutdown() {
	r.stopRevealTimer()
	if r.idleTimer != nil {
		r.idleTimer.Stop()
		r.idleTimer = nil
	}
	for username, ch := range r.clients {
		close(ch) // tell the client no more frames
		delete(r.clients, username)
	}
	r.cancel()
}

func rosterInfo(s engine.State) []protocol.UserInfo {
	roster := engine.Roster(s)
	users := make([]protocol.UserInfo, 0, len(roster))
	for _, u := range roster {
		users = append(users, protocol.UserInfo{
			Username: u.Username,
			IsVoter:  u.IsVoter,
			HasVoted: u.HasVoted,
		})
	}
	return users
}
