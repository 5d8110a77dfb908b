package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck/internal/engine"
	"github.com/pointdeck/pointdeck/internal/hub"
	"github.com/pointdeck/pointdeck/internal/protocol"
	"github.com/pointdeck/pointdeck/internal/room"
)

const (
	readWait       = 5 * time.Minute // refreshed by ping
	writeWait      = 3 * time.Second
	maxMessageSize = 512
	outboxSize     = 8
)

// Handler upgrades the connection and bridges it to the room coordinator.
// Room id, username and role come from the query string; the socket stays
// scoped to that one room for its lifetime.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		username := r.URL.Query().Get("username")
		if roomID == "" || username == "" {
			http.Error(w, "missing room or username", http.StatusBadRequest)
			return
		}
		isVoter := r.URL.Query().Get("role") != protocol.RoleSpectator

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.EnsureRoom{ID: roomID, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(maxMessageSize)

		out := make(chan []byte, outboxSize)
		rm.Inbox() <- room.Join{Username: username, IsVoter: isVoter, Outbox: out}
		defer func() { rm.Inbox() <- room.Leave{Username: username, Outbox: out} }()

		// Writer goroutine: drains the outbox so a slow socket never
		// stalls the coordinator. Exits when the room closes the outbox.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for payload := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeWait)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// The room closed the outbox: either it shut down or dropped
			// us as a slow consumer. Unblock the reader.
			_ = conn.Close(websocket.StatusPolicyViolation, "outbox closed")
		}()

		for {
			ctx, cancel := context.WithTimeout(r.Context(), readWait)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				// Clean close or transport failure both end in the
				// deferred implicit leave.
				return
			}

			action, err := protocol.DecodeAction(data)
			if err != nil {
				log.Debug("dropped frame", zap.String("username", username), zap.Error(err))
				continue
			}

			if action.Type == protocol.ActionPing {
				pong, _ := json.Marshal(protocol.PongEvent{Event: protocol.Event{Type: protocol.EventPong}})
				pctx, pcancel := context.WithTimeout(r.Context(), writeWait)
				_ = conn.Write(pctx, websocket.MessageText, pong)
				pcancel()
				continue
			}

			// Commands act on the connection's identity, not whatever
			// username the payload claims.
			cmd, ok := toCommand(action, username)
			if !ok {
				continue
			}
			rm.Inbox() <- room.FromClient{Cmd: cmd}
		}
	}
}

func toCommand(a protocol.Action, username string) (engine.Command, bool) {
	switch a.Type {
	case protocol.ActionUserToVote:
		return engine.Command{Type: engine.CmdVote, Username: username, Points: a.StoryPoints}, true
	case protocol.ActionChangeRole:
		return engine.Command{Type: engine.CmdChangeRole, Username: username, IsVoter: a.Role == protocol.RoleVoter}, true
	case protocol.ActionRoundToReveal:
		return engine.Command{Type: engine.CmdReveal}, true
	case protocol.ActionCancelReveal:
		return engine.Command{Type: engine.CmdCancelReveal}, true
	case protocol.ActionRoundToStart:
		return engine.Command{Type: engine.CmdStartRound}, true
	default:
		return engine.Command{}, false
	}
}
