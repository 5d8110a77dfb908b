// Package hub is the room registry: it maps room ids to live
// coordinators, creating one on first join and dropping it once the
// room reports itself empty.
package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pointdeck/pointdeck/internal/room"
)

type HubMsg interface{ isHubMsg() }

type EnsureRoom struct {
	ID    string
	Reply chan *room.Room
}

type GetRoom struct {
	ID    string
	Reply chan *room.Room
}

type RemoveRoom struct {
	ID string
}

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	grace  time.Duration
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub starts the registry goroutine. grace is the reveal grace
// interval handed to every room it creates.
func NewHub(parent context.Context, grace time.Duration, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		grace:  grace,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				if rm := h.rooms[msg.ID]; rm != nil {
					msg.Reply <- rm
					break
				}
				rm := room.New(h.ctx, msg.ID, h.grace, h.removeLater, h.log)
				h.rooms[msg.ID] = rm
				h.log.Info("room created", zap.String("room", msg.ID))
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // may be nil

			case RemoveRoom:
				delete(h.rooms, msg.ID)
				h.log.Info("room removed", zap.String("room", msg.ID))

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

// removeLater is called from a room's own goroutine when it empties, so
// the removal goes through the inbox like any other mutation.
func (h *Hub) removeLater(id string) {
	select {
	case h.inbox <- RemoveRoom{ID: id}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) shutdown() {
	for id, rm := range h.rooms {
		rm.Inbox() <- room.Shutdown{}
		delete(h.rooms, id)
	}
	h.cancel()
}
