package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Halfgear/CS4530-final-project/internal/game"
	"github.com/Halfgear/CS4530-final-project/internal/service"
)

// Hub is the broadcast coordinator: it maintains per-room subscriber sets
// and fans room snapshots out to them. Subscription is purely a delivery
// concern: an observer may subscribe without playing, and playing does not
// require subscribing (though in practice players are subscribed by the
// join handler).
//
// Hub implements session.Broadcaster. Its publish methods never block: each
// subscriber gets the frame on a buffered channel and slow subscribers drop
// frames, so publishing is safe inside a room's exclusive section.
type Hub struct {
	identity *service.IdentityService

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub(identity *service.IdentityService) *Hub {
	return &Hub{
		identity: identity,
		rooms:    make(map[string]map[*Client]struct{}),
	}
}

// Subscribe adds the client to the room's fanout set.
func (h *Hub) Subscribe(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
}

// Unsubscribe removes the client from the room's fanout set.
func (h *Hub) Unsubscribe(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// DropClient removes the client from every room's fanout set. Called when
// the connection closes.
func (h *Hub) DropClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, subs := range h.rooms {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// PublishUpdate delivers the snapshot to every current subscriber of the
// room. Delivery order across subscribers is unspecified, but snapshots for
// one room are published in version order because publishing happens inside
// the room's exclusive section.
func (h *Hub) PublishUpdate(roomID string, snap game.Snapshot) {
	frame, err := json.Marshal(Msg{
		T: FrameGameUpdate,
		M: mustMarshal(updatePayload{
			Snapshot: snap,
			Names:    h.resolveNames(snap.Players),
		}),
	})
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("Failed to marshal game update")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		c.enqueue(frame)
	}
}

// RoomClosed tells every subscriber the room no longer exists and drops the
// room's fanout set.
func (h *Hub) RoomClosed(roomID string) {
	frame, err := json.Marshal(Msg{
		T: FrameGameError,
		M: mustMarshal(errorPayload{
			Room:   roomID,
			Code:   CodeRoomGone,
			Reason: "room no longer exists",
		}),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	subs := h.rooms[roomID]
	delete(h.rooms, roomID)
	h.mu.Unlock()

	for c := range subs {
		c.enqueue(frame)
	}
}

// SubscriberCount returns the room's current fanout size.
func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) resolveNames(players []string) map[string]string {
	if h.identity == nil || len(players) == 0 {
		return nil
	}
	names := make(map[string]string, len(players))
	for _, id := range players {
		names[id] = h.identity.DisplayName(id)
	}
	return names
}
