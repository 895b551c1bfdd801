package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/Halfgear/CS4530-final-project/internal/game"
)

// sendBuffer is the per-client outbound queue size. A client that falls
// this far behind starts losing frames rather than stalling the room.
const sendBuffer = 64

// Client is one websocket connection. Its identity (playerID) is set by the
// hello action; the rooms it joined as a player are tracked so a transport
// disconnect can be turned into leave actions.
type Client struct {
	id   string
	send chan []byte

	mu       sync.Mutex
	playerID string
	joined   map[string]struct{}
}

func newClient() *Client {
	return &Client{
		id:     uuid.New().String(),
		send:   make(chan []byte, sendBuffer),
		joined: make(map[string]struct{}),
	}
}

// PlayerID returns the connection's player identity, or "" before hello.
func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

func (c *Client) setPlayerID(id string) {
	c.mu.Lock()
	c.playerID = id
	c.mu.Unlock()
}

func (c *Client) trackJoined(roomID string) {
	c.mu.Lock()
	c.joined[roomID] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) untrackJoined(roomID string) {
	c.mu.Lock()
	delete(c.joined, roomID)
	c.mu.Unlock()
}

// joinedRooms returns the rooms this connection joined as a player.
func (c *Client) joinedRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.joined))
	for id := range c.joined {
		rooms = append(rooms, id)
	}
	return rooms
}

// enqueue queues a frame for delivery, dropping it when the client's buffer
// is full. It never blocks.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
	}
}

// sendMsg marshals and queues a frame.
func (c *Client) sendMsg(t string, payload any) {
	m := Msg{T: t}
	if payload != nil {
		m.M = mustMarshal(payload)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.enqueue(b)
}

// sendError delivers a game_error frame to this connection only.
func (c *Client) sendError(roomID, code, reason string) {
	c.sendMsg(FrameGameError, errorPayload{Room: roomID, Code: code, Reason: reason})
}

// updatePayload is the game_update frame body: the snapshot plus resolved
// display names for its players.
type updatePayload struct {
	Snapshot game.Snapshot     `json:"snapshot"`
	Names    map[string]string `json:"names,omitempty"`
}
