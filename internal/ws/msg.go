// Package ws provides the websocket transport for the game session engine:
// the hub that fans out room snapshots to subscribers, the per-connection
// client, and the action dispatch that translates inbound frames into engine
// calls.
package ws

import "encoding/json"

// Msg is the JSON envelope for every frame in both directions. T names the
// action or notification, M carries its payload.
type Msg struct {
	T string          `json:"t"`
	M json.RawMessage `json:"m,omitempty"`
}

// Inbound frame types accepted by the server.
const (
	ActionHello         = "hello"
	ActionCreateRoom    = "create_room"
	ActionJoinRoom      = "join_room"
	ActionLeaveRoom     = "leave_room"
	ActionMove          = "move"
	ActionSubscribe     = "subscribe"
	ActionUnsubscribe   = "unsubscribe"
	ActionListRooms     = "list_rooms"
	ActionGetRoom       = "get_room"
	ActionListGameTypes = "list_game_types"
)

// Outbound frame types emitted by the server.
const (
	FrameWelcome    = "welcome"
	FrameCreated    = "created"
	FrameJoined     = "joined"
	FrameLeft       = "left"
	FrameAck        = "ack"
	FrameGameUpdate = "game_update"
	FrameGameError  = "game_error"
	FrameRooms      = "rooms"
	FrameGameTypes  = "game_types"
)

// Error codes carried by game_error frames.
const (
	CodeRoomNotFound     = "ROOM_NOT_FOUND"
	CodeRoomGone         = "ROOM_GONE"
	CodeRoomFull         = "ROOM_FULL"
	CodeAlreadyJoined    = "ALREADY_JOINED"
	CodeNotYourTurn      = "NOT_YOUR_TURN"
	CodeInvalidMove      = "INVALID_MOVE"
	CodeGameOver         = "GAME_OVER"
	CodeGameNotStarted   = "GAME_NOT_STARTED"
	CodeMalformedAction  = "MALFORMED_ACTION"
	CodeUnknownGameType  = "UNKNOWN_GAME_TYPE"
	CodeNotAuthenticated = "NOT_AUTHENTICATED"
	CodeInternal         = "INTERNAL"
)

// helloPayload identifies the connection's player. Authentication happens
// upstream; the ID is trusted as-is.
type helloPayload struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

type createRoomPayload struct {
	GameType string `json:"gameType"`
}

type roomPayload struct {
	Room string `json:"room"`
}

type movePayload struct {
	Room string          `json:"room"`
	Move json.RawMessage `json:"move"`
	// Version optionally carries the snapshot version the move was decided
	// on; the engine rejects the move as stale when the room has advanced.
	Version uint64 `json:"version,omitempty"`
}

type listRoomsPayload struct {
	GameType string `json:"gameType,omitempty"`
	Status   string `json:"status,omitempty"`
}

type errorPayload struct {
	Room   string `json:"room,omitempty"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Payload types are all marshalable structs; this cannot fail at
		// runtime short of a programming error.
		panic(err)
	}
	return b
}
