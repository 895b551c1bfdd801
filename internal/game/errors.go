package game

import "errors"

// Player-facing errors. All of these are expected, recoverable conditions:
// they are reported to the originating connection and never affect other
// rooms or connections. Callers match them with errors.Is.
var (
	// ErrRoomNotFound is returned when the room ID was never registered.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomGone is returned when the room existed but has been removed.
	ErrRoomGone = errors.New("room no longer exists")

	// ErrRoomFull is returned when joining a room whose roster is at capacity.
	ErrRoomFull = errors.New("room is full")

	// ErrAlreadyJoined is returned when a player joins a room twice.
	ErrAlreadyJoined = errors.New("player already joined this room")

	// ErrNotYourTurn is returned when a move arrives from a player other
	// than the one whose turn it currently is.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrInvalidMove is returned for rule violations. Game types wrap it
	// with a reason string.
	ErrInvalidMove = errors.New("invalid move")

	// ErrGameOver is returned for game-affecting actions submitted after
	// the room reached a terminal state.
	ErrGameOver = errors.New("game is over")

	// ErrGameNotStarted is returned for moves submitted before the roster
	// is complete.
	ErrGameNotStarted = errors.New("game has not started")

	// ErrMalformedAction is returned when an action payload cannot be
	// decoded, before it reaches the state machine.
	ErrMalformedAction = errors.New("malformed action payload")

	// ErrUnknownGameType is returned when creating a room with a game type
	// key that was never registered.
	ErrUnknownGameType = errors.New("unknown game type")
)
