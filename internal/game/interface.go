// Package game defines the room state machine, the game type interface and
// the registry that maps game type keys to their rule implementations.
// Adding a new turn-based game only requires implementing the Type interface
// and registering it; the session and broadcast layers never special-case a
// game type.
package game

import (
	"encoding/json"
	"time"
)

// State is the game-type-specific portion of a room's state. Implementations
// are plain value holders; Clone must return a deep copy so snapshots never
// alias live state.
type State interface {
	Clone() State
}

// Move is a single recorded move. Payload is the game-type-specific move
// data, kept as raw JSON so the engine core never needs to know its shape.
// Moves are append-only: once recorded they are never mutated or reordered.
type Move struct {
	PlayerID string          `json:"playerId"`
	Payload  json.RawMessage `json:"payload"`
	At       time.Time       `json:"at"`
}

// Outcome is the result of an accepted move.
type Outcome struct {
	// State is the new game state after the move. Always a fresh value,
	// never the input state mutated in place.
	State State

	// Terminal reports whether the move ended the game.
	Terminal bool

	// Winners holds the winning player IDs when Terminal is true. Empty
	// means a draw.
	Winners []string
}

// Type defines the interface that all turn-based games must implement.
type Type interface {
	// Key returns the registry key identifying this game type (e.g. "nim").
	Key() string

	// Name returns the game's display name (e.g. "Nim").
	Name() string

	// Description returns a brief description of the game.
	Description() string

	// PlayerCount returns the exact number of players the game requires.
	PlayerCount() int

	// NewState returns the initial game state for a fresh room.
	NewState() State

	// Validate judges a proposed move against the current state. It must be
	// pure: no I/O and no mutation of its inputs, so it can run inside a
	// room's exclusive section. Whose turn it is has already been enforced
	// by the room; Validate only judges move legality.
	//
	// Returns ErrInvalidMove (wrapped with a reason) for rule violations and
	// ErrMalformedAction when the payload cannot be decoded.
	Validate(st State, players []string, mv Move) (*Outcome, error)
}
