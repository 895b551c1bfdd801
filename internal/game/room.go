package game

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Status is a room's lifecycle state. Transitions only ever move forward:
// waiting_to_start -> in_progress -> over.
type Status string

const (
	// StatusWaiting means the roster is not yet complete. Only join and
	// leave actions are accepted.
	StatusWaiting Status = "waiting_to_start"

	// StatusInProgress means the game is being played. Only moves from the
	// player whose turn it is, and leave actions (forfeiture), are accepted.
	StatusInProgress Status = "in_progress"

	// StatusOver means the game reached a terminal state. No game-affecting
	// actions are accepted; read-only queries remain valid.
	StatusOver Status = "over"
)

// Room owns one game instance: its roster, move log, game state and
// lifecycle. The room's own lock makes read-only views (Status, Snapshot,
// Summary) safe to call at any time; mutating calls must still run under the
// room's exclusive section, which the session registry provides, so actions
// serialize and broadcasts keep move order.
type Room struct {
	mu sync.RWMutex

	id      string
	rules   Type
	players []string
	moves   []Move
	state   State
	status  Status
	winners []string

	// version increases on every observable change (join, leave, move,
	// termination) so subscribers can order snapshots.
	version   uint64
	createdAt time.Time
	updatedAt time.Time
}

// NewRoom creates a room in the waiting_to_start state for the given game
// type.
func NewRoom(id string, rules Type) *Room {
	now := time.Now()
	return &Room{
		id:        id,
		rules:     rules,
		players:   make([]string, 0, rules.PlayerCount()),
		state:     rules.NewState(),
		status:    StatusWaiting,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the room's immutable identifier.
func (r *Room) ID() string { return r.id }

// GameType returns the key of the room's game type.
func (r *Room) GameType() string { return r.rules.Key() }

// Status returns the room's current lifecycle state.
func (r *Room) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// UpdatedAt returns the time of the last observable change. The registry's
// reaper uses it to find idle rooms.
func (r *Room) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}

// HasPlayer reports whether the player is on the roster.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasPlayerLocked(playerID)
}

func (r *Room) hasPlayerLocked(playerID string) bool {
	for _, p := range r.players {
		if p == playerID {
			return true
		}
	}
	return false
}

// CurrentPlayer returns the ID of the player whose turn it is, or "" when
// the game is not in progress. Turn order derives from join order and move
// count: players[len(moves) % len(players)]. This is the only place the
// derivation lives; clients render from the snapshot, they never recompute it.
func (r *Room) CurrentPlayer() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentPlayerLocked()
}

func (r *Room) currentPlayerLocked() string {
	if r.status != StatusInProgress || len(r.players) == 0 {
		return ""
	}
	return r.players[len(r.moves)%len(r.players)]
}

// Join appends a player to the roster. The transition to in_progress is
// atomic with the join that completes the roster: no caller ever observes a
// full roster still marked waiting_to_start.
func (r *Room) Join(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusOver {
		return ErrGameOver
	}
	if r.hasPlayerLocked(playerID) {
		return ErrAlreadyJoined
	}
	if len(r.players) >= r.rules.PlayerCount() {
		return ErrRoomFull
	}

	r.players = append(r.players, playerID)
	if len(r.players) == r.rules.PlayerCount() {
		r.status = StatusInProgress
	}
	r.touch()
	return nil
}

// Leave removes a player from the roster. It reports whether the room
// changed, so callers can skip broadcasting on the idempotent no-op path.
//
// Leaving while in_progress is forfeiture: the game ends and every remaining
// player is recorded as a winner. Leaving while waiting_to_start simply
// shrinks the roster. Leaving a finished room, or a room the player never
// joined, does nothing.
func (r *Room) Leave(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusOver {
		return false
	}

	idx := -1
	for i, p := range r.players {
		if p == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	r.players = append(r.players[:idx], r.players[idx+1:]...)

	if r.status == StatusInProgress {
		// Forfeiture: whoever is left wins. An empty roster yields no
		// winners and the room just closes.
		r.winners = append([]string(nil), r.players...)
		r.status = StatusOver
	}
	r.touch()
	return true
}

// SubmitMove validates and applies a move from the given player. On success
// the move is appended to the log and the game state advances; a terminal
// outcome moves the room to over and records the winners. On any error the
// room is left untouched.
//
// expectedVersion, when non-zero, is the snapshot version the player acted
// on. A mismatch means the room changed since they looked, so their move was
// aimed at a turn that no longer exists, and is rejected as stale. When two
// players submit for the same turn at once, the serialized loser fails this
// check (or the turn check) instead of being applied to the wrong turn;
// clients retry after observing the next snapshot.
func (r *Room) SubmitMove(playerID string, payload json.RawMessage, expectedVersion uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.status {
	case StatusOver:
		return ErrGameOver
	case StatusWaiting:
		return ErrGameNotStarted
	}

	if expectedVersion != 0 && expectedVersion != r.version {
		return fmt.Errorf("%w: move was submitted against version %d, room is at %d",
			ErrNotYourTurn, expectedVersion, r.version)
	}

	if r.currentPlayerLocked() != playerID {
		return ErrNotYourTurn
	}

	mv := Move{PlayerID: playerID, Payload: payload, At: time.Now()}
	out, err := r.rules.Validate(r.state, r.players, mv)
	if err != nil {
		return err
	}
	if out == nil || out.State == nil {
		return fmt.Errorf("game type %q returned no outcome state", r.rules.Key())
	}

	r.moves = append(r.moves, mv)
	r.state = out.State
	if out.Terminal {
		r.winners = append([]string(nil), out.Winners...)
		r.status = StatusOver
	}
	r.touch()
	return nil
}

// touch records an observable change.
func (r *Room) touch() {
	r.version++
	r.updatedAt = time.Now()
}

// Snapshot is an immutable copy of a room's observable state at a point in
// its move sequence. It is the single source of truth clients render from.
type Snapshot struct {
	RoomID        string    `json:"roomId"`
	GameType      string    `json:"gameType"`
	Status        Status    `json:"status"`
	Players       []string  `json:"players"`
	Moves         []Move    `json:"moves"`
	State         State     `json:"state"`
	Winners       []string  `json:"winners,omitempty"`
	CurrentPlayer string    `json:"currentPlayer,omitempty"`
	Version       uint64    `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Snapshot returns a deep copy of the room's observable state. The copy
// shares nothing mutable with the live room.
func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Snapshot{
		RoomID:        r.id,
		GameType:      r.rules.Key(),
		Status:        r.status,
		Players:       append([]string(nil), r.players...),
		Moves:         append([]Move(nil), r.moves...),
		State:         r.state.Clone(),
		Winners:       append([]string(nil), r.winners...),
		CurrentPlayer: r.currentPlayerLocked(),
		Version:       r.version,
		CreatedAt:     r.createdAt,
		UpdatedAt:     r.updatedAt,
	}
}

// Summary is the lobby-facing view of a room.
type Summary struct {
	RoomID   string `json:"roomId"`
	GameType string `json:"gameType"`
	Status   Status `json:"status"`
	Players  int    `json:"players"`
	Capacity int    `json:"capacity"`
}

// Summary returns the lobby-facing view of the room.
func (r *Room) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Summary{
		RoomID:   r.id,
		GameType: r.rules.Key(),
		Status:   r.status,
		Players:  len(r.players),
		Capacity: r.rules.PlayerCount(),
	}
}
