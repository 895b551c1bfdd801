package session

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Halfgear/CS4530-final-project/internal/game"
)

// Broadcaster fans out room snapshots to subscribed connections. Both
// methods must be non-blocking: they run inside the room's exclusive
// section, so a slow subscriber can never stall another player's move.
type Broadcaster interface {
	// PublishUpdate delivers the snapshot to every subscriber of the room.
	PublishUpdate(roomID string, snap game.Snapshot)

	// RoomClosed tells subscribers the room no longer exists and drops the
	// room's fanout membership.
	RoomClosed(roomID string)
}

// Recorder receives finished games for history persistence. Implementations
// must not block: they run after the exclusive section with an already
// captured snapshot, and dropping a record is preferable to stalling.
type Recorder interface {
	RecordFinished(snap game.Snapshot)
}

// Engine is the transport-agnostic front of the game session core. Every
// inbound action resolves its room through the registry, runs inside the
// room's exclusive section, and on success broadcasts the new snapshot
// before the section is released, so subscribers observe snapshots in move
// order. Errors are returned to the caller alone; the transport layer
// delivers them to the originating connection only.
type Engine struct {
	registry    *Registry
	types       *game.Registry
	broadcaster Broadcaster
	recorder    Recorder
}

// NewEngine wires the engine together. recorder may be nil when history
// persistence is disabled.
func NewEngine(registry *Registry, types *game.Registry, broadcaster Broadcaster, recorder Recorder) *Engine {
	e := &Engine{
		registry:    registry,
		types:       types,
		broadcaster: broadcaster,
		recorder:    recorder,
	}
	registry.SetOnRemoved(broadcaster.RoomClosed)
	return e
}

// Start launches the registry's idle-room reaper.
func (e *Engine) Start(ctx context.Context) {
	e.registry.Start(ctx)
}

// CreateRoom allocates a new room for the given game type and returns its
// initial snapshot.
func (e *Engine) CreateRoom(ctx context.Context, gameType string) (game.Snapshot, error) {
	room, err := e.registry.Create(gameType)
	if err != nil {
		return game.Snapshot{}, err
	}

	var snap game.Snapshot
	err = e.registry.WithRoom(ctx, room.ID(), func(room *game.Room) error {
		snap = room.Snapshot()
		return nil
	})
	return snap, err
}

// JoinRoom admits a player. When the join completes the roster the room
// moves to in_progress atomically with it, and the snapshot broadcast to
// subscribers already reflects the started game.
func (e *Engine) JoinRoom(ctx context.Context, roomID, playerID string) (game.Snapshot, error) {
	var snap game.Snapshot
	err := e.registry.WithRoom(ctx, roomID, func(room *game.Room) error {
		if err := room.Join(playerID); err != nil {
			return err
		}
		snap = room.Snapshot()
		e.broadcaster.PublishUpdate(roomID, snap)
		return nil
	})
	if err != nil {
		return game.Snapshot{}, err
	}

	log.Debug().
		Str("room_id", roomID).
		Str("player_id", playerID).
		Str("status", string(snap.Status)).
		Msg("Player joined room")
	return snap, nil
}

// LeaveRoom removes a player. Leaving an in-progress game is forfeiture and
// ends it; leaving before the game started only shrinks the roster, and a
// room abandoned by its last waiting player is removed immediately.
// Transport-level disconnects call this too: there is no separate path.
func (e *Engine) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	var (
		snap      game.Snapshot
		changed   bool
		abandoned bool
	)
	err := e.registry.WithRoom(ctx, roomID, func(room *game.Room) error {
		changed = room.Leave(playerID)
		if !changed {
			return nil
		}
		snap = room.Snapshot()
		abandoned = snap.Status == game.StatusWaiting && len(snap.Players) == 0
		e.broadcaster.PublishUpdate(roomID, snap)
		return nil
	})
	if err != nil || !changed {
		return err
	}

	log.Debug().
		Str("room_id", roomID).
		Str("player_id", playerID).
		Str("status", string(snap.Status)).
		Msg("Player left room")

	if snap.Status == game.StatusOver {
		e.recordFinished(snap)
	}
	if abandoned {
		e.registry.Remove(roomID)
	}
	return nil
}

// SubmitMove applies one move from the given player. The effect reaches the
// caller through the broadcast snapshot; the return value only carries the
// rejection, if any. expectedVersion is optional (zero disables the check):
// clients that send the version of the snapshot they acted on get stale
// submissions rejected instead of applied to a later turn.
func (e *Engine) SubmitMove(ctx context.Context, roomID, playerID string, payload json.RawMessage, expectedVersion uint64) error {
	var snap game.Snapshot
	err := e.registry.WithRoom(ctx, roomID, func(room *game.Room) error {
		if err := room.SubmitMove(playerID, payload, expectedVersion); err != nil {
			return err
		}
		snap = room.Snapshot()
		e.broadcaster.PublishUpdate(roomID, snap)
		return nil
	})
	if err != nil {
		return err
	}

	if snap.Status == game.StatusOver {
		log.Info().
			Str("room_id", roomID).
			Strs("winners", snap.Winners).
			Int("moves", len(snap.Moves)).
			Msg("Game finished")
		e.recordFinished(snap)
	}
	return nil
}

// SubscribeRoom runs attach inside the room's exclusive section with the
// room's current snapshot. The transport uses it to add a subscriber and
// hand it its starting state in one step: a move racing the subscription
// cannot enqueue a newer snapshot ahead of an older starting one. attach
// must not block.
func (e *Engine) SubscribeRoom(ctx context.Context, roomID string, attach func(snap game.Snapshot)) error {
	return e.registry.WithRoom(ctx, roomID, func(room *game.Room) error {
		attach(room.Snapshot())
		return nil
	})
}

// GetRoom returns the current snapshot of a room.
func (e *Engine) GetRoom(ctx context.Context, roomID string) (game.Snapshot, error) {
	var snap game.Snapshot
	err := e.registry.WithRoom(ctx, roomID, func(room *game.Room) error {
		snap = room.Snapshot()
		return nil
	})
	return snap, err
}

// ListRooms returns summaries of rooms matching the filter.
func (e *Engine) ListRooms(f Filter) []game.Summary {
	return e.registry.List(f)
}

// GameTypes returns the registered game types, for lobby display.
func (e *Engine) GameTypes() []game.Type {
	return e.types.List()
}

func (e *Engine) recordFinished(snap game.Snapshot) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordFinished(snap)
}
