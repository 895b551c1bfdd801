// Package session owns the process-wide table of active game rooms and the
// engine facade that serializes actions against them.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Halfgear/CS4530-final-project/internal/game"
	"github.com/Halfgear/CS4530-final-project/internal/pkg/lock"
)

const (
	// DefaultWaitingTimeout is how long a room may sit in waiting_to_start
	// before the reaper reclaims it.
	DefaultWaitingTimeout = 10 * time.Minute

	// DefaultRetainFinished is how long a finished room stays queryable
	// before the reaper removes it.
	DefaultRetainFinished = 5 * time.Minute

	// DefaultReapInterval is how often the reaper scans the room table.
	DefaultReapInterval = 30 * time.Second

	// DefaultLockTimeout bounds how long an action waits for a room's
	// exclusive section.
	DefaultLockTimeout = 5 * time.Second

	// tombstoneTTL is how long a removed room ID keeps answering RoomGone
	// instead of RoomNotFound.
	tombstoneTTL = time.Hour
)

// Config holds registry timing configuration. Zero fields fall back to
// defaults.
type Config struct {
	WaitingTimeout time.Duration
	RetainFinished time.Duration
	ReapInterval   time.Duration
	LockTimeout    time.Duration
}

func (c *Config) withDefaults() Config {
	out := Config{
		WaitingTimeout: DefaultWaitingTimeout,
		RetainFinished: DefaultRetainFinished,
		ReapInterval:   DefaultReapInterval,
		LockTimeout:    DefaultLockTimeout,
	}
	if c == nil {
		return out
	}
	if c.WaitingTimeout > 0 {
		out.WaitingTimeout = c.WaitingTimeout
	}
	if c.RetainFinished > 0 {
		out.RetainFinished = c.RetainFinished
	}
	if c.ReapInterval > 0 {
		out.ReapInterval = c.ReapInterval
	}
	if c.LockTimeout > 0 {
		out.LockTimeout = c.LockTimeout
	}
	return out
}

// Filter selects rooms for listing. Zero values match everything.
type Filter struct {
	GameType string
	Status   game.Status
}

// Registry is the process-wide table of active rooms. It is the sole owner
// of its rooms: no other component retains a long-lived *game.Room, which
// keeps stale-state bugs out of the rest of the system. Insertions and
// removals are atomic with respect to lookups, and every room mutation runs
// inside that room's exclusive section.
type Registry struct {
	types *game.Registry
	cfg   Config

	mu         sync.RWMutex
	rooms      map[string]*game.Room
	tombstones map[string]time.Time

	locks *lock.RoomLock

	// onRemoved is invoked after a room has been removed, outside any lock.
	// The engine uses it to tell subscribers the room is gone.
	onRemoved func(roomID string)
}

// NewRegistry creates an empty room registry backed by the given game type
// registry.
func NewRegistry(types *game.Registry, cfg *Config) *Registry {
	return &Registry{
		types:      types,
		cfg:        cfg.withDefaults(),
		rooms:      make(map[string]*game.Room),
		tombstones: make(map[string]time.Time),
		locks:      lock.NewRoomLock(),
	}
}

// SetOnRemoved installs the removal callback. Must be called before Start.
func (r *Registry) SetOnRemoved(fn func(roomID string)) {
	r.onRemoved = fn
}

// Create allocates a new room in waiting_to_start and registers it.
func (r *Registry) Create(gameType string) (*game.Room, error) {
	rules, ok := r.types.Get(gameType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", game.ErrUnknownGameType, gameType)
	}

	room := game.NewRoom(uuid.New().String(), rules)

	r.mu.Lock()
	r.rooms[room.ID()] = room
	r.mu.Unlock()

	log.Info().
		Str("room_id", room.ID()).
		Str("game_type", gameType).
		Msg("Room created")
	return room, nil
}

// lookup fetches a live room, distinguishing rooms that never existed from
// rooms that have been removed.
func (r *Registry) lookup(roomID string) (*game.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if room, ok := r.rooms[roomID]; ok {
		return room, nil
	}
	if _, gone := r.tombstones[roomID]; gone {
		return nil, game.ErrRoomGone
	}
	return nil, game.ErrRoomNotFound
}

// WithRoom runs fn inside the room's exclusive section. The room is resolved
// after the lock is acquired, so a removal that raced the caller is observed
// as RoomGone rather than as a mutation of a dead room. fn must not block on
// external I/O; slow side effects run after WithRoom returns, using a
// snapshot captured inside fn.
func (r *Registry) WithRoom(ctx context.Context, roomID string, fn func(room *game.Room) error) error {
	mu, ok := r.locks.LockWithTimeout(ctx, roomID, r.cfg.LockTimeout)
	if !ok {
		return lock.ErrLockTimeout
	}
	defer mu.Unlock()

	room, err := r.lookup(roomID)
	if err != nil {
		return err
	}
	return fn(room)
}

// Remove deletes a room from the table. It is idempotent and safe to call
// concurrently with in-flight operations: it waits for the room's exclusive
// section to drain, and later lookups answer RoomGone. The removal callback
// fires outside all locks.
func (r *Registry) Remove(roomID string) {
	removed := false

	mu := r.locks.Lock(roomID)
	r.mu.Lock()
	if _, ok := r.rooms[roomID]; ok {
		delete(r.rooms, roomID)
		r.tombstones[roomID] = time.Now()
		removed = true
	}
	r.mu.Unlock()
	mu.Unlock()

	if !removed {
		return
	}
	r.locks.Forget(roomID)

	log.Info().Str("room_id", roomID).Msg("Room removed")
	if r.onRemoved != nil {
		r.onRemoved(roomID)
	}
}

// List returns read-only summaries of the rooms matching the filter. It
// never blocks room mutation beyond the table read lock.
func (r *Registry) List(f Filter) []game.Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]game.Summary, 0, len(r.rooms))
	for _, room := range r.rooms {
		s := room.Summary()
		if f.GameType != "" && s.GameType != f.GameType {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Count returns the number of live rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Start launches the reaper goroutine. It stops when ctx is cancelled.
func (r *Registry) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cfg.ReapInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.reap()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// reap removes rooms that were never started within the waiting timeout and
// finished rooms past their retention window, then expires old tombstones.
func (r *Registry) reap() {
	now := time.Now()

	r.mu.RLock()
	var stale []string
	for id, room := range r.rooms {
		var cutoff time.Duration
		switch room.Status() {
		case game.StatusWaiting:
			cutoff = r.cfg.WaitingTimeout
		case game.StatusOver:
			cutoff = r.cfg.RetainFinished
		default:
			continue
		}
		if now.Sub(room.UpdatedAt()) >= cutoff {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		// Remove re-checks nothing about status: a waiting room that filled
		// up after the scan was active within the reap interval, so verify
		// under the room's lock before dropping it.
		expired := false
		err := r.WithRoom(context.Background(), id, func(room *game.Room) error {
			switch room.Status() {
			case game.StatusWaiting:
				expired = now.Sub(room.UpdatedAt()) >= r.cfg.WaitingTimeout
			case game.StatusOver:
				expired = now.Sub(room.UpdatedAt()) >= r.cfg.RetainFinished
			}
			return nil
		})
		if err == nil && expired {
			log.Info().Str("room_id", id).Msg("Reaping idle room")
			r.Remove(id)
		}
	}

	r.mu.Lock()
	for id, at := range r.tombstones {
		if now.Sub(at) >= tombstoneTTL {
			delete(r.tombstones, id)
		}
	}
	r.mu.Unlock()
}
