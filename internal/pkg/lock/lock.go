// Package lock provides per-room locking. Each room gets its own mutex so
// actions on one room serialize while actions on different rooms proceed in
// parallel.
package lock

import (
	"context"
	"sync"
	"time"
)

// RoomLock provides one mutex per room ID. It is the room's exclusive
// section: any join, leave or move targeting a room runs to completion
// before the next action on that same room begins.
type RoomLock struct {
	locks sync.Map // map[string]*sync.Mutex
	pool  sync.Pool
}

// NewRoomLock creates a new RoomLock instance.
func NewRoomLock() *RoomLock {
	return &RoomLock{
		pool: sync.Pool{
			New: func() any {
				return &sync.Mutex{}
			},
		},
	}
}

// getLock retrieves or creates the mutex for the given room ID.
func (rl *RoomLock) getLock(roomID string) *sync.Mutex {
	if v, ok := rl.locks.Load(roomID); ok {
		return v.(*sync.Mutex)
	}

	newLock := rl.pool.Get().(*sync.Mutex)
	actual, loaded := rl.locks.LoadOrStore(roomID, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to the pool.
		rl.pool.Put(newLock)
	}
	return actual.(*sync.Mutex)
}

// Lock acquires the lock for a room and returns the mutex that was locked.
// Release goes through the returned value, never by room ID: Forget may drop
// the table entry while the lock is held, and the mutex actually locked is
// the one that must be released.
func (rl *RoomLock) Lock(roomID string) *sync.Mutex {
	mu := rl.getLock(roomID)
	mu.Lock()
	return mu
}

// TryLock attempts to acquire the lock without blocking.
// Returns the locked mutex and true, or nil and false.
func (rl *RoomLock) TryLock(roomID string) (*sync.Mutex, bool) {
	mu := rl.getLock(roomID)
	if mu.TryLock() {
		return mu, true
	}
	return nil, false
}

// LockWithTimeout attempts to acquire the lock within the timeout.
// Returns the locked mutex and true, or nil and false when the timeout
// elapsed first.
func (rl *RoomLock) LockWithTimeout(ctx context.Context, roomID string, timeout time.Duration) (*sync.Mutex, bool) {
	mu := rl.getLock(roomID)

	done := make(chan struct{})
	go func() {
		mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return mu, true
	case <-timeoutCtx.Done():
		// The waiting goroutine will eventually acquire the mutex; make
		// sure it is released again so the room does not stay locked.
		go func() {
			<-done
			mu.Unlock()
		}()
		return nil, false
	}
}

// WithLock executes fn while holding the room's lock.
func (rl *RoomLock) WithLock(roomID string, fn func() error) error {
	mu := rl.Lock(roomID)
	defer mu.Unlock()
	return fn()
}

// WithLockContext executes fn while holding the room's lock, failing with
// ErrLockTimeout when the lock cannot be acquired in time.
func (rl *RoomLock) WithLockContext(ctx context.Context, roomID string, timeout time.Duration, fn func() error) error {
	mu, ok := rl.LockWithTimeout(ctx, roomID, timeout)
	if !ok {
		return ErrLockTimeout
	}
	defer mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

// Forget drops the lock entry for a removed room so the table does not grow
// with every room ever created. Goroutines still holding or awaiting the old
// mutex release it through the pointer they got at acquisition; late
// arrivals allocate a fresh mutex, find the room tombstoned and bail out.
func (rl *RoomLock) Forget(roomID string) {
	rl.locks.Delete(roomID)
}
