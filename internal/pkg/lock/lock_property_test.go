// Property-based tests for per-room action serialization.
package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestConcurrentRoomActionSafetyProperty checks that for any set of
// concurrent operations against the same room, the final state is consistent
// with some sequential execution of all of them.
func TestConcurrentRoomActionSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		deltas := make([]int, numOps)
		expected := 0
		for i := 0; i < numOps; i++ {
			deltas[i] = rapid.IntRange(-5, 5).Draw(t, "delta")
			expected += deltas[i]
		}

		roomID := fmt.Sprintf("room-%d", rapid.Int64Range(1, 1000000).Draw(t, "roomID"))
		rl := NewRoomLock()

		// moveCount stands in for the room's mutable state: every operation
		// is a read-modify-write that is only safe under the room's lock.
		moveCount := 0

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, d := range deltas {
			go func(delta int) {
				defer wg.Done()
				mu := rl.Lock(roomID)
				defer mu.Unlock()
				moveCount += delta
			}(d)
		}
		wg.Wait()

		if moveCount != expected {
			t.Fatalf("State mismatch with locking: expected %d, got %d (numOps=%d)",
				expected, moveCount, numOps)
		}
	})
}

// TestWithLockFunctionProperty checks that WithLock serializes the supplied
// function the same way explicit Lock/Unlock does.
func TestWithLockFunctionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		perOp := rapid.IntRange(1, 100).Draw(t, "perOp")

		expected := numOps * perOp
		roomID := fmt.Sprintf("room-%d", rapid.Int64Range(1, 1000000).Draw(t, "roomID"))
		rl := NewRoomLock()

		count := 0

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = rl.WithLock(roomID, func() error {
					count += perOp
					return nil
				})
			}()
		}
		wg.Wait()

		if count != expected {
			t.Fatalf("State mismatch with WithLock: expected %d, got %d", expected, count)
		}
	})
}

// TestDifferentRoomsIndependentLocksProperty checks that locks for different
// rooms are independent: actions in one room never serialize against actions
// in another.
func TestDifferentRoomsIndependentLocksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numRooms := rapid.IntRange(2, 10).Draw(t, "numRooms")
		opsPerRoom := rapid.IntRange(5, 20).Draw(t, "opsPerRoom")

		rl := NewRoomLock()

		counts := make([]int, numRooms)

		var wg sync.WaitGroup
		wg.Add(numRooms * opsPerRoom)
		for i := 0; i < numRooms; i++ {
			roomID := fmt.Sprintf("room-%d", i)
			for j := 0; j < opsPerRoom; j++ {
				go func(idx int, id string) {
					defer wg.Done()
					mu := rl.Lock(id)
					defer mu.Unlock()
					counts[idx]++
				}(i, roomID)
			}
		}
		wg.Wait()

		for i := 0; i < numRooms; i++ {
			if counts[i] != opsPerRoom {
				t.Fatalf("Room %d count mismatch: expected %d, got %d", i, opsPerRoom, counts[i])
			}
		}
	})
}

// TestTryLockExclusionProperty checks that TryLock admits at least one of a
// burst of simultaneous contenders and that the lock is free once everyone
// finishes.
func TestTryLockExclusionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		roomID := fmt.Sprintf("room-%d", rapid.Int64Range(1, 1000000).Draw(t, "roomID"))
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		rl := NewRoomLock()

		var successCount atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numAttempts)

		startCh := make(chan struct{})
		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-startCh
				if mu, ok := rl.TryLock(roomID); ok {
					successCount.Add(1)
					mu.Unlock()
				}
			}()
		}
		close(startCh)
		wg.Wait()

		if successCount.Load() < 1 {
			t.Fatalf("At least one TryLock should succeed, got %d successes", successCount.Load())
		}

		mu, ok := rl.TryLock(roomID)
		if !ok {
			t.Fatal("Lock should be available after all attempts complete")
		}
		mu.Unlock()
	})
}

// TestLockUnlockSymmetryProperty checks that every Lock has a corresponding
// Unlock and the lock ends up free.
func TestLockUnlockSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		roomID := fmt.Sprintf("room-%d", rapid.Int64Range(1, 1000000).Draw(t, "roomID"))
		numCycles := rapid.IntRange(1, 50).Draw(t, "numCycles")

		rl := NewRoomLock()

		for i := 0; i < numCycles; i++ {
			rl.Lock(roomID).Unlock()
		}

		mu, ok := rl.TryLock(roomID)
		if !ok {
			t.Fatal("Lock should be available after symmetric lock/unlock cycles")
		}
		mu.Unlock()
	})
}

// TestForgetReleasesEntry checks that Forget drops the table entry and a
// later Lock allocates a fresh, unlocked mutex.
func TestForgetReleasesEntry(t *testing.T) {
	rl := NewRoomLock()

	rl.Lock("room-a").Unlock()
	rl.Forget("room-a")

	mu, ok := rl.TryLock("room-a")
	if !ok {
		t.Fatal("Lock should be available after Forget")
	}
	mu.Unlock()
}

// TestLockHeldAcrossForgetStillReleases checks that a waiter that obtained
// the old mutex pointer before Forget still acquires and releases it through
// that pointer, so nothing parks forever on a forgotten entry.
func TestLockHeldAcrossForgetStillReleases(t *testing.T) {
	rl := NewRoomLock()

	held := rl.Lock("room-a")

	acquired := make(chan struct{})
	go func() {
		mu, ok := rl.LockWithTimeout(context.Background(), "room-a", 5*time.Second)
		if !ok {
			t.Error("Waiter should acquire the lock once the holder releases")
			return
		}
		mu.Unlock()
		close(acquired)
	}()

	// Let the waiter park on the held mutex, then drop the table entry
	// while both goroutines still reference the old pointer.
	time.Sleep(20 * time.Millisecond)
	rl.Forget("room-a")
	held.Unlock()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("Waiter never acquired the lock after Forget")
	}

	mu, ok := rl.TryLock("room-a")
	if !ok {
		t.Fatal("Fresh entry should be unlocked")
	}
	mu.Unlock()
}
