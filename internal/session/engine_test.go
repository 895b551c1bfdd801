package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Halfgear/CS4530-final-project/internal/game"
	"github.com/Halfgear/CS4530-final-project/internal/session"
)

// fakeBroadcaster records every published snapshot per room. It is safe for
// concurrent use, like the real fanout hub.
type fakeBroadcaster struct {
	mu      sync.Mutex
	updates map[string][]game.Snapshot
	closed  []string
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{updates: make(map[string][]game.Snapshot)}
}

func (f *fakeBroadcaster) PublishUpdate(roomID string, snap game.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[roomID] = append(f.updates[roomID], snap)
}

func (f *fakeBroadcaster) RoomClosed(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, roomID)
}

func (f *fakeBroadcaster) published(roomID string) []game.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]game.Snapshot(nil), f.updates[roomID]...)
}

func (f *fakeBroadcaster) closedRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	finished []game.Snapshot
}

func (f *fakeRecorder) RecordFinished(snap game.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, snap)
}

func (f *fakeRecorder) records() []game.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]game.Snapshot(nil), f.finished...)
}

func newTestEngine(t *testing.T) (*session.Engine, *fakeBroadcaster, *fakeRecorder) {
	t.Helper()
	types := newTypes(t)
	reg := session.NewRegistry(types, nil)
	bc := newFakeBroadcaster()
	rec := &fakeRecorder{}
	return session.NewEngine(reg, types, bc, rec), bc, rec
}

func takeMove(n int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"numObjects":%d}`, n))
}

func TestEngine_CreateRoom(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	snap, err := eng.CreateRoom(context.Background(), "nim")
	require.NoError(t, err)
	assert.NotEmpty(t, snap.RoomID)
	assert.Equal(t, "nim", snap.GameType)
	assert.Equal(t, game.StatusWaiting, snap.Status)
	assert.Empty(t, snap.Players)

	_, err = eng.CreateRoom(context.Background(), "chess")
	assert.ErrorIs(t, err, game.ErrUnknownGameType)
}

func TestEngine_JoinBroadcastsEveryRosterChange(t *testing.T) {
	eng, bc, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := eng.CreateRoom(ctx, "nim")
	require.NoError(t, err)

	snap, err := eng.JoinRoom(ctx, created.RoomID, "alice")
	require.NoError(t, err)
	assert.Equal(t, game.StatusWaiting, snap.Status)

	snap, err = eng.JoinRoom(ctx, created.RoomID, "bob")
	require.NoError(t, err)
	assert.Equal(t, game.StatusInProgress, snap.Status)
	assert.Equal(t, "alice", snap.CurrentPlayer)

	updates := bc.published(created.RoomID)
	require.Len(t, updates, 2)
	// The filling join is broadcast already in progress: subscribers never
	// see a full roster still waiting to start.
	assert.Equal(t, game.StatusWaiting, updates[0].Status)
	assert.Equal(t, game.StatusInProgress, updates[1].Status)
}

func TestEngine_JoinErrorsDoNotBroadcast(t *testing.T) {
	eng, bc, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := eng.CreateRoom(ctx, "nim")
	require.NoError(t, err)
	_, err = eng.JoinRoom(ctx, created.RoomID, "alice")
	require.NoError(t, err)

	before := len(bc.published(created.RoomID))

	_, err = eng.JoinRoom(ctx, created.RoomID, "alice")
	assert.ErrorIs(t, err, game.ErrAlreadyJoined)

	_, err = eng.JoinRoom(ctx, "no-such-room", "bob")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)

	// Rejections reach the caller only; subscribers see nothing.
	assert.Len(t, bc.published(created.RoomID), before)
}

func TestEngine_MoveBroadcastsAndFinishes(t *testing.T) {
	eng, bc, rec := newTestEngine(t)
	ctx := context.Background()

	created, err := eng.CreateRoom(ctx, "nim")
	require.NoError(t, err)
	_, err = eng.JoinRoom(ctx, created.RoomID, "alice")
	require.NoError(t, err)
	_, err = eng.JoinRoom(ctx, created.RoomID, "bob")
	require.NoError(t, err)

	// 21 objects: alternate 3/3 down to 3, then alice takes 2 and bob is
	// forced to take the last one.
	for i := 0; i < 6; i++ {
		player := "alice"
		if i%2 == 1 {
			player = "bob"
		}
		require.NoError(t, eng.SubmitMove(ctx, created.RoomID, player, takeMove(3), 0))
	}
	require.NoError(t, eng.SubmitMove(ctx, created.RoomID, "alice", takeMove(2), 0))
	require.NoError(t, eng.SubmitMove(ctx, created.RoomID, "bob", takeMove(1), 0))

	updates := bc.published(created.RoomID)
	require.NotEmpty(t, updates)
	final := updates[len(updates)-1]
	assert.Equal(t, game.StatusOver, final.Status)
	assert.Equal(t, []string{"alice"}, final.Winners)

	records := rec.records()
	require.Len(t, records, 1)
	assert.Equal(t, created.RoomID, records[0].RoomID)
	assert.Equal(t, []string{"alice"}, records[0].Winners)
	assert.Len(t, records[0].Moves, 8)
}

func TestEngine_BroadcastVersionsAreStrictlyIncreasing(t *testing.T) {
	eng, bc, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := eng.CreateRoom(ctx, "nim")
	require.NoError(t, err)
	_, err = eng.JoinRoom(ctx, created.RoomID, "alice")
	require.NoError(t, err)
	_, err = eng.JoinRoom(ctx, created.RoomID, "bob")
	require.NoError(t, err)
	require.NoError(t, eng.SubmitMove(ctx, created.RoomID, "alice", takeMove(1), 0))
	require.NoError(t, eng.SubmitMove(ctx, created.RoomID, "bob", takeMove(1), 0))

	updates := bc.published(created.RoomID)
	require.GreaterOrEqual(t, len(updates), 4)
	for i := 1; i < len(updates); i++ {
		assert.Greater(t, updates[i].Version, updates[i-1].Version)
		assert.GreaterOrEqual(t, len(updates[i].Moves), len(updates[i-1].Moves))
	}
}

func TestEngine_SubscribeRoomDeliversCurrentSnapshot(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := eng.CreateRoom(ctx, "nim")
	require.NoError(t, err)
	_, err = eng.JoinRoom(ctx, created.RoomID, "alice")
	require.NoError(t, err)

	var got game.Snapshot
	err = eng.SubscribeRoom(ctx, created.RoomID, func(snap game.Snapshot) {
		got = snap
	})
	require.NoError(t, err)
	assert.Equal(t, created.RoomID, got.RoomID)
	assert.Equal(t, []string{"alice"}, got.Players)

	err = eng.SubscribeRoom(ctx, "no-such-room", func(game.Snapshot) {
		t.Fatal("attach must not run for an unknown room")
	})
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestEngine_LeaveForfeitsAndRecords(t *testing.T) {
	eng, bc, rec := newTestEngine(t)
	ctx := context.Background()

	created, err := eng.CreateRoom(ctx, "nim")
	require.NoError(t, err)
	_, err = eng.JoinRoom(ctx, created.RoomID, "alice")
	require.NoError(t, err)
	_, err = eng.JoinRoom(ctx, created.RoomID, "bob")
	require.NoError(t, err)

	require.NoError(t, eng.LeaveRoom(ctx, created.RoomID, "alice"))

	updates := bc.published(created.RoomID)
	final := updates[len(updates)-1]
	assert.Equal(t, game.StatusOver, final.Status)
	assert.Equal(t, []string{"bob"}, final.Winners)

	records := rec.records()
	require.Len(t, records, 1)
	assert.Equal(t, []string{"bob"}, records[0].Winners)
}

func TestEngine_AbandonedWaitingRoomIsRemoved(t *testing.T) {
	eng, bc, rec := newTestEngine(t)
	ctx := context.Background()

	created, err := eng.CreateRoom(ctx, "nim")
	require.NoError(t, err)
	_, err = eng.JoinRoom(ctx, created.RoomID, "alice")
	require.NoError(t, err)

	require.NoError(t, eng.LeaveRoom(ctx, created.RoomID, "alice"))

	// The last waiting player left; the room is gone, subscribers were
	// told, and nothing was recorded as a finished game.
	assert.Equal(t, []string{created.RoomID}, bc.closedRooms())
	assert.Empty(t, rec.records())

	_, err = eng.GetRoom(ctx, created.RoomID)
	assert.ErrorIs(t, err, game.ErrRoomGone)
}

func TestEngine_LeaveIsIdempotent(t *testing.T) {
	eng, _, rec := newTestEngine(t)
	ctx := context.Background()

	created, err := eng.CreateRoom(ctx, "nim")
	require.NoError(t, err)
	_, err = eng.JoinRoom(ctx, created.RoomID, "alice")
	require.NoError(t, err)
	_, err = eng.JoinRoom(ctx, created.RoomID, "bob")
	require.NoError(t, err)

	require.NoError(t, eng.LeaveRoom(ctx, created.RoomID, "alice"))
	require.NoError(t, eng.LeaveRoom(ctx, created.RoomID, "alice"))

	assert.Len(t, rec.records(), 1)
}

func TestEngine_ListRoomsAndGameTypes(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateRoom(ctx, "nim")
	require.NoError(t, err)
	_, err = eng.CreateRoom(ctx, "nim")
	require.NoError(t, err)

	assert.Len(t, eng.ListRooms(session.Filter{}), 2)
	assert.Empty(t, eng.ListRooms(session.Filter{Status: game.StatusOver}))

	types := eng.GameTypes()
	require.Len(t, types, 1)
	assert.Equal(t, "nim", types[0].Key())
}

// Two players racing to submit for the same turn, both acting on the same
// snapshot, resolve to exactly one accepted move and one turn rejection.
func TestEngine_ConcurrentSameTurnSubmissions(t *testing.T) {
	eng, bc, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		created, err := eng.CreateRoom(ctx, "nim")
		require.NoError(t, err)
		_, err = eng.JoinRoom(ctx, created.RoomID, "alice")
		require.NoError(t, err)
		snap, err := eng.JoinRoom(ctx, created.RoomID, "bob")
		require.NoError(t, err)

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for _, player := range []string{"alice", "bob"} {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				errs <- eng.SubmitMove(ctx, created.RoomID, p, takeMove(1), snap.Version)
			}(player)
		}
		wg.Wait()
		close(errs)

		var accepted, rejected int
		for err := range errs {
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, game.ErrNotYourTurn):
				rejected++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, accepted)
		assert.Equal(t, 1, rejected)

		updates := bc.published(created.RoomID)
		final := updates[len(updates)-1]
		assert.Len(t, final.Moves, 1)
		assert.Equal(t, "alice", final.Moves[0].PlayerID)
	}
}
