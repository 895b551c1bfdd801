package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Halfgear/CS4530-final-project/internal/model"
	"github.com/Halfgear/CS4530-final-project/internal/repository"
	"github.com/Halfgear/CS4530-final-project/internal/service"
)

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]string
	upserts  int
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[string]string)}
}

func (f *fakeProfileStore) Upsert(ctx context.Context, playerID, displayName string) (*model.PlayerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[playerID] = displayName
	f.upserts++
	return &model.PlayerProfile{PlayerID: playerID, DisplayName: displayName}, nil
}

func (f *fakeProfileStore) GetByID(ctx context.Context, playerID string) (*model.PlayerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.profiles[playerID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return &model.PlayerProfile{PlayerID: playerID, DisplayName: name}, nil
}

func (f *fakeProfileStore) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

func TestIdentityService_SetThenResolve(t *testing.T) {
	store := newFakeProfileStore()
	svc := service.NewIdentityService(store)

	svc.SetDisplayName("p1", "Alice")
	// The cache answers immediately, before the background upsert lands.
	assert.Equal(t, "Alice", svc.DisplayName("p1"))

	require.Eventually(t, func() bool {
		return store.upsertCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIdentityService_UnknownPlayerFallsBackToID(t *testing.T) {
	svc := service.NewIdentityService(newFakeProfileStore())
	assert.Equal(t, "p-unknown", svc.DisplayName("p-unknown"))
}

func TestIdentityService_WarmsCacheFromStore(t *testing.T) {
	store := newFakeProfileStore()
	store.profiles["p1"] = "Stored Name"
	svc := service.NewIdentityService(store)

	// First lookup misses the cache and falls back while warming.
	assert.Equal(t, "p1", svc.DisplayName("p1"))

	require.Eventually(t, func() bool {
		return svc.DisplayName("p1") == "Stored Name"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIdentityService_NilStoreIsCacheOnly(t *testing.T) {
	svc := service.NewIdentityService(nil)

	svc.SetDisplayName("p1", "Alice")
	assert.Equal(t, "Alice", svc.DisplayName("p1"))
	assert.Equal(t, "p2", svc.DisplayName("p2"))
}

func TestIdentityService_IgnoresEmptyValues(t *testing.T) {
	store := newFakeProfileStore()
	svc := service.NewIdentityService(store)

	svc.SetDisplayName("", "Alice")
	svc.SetDisplayName("p1", "")

	assert.Equal(t, "p1", svc.DisplayName("p1"))
	assert.Equal(t, 0, store.upsertCount())
}
