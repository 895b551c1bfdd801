package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Halfgear/CS4530-final-project/internal/model"
	"github.com/Halfgear/CS4530-final-project/internal/repository"
)

// ProfileStore is the slice of the repository layer the identity service
// needs.
type ProfileStore interface {
	Upsert(ctx context.Context, playerID, displayName string) (*model.PlayerProfile, error)
	GetByID(ctx context.Context, playerID string) (*model.PlayerProfile, error)
}

// IdentityService resolves player IDs to display names. Reads are served
// from an in-memory cache so rendering a snapshot never waits on the
// database; writes land in the cache immediately and reach the database in
// the background. profiles may be nil when persistence is disabled, in
// which case the cache is the only store.
type IdentityService struct {
	profiles ProfileStore

	mu    sync.RWMutex
	cache map[string]string
}

// NewIdentityService creates a new IdentityService instance.
func NewIdentityService(profiles ProfileStore) *IdentityService {
	return &IdentityService{
		profiles: profiles,
		cache:    make(map[string]string),
	}
}

// SetDisplayName records a player's display name. The cache takes effect
// immediately; the database write happens asynchronously.
func (s *IdentityService) SetDisplayName(playerID, displayName string) {
	if playerID == "" || displayName == "" {
		return
	}

	s.mu.Lock()
	s.cache[playerID] = displayName
	s.mu.Unlock()

	if s.profiles == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		defer cancel()
		if _, err := s.profiles.Upsert(ctx, playerID, displayName); err != nil {
			log.Error().
				Err(err).
				Str("player_id", playerID).
				Msg("Failed to persist player profile")
		}
	}()
}

// DisplayName resolves a player ID to its display name. Unknown players
// fall back to the raw ID; a background lookup warms the cache for next
// time.
func (s *IdentityService) DisplayName(playerID string) string {
	s.mu.RLock()
	name, ok := s.cache[playerID]
	s.mu.RUnlock()
	if ok {
		return name
	}

	if s.profiles != nil {
		go s.warm(playerID)
	}
	return playerID
}

func (s *IdentityService) warm(playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	profile, err := s.profiles.GetByID(ctx, playerID)
	if err != nil {
		if !errors.Is(err, repository.ErrProfileNotFound) {
			log.Error().
				Err(err).
				Str("player_id", playerID).
				Msg("Failed to load player profile")
		}
		return
	}

	s.mu.Lock()
	if _, ok := s.cache[playerID]; !ok {
		s.cache[playerID] = profile.DisplayName
	}
	s.mu.Unlock()
}
