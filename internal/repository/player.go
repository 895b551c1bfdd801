package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Halfgear/CS4530-final-project/internal/model"
)

// Common errors for repository operations.
var (
	ErrProfileNotFound = errors.New("player profile not found")
)

// PlayerRepository handles player display identity persistence.
type PlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(pool *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

// Upsert creates or updates a player profile's display name.
func (r *PlayerRepository) Upsert(ctx context.Context, playerID, displayName string) (*model.PlayerProfile, error) {
	const query = `
		INSERT INTO players (player_id, display_name, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (player_id)
		DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = NOW()
		RETURNING player_id, display_name, created_at, updated_at
	`

	var profile model.PlayerProfile
	err := r.pool.QueryRow(ctx, query, playerID, displayName).Scan(
		&profile.PlayerID,
		&profile.DisplayName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert player profile: %w", err)
	}

	return &profile, nil
}

// GetByID retrieves a player profile.
// Returns ErrProfileNotFound if the profile does not exist.
func (r *PlayerRepository) GetByID(ctx context.Context, playerID string) (*model.PlayerProfile, error) {
	const query = `
		SELECT player_id, display_name, created_at, updated_at
		FROM players
		WHERE player_id = $1
	`

	var profile model.PlayerProfile
	err := r.pool.QueryRow(ctx, query, playerID).Scan(
		&profile.PlayerID,
		&profile.DisplayName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get player profile: %w", err)
	}

	return &profile, nil
}
