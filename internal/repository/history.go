// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Halfgear/CS4530-final-project/internal/model"
)

// HistoryRepository handles completed-game persistence.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new HistoryRepository instance.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Insert writes a completed game record and returns it with its assigned ID.
func (r *HistoryRepository) Insert(ctx context.Context, rec *model.GameRecord) (*model.GameRecord, error) {
	const query = `
		INSERT INTO games (room_id, game_type, players, winners, move_count, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	out := *rec
	err := r.pool.QueryRow(ctx, query,
		rec.RoomID,
		rec.GameType,
		rec.Players,
		rec.Winners,
		rec.MoveCount,
		rec.StartedAt,
		rec.EndedAt,
	).Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert game record: %w", err)
	}

	return &out, nil
}

// ListRecent returns the most recently finished games, newest first.
func (r *HistoryRepository) ListRecent(ctx context.Context, limit int) ([]model.GameRecord, error) {
	const query = `
		SELECT id, room_id, game_type, players, winners, move_count, started_at, ended_at
		FROM games
		ORDER BY ended_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list game records: %w", err)
	}
	defer rows.Close()

	var records []model.GameRecord
	for rows.Next() {
		var rec model.GameRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.RoomID,
			&rec.GameType,
			&rec.Players,
			&rec.Winners,
			&rec.MoveCount,
			&rec.StartedAt,
			&rec.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game records: %w", err)
	}

	return records, nil
}

// ListByPlayer returns the games a player took part in, newest first.
func (r *HistoryRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]model.GameRecord, error) {
	const query = `
		SELECT id, room_id, game_type, players, winners, move_count, started_at, ended_at
		FROM games
		WHERE $1 = ANY(players)
		ORDER BY ended_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list game records for player: %w", err)
	}
	defer rows.Close()

	var records []model.GameRecord
	for rows.Next() {
		var rec model.GameRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.RoomID,
			&rec.GameType,
			&rec.Players,
			&rec.Winners,
			&rec.MoveCount,
			&rec.StartedAt,
			&rec.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game records: %w", err)
	}

	return records, nil
}
