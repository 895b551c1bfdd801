// Package model defines the persistence-facing data models for the game
// server.
package model

import "time"

// GameRecord is the completed-game metadata written to the games table once
// a room reaches its terminal state.
type GameRecord struct {
	ID        int64     `db:"id"`
	RoomID    string    `db:"room_id"`
	GameType  string    `db:"game_type"`
	Players   []string  `db:"players"`
	Winners   []string  `db:"winners"`
	MoveCount int       `db:"move_count"`
	StartedAt time.Time `db:"started_at"`
	EndedAt   time.Time `db:"ended_at"`
}

// PlayerProfile maps an authenticated player ID to its display identity.
// Authentication itself happens upstream; the engine trusts the ID it is
// handed.
type PlayerProfile struct {
	PlayerID    string    `db:"player_id"`
	DisplayName string    `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
