// Package service provides the business logic sitting between the engine
// and the persistence layer.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Halfgear/CS4530-final-project/internal/game"
	"github.com/Halfgear/CS4530-final-project/internal/model"
)

// insertTimeout bounds a single history write.
const insertTimeout = 5 * time.Second

// GameStore is the slice of the repository layer the history service needs.
type GameStore interface {
	Insert(ctx context.Context, rec *model.GameRecord) (*model.GameRecord, error)
}

// HistoryService records finished games asynchronously. RecordFinished never
// blocks: it runs on the hot path right after a room's exclusive section, so
// a slow database drops the record instead of stalling move processing.
type HistoryService struct {
	games     GameStore
	queue     chan model.GameRecord
	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewHistoryService creates a history service with the given queue capacity.
func NewHistoryService(games GameStore, queueSize int) *HistoryService {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &HistoryService{
		games: games,
		queue: make(chan model.GameRecord, queueSize),
	}
}

// Start launches the writer goroutine.
func (s *HistoryService) Start() {
	s.wg.Add(1)
	go s.run()
}

// RecordFinished enqueues a finished game for persistence. When the queue is
// full the record is dropped with a warning.
func (s *HistoryService) RecordFinished(snap game.Snapshot) {
	if s.closed.Load() {
		return
	}

	rec := model.GameRecord{
		RoomID:    snap.RoomID,
		GameType:  snap.GameType,
		Players:   snap.Players,
		Winners:   snap.Winners,
		MoveCount: len(snap.Moves),
		StartedAt: snap.CreatedAt,
		EndedAt:   snap.UpdatedAt,
	}

	select {
	case s.queue <- rec:
	default:
		log.Warn().
			Str("room_id", snap.RoomID).
			Msg("History queue full, dropping game record")
	}
}

// Close stops accepting records, drains the queue and waits for the writer
// to finish.
func (s *HistoryService) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.queue)
	})
	s.wg.Wait()
}

func (s *HistoryService) run() {
	defer s.wg.Done()

	for rec := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		_, err := s.games.Insert(ctx, &rec)
		cancel()
		if err != nil {
			log.Error().
				Err(err).
				Str("room_id", rec.RoomID).
				Msg("Failed to persist game record")
			continue
		}
		log.Debug().
			Str("room_id", rec.RoomID).
			Str("game_type", rec.GameType).
			Strs("winners", rec.Winners).
			Msg("Game record persisted")
	}
}
