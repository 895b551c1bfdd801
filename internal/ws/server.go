package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"github.com/Halfgear/CS4530-final-project/internal/game"
	"github.com/Halfgear/CS4530-final-project/internal/pkg/lock"
	"github.com/Halfgear/CS4530-final-project/internal/service"
	"github.com/Halfgear/CS4530-final-project/internal/session"
)

const pingInterval = 15 * time.Second

// Server accepts websocket connections and translates their frames into
// engine actions. Engine errors go back to the originating connection only;
// successful state changes reach everyone through the hub.
type Server struct {
	engine       *session.Engine
	hub          *Hub
	identity     *service.IdentityService
	allowOrigins []string
}

// NewServer creates a websocket server front for the engine.
func NewServer(engine *session.Engine, hub *Hub, identity *service.IdentityService, allowOrigins []string) *Server {
	return &Server{
		engine:       engine,
		hub:          hub,
		identity:     identity,
		allowOrigins: allowOrigins,
	}
}

// Handler returns the HTTP handler exposing the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.allowOrigins) > 0 {
		opts.OriginPatterns = s.allowOrigins
	} else {
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		log.Debug().Err(err).Msg("Websocket accept failed")
		return
	}

	client := newClient()
	log.Info().Str("conn_id", client.id).Msg("Client connected")

	ctx := r.Context()

	// Writer pump: drains the client's send queue and keeps the connection
	// alive with pings.
	go func() {
		ping := time.NewTicker(pingInterval)
		defer func() {
			ping.Stop()
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
		}()
		for {
			select {
			case frame, ok := <-client.send:
				if !ok {
					return
				}
				if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.Ping(ctx); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Reader loop.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}

		var m Msg
		if err := json.Unmarshal(data, &m); err != nil {
			client.sendError("", CodeMalformedAction, "frame is not valid JSON")
			continue
		}
		s.dispatch(ctx, client, m)
	}

	s.disconnect(client)
}

// dispatch routes one inbound frame. Every error path answers the
// originating connection with a game_error frame; nothing here is fatal.
func (s *Server) dispatch(ctx context.Context, c *Client, m Msg) {
	switch m.T {
	case ActionHello:
		var p helloPayload
		if err := json.Unmarshal(m.M, &p); err != nil || p.PlayerID == "" {
			c.sendError("", CodeMalformedAction, "hello requires playerId")
			return
		}
		c.setPlayerID(p.PlayerID)
		if s.identity != nil && p.DisplayName != "" {
			s.identity.SetDisplayName(p.PlayerID, p.DisplayName)
		}
		c.sendMsg(FrameWelcome, map[string]string{"playerId": p.PlayerID})

	case ActionCreateRoom:
		var p createRoomPayload
		if err := json.Unmarshal(m.M, &p); err != nil || p.GameType == "" {
			c.sendError("", CodeMalformedAction, "create_room requires gameType")
			return
		}
		snap, err := s.engine.CreateRoom(ctx, p.GameType)
		if err != nil {
			s.replyError(c, "", err)
			return
		}
		c.sendMsg(FrameCreated, snap)

	case ActionJoinRoom:
		playerID, p, ok := s.roomAction(c, m)
		if !ok {
			return
		}
		snap, err := s.engine.JoinRoom(ctx, p.Room, playerID)
		if err != nil {
			s.replyError(c, p.Room, err)
			return
		}
		// Players get the fanout subscription along with membership.
		s.hub.Subscribe(p.Room, c)
		c.trackJoined(p.Room)
		c.sendMsg(FrameJoined, snap)

	case ActionLeaveRoom:
		playerID, p, ok := s.roomAction(c, m)
		if !ok {
			return
		}
		if err := s.engine.LeaveRoom(ctx, p.Room, playerID); err != nil {
			s.replyError(c, p.Room, err)
			return
		}
		c.untrackJoined(p.Room)
		c.sendMsg(FrameLeft, roomPayload{Room: p.Room})

	case ActionMove:
		playerID := c.PlayerID()
		if playerID == "" {
			c.sendError("", CodeNotAuthenticated, "hello first")
			return
		}
		var p movePayload
		if err := json.Unmarshal(m.M, &p); err != nil || p.Room == "" || len(p.Move) == 0 {
			c.sendError("", CodeMalformedAction, "move requires room and move")
			return
		}
		if err := s.engine.SubmitMove(ctx, p.Room, playerID, p.Move, p.Version); err != nil {
			s.replyError(c, p.Room, err)
			return
		}
		c.sendMsg(FrameAck, roomPayload{Room: p.Room})

	case ActionSubscribe:
		var p roomPayload
		if err := json.Unmarshal(m.M, &p); err != nil || p.Room == "" {
			c.sendError("", CodeMalformedAction, "subscribe requires room")
			return
		}
		// Subscription and the initial snapshot are handed over inside the
		// room's exclusive section: a concurrent move cannot slip a newer
		// update into the queue ahead of an older starting snapshot.
		err := s.engine.SubscribeRoom(ctx, p.Room, func(snap game.Snapshot) {
			s.hub.Subscribe(p.Room, c)
			c.sendMsg(FrameGameUpdate, updatePayload{
				Snapshot: snap,
				Names:    s.hub.resolveNames(snap.Players),
			})
		})
		if err != nil {
			s.replyError(c, p.Room, err)
		}

	case ActionUnsubscribe:
		var p roomPayload
		if err := json.Unmarshal(m.M, &p); err != nil || p.Room == "" {
			c.sendError("", CodeMalformedAction, "unsubscribe requires room")
			return
		}
		s.hub.Unsubscribe(p.Room, c)

	case ActionListRooms:
		var p listRoomsPayload
		if len(m.M) > 0 {
			if err := json.Unmarshal(m.M, &p); err != nil {
				c.sendError("", CodeMalformedAction, "invalid list_rooms filter")
				return
			}
		}
		summaries := s.engine.ListRooms(session.Filter{
			GameType: p.GameType,
			Status:   game.Status(p.Status),
		})
		c.sendMsg(FrameRooms, map[string]any{"rooms": summaries})

	case ActionGetRoom:
		var p roomPayload
		if err := json.Unmarshal(m.M, &p); err != nil || p.Room == "" {
			c.sendError("", CodeMalformedAction, "get_room requires room")
			return
		}
		snap, err := s.engine.GetRoom(ctx, p.Room)
		if err != nil {
			s.replyError(c, p.Room, err)
			return
		}
		c.sendMsg(FrameGameUpdate, updatePayload{
			Snapshot: snap,
			Names:    s.hub.resolveNames(snap.Players),
		})

	case ActionListGameTypes:
		types := s.engine.GameTypes()
		list := make([]map[string]any, 0, len(types))
		for _, t := range types {
			list = append(list, map[string]any{
				"key":         t.Key(),
				"name":        t.Name(),
				"description": t.Description(),
				"playerCount": t.PlayerCount(),
			})
		}
		c.sendMsg(FrameGameTypes, map[string]any{"gameTypes": list})

	default:
		c.sendError("", CodeMalformedAction, "unknown action: "+m.T)
	}
}

// roomAction decodes the common {room} payload and checks the connection
// has identified itself.
func (s *Server) roomAction(c *Client, m Msg) (playerID string, p roomPayload, ok bool) {
	playerID = c.PlayerID()
	if playerID == "" {
		c.sendError("", CodeNotAuthenticated, "hello first")
		return "", p, false
	}
	if err := json.Unmarshal(m.M, &p); err != nil || p.Room == "" {
		c.sendError("", CodeMalformedAction, m.T+" requires room")
		return "", p, false
	}
	return playerID, p, true
}

// disconnect models transport loss as explicit leaves, one code path with
// the leave_room action.
func (s *Server) disconnect(c *Client) {
	s.hub.DropClient(c)

	playerID := c.PlayerID()
	if playerID != "" {
		// The request context is gone by now; leaves still need to run.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, roomID := range c.joinedRooms() {
			if err := s.engine.LeaveRoom(ctx, roomID, playerID); err != nil &&
				!errors.Is(err, game.ErrRoomNotFound) && !errors.Is(err, game.ErrRoomGone) {
				log.Warn().
					Err(err).
					Str("room_id", roomID).
					Str("player_id", playerID).
					Msg("Leave on disconnect failed")
			}
		}
	}

	log.Info().Str("conn_id", c.id).Msg("Client disconnected")
}

// replyError maps an engine error to a game_error frame for the originating
// connection.
func (s *Server) replyError(c *Client, roomID string, err error) {
	c.sendError(roomID, errorCode(err), err.Error())
}

// errorCode maps the engine's error taxonomy onto wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, game.ErrRoomGone):
		return CodeRoomGone
	case errors.Is(err, game.ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, game.ErrAlreadyJoined):
		return CodeAlreadyJoined
	case errors.Is(err, game.ErrNotYourTurn):
		return CodeNotYourTurn
	case errors.Is(err, game.ErrInvalidMove):
		return CodeInvalidMove
	case errors.Is(err, game.ErrGameOver):
		return CodeGameOver
	case errors.Is(err, game.ErrGameNotStarted):
		return CodeGameNotStarted
	case errors.Is(err, game.ErrMalformedAction):
		return CodeMalformedAction
	case errors.Is(err, game.ErrUnknownGameType):
		return CodeUnknownGameType
	case errors.Is(err, lock.ErrLockTimeout):
		return CodeInternal
	default:
		return CodeInternal
	}
}
