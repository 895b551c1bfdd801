// Package nim implements the subtraction game (misère Nim): players take
// turns removing 1-3 objects from a shared pile, and whoever removes the
// last object loses.
package nim

import (
	"encoding/json"
	"fmt"

	"github.com/Halfgear/CS4530-final-project/internal/game"
)

const (
	// DefaultInitialObjects is the pile size for a fresh game.
	DefaultInitialObjects = 21

	// DefaultMaxTake is the most objects a single move may remove.
	DefaultMaxTake = 3

	// PlayerCount is fixed: Nim is a two-player game.
	PlayerCount = 2
)

// Config holds nim game configuration.
type Config struct {
	InitialObjects int
	MaxTake        int
}

// State is the nim game state: the number of objects remaining in the pile.
type State struct {
	Remaining int `json:"remaining"`
}

// Clone returns a copy of the state.
func (s *State) Clone() game.State {
	c := *s
	return &c
}

// movePayload is the wire shape of a nim move.
type movePayload struct {
	NumObjects int `json:"numObjects"`
}

// Nim implements the game.Type interface for the subtraction game.
type Nim struct {
	initialObjects int
	maxTake        int
}

// New creates a Nim game type. Zero config fields fall back to defaults.
func New(cfg *Config) *Nim {
	n := &Nim{
		initialObjects: DefaultInitialObjects,
		maxTake:        DefaultMaxTake,
	}
	if cfg != nil {
		if cfg.InitialObjects > 0 {
			n.initialObjects = cfg.InitialObjects
		}
		if cfg.MaxTake > 0 {
			n.maxTake = cfg.MaxTake
		}
	}
	return n
}

// Key returns the registry key for this game type.
func (n *Nim) Key() string {
	return "nim"
}

// Name returns the game's display name.
func (n *Nim) Name() string {
	return "Nim"
}

// Description returns a brief description of the game.
func (n *Nim) Description() string {
	return fmt.Sprintf("Take turns removing 1-%d objects from a pile of %d. Whoever takes the last object loses.",
		n.maxTake, n.initialObjects)
}

// PlayerCount returns the number of players nim requires.
func (n *Nim) PlayerCount() int {
	return PlayerCount
}

// NewState returns a full pile.
func (n *Nim) NewState() game.State {
	return &State{Remaining: n.initialObjects}
}

// Validate judges a proposed move. It never mutates its inputs; the new
// state is returned as a fresh value.
func (n *Nim) Validate(st game.State, players []string, mv game.Move) (*game.Outcome, error) {
	s, ok := st.(*State)
	if !ok {
		return nil, fmt.Errorf("nim: unexpected state type %T", st)
	}

	var p movePayload
	if err := json.Unmarshal(mv.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", game.ErrMalformedAction, err)
	}

	if p.NumObjects < 1 || p.NumObjects > n.maxTake {
		return nil, fmt.Errorf("%w: must take between 1 and %d objects", game.ErrInvalidMove, n.maxTake)
	}
	if p.NumObjects > s.Remaining {
		return nil, fmt.Errorf("%w: only %d objects remain", game.ErrInvalidMove, s.Remaining)
	}

	next := &State{Remaining: s.Remaining - p.NumObjects}
	out := &game.Outcome{State: next}

	if next.Remaining == 0 {
		// Misère rule: removing the last object loses, so everyone except
		// the acting player wins.
		out.Terminal = true
		for _, id := range players {
			if id != mv.PlayerID {
				out.Winners = append(out.Winners, id)
			}
		}
	}
	return out, nil
}
