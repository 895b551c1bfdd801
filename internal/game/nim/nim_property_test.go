// Property-based tests for the subtraction game rules.
package nim

import (
	"encoding/json"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/Halfgear/CS4530-final-project/internal/game"
)

// TestGameTerminationProperty plays arbitrary legal move sequences and checks
// that the game always terminates within the initial object count, and that
// the winner is the player who did NOT take the last object.
func TestGameTerminationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.IntRange(1, 60).Draw(t, "initialObjects")
		n := New(&Config{InitialObjects: initial})
		players := []string{"alice", "bob"}

		st := n.NewState()
		moves := 0
		var lastMover string
		var winners []string

		for {
			actor := players[moves%len(players)]
			remaining := st.(*State).Remaining

			maxTake := DefaultMaxTake
			if remaining < maxTake {
				maxTake = remaining
			}
			take := rapid.IntRange(1, maxTake).Draw(t, "take")

			mv := game.Move{
				PlayerID: actor,
				Payload:  json.RawMessage(fmt.Sprintf(`{"numObjects":%d}`, take)),
			}
			out, err := n.Validate(st, players, mv)
			if err != nil {
				t.Fatalf("Legal move rejected: take %d of %d remaining: %v", take, remaining, err)
			}

			st = out.State
			moves++
			lastMover = actor

			if out.Terminal {
				winners = out.Winners
				break
			}
			if moves > initial {
				t.Fatalf("Game did not terminate within %d moves", initial)
			}
		}

		if st.(*State).Remaining != 0 {
			t.Fatalf("Terminal state should have 0 remaining, got %d", st.(*State).Remaining)
		}
		if len(winners) != 1 {
			t.Fatalf("Expected exactly one winner, got %v", winners)
		}
		if winners[0] == lastMover {
			t.Fatalf("Player %s took the last object and must lose, but won", lastMover)
		}
	})
}

// TestValidateNeverMutatesInputProperty checks purity: for any state and any
// proposed take, Validate leaves its input state untouched whether it accepts
// or rejects.
func TestValidateNeverMutatesInputProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := New(nil)
		players := []string{"alice", "bob"}

		remaining := rapid.IntRange(0, 50).Draw(t, "remaining")
		take := rapid.IntRange(-2, 6).Draw(t, "take")

		st := &State{Remaining: remaining}
		mv := game.Move{
			PlayerID: "alice",
			Payload:  json.RawMessage(fmt.Sprintf(`{"numObjects":%d}`, take)),
		}

		_, _ = n.Validate(st, players, mv)

		if st.Remaining != remaining {
			t.Fatalf("Validate mutated input state: %d -> %d", remaining, st.Remaining)
		}
	})
}
