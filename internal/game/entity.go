package game

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind tags what a game entity is. Behavior differences between kinds
// live in the session command handlers, not in the entities themselves.
type Kind string

const (
	KindUnit     Kind = "unit"
	KindCity     Kind = "city"
	KindResource Kind = "resource"
)

// Entity is the session-level record for a spawned game object. The
// spatial registry holds its position; the combat table holds its
// attributes. This struct carries only what neither of those track.
type Entity struct {
	ID   string
	Kind Kind
	Name string

	// MovementPoints is the remaining budget this turn. Only meaningful
	// for units; zero for everything else.
	MovementPoints int

	// OnTurnEnd, when set, runs during EndTurn after movement points
	// reset. Used for per-entity behavior like city production.
	OnTurnEnd func(*Entity)
}

// entityID builds a registry id for a spawned entity. Named entities
// get a stable, readable id; anonymous ones get a uuid suffix. The
// kind prefix is what the prefix-count and nearest queries group on,
// so the name must not introduce extra separators before it.
func entityID(kind Kind, name string) string {
	if name == "" {
		return fmt.Sprintf("%s_%s", kind, uuid.NewString())
	}
	clean := strings.ReplaceAll(strings.ToLower(name), " ", "-")
	return fmt.Sprintf("%s_%s", kind, clean)
}
