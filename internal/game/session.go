// Package game wires the spatial, terrain, path and combat layers into
// a turn-based session with a small command surface.
package game

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/hexcrown/internal/combat"
	"github.com/talgya/hexcrown/internal/hexgrid"
	"github.com/talgya/hexcrown/internal/path"
	"github.com/talgya/hexcrown/internal/persistence"
	"github.com/talgya/hexcrown/internal/spatial"
)

// Session owns the live world state and runs the turn loop. All
// collaborators are injected; the session never constructs its own
// storage or engines.
type Session struct {
	cfg     Config
	reg     *spatial.Registry
	store   *persistence.Store
	query   *persistence.Query
	planner *path.Planner
	combat  *combat.Engine
	layout  hexgrid.Layout

	turn     int
	entities map[string]*Entity
	selected string
	lastPath []hexgrid.HexCoord
}

// NewSession assembles a session around an already-populated registry.
func NewSession(cfg Config, reg *spatial.Registry, store *persistence.Store, planner *path.Planner, eng *combat.Engine) *Session {
	return &Session{
		cfg:      cfg,
		reg:      reg,
		store:    store,
		query:    store.Query(),
		planner:  planner,
		combat:   eng,
		layout:   hexgrid.Layout{Size: cfg.HexSize},
		turn:     1,
		entities: make(map[string]*Entity),
	}
}

// Turn reports the current turn number, starting at 1.
func (s *Session) Turn() int { return s.turn }

// Entity returns the session record for an id.
func (s *Session) Entity(id string) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Entities returns all session records keyed by id. The map is a copy;
// the records are shared.
func (s *Session) Entities() map[string]*Entity {
	out := make(map[string]*Entity, len(s.entities))
	for id, e := range s.entities {
		out[id] = e
	}
	return out
}

// EntityPositions exposes the live registry positions for rendering.
func (s *Session) EntityPositions() map[string]spatial.Position {
	return s.reg.AllEntityPositions()
}

// GeometryByCategory exposes static geometry for rendering.
func (s *Session) GeometryByCategory(category string) map[string]spatial.Geometry {
	return s.reg.StaticGeometryByCategory(category)
}

// Attributes reads an entity's combat record.
func (s *Session) Attributes(id string) (persistence.CombatRecord, bool, error) {
	return s.combat.Attributes(id)
}

// LastPath returns the most recent successful movement path, for the
// renderer's path overlay.
func (s *Session) LastPath() []hexgrid.HexCoord {
	return append([]hexgrid.HexCoord(nil), s.lastPath...)
}

// SelectedUnit returns the id of the currently selected unit, if any.
func (s *Session) SelectedUnit() (string, bool) {
	return s.selected, s.selected != ""
}

// SpawnUnit places a unit at the center of a hex cell with a fresh
// combat record and a full movement budget. An empty name yields a
// generated id.
func (s *Session) SpawnUnit(name string, at hexgrid.HexCoord) (string, error) {
	id := entityID(KindUnit, name)
	if err := s.spawn(id, at); err != nil {
		return "", err
	}
	s.entities[id] = &Entity{
		ID:             id,
		Kind:           KindUnit,
		Name:           name,
		MovementPoints: s.cfg.MovementPoints,
	}
	return id, nil
}

// SpawnCity places a city at the center of a hex cell. Cities hold
// position and a combat record but never move.
func (s *Session) SpawnCity(name string, at hexgrid.HexCoord) (string, error) {
	id := entityID(KindCity, name)
	if err := s.spawn(id, at); err != nil {
		return "", err
	}
	s.entities[id] = &Entity{ID: id, Kind: KindCity, Name: name}
	return id, nil
}

func (s *Session) spawn(id string, at hexgrid.HexCoord) error {
	if _, exists := s.entities[id]; exists {
		return fmt.Errorf("spawn %s: %w", id, spatial.ErrAlreadyExists)
	}
	pos := s.layout.ToCartesian(at)
	if err := s.reg.AddEntity(id, pos); err != nil {
		return fmt.Errorf("spawn %s: %w", id, err)
	}
	if err := s.combat.UpdateAttributes(id, combat.AttributePatch{}); err != nil {
		return fmt.Errorf("spawn %s: %w", id, err)
	}
	if err := s.store.Save(s.reg); err != nil {
		return fmt.Errorf("spawn %s: %w", id, err)
	}
	slog.Info("spawned", "id", id, "q", at.Q, "r", at.R)
	return nil
}

// RestoreEntities rebuilds session records for a registry loaded from
// disk. Kinds come from the id prefix; resources are positional only
// and stay out of the session table.
func (s *Session) RestoreEntities() {
	for id := range s.reg.AllEntityPositions() {
		if _, exists := s.entities[id]; exists {
			continue
		}
		prefix, _, _ := strings.Cut(id, "_")
		switch Kind(prefix) {
		case KindUnit:
			s.entities[id] = &Entity{
				ID:             id,
				Kind:           KindUnit,
				MovementPoints: s.cfg.MovementPoints,
			}
		case KindCity:
			s.entities[id] = &Entity{ID: id, Kind: KindCity}
		}
	}
}

// SelectUnitAt picks the nearest unit within one hex size of a world
// position and marks it selected. Returns false when nothing is close
// enough.
func (s *Session) SelectUnitAt(pos spatial.Position) (string, bool, error) {
	id, _, found, err := s.query.FindNearestEntity(pos, string(KindUnit), s.cfg.HexSize)
	if err != nil {
		return "", false, err
	}
	if !found {
		s.selected = ""
		return "", false, nil
	}
	s.selected = id
	return id, true, nil
}

// MoveUnit plans a path to the goal cell and executes it when the
// terrain cost fits the unit's remaining movement points. The returned
// path is start-inclusive.
func (s *Session) MoveUnit(id string, goal hexgrid.HexCoord) ([]hexgrid.HexCoord, error) {
	ent, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("move %s: %w", id, spatial.ErrNotFound)
	}
	if ent.Kind != KindUnit {
		return nil, fmt.Errorf("move %s: %s cannot move: %w", id, ent.Kind, spatial.ErrInvalidArgument)
	}
	pos, ok := s.reg.EntityPosition(id)
	if !ok {
		return nil, fmt.Errorf("move %s: %w", id, spatial.ErrNotFound)
	}

	start := s.layout.FromCartesian(pos.X, pos.Y)
	cells := s.planner.FindPathHex(start, goal)
	if len(cells) == 0 {
		return nil, fmt.Errorf("move %s: no path to (%d,%d): %w", id, goal.Q, goal.R, spatial.ErrOutOfRange)
	}

	cost := s.planner.Cost(cells)
	if cost > ent.MovementPoints {
		return nil, fmt.Errorf("move %s: path costs %d, %d movement left: %w",
			id, cost, ent.MovementPoints, spatial.ErrOutOfRange)
	}

	if err := s.reg.UpdateEntityPosition(id, s.layout.ToCartesian(goal)); err != nil {
		return nil, fmt.Errorf("move %s: %w", id, err)
	}
	ent.MovementPoints -= cost
	s.lastPath = cells
	if err := s.store.Save(s.reg); err != nil {
		return nil, fmt.Errorf("move %s: %w", id, err)
	}
	slog.Info("moved", "id", id, "q", goal.Q, "r", goal.R, "cost", cost, "movement_left", ent.MovementPoints)
	return cells, nil
}

// Attack resolves an attack from one entity against another, subject to
// the combat engine's engagement range.
func (s *Session) Attack(attackerID, targetID string) (bool, error) {
	defeated, err := s.combat.InitiateCombat(attackerID, targetID)
	if err != nil {
		return false, err
	}
	if defeated {
		delete(s.entities, targetID)
		if s.selected == targetID {
			s.selected = ""
		}
	}
	return defeated, nil
}

// EndTurn advances the turn counter, restores unit movement budgets,
// runs per-entity hooks, ticks every active status effect and persists
// the result.
func (s *Session) EndTurn() error {
	s.turn++
	for _, e := range s.entities {
		if e.Kind == KindUnit {
			e.MovementPoints = s.cfg.MovementPoints
		}
		if e.OnTurnEnd != nil {
			e.OnTurnEnd(e)
		}
	}

	ids, err := s.store.CombatEntityIDs()
	if err != nil {
		return fmt.Errorf("end turn: %w", err)
	}
	for _, id := range ids {
		if err := s.combat.UpdateStatusEffects(id); err != nil {
			return fmt.Errorf("end turn: tick %s: %w", id, err)
		}
		// Effects can kill; drop the session record when the registry
		// no longer has the entity.
		if _, alive := s.reg.EntityPosition(id); !alive {
			delete(s.entities, id)
			if s.selected == id {
				s.selected = ""
			}
		}
	}

	if err := s.store.Save(s.reg); err != nil {
		return fmt.Errorf("end turn: %w", err)
	}
	slog.Info("turn ended", "turn", s.turn, "entities", len(s.entities))
	return nil
}
