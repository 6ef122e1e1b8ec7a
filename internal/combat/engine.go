// Package combat resolves attacks and status effects between entities. All
// durable combat state lives in the persistence store's combat table; the
// engine coordinates it with entity positions in the spatial registry and
// re-snapshots the registry whenever an entity is destroyed.
package combat

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/hexcrown/internal/persistence"
	"github.com/talgya/hexcrown/internal/spatial"
)

// Valid status effect names. Durations count remaining turns.
const (
	EffectStunned  = "stunned"
	EffectPoisoned = "poisoned"
	EffectBuffed   = "buffed"
)

// PoisonDamagePerTick is dealt by each poisoned effect on every status tick,
// including the tick on which the effect expires.
const PoisonDamagePerTick = 5.0

var validEffects = map[string]bool{
	EffectStunned:  true,
	EffectPoisoned: true,
	EffectBuffed:   true,
}

// Engine resolves combat between registered entities.
type Engine struct {
	reg   *spatial.Registry
	store *persistence.Store
	query *persistence.Query

	// Engagement range for InitiateCombat: 1.5x the hex size, about one
	// hex of separation between cell centers.
	engageRange float64
}

// NewEngine wires the combat engine to its collaborators. hexSize is the
// world-model hex size, not the zoomed view size.
func NewEngine(reg *spatial.Registry, store *persistence.Store, hexSize float64) *Engine {
	return &Engine{
		reg:         reg,
		store:       store,
		query:       store.Query(),
		engageRange: hexSize * 1.5,
	}
}

// EngagementRange returns the maximum distance at which InitiateCombat
// accepts a target.
func (e *Engine) EngagementRange() float64 {
	return e.engageRange
}

// Attributes returns an entity's combat record. The second return is false
// when the entity has no record yet.
func (e *Engine) Attributes(entityID string) (persistence.CombatRecord, bool, error) {
	return e.store.GetCombat(entityID)
}

// AttributePatch selects which combat attributes UpdateAttributes changes.
// Nil fields keep their current (or default) values.
type AttributePatch struct {
	Health        *float64
	AttackPower   *float64
	Defense       *float64
	StatusEffects map[string]int
}

// UpdateAttributes writes combat attributes for an entity, creating the
// record with defaults on first write. The entity must exist in the spatial
// registry, not merely in the combat table.
func (e *Engine) UpdateAttributes(entityID string, patch AttributePatch) error {
	if _, ok := e.reg.EntityPosition(entityID); !ok {
		return fmt.Errorf("%w: entity %q", spatial.ErrNotFound, entityID)
	}

	rec, ok, err := e.store.GetCombat(entityID)
	if err != nil {
		return err
	}
	if !ok {
		rec = persistence.NewCombatRecord(entityID)
	}
	if patch.Health != nil {
		rec.Health = *patch.Health
	}
	if patch.AttackPower != nil {
		rec.AttackPower = *patch.AttackPower
	}
	if patch.Defense != nil {
		rec.Defense = *patch.Defense
	}
	if patch.StatusEffects != nil {
		rec.StatusEffects = patch.StatusEffects
	}
	return e.store.PutCombat(rec)
}

// Target is a candidate returned by FindTargetsInRange.
type Target struct {
	ID       string
	Position spatial.Position
}

// FindTargetsInRange returns at most one target: the entity nearest to the
// attacker within attackRange, excluding the attacker itself. Single-target
// acquisition is the designed behavior, not an optimization. The scan runs
// against the persisted snapshot, so unsaved registry changes are invisible.
func (e *Engine) FindTargetsInRange(attackerID string, attackRange float64) ([]Target, error) {
	if attackRange < 0 {
		return nil, fmt.Errorf("%w: attack range must be non-negative", spatial.ErrInvalidArgument)
	}
	pos, ok := e.reg.EntityPosition(attackerID)
	if !ok {
		return nil, fmt.Errorf("%w: attacker %q", spatial.ErrNotFound, attackerID)
	}

	id, targetPos, found, err := e.query.FindNearestEntityExcluding(pos, attackerID, attackRange)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return []Target{{ID: id, Position: targetPos}}, nil
}

// ResolveCombat applies one attack from attacker to defender and reports
// whether the defender was defeated. A stunned attacker loses the action:
// no damage, defeated is false.
func (e *Engine) ResolveCombat(attackerID, defenderID string) (bool, error) {
	attacker, ok, err := e.store.GetCombat(attackerID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: combat record for attacker %q", spatial.ErrNotFound, attackerID)
	}
	defender, ok, err := e.store.GetCombat(defenderID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: combat record for defender %q", spatial.ErrNotFound, defenderID)
	}

	if attacker.StatusEffects[EffectStunned] > 0 {
		return false, nil
	}

	damage := math.Max(1.0, attacker.AttackPower-0.5*defender.Defense)
	defender.Health = math.Max(0.0, defender.Health-damage)

	slog.Debug("combat resolved",
		"attacker", attackerID,
		"defender", defenderID,
		"damage", damage,
		"defender_health", defender.Health,
	)

	if defender.Health <= 0 {
		return true, e.destroy(defenderID)
	}
	return false, e.store.PutCombat(defender)
}

// InitiateCombat checks that the target is within engagement range before
// delegating to ResolveCombat.
func (e *Engine) InitiateCombat(attackerID, targetID string) (bool, error) {
	attackerPos, ok := e.reg.EntityPosition(attackerID)
	if !ok {
		return false, fmt.Errorf("%w: attacker %q", spatial.ErrNotFound, attackerID)
	}
	targetPos, ok := e.reg.EntityPosition(targetID)
	if !ok {
		return false, fmt.Errorf("%w: target %q", spatial.ErrNotFound, targetID)
	}

	if dist := attackerPos.DistanceTo(targetPos); dist > e.engageRange {
		return false, fmt.Errorf("%w: target %q at distance %.2f, engagement range %.2f",
			spatial.ErrOutOfRange, targetID, dist, e.engageRange)
	}
	return e.ResolveCombat(attackerID, targetID)
}

// ApplyStatusEffect sets an effect's remaining duration on an entity,
// overwriting any existing duration for that effect.
func (e *Engine) ApplyStatusEffect(entityID, effect string, duration int) error {
	if !validEffects[effect] {
		return fmt.Errorf("%w: unknown status effect %q", spatial.ErrInvalidArgument, effect)
	}
	if duration < 0 {
		return fmt.Errorf("%w: duration must be non-negative", spatial.ErrInvalidArgument)
	}
	if _, ok := e.reg.EntityPosition(entityID); !ok {
		return fmt.Errorf("%w: entity %q", spatial.ErrNotFound, entityID)
	}

	rec, ok, err := e.store.GetCombat(entityID)
	if err != nil {
		return err
	}
	if !ok {
		rec = persistence.NewCombatRecord(entityID)
	}
	rec.StatusEffects[effect] = duration
	return e.store.PutCombat(rec)
}

// UpdateStatusEffects advances one turn of status decay for an entity:
// every effect's duration drops by one and expired effects are pruned.
// Poison deals its damage even on the expiry tick. If poison kills the
// entity, it is destroyed immediately and the remaining effect updates for
// it are skipped. An entity without a combat record is a no-op.
func (e *Engine) UpdateStatusEffects(entityID string) error {
	rec, ok, err := e.store.GetCombat(entityID)
	if err != nil || !ok {
		return err
	}

	// Walk effects in sorted order so the poison-death early exit is
	// deterministic.
	names := make([]string, 0, len(rec.StatusEffects))
	for name := range rec.StatusEffects {
		names = append(names, name)
	}
	sort.Strings(names)

	next := make(map[string]int, len(rec.StatusEffects))
	for _, name := range names {
		if remaining := rec.StatusEffects[name] - 1; remaining > 0 {
			next[name] = remaining
		}
		if name == EffectPoisoned && rec.Health > 0 {
			rec.Health = math.Max(0.0, rec.Health-PoisonDamagePerTick)
			if rec.Health <= 0 {
				return e.destroy(entityID)
			}
		}
	}

	rec.StatusEffects = next
	return e.store.PutCombat(rec)
}

// destroy removes a defeated entity from the registry, deletes its combat
// record, and snapshots the registry. The combat row is deleted even when
// the entity is already gone from the registry: orphaned records are not
// allowed to linger.
func (e *Engine) destroy(entityID string) error {
	if _, ok := e.reg.EntityPosition(entityID); ok {
		if err := e.reg.RemoveEntity(entityID); err != nil {
			return err
		}
	}
	if err := e.store.DeleteCombat(entityID); err != nil {
		return err
	}
	if err := e.store.Save(e.reg); err != nil {
		return fmt.Errorf("snapshot after defeat of %q: %w", entityID, err)
	}
	slog.Info("entity destroyed", "entity", entityID)
	return nil
}
