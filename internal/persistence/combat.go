package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Combat attribute defaults applied when a record is first written.
const (
	DefaultHealth      = 100.0
	DefaultAttackPower = 20.0
	DefaultDefense     = 10.0
)

// CombatRecord is one row of the combat table: the durable combat attributes
// for a combat-capable entity. StatusEffects maps effect name to remaining
// turns.
type CombatRecord struct {
	EntityID      string
	Health        float64
	AttackPower   float64
	Defense       float64
	StatusEffects map[string]int
}

// NewCombatRecord returns a record with default attributes and no effects.
func NewCombatRecord(entityID string) CombatRecord {
	return CombatRecord{
		EntityID:      entityID,
		Health:        DefaultHealth,
		AttackPower:   DefaultAttackPower,
		Defense:       DefaultDefense,
		StatusEffects: make(map[string]int),
	}
}

// GetCombat returns the combat record for an entity. The second return is
// false when no record exists; a missing record is a lookup miss, not an
// error.
func (s *Store) GetCombat(entityID string) (CombatRecord, bool, error) {
	var row struct {
		Health        float64 `db:"health"`
		AttackPower   float64 `db:"attack_power"`
		Defense       float64 `db:"defense"`
		StatusEffects string  `db:"status_effects"`
	}
	err := s.conn.Get(&row,
		"SELECT health, attack_power, defense, status_effects FROM combat WHERE entity_id = ?",
		entityID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return CombatRecord{}, false, nil
	}
	if err != nil {
		return CombatRecord{}, false, fmt.Errorf("read combat %s: %w", entityID, err)
	}

	rec := CombatRecord{
		EntityID:      entityID,
		Health:        row.Health,
		AttackPower:   row.AttackPower,
		Defense:       row.Defense,
		StatusEffects: make(map[string]int),
	}
	if err := json.Unmarshal([]byte(row.StatusEffects), &rec.StatusEffects); err != nil {
		return CombatRecord{}, false, fmt.Errorf("decode status effects for %s: %w", entityID, err)
	}
	return rec, true, nil
}

// PutCombat inserts or replaces a combat record.
func (s *Store) PutCombat(rec CombatRecord) error {
	effects := rec.StatusEffects
	if effects == nil {
		effects = map[string]int{}
	}
	raw, err := json.Marshal(effects)
	if err != nil {
		return fmt.Errorf("encode status effects for %s: %w", rec.EntityID, err)
	}
	_, err = s.conn.Exec(
		`INSERT OR REPLACE INTO combat (entity_id, health, attack_power, defense, status_effects)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.EntityID, rec.Health, rec.AttackPower, rec.Defense, string(raw),
	)
	if err != nil {
		return fmt.Errorf("write combat %s: %w", rec.EntityID, err)
	}
	return nil
}

// DeleteCombat removes an entity's combat record. Deleting a missing record
// is a no-op: defeat handling must be idempotent.
func (s *Store) DeleteCombat(entityID string) error {
	if _, err := s.conn.Exec("DELETE FROM combat WHERE entity_id = ?", entityID); err != nil {
		return fmt.Errorf("delete combat %s: %w", entityID, err)
	}
	return nil
}

// CombatEntityIDs returns every entity with a combat record, sorted, so turn
// processing walks the table in a deterministic order.
func (s *Store) CombatEntityIDs() ([]string, error) {
	var ids []string
	if err := s.conn.Select(&ids, "SELECT entity_id FROM combat ORDER BY entity_id"); err != nil {
		return nil, fmt.Errorf("list combat entities: %w", err)
	}
	return ids, nil
}
