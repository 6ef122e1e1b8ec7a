package game

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/hexcrown/internal/combat"
	"github.com/talgya/hexcrown/internal/hexgrid"
	"github.com/talgya/hexcrown/internal/path"
	"github.com/talgya/hexcrown/internal/persistence"
	"github.com/talgya/hexcrown/internal/spatial"
	"github.com/talgya/hexcrown/internal/terrain"
)

// testSession builds a session over a small all-plain map strip so
// movement costs are predictable.
func testSession(t *testing.T) (*Session, *combat.Engine, *persistence.Store) {
	t.Helper()
	cfg := Config{
		GridWidth:      8,
		GridHeight:     8,
		HexSize:        20,
		MovementPoints: 5,
	}
	store, err := persistence.Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := spatial.NewRegistry()
	layout := hexgrid.Layout{Size: cfg.HexSize}
	for q := -2; q <= 4; q++ {
		for r := -2; r <= 2; r++ {
			h := hexgrid.HexCoord{Q: q, R: r}
			if err := reg.AddStaticPolygon(h.GeometryID(), layout.Corners(h), string(terrain.Plain)); err != nil {
				t.Fatal(err)
			}
		}
	}

	planner := path.NewPlanner(reg, layout, terrain.DefaultSet())
	eng := combat.NewEngine(reg, store, cfg.HexSize)
	return NewSession(cfg, reg, store, planner, eng), eng, store
}

func TestSpawnUnit(t *testing.T) {
	s, _, store := testSession(t)

	id, err := s.SpawnUnit("", hexgrid.HexCoord{Q: 0, R: 0})
	if err != nil {
		t.Fatalf("SpawnUnit: %v", err)
	}
	if !strings.HasPrefix(id, "unit_") {
		t.Fatalf("generated id %q lacks unit_ prefix", id)
	}

	ent, ok := s.Entity(id)
	if !ok {
		t.Fatal("session record missing")
	}
	if ent.Kind != KindUnit || ent.MovementPoints != 5 {
		t.Fatalf("entity = %+v", ent)
	}

	rec, ok, err := s.Attributes(id)
	if err != nil || !ok {
		t.Fatalf("Attributes: ok=%v err=%v", ok, err)
	}
	if rec.Health != persistence.DefaultHealth {
		t.Fatalf("health = %v", rec.Health)
	}

	// Spawn persists, so the durable snapshot already has the unit.
	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := loaded.EntityPosition(id); !ok {
		t.Fatal("spawned unit missing from durable snapshot")
	}
}

func TestSpawnNamedAndDuplicate(t *testing.T) {
	s, _, _ := testSession(t)

	id, err := s.SpawnUnit("Scout One", hexgrid.HexCoord{Q: 0, R: 0})
	if err != nil {
		t.Fatal(err)
	}
	if id != "unit_scout-one" {
		t.Fatalf("id = %q", id)
	}

	if _, err := s.SpawnUnit("Scout One", hexgrid.HexCoord{Q: 1, R: 0}); !errors.Is(err, spatial.ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyExists", err)
	}

	cid, err := s.SpawnCity("Karth", hexgrid.HexCoord{Q: 2, R: 0})
	if err != nil {
		t.Fatal(err)
	}
	if cid != "city_karth" {
		t.Fatalf("city id = %q", cid)
	}
}

func TestSelectUnitAt(t *testing.T) {
	s, _, _ := testSession(t)
	id, err := s.SpawnUnit("scout", hexgrid.HexCoord{Q: 0, R: 0})
	if err != nil {
		t.Fatal(err)
	}

	got, found, err := s.SelectUnitAt(spatial.Position{X: 5, Y: 5})
	if err != nil {
		t.Fatal(err)
	}
	if !found || got != id {
		t.Fatalf("selected %q found=%v, want %q", got, found, id)
	}
	if sel, ok := s.SelectedUnit(); !ok || sel != id {
		t.Fatalf("SelectedUnit = %q %v", sel, ok)
	}

	// Far from any unit: selection clears.
	got, found, err = s.SelectUnitAt(spatial.Position{X: 500, Y: 500})
	if err != nil {
		t.Fatal(err)
	}
	if found || got != "" {
		t.Fatalf("far select = %q found=%v", got, found)
	}
	if _, ok := s.SelectedUnit(); ok {
		t.Fatal("selection not cleared")
	}
}

func TestMoveUnitBudget(t *testing.T) {
	s, _, _ := testSession(t)
	id, err := s.SpawnUnit("scout", hexgrid.HexCoord{Q: 0, R: 0})
	if err != nil {
		t.Fatal(err)
	}

	// Three plain steps cost 3 of the 5-point budget.
	cells, err := s.MoveUnit(id, hexgrid.HexCoord{Q: 3, R: 0})
	if err != nil {
		t.Fatalf("MoveUnit: %v", err)
	}
	if len(cells) != 4 {
		t.Fatalf("path length = %d, want 4 (start-inclusive)", len(cells))
	}
	ent, _ := s.Entity(id)
	if ent.MovementPoints != 2 {
		t.Fatalf("movement left = %d, want 2", ent.MovementPoints)
	}
	if got := s.LastPath(); len(got) != 4 {
		t.Fatalf("LastPath length = %d", len(got))
	}

	// Another 3 steps exceeds the remaining 2 points.
	if _, err := s.MoveUnit(id, hexgrid.HexCoord{Q: 0, R: 0}); !errors.Is(err, spatial.ErrOutOfRange) {
		t.Fatalf("over-budget err = %v, want ErrOutOfRange", err)
	}
	if ent.MovementPoints != 2 {
		t.Fatalf("failed move spent points: %d", ent.MovementPoints)
	}
}

func TestMoveUnitErrors(t *testing.T) {
	s, _, _ := testSession(t)
	uid, _ := s.SpawnUnit("scout", hexgrid.HexCoord{Q: 0, R: 0})
	cid, _ := s.SpawnCity("karth", hexgrid.HexCoord{Q: 1, R: 0})

	if _, err := s.MoveUnit("ghost", hexgrid.HexCoord{Q: 1, R: 0}); !errors.Is(err, spatial.ErrNotFound) {
		t.Fatalf("missing entity err = %v", err)
	}
	if _, err := s.MoveUnit(cid, hexgrid.HexCoord{Q: 2, R: 0}); !errors.Is(err, spatial.ErrInvalidArgument) {
		t.Fatalf("city move err = %v", err)
	}
	// Off the laid-out strip: no path.
	if _, err := s.MoveUnit(uid, hexgrid.HexCoord{Q: 20, R: 20}); !errors.Is(err, spatial.ErrOutOfRange) {
		t.Fatalf("unreachable err = %v", err)
	}
}

func TestAttackRangeAndDefeat(t *testing.T) {
	s, eng, _ := testSession(t)
	atk, _ := s.SpawnUnit("attacker", hexgrid.HexCoord{Q: 0, R: 0})
	// Same cell keeps the pair inside the 1.5x hex size engagement range.
	def, _ := s.SpawnUnit("defender", hexgrid.HexCoord{Q: 0, R: 0})
	far, _ := s.SpawnUnit("bystander", hexgrid.HexCoord{Q: 3, R: 0})

	if _, err := s.Attack(atk, far); !errors.Is(err, spatial.ErrOutOfRange) {
		t.Fatalf("far attack err = %v, want ErrOutOfRange", err)
	}

	defeated, err := s.Attack(atk, def)
	if err != nil {
		t.Fatalf("Attack: %v", err)
	}
	if defeated {
		t.Fatal("first hit defeated a full-health unit")
	}

	// Wear the defender down. Default stats give 15 damage a hit.
	if err := eng.UpdateAttributes(def, combat.AttributePatch{Health: floatPtr(10)}); err != nil {
		t.Fatal(err)
	}
	defeated, err = s.Attack(atk, def)
	if err != nil {
		t.Fatal(err)
	}
	if !defeated {
		t.Fatal("10-health defender survived")
	}
	if _, ok := s.Entity(def); ok {
		t.Fatal("defeated unit still in session")
	}
}

func TestEndTurn(t *testing.T) {
	s, eng, store := testSession(t)
	id, _ := s.SpawnUnit("scout", hexgrid.HexCoord{Q: 0, R: 0})
	doomed, _ := s.SpawnUnit("doomed", hexgrid.HexCoord{Q: 1, R: 0})

	hooked := false
	ent, _ := s.Entity(id)
	ent.OnTurnEnd = func(*Entity) { hooked = true }

	if _, err := s.MoveUnit(id, hexgrid.HexCoord{Q: 2, R: 0}); err != nil {
		t.Fatal(err)
	}

	if err := eng.UpdateAttributes(doomed, combat.AttributePatch{Health: floatPtr(3)}); err != nil {
		t.Fatal(err)
	}
	if err := eng.ApplyStatusEffect(doomed, combat.EffectPoisoned, 1); err != nil {
		t.Fatal(err)
	}

	if err := s.EndTurn(); err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	if s.Turn() != 2 {
		t.Fatalf("turn = %d, want 2", s.Turn())
	}
	if ent.MovementPoints != 5 {
		t.Fatalf("movement not reset: %d", ent.MovementPoints)
	}
	if !hooked {
		t.Fatal("turn-end hook did not run")
	}

	// The poison tick killed the 3-health unit everywhere.
	if _, ok := s.Entity(doomed); ok {
		t.Fatal("dead unit still in session")
	}
	if _, ok, _ := store.GetCombat(doomed); ok {
		t.Fatal("dead unit still has a combat record")
	}
}

func floatPtr(v float64) *float64 { return &v }
