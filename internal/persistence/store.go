// Package persistence provides the SQLite-backed durable snapshot of the
// spatial registry, the combat attribute table, and the read-only spatial
// query engine that runs against the snapshot. Queries see the last saved
// state, not the live registry: staleness until the next Save is a documented
// consistency boundary, not a bug.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hexcrown/internal/spatial"
)

// Store wraps a SQLite connection holding the durable world snapshot.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path and runs
// migrations. The created_at metadata key is written once, on first open.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS geometry (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		data TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS combat (
		entity_id TEXT PRIMARY KEY,
		health REAL NOT NULL DEFAULT 100.0,
		attack_power REAL NOT NULL DEFAULT 20.0,
		defense REAL NOT NULL DEFAULT 10.0,
		status_effects TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_geometry_category ON geometry(category);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return err
	}

	_, err := s.conn.Exec(
		"INSERT OR IGNORE INTO metadata (key, value) VALUES (?, ?)",
		"created_at", time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// geomData is the serialized form of the geometry data column: coordinate
// triples for plane origin/normal or the polygon vertex ring.
type geomData struct {
	Origin   []float64   `json:"origin,omitempty"`
	Normal   []float64   `json:"normal,omitempty"`
	Vertices [][]float64 `json:"vertices,omitempty"`
}

func triple(p spatial.Position) []float64 {
	return []float64{p.X, p.Y, p.Z}
}

func fromTriple(t []float64) (spatial.Position, error) {
	if len(t) != 3 {
		return spatial.Position{}, fmt.Errorf("%w: coordinate triple has %d components", spatial.ErrInvalidArgument, len(t))
	}
	return spatial.Position{X: t[0], Y: t[1], Z: t[2]}, nil
}

// Save atomically replaces the durable entity and geometry tables with the
// registry's current contents and stamps last_saved_at. The whole replace
// runs in one transaction: a crash mid-save never exposes a partial table.
func (s *Store) Save(reg *spatial.Registry) error {
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entities"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM geometry"); err != nil {
		return err
	}

	entStmt, err := tx.Preparex("INSERT INTO entities (id, x, y, z) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer entStmt.Close()
	for id, pos := range reg.AllEntityPositions() {
		if _, err := entStmt.Exec(id, pos.X, pos.Y, pos.Z); err != nil {
			return fmt.Errorf("insert entity %s: %w", id, err)
		}
	}

	geoStmt, err := tx.Preparex("INSERT INTO geometry (id, kind, data, category) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer geoStmt.Close()
	for id, g := range reg.AllStaticGeometry() {
		var data geomData
		switch g.Kind {
		case spatial.KindPlane:
			data.Origin = triple(g.Origin)
			data.Normal = triple(g.Normal)
		case spatial.KindPolygon:
			data.Vertices = make([][]float64, len(g.Vertices))
			for i, v := range g.Vertices {
				data.Vertices[i] = triple(v)
			}
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal geometry %s: %w", id, err)
		}
		if _, err := geoStmt.Exec(id, string(g.Kind), string(raw), g.Category); err != nil {
			return fmt.Errorf("insert geometry %s: %w", id, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)",
		"last_saved_at", time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("registry snapshot saved",
		"entities", reg.EntityCount(),
		"geometry", reg.GeometryCount(),
	)
	return nil
}

// Load reconstructs a registry from the durable tables. An empty store
// yields an empty registry, not an error.
func (s *Store) Load() (*spatial.Registry, error) {
	reg := spatial.NewRegistry()

	rows, err := s.conn.Queryx("SELECT id, x, y, z FROM entities")
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var x, y, z float64
		if err := rows.Scan(&id, &x, &y, &z); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		if err := reg.AddEntity(id, spatial.Position{X: x, Y: y, Z: z}); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	geoRows, err := s.conn.Queryx("SELECT id, kind, data, category FROM geometry")
	if err != nil {
		return nil, fmt.Errorf("load geometry: %w", err)
	}
	defer geoRows.Close()
	for geoRows.Next() {
		var id, kind, raw, category string
		if err := geoRows.Scan(&id, &kind, &raw, &category); err != nil {
			return nil, fmt.Errorf("scan geometry: %w", err)
		}
		var data geomData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("decode geometry %s: %w", id, err)
		}
		switch spatial.GeometryKind(kind) {
		case spatial.KindPlane:
			origin, err := fromTriple(data.Origin)
			if err != nil {
				return nil, fmt.Errorf("geometry %s origin: %w", id, err)
			}
			normal, err := fromTriple(data.Normal)
			if err != nil {
				return nil, fmt.Errorf("geometry %s normal: %w", id, err)
			}
			if err := reg.AddStaticPlane(id, origin, normal, category); err != nil {
				return nil, err
			}
		case spatial.KindPolygon:
			verts := make([]spatial.Position, len(data.Vertices))
			for i, t := range data.Vertices {
				v, err := fromTriple(t)
				if err != nil {
					return nil, fmt.Errorf("geometry %s vertex %d: %w", id, i, err)
				}
				verts[i] = v
			}
			if err := reg.AddStaticPolygon(id, verts, category); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: geometry %s has unknown kind %q", spatial.ErrInvalidArgument, id, kind)
		}
	}
	return reg, geoRows.Err()
}

// Info summarizes the durable store.
type Info struct {
	CreatedAt     string `json:"created_at"`
	LastSavedAt   string `json:"last_saved_at"`
	EntityCount   int    `json:"entity_count"`
	GeometryCount int    `json:"geometry_count"`
}

// Info returns store metadata and row counts. LastSavedAt is empty before
// the first save.
func (s *Store) Info() (Info, error) {
	var info Info
	if err := s.conn.Get(&info.CreatedAt, "SELECT value FROM metadata WHERE key = 'created_at'"); err != nil {
		return Info{}, fmt.Errorf("read created_at: %w", err)
	}
	err := s.conn.Get(&info.LastSavedAt, "SELECT value FROM metadata WHERE key = 'last_saved_at'")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Info{}, fmt.Errorf("read last_saved_at: %w", err)
	}
	if err := s.conn.Get(&info.EntityCount, "SELECT COUNT(*) FROM entities"); err != nil {
		return Info{}, err
	}
	if err := s.conn.Get(&info.GeometryCount, "SELECT COUNT(*) FROM geometry"); err != nil {
		return Info{}, err
	}
	return info, nil
}
