package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/talgya/hexcrown/internal/spatial"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// DefaultMaxDistance bounds nearest-entity searches when the caller does not
// supply a cutoff.
const DefaultMaxDistance = 30.0

// Query runs read-only spatial queries against the durable snapshot. Results
// reflect the state as of the last Save, which may lag the in-memory
// registry.
type Query struct {
	store *Store
}

// Query returns the read-only query engine backed by this store.
func (s *Store) Query() *Query {
	return &Query{store: s}
}

// CountEntities returns the total number of persisted entities.
func (q *Query) CountEntities() (int, error) {
	var n int
	if err := q.store.conn.Get(&n, "SELECT COUNT(*) FROM entities"); err != nil {
		return 0, fmt.Errorf("count entities: %w", err)
	}
	return n, nil
}

// CountEntitiesByPrefix filters ids by prefix, then groups the matches by
// their first underscore-delimited segment and counts each group. An id
// without an underscore groups under itself.
func (q *Query) CountEntitiesByPrefix(prefix string) (map[string]int, error) {
	var ids []string
	err := q.store.conn.Select(&ids, "SELECT id FROM entities WHERE id LIKE ?", prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("count entities by prefix: %w", err)
	}
	counts := make(map[string]int)
	for _, id := range ids {
		group := id
		if i := strings.Index(id, "_"); i >= 0 {
			group = id[:i]
		}
		if strings.HasPrefix(group, prefix) {
			counts[group]++
		}
	}
	return counts, nil
}

// EntitiesInBoundingBox returns every entity whose position lies within the
// inclusive axis-aligned box [min, max].
func (q *Query) EntitiesInBoundingBox(min, max spatial.Position) (map[string]spatial.Position, error) {
	if min.X > max.X || min.Y > max.Y || min.Z > max.Z {
		return nil, fmt.Errorf("%w: bounding box min must not exceed max on any axis", spatial.ErrInvalidArgument)
	}
	rows, err := q.store.conn.Queryx(
		"SELECT id, x, y, z FROM entities WHERE x >= ? AND x <= ? AND y >= ? AND y <= ? AND z >= ? AND z <= ?",
		min.X, max.X, min.Y, max.Y, min.Z, max.Z,
	)
	if err != nil {
		return nil, fmt.Errorf("bounding box query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]spatial.Position)
	for rows.Next() {
		var id string
		var x, y, z float64
		if err := rows.Scan(&id, &x, &y, &z); err != nil {
			return nil, err
		}
		out[id] = spatial.Position{X: x, Y: y, Z: z}
	}
	return out, rows.Err()
}

// FindNearestEntity scans all entities (optionally filtered by id prefix) and
// returns the one with minimum Euclidean distance to point that lies within
// maxDistance. A negative maxDistance means no cutoff was supplied and falls
// back to DefaultMaxDistance; zero is a real cutoff matching only entities at
// the exact query point. The scan is ordered by id, so equal distances break
// to the lexicographically smallest id. "No entities" and "none within
// maxDistance" look the same to the caller: ok is false.
func (q *Query) FindNearestEntity(point spatial.Position, prefix string, maxDistance float64) (string, spatial.Position, bool, error) {
	if maxDistance < 0 {
		maxDistance = DefaultMaxDistance
	}

	query := "SELECT id, x, y, z FROM entities"
	var args []any
	if prefix != "" {
		query += " WHERE id LIKE ?"
		args = append(args, prefix+"%")
	}
	query += " ORDER BY id"

	rows, err := q.store.conn.Queryx(query, args...)
	if err != nil {
		return "", spatial.Position{}, false, fmt.Errorf("nearest entity query: %w", err)
	}
	defer rows.Close()

	var (
		bestID  string
		bestPos spatial.Position
		found   bool
	)
	minDist := math.Inf(1)
	for rows.Next() {
		var id string
		var x, y, z float64
		if err := rows.Scan(&id, &x, &y, &z); err != nil {
			return "", spatial.Position{}, false, err
		}
		pos := spatial.Position{X: x, Y: y, Z: z}
		dist := point.DistanceTo(pos)
		if dist < minDist && dist <= maxDistance {
			minDist = dist
			bestID, bestPos, found = id, pos, true
		}
	}
	return bestID, bestPos, found, rows.Err()
}

// FindNearestEntityExcluding is FindNearestEntity with one id skipped:
// combat target scans must never pick the attacker, which otherwise always
// wins at distance zero. The maxDistance sentinel matches FindNearestEntity:
// negative means default, zero matches only the exact query point.
func (q *Query) FindNearestEntityExcluding(point spatial.Position, exclude string, maxDistance float64) (string, spatial.Position, bool, error) {
	if maxDistance < 0 {
		maxDistance = DefaultMaxDistance
	}
	rows, err := q.store.conn.Queryx("SELECT id, x, y, z FROM entities WHERE id != ? ORDER BY id", exclude)
	if err != nil {
		return "", spatial.Position{}, false, fmt.Errorf("nearest entity query: %w", err)
	}
	defer rows.Close()

	var (
		bestID  string
		bestPos spatial.Position
		found   bool
	)
	minDist := math.Inf(1)
	for rows.Next() {
		var id string
		var x, y, z float64
		if err := rows.Scan(&id, &x, &y, &z); err != nil {
			return "", spatial.Position{}, false, err
		}
		pos := spatial.Position{X: x, Y: y, Z: z}
		dist := point.DistanceTo(pos)
		if dist < minDist && dist <= maxDistance {
			minDist = dist
			bestID, bestPos, found = id, pos, true
		}
	}
	return bestID, bestPos, found, rows.Err()
}

// NearGeometry reports whether the entity lies within maxDistance of any
// geometry record in the category. Planes use the exact point-to-plane
// distance |dot(pos-origin, normal)| / |normal|. Polygons approximate with
// the minimum vertex distance, not true point-to-polygon distance.
func (q *Query) NearGeometry(entityID, category string, maxDistance float64) (bool, error) {
	if maxDistance < 0 {
		return false, fmt.Errorf("%w: max distance must be non-negative", spatial.ErrInvalidArgument)
	}

	var row struct {
		X float64 `db:"x"`
		Y float64 `db:"y"`
		Z float64 `db:"z"`
	}
	err := q.store.conn.Get(&row, "SELECT x, y, z FROM entities WHERE id = ?", entityID)
	if err != nil {
		if isNoRows(err) {
			return false, fmt.Errorf("%w: entity %q", spatial.ErrNotFound, entityID)
		}
		return false, fmt.Errorf("read entity %s: %w", entityID, err)
	}
	pos := spatial.Position{X: row.X, Y: row.Y, Z: row.Z}

	rows, err := q.store.conn.Queryx("SELECT kind, data FROM geometry WHERE category = ?", category)
	if err != nil {
		return false, fmt.Errorf("geometry query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, raw string
		if err := rows.Scan(&kind, &raw); err != nil {
			return false, err
		}
		var data geomData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return false, fmt.Errorf("decode geometry: %w", err)
		}

		var dist float64
		switch spatial.GeometryKind(kind) {
		case spatial.KindPlane:
			origin, err := fromTriple(data.Origin)
			if err != nil {
				return false, err
			}
			normal, err := fromTriple(data.Normal)
			if err != nil {
				return false, err
			}
			dist = math.Abs(pos.Sub(origin).Dot(normal)) / normal.Norm()
		case spatial.KindPolygon:
			dist = math.Inf(1)
			for _, t := range data.Vertices {
				v, err := fromTriple(t)
				if err != nil {
					return false, err
				}
				if d := pos.DistanceTo(v); d < dist {
					dist = d
				}
			}
		default:
			continue
		}

		if dist <= maxDistance {
			return true, nil
		}
	}
	return false, rows.Err()
}

// GeometryByCategory returns every persisted geometry record in the
// category, decoded into registry records.
func (q *Query) GeometryByCategory(category string) (map[string]spatial.Geometry, error) {
	rows, err := q.store.conn.Queryx(
		"SELECT id, kind, data FROM geometry WHERE category = ?", category,
	)
	if err != nil {
		return nil, fmt.Errorf("geometry by category: %w", err)
	}
	defer rows.Close()

	out := make(map[string]spatial.Geometry)
	for rows.Next() {
		var id, kind, raw string
		if err := rows.Scan(&id, &kind, &raw); err != nil {
			return nil, err
		}
		var data geomData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("decode geometry %s: %w", id, err)
		}

		g := spatial.Geometry{Kind: spatial.GeometryKind(kind), Category: category}
		switch g.Kind {
		case spatial.KindPlane:
			if g.Origin, err = fromTriple(data.Origin); err != nil {
				return nil, err
			}
			if g.Normal, err = fromTriple(data.Normal); err != nil {
				return nil, err
			}
		case spatial.KindPolygon:
			g.Vertices = make([]spatial.Position, len(data.Vertices))
			for i, t := range data.Vertices {
				if g.Vertices[i], err = fromTriple(t); err != nil {
					return nil, err
				}
			}
		}
		out[id] = g
	}
	return out, rows.Err()
}
