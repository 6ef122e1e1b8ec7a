// Package api serves the game state over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (the game command plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/hexcrown/internal/game"
	"github.com/talgya/hexcrown/internal/hexgrid"
	"github.com/talgya/hexcrown/internal/path"
	"github.com/talgya/hexcrown/internal/persistence"
	"github.com/talgya/hexcrown/internal/spatial"
	"github.com/talgya/hexcrown/internal/terrain"
)

// Server exposes a session over HTTP.
type Server struct {
	Session  *game.Session
	Planner  *path.Planner
	Store    *persistence.Store
	Terrain  *terrain.Set
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	started time.Time
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	s.started = time.Now()

	// Path previews run A* per request; keep them bounded per client.
	pathLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/map", s.handleMap)
	mux.HandleFunc("/api/v1/entities", s.handleEntities)
	mux.HandleFunc("/api/v1/entity/", s.handleEntityDetail)
	mux.HandleFunc("/api/v1/path", RateLimitMiddleware(pathLimiter, s.handlePathPreview))

	// Command endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/move", s.adminOnly(s.handleMove))
	mux.HandleFunc("/api/v1/attack", s.adminOnly(s.handleAttack))
	mux.HandleFunc("/api/v1/end-turn", s.adminOnly(s.handleEndTurn))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins;
// localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "command endpoints disabled (no HEXCROWN_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.Store.Info()
	if err != nil {
		http.Error(w, "store info unavailable", http.StatusInternalServerError)
		return
	}

	status := map[string]any{
		"name":       "Hexcrown",
		"turn":       s.Session.Turn(),
		"uptime":     humanize.Time(s.started),
		"entities":   humanize.Comma(int64(info.EntityCount)),
		"geometry":   humanize.Comma(int64(info.GeometryCount)),
		"created_at": info.CreatedAt,
		"last_saved": info.LastSavedAt,
	}
	if sel, ok := s.Session.SelectedUnit(); ok {
		status["selected"] = sel
	}
	writeJSON(w, status)
}

// handleMap returns the hex polygons for the map renderer, ordered by
// terrain render priority so lower layers come first.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	type hexEntry struct {
		ID       string      `json:"id"`
		Category string      `json:"category"`
		Vertices [][]float64 `json:"vertices"`
	}

	var hexes []hexEntry
	for _, cat := range s.Terrain.Categories() {
		geoms := s.Session.GeometryByCategory(string(cat))
		ids := make([]string, 0, len(geoms))
		for id := range geoms {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			g := geoms[id]
			verts := make([][]float64, len(g.Vertices))
			for i, v := range g.Vertices {
				verts[i] = []float64{v.X, v.Y, v.Z}
			}
			hexes = append(hexes, hexEntry{ID: id, Category: string(cat), Vertices: verts})
		}
	}

	sort.SliceStable(hexes, func(i, j int) bool {
		return s.Terrain.Priority(terrain.Category(hexes[i].Category)) <
			s.Terrain.Priority(terrain.Category(hexes[j].Category))
	})

	writeJSON(w, map[string]any{"hexes": hexes})
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	type entityEntry struct {
		ID       string  `json:"id"`
		Kind     string  `json:"kind,omitempty"`
		Name     string  `json:"name,omitempty"`
		Movement int     `json:"movement_points,omitempty"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Z        float64 `json:"z"`
	}

	positions := s.Session.EntityPositions()
	records := s.Session.Entities()

	result := make([]entityEntry, 0, len(positions))
	for id, pos := range positions {
		entry := entityEntry{ID: id, X: pos.X, Y: pos.Y, Z: pos.Z}
		if rec, ok := records[id]; ok {
			entry.Kind = string(rec.Kind)
			entry.Name = rec.Name
			entry.Movement = rec.MovementPoints
		}
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	writeJSON(w, result)
}

// handleEntityDetail serves GET /api/v1/entity/{id} with position and
// combat attributes.
func (s *Server) handleEntityDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/entity/")
	if id == "" {
		http.Error(w, "missing entity id", http.StatusBadRequest)
		return
	}

	positions := s.Session.EntityPositions()
	pos, ok := positions[id]
	if !ok {
		http.Error(w, "entity not found", http.StatusNotFound)
		return
	}

	detail := map[string]any{
		"id":       id,
		"position": []float64{pos.X, pos.Y, pos.Z},
	}
	if ent, ok := s.Session.Entity(id); ok {
		detail["kind"] = ent.Kind
		detail["name"] = ent.Name
		if ent.Kind == game.KindUnit {
			detail["movement_points"] = ent.MovementPoints
		}
	}
	rec, ok, err := s.Session.Attributes(id)
	if err != nil {
		// Serve the positional detail anyway, but leave a trace of the
		// missing combat fields.
		slog.Error("combat attribute read failed", "entity", id, "error", err)
	}
	if err == nil && ok {
		detail["health"] = rec.Health
		detail["attack_power"] = rec.AttackPower
		detail["defense"] = rec.Defense
		if len(rec.StatusEffects) > 0 {
			detail["status_effects"] = rec.StatusEffects
		}
	}
	writeJSON(w, detail)
}

// handlePathPreview serves GET /api/v1/path?from_q=&from_r=&to_q=&to_r=
// without moving anything.
func (s *Server) handlePathPreview(w http.ResponseWriter, r *http.Request) {
	var from, to hexgrid.HexCoord
	for _, p := range []struct {
		key string
		dst *int
	}{
		{"from_q", &from.Q}, {"from_r", &from.R},
		{"to_q", &to.Q}, {"to_r", &to.R},
	} {
		raw := r.URL.Query().Get(p.key)
		if _, err := fmt.Sscanf(raw, "%d", p.dst); err != nil {
			http.Error(w, "missing or invalid "+p.key, http.StatusBadRequest)
			return
		}
	}

	cells := s.Planner.FindPathHex(from, to)
	steps := make([]map[string]int, 0, len(cells))
	for _, c := range cells {
		steps = append(steps, map[string]int{"q": c.Q, "r": c.R})
	}
	writeJSON(w, map[string]any{
		"reachable": len(cells) > 0,
		"cost":      s.Planner.Cost(cells),
		"path":      steps,
	})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
		Q  int    `json:"q"`
		R  int    `json:"r"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cells, err := s.Session.MoveUnit(req.ID, hexgrid.HexCoord{Q: req.Q, R: req.R})
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	steps := make([]map[string]int, 0, len(cells))
	for _, c := range cells {
		steps = append(steps, map[string]int{"q": c.Q, "r": c.R})
	}
	writeJSON(w, map[string]any{"moved": true, "path": steps})
}

func (s *Server) handleAttack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attacker string `json:"attacker"`
		Target   string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	defeated, err := s.Session.Attack(req.Attacker, req.Target)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, map[string]any{"resolved": true, "defeated": defeated})
}

func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request) {
	if err := s.Session.EndTurn(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"turn": s.Session.Turn()})
}

// statusFor maps the domain sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, spatial.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, spatial.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, spatial.ErrOutOfRange):
		return http.StatusConflict
	case errors.Is(err, spatial.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
