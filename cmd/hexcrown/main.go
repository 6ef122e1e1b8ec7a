// Command hexcrown runs the turn-based hex strategy server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/talgya/hexcrown/internal/api"
	"github.com/talgya/hexcrown/internal/combat"
	"github.com/talgya/hexcrown/internal/game"
	"github.com/talgya/hexcrown/internal/hexgrid"
	"github.com/talgya/hexcrown/internal/path"
	"github.com/talgya/hexcrown/internal/persistence"
	"github.com/talgya/hexcrown/internal/spatial"
	"github.com/talgya/hexcrown/internal/terrain"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real env vars win either way.
	godotenv.Load()

	cfg, err := game.LoadConfig()
	if err != nil {
		slog.Error("bad configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Hexcrown", "grid", fmt.Sprintf("%dx%d", cfg.GridWidth, cfg.GridHeight),
		"hex_size", cfg.HexSize, "seed", cfg.Seed)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	store, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Load or Generate World ───────────────────────────────────────
	set := terrain.DefaultSet()
	if cfg.TerrainConfig != "" {
		if err := set.LoadConfig(cfg.TerrainConfig); err != nil {
			slog.Error("failed to load terrain config", "path", cfg.TerrainConfig, "error", err)
			os.Exit(1)
		}
		slog.Info("terrain config loaded", "path", cfg.TerrainConfig)
	}
	layout := hexgrid.Layout{Size: cfg.HexSize}

	reg, err := store.Load()
	if err != nil {
		slog.Error("failed to load world", "error", err)
		os.Exit(1)
	}

	fresh := reg.GeometryCount() == 0
	if fresh {
		slog.Info("no saved world, generating...")
		genCfg := terrain.DefaultGenConfig()
		genCfg.Width = cfg.GridWidth
		genCfg.Height = cfg.GridHeight
		genCfg.Seed = cfg.Seed

		gen := terrain.NewGenerator(genCfg, layout, set)
		data, err := gen.Generate(reg, store)
		if err != nil {
			slog.Error("world generation failed", "error", err)
			os.Exit(1)
		}

		counts := make(map[terrain.Category]int)
		for _, cat := range data.Terrain {
			counts[cat]++
		}
		for _, cat := range set.Categories() {
			slog.Info("terrain", "category", cat, "count", counts[cat])
		}
		slog.Info("resources scattered", "count", len(data.Resources))
	} else {
		info, err := store.Info()
		if err != nil {
			slog.Error("failed to read store info", "error", err)
			os.Exit(1)
		}
		slog.Info("world restored",
			"entities", info.EntityCount,
			"geometry", info.GeometryCount,
			"last_saved", info.LastSavedAt,
		)
	}

	// ── Session ──────────────────────────────────────────────────────
	planner := path.NewPlanner(reg, layout, set)
	eng := combat.NewEngine(reg, store, cfg.HexSize)
	session := game.NewSession(cfg, reg, store, planner, eng)

	if fresh {
		capital := startingHex(reg, set)
		if _, err := session.SpawnCity("Hexcrown", capital); err != nil {
			slog.Error("failed to found capital", "error", err)
			os.Exit(1)
		}
		spawned := 0
		for _, h := range capital.Neighbors() {
			if !traversable(reg, set, h) {
				continue
			}
			if _, err := session.SpawnUnit("", h); err != nil {
				slog.Error("failed to spawn unit", "error", err)
				os.Exit(1)
			}
			spawned++
			if spawned == 2 {
				break
			}
		}
	} else {
		session.RestoreEntities()
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("HEXCROWN_ADMIN_KEY not set, command endpoints disabled")
	}
	server := &api.Server{
		Session:  session,
		Planner:  planner,
		Store:    store,
		Terrain:  set,
		Port:     cfg.APIPort,
		AdminKey: cfg.AdminKey,
	}
	server.Start()

	fmt.Printf("\nHexcrown is up: %s entities on %s map hexes.\n",
		humanize.Comma(int64(reg.EntityCount())),
		humanize.Comma(int64(reg.GeometryCount())))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)
	fmt.Println("Ctrl+C to stop.")

	// ── Shutdown ─────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	slog.Info("final save...")
	if err := store.Save(reg); err != nil {
		slog.Error("final save failed", "error", err)
	}
	fmt.Println("Stopped. World state saved.")
}

// traversable reports whether a hex cell exists and its terrain admits
// movement.
func traversable(reg *spatial.Registry, set *terrain.Set, h hexgrid.HexCoord) bool {
	g, ok := reg.StaticGeometry(h.GeometryID())
	if !ok {
		return false
	}
	cat := terrain.Category(g.Category)
	if !set.Known(cat) {
		return false
	}
	return cat != terrain.Ocean && cat != terrain.Mountain
}

// startingHex picks a cell for the capital: the first traversable hex
// scanning outward from the map origin.
func startingHex(reg *spatial.Registry, set *terrain.Set) hexgrid.HexCoord {
	origin := hexgrid.HexCoord{Q: 0, R: 0}
	if traversable(reg, set, origin) {
		return origin
	}
	for radius := 1; radius < 32; radius++ {
		for q := -radius; q <= radius; q++ {
			for r := -radius; r <= radius; r++ {
				h := hexgrid.HexCoord{Q: q, R: r}
				if hexgrid.Distance(origin, h) != radius {
					continue
				}
				if traversable(reg, set, h) {
					return h
				}
			}
		}
	}
	return origin
}
