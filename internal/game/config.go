package game

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the tunable parameters for a game session. Values come
// from the environment with sensible defaults; the struct is treated as
// immutable once a session is constructed from it.
type Config struct {
	GridWidth      int     `env:"HEXCROWN_GRID_WIDTH" envDefault:"20"`
	GridHeight     int     `env:"HEXCROWN_GRID_HEIGHT" envDefault:"20"`
	HexSize        float64 `env:"HEXCROWN_HEX_SIZE" envDefault:"20"`
	Seed           int64   `env:"HEXCROWN_SEED" envDefault:"42"`
	MovementPoints int     `env:"HEXCROWN_MOVEMENT_POINTS" envDefault:"5"`
	DBPath         string  `env:"HEXCROWN_DB_PATH" envDefault:"data/hexcrown.db"`
	TerrainConfig  string  `env:"HEXCROWN_TERRAIN_CONFIG"`
	APIPort        int     `env:"HEXCROWN_API_PORT" envDefault:"8080"`
	AdminKey       string  `env:"HEXCROWN_ADMIN_KEY"`
}

// LoadConfig parses the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.GridWidth < 1 || c.GridHeight < 1 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%d", c.GridWidth, c.GridHeight)
	}
	if c.HexSize <= 0 {
		return fmt.Errorf("hex size must be positive, got %v", c.HexSize)
	}
	if c.MovementPoints < 1 {
		return fmt.Errorf("movement points must be at least 1, got %d", c.MovementPoints)
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid api port %d", c.APIPort)
	}
	return nil
}
