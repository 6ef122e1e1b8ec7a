package terrain

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/talgya/hexcrown/internal/spatial"
)

// SpriteSpec describes how a terrain tile is drawn: a background fill plus an
// ordered list of shapes. Consumed only by the renderer; the core reads
// nothing from it.
type SpriteSpec struct {
	Background struct {
		Color []int `json:"color"`
	} `json:"background"`
	Shapes []ShapeSpec `json:"shapes"`
}

// ShapeSpec is one primitive in a sprite. Points are interpreted by the
// renderer according to Type ("line", "rect", "circle", "polygon").
type ShapeSpec struct {
	Type   string    `json:"type"`
	Color  []int     `json:"color"`
	Points []float64 `json:"points"`
	Width  int       `json:"width,omitempty"`
}

// categoryConfig is the per-category document in the terrain config file.
type categoryConfig struct {
	MoveCost int        `json:"move_cost"`
	Weight   float64    `json:"weight"`
	Color    []int      `json:"color"`
	Sprite   SpriteSpec `json:"sprite"`
}

// LoadConfig reads a terrain config file and applies it to the set: core
// fields (move_cost, weight) and visuals on first load. Every category in
// the file must pass schema validation; unknown categories are rejected.
func (s *Set) LoadConfig(path string) error {
	cfgs, err := readConfig(path)
	if err != nil {
		return err
	}
	for cat, cc := range cfgs {
		info := s.info[cat]
		info.MoveCost = cc.MoveCost
		info.Weight = cc.Weight
		copy(info.Color[:], cc.Color)
		info.Sprite = cc.Sprite
		s.info[cat] = info
	}
	return nil
}

// ReloadVisuals re-reads the config file but applies only the visual subset
// (color, sprite). Movement costs and weights stay as loaded: the running
// game's pathfinding and generation must not change under a hot reload.
func (s *Set) ReloadVisuals(path string) error {
	cfgs, err := readConfig(path)
	if err != nil {
		return err
	}
	for cat, cc := range cfgs {
		info := s.info[cat]
		copy(info.Color[:], cc.Color)
		info.Sprite = cc.Sprite
		s.info[cat] = info
	}
	return nil
}

func readConfig(path string) (map[Category]categoryConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: terrain config %q", spatial.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read terrain config: %w", err)
	}

	var cfgs map[Category]categoryConfig
	if err := json.Unmarshal(raw, &cfgs); err != nil {
		return nil, fmt.Errorf("%w: malformed terrain config %q: %v", spatial.ErrInvalidArgument, path, err)
	}

	defaults := DefaultSet()
	for cat, cc := range cfgs {
		if !defaults.Known(cat) {
			return nil, fmt.Errorf("%w: unknown terrain category %q", spatial.ErrInvalidArgument, cat)
		}
		if cc.MoveCost < 1 {
			return nil, fmt.Errorf("%w: %s move_cost must be >= 1, got %d", spatial.ErrInvalidArgument, cat, cc.MoveCost)
		}
		if cc.Weight < 0 || cc.Weight > 1 {
			return nil, fmt.Errorf("%w: %s weight must be in [0,1], got %v", spatial.ErrInvalidArgument, cat, cc.Weight)
		}
		if len(cc.Color) != 3 {
			return nil, fmt.Errorf("%w: %s color must have 3 components, got %d", spatial.ErrInvalidArgument, cat, len(cc.Color))
		}
		if len(cc.Sprite.Background.Color) != 3 {
			return nil, fmt.Errorf("%w: %s sprite background color must have 3 components", spatial.ErrInvalidArgument, cat)
		}
	}
	return cfgs, nil
}
