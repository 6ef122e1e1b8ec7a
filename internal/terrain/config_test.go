package terrain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/hexcrown/internal/spatial"
)

const validConfig = `{
	"plain": {
		"move_cost": 1,
		"weight": 0.5,
		"color": [100, 180, 90],
		"sprite": {
			"background": {"color": [100, 180, 90]},
			"shapes": [
				{"type": "line", "color": [80, 140, 70], "points": [2, 2, 8, 8], "width": 1}
			]
		}
	}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terrain_config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigAppliesCoreAndVisuals(t *testing.T) {
	set := DefaultSet()
	path := writeConfig(t, validConfig)
	if err := set.LoadConfig(path); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	info, _ := set.Info(Plain)
	if info.Weight != 0.5 {
		t.Fatalf("weight = %v, want 0.5", info.Weight)
	}
	if info.Color != [3]int{100, 180, 90} {
		t.Fatalf("color = %v", info.Color)
	}
	if len(info.Sprite.Shapes) != 1 || info.Sprite.Shapes[0].Type != "line" {
		t.Fatalf("sprite shapes = %+v", info.Sprite.Shapes)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	set := DefaultSet()
	err := set.LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, spatial.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"malformed json", `{`},
		{"unknown category", `{"lava": {"move_cost": 1, "weight": 0.1, "color": [1,2,3], "sprite": {"background": {"color": [1,2,3]}}}}`},
		{"zero move cost", `{"plain": {"move_cost": 0, "weight": 0.1, "color": [1,2,3], "sprite": {"background": {"color": [1,2,3]}}}}`},
		{"weight above one", `{"plain": {"move_cost": 1, "weight": 1.5, "color": [1,2,3], "sprite": {"background": {"color": [1,2,3]}}}}`},
		{"two component color", `{"plain": {"move_cost": 1, "weight": 0.1, "color": [1,2], "sprite": {"background": {"color": [1,2,3]}}}}`},
		{"bad sprite background", `{"plain": {"move_cost": 1, "weight": 0.1, "color": [1,2,3], "sprite": {"background": {"color": []}}}}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			set := DefaultSet()
			err := set.LoadConfig(writeConfig(t, c.content))
			if !errors.Is(err, spatial.ErrInvalidArgument) {
				t.Fatalf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestReloadVisualsKeepsCoreFields(t *testing.T) {
	set := DefaultSet()
	baseline, _ := set.Info(Plain)

	// A reload that also tries to change move_cost and weight must only
	// land the visual fields.
	changed := `{
		"plain": {
			"move_cost": 9,
			"weight": 0.01,
			"color": [1, 2, 3],
			"sprite": {"background": {"color": [4, 5, 6]}, "shapes": []}
		}
	}`
	if err := set.ReloadVisuals(writeConfig(t, changed)); err != nil {
		t.Fatalf("ReloadVisuals: %v", err)
	}
	info, _ := set.Info(Plain)
	if info.MoveCost != baseline.MoveCost || info.Weight != baseline.Weight {
		t.Fatalf("core fields changed on visual reload: %+v", info)
	}
	if info.Color != [3]int{1, 2, 3} {
		t.Fatalf("color not reloaded: %v", info.Color)
	}
}
