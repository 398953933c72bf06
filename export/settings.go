package export

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
	"github.com/tilevox/tilevox/export/world"
)

// Settings holds the user-facing knobs of an export. Readers should call
// withDefaults on a Settings before using it, as a zero value is not safe to
// use directly.
type Settings struct {
	// Workers is the number of regions exported concurrently. If zero, a
	// value based on the machine's CPU count and memory is chosen.
	Workers int `toml:"workers"`
	// Blocks selects which per-block properties are computed after the
	// terrain of a region is complete.
	Blocks world.BlockExportSettings `toml:"blocks"`
	// CreateGoodiesChest places a chest with starter items near the spawn
	// point of the surface dimension.
	CreateGoodiesChest bool `toml:"create_goodies_chest"`
	// GoodiesChestItems overrides the contents of the goodies chest. If
	// empty, a default set of starter items is used.
	GoodiesChestItems []ChestItem `toml:"goodies_chest_items"`
}

// ChestItem is a single stack of items inside a placed chest.
type ChestItem struct {
	Name  string `toml:"name"`
	Count int    `toml:"count"`
}

// ReadSettings reads export settings from a TOML file at the path passed. If
// the file does not exist, defaults are returned and a file holding them is
// written so that users have something to edit.
func ReadSettings(path string) (Settings, error) {
	s := Settings{}.withDefaults()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		data, err := toml.Marshal(s)
		if err != nil {
			return s, fmt.Errorf("encode default settings: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return s, fmt.Errorf("create default settings: %w", err)
		}
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	return s.withDefaults(), nil
}

// withDefaults returns a copy of the Settings with all empty fields filled in
// with sensible defaults.
func (s Settings) withDefaults() Settings {
	if s.Workers <= 0 {
		s.Workers = defaultWorkerCount()
	}
	if len(s.GoodiesChestItems) == 0 {
		s.GoodiesChestItems = []ChestItem{
			{Name: "core:torch", Count: 16},
			{Name: "core:oak_log", Count: 16},
			{Name: "core:dirt", Count: 32},
		}
	}
	return s
}
