package tuning

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	WorldID string `yaml:"world_id" toml:"world_id"`

	TickDurationMs int `yaml:"tick_duration_ms" toml:"tick_duration_ms"`
	SegmentTicks   int `yaml:"segment_ticks" toml:"segment_ticks"`

	MaxScanPipes  int `yaml:"max_scan_pipes" toml:"max_scan_pipes"`
	ProbeMaxNodes int `yaml:"probe_max_nodes" toml:"probe_max_nodes"`

	SelectionMode   string `yaml:"selection_mode" toml:"selection_mode"`
	DefaultMaxStack int    `yaml:"default_max_stack" toml:"default_max_stack"`

	Store StoreConfig `yaml:"store" toml:"store"`
}

type StoreConfig struct {
	// Driver is "sqlite" or "badger".
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
}

func Defaults() Tuning {
	return Tuning{
		WorldID:         "OVERWORLD",
		TickDurationMs:  50,
		SegmentTicks:    8,
		MaxScanPipes:    8192,
		ProbeMaxNodes:   8192,
		SelectionMode:   "round_robin",
		DefaultMaxStack: 64,
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "./data/pipes.db",
		},
	}
}

// Load reads a YAML (.yaml/.yml) or TOML (.toml) file over the defaults. An
// empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(raw), &t); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
	default:
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	t.WorldID = strings.ToUpper(strings.TrimSpace(t.WorldID))
	t.SelectionMode = strings.ToLower(strings.TrimSpace(t.SelectionMode))
	t.Store.Driver = strings.ToLower(strings.TrimSpace(t.Store.Driver))
}

func (t Tuning) Validate() error {
	if t.WorldID == "" {
		return fmt.Errorf("world_id is required")
	}
	if t.TickDurationMs <= 0 {
		return fmt.Errorf("tick_duration_ms must be > 0")
	}
	if t.SegmentTicks <= 0 {
		return fmt.Errorf("segment_ticks must be > 0")
	}
	if t.MaxScanPipes <= 0 {
		return fmt.Errorf("max_scan_pipes must be > 0")
	}
	if t.ProbeMaxNodes <= 0 {
		return fmt.Errorf("probe_max_nodes must be > 0")
	}
	if t.DefaultMaxStack <= 0 {
		return fmt.Errorf("default_max_stack must be > 0")
	}
	switch t.SelectionMode {
	case "round_robin", "fill_first":
	default:
		return fmt.Errorf("selection_mode %q: want round_robin or fill_first", t.SelectionMode)
	}
	switch t.Store.Driver {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("store.driver %q: want sqlite or badger", t.Store.Driver)
	}
	return nil
}
