package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voxelpipes.ai/internal/sim/pipes/loc"
)

// layout describes a sandbox network: where pipes and chests sit and which
// controllers emit items into it.
type layout struct {
	World       string           `yaml:"world"`
	Pipes       []pipeSpec       `yaml:"pipes"`
	Chests      []chestSpec      `yaml:"chests"`
	Controllers []controllerSpec `yaml:"controllers"`
}

type pipeSpec struct {
	Pos      [3]int   `yaml:"pos"`
	Disabled []string `yaml:"disabled,omitempty"`
}

type chestSpec struct {
	Pos   [3]int `yaml:"pos"`
	Slots int    `yaml:"slots"`
	// DrainEvery empties the chest every N ticks; 0 never drains.
	DrainEvery int `yaml:"drain_every,omitempty"`
}

type controllerSpec struct {
	Pos    [3]int `yaml:"pos"`
	Item   string `yaml:"item"`
	Amount int    `yaml:"amount"`
	Every  int    `yaml:"every"`
}

func loadLayout(path string) (layout, error) {
	if strings.TrimSpace(path) == "" {
		return defaultLayout(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return layout{}, err
	}
	var l layout
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return layout{}, fmt.Errorf("parse layout %s: %w", path, err)
	}
	return l, l.validate()
}

func (l layout) validate() error {
	for _, p := range l.Pipes {
		if _, err := p.mask(); err != nil {
			return err
		}
	}
	for i, c := range l.Chests {
		if c.Slots <= 0 {
			return fmt.Errorf("chest %d: slots must be > 0", i)
		}
	}
	for i, c := range l.Controllers {
		if strings.TrimSpace(c.Item) == "" || c.Amount <= 0 {
			return fmt.Errorf("controller %d: item and amount are required", i)
		}
		if c.Every <= 0 {
			return fmt.Errorf("controller %d: every must be > 0", i)
		}
	}
	return nil
}

func (p pipeSpec) mask() (loc.SideMask, error) {
	var m loc.SideMask
	for _, s := range p.Disabled {
		d, ok := loc.ParseDirection(strings.ToUpper(strings.TrimSpace(s)))
		if !ok {
			return 0, fmt.Errorf("pipe %v: unknown side %q", p.Pos, s)
		}
		m = m.With(d)
	}
	return m, nil
}

func at(world string, p [3]int) loc.Location {
	return loc.At(world, p[0], p[1], p[2]).Normalize()
}

// defaultLayout is a controller feeding a trunk line with one branch and two
// chests.
func defaultLayout() layout {
	l := layout{World: "OVERWORLD"}
	for x := 1; x <= 6; x++ {
		l.Pipes = append(l.Pipes, pipeSpec{Pos: [3]int{x, 64, 0}})
	}
	for z := 1; z <= 3; z++ {
		l.Pipes = append(l.Pipes, pipeSpec{Pos: [3]int{3, 64, z}})
	}
	l.Chests = []chestSpec{
		{Pos: [3]int{7, 64, 0}, Slots: 27, DrainEvery: 400},
		{Pos: [3]int{3, 64, 4}, Slots: 9, DrainEvery: 600},
	}
	l.Controllers = []controllerSpec{
		{Pos: [3]int{0, 64, 0}, Item: "COBBLESTONE", Amount: 16, Every: 10},
	}
	return l
}
