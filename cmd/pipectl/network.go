package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"voxelpipes.ai/internal/sim/pipes/graph"
	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
	"voxelpipes.ai/internal/sim/pipes/probe"
	"voxelpipes.ai/internal/sim/pipes/routing"
	"voxelpipes.ai/internal/sim/pipes/sandbox"
	"voxelpipes.ai/internal/sim/pipes/transport"
	"voxelpipes.ai/internal/sim/tuning"
)

type controller struct {
	at    loc.Location
	item  host.ItemStack
	every uint64
}

type drainer struct {
	chest *sandbox.Chest
	at    loc.Location
	every uint64
}

// network is a sandbox world with one routing session per controller, all
// sharing a graph and a transport manager.
type network struct {
	world    *sandbox.World
	graph    *graph.Graph
	manager  *transport.Manager
	sessions map[loc.Location]*routing.Session

	controllers []controller
	drainers    []drainer
	probeMax    int
	tick        uint64

	log *logrus.Entry
}

type networkDeps struct {
	Visual   host.Visual
	Recorder transport.Recorder
	// Store, when set, seeds the graph and journals later changes.
	Store host.NodeStore
}

func buildNetwork(ctx context.Context, l layout, t tuning.Tuning, deps networkDeps) (*network, error) {
	worldID := strings.ToUpper(strings.TrimSpace(l.World))
	if worldID == "" {
		worldID = t.WorldID
	}
	mode, err := routing.ParseMode(t.SelectionMode)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("component", "sandbox")

	w := sandbox.NewWorld()
	n := &network{
		world:    w,
		sessions: map[loc.Location]*routing.Session{},
		probeMax: t.ProbeMaxNodes,
		log:      log,
	}

	gopts := []graph.Option{graph.WithLogger(logrus.WithField("component", "pipe_graph"))}
	if deps.Store != nil {
		gopts = append(gopts, graph.WithJournal(deps.Store))
	}
	n.graph = graph.New(w, gopts...)

	loaded := 0
	if deps.Store != nil {
		if loaded, err = n.graph.Load(ctx, deps.Store, worldID); err != nil {
			return nil, fmt.Errorf("load nodes: %w", err)
		}
	}
	if loaded > 0 {
		// The store is authoritative; mirror it into the live world.
		for _, r := range n.graph.Export() {
			w.PlacePipeWithSides(r.Location(), r.DisabledSides)
		}
		log.WithField("nodes", loaded).Info("pipe nodes loaded from store")
	} else {
		for _, p := range l.Pipes {
			mask, err := p.mask()
			if err != nil {
				return nil, err
			}
			pl := at(worldID, p.Pos)
			w.PlacePipeWithSides(pl, mask)
			n.graph.AddNodeWithSides(pl, mask)
		}
	}

	for _, c := range l.Chests {
		cl := at(worldID, c.Pos)
		chest := w.PlaceChest(cl, c.Slots)
		if c.DrainEvery > 0 {
			n.drainers = append(n.drainers, drainer{chest: chest, at: cl, every: uint64(c.DrainEvery)})
		}
	}

	mopts := []transport.ManagerOption{transport.WithLogger(logrus.WithField("component", "pipe_transport"))}
	if deps.Visual != nil {
		mopts = append(mopts, transport.WithVisual(deps.Visual))
	}
	if deps.Recorder != nil {
		mopts = append(mopts, transport.WithRecorder(deps.Recorder))
	}
	n.manager = transport.NewManager(w, mopts...)

	for _, c := range l.Controllers {
		cl := at(worldID, c.Pos)
		n.controllers = append(n.controllers, controller{
			at:    cl,
			item:  host.ItemStack{Kind: c.Item, Amount: c.Amount, MaxStack: t.DefaultMaxStack},
			every: uint64(c.Every),
		})
		if _, ok := n.sessions[cl]; ok {
			continue
		}
		n.sessions[cl] = routing.NewSession(n.graph, w, n.manager, routing.SessionConfig{
			Mode:         mode,
			SegmentTicks: t.SegmentTicks,
			MaxScanPipes: t.MaxScanPipes,
			Logger:       logrus.WithFields(logrus.Fields{"component": "pipe_routing", "controller": cl.String()}),
		})
	}
	return n, nil
}

// step advances the network by one tick: controllers emit, packets move,
// drained chests empty.
func (n *network) step() {
	n.tick++
	for _, c := range n.controllers {
		if n.tick%c.every != 0 {
			continue
		}
		if !probe.Reachable(n.world, c.at, n.probeMax) {
			n.log.WithField("controller", c.at.String()).Debug("no reachable inventory; controller idle")
			continue
		}
		if _, err := n.sessions[c.at].Route(c.at, c.item); err != nil {
			n.log.WithError(err).WithField("controller", c.at.String()).Warn("route failed")
		}
	}

	n.manager.Tick()

	for _, d := range n.drainers {
		if n.tick%d.every == 0 {
			if removed := d.chest.Clear(); removed > 0 {
				n.log.WithFields(logrus.Fields{"chest": d.at.String(), "items": removed}).Debug("chest drained")
			}
		}
	}
	if drops := n.world.TakeDrops(); len(drops) > 0 {
		total := 0
		for _, d := range drops {
			total += d.Stack.Amount
		}
		n.log.WithFields(logrus.Fields{"drops": len(drops), "items": total}).Debug("items spilled")
	}
}
