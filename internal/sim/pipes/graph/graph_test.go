package graph

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
	"voxelpipes.ai/internal/sim/pipes/sandbox"
)

const w = "OVERWORLD"

func at(x, y, z int) loc.Location { return loc.At(w, x, y, z) }

// memJournal is an in-memory NodeSource and NodeSink.
type memJournal struct {
	recs    map[loc.Location]host.NodeRecord
	saves   int
	deletes int
}

func newMemJournal() *memJournal { return &memJournal{recs: map[loc.Location]host.NodeRecord{}} }

func (j *memJournal) SaveNode(_ context.Context, rec host.NodeRecord) error {
	j.saves++
	j.recs[rec.Location()] = rec
	return nil
}

func (j *memJournal) DeleteNode(_ context.Context, l loc.Location) error {
	j.deletes++
	delete(j.recs, l)
	return nil
}

func (j *memJournal) LoadNodes(_ context.Context, worldID string) ([]host.NodeRecord, error) {
	var out []host.NodeRecord
	for _, r := range j.recs {
		if r.World == worldID {
			out = append(out, r)
		}
	}
	return out, nil
}

// assertSymmetric checks that every link has its mirror, links only axis
// neighbors through enabled faces, and that every linkable pair is linked.
func assertSymmetric(t *testing.T, g *Graph) {
	t.Helper()
	for _, l := range g.Locations() {
		n, _ := g.Node(l)
		for _, nb := range n.Neighbors() {
			assert.True(t, nb.HasNeighbor(n), "%s -> %s has no mirror", l, nb.Location())
			assert.Equal(t, int64(1), l.DistanceSq(nb.Location()))
		}
		for _, d := range loc.Directions {
			o, ok := g.Node(l.Offset(d))
			if !ok {
				continue
			}
			assert.Equal(t, canLink(n, o, d), n.HasNeighbor(o), "%s %s", l, d)
		}
	}
}

func assertChunkIndex(t *testing.T, g *Graph) {
	t.Helper()
	total := 0
	for ck := range g.byChunk {
		ls := g.ChunkLocations(ck)
		require.NotEmpty(t, ls, "empty bucket %s kept", ck)
		for _, l := range ls {
			assert.Equal(t, ck, l.Chunk())
			assert.True(t, g.Contains(l))
		}
		total += len(ls)
	}
	assert.Equal(t, g.Len(), total)
}

func TestAddNode_LinksAxisNeighbors(t *testing.T) {
	g := New(nil)
	a := g.AddNode(at(0, 0, 0))
	b := g.AddNode(at(1, 0, 0))
	c := g.AddNode(at(1, 1, 1))

	assert.True(t, a.HasNeighbor(b))
	assert.True(t, b.HasNeighbor(a))
	assert.Empty(t, c.Neighbors())
	assert.Same(t, a, g.AddNode(loc.At(" overworld", 0, 0, 0)))
	assert.Equal(t, 3, g.Len())
}

func TestAddNodeWithSides_DisabledFaceBlocksLink(t *testing.T) {
	g := New(nil)
	a := g.AddNodeWithSides(at(0, 0, 0), loc.SideMask(0).With(loc.East))
	b := g.AddNode(at(1, 0, 0))
	assert.False(t, a.HasNeighbor(b))
	assert.False(t, b.HasNeighbor(a))
}

func TestRemoveNode_RebuildsAndUnindexes(t *testing.T) {
	g := New(nil)
	g.AddNode(at(0, 0, 0))
	g.AddNode(at(1, 0, 0))
	far := at(100, 0, 100)
	g.AddNode(far)
	require.Equal(t, 2, g.ChunkCount())

	assert.True(t, g.RemoveNode(far))
	assert.False(t, g.RemoveNode(far))
	assert.Equal(t, 1, g.ChunkCount())

	require.True(t, g.RemoveNode(at(1, 0, 0)))
	n, ok := g.Node(at(0, 0, 0))
	require.True(t, ok)
	assert.Empty(t, n.Neighbors())
	assertChunkIndex(t, g)
}

func TestToggleSide(t *testing.T) {
	g := New(nil)
	a := g.AddNode(at(0, 0, 0))
	b := g.AddNode(at(0, 1, 0))
	require.True(t, a.HasNeighbor(b))

	disabled, err := g.ToggleSide(at(0, 1, 0), loc.Down)
	require.NoError(t, err)
	assert.True(t, disabled)
	assert.False(t, a.HasNeighbor(b))
	assert.False(t, b.HasNeighbor(a))

	disabled, err = g.ToggleSide(at(0, 1, 0), loc.Down)
	require.NoError(t, err)
	assert.False(t, disabled)
	assert.True(t, a.HasNeighbor(b))
	assert.True(t, b.HasNeighbor(a))

	_, err = g.ToggleSide(at(9, 9, 9), loc.Up)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
	assert.ErrorIs(t, g.SetSideDisabled(at(9, 9, 9), loc.Up, true), ErrNodeNotFound)
}

func TestRandomOps_KeepAdjacencySymmetric(t *testing.T) {
	g := New(nil)
	r := rand.New(rand.NewSource(42))
	pick := func() loc.Location { return at(r.Intn(6)-3, r.Intn(3), r.Intn(40)-20) }

	for i := 0; i < 2000; i++ {
		switch r.Intn(4) {
		case 0, 1:
			g.AddNodeWithSides(pick(), loc.SideMask(r.Intn(64)))
		case 2:
			g.RemoveNode(pick())
		case 3:
			l := pick()
			if g.Contains(l) {
				_, err := g.ToggleSide(l, loc.Directions[r.Intn(6)])
				require.NoError(t, err)
			}
		}
		if i%100 == 0 {
			assertSymmetric(t, g)
			assertChunkIndex(t, g)
		}
	}
	assertSymmetric(t, g)
	assertChunkIndex(t, g)

	// A full rebuild from scratch agrees with the incremental state.
	before := map[loc.Location]int{}
	for _, l := range g.Locations() {
		n, _ := g.Node(l)
		before[l] = len(n.Neighbors())
	}
	g.Rebuild()
	for _, l := range g.Locations() {
		n, _ := g.Node(l)
		assert.Equal(t, before[l], len(n.Neighbors()), l.String())
	}
}

func TestFindPath(t *testing.T) {
	g := New(nil)
	// Two routes from (0,0,0) to (3,0,0): straight, and a detour over y=1.
	for x := 0; x <= 3; x++ {
		g.AddNode(at(x, 0, 0))
		g.AddNode(at(x, 1, 0))
	}

	path, ok := g.FindPath(at(0, 0, 0), at(3, 0, 0))
	require.True(t, ok)
	assert.Equal(t, []loc.Location{at(0, 0, 0), at(1, 0, 0), at(2, 0, 0), at(3, 0, 0)}, path)

	// Cutting the straight route forces the detour.
	require.NoError(t, g.SetSideDisabled(at(1, 0, 0), loc.East, true))
	path, ok = g.FindPath(at(0, 0, 0), at(3, 0, 0))
	require.True(t, ok)
	assert.Len(t, path, 6)
	assert.Equal(t, at(0, 0, 0), path[0])
	assert.Equal(t, at(3, 0, 0), path[len(path)-1])

	path, ok = g.FindPath(at(2, 1, 0), at(2, 1, 0))
	require.True(t, ok)
	assert.Equal(t, []loc.Location{at(2, 1, 0)}, path)

	_, ok = g.FindPath(at(0, 0, 0), at(50, 0, 0))
	assert.False(t, ok)
}

func TestFindPath_NoRouteBetweenComponents(t *testing.T) {
	g := New(nil)
	g.AddNode(at(0, 0, 0))
	g.AddNode(at(2, 0, 0))
	_, ok := g.FindPath(at(0, 0, 0), at(2, 0, 0))
	assert.False(t, ok)
}

func TestFindInventoriesNear(t *testing.T) {
	world := sandbox.NewWorld()
	g := New(world)
	for x := 0; x <= 3; x++ {
		g.AddNode(at(x, 0, 0))
	}
	world.PlaceChest(at(4, 0, 0), 9)
	world.PlaceChest(at(1, 1, 0), 9) // touches one pipe
	world.PlaceChest(at(2, 0, 1), 9) // touches (2,0,0)
	world.PlaceChest(at(0, 5, 0), 9) // touches nothing

	got := g.FindInventoriesNear(at(0, 0, 0))
	assert.Equal(t, []loc.Location{at(1, 1, 0), at(2, 0, 1), at(4, 0, 0)}, got)

	// Disabling the face towards a chest hides it.
	require.NoError(t, g.SetSideDisabled(at(2, 0, 0), loc.South, true))
	got = g.FindInventoriesNear(at(3, 0, 0))
	assert.Equal(t, []loc.Location{at(1, 1, 0), at(4, 0, 0)}, got)

	assert.Nil(t, g.FindInventoriesNear(at(99, 0, 0)))
}

func TestFindInventoriesNear_DeduplicatesSharedChest(t *testing.T) {
	world := sandbox.NewWorld()
	g := New(world)
	g.AddNode(at(0, 0, 0))
	g.AddNode(at(1, 0, 0))
	g.AddNode(at(1, 0, 1))
	world.PlaceChest(at(0, 0, 1), 9) // touches (0,0,0) and (1,0,1)
	world.PlaceChest(at(2, 0, 0), 9)

	got := g.FindInventoriesNear(at(0, 0, 0))
	assert.Equal(t, []loc.Location{at(0, 0, 1), at(2, 0, 0)}, got)
}

func TestHasValidOutput_Tiers(t *testing.T) {
	world := sandbox.NewWorld()
	g := New(world)
	controller := at(0, 0, 0)

	t.Run("direct inventory", func(t *testing.T) {
		world.PlaceChest(at(0, 1, 0), 9)
		defer world.RemoveChest(at(0, 1, 0))
		assert.True(t, g.HasValidOutput(controller, world.IsPipeAt, 0))
	})

	t.Run("cached route", func(t *testing.T) {
		g.AddNode(at(1, 0, 0))
		g.AddNode(at(2, 0, 0))
		world.PlaceChest(at(3, 0, 0), 9)
		defer world.RemoveChest(at(3, 0, 0))
		assert.True(t, g.HasValidOutput(controller, world.IsPipeAt, 0))
	})

	t.Run("adjacent cache without route does not rescan", func(t *testing.T) {
		world.PlacePipe(at(0, 0, 1))
		world.PlaceChest(at(0, 0, 2), 9)
		defer world.RemoveChest(at(0, 0, 2))
		defer world.RemovePipe(at(0, 0, 1))
		assert.False(t, g.HasValidOutput(controller, world.IsPipeAt, 0))
		assert.False(t, g.Contains(at(0, 0, 1)))
	})

	t.Run("controller inventory is not an output", func(t *testing.T) {
		world.PlaceChest(controller, 9)
		defer world.RemoveChest(controller)
		assert.False(t, g.HasValidOutput(controller, world.IsPipeAt, 0))
	})
}

func TestHasValidOutput_SelfHealsEmptyCache(t *testing.T) {
	world := sandbox.NewWorld()
	for x := 1; x <= 5; x++ {
		world.PlacePipe(at(x, 0, 0))
	}
	world.PlaceChest(at(6, 0, 0), 9)

	g := New(world)
	require.Equal(t, 0, g.Len())
	assert.True(t, g.HasValidOutput(at(0, 0, 0), world.IsPipeAt, DefaultMaxScanPipes))
	assert.Equal(t, 5, g.Len())
	assertSymmetric(t, g)
}

func TestHasValidOutput_ScanCapStopsHealing(t *testing.T) {
	world := sandbox.NewWorld()
	for x := 1; x <= 5; x++ {
		world.PlacePipe(at(x, 0, 0))
	}
	world.PlaceChest(at(6, 0, 0), 9)

	g := New(world)
	assert.False(t, g.HasValidOutput(at(0, 0, 0), world.IsPipeAt, 3))
	assert.Equal(t, 3, g.Len())
}

func TestReconcile(t *testing.T) {
	world := sandbox.NewWorld()
	world.PlacePipe(at(1, 0, 0))
	world.PlacePipe(at(1, 0, 1))
	world.PlacePipe(at(-1, 0, 0))

	g := New(world)
	g.AddNode(at(1, 0, 0))
	assert.Equal(t, 2, g.Reconcile(at(0, 0, 0), world.IsPipeAt, nil, 0))
	assert.Equal(t, 0, g.Reconcile(at(0, 0, 0), world.IsPipeAt, nil, 0))
	assert.Equal(t, 0, g.Reconcile(at(0, 0, 0), nil, nil, 0))
	assert.Equal(t, 3, g.Len())
}

func TestJournal(t *testing.T) {
	j := newMemJournal()
	g := New(nil, WithJournal(j))
	g.AddNode(at(0, 0, 0))
	g.AddNode(at(1, 0, 0))
	require.NoError(t, g.SetSideDisabled(at(1, 0, 0), loc.Up, true))
	g.RemoveNode(at(0, 0, 0))

	assert.Equal(t, 3, j.saves)
	assert.Equal(t, 1, j.deletes)
	require.Len(t, j.recs, 1)
	rec := j.recs[at(1, 0, 0)]
	assert.True(t, rec.DisabledSides.Has(loc.Up))
}

func TestLoadAndExport(t *testing.T) {
	j := newMemJournal()
	src := New(nil, WithJournal(j))
	for x := 0; x < 4; x++ {
		src.AddNode(at(x, 0, 0))
	}
	require.NoError(t, src.SetSideDisabled(at(2, 0, 0), loc.West, true))
	saves := j.saves

	dst := New(nil, WithJournal(j))
	n, err := dst.Load(context.Background(), j, w)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, saves, j.saves, "loading must not journal")
	assert.Equal(t, src.Export(), dst.Export())

	a, _ := dst.Node(at(1, 0, 0))
	b, _ := dst.Node(at(2, 0, 0))
	assert.False(t, a.HasNeighbor(b))
	assertSymmetric(t, dst)
	assertChunkIndex(t, dst)
}

func TestHasValidOutput_HealedPipeKeepsDisabledFace(t *testing.T) {
	world := sandbox.NewWorld()
	world.PlacePipeWithSides(at(1, 0, 0), loc.SideMask(0).With(loc.East))
	world.PlaceChest(at(2, 0, 0), 9)

	g := New(world)
	assert.False(t, g.HasValidOutput(at(0, 0, 0), world.IsPipeAt, DefaultMaxScanPipes))
	n, ok := g.Node(at(1, 0, 0))
	require.True(t, ok)
	assert.Equal(t, loc.SideMask(0).With(loc.East), n.Disabled())
	assert.Nil(t, g.FindInventoriesNear(at(1, 0, 0)))

	// Re-enabling the face in the world and the cache opens the route.
	world.SetPipeSide(at(1, 0, 0), loc.East, false)
	require.NoError(t, g.SetSideDisabled(at(1, 0, 0), loc.East, false))
	assert.True(t, g.HasValidOutput(at(0, 0, 0), world.IsPipeAt, DefaultMaxScanPipes))
}

func TestReconcile_ReadsSidesFromWorld(t *testing.T) {
	world := sandbox.NewWorld()
	world.PlacePipe(at(1, 0, 0))
	world.PlacePipeWithSides(at(2, 0, 0), loc.SideMask(0).With(loc.West))

	g := New(nil)
	assert.Equal(t, 2, g.Reconcile(at(0, 0, 0), world.IsPipeAt, WorldSides(world), 0))
	a, _ := g.Node(at(1, 0, 0))
	b, _ := g.Node(at(2, 0, 0))
	assert.Equal(t, loc.SideMask(0), a.Disabled())
	assert.Equal(t, loc.SideMask(0).With(loc.West), b.Disabled())
	assert.False(t, a.HasNeighbor(b))
	assertSymmetric(t, g)
}

func TestHasValidOutput_WithLiveSidesOverridesWorld(t *testing.T) {
	world := sandbox.NewWorld()
	world.PlacePipe(at(1, 0, 0))
	world.PlaceChest(at(2, 0, 0), 9)

	allOff := func(loc.Location) loc.SideMask { return loc.AllSides }
	g := New(world, WithLiveSides(allOff))
	assert.False(t, g.HasValidOutput(at(0, 0, 0), world.IsPipeAt, 0))
	n, ok := g.Node(at(1, 0, 0))
	require.True(t, ok)
	assert.Equal(t, loc.AllSides, n.Disabled())
}
