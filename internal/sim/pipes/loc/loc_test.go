package loc

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOppositeIsInvolution(t *testing.T) {
	for _, d := range Directions {
		assert.Equal(t, d, d.Opposite().Opposite(), d.String())
		assert.NotEqual(t, d, d.Opposite())

		dx, dy, dz := d.Offset()
		ox, oy, oz := d.Opposite().Offset()
		assert.Equal(t, [3]int{0, 0, 0}, [3]int{dx + ox, dy + oy, dz + oz})
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	l := At("OVERWORLD", 5, 64, -3)
	for _, d := range Directions {
		n := l.Offset(d)
		assert.Equal(t, int64(1), l.DistanceSq(n))
		assert.Equal(t, l, n.Offset(d.Opposite()))
	}
}

func TestParseDirection(t *testing.T) {
	for _, d := range Directions {
		got, ok := ParseDirection(d.String())
		require.True(t, ok)
		assert.Equal(t, d, got)
	}
	_, ok := ParseDirection("SIDEWAYS")
	assert.False(t, ok)
	assert.Equal(t, "?", Direction(9).String())
}

func TestNormalizeAndValid(t *testing.T) {
	a := At(" overworld ", 1, 2, 3).Normalize()
	b := At("OVERWORLD", 1, 2, 3)
	assert.Equal(t, b, a)
	assert.True(t, a.Valid())
	assert.False(t, At("  ", 0, 0, 0).Valid())
	assert.Equal(t, "OVERWORLD@1,2,3", a.String())
	assert.Equal(t, [3]int{1, 2, 3}, a.ToArray())
}

func TestChunk_FloorsNegativeCoordinates(t *testing.T) {
	tests := []struct {
		x, z   int
		cx, cz int
	}{
		{0, 0, 0, 0},
		{15, 15, 0, 0},
		{16, -1, 1, -1},
		{-16, -17, -1, -2},
	}
	for _, tt := range tests {
		ck := At("W", tt.x, 70, tt.z).Chunk()
		assert.Equal(t, ChunkKey{World: "W", CX: tt.cx, CZ: tt.cz}, ck, "x=%d z=%d", tt.x, tt.z)
	}
}

func TestCompareOrdersWorldThenAxes(t *testing.T) {
	ls := []Location{
		At("B", 0, 0, 0),
		At("A", 1, 0, 0),
		At("A", 0, 1, 0),
		At("A", 0, 0, 1),
		At("A", 0, 0, 0),
	}
	sort.Slice(ls, func(i, j int) bool { return Less(ls[i], ls[j]) })
	assert.Equal(t, []Location{
		At("A", 0, 0, 0),
		At("A", 0, 0, 1),
		At("A", 0, 1, 0),
		At("A", 1, 0, 0),
		At("B", 0, 0, 0),
	}, ls)
	assert.Equal(t, 0, Compare(At("A", 1, 2, 3), At("A", 1, 2, 3)))
}

func TestSideMask(t *testing.T) {
	var m SideMask
	m = m.With(Up).With(North)
	assert.True(t, m.Has(Up))
	assert.True(t, m.Has(North))
	assert.False(t, m.Has(East))

	m = m.Set(Up, false).Set(East, true)
	assert.False(t, m.Has(Up))
	assert.True(t, m.Has(East))

	assert.Equal(t, AllSides, SideMask(0xFF).Clean())
	assert.Equal(t, m, m.Without(South))
}

func TestLerpAndCenter(t *testing.T) {
	a := At("W", 0, 0, 0).Center()
	b := At("W", 2, 0, 0).Center()
	assert.Equal(t, Vec3f{X: 0.5, Y: 0.5, Z: 0.5}, a)
	assert.Equal(t, Vec3f{X: 1.5, Y: 0.5, Z: 0.5}, Lerp(a, b, 0.5))
	assert.Equal(t, b, Lerp(a, b, 1))
}
