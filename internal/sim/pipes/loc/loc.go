// Package loc holds the value types every pipe component keys on: block
// locations, the six axis directions, per-face masks and chunk keys.
package loc

import (
	"fmt"
	"strings"
)

// ChunkSize is the horizontal chunk edge length used by ChunkKey.
const ChunkSize = 16

// Location is a block position inside one world. It is comparable and used
// directly as a map key.
type Location struct {
	World string
	X     int
	Y     int
	Z     int
}

func At(world string, x, y, z int) Location {
	return Location{World: world, X: x, Y: y, Z: z}
}

// Normalize canonicalizes the world id so keys built by different callers
// compare equal.
func (l Location) Normalize() Location {
	l.World = strings.ToUpper(strings.TrimSpace(l.World))
	return l
}

func (l Location) Valid() bool { return strings.TrimSpace(l.World) != "" }

func (l Location) Offset(d Direction) Location {
	o := offsets[d]
	return Location{World: l.World, X: l.X + o[0], Y: l.Y + o[1], Z: l.Z + o[2]}
}

func (l Location) Chunk() ChunkKey {
	return ChunkKey{World: l.World, CX: floorDiv(l.X, ChunkSize), CZ: floorDiv(l.Z, ChunkSize)}
}

// Center is the midpoint of the block, used for rendering.
func (l Location) Center() Vec3f {
	return Vec3f{X: float64(l.X) + 0.5, Y: float64(l.Y) + 0.5, Z: float64(l.Z) + 0.5}
}

// DistanceSq is the squared euclidean distance between two blocks. The world
// component is ignored.
func (l Location) DistanceSq(o Location) int64 {
	dx := int64(l.X - o.X)
	dy := int64(l.Y - o.Y)
	dz := int64(l.Z - o.Z)
	return dx*dx + dy*dy + dz*dz
}

func (l Location) ToArray() [3]int { return [3]int{l.X, l.Y, l.Z} }

func (l Location) String() string {
	return fmt.Sprintf("%s@%d,%d,%d", l.World, l.X, l.Y, l.Z)
}

// Compare orders locations by world, then X, Y, Z.
func Compare(a, b Location) int {
	if a.World != b.World {
		return strings.Compare(a.World, b.World)
	}
	if a.X != b.X {
		return cmpInt(a.X, b.X)
	}
	if a.Y != b.Y {
		return cmpInt(a.Y, b.Y)
	}
	return cmpInt(a.Z, b.Z)
}

func Less(a, b Location) bool { return Compare(a, b) < 0 }

// floorDiv rounds toward negative infinity; b > 0.
func floorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ChunkKey identifies a vertical column of blocks.
type ChunkKey struct {
	World string
	CX    int
	CZ    int
}

func (k ChunkKey) String() string { return fmt.Sprintf("%s/%d,%d", k.World, k.CX, k.CZ) }

// Vec3f is a render-space position.
type Vec3f struct {
	X float64
	Y float64
	Z float64
}

// Lerp interpolates between a and b. t is not clamped.
func Lerp(a, b Vec3f, t float64) Vec3f {
	return Vec3f{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}
