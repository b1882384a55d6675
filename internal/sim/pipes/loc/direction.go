package loc

// Direction is one of the six axis-aligned block faces.
type Direction uint8

const (
	East Direction = iota
	West
	Up
	Down
	South
	North
)

// Directions lists every face in scan order. Iteration order is part of the
// behavior: inventory scans and adjacency both walk faces in this order.
var Directions = [6]Direction{East, West, Up, Down, South, North}

var offsets = [6][3]int{
	East:  {1, 0, 0},
	West:  {-1, 0, 0},
	Up:    {0, 1, 0},
	Down:  {0, -1, 0},
	South: {0, 0, 1},
	North: {0, 0, -1},
}

var opposites = [6]Direction{
	East:  West,
	West:  East,
	Up:    Down,
	Down:  Up,
	South: North,
	North: South,
}

var dirNames = [6]string{"EAST", "WEST", "UP", "DOWN", "SOUTH", "NORTH"}

func (d Direction) Opposite() Direction { return opposites[d] }

func (d Direction) Offset() (dx, dy, dz int) {
	o := offsets[d]
	return o[0], o[1], o[2]
}

func (d Direction) Valid() bool { return d <= North }

func (d Direction) String() string {
	if !d.Valid() {
		return "?"
	}
	return dirNames[d]
}

// ParseDirection accepts the upper-case names produced by String.
func ParseDirection(s string) (Direction, bool) {
	for i, n := range dirNames {
		if n == s {
			return Direction(i), true
		}
	}
	return 0, false
}

// SideMask is a 6-bit set of disabled faces.
type SideMask uint8

const AllSides SideMask = 1<<6 - 1

func (m SideMask) Has(d Direction) bool { return m&(1<<d) != 0 }

func (m SideMask) With(d Direction) SideMask { return m | 1<<d }

func (m SideMask) Without(d Direction) SideMask { return m &^ (1 << d) }

func (m SideMask) Set(d Direction, on bool) SideMask {
	if on {
		return m.With(d)
	}
	return m.Without(d)
}

// Clean drops bits outside the six faces.
func (m SideMask) Clean() SideMask { return m & AllSides }
