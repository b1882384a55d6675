package routing

import (
	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

type destItem struct {
	dest loc.Location
	kind string
}

// Ledger tracks capacity promised to packets that have been routed but not yet
// delivered. Counters are always positive; a counter that reaches zero is
// removed. One ledger belongs to one routing session.
type Ledger struct {
	byDest     map[loc.Location]int
	byDestItem map[destItem]int
}

func NewLedger() *Ledger {
	return &Ledger{
		byDest:     map[loc.Location]int{},
		byDestItem: map[destItem]int{},
	}
}

func (l *Ledger) Reserve(dest loc.Location, kind string, n int) {
	if n <= 0 {
		return
	}
	dest = dest.Normalize()
	l.byDest[dest] += n
	l.byDestItem[destItem{dest: dest, kind: kind}] += n
	reservedUnits.Add(float64(n))
}

// Release gives back up to n units of kind at dest and returns how many were
// actually released.
func (l *Ledger) Release(dest loc.Location, kind string, n int) int {
	if n <= 0 {
		return 0
	}
	dest = dest.Normalize()
	key := destItem{dest: dest, kind: kind}
	have := l.byDestItem[key]
	if n > have {
		n = have
	}
	if n == 0 {
		return 0
	}
	if have-n <= 0 {
		delete(l.byDestItem, key)
	} else {
		l.byDestItem[key] = have - n
	}
	if total := l.byDest[dest] - n; total <= 0 {
		delete(l.byDest, dest)
	} else {
		l.byDest[dest] = total
	}
	reservedUnits.Sub(float64(n))
	return n
}

func (l *Ledger) Reserved(dest loc.Location) int { return l.byDest[dest.Normalize()] }

func (l *Ledger) ReservedFor(dest loc.Location, kind string) int {
	return l.byDestItem[destItem{dest: dest.Normalize(), kind: kind}]
}

func (l *Ledger) Empty() bool { return len(l.byDest) == 0 && len(l.byDestItem) == 0 }

// Destinations is the number of destinations with outstanding reservations.
func (l *Ledger) Destinations() int { return len(l.byDest) }

// Room splits an inventory's free space for one item kind.
type Room struct {
	// Empty is space in empty slots, counted in units of the item.
	Empty int
	// Mergeable is space on partial stacks of the same kind.
	Mergeable int
}

func RoomFor(inv host.Inventory, item host.ItemStack) Room {
	empty := inv.EmptySlotCount() * item.MaxStackSize()
	merge := inv.TotalRoomFor(item) - empty
	if merge < 0 {
		merge = 0
	}
	return Room{Empty: empty, Mergeable: merge}
}

// Available is the quantity of item that could still be promised to dest.
//
// Reservations of the same kind fill mergeable room first and spill into empty
// slots; reservations of other kinds can only use empty slots.
func (l *Ledger) Available(dest loc.Location, inv host.Inventory, item host.ItemStack) int {
	room := RoomFor(inv, item)
	same := l.ReservedFor(dest, item.Kind)
	other := l.Reserved(dest) - same

	sameOnMerge := same
	if sameOnMerge > room.Mergeable {
		sameOnMerge = room.Mergeable
	}
	spill := same - sameOnMerge

	emptyLeft := room.Empty - other - spill
	if emptyLeft < 0 {
		emptyLeft = 0
	}
	return room.Mergeable - sameOnMerge + emptyLeft
}

// CanReserve reports whether a packet of item fits at dest on top of what is
// already promised.
func (l *Ledger) CanReserve(dest loc.Location, inv host.Inventory, item host.ItemStack) bool {
	if inv == nil || item.Empty() {
		return false
	}
	return l.Available(dest, inv, item) >= item.Amount
}
