package sandbox

import "voxelpipes.ai/internal/sim/pipes/host"

// Chest is a fixed number of slots. A slot with no kind or a zero amount is
// empty.
type Chest struct {
	slots []host.ItemStack
}

func NewChest(slots int) *Chest {
	if slots < 0 {
		slots = 0
	}
	return &Chest{slots: make([]host.ItemStack, slots)}
}

// Set overwrites one slot.
func (c *Chest) Set(i int, stack host.ItemStack) {
	if i < 0 || i >= len(c.slots) {
		return
	}
	c.slots[i] = stack
}

// Clear empties every slot and returns how many items were removed.
func (c *Chest) Clear() int {
	n := 0
	for i, s := range c.slots {
		if !s.Empty() {
			n += s.Amount
		}
		c.slots[i] = host.ItemStack{}
	}
	return n
}

func (c *Chest) Slots() []host.ItemStack {
	out := make([]host.ItemStack, len(c.slots))
	copy(out, c.slots)
	return out
}

func (c *Chest) Count(kind string) int {
	n := 0
	for _, s := range c.slots {
		if s.Kind == kind {
			n += s.Amount
		}
	}
	return n
}

func (c *Chest) AddItem(stack host.ItemStack) int {
	if stack.Empty() {
		return 0
	}
	limit := stack.MaxStackSize()
	remaining := stack.Amount
	for i := range c.slots {
		if remaining == 0 {
			break
		}
		s := &c.slots[i]
		if s.Empty() || s.Kind != stack.Kind || s.Amount >= limit {
			continue
		}
		add := limit - s.Amount
		if add > remaining {
			add = remaining
		}
		s.Amount += add
		remaining -= add
	}
	for i := range c.slots {
		if remaining == 0 {
			break
		}
		if !c.slots[i].Empty() {
			continue
		}
		add := limit
		if add > remaining {
			add = remaining
		}
		c.slots[i] = stack.WithAmount(add)
		remaining -= add
	}
	return stack.Amount - remaining
}

func (c *Chest) EmptySlotCount() int {
	n := 0
	for _, s := range c.slots {
		if s.Empty() {
			n++
		}
	}
	return n
}

func (c *Chest) TotalRoomFor(stack host.ItemStack) int {
	limit := stack.MaxStackSize()
	room := 0
	for _, s := range c.slots {
		switch {
		case s.Empty():
			room += limit
		case s.Kind == stack.Kind && s.Amount < limit:
			room += limit - s.Amount
		}
	}
	return room
}
