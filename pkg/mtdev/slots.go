package mtdev

// SlotMap hands out contact slots for device tracking ids: a known id keeps
// its slot, a new one takes the lowest free slot and holds it until
// released.
type SlotMap struct {
	owners []int32
}

func NewSlotMap(size int) *SlotMap {
	m := &SlotMap{owners: make([]int32, size)}
	for i := range m.owners {
		m.owners[i] = -1
	}
	return m
}

// Assign resolves a tracking id to its slot, claiming one if needed. It
// fails only when every slot is held by another id.
func (m *SlotMap) Assign(trackingID int32) (int32, bool) {
	free := -1
	for i, owner := range m.owners {
		if owner == trackingID {
			return int32(i), true
		}
		if owner < 0 && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return 0, false
	}
	m.owners[free] = trackingID
	return int32(free), true
}

func (m *SlotMap) Release(slot int32) {
	if slot >= 0 && int(slot) < len(m.owners) {
		m.owners[slot] = -1
	}
}

// Owner returns the tracking id holding the slot, or -1 when free.
func (m *SlotMap) Owner(slot int32) int32 {
	if slot < 0 || int(slot) >= len(m.owners) {
		return -1
	}
	return m.owners[slot]
}

// Active counts held slots.
func (m *SlotMap) Active() int {
	n := 0
	for _, owner := range m.owners {
		if owner >= 0 {
			n++
		}
	}
	return n
}
