package spectrum

// Ring is a bounded FIFO of spectra. Pushing into a full ring overwrites
// the oldest entry in place.
type Ring struct {
	slots [][]float64
	head  int // index of the oldest entry
	size  int
}

func NewRing(capacity, bins int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring{slots: make([][]float64, capacity)}
	for i := range r.slots {
		r.slots[i] = make([]float64, bins)
	}
	return r
}

func (r *Ring) Cap() int {
	return len(r.slots)
}

func (r *Ring) Len() int {
	return r.size
}

// Push copies s into the ring.
func (r *Ring) Push(s []float64) {
	var slot int
	if r.size < len(r.slots) {
		slot = (r.head + r.size) % len(r.slots)
		r.size++
	} else {
		slot = r.head
		r.head = (r.head + 1) % len(r.slots)
	}
	copy(r.slots[slot], s)
}

// At returns the i-th oldest entry. The slice is owned by the ring.
func (r *Ring) At(i int) []float64 {
	return r.slots[(r.head+i)%len(r.slots)]
}

func (r *Ring) Reset() {
	r.head = 0
	r.size = 0
}
