package modem

// BitSet holds the tone slots of one group. Bit i lives in byte i/8 at
// position i%8, which is the order bits are keyed on air.
type BitSet struct {
	bits []byte
	size int
}

func NewBitSet(size int) *BitSet {
	return &BitSet{
		bits: make([]byte, (size+7)/8),
		size: size,
	}
}

// FromBytes loads the first size bits of data; missing bytes read as zero.
func (b *BitSet) FromBytes(data []byte) {
	n := copy(b.bits, data)
	clear(b.bits[n:])
}

func (b *BitSet) Set(pos int) {
	if pos >= b.size {
		return
	}
	b.bits[pos/8] |= 1 << (pos % 8)
}

func (b *BitSet) Reset() {
	clear(b.bits)
}

func (b *BitSet) IsSet(pos int) bool {
	if pos >= b.size {
		return false
	}
	return b.bits[pos/8]&(1<<(pos%8)) != 0
}

// Bytes returns the backing bytes. The slice is owned by the set.
func (b *BitSet) Bytes() []byte {
	return b.bits
}
