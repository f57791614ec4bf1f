package protocol

import (
	"errors"
	"fmt"
)

// MaxDataBits bounds the number of tone slots a single group may occupy.
const MaxDataBits = 256

var ErrInvalidProtocol = errors.New("invalid protocol")

// TxProtocol fixes the modulation geometry of one transmission profile.
type TxProtocol struct {
	Name string

	FreqStart   int // first spectral bin used by the profile
	FramesPerTx int // frames each group of bytes is held for
	BytesPerTx  int // bytes carried by each group
}

func (p TxProtocol) BitsPerTx() int {
	return 8 * p.BytesPerTx
}

// MarkerRun is the number of adjacent marker slots sharing the same
// high/low polarity. It differs between speeds so that every catalog
// entry starts with a distinct marker.
func (p TxProtocol) MarkerRun() int {
	return max(1, (p.FramesPerTx+2)/3)
}

// MaxBin is the highest spectral bin touched by the profile when data
// slots are spaced delta bins apart and markerSlots marker pairs are used.
func (p TxProtocol) MaxBin(delta, markerSlots int) int {
	data := p.FreqStart + delta*(p.BitsPerTx()-1)
	marker := p.FreqStart + 2*markerSlots - 1
	return max(data, marker)
}

func (p TxProtocol) Validate() error {
	if p.FramesPerTx < 1 {
		return fmt.Errorf("%w: frames per tx must be at least 1, got %d", ErrInvalidProtocol, p.FramesPerTx)
	}
	if p.BytesPerTx < 1 {
		return fmt.Errorf("%w: bytes per tx must be at least 1, got %d", ErrInvalidProtocol, p.BytesPerTx)
	}
	if p.BitsPerTx() > MaxDataBits {
		return fmt.Errorf("%w: %d bits per tx exceeds %d", ErrInvalidProtocol, p.BitsPerTx(), MaxDataBits)
	}
	if p.FreqStart < 1 {
		return fmt.Errorf("%w: freq start must be positive, got %d", ErrInvalidProtocol, p.FreqStart)
	}
	return nil
}

func (p TxProtocol) String() string {
	return p.Name
}

// The catalog is part of the wire contract: a decoder must use exactly the
// same table as the encoder. Entries are ordered by id.
var catalog = [...]TxProtocol{
	{Name: "Normal", FreqStart: 40, FramesPerTx: 9, BytesPerTx: 3},
	{Name: "Fast", FreqStart: 40, FramesPerTx: 6, BytesPerTx: 3},
	{Name: "Fastest", FreqStart: 40, FramesPerTx: 3, BytesPerTx: 3},
	{Name: "[U] Normal", FreqStart: 320, FramesPerTx: 9, BytesPerTx: 3},
	{Name: "[U] Fast", FreqStart: 320, FramesPerTx: 6, BytesPerTx: 3},
	{Name: "[U] Fastest", FreqStart: 320, FramesPerTx: 3, BytesPerTx: 3},
}

const (
	Normal = iota
	Fast
	Fastest
	UltrasonicNormal
	UltrasonicFast
	UltrasonicFastest
)

const DefaultID = Fast

// Count is the number of catalog entries.
const Count = len(catalog)

// Protocols returns a copy of the catalog in id order.
func Protocols() []TxProtocol {
	out := make([]TxProtocol, len(catalog))
	copy(out, catalog[:])
	return out
}

func ByID(id int) (TxProtocol, bool) {
	if id < 0 || id >= len(catalog) {
		return TxProtocol{}, false
	}
	return catalog[id], true
}

func ByName(name string) (TxProtocol, int, bool) {
	for id, p := range catalog {
		if p.Name == name {
			return p, id, true
		}
	}
	return TxProtocol{}, -1, false
}

// ID returns the catalog index of p, or -1 if p is not a catalog entry.
func ID(p TxProtocol) int {
	for id, c := range catalog {
		if c == p {
			return id
		}
	}
	return -1
}

func Default() TxProtocol {
	return catalog[DefaultID]
}
