package fec

import (
	"errors"
	"fmt"

	"Aethertone/pkg/protocol"

	"github.com/sigurn/crc8"
	"github.com/vivint/infectious"
)

const (
	MaxLength   = 140 // longest payload accepted for transmission
	MaxDataSize = 256 // longest encoded stream

	ECCBytesPerBlock = 2 // RS parity appended to every block, corrects one byte

	headerDataSize = 2 // payload length, payload checksum
	HeaderSize     = headerDataSize + ECCBytesPerBlock
)

var (
	ErrInvalidLength = errors.New("invalid payload length")
	ErrTruncated     = errors.New("encoded data too short")
	ErrUncorrectable = errors.New("uncorrectable block")
	ErrChecksum      = errors.New("payload checksum mismatch")
)

var crcTable = crc8.MakeTable(crc8.CRC8_MAXIM)

// Header is the first, separately protected block of every encoded stream.
type Header struct {
	Length   int
	Checksum byte
}

// Codec splits payloads into blocks and protects each of them with
// Reed-Solomon parity. A Codec caches one code per block size and must not
// be shared between goroutines.
type Codec struct {
	codes map[int]*infectious.FEC
}

func NewCodec() *Codec {
	return &Codec{codes: make(map[int]*infectious.FEC)}
}

// EncodedLength is the size of the encoded stream for a payload of n bytes.
func EncodedLength(n int, p protocol.TxProtocol) int {
	blocks := (n + p.BytesPerTx - 1) / p.BytesPerTx
	return HeaderSize + n + blocks*ECCBytesPerBlock
}

// Checksum is the CRC-8/MAXIM of the payload carried in the header.
func Checksum(payload []byte) byte {
	return crc8.Checksum(payload, crcTable)
}

func (c *Codec) code(k int) (*infectious.FEC, error) {
	if f, ok := c.codes[k]; ok {
		return f, nil
	}
	f, err := infectious.NewFEC(k, k+ECCBytesPerBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to build RS(%d,%d): %w", k+ECCBytesPerBlock, k, err)
	}
	c.codes[k] = f
	return f, nil
}

func (c *Codec) Encode(payload []byte, p protocol.TxProtocol) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(payload) == 0 || len(payload) > MaxLength {
		return nil, fmt.Errorf("%w: %d bytes, expected 1..%d", ErrInvalidLength, len(payload), MaxLength)
	}
	n := EncodedLength(len(payload), p)
	if n > MaxDataSize {
		return nil, fmt.Errorf("%w: encodes to %d bytes, limit is %d", ErrInvalidLength, n, MaxDataSize)
	}

	encoded := make([]byte, 0, n)
	encoded, err := c.appendBlock(encoded, []byte{byte(len(payload)), Checksum(payload)})
	if err != nil {
		return nil, err
	}
	for off := 0; off < len(payload); off += p.BytesPerTx {
		encoded, err = c.appendBlock(encoded, payload[off:min(off+p.BytesPerTx, len(payload))])
		if err != nil {
			return nil, err
		}
	}
	return encoded, nil
}

// appendBlock writes every share of the block in share order.
func (c *Codec) appendBlock(dst, block []byte) ([]byte, error) {
	f, err := c.code(len(block))
	if err != nil {
		return nil, err
	}
	shares := make([]byte, f.Total())
	err = f.Encode(block, func(s infectious.Share) {
		shares[s.Number] = s.Data[0]
	})
	if err != nil {
		return nil, err
	}
	return append(dst, shares...), nil
}

// decodeBlock corrects a block of k data bytes plus parity. corrected
// reports whether any share had to be repaired.
func (c *Codec) decodeBlock(block []byte, k int) (data []byte, corrected bool, err error) {
	f, err := c.code(k)
	if err != nil {
		return nil, false, err
	}
	if len(block) != f.Total() {
		return nil, false, fmt.Errorf("%w: block of %d bytes, expected %d", ErrTruncated, len(block), f.Total())
	}

	shares := make([]infectious.Share, len(block))
	for i, b := range block {
		shares[i] = infectious.Share{Number: i, Data: []byte{b}}
	}
	data, err = f.Decode(nil, shares)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUncorrectable, err)
	}

	err = f.Encode(data, func(s infectious.Share) {
		if s.Data[0] != block[s.Number] {
			corrected = true
		}
	})
	if err != nil {
		return nil, false, err
	}
	return data, corrected, nil
}

func (c *Codec) DecodeHeader(encoded []byte) (Header, bool, error) {
	if len(encoded) < HeaderSize {
		return Header{}, false, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(encoded), HeaderSize)
	}
	data, corrected, err := c.decodeBlock(encoded[:HeaderSize], headerDataSize)
	if err != nil {
		return Header{}, false, fmt.Errorf("header: %w", err)
	}
	h := Header{Length: int(data[0]), Checksum: data[1]}
	if h.Length == 0 || h.Length > MaxLength {
		return Header{}, false, fmt.Errorf("%w: header announces %d bytes", ErrInvalidLength, h.Length)
	}
	return h, corrected, nil
}

// Decode reverses Encode. Either the complete payload is returned or an
// error; a partially decoded payload is never surfaced.
func (c *Codec) Decode(encoded []byte, p protocol.TxProtocol) (payload []byte, corrected bool, err error) {
	if err := p.Validate(); err != nil {
		return nil, false, err
	}
	h, corrected, err := c.DecodeHeader(encoded)
	if err != nil {
		return nil, false, err
	}
	n := EncodedLength(h.Length, p)
	if len(encoded) < n {
		return nil, false, fmt.Errorf("%w: %d bytes, payload of %d needs %d", ErrTruncated, len(encoded), h.Length, n)
	}

	payload = make([]byte, 0, h.Length)
	pos := HeaderSize
	for len(payload) < h.Length {
		k := min(p.BytesPerTx, h.Length-len(payload))
		data, fixed, err := c.decodeBlock(encoded[pos:pos+k+ECCBytesPerBlock], k)
		if err != nil {
			return nil, false, fmt.Errorf("block at %d: %w", pos, err)
		}
		payload = append(payload, data...)
		corrected = corrected || fixed
		pos += k + ECCBytesPerBlock
	}

	if Checksum(payload) != h.Checksum {
		return nil, false, ErrChecksum
	}
	return payload, corrected, nil
}
