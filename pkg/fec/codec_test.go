package fec

import (
	"bytes"
	"errors"
	"testing"

	"Aethertone/pkg/protocol"

	"golang.org/x/exp/rand"
)

func randomPayload(rng *rand.Rand, n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(rng.Intn(256))
	}
	return payload
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	codec := NewCodec()
	p := protocol.Default()

	for _, n := range []int{1, 2, 3, 4, 5, 17, 64, 139, MaxLength} {
		payload := randomPayload(rng, n)

		encoded, err := codec.Encode(payload, p)
		if err != nil {
			t.Fatalf("Encode(%d bytes): %v", n, err)
		}
		if len(encoded) != EncodedLength(n, p) {
			t.Errorf("expected %d encoded bytes, got %d", EncodedLength(n, p), len(encoded))
		}
		if len(encoded) > MaxDataSize {
			t.Errorf("encoded stream of %d bytes exceeds %d", len(encoded), MaxDataSize)
		}

		decoded, corrected, err := codec.Decode(encoded, p)
		if err != nil {
			t.Fatalf("Decode(%d bytes): %v", n, err)
		}
		if corrected {
			t.Errorf("clean stream of %d bytes reported as corrected", n)
		}
		if !bytes.Equal(decoded, payload) {
			t.Errorf("payload mismatch for %d bytes", n)
		}
	}
}

func TestEncodeRejectsInvalidLength(t *testing.T) {
	codec := NewCodec()
	p := protocol.Default()

	for _, n := range []int{0, MaxLength + 1, 256} {
		_, err := codec.Encode(make([]byte, n), p)
		if !errors.Is(err, ErrInvalidLength) {
			t.Errorf("Encode(%d bytes): expected ErrInvalidLength, got %v", n, err)
		}
	}

	// one byte blocks triple the stream and overflow the encoded limit
	narrow := protocol.TxProtocol{Name: "narrow", FreqStart: 10, FramesPerTx: 1, BytesPerTx: 1}
	if _, err := codec.Encode(make([]byte, MaxLength), narrow); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("expected ErrInvalidLength for oversized stream, got %v", err)
	}
}

func TestEncodeRejectsInvalidProtocol(t *testing.T) {
	codec := NewCodec()
	bad := protocol.TxProtocol{Name: "bad", FreqStart: 40, FramesPerTx: 0, BytesPerTx: 3}
	if _, err := codec.Encode([]byte("hi"), bad); !errors.Is(err, protocol.ErrInvalidProtocol) {
		t.Errorf("expected ErrInvalidProtocol, got %v", err)
	}
}

// blockOffsets returns the start of every body block.
func blockOffsets(n int, p protocol.TxProtocol) []int {
	var offsets []int
	pos := HeaderSize
	for done := 0; done < n; done += p.BytesPerTx {
		offsets = append(offsets, pos)
		pos += min(p.BytesPerTx, n-done) + ECCBytesPerBlock
	}
	return offsets
}

func TestCorrectsOneErrorPerBlock(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	codec := NewCodec()

	for _, p := range protocol.Protocols() {
		t.Run(p.Name, func(t *testing.T) {
			payload := randomPayload(rng, 40)
			encoded, err := codec.Encode(payload, p)
			if err != nil {
				t.Fatal(err)
			}

			// one corrupted byte in the header and in every body block
			encoded[rng.Intn(HeaderSize)] ^= 0xff
			for _, off := range blockOffsets(len(payload), p) {
				encoded[off+rng.Intn(p.BytesPerTx)] ^= byte(1 + rng.Intn(255))
			}

			decoded, corrected, err := codec.Decode(encoded, p)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !corrected {
				t.Error("expected corrected to be reported")
			}
			if !bytes.Equal(decoded, payload) {
				t.Error("payload mismatch after correction")
			}
		})
	}
}

func TestCorrectsParityError(t *testing.T) {
	codec := NewCodec()
	p := protocol.Default()
	payload := []byte("parity")

	encoded, err := codec.Encode(payload, p)
	if err != nil {
		t.Fatal(err)
	}
	// last byte of the first body block is parity
	encoded[HeaderSize+p.BytesPerTx+1] ^= 0x5a

	decoded, corrected, err := codec.Decode(encoded, p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !corrected || !bytes.Equal(decoded, payload) {
		t.Errorf("corrected=%v payload=%q", corrected, decoded)
	}
}

func TestTwoErrorsInBlockFail(t *testing.T) {
	codec := NewCodec()
	p := protocol.Default()
	payload := []byte("The quick brown fox jumps over the lazy dog")

	encoded, err := codec.Encode(payload, p)
	if err != nil {
		t.Fatal(err)
	}

	offsets := blockOffsets(len(payload), p)
	off := offsets[len(offsets)/2]
	encoded[off] ^= 0x21
	encoded[off+1] ^= 0x84

	decoded, _, err := codec.Decode(encoded, p)
	if err == nil {
		t.Fatalf("expected failure, decoded %q", decoded)
	}
	if !errors.Is(err, ErrUncorrectable) && !errors.Is(err, ErrChecksum) {
		t.Errorf("unexpected error: %v", err)
	}
	if decoded != nil {
		t.Error("partial payload surfaced on failure")
	}
}

func TestDecodeTruncated(t *testing.T) {
	codec := NewCodec()
	p := protocol.Default()

	encoded, err := codec.Encode([]byte("truncate me"), p)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := codec.Decode(encoded[:HeaderSize-1], p); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated for short header, got %v", err)
	}
	if _, _, err := codec.Decode(encoded[:len(encoded)-1], p); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated for short body, got %v", err)
	}
}

func TestDecodeHeader(t *testing.T) {
	codec := NewCodec()
	p := protocol.Default()
	payload := []byte("header")

	encoded, err := codec.Encode(payload, p)
	if err != nil {
		t.Fatal(err)
	}

	h, corrected, err := codec.DecodeHeader(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if corrected || h.Length != len(payload) || h.Checksum != Checksum(payload) {
		t.Errorf("unexpected header %+v corrected=%v", h, corrected)
	}
}

func TestDecodeHeaderRejectsZeroLength(t *testing.T) {
	codec := NewCodec()
	var block []byte
	block, err := codec.appendBlock(block, []byte{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := codec.DecodeHeader(block); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("expected ErrInvalidLength, got %v", err)
	}
}
