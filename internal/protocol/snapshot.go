package protocol

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
)

// Opcode identifies the kind of binary snapshot frame sent to the client.
type Opcode uint8

const (
	OpcodePuzzle Opcode = 1 // full snapshot, reply to join
	OpcodePoll   Opcode = 2 // mutable-portion snapshot, reply to poll
)

// EncodePuzzleSnapshot encodes the opcode-1 reply to join, per spec §4.1:
//
//	offset 0:  u8  opcode = 1
//	offset 1:  3 bytes zero padding
//	offset 4:  u32 seed
//	offset 8:  u8  width
//	offset 9:  u8  height
//	offset 10: url bytes, NUL-terminated
//	           zero-padding so total length ≡ 0 mod 8
//	           f32[2·W·H] positions
//	           i16[W·H]    connectivity
func EncodePuzzleSnapshot(
	width, height int,
	url string,
	seed uint32,
	positions []float32,
	connectivity []int16,
) []byte {
	headerLen := 10 + len(url) + 1 // up to and including the NUL
	padded := (headerLen + 7) / 8 * 8

	buf := make([]byte, padded+4*len(positions)+2*len(connectivity))

	buf[0] = byte(OpcodePuzzle)
	// buf[1:4] left zero.
	binary.LittleEndian.PutUint32(buf[4:8], seed)
	buf[8] = byte(width)
	buf[9] = byte(height)
	copy(buf[10:], url)
	buf[10+len(url)] = 0 // NUL terminator; remaining pad bytes already zero.

	off := padded
	for _, p := range positions {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(p))
		off += 4
	}
	for _, c := range connectivity {
		binary.LittleEndian.PutUint16(buf[off:], uint16(c))
		off += 2
	}

	return buf
}

// PuzzleSnapshot is the decoded form of an opcode-1 frame.
type PuzzleSnapshot struct {
	Width        int
	Height       int
	URL          string
	Seed         uint32
	Positions    []float32
	Connectivity []int16
}

// DecodePuzzleSnapshot parses an opcode-1 frame, the inverse of
// EncodePuzzleSnapshot. Used by round-trip tests and by any client-facing
// code sharing this module.
func DecodePuzzleSnapshot(buf []byte) (*PuzzleSnapshot, error) {
	if len(buf) < 10 {
		return nil, fmt.Errorf("%w: puzzle snapshot", ErrShortSnapshot)
	}
	if Opcode(buf[0]) != OpcodePuzzle {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadOpcode, buf[0], OpcodePuzzle)
	}

	seed := binary.LittleEndian.Uint32(buf[4:8])
	width := int(buf[8])
	height := int(buf[9])

	nulAt := -1
	for i := 10; i < len(buf); i++ {
		if buf[i] == 0 {
			nulAt = i
			break
		}
	}
	if nulAt < 0 {
		return nil, ErrMissingNulInURL
	}
	url := string(buf[10:nulAt])

	headerLen := nulAt + 1
	padded := (headerLen + 7) / 8 * 8

	n := width * height
	wantLen := padded + 4*2*n + 2*n
	if len(buf) < wantLen {
		return nil, fmt.Errorf("%w: puzzle snapshot body", ErrShortSnapshot)
	}

	positions := make([]float32, 2*n)
	off := padded
	for i := range positions {
		positions[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}

	connectivity := make([]int16, n)
	for i := range connectivity {
		connectivity[i] = int16(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
	}

	return &PuzzleSnapshot{
		Width:        width,
		Height:       height,
		URL:          url,
		Seed:         seed,
		Positions:    positions,
		Connectivity: connectivity,
	}, nil
}

// EncodePollSnapshot encodes the opcode-2 reply to poll, per spec §4.1:
//
//	offset 0: u8 opcode = 2
//	offset 1: 7 bytes zero padding
//	offset 8: f32[2·W·H] positions
//	          i16[W·H]   connectivity
func EncodePollSnapshot(positions []float32, connectivity []int16) []byte {
	buf := make([]byte, 8+4*len(positions)+2*len(connectivity))
	buf[0] = byte(OpcodePoll)

	off := 8
	for _, p := range positions {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(p))
		off += 4
	}
	for _, c := range connectivity {
		binary.LittleEndian.PutUint16(buf[off:], uint16(c))
		off += 2
	}

	return buf
}

// DecodePollSnapshot parses an opcode-2 frame given the expected piece
// count (the poll frame itself carries no width/height).
func DecodePollSnapshot(buf []byte, pieceCount int) ([]float32, []int16, error) {
	want := 8 + 4*2*pieceCount + 2*pieceCount
	if len(buf) < want {
		return nil, nil, fmt.Errorf("%w: poll snapshot", ErrShortSnapshot)
	}
	if Opcode(buf[0]) != OpcodePoll {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrBadOpcode, buf[0], OpcodePoll)
	}

	positions := make([]float32, 2*pieceCount)
	off := 8
	for i := range positions {
		positions[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}

	connectivity := make([]int16, pieceCount)
	for i := range connectivity {
		connectivity[i] = int16(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
	}

	return positions, connectivity, nil
}

// SnapshotHash returns a 64-bit hash over positions and connectivity,
// little-endian byte order, for poll suppression per spec §4.1. FNV-1a is
// a non-cryptographic collision-resistant hash, matching the spec's
// requirement without pulling in a cryptographic primitive for a
// same-process, non-adversarial use.
func SnapshotHash(positions []float32, connectivity []int16) uint64 {
	h := fnv.New64a()

	var tmp [4]byte
	for _, p := range positions {
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(p))
		h.Write(tmp[:])
	}

	var tmp2 [2]byte
	for _, c := range connectivity {
		binary.LittleEndian.PutUint16(tmp2[:], uint16(c))
		h.Write(tmp2[:])
	}

	return h.Sum64()
}
