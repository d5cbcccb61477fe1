package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Action is the mutation opcode carried by a binary batch frame.
type Action uint32

const (
	ActionMove    Action = 3
	ActionConnect Action = 4
)

func (a Action) String() string {
	switch a {
	case ActionMove:
		return "move"
	case ActionConnect:
		return "connect"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(a))
	}
}

// Op is one decoded mutation within a Batch. Only the fields relevant to
// Action are meaningful.
type Op struct {
	Action     Action
	PieceIndex uint32  // MOVE
	X, Y       float32 // MOVE
	Piece1     uint32  // CONNECT
	Piece2     uint32  // CONNECT
}

// Batch is a decoded binary mutation frame, per spec §4.1.
type Batch struct {
	MessageID uint32
	Ops       []Op
}

// MinCoord and MaxCoord bound an accepted piece position, per spec §3
// ("positions[i] is a finite f32 with value in [0.0, 2.0]").
const (
	MinCoord = 0.0
	MaxCoord = 2.0
)

// ParseBatch decodes a binary mutation frame. The frame length must be a
// multiple of 4 bytes; violating that is reported as ErrOddLengthFrame.
func ParseBatch(data []byte) (*Batch, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrOddLengthFrame, len(data))
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: missing message id", ErrShortFrame)
	}

	r := &reader{buf: data}
	messageID := r.u32()

	var ops []Op
	for r.remaining() > 0 {
		if r.remaining() < 4 {
			return nil, fmt.Errorf("%w: truncated action code", ErrShortFrame)
		}
		action := Action(r.u32())

		switch action {
		case ActionMove:
			if r.remaining() < 12 {
				return nil, fmt.Errorf("%w: truncated MOVE payload", ErrShortFrame)
			}
			pieceIdx := r.u32()
			x := r.f32()
			y := r.f32()

			if err := validateCoord(x, y); err != nil {
				return nil, err
			}

			ops = append(ops, Op{Action: ActionMove, PieceIndex: pieceIdx, X: x, Y: y})

		case ActionConnect:
			if r.remaining() < 8 {
				return nil, fmt.Errorf("%w: truncated CONNECT payload", ErrShortFrame)
			}
			p1 := r.u32()
			p2 := r.u32()

			ops = append(ops, Op{Action: ActionConnect, Piece1: p1, Piece2: p2})

		default:
			return nil, fmt.Errorf("%w: %d", ErrUnknownAction, uint32(action))
		}
	}

	if r.err != nil {
		return nil, r.err
	}

	return &Batch{MessageID: messageID, Ops: ops}, nil
}

func validateCoord(x, y float32) error {
	for _, v := range []float32{x, y} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return ErrCoordOutOfBounds
		}
		if v < MinCoord || v > MaxCoord {
			return ErrCoordOutOfBounds
		}
	}
	return nil
}

// reader is a small cursor over a little-endian byte buffer, in the spirit
// of the teacher's MarshalBinary/UnmarshalBinary helpers in
// internal/protocol/message.go but reused across the multi-op batch frame
// instead of a single fixed message.
type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) u32() uint32 {
	if r.err != nil || r.remaining() < 4 {
		r.err = ErrShortFrame
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}
