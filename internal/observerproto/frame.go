package observerproto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

type FrameKind uint8

const (
	// FrameResync replaces the client's whole node buffer.
	FrameResync FrameKind = 1
	// FrameDelta overwrites Count nodes starting at Offset.
	FrameDelta FrameKind = 2
)

func (k FrameKind) String() string {
	switch k {
	case FrameResync:
		return "RESYNC"
	case FrameDelta:
		return "DELTA"
	default:
		return fmt.Sprintf("FrameKind(%d)", uint8(k))
	}
}

// FrameHeaderSize is the fixed size of the binary frame header:
//
//	kind u8 | tick u64 | offset u32 | count u32 | last_used u32 | min 3*i32
//
// All fields little-endian, followed by count packed node words.
const FrameHeaderSize = 1 + 8 + 4 + 4 + 4 + 12

var ErrShortFrame = errors.New("observerproto: short frame")

type Frame struct {
	Kind     FrameKind
	Tick     uint64
	Offset   uint32
	LastUsed uint32
	Min      [3]int32
	// Nodes holds little-endian packed node words.
	Nodes []byte
}

// Count is the number of nodes carried by the frame.
func (f Frame) Count() uint32 { return uint32(len(f.Nodes) / 4) }

func (f Frame) AppendBinary(dst []byte) []byte {
	dst = append(dst, byte(f.Kind))
	dst = binary.LittleEndian.AppendUint64(dst, f.Tick)
	dst = binary.LittleEndian.AppendUint32(dst, f.Offset)
	dst = binary.LittleEndian.AppendUint32(dst, f.Count())
	dst = binary.LittleEndian.AppendUint32(dst, f.LastUsed)
	for _, m := range f.Min {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(m))
	}
	return append(dst, f.Nodes...)
}

func (f Frame) MarshalBinary() ([]byte, error) {
	if len(f.Nodes)%4 != 0 {
		return nil, fmt.Errorf("observerproto: node payload length %d not a multiple of 4", len(f.Nodes))
	}
	return f.AppendBinary(make([]byte, 0, FrameHeaderSize+len(f.Nodes))), nil
}

// UnmarshalBinary decodes a frame. Nodes aliases b.
func (f *Frame) UnmarshalBinary(b []byte) error {
	if len(b) < FrameHeaderSize {
		return ErrShortFrame
	}
	f.Kind = FrameKind(b[0])
	if f.Kind != FrameResync && f.Kind != FrameDelta {
		return fmt.Errorf("observerproto: unknown frame kind %d", b[0])
	}
	f.Tick = binary.LittleEndian.Uint64(b[1:])
	f.Offset = binary.LittleEndian.Uint32(b[9:])
	count := binary.LittleEndian.Uint32(b[13:])
	f.LastUsed = binary.LittleEndian.Uint32(b[17:])
	for i := range f.Min {
		f.Min[i] = int32(binary.LittleEndian.Uint32(b[21+4*i:]))
	}
	payload := b[FrameHeaderSize:]
	if uint64(len(payload)) != uint64(count)*4 {
		return fmt.Errorf("observerproto: frame declares %d nodes, carries %d bytes", count, len(payload))
	}
	if f.Kind == FrameResync && f.Offset != 0 {
		return fmt.Errorf("observerproto: resync frame at offset %d", f.Offset)
	}
	f.Nodes = payload
	return nil
}
