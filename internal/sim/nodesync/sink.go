package nodesync

import (
	"errors"
	"fmt"

	"voxeltrace.ai/internal/sim/svo"
)

// ErrBufferFull is returned when a write extends past the sink's capacity. The
// part that fits is still written.
var ErrBufferFull = errors.New("node buffer full")

// Sink receives packed node bytes at a node offset.
type Sink interface {
	WriteNodes(offset uint32, data []byte) error
}

// BufferSink is an in-memory node buffer with a fixed capacity in nodes.
type BufferSink struct {
	buf      []byte
	maxNodes uint32
}

func NewBufferSink(maxNodes uint32) *BufferSink {
	return &BufferSink{maxNodes: maxNodes}
}

func (s *BufferSink) WriteNodes(offset uint32, data []byte) error {
	if len(data)%NodeBytes != 0 {
		return fmt.Errorf("unaligned node write of %d bytes", len(data))
	}
	if offset >= s.maxNodes {
		if len(data) == 0 {
			return nil
		}
		return ErrBufferFull
	}
	var err error
	count := uint32(len(data) / NodeBytes)
	if offset+count > s.maxNodes {
		count = s.maxNodes - offset
		data = data[:count*NodeBytes]
		err = ErrBufferFull
	}
	end := int(offset+count) * NodeBytes
	if end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	copy(s.buf[int(offset)*NodeBytes:], data)
	return err
}

// Len is the number of nodes written so far, including gaps.
func (s *BufferSink) Len() int { return len(s.buf) / NodeBytes }

func (s *BufferSink) Nodes() ([]svo.Node, error) { return UnpackNodes(s.buf) }

// Upload writes the nodes named by b from w into sink. A resync writes the
// whole arena at offset 0. It returns the number of nodes written.
func Upload(sink Sink, w *svo.World, b Batch) (int, error) {
	nodes := w.Nodes()
	if b.Resync {
		return len(nodes), sink.WriteNodes(0, AppendNodes(nil, nodes))
	}
	written := 0
	var buf []byte
	for _, s := range b.Seqs {
		if int(s.Start) >= len(nodes) {
			continue
		}
		end := min(int(s.End()), len(nodes))
		buf = AppendNodes(buf[:0], nodes[s.Start:end])
		if err := sink.WriteNodes(s.Start, buf); err != nil {
			return written, fmt.Errorf("range %d+%d: %w", s.Start, s.Count, err)
		}
		written += end - int(s.Start)
	}
	return written, nil
}
