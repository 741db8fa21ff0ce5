package nodesync

import (
	"encoding/binary"
	"fmt"

	"voxeltrace.ai/internal/sim/svo"
)

// NodeBytes is the size of one packed node on the wire.
const NodeBytes = svo.NodeSize

// AppendNodes appends nodes to dst as little-endian 32-bit words.
func AppendNodes(dst []byte, nodes []svo.Node) []byte {
	for _, n := range nodes {
		dst = binary.LittleEndian.AppendUint32(dst, n.Pack())
	}
	return dst
}

func PackWords(nodes []svo.Node) []uint32 {
	out := make([]uint32, len(nodes))
	for i, n := range nodes {
		out[i] = n.Pack()
	}
	return out
}

// UnpackNodes decodes little-endian words back into nodes.
func UnpackNodes(b []byte) ([]svo.Node, error) {
	if len(b)%NodeBytes != 0 {
		return nil, fmt.Errorf("node payload length %d is not a multiple of %d", len(b), NodeBytes)
	}
	out := make([]svo.Node, len(b)/NodeBytes)
	for i := range out {
		n, err := svo.Unpack(binary.LittleEndian.Uint32(b[i*NodeBytes:]))
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// AppendWords appends already packed node words to dst.
func AppendWords(dst []byte, words []uint32) []byte {
	for _, w := range words {
		dst = binary.LittleEndian.AppendUint32(dst, w)
	}
	return dst
}
