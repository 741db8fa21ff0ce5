package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// AppendNodesRLE appends packed node words to dst as varint pairs
// (word, run_len) repeated. Runs of unused slots collapse to a single pair.
func AppendNodesRLE(dst []byte, words []uint32) []byte {
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(words) {
		w := words[i]
		run := 1
		for j := i + 1; j < len(words) && words[j] == w; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(w))
		dst = append(dst, tmp[:n]...)
		n = binary.PutUvarint(tmp[:], uint64(run))
		dst = append(dst, tmp[:n]...)

		i += run
	}
	return dst
}

// EncodeNodesRLE encodes node words into base64(varint pairs).
func EncodeNodesRLE(words []uint32) string {
	return base64.StdEncoding.EncodeToString(AppendNodesRLE(nil, words))
}

// DecodeNodesRLEBytes expands raw varint pairs. Decoding stops with an error
// once more than limit words would be produced; limit <= 0 disables the check.
func DecodeNodesRLEBytes(raw []byte, limit int) ([]uint32, error) {
	var out []uint32
	r := bytes.NewReader(raw)
	for r.Len() > 0 {
		off := len(raw) - r.Len()
		w, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("bad varint at %d", off)
		}
		off = len(raw) - r.Len()
		run, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("bad varint at %d", off)
		}
		if w > 0xFFFFFFFF {
			return nil, fmt.Errorf("node word too large: %d", w)
		}
		if run == 0 {
			return nil, fmt.Errorf("empty run at %d", off)
		}
		if limit > 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("decoded length exceeds %d words", limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint32(w))
		}
	}
	return out, nil
}

func DecodeNodesRLE(b64 string, limit int) ([]uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	return DecodeNodesRLEBytes(raw, limit)
}
