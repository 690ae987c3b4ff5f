package embedding

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/x448/float16"
)

// ExportFloat16 writes the node embeddings in half precision:
// [VocabSize uint32][Dim uint32] followed by VocabSize*Dim little-endian
// float16 values. The export is lossy and meant for downstream indexes.
func (s *Store) ExportFloat16(w io.Writer) error {
	bw := bufio.NewWriter(w)

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(s.VocabSize))
	binary.LittleEndian.PutUint32(header[4:8], uint32(s.Dim))
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("export header: %w", err)
	}

	var buf [2]byte
	for _, v := range s.NodeEmbedding {
		binary.LittleEndian.PutUint16(buf[:], float16.Fromfloat32(v).Bits())
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("export values: %w", err)
		}
	}
	return bw.Flush()
}

// ReadFloat16 decodes a stream written by ExportFloat16 back to float32.
func ReadFloat16(r io.Reader) (vocabSize, dim int, values []float32, err error) {
	var header [8]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return 0, 0, nil, fmt.Errorf("read header: %w", err)
	}
	vocabSize = int(binary.LittleEndian.Uint32(header[0:4]))
	dim = int(binary.LittleEndian.Uint32(header[4:8]))

	raw := make([]byte, vocabSize*dim*2)
	if _, err = io.ReadFull(r, raw); err != nil {
		return 0, 0, nil, fmt.Errorf("read values: %w", err)
	}
	values = make([]float32, vocabSize*dim)
	for i := range values {
		values[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
	}
	return vocabSize, dim, values, nil
}
