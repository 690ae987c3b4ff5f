package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/sanonone/nodevec/pkg/embedding"
	"github.com/sanonone/nodevec/pkg/persistence"
	"github.com/sanonone/nodevec/pkg/sampling"
	"github.com/sanonone/nodevec/pkg/storage/mmap"
	"github.com/sanonone/nodevec/pkg/vocab"
)

const (
	// FileMagic is "NVEC" in little-endian.
	FileMagic   uint32 = 0x4345564E
	FileVersion uint32 = 1
	// FileExt is appended to the caller-supplied model name.
	FileExt = ".bin"

	headerPayloadSize = 40
	vocabRecordSize   = 24
)

var (
	// ErrVersion is returned for files written by an unknown format version.
	ErrVersion = errors.New("model: unsupported file version")
	// ErrMalformed is returned when a model file is structurally invalid.
	ErrMalformed = errors.New("model: malformed file")
)

type fileHeader struct {
	Magic        uint32
	Version      uint32
	Dim          uint32
	TableSize    uint32
	VocabSize    uint32
	K            uint32
	DownSampling float64
	Seed         int64
}

func (h fileHeader) encode() []byte {
	buf := make([]byte, headerPayloadSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Dim)
	binary.LittleEndian.PutUint32(buf[12:16], h.TableSize)
	binary.LittleEndian.PutUint32(buf[16:20], h.VocabSize)
	binary.LittleEndian.PutUint32(buf[20:24], h.K)
	binary.LittleEndian.PutUint64(buf[24:32], math.Float64bits(h.DownSampling))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.Seed))
	return buf
}

func decodeHeader(buf []byte) (fileHeader, error) {
	if len(buf) != headerPayloadSize {
		return fileHeader{}, fmt.Errorf("%w: header of %d bytes", ErrMalformed, len(buf))
	}
	h := fileHeader{
		Magic:        binary.LittleEndian.Uint32(buf[0:4]),
		Version:      binary.LittleEndian.Uint32(buf[4:8]),
		Dim:          binary.LittleEndian.Uint32(buf[8:12]),
		TableSize:    binary.LittleEndian.Uint32(buf[12:16]),
		VocabSize:    binary.LittleEndian.Uint32(buf[16:20]),
		K:            binary.LittleEndian.Uint32(buf[20:24]),
		DownSampling: math.Float64frombits(binary.LittleEndian.Uint64(buf[24:32])),
		Seed:         int64(binary.LittleEndian.Uint64(buf[32:40])),
	}
	if h.Magic != FileMagic {
		return h, fmt.Errorf("%w: bad magic %#x", ErrMalformed, h.Magic)
	}
	if h.Version != FileVersion {
		return h, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return h, nil
}

func encodeVocab(entries []vocab.Entry) []byte {
	buf := make([]byte, vocabRecordSize*len(entries))
	for i, e := range entries {
		off := i * vocabRecordSize
		binary.LittleEndian.PutUint64(buf[off:], e.ID)
		binary.LittleEndian.PutUint64(buf[off+8:], e.Count)
		binary.LittleEndian.PutUint64(buf[off+16:], math.Float64bits(e.SampleProbability))
	}
	return buf
}

func decodeVocab(buf []byte) ([]vocab.Entry, error) {
	if len(buf)%vocabRecordSize != 0 {
		return nil, fmt.Errorf("%w: vocab section of %d bytes", ErrMalformed, len(buf))
	}
	entries := make([]vocab.Entry, len(buf)/vocabRecordSize)
	for i := range entries {
		off := i * vocabRecordSize
		entries[i] = vocab.Entry{
			ID:                binary.LittleEndian.Uint64(buf[off:]),
			Index:             uint32(i),
			Count:             binary.LittleEndian.Uint64(buf[off+8:]),
			SampleProbability: math.Float64frombits(binary.LittleEndian.Uint64(buf[off+16:])),
		}
	}
	return entries, nil
}

// WriteTo serializes the model as a sequence of frames: header, vocabulary,
// negative table, node and context embeddings, then the community arrays.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	if err := m.Store.CheckLayout(); err != nil {
		return 0, err
	}
	cw := &countingWriter{w: w}
	fw := persistence.NewFrameWriter(cw)

	header := fileHeader{
		Magic:        FileMagic,
		Version:      FileVersion,
		Dim:          uint32(m.Size),
		TableSize:    uint32(len(m.Table)),
		VocabSize:    uint32(m.VocabSize()),
		K:            uint32(m.K),
		DownSampling: m.DownSampling,
		Seed:         m.Seed,
	}

	sections := []struct {
		section persistence.Section
		payload func() []byte
	}{
		{persistence.SectionHeader, header.encode},
		{persistence.SectionVocab, func() []byte { return encodeVocab(m.Vocab.Entries()) }},
		{persistence.SectionTable, func() []byte { return persistence.EncodeUint32s(m.Table) }},
		{persistence.SectionNodeEmbedding, func() []byte { return persistence.EncodeFloat32s(m.Store.NodeEmbedding) }},
		{persistence.SectionContextEmbedding, func() []byte { return persistence.EncodeFloat32s(m.Store.ContextEmbedding) }},
		{persistence.SectionCentroid, func() []byte { return persistence.EncodeFloat32s(m.Store.Centroid) }},
		{persistence.SectionCovariance, func() []byte { return persistence.EncodeFloat32s(m.Store.Covariance) }},
		{persistence.SectionInvCovariance, func() []byte { return persistence.EncodeFloat32s(m.Store.InvCovariance) }},
		{persistence.SectionPi, func() []byte { return persistence.EncodeFloat32s(m.Store.Pi) }},
	}
	for _, s := range sections {
		if err := fw.WriteFrame(s.section, s.payload()); err != nil {
			return cw.n, fmt.Errorf("write %s: %w", s.section, err)
		}
	}
	return cw.n, nil
}

// ReadFrom decodes a model written by WriteTo.
//
// When r reports its unread length (bytes.Reader, a mapped file), frame
// lengths are checked against it before any payload is allocated.
func ReadFrom(r io.Reader) (*Model, error) {
	section, payload, _, err := readFrame(r)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if section != persistence.SectionHeader {
		return nil, fmt.Errorf("%w: first section is %s", ErrMalformed, section)
	}
	h, err := decodeHeader(payload)
	if err != nil {
		return nil, err
	}

	if h.Dim == 0 || h.VocabSize == 0 || h.TableSize == 0 {
		return nil, fmt.Errorf("%w: dim=%d vocab=%d table=%d", ErrMalformed, h.Dim, h.VocabSize, h.TableSize)
	}

	v, d, k := int(h.VocabSize), int(h.Dim), int(h.K)
	store := &embedding.Store{VocabSize: v, Dim: d, Communities: k}
	var (
		entries []vocab.Entry
		table   sampling.Table
	)

	floatTargets := map[persistence.Section]*[]float32{
		persistence.SectionNodeEmbedding:    &store.NodeEmbedding,
		persistence.SectionContextEmbedding: &store.ContextEmbedding,
		persistence.SectionCentroid:         &store.Centroid,
		persistence.SectionCovariance:       &store.Covariance,
		persistence.SectionInvCovariance:    &store.InvCovariance,
		persistence.SectionPi:               &store.Pi,
	}
	seen := make(map[persistence.Section]bool)

	for {
		section, payload, _, err := readFrame(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read section: %w", err)
		}
		if seen[section] {
			return nil, fmt.Errorf("%w: duplicate %s section", ErrMalformed, section)
		}
		seen[section] = true

		switch section {
		case persistence.SectionVocab:
			if entries, err = decodeVocab(payload); err != nil {
				return nil, err
			}
		case persistence.SectionTable:
			values, err := persistence.DecodeUint32s(payload)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			table = values
		default:
			target, ok := floatTargets[section]
			if !ok {
				return nil, fmt.Errorf("%w: unexpected section %d", ErrMalformed, section)
			}
			values, err := persistence.DecodeFloat32s(payload)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			*target = values
		}
	}

	if len(entries) != v {
		return nil, fmt.Errorf("%w: %d vocab entries, header says %d", ErrMalformed, len(entries), v)
	}
	if len(table) != int(h.TableSize) {
		return nil, fmt.Errorf("%w: table has %d slots, header says %d", ErrMalformed, len(table), h.TableSize)
	}
	for i, idx := range table {
		if int(idx) >= v {
			return nil, fmt.Errorf("%w: table slot %d points to node %d", ErrMalformed, i, idx)
		}
	}
	if err := store.CheckLayout(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	voc, err := vocab.Restore(entries, h.DownSampling)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &Model{
		Vocab:        voc,
		Table:        table,
		Store:        store,
		Size:         d,
		DownSampling: h.DownSampling,
		Seed:         h.Seed,
		TableSize:    int(h.TableSize),
		K:            k,
	}, nil
}

// Path returns the file path of a model named name inside dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+FileExt)
}

// SaveFile writes the model to <dir>/<name>.bin atomically, creating dir if needed.
func (m *Model) SaveFile(dir, name string) error {
	af, err := persistence.CreateAtomic(Path(dir, name))
	if err != nil {
		return err
	}
	defer af.Close()

	if _, err := m.WriteTo(af); err != nil {
		return err
	}
	return af.Commit()
}

// LoadFile maps <dir>/<name>.bin read-only and decodes it.
func LoadFile(dir, name string, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := mmap.Open(Path(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	m, err := ReadFrom(bytes.NewReader(f.Bytes()))
	if err != nil {
		return nil, err
	}
	logger.Info("model loaded",
		"size", m.Size,
		"table_size", m.TableSize,
		"down_sampling", m.DownSampling,
		"communities", m.K,
	)
	return m, nil
}

func readFrame(r io.Reader) (persistence.Section, []byte, int, error) {
	limit := int64(persistence.MaxPayload)
	if l, ok := r.(interface{ Len() int }); ok {
		limit = int64(l.Len()) - persistence.HeaderSize
	}
	return persistence.ReadFrameMax(r, limit)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
