package persistence

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"math"
)

// Constants for the model file framing.
const (
	// MagicByte marks the start of every frame.
	MagicByte = 0xA5

	// HeaderSize is the fixed frame metadata:
	// 1 byte (Magic) + 1 byte (Section) + 4 bytes (Length) + 4 bytes (CRC32) = 10 bytes.
	HeaderSize = 10
)

// Section identifies the content of a frame.
type Section byte

const (
	SectionHeader Section = iota + 1
	SectionVocab
	SectionTable
	SectionNodeEmbedding
	SectionContextEmbedding
	SectionCentroid
	SectionCovariance
	SectionInvCovariance
	SectionPi
)

func (s Section) String() string {
	switch s {
	case SectionHeader:
		return "header"
	case SectionVocab:
		return "vocab"
	case SectionTable:
		return "table"
	case SectionNodeEmbedding:
		return "node_embedding"
	case SectionContextEmbedding:
		return "context_embedding"
	case SectionCentroid:
		return "centroid"
	case SectionCovariance:
		return "covariance"
	case SectionInvCovariance:
		return "inv_covariance"
	case SectionPi:
		return "pi"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidMagic indicates the stream lost synchronization or is not a model file.
	ErrInvalidMagic = errors.New("invalid magic byte")
	// ErrChecksumMismatch indicates data corruption within the frame payload.
	ErrChecksumMismatch = errors.New("crc32 checksum mismatch")
	// ErrIncompleteFrame indicates the file ended abruptly.
	ErrIncompleteFrame = errors.New("incomplete frame")
	// ErrFrameTooLarge indicates a length field beyond the caller's bound.
	ErrFrameTooLarge = errors.New("frame payload exceeds limit")
)

// MaxPayload is the largest length a frame header can declare.
const MaxPayload = math.MaxUint32

// FrameWriter writes binary frames to an io.Writer.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter creates a writer that wraps an underlying io.Writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame encodes the payload into a binary frame and writes it.
// Frame Format: [Magic(1)][Section(1)][Length(4)][CRC(4)][Payload(N)]
func (fw *FrameWriter) WriteFrame(section Section, payload []byte) error {
	header := make([]byte, HeaderSize)
	header[0] = MagicByte
	header[1] = byte(section)
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[6:10], crc32.ChecksumIEEE(payload))

	// fw.w should be buffered so header and payload become one syscall.
	if _, err := fw.w.Write(header); err != nil {
		return err
	}
	if _, err := fw.w.Write(payload); err != nil {
		return err
	}
	return nil
}

// ReadFrame reads the next frame, validating the magic byte and the checksum.
// Returns the section, the payload, the total bytes read and an error.
func ReadFrame(r io.Reader) (Section, []byte, int, error) {
	return ReadFrameMax(r, MaxPayload)
}

// ReadFrameMax is ReadFrame with an upper bound on the declared payload
// length, checked before the payload buffer is allocated.
func ReadFrameMax(r io.Reader, maxPayload int64) (Section, []byte, int, error) {
	header := make([]byte, HeaderSize)

	if _, err := io.ReadFull(r, header); err != nil {
		// EOF exactly at a frame boundary is a clean end of stream.
		if err == io.EOF {
			return 0, nil, 0, io.EOF
		}
		return 0, nil, 0, ErrIncompleteFrame
	}

	if header[0] != MagicByte {
		return 0, nil, HeaderSize, ErrInvalidMagic
	}

	section := Section(header[1])
	length := binary.LittleEndian.Uint32(header[2:6])
	expectedCRC := binary.LittleEndian.Uint32(header[6:10])

	if int64(length) > maxPayload {
		return section, nil, HeaderSize, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return section, nil, HeaderSize, ErrIncompleteFrame
	}

	if crc32.ChecksumIEEE(payload) != expectedCRC {
		return section, nil, HeaderSize + int(length), ErrChecksumMismatch
	}

	return section, payload, HeaderSize + int(length), nil
}
