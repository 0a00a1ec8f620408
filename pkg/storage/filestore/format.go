package filestore

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Magic bytes to identify our file format
	MagicBytes = "DOCQ"
	// Current version
	FormatVersion = 2
	// Snapshot file extension
	SnapshotExtension = ".docq"
	// Write-ahead log file extension
	WALExtension = ".wal"
)

// FlagCompressed marks a snapshot body written as an LZ4 block.
const FlagCompressed uint8 = 1 << 0

// FileHeader prefixes every snapshot file.
type FileHeader struct {
	Magic    [4]byte // "DOCQ"
	Version  uint8
	Flags    uint8
	Reserved [2]byte
	RawSize  uint32 // body length before compression
}

// WriteHeader writes the file header to the given writer
func WriteHeader(w io.Writer, flags uint8, rawSize int) error {
	header := FileHeader{
		Version: FormatVersion,
		Flags:   flags,
		RawSize: uint32(rawSize),
	}
	copy(header.Magic[:], MagicBytes)
	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}
	return &header, nil
}

// Snapshot is the checkpointed state of one collection. LSN is the last
// write-ahead log entry folded into it.
type Snapshot struct {
	Collection string                   `msgpack:"collection"`
	LSN        uint64                   `msgpack:"lsn"`
	Documents  []map[string]interface{} `msgpack:"documents"`
	Indexes    []domain.IndexSpec       `msgpack:"indexes,omitempty"`
}

// EncodeSnapshot writes a header followed by the MessagePack-encoded
// snapshot, LZ4-compressed when that makes it smaller.
func EncodeSnapshot(w io.Writer, snap *Snapshot) error {
	raw, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	body := raw
	var flags uint8
	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(raw, compressed, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	if n > 0 && n < len(raw) {
		body = compressed[:n]
		flags |= FlagCompressed
	}

	if err := WriteHeader(w, flags, len(raw)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write snapshot body: %w", err)
	}
	return nil
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	header, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot body: %w", err)
	}

	raw := body
	if header.Flags&FlagCompressed != 0 {
		raw = make([]byte, header.RawSize)
		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress data: %w", err)
		}
		raw = raw[:n]
	}
	if len(raw) != int(header.RawSize) {
		return nil, fmt.Errorf("snapshot body is %d bytes, header says %d", len(raw), header.RawSize)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return &snap, nil
}
