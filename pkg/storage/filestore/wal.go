package filestore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/adfharrison1/go-docquery/pkg/domain"
)

// Durability controls how hard a write-ahead log append tries to reach disk.
type Durability string

const (
	// DurabilityOS leaves flushing to the OS page cache.
	DurabilityOS Durability = "os"
	// DurabilityFull fsyncs after every append.
	DurabilityFull Durability = "full"
)

// ParseDurability accepts "os" or "full". The empty string means os.
func ParseDurability(s string) (Durability, error) {
	switch Durability(s) {
	case "", DurabilityOS:
		return DurabilityOS, nil
	case DurabilityFull:
		return DurabilityFull, nil
	default:
		return "", fmt.Errorf("unknown durability level: %q", s)
	}
}

// Operation is the kind of change a log entry records.
type Operation string

const (
	OpPut    Operation = "put"
	OpRemove Operation = "remove"
	// OpIndexes replaces the collection's index definitions.
	OpIndexes Operation = "indexes"
)

// WALEntry is one line of a collection's write-ahead log.
type WALEntry struct {
	LSN      uint64                 `json:"lsn"`
	Op       Operation              `json:"op"`
	ID       string                 `json:"id"`
	Document map[string]interface{} `json:"doc,omitempty"`
	Indexes  []domain.IndexSpec     `json:"indexes,omitempty"`
	Checksum uint32                 `json:"checksum"`
}

func (e WALEntry) checksum() (uint32, error) {
	e.Checksum = 0
	data, err := json.Marshal(e)
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(data), nil
}

// wal appends entries to one file.
type wal struct {
	path       string
	file       *os.File
	durability Durability
	entries    int
	sync       func() error
}

func openWAL(path string, durability Durability) (*wal, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}
	return &wal{path: path, file: file, durability: durability, sync: file.Sync}, nil
}

// Append writes entry as one JSON line. A failed append is cut back off the
// file, so an entry that returned an error is never replayed.
func (w *wal) Append(entry WALEntry) error {
	sum, err := entry.checksum()
	if err != nil {
		return fmt.Errorf("failed to marshal WAL entry: %w", err)
	}
	entry.Checksum = sum
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal WAL entry: %w", err)
	}
	info, err := w.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat WAL file: %w", err)
	}
	offset := info.Size()

	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return w.undo(offset, fmt.Errorf("failed to write to WAL file: %w", err))
	}
	if w.durability == DurabilityFull {
		if err := w.sync(); err != nil {
			return w.undo(offset, fmt.Errorf("failed to sync WAL file: %w", err))
		}
	}
	w.entries++
	return nil
}

// undo truncates the file back to offset after a failed append.
func (w *wal) undo(offset int64, cause error) error {
	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("%w (truncating the partial entry also failed: %v)", cause, err)
	}
	return cause
}

// Truncate discards every entry after a checkpoint.
func (w *wal) Truncate() error {
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate WAL file: %w", err)
	}
	w.entries = 0
	if w.durability == DurabilityFull {
		return w.sync()
	}
	return nil
}

func (w *wal) Close() error {
	return w.file.Close()
}

// ReadWAL reads entries from a log file. A missing file has no entries.
// Reading stops at the first torn or corrupt line, which is reported as
// skipped; everything before it is returned.
func ReadWAL(path string) (entries []WALEntry, skipped bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open WAL file: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry WALEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return entries, true, nil
		}
		sum, err := entry.checksum()
		if err != nil || sum != entry.Checksum {
			return entries, true, nil
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("error reading WAL file: %w", err)
	}
	return entries, false, nil
}
