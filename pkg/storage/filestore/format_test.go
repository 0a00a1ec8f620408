package filestore

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHeader_WriteAndRead(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHeader(&buf, FlagCompressed, 1234)
	require.NoError(t, err)

	// 4 bytes magic + version + flags + 2 reserved + 4 bytes raw size
	assert.Len(t, buf.Bytes(), 12)

	header, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, MagicBytes, string(header.Magic[:]))
	assert.EqualValues(t, FormatVersion, header.Version)
	assert.Equal(t, FlagCompressed, header.Flags)
	assert.EqualValues(t, 1234, header.RawSize)
}

func TestFileHeader_InvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	err := binary.Write(&buf, binary.LittleEndian, FileHeader{
		Magic:   [4]byte{'I', 'N', 'V', 'L'},
		Version: FormatVersion,
	})
	require.NoError(t, err)

	_, err = ReadHeader(&buf)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file format")
}

func TestFileHeader_InvalidVersion(t *testing.T) {
	var buf bytes.Buffer
	err := binary.Write(&buf, binary.LittleEndian, FileHeader{
		Magic:   [4]byte{'D', 'O', 'C', 'Q'},
		Version: 99,
	})
	require.NoError(t, err)

	_, err = ReadHeader(&buf)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file version")
}

func TestFileHeader_ShortBuffer(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader([]byte("DOC")))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read header")
}

func TestSnapshot_RoundTrip(t *testing.T) {
	snap := &Snapshot{
		Collection: "books",
		LSN:        42,
		Documents: []map[string]interface{}{
			{"_id": "1", "title": "Dune", "published_year": 1965.0, "tags": []interface{}{"sf", "classic"}},
			{"_id": "2", "title": "Emma", "meta": map[string]interface{}{"pages": 474.0}, "out_of_print": nil},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, snap))

	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, "books", decoded.Collection)
	assert.EqualValues(t, 42, decoded.LSN)
	require.Len(t, decoded.Documents, 2)
	assert.Equal(t, "1", decoded.Documents[0]["_id"])
	assert.Equal(t, 1965.0, decoded.Documents[0]["published_year"])
	assert.Equal(t, []interface{}{"sf", "classic"}, decoded.Documents[0]["tags"])
	assert.Equal(t, map[string]interface{}{"pages": 474.0}, decoded.Documents[1]["meta"])
	assert.Nil(t, decoded.Documents[1]["out_of_print"])
}

func TestSnapshot_CompressesRepetitiveData(t *testing.T) {
	docs := make([]map[string]interface{}, 200)
	for i := range docs {
		docs[i] = map[string]interface{}{"_id": strings.Repeat("x", 8), "body": strings.Repeat("lorem ipsum ", 20)}
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, &Snapshot{Collection: "c", Documents: docs}))

	header, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, FlagCompressed, header.Flags&FlagCompressed)
	assert.Less(t, buf.Len(), int(header.RawSize))

	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)
	assert.Len(t, decoded.Documents, 200)
}

func TestSnapshot_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, &Snapshot{
		Collection: "c",
		Documents:  []map[string]interface{}{{"_id": "1", "n": 1.0}},
	}))
	data := buf.Bytes()

	_, err := DecodeSnapshot(bytes.NewReader(data[:len(data)-3]))
	assert.Error(t, err)
}

func TestParseDurability(t *testing.T) {
	d, err := ParseDurability("")
	require.NoError(t, err)
	assert.Equal(t, DurabilityOS, d)

	d, err = ParseDurability("full")
	require.NoError(t, err)
	assert.Equal(t, DurabilityFull, d)

	_, err = ParseDurability("paranoid")
	assert.Error(t, err)
}
