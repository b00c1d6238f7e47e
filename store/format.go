// Copyright 2026 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ianlewis/go-bibindex/corpus"
	"github.com/ianlewis/go-bibindex/extract"
	"github.com/ianlewis/go-bibindex/internal/index"
)

const (
	magic = "BIBIDX\n"

	// version is the current file format version.
	version = 1
)

var errFormat = errors.New("invalid format")

// Compression is the payload compression of an index file.
type Compression byte

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = iota

	// CompressionZstd compresses the payload with zstd.
	CompressionZstd

	// CompressionLZ4 compresses the payload with the LZ4 frame format.
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", byte(c))
	}
}

// ParseCompression parses a compression name as returned by
// [Compression.String].
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// Snapshot is the persisted form of a built index.
type Snapshot struct {
	// Identity is the fingerprint of the corpus the index was built from.
	Identity corpus.Identity

	// CorpusLen is the length of the corpus bytes. It differs from
	// Identity.Size for compressed corpora.
	CorpusLen uint64

	// Folding is the name of the key folder used at build time.
	Folding string

	// Stats are the statistics of the scan that built the index.
	Stats extract.Stats

	// Arena holds keys that do not appear verbatim in the corpus.
	Arena []byte

	// Authors and Titles are the sorted index entries.
	Authors []index.Entry
	Titles  []index.Entry
}

// Text returns the key address space of the snapshot over the corpus bytes.
func (s *Snapshot) Text(buf []byte) *index.Text {
	return index.NewText(buf, s.Arena)
}

func encode(w io.Writer, snap *Snapshot, c Compression) error {
	raw := encodePayload(snap)

	var stored []byte
	switch c {
	case CompressionNone:
		stored = raw
	case CompressionZstd:
		var b bytes.Buffer
		zw, err := zstd.NewWriter(&b)
		if err != nil {
			return fmt.Errorf("creating zstd writer: %w", err)
		}
		if _, err := zw.Write(raw); err != nil {
			_ = zw.Close()
			return fmt.Errorf("compressing payload: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compressing payload: %w", err)
		}
		stored = b.Bytes()
	case CompressionLZ4:
		var b bytes.Buffer
		zw := lz4.NewWriter(&b)
		if _, err := zw.Write(raw); err != nil {
			return fmt.Errorf("compressing payload: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compressing payload: %w", err)
		}
		stored = b.Bytes()
	default:
		return fmt.Errorf("unknown compression %v", c)
	}

	hdr := []byte{byte(c)}
	hdr = binary.AppendUvarint(hdr, uint64(len(raw)))
	hdr = appendString(hdr, snap.Identity.Path)
	hdr = binary.AppendUvarint(hdr, uint64(snap.Identity.Size))
	hdr = binary.AppendUvarint(hdr, uint64(snap.Identity.ModTime.UnixNano()))
	hdr = binary.AppendUvarint(hdr, snap.CorpusLen)

	crc := crc32.NewIEEE()
	_, _ = crc.Write(hdr)
	_, _ = crc.Write(stored)

	out := make([]byte, 0, len(magic)+1+len(hdr)+binary.MaxVarintLen64+4)
	out = append(out, magic...)
	out = append(out, version)
	out = append(out, hdr...)
	out = binary.AppendUvarint(out, uint64(len(stored)))
	out = binary.LittleEndian.AppendUint32(out, crc.Sum32())

	if _, err := w.Write(out); err != nil {
		return err
	}
	if _, err := w.Write(stored); err != nil {
		return err
	}
	return nil
}

// header is the decoded fixed part of an index file.
type header struct {
	compression Compression
	rawLen      uint64
	identity    corpus.Identity
	corpusLen   uint64
	payload     []byte
}

// decodeHeader validates the magic, version and checksum of data and returns
// the header along with the stored payload.
func decodeHeader(data []byte) (*header, error) {
	if !bytes.HasPrefix(data, []byte(magic)) {
		return nil, fmt.Errorf("%w: bad magic", errFormat)
	}
	data = data[len(magic):]
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: missing version", errFormat)
	}
	if v := data[0]; v != version {
		return nil, fmt.Errorf("%w: unsupported version %d", errFormat, v)
	}
	data = data[1:]

	d := decoder{b: data}
	h := &header{
		compression: Compression(d.byte()),
		rawLen:      d.uvarint(),
	}
	h.identity.Path = d.string()
	h.identity.Size = int64(d.uvarint())
	h.identity.ModTime = time.Unix(0, int64(d.uvarint()))
	h.corpusLen = d.uvarint()
	if d.err != nil {
		return nil, d.err
	}
	hdr := data[:len(data)-len(d.b)]

	n := d.uvarint()
	crc := d.uint32()
	if d.err != nil {
		return nil, d.err
	}
	if uint64(len(d.b)) != n {
		return nil, fmt.Errorf("%w: payload length %d, want %d", errFormat, len(d.b), n)
	}

	sum := crc32.NewIEEE()
	_, _ = sum.Write(hdr)
	_, _ = sum.Write(d.b)
	if got := sum.Sum32(); got != crc {
		return nil, fmt.Errorf("%w: checksum %08x, want %08x", errFormat, got, crc)
	}

	h.payload = d.b
	return h, nil
}

// decompress returns the raw payload.
func (h *header) decompress() ([]byte, error) {
	var r io.Reader
	switch h.compression {
	case CompressionNone:
		if uint64(len(h.payload)) != h.rawLen {
			return nil, fmt.Errorf("%w: payload length %d, want %d", errFormat, len(h.payload), h.rawLen)
		}
		return h.payload, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(bytes.NewReader(h.payload))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errFormat, err)
		}
		defer zr.Close()
		r = zr
	case CompressionLZ4:
		r = lz4.NewReader(bytes.NewReader(h.payload))
	default:
		return nil, fmt.Errorf("%w: unknown compression %v", errFormat, h.compression)
	}

	// Read one byte past the recorded length to detect oversized payloads.
	raw, err := io.ReadAll(io.LimitReader(r, int64(h.rawLen)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing payload: %w", errFormat, err)
	}
	if uint64(len(raw)) != h.rawLen {
		return nil, fmt.Errorf("%w: payload length %d, want %d", errFormat, len(raw), h.rawLen)
	}
	return raw, nil
}

func encodePayload(snap *Snapshot) []byte {
	var b []byte
	b = appendString(b, snap.Folding)

	st := &snap.Stats
	b = appendString(b, st.Version)
	b = appendString(b, st.Encoding)
	b = appendString(b, st.DTDName)
	b = appendString(b, st.DTDSystemID)
	b = appendString(b, st.Root)
	b = binary.AppendUvarint(b, uint64(len(st.Counts)))
	for _, name := range slices.Sorted(maps.Keys(st.Counts)) {
		b = appendString(b, name)
		b = binary.AppendUvarint(b, uint64(st.Counts[name]))
	}
	b = binary.AppendUvarint(b, uint64(st.Records))
	b = binary.AppendUvarint(b, uint64(st.Errors))
	b = binary.AppendUvarint(b, uint64(st.Offset))

	b = binary.AppendUvarint(b, uint64(len(snap.Arena)))
	b = append(b, snap.Arena...)
	b = appendEntries(b, snap.Authors)
	b = appendEntries(b, snap.Titles)
	return b
}

func decodePayload(raw []byte, h *header) (*Snapshot, error) {
	d := decoder{b: raw}
	snap := &Snapshot{
		Identity:  h.identity,
		CorpusLen: h.corpusLen,
		Folding:   d.string(),
	}

	st := &snap.Stats
	st.Version = d.string()
	st.Encoding = d.string()
	st.DTDName = d.string()
	st.DTDSystemID = d.string()
	st.Root = d.string()
	n := d.count(2)
	st.Counts = make(map[string]int, n)
	for range n {
		name := d.string()
		st.Counts[name] = int(d.uvarint())
	}
	st.Records = int(d.uvarint())
	st.Errors = int(d.uvarint())
	st.Offset = int64(d.uvarint())

	snap.Arena = d.bytes()
	snap.Authors = d.entries()
	snap.Titles = d.entries()
	if d.err != nil {
		return nil, d.err
	}
	if len(d.b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", errFormat, len(d.b))
	}

	arenaLen := uint64(len(snap.Arena))
	for _, es := range [][]index.Entry{snap.Authors, snap.Titles} {
		for _, e := range es {
			if !index.ValidSpan(snap.CorpusLen, arenaLen, e.Key) || e.Pos >= snap.CorpusLen {
				return nil, fmt.Errorf("%w: entry out of range", errFormat)
			}
		}
	}
	return snap, nil
}

func appendString(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

func appendEntries(b []byte, entries []index.Entry) []byte {
	b = binary.AppendUvarint(b, uint64(len(entries)))
	for _, e := range entries {
		b = binary.AppendUvarint(b, e.Key.Start)
		b = binary.AppendUvarint(b, e.Key.Len())
		b = binary.AppendUvarint(b, e.Pos)
	}
	return b
}

// decoder reads varint encoded values. The first error is sticky.
type decoder struct {
	b   []byte
	err error
}

func (d *decoder) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: truncated %s", errFormat, what)
	}
	d.b = nil
}

func (d *decoder) byte() byte {
	if d.err != nil || len(d.b) < 1 {
		d.fail("byte")
		return 0
	}
	c := d.b[0]
	d.b = d.b[1:]
	return c
}

func (d *decoder) uint32() uint32 {
	if d.err != nil || len(d.b) < 4 {
		d.fail("checksum")
		return 0
	}
	v := binary.LittleEndian.Uint32(d.b)
	d.b = d.b[4:]
	return v
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.b)
	if n <= 0 {
		d.fail("varint")
		return 0
	}
	d.b = d.b[n:]
	return v
}

// count reads a length prefix for elements that take at least size bytes
// each and rejects lengths the remaining input cannot hold.
func (d *decoder) count(size int) int {
	n := d.uvarint()
	if d.err != nil {
		return 0
	}
	if n > uint64(len(d.b)/size) {
		d.fail("length")
		return 0
	}
	return int(n)
}

func (d *decoder) bytes() []byte {
	n := d.count(1)
	if d.err != nil {
		return nil
	}
	v := d.b[:n:n]
	d.b = d.b[n:]
	return v
}

func (d *decoder) string() string {
	return string(d.bytes())
}

func (d *decoder) entries() []index.Entry {
	n := d.count(3)
	if d.err != nil || n == 0 {
		return nil
	}
	entries := make([]index.Entry, n)
	for i := range entries {
		start := d.uvarint()
		length := d.uvarint()
		entries[i] = index.Entry{
			Key: index.Span{Start: start, End: start + length},
			Pos: d.uvarint(),
		}
	}
	if d.err != nil {
		return nil
	}
	return entries
}
