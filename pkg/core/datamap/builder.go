package datamap

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/mr-tron/base58"
)

// Builder assembles a sidecar's bytes in memory, for tests.
type Builder struct {
	entries []entry
	blobs   [][]byte
}

// NewBuilder returns an empty sidecar builder.
func NewBuilder() *Builder { return &Builder{} }

// Put appends one tensor under key with the given layout and raw
// bytes, returning the Builder for chaining.
func (b *Builder) Put(key string, layout TensorLayout, data []byte) *Builder {
	offset := uint64(0)
	for _, blob := range b.blobs {
		offset += uint64(len(blob))
	}
	b.entries = append(b.entries, entry{
		key:        key,
		scalarType: uint32(layout.ScalarType),
		sizes:      toUint64Slice(layout.Sizes),
		dimOrder:   toUint64Slice(layout.DimOrder),
		offset:     offset,
		length:     uint64(len(data)),
	})
	b.blobs = append(b.blobs, data)
	return b
}

// Build serializes the table of contents and every blob into one
// sidecar byte slice: a 4-byte little-endian TOC length, the TOC
// itself, then the data section.
func (b *Builder) Build() []byte {
	toc := encodeTOC(b.entries)

	header := make([]byte, tocHeaderBytes)
	binary.LittleEndian.PutUint32(header, uint32(len(toc)))

	out := make([]byte, 0, len(header)+len(toc)+totalLen(b.blobs))
	out = append(out, header...)
	out = append(out, toc...)
	for _, blob := range b.blobs {
		out = append(out, blob...)
	}
	return out
}

func totalLen(blobs [][]byte) int {
	n := 0
	for _, b := range blobs {
		n += len(b)
	}
	return n
}

func toUint64Slice(in []int) []uint64 {
	if in == nil {
		return nil
	}
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}

// ContentKey derives a stable, base58-encoded content-addressed key
// from a tensor's raw bytes, for exporters that key external data by
// content hash rather than by declared attribute name.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return base58.Encode(sum[:])
}
