// Package datamap implements the named external data map: a
// key → (TensorLayout, bytes) table loaded from a sidecar file,
// used to resolve attribute_tensor entries whose storage lives outside
// the main program.
package datamap

import (
	"encoding/binary"
	"sync"

	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/storage"
)

// TensorLayout describes the shape and element type of an externally
// stored tensor, without the bytes themselves.
type TensorLayout struct {
	ScalarType dtype.ScalarType
	Sizes      []int
	DimOrder   []int
}

// NamedDataMap resolves keys to externally stored tensor bytes. Data
// is fetched lazily through the loader on Get; only the
// table-of-contents is parsed eagerly at construction.
type NamedDataMap struct {
	mu      sync.Mutex
	loader  storage.Loader
	dataOff int64
	byKey   map[string]entry
}

// tocHeaderBytes is the length of the fixed prefix preceding the
// protobuf-encoded table of contents: a little-endian uint32 giving
// the TOC's byte length.
const tocHeaderBytes = 4

// Load parses the sidecar's table of contents from loader and returns
// a NamedDataMap ready to serve Get calls. The data section begins
// immediately after the TOC; entry offsets are relative to it.
func Load(loader storage.Loader) (*NamedDataMap, error) {
	header, err := loader.Load(0, tocHeaderBytes)
	if err != nil {
		return nil, err
	}
	tocLen := int64(binary.LittleEndian.Uint32(header.Bytes()))

	tocBuf, err := loader.Load(tocHeaderBytes, tocLen)
	if err != nil {
		return nil, err
	}
	entries, err := decodeTOC(tocBuf.Bytes())
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]entry, len(entries))
	for _, e := range entries {
		byKey[e.key] = e
	}

	return &NamedDataMap{
		loader:  loader,
		dataOff: tocHeaderBytes + tocLen,
		byKey:   byKey,
	}, nil
}

// Get resolves key to its layout and raw bytes. Returns
// InvalidExternalData if key is absent.
func (m *NamedDataMap) Get(key string) (TensorLayout, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byKey[key]
	if !ok {
		return TensorLayout{}, nil, nnerr.New(nnerr.InvalidExternalData, "no external data for key "+key)
	}
	buf, err := m.loader.Load(m.dataOff+int64(e.offset), int64(e.length))
	if err != nil {
		return TensorLayout{}, nil, nnerr.New(nnerr.InvalidExternalData, "reading external data: "+err.Error())
	}
	layout := TensorLayout{
		ScalarType: dtype.ScalarType(e.scalarType),
		Sizes:      toIntSlice(e.sizes),
		DimOrder:   toIntSlice(e.dimOrder),
	}
	return layout, buf.Bytes(), nil
}

// Has reports whether key is present, without fetching its bytes.
func (m *NamedDataMap) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byKey[key]
	return ok
}

// Keys returns every key present in the map, in unspecified order.
func (m *NamedDataMap) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.byKey))
	for k := range m.byKey {
		keys = append(keys, k)
	}
	return keys
}

func toIntSlice(u []uint64) []int {
	if u == nil {
		return nil
	}
	out := make([]int, len(u))
	for i, v := range u {
		out[i] = int(v)
	}
	return out
}
