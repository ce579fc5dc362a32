package datamap

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/itohio/nnrt/pkg/core/nnerr"
)

// entry is the table-of-contents record for one externally stored
// tensor: its key, layout, and byte range within the sidecar's data
// section.
type entry struct {
	key        string
	scalarType uint32
	sizes      []uint64
	dimOrder   []uint64
	offset     uint64
	length     uint64
}

// Protobuf field numbers for entry, encoded by hand via protowire
// rather than generated message types (the schema is small enough not
// to need a .proto compile step), and for the top-level TOC wrapping
// repeated entries.
const (
	entryFieldKey        = 1
	entryFieldScalarType = 2
	entryFieldSizes      = 3
	entryFieldDimOrder   = 4
	entryFieldOffset     = 5
	entryFieldLength     = 6

	tocFieldEntry = 1
)

func encodeEntry(e entry) []byte {
	var b []byte
	b = protowire.AppendTag(b, entryFieldKey, protowire.BytesType)
	b = protowire.AppendString(b, e.key)
	b = protowire.AppendTag(b, entryFieldScalarType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.scalarType))
	b = appendPackedVarints(b, entryFieldSizes, e.sizes)
	b = appendPackedVarints(b, entryFieldDimOrder, e.dimOrder)
	b = protowire.AppendTag(b, entryFieldOffset, protowire.VarintType)
	b = protowire.AppendVarint(b, e.offset)
	b = protowire.AppendTag(b, entryFieldLength, protowire.VarintType)
	b = protowire.AppendVarint(b, e.length)
	return b
}

func appendPackedVarints(b []byte, field protowire.Number, vals []uint64) []byte {
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, v)
	}
	b = protowire.AppendTag(b, field, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	return b
}

func decodeEntry(b []byte) (entry, error) {
	var e entry
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return entry{}, nnerr.New(nnerr.InvalidExternalData, "malformed TOC entry tag")
		}
		b = b[n:]
		switch num {
		case entryFieldKey:
			s, nn := protowire.ConsumeString(b)
			if nn < 0 {
				return entry{}, nnerr.New(nnerr.InvalidExternalData, "malformed TOC key")
			}
			e.key = s
			b = b[nn:]
		case entryFieldScalarType:
			v, nn := protowire.ConsumeVarint(b)
			if nn < 0 {
				return entry{}, nnerr.New(nnerr.InvalidExternalData, "malformed TOC scalar type")
			}
			e.scalarType = uint32(v)
			b = b[nn:]
		case entryFieldSizes:
			vals, nn, err := consumePackedVarints(b)
			if err != nil {
				return entry{}, err
			}
			e.sizes = vals
			b = b[nn:]
		case entryFieldDimOrder:
			vals, nn, err := consumePackedVarints(b)
			if err != nil {
				return entry{}, err
			}
			e.dimOrder = vals
			b = b[nn:]
		case entryFieldOffset:
			v, nn := protowire.ConsumeVarint(b)
			if nn < 0 {
				return entry{}, nnerr.New(nnerr.InvalidExternalData, "malformed TOC offset")
			}
			e.offset = v
			b = b[nn:]
		case entryFieldLength:
			v, nn := protowire.ConsumeVarint(b)
			if nn < 0 {
				return entry{}, nnerr.New(nnerr.InvalidExternalData, "malformed TOC length")
			}
			e.length = v
			b = b[nn:]
		default:
			nn := protowire.ConsumeFieldValue(num, typ, b)
			if nn < 0 {
				return entry{}, nnerr.New(nnerr.InvalidExternalData, "malformed TOC field")
			}
			b = b[nn:]
		}
	}
	return e, nil
}

func consumePackedVarints(b []byte) ([]uint64, int, error) {
	packed, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, nnerr.New(nnerr.InvalidExternalData, "malformed packed varint field")
	}
	var vals []uint64
	for len(packed) > 0 {
		v, vn := protowire.ConsumeVarint(packed)
		if vn < 0 {
			return nil, 0, nnerr.New(nnerr.InvalidExternalData, "malformed packed varint element")
		}
		vals = append(vals, v)
		packed = packed[vn:]
	}
	return vals, n, nil
}

// encodeTOC serializes every entry as a repeated embedded-message
// field of one top-level TOC message.
func encodeTOC(entries []entry) []byte {
	var b []byte
	for _, e := range entries {
		enc := encodeEntry(e)
		b = protowire.AppendTag(b, tocFieldEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, enc)
	}
	return b
}

// decodeTOC parses a TOC message into its entries.
func decodeTOC(b []byte) ([]entry, error) {
	var entries []entry
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, nnerr.New(nnerr.InvalidExternalData, "malformed TOC tag")
		}
		b = b[n:]
		if num != tocFieldEntry || typ != protowire.BytesType {
			nn := protowire.ConsumeFieldValue(num, typ, b)
			if nn < 0 {
				return nil, nnerr.New(nnerr.InvalidExternalData, "malformed TOC field")
			}
			b = b[nn:]
			continue
		}
		msg, nn := protowire.ConsumeBytes(b)
		if nn < 0 {
			return nil, nnerr.New(nnerr.InvalidExternalData, "malformed TOC entry")
		}
		e, err := decodeEntry(msg)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		b = b[nn:]
	}
	return entries, nil
}
