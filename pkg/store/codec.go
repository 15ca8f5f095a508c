package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"

	"github.com/kasuganosora/resultset/pkg/result/domain"
)

// Value tags for the exact row codec.
const (
	codecNull   byte = 0x00
	codecFalse  byte = 0x01
	codecTrue   byte = 0x02
	codecInt64  byte = 0x03
	codecFloat  byte = 0x04
	codecString byte = 0x05
	codecBytes  byte = 0x06
	codecTime   byte = 0x07
	codecLob    byte = 0x08
)

// RowCodec serializes rows exactly: every supported value type round-trips
// to the same Go type and value. A JSON codec is not usable here because
// decoding through `any` collapses int64 into float64 and loses
// []byte/time.Time, which would break spill transparency.
type RowCodec struct{}

// NewRowCodec creates a new RowCodec
func NewRowCodec() *RowCodec {
	return &RowCodec{}
}

// Encode serializes a row to bytes.
func (c *RowCodec) Encode(row domain.Row) ([]byte, error) {
	buf := make([]byte, 0, 16+8*len(row))
	buf = binary.AppendUvarint(buf, uint64(len(row)))
	for _, v := range row {
		var err error
		buf, err = c.appendValue(buf, domain.NormalizeValue(v))
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (c *RowCodec) appendValue(buf []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return append(buf, codecNull), nil
	case bool:
		if x {
			return append(buf, codecTrue), nil
		}
		return append(buf, codecFalse), nil
	case int64:
		buf = append(buf, codecInt64)
		return binary.AppendVarint(buf, x), nil
	case float64:
		buf = append(buf, codecFloat)
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(x)), nil
	case string:
		buf = append(buf, codecString)
		buf = binary.AppendUvarint(buf, uint64(len(x)))
		return append(buf, x...), nil
	case []byte:
		buf = append(buf, codecBytes)
		buf = binary.AppendUvarint(buf, uint64(len(x)))
		return append(buf, x...), nil
	case time.Time:
		blob, err := x.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode time value: %w", err)
		}
		buf = append(buf, codecTime)
		buf = binary.AppendUvarint(buf, uint64(len(blob)))
		return append(buf, blob...), nil
	case *domain.Lob:
		buf = append(buf, codecLob)
		buf = append(buf, x.ID[:]...)
		if x.ResultOwned {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = binary.AppendUvarint(buf, uint64(len(x.Data)))
		return append(buf, x.Data...), nil
	default:
		return nil, domain.NewErrUnsupportedValue(v)
	}
}

// Decode deserializes bytes to a row.
func (c *RowCodec) Decode(data []byte) (domain.Row, error) {
	n, off := binary.Uvarint(data)
	if off <= 0 {
		return nil, fmt.Errorf("decode row: bad length header")
	}
	row := make(domain.Row, n)
	rest := data[off:]
	for i := range row {
		var err error
		row[i], rest, err = c.readValue(rest)
		if err != nil {
			return nil, fmt.Errorf("decode row value %d: %w", i, err)
		}
	}
	return row, nil
}

func (c *RowCodec) readValue(data []byte) (any, []byte, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("truncated value")
	}
	tag, data := data[0], data[1:]
	switch tag {
	case codecNull:
		return nil, data, nil
	case codecFalse:
		return false, data, nil
	case codecTrue:
		return true, data, nil
	case codecInt64:
		x, off := binary.Varint(data)
		if off <= 0 {
			return nil, nil, fmt.Errorf("bad int64")
		}
		return x, data[off:], nil
	case codecFloat:
		if len(data) < 8 {
			return nil, nil, fmt.Errorf("bad float64")
		}
		return math.Float64frombits(binary.BigEndian.Uint64(data)), data[8:], nil
	case codecString:
		b, rest, err := c.readBlob(data)
		if err != nil {
			return nil, nil, err
		}
		return string(b), rest, nil
	case codecBytes:
		b, rest, err := c.readBlob(data)
		if err != nil {
			return nil, nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, rest, nil
	case codecTime:
		b, rest, err := c.readBlob(data)
		if err != nil {
			return nil, nil, err
		}
		var t time.Time
		if err := t.UnmarshalBinary(b); err != nil {
			return nil, nil, fmt.Errorf("decode time value: %w", err)
		}
		return t, rest, nil
	case codecLob:
		if len(data) < 17 {
			return nil, nil, fmt.Errorf("bad lob header")
		}
		var id uuid.UUID
		copy(id[:], data[:16])
		owned := data[16] == 1
		b, rest, err := c.readBlob(data[17:])
		if err != nil {
			return nil, nil, err
		}
		payload := make([]byte, len(b))
		copy(payload, b)
		return domain.RestoreLob(id, payload, owned), rest, nil
	default:
		return nil, nil, fmt.Errorf("unknown value tag 0x%02x", tag)
	}
}

func (c *RowCodec) readBlob(data []byte) ([]byte, []byte, error) {
	n, off := binary.Uvarint(data)
	if off <= 0 || uint64(len(data)-off) < n {
		return nil, nil, fmt.Errorf("bad blob length")
	}
	return data[off : off+int(n)], data[off+int(n):], nil
}

// DistinctKey encodes the visible-column prefix of a row into a canonical
// byte key. Two rows share a key exactly when their visible prefixes are
// equal, so it doubles as the dedup key for distinct stores and the
// in-memory distinct index.
func (c *RowCodec) DistinctKey(row domain.Row, visibleColumnCount int) ([]byte, error) {
	return c.Encode(domain.VisiblePrefix(row, visibleColumnCount))
}

// Sort key encoding. The invariant: for any two rows a and b,
// bytes.Compare(EncodeSortKey(a), EncodeSortKey(b)) has the same sign as
// sort.Compare(a, b). Both store backends build their physical ordering
// from these keys, which is what makes delegated ordering trustworthy.
//
// Per sort column the segment is one marker byte (null placement), then
// for non-null values a type tag and an order-preserving payload. Variable
// length payloads are escaped and terminated so segments are prefix-free.
// Descending columns invert the value bytes after the marker.
const (
	sortMarkerNullFirst byte = 0x00
	sortMarkerValue     byte = 0x01
	sortMarkerNullLast  byte = 0xff

	// Tags mirror the cross-type order of domain.Compare.
	sortTagBool   byte = 0x10
	sortTagNumber byte = 0x20
	sortTagString byte = 0x30
	sortTagBytes  byte = 0x40
	sortTagTime   byte = 0x50
	sortTagLob    byte = 0x60
)

// KeyEncoder builds memcomparable sort keys for rows.
type KeyEncoder struct {
	sort *domain.SortOrder
}

// NewKeyEncoder creates a key encoder for the given sort order (nil means
// no ordering: every row encodes to an empty key and physical order falls
// back to the insertion sequence).
func NewKeyEncoder(sort *domain.SortOrder) *KeyEncoder {
	return &KeyEncoder{sort: sort}
}

// EncodeSortKey appends the sort key of row to buf.
func (e *KeyEncoder) EncodeSortKey(buf []byte, row domain.Row) ([]byte, error) {
	if e.sort == nil {
		return buf, nil
	}
	for _, col := range e.sort.Columns {
		v := domain.NormalizeValue(row[col.Index])
		if v == nil {
			if col.NullsLast {
				buf = append(buf, sortMarkerNullLast)
			} else {
				buf = append(buf, sortMarkerNullFirst)
			}
			continue
		}
		buf = append(buf, sortMarkerValue)
		seg, err := e.appendOrdered(nil, v)
		if err != nil {
			return nil, err
		}
		if col.Descending {
			for i := range seg {
				seg[i] = ^seg[i]
			}
		}
		buf = append(buf, seg...)
	}
	return buf, nil
}

func (e *KeyEncoder) appendOrdered(buf []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return append(buf, sortTagBool, 1), nil
		}
		return append(buf, sortTagBool, 0), nil
	case int64:
		buf = append(buf, sortTagNumber)
		buf = appendFloatOrdered(buf, float64(x))
		// Exact tiebreak: float64 loses precision past 2^53.
		return binary.BigEndian.AppendUint64(buf, uint64(x)^(1<<63)), nil
	case float64:
		buf = append(buf, sortTagNumber)
		buf = appendFloatOrdered(buf, x)
		return binary.BigEndian.AppendUint64(buf, 1<<63), nil
	case string:
		buf = append(buf, sortTagString)
		if e.sort.Collator != nil {
			var keyBuf collate.Buffer
			return appendEscaped(buf, e.sort.Collator.KeyFromString(&keyBuf, x)), nil
		}
		return appendEscaped(buf, []byte(x)), nil
	case []byte:
		buf = append(buf, sortTagBytes)
		return appendEscaped(buf, x), nil
	case time.Time:
		buf = append(buf, sortTagTime)
		return binary.BigEndian.AppendUint64(buf, uint64(x.UnixNano())^(1<<63)), nil
	case *domain.Lob:
		buf = append(buf, sortTagLob)
		return appendEscaped(buf, x.Data), nil
	default:
		return nil, domain.NewErrUnsupportedValue(v)
	}
}

func appendFloatOrdered(buf []byte, f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return binary.BigEndian.AppendUint64(buf, bits)
}

// appendEscaped writes an order-preserving, prefix-free encoding of b:
// 0x00 becomes 0x00 0xff and the segment ends with 0x00 0x01, which sorts
// below every escaped byte pair.
func appendEscaped(buf, b []byte) []byte {
	for _, c := range b {
		if c == 0x00 {
			buf = append(buf, 0x00, 0xff)
		} else {
			buf = append(buf, c)
		}
	}
	return append(buf, 0x00, 0x01)
}
