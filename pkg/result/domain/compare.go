package domain

import (
	"bytes"
	"time"

	"golang.org/x/text/collate"
)

// Type ranks for cross-type comparison. Values of different kinds have a
// stable relative order so that Compare is a total order over every
// supported value, not just within one type.
const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
	rankBytes
	rankTime
	rankLob
)

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return rankNumber
	case string:
		return rankString
	case []byte:
		return rankBytes
	case time.Time:
		return rankTime
	case *Lob:
		return rankLob
	default:
		return rankLob + 1
	}
}

// NormalizeValue maps the accepted integer and float kinds onto the
// canonical int64/float64 representation. Other values pass through.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// Compare defines a total order over supported values: NULL sorts first,
// numerics are cross-compared (int64 against float64), strings use byte
// order, bytes are lexicographic and times chronological.
func Compare(a, b any) int {
	return CompareCollate(nil, a, b)
}

// CompareCollate is Compare with an optional collator applied to string
// values.
func CompareCollate(c *collate.Collator, a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case rankNull:
		return 0
	case rankBool:
		av, bv := a.(bool), b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case rankNumber:
		return compareNumbers(NormalizeValue(a), NormalizeValue(b))
	case rankString:
		as, bs := a.(string), b.(string)
		if c != nil {
			return c.CompareString(as, bs)
		}
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	case rankBytes:
		return bytes.Compare(a.([]byte), b.([]byte))
	case rankTime:
		at, bt := a.(time.Time), b.(time.Time)
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		}
		return 0
	case rankLob:
		al, aok := a.(*Lob)
		bl, bok := b.(*Lob)
		if aok && bok {
			return bytes.Compare(al.Data, bl.Data)
		}
		return 0
	}
	return 0
}

func compareNumbers(a, b any) int {
	ai, aIsInt := a.(int64)
	bi, bIsInt := b.(int64)
	if aIsInt && bIsInt {
		return cmpInt64(ai, bi)
	}
	return cmpFloat(toFloat(a), toFloat(b))
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
