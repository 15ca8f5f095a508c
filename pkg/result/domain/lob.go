package domain

import "github.com/google/uuid"

// Lob is a large-object value inside a row. A freshly produced Lob is
// owned by the transaction or session that created it; before a row is
// stored in a result the value must be copied into result-owned storage so
// the result stays valid after the producing transaction is gone.
type Lob struct {
	ID          uuid.UUID
	Data        []byte
	ResultOwned bool
}

// NewLob creates a transaction-owned large object value.
func NewLob(data []byte) *Lob {
	return &Lob{ID: uuid.New(), Data: data}
}

// RestoreLob rebuilds a Lob from its serialized parts.
func RestoreLob(id uuid.UUID, data []byte, resultOwned bool) *Lob {
	return &Lob{ID: id, Data: data, ResultOwned: resultOwned}
}

// CopyToResult returns a result-owned copy of the value. When the value is
// already result-owned the receiver itself is returned, so callers can
// detect whether a copy happened by comparing pointers.
func (l *Lob) CopyToResult() *Lob {
	if l.ResultOwned {
		return l
	}
	data := make([]byte, len(l.Data))
	copy(data, l.Data)
	return &Lob{ID: uuid.New(), Data: data, ResultOwned: true}
}
