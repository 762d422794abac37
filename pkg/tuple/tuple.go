package tuple

import (
	"bytes"
	"fmt"
	"pagedb/pkg/types"
	"strings"
)

// Tuple is a mutable record bound to a schema.
//
// A tuple remembers the bytes it was last decoded from or encoded to. After
// fields are modified the tuple must be marked changed with MarkChanged before
// ToBinary, otherwise ToBinary keeps returning the remembered bytes.
type Tuple struct {
	TupleDesc *TupleDescription // Schema of this tuple
	fields    []types.Field     // The actual field values
	RecordID  *Location         // Where this tuple is stored (can be nil)

	encoded []byte
	changed bool
}

// NewTuple creates a new tuple with the given schema
func NewTuple(td *TupleDescription) *Tuple {
	return &Tuple{
		TupleDesc: td,
		fields:    make([]types.Field, td.NumFields()),
	}
}

// SetField stores field at position i. The field type must match the schema.
func (t *Tuple) SetField(i int, field types.Field) error {
	if i < 0 || i >= len(t.fields) {
		return fmt.Errorf("field index %d out of bounds [0, %d)", i, len(t.fields))
	}

	expectedType, _ := t.TupleDesc.TypeAtIndex(i)
	if field.Type() != expectedType {
		return fmt.Errorf("field type mismatch: expected %v, got %v",
			expectedType, field.Type())
	}

	t.fields[i] = field
	return nil
}

// GetField returns the value of the ith field
func (t *Tuple) GetField(i int) (types.Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, fmt.Errorf("field index %d out of bounds [0, %d)", i, len(t.fields))
	}
	return t.fields[i], nil
}

// MarkChanged invalidates the remembered serialized form so the next
// ToBinary encodes the current field values.
func (t *Tuple) MarkChanged() {
	t.changed = true
}

// Changed reports whether the tuple was marked changed since it was last
// decoded or encoded.
func (t *Tuple) Changed() bool {
	return t.changed
}

// FromBinary decodes data into the tuple's fields and remembers data as the
// current serialized form.
func (t *Tuple) FromBinary(data []byte) error {
	if uint32(len(data)) != t.TupleDesc.GetSize() {
		return fmt.Errorf("record size mismatch: expected %d bytes, got %d", t.TupleDesc.GetSize(), len(data))
	}

	r := bytes.NewReader(data)
	for i, fieldType := range t.TupleDesc.Types {
		field, err := types.ParseField(r, fieldType)
		if err != nil {
			return fmt.Errorf("failed to parse field %d: %w", i, err)
		}
		t.fields[i] = field
	}

	t.encoded = append(t.encoded[:0], data...)
	t.changed = false
	return nil
}

// ToBinary returns the serialized form of the tuple. A tuple that has never
// been encoded, or that was marked changed, is encoded from its fields;
// otherwise the remembered bytes are returned as they are.
func (t *Tuple) ToBinary() ([]byte, error) {
	if t.encoded != nil && !t.changed {
		return t.encoded, nil
	}

	var buf bytes.Buffer
	buf.Grow(int(t.TupleDesc.GetSize()))
	for i, field := range t.fields {
		if field == nil {
			return nil, fmt.Errorf("field %d is not set", i)
		}
		if err := field.Serialize(&buf); err != nil {
			return nil, fmt.Errorf("failed to serialize field %d: %w", i, err)
		}
	}

	t.encoded = buf.Bytes()
	t.changed = false
	return t.encoded, nil
}

// String returns a string representation of this tuple
// Format: field1|field2|...|fieldN|
func (t *Tuple) String() string {
	var b strings.Builder
	for _, field := range t.fields {
		if field != nil {
			b.WriteString(field.String())
		} else {
			b.WriteString("null")
		}
		b.WriteByte('|')
	}
	return b.String()
}

// Values returns the field values in schema order.
func (t *Tuple) Values() []types.Field {
	out := make([]types.Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// Clone creates a copy of this tuple with the same field values.
// Fields are immutable values, so sharing them is safe.
func (t *Tuple) Clone() *Tuple {
	newTup := NewTuple(t.TupleDesc)
	copy(newTup.fields, t.fields)
	if t.RecordID != nil {
		loc := *t.RecordID
		newTup.RecordID = &loc
	}
	return newTup
}
