package types

import (
	"encoding/binary"
	"io"
	"pagedb/pkg/primitives"
	"strconv"
	"strings"
	"unicode/utf8"
)

// StringMaxSize defines the maximum size for string fields in bytes.
const (
	StringMaxSize = 128
)

// StringField represents a string attribute. On a page it always occupies
// 4 + StringMaxSize bytes so records have a fixed width per schema.
type StringField struct {
	Value string
}

// NewStringField creates a new StringField. Values longer than StringMaxSize
// bytes are truncated at the last rune boundary that fits.
func NewStringField(value string) *StringField {
	return &StringField{Value: truncate(value)}
}

func truncate(value string) string {
	if len(value) <= StringMaxSize {
		return value
	}
	n := StringMaxSize
	for n > 0 && !utf8.RuneStart(value[n]) {
		n--
	}
	return value[:n]
}

// Compare performs a lexicographic comparison with another StringField.
func (s *StringField) Compare(op primitives.Predicate, other Field) (bool, error) {
	if o, ok := other.(*StringField); ok {
		return op.Holds(strings.Compare(s.Value, o.Value)), nil
	}
	c, err := CompareFields(s, other)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

// Serialize writes the string field to the provided writer in binary format.
// The serialization format consists of:
// 1. 4 bytes for the actual string length (big-endian uint32)
// 2. The string bytes
// 3. Padding bytes to reach StringMaxSize
func (s *StringField) Serialize(w io.Writer) error {
	value := truncate(s.Value)
	length := len(value)

	lengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBytes, uint32(length)) // #nosec G115

	if _, err := w.Write(lengthBytes); err != nil {
		return err
	}

	if _, err := w.Write([]byte(value)); err != nil {
		return err
	}

	padding := make([]byte, StringMaxSize-length)
	_, err := w.Write(padding)
	return err
}

func (s *StringField) Type() Type {
	return StringType
}

func (s *StringField) String() string {
	return s.Value
}

func (s *StringField) Equals(other Field) bool {
	o, ok := other.(*StringField)
	if !ok {
		return false
	}
	return s.Value == o.Value
}

func (s *StringField) Hash() primitives.HashCode {
	return hashBytes([]byte(s.Value))
}

// Length returns the total serialized size (4 bytes + StringMaxSize)
func (s *StringField) Length() uint32 {
	return 4 + StringMaxSize
}

// ToBool is true for the literal "true".
func (s *StringField) ToBool() bool {
	return s.Value == "true"
}

// ToInt parses the value as a decimal integer, or returns 0.
func (s *StringField) ToInt() int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s.Value), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// ToFloat parses the value as a float, or returns 0.
func (s *StringField) ToFloat() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s.Value), 64)
	if err != nil {
		return 0
	}
	return v
}
