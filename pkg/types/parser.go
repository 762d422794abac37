package types

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseField reads one serialized field of the given type from r.
func ParseField(r io.Reader, fieldType Type) (Field, error) {
	size := fieldType.Size()
	if size == 0 {
		return nil, fmt.Errorf("invalid field type size: %v", fieldType)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	switch fieldType {
	case IntType:
		return NewIntField(int64(binary.BigEndian.Uint64(buf))), nil // #nosec G115

	case FloatType:
		return NewFloat64Field(math.Float64frombits(binary.BigEndian.Uint64(buf))), nil

	case StringType:
		return parseStringField(buf)

	case BoolType:
		return NewBoolField(buf[0] != 0), nil

	default:
		return nil, fmt.Errorf("unsupported field type: %v", fieldType)
	}
}

// parseStringField decodes a length-prefixed, padded string.
func parseStringField(buf []byte) (*StringField, error) {
	length := binary.BigEndian.Uint32(buf[:4])
	if length > StringMaxSize {
		return nil, fmt.Errorf("string length %d exceeds maximum %d", length, StringMaxSize)
	}
	return NewStringField(string(buf[4 : 4+length])), nil
}

// ParseText parses the textual form of a value, as found in load files and
// expression literals.
func ParseText(text string, t Type) (Field, error) {
	switch t {
	case IntType:
		v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q: %w", text, err)
		}
		return NewIntField(v), nil

	case FloatType:
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid double %q: %w", text, err)
		}
		return NewFloat64Field(v), nil

	case BoolType:
		v, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q: %w", text, err)
		}
		return NewBoolField(v), nil

	case StringType:
		return NewStringField(text), nil

	default:
		return nil, fmt.Errorf("unsupported field type: %v", t)
	}
}
