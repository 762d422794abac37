package types

import (
	"bytes"
	"math"
	"pagedb/pkg/primitives"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestField_SerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		field Field
	}{
		{"int positive", NewIntField(42)},
		{"int negative", NewIntField(-7)},
		{"int max", NewIntField(math.MaxInt64)},
		{"double", NewFloat64Field(3.25)},
		{"double negative", NewFloat64Field(-1e10)},
		{"string", NewStringField("hello")},
		{"string empty", NewStringField("")},
		{"bool true", NewBoolField(true)},
		{"bool false", NewBoolField(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.field.Serialize(&buf); err != nil {
				t.Fatalf("serialize: %v", err)
			}
			if uint32(buf.Len()) != tt.field.Length() {
				t.Errorf("expected %d bytes, got %d", tt.field.Length(), buf.Len())
			}
			if tt.field.Type().Size() != tt.field.Length() {
				t.Errorf("type size %d differs from field length %d", tt.field.Type().Size(), tt.field.Length())
			}

			parsed, err := ParseField(&buf, tt.field.Type())
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if !parsed.Equals(tt.field) {
				t.Errorf("expected %v, got %v", tt.field, parsed)
			}
		})
	}
}

func TestStringField_Truncates(t *testing.T) {
	long := strings.Repeat("x", StringMaxSize+10)
	field := NewStringField(long)
	if len(field.Value) != StringMaxSize {
		t.Errorf("expected value truncated to %d bytes, got %d", StringMaxSize, len(field.Value))
	}
}

func TestStringField_TruncatesAtRuneBoundary(t *testing.T) {
	// 127 ASCII bytes then a 3-byte rune straddling the limit.
	value := strings.Repeat("x", StringMaxSize-1) + "€tail"
	field := NewStringField(value)
	if !utf8.ValidString(field.Value) {
		t.Fatalf("truncated value is not valid UTF-8: %q", field.Value)
	}
	if field.Value != strings.Repeat("x", StringMaxSize-1) {
		t.Errorf("expected the partial rune dropped, got %d bytes", len(field.Value))
	}

	var buf bytes.Buffer
	raw := &StringField{Value: value}
	if err := raw.Serialize(&buf); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	parsed, err := ParseField(bytes.NewReader(buf.Bytes()), StringType)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !utf8.ValidString(parsed.String()) {
		t.Errorf("serialized bytes are not valid UTF-8: %q", parsed.String())
	}
}

func TestFloat64Field_EqualsIsExact(t *testing.T) {
	x, y := 0.1, 0.2
	a, b := NewFloat64Field(x+y), NewFloat64Field(0.3)
	if a.Equals(b) {
		t.Error("values that differ in their last bits must not be equal")
	}
	if a.Hash() == b.Hash() {
		t.Error("expected distinct doubles to hash differently")
	}
	if c, _ := CompareFields(a, b); c != 0 {
		t.Error("comparison keeps its tolerance")
	}
	if !NewFloat64Field(0).Equals(NewFloat64Field(math.Copysign(0, -1))) {
		t.Error("positive and negative zero must be equal")
	}
}

func TestCompareFields(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Field
		expected int
		wantErr  bool
	}{
		{"int less", NewIntField(1), NewIntField(2), -1, false},
		{"int equal", NewIntField(5), NewIntField(5), 0, false},
		{"int vs double", NewIntField(2), NewFloat64Field(1.5), 1, false},
		{"double vs int equal", NewFloat64Field(3.0), NewIntField(3), 0, false},
		{"double epsilon", NewFloat64Field(0.1 + 0.2), NewFloat64Field(0.3), 0, false},
		{"string", NewStringField("abc"), NewStringField("abd"), -1, false},
		{"bool", NewBoolField(false), NewBoolField(true), -1, false},
		{"string vs int", NewStringField("1"), NewIntField(1), 0, true},
		{"bool vs double", NewBoolField(true), NewFloat64Field(1), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareFields(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error comparing %v and %v", tt.a.Type(), tt.b.Type())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sign(got) != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestField_ComparePredicate(t *testing.T) {
	ok, err := NewIntField(3).Compare(primitives.GreaterThanOrEqual, NewFloat64Field(2.5))
	if err != nil || !ok {
		t.Errorf("expected 3 >= 2.5, got %v (err %v)", ok, err)
	}
	ok, err = NewStringField("b").Compare(primitives.LessThan, NewStringField("a"))
	if err != nil || ok {
		t.Errorf("expected b < a to be false, got %v (err %v)", ok, err)
	}
}

func TestField_Coercions(t *testing.T) {
	tests := []struct {
		name      string
		field     Field
		wantBool  bool
		wantInt   int64
		wantFloat float64
	}{
		{"int", NewIntField(3), true, 3, 3},
		{"zero int", NewIntField(0), false, 0, 0},
		{"double", NewFloat64Field(2.75), true, 2, 2.75},
		{"bool", NewBoolField(true), true, 1, 1},
		{"numeric string", NewStringField("12"), false, 12, 12},
		{"true string", NewStringField("true"), true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.ToBool() != tt.wantBool {
				t.Errorf("ToBool: expected %v", tt.wantBool)
			}
			if tt.field.ToInt() != tt.wantInt {
				t.Errorf("ToInt: expected %d, got %d", tt.wantInt, tt.field.ToInt())
			}
			if tt.field.ToFloat() != tt.wantFloat {
				t.Errorf("ToFloat: expected %v, got %v", tt.wantFloat, tt.field.ToFloat())
			}
		})
	}
}

func TestField_Hash(t *testing.T) {
	if NewIntField(7).Hash() != NewIntField(7).Hash() {
		t.Error("equal ints must hash equally")
	}
	if NewIntField(7).Hash() == NewIntField(8).Hash() {
		t.Error("expected different ints to hash differently")
	}
	if NewStringField("a").Hash() != NewStringField("a").Hash() {
		t.Error("equal strings must hash equally")
	}
	if NewFloat64Field(0).Hash() != NewFloat64Field(math.Copysign(0, -1)).Hash() {
		t.Error("positive and negative zero must hash equally")
	}
}

func TestParseText(t *testing.T) {
	tests := []struct {
		text    string
		typ     Type
		want    Field
		wantErr bool
	}{
		{"42", IntType, NewIntField(42), false},
		{" 42 ", IntType, NewIntField(42), false},
		{"4.5", FloatType, NewFloat64Field(4.5), false},
		{"true", BoolType, NewBoolField(true), false},
		{"some text", StringType, NewStringField("some text"), false},
		{"abc", IntType, nil, true},
		{"x", FloatType, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String()+"/"+tt.text, func(t *testing.T) {
			got, err := ParseText(tt.text, tt.typ)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.text)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equals(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	for name, want := range map[string]Type{"int": IntType, "DOUBLE": FloatType, "string": StringType, "bool": BoolType} {
		got, err := ParseType(name)
		if err != nil || got != want {
			t.Errorf("ParseType(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseType("blob"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
