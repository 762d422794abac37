package types

import (
	"cmp"
	"encoding/binary"
	"io"
	"pagedb/pkg/primitives"

	"github.com/cespare/xxhash/v2"
)

// compareOrdered performs a comparison between two ordered values using the given predicate.
func compareOrdered[T cmp.Ordered](a, b T, op primitives.Predicate) bool {
	return op.Holds(cmp.Compare(a, b))
}

// hashBytes computes the xxhash of the given byte slice.
func hashBytes(data []byte) primitives.HashCode {
	return primitives.HashCode(xxhash.Sum64(data))
}

// serializeUint64 writes a uint64 value to the writer in big-endian byte order.
func serializeUint64(w io.Writer, v uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	_, err := w.Write(b)
	return err
}

// toBytes64 converts a uint64 value to an 8-byte big-endian slice.
func toBytes64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
