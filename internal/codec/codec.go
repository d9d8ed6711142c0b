// Package codec packs and unpacks fixed-width 16-bit register fields
// to and from the raw byte buffers exchanged with field-bus devices.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ByteOrder selects how the two bytes of each register are assembled.
type ByteOrder int

const (
	// Little is the device convention used by OSCAT-style controllers
	// and is the default.
	Little ByteOrder = iota
	Big
)

func (o ByteOrder) String() string {
	if o == Big {
		return "big"
	}
	return "little"
}

// ParseByteOrder maps the configuration string onto a ByteOrder.
// The empty string selects the default.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToLower(s) {
	case "", "little":
		return Little, nil
	case "big":
		return Big, nil
	default:
		return Little, fmt.Errorf("unknown byte order %q", s)
	}
}

func (o ByteOrder) byteOrder() binary.ByteOrder {
	if o == Big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ErrInvalidLength reports a buffer whose size does not match the
// expected register count. Callers must request exactly the registers
// they decode; a short or oversized response is never truncated.
var ErrInvalidLength = errors.New("invalid buffer length")

// Encode packs values into a byte buffer, two bytes per register.
func Encode(values []uint16, order ByteOrder) []byte {
	buf := make([]byte, 2*len(values))
	bo := order.byteOrder()
	for i, v := range values {
		bo.PutUint16(buf[2*i:], v)
	}
	return buf
}

// Decode unpacks count consecutive registers from buf.
func Decode(buf []byte, order ByteOrder, count int) ([]uint16, error) {
	if len(buf) != 2*count {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for %d registers",
			ErrInvalidLength, len(buf), 2*count, count)
	}
	bo := order.byteOrder()
	values := make([]uint16, count)
	for i := range values {
		values[i] = bo.Uint16(buf[2*i:])
	}
	return values, nil
}
