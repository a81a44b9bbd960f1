// Package gatt holds the wire-neutral GATT primitives shared by the peripheral manager and the BLE
// host stack backends: attribute types, characteristic properties, handles and ATT status codes.
package gatt

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// A UUID is a 128-bit attribute type stored in little-endian byte order, the order used on the
// wire by ATT.
type UUID [16]byte

// baseUUID is the Bluetooth Base UUID 00000000-0000-1000-8000-00805F9B34FB.
var baseUUID = MustParseUUID("00000000-0000-1000-8000-00805F9B34FB")

// UUID16 expands a 16-bit assigned number (such as 0x2902) into a full UUID.
func UUID16(n uint16) UUID {
	u := baseUUID
	binary.LittleEndian.PutUint16(u[12:14], n)
	return u
}

// ParseUUID parses a standard-format UUID string such as
// "0000003E-0000-1000-8000-0026BB765291".
func ParseUUID(s string) (UUID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("gatt: invalid uuid %q: %w", s, err)
	}
	var u UUID
	for i := range parsed {
		u[i] = parsed[len(parsed)-1-i]
	}
	return u, nil
}

// MustParseUUID is like ParseUUID but panics if s cannot be parsed.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Bytes returns u in little-endian order.
func (u UUID) Bytes() []byte {
	b := make([]byte, len(u))
	copy(b, u[:])
	return b
}

// Short returns the 16-bit assigned number and true if u is derived from the Bluetooth Base UUID.
func (u UUID) Short() (uint16, bool) {
	base := baseUUID
	copy(base[12:14], u[12:14])
	if base != u {
		return 0, false
	}
	return binary.LittleEndian.Uint16(u[12:14]), true
}

func (u UUID) String() string {
	var be uuid.UUID
	for i := range u {
		be[i] = u[len(u)-1-i]
	}
	return be.String()
}

// ClientCharacteristicConfigUUID is the type of the CCCD the host stack appends to every
// characteristic that supports notifications or indications.
var ClientCharacteristicConfigUUID = UUID16(0x2902)
