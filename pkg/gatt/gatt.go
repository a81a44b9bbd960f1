package gatt

import "fmt"

// Properties is the characteristic property bitset. Do not re-order the bit flags below; they
// are organized to match the BLE spec.
type Properties uint8

const (
	PropRead                 Properties = 1 << (iota + 1) // the characteristic may be read
	PropWriteWithoutResponse                              // the characteristic may be written to, with no reply
	PropWrite                                             // the characteristic may be written to, with a reply
	PropNotify                                            // the characteristic supports notifications
	PropIndicate                                          // the characteristic supports indications
)

// Has reports whether every bit in other is set.
func (p Properties) Has(other Properties) bool {
	return p&other == other
}

// Subscribable reports whether the characteristic owns a CCCD.
func (p Properties) Subscribable() bool {
	return p&(PropNotify|PropIndicate) != 0
}

// Handle is an ATT attribute handle assigned by the host stack. Zero is never a valid handle.
type Handle uint16

// ConnectionHandle identifies a central connection. Zero means no connection.
type ConnectionHandle uint16

// MaxAttributeValueLength is the largest attribute value ATT can carry (ATT_VALUE_MAX_LEN).
const MaxAttributeValueLength = 512

// Status is an ATT authorization reply [Vol 3, Part F, 3.4.1.1].
type Status uint8

const (
	StatusSuccess               Status = 0x00
	StatusInvalidHandle         Status = 0x01
	StatusReadNotPermitted      Status = 0x02
	StatusWriteNotPermitted     Status = 0x03
	StatusInvalidPDU            Status = 0x04
	StatusRequestNotSupported   Status = 0x06
	StatusInvalidOffset         Status = 0x07
	StatusUnlikely              Status = 0x0e
	StatusInsufficientResources Status = 0x11
)

var statusName = map[Status]string{
	StatusSuccess:               "success",
	StatusInvalidHandle:         "invalid handle",
	StatusReadNotPermitted:      "read not permitted",
	StatusWriteNotPermitted:     "write not permitted",
	StatusInvalidPDU:            "invalid PDU",
	StatusRequestNotSupported:   "request not supported",
	StatusInvalidOffset:         "invalid offset",
	StatusUnlikely:              "unlikely error",
	StatusInsufficientResources: "insufficient resources",
}

func (s Status) String() string {
	if name, ok := statusName[s]; ok {
		return name
	}
	return fmt.Sprintf("att status 0x%02x", uint8(s))
}
