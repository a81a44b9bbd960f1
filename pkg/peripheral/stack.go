package peripheral

import (
	"fmt"
	"time"

	"github.com/hapble/peripheral/pkg/gatt"
)

// ReadHandler serves an ATT Read Request (offset zero) or Read Blob Request for a dynamic
// characteristic value.
type ReadHandler func(conn gatt.ConnectionHandle, attr gatt.Handle, offset int) ([]byte, gatt.Status)

// WriteHandler serves an ATT Write Request or Write Command for a dynamic characteristic value.
type WriteHandler func(conn gatt.ConnectionHandle, attr gatt.Handle, data []byte) gatt.Status

// StackDescriptor is a constant-valued descriptor. Handle is assigned by Stack.AddService.
type StackDescriptor struct {
	Type   gatt.UUID
	Value  []byte
	Handle gatt.Handle
}

// StackCharacteristic describes one characteristic submitted to the host stack.
//
// A characteristic with a Value is constant and served by the stack without authorization. A
// characteristic without one is dynamic: the stack must route every read and write of its value
// to OnRead and OnWrite, and must accept values up to MaxLength bytes.
//
// Stack.AddService fills in ValueHandle and the Handle of every descriptor. For subscribable
// characteristics the stack appends a CCCD to Descriptors, after the caller's descriptors.
type StackCharacteristic struct {
	Type        gatt.UUID
	Properties  gatt.Properties
	Value       []byte
	MaxLength   int
	Descriptors []*StackDescriptor

	OnRead  ReadHandler
	OnWrite WriteHandler

	ValueHandle gatt.Handle
}

func (c *StackCharacteristic) Dynamic() bool {
	return c.Value == nil
}

// StackService is a primary service. Handle is assigned by Stack.AddService.
type StackService struct {
	Type            gatt.UUID
	Characteristics []*StackCharacteristic
	Handle          gatt.Handle
}

type AdvertisingType uint8

const (
	// AdvertisingConnectableUndirected is ADV_IND, the only type the accessory uses.
	AdvertisingConnectableUndirected AdvertisingType = 0x00
)

type AdvertisingParameters struct {
	Type     AdvertisingType
	Interval time.Duration
}

// Stack is the BLE host stack seen from the peripheral manager. Except for Init, every method is
// called from the run loop, and the stack must deliver events on the run loop too.
type Stack interface {
	// Init brings the controller up and calls onComplete once it is ready or failed.
	Init(onComplete func(err error))
	SetEventHandler(handler func(Event))

	AddService(service *StackService) error
	ResetServer() error
	// WriteToCentral sends a handle value notification or indication for valueHandle.
	WriteToCentral(conn gatt.ConnectionHandle, valueHandle gatt.Handle, data []byte) error

	SetAdvertisingParameters(params AdvertisingParameters) error
	SetAdvertisingPayload(data []byte) error
	SetScanResponse(data []byte) error
	// StartAdvertising begins one advertising round. The stack reports the end of the round with
	// AdvertisingEnded, which it also sends when a central connects.
	StartAdvertising() error
	StopAdvertising() error
	IsAdvertisingActive() bool

	Shutdown() error
}

// Event is a notification from the host stack. It is one of AdvertisingEnded,
// ConnectionComplete, DisconnectionComplete, SubscriptionEnabled or SubscriptionDisabled.
type Event interface {
	isEvent()
}

// AdvertisingEnded reports that an advertising round finished.
type AdvertisingEnded struct{}

// ConnectionComplete reports the outcome of a link establishment. A nonzero Status is the HCI
// error code of a failed attempt.
type ConnectionComplete struct {
	Conn   gatt.ConnectionHandle
	Peer   string
	Status uint8
}

type DisconnectionComplete struct {
	Conn   gatt.ConnectionHandle
	Reason uint8
}

// SubscriptionEnabled reports that a central enabled notifications or indications on the
// characteristic whose value handle is Attr.
type SubscriptionEnabled struct {
	Conn gatt.ConnectionHandle
	Attr gatt.Handle
}

type SubscriptionDisabled struct {
	Conn gatt.ConnectionHandle
	Attr gatt.Handle
}

func (AdvertisingEnded) isEvent() {}
func (ConnectionComplete) isEvent() {}
func (DisconnectionComplete) isEvent() {}
func (SubscriptionEnabled) isEvent() {}
func (SubscriptionDisabled) isEvent() {}

func (AdvertisingEnded) String() string { return "advertising ended" }

func (e ConnectionComplete) String() string {
	if e.Status != 0 {
		return fmt.Sprintf("connection failed (status 0x%02x)", e.Status)
	}
	return fmt.Sprintf("connection 0x%04x complete with %s", uint16(e.Conn), e.Peer)
}

func (e DisconnectionComplete) String() string {
	return fmt.Sprintf("disconnection 0x%04x (reason 0x%02x)", uint16(e.Conn), e.Reason)
}

func (e SubscriptionEnabled) String() string {
	return fmt.Sprintf("subscribed to 0x%04x on 0x%04x", uint16(e.Attr), uint16(e.Conn))
}

func (e SubscriptionDisabled) String() string {
	return fmt.Sprintf("unsubscribed from 0x%04x on 0x%04x", uint16(e.Attr), uint16(e.Conn))
}
