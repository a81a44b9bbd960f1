// Package peripheral adapts the accessory protocol's BLE peripheral manager interface onto a BLE
// host stack.
//
// A Delegate declares the GATT database through a Manager (AddCharacteristic, AddDescriptor,
// PublishService), then receives connection notifications and authorized read and write
// requests for the dynamic characteristics it declared. At most one central is connected at a
// time.
//
// The Manager is not safe for concurrent use. All methods, including HandleEvent, HandleRead and
// HandleWrite, must be called from the accessory run loop.
package peripheral

import (
	"fmt"
	"time"

	"github.com/hapble/peripheral/internal/log"
	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/protocol"
)

// DefaultCapacity is the number of attribute table slots used when Options.Capacity is zero.
const DefaultCapacity = 64

var logger = log.New("BLEPeripheralManager")

// Delegate is implemented by the accessory protocol.
type Delegate interface {
	HandleConnectedCentral(conn gatt.ConnectionHandle)
	HandleDisconnectedCentral(conn gatt.ConnectionHandle)
	// HandleReadRequest fills buf with the value of attr and returns its length. Errors must be
	// protocol.ErrInvalidState or protocol.ErrOutOfResources.
	HandleReadRequest(conn gatt.ConnectionHandle, attr gatt.Handle, buf []byte) (int, error)
	// HandleWriteRequest consumes a new value for attr. Errors must be protocol.ErrInvalidState or
	// protocol.ErrInvalidData.
	HandleWriteRequest(conn gatt.ConnectionHandle, attr gatt.Handle, data []byte) error
}

// DeviceAddress is a 48-bit Bluetooth device address in little-endian order.
type DeviceAddress [6]byte

func (a DeviceAddress) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[5], a[4], a[3], a[2], a[1], a[0])
}

type Options struct {
	// Capacity bounds the number of characteristics registered between resets.
	Capacity int
	// OnReady runs once the host stack finished initializing. The accessory server is usually
	// started from here.
	OnReady func()
}

type Manager struct {
	stack    Stack
	delegate Delegate
	onReady  func()

	table   table
	session session
	cache   readCache

	advertisingInterval time.Duration
	published           bool

	address DeviceAddress
	name    string
}

// New creates a Manager on top of stack and starts initializing the stack.
func New(stack Stack, options Options) *Manager {
	if stack == nil {
		panic("peripheral: nil stack")
	}
	capacity := options.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	m := &Manager{
		stack:   stack,
		onReady: options.OnReady,
		table:   newTable(capacity),
	}
	stack.SetEventHandler(m.HandleEvent)
	stack.Init(m.initComplete)
	return m
}

func (m *Manager) initComplete(err error) {
	if err != nil {
		logger.Error("BLE initialization failed %s", err)
		return
	}
	logger.Info("BLE initialization complete")
	if m.onReady != nil {
		m.onReady()
	}
}

// SetDelegate installs delegate. A nil delegate detaches the accessory protocol and shuts the
// host stack down.
func (m *Manager) SetDelegate(delegate Delegate) {
	m.delegate = delegate
	if delegate != nil {
		return
	}
	if err := m.stack.Shutdown(); err != nil {
		logger.Error("BLE shutdown failed %s", err)
	}
}

func (m *Manager) SetDeviceAddress(address DeviceAddress) {
	logger.Info("SetDeviceAddress %s", address)
	m.address = address
}

func (m *Manager) SetDeviceName(name string) {
	logger.Info("SetDeviceName %q", name)
	m.name = name
}

func (m *Manager) DeviceAddress() DeviceAddress {
	return m.address
}

func (m *Manager) DeviceName() string {
	return m.name
}

// Connection returns the handle of the connected central, or zero.
func (m *Manager) Connection() gatt.ConnectionHandle {
	return m.session.conn
}

// CancelCentralConnection tells the delegate that conn is gone. The link itself is left to the
// central or the link supervision timeout.
func (m *Manager) CancelCentralConnection(conn gatt.ConnectionHandle) {
	logger.Info("CancelCentralConnection 0x%04x", uint16(conn))
	m.updateCentralConnection(0)
}

// SendHandleValueIndication sends data for valueHandle to conn.
func (m *Manager) SendHandleValueIndication(conn gatt.ConnectionHandle, valueHandle gatt.Handle, data []byte) error {
	logger.Debug("SendHandleValueIndication 0x%04x (%d bytes)", uint16(valueHandle), len(data))
	if err := m.stack.WriteToCentral(conn, valueHandle, data); err != nil {
		logger.Error("GattServer write failed %s", err)
		return fmt.Errorf("peripheral: indication on 0x%04x: %w", uint16(valueHandle), protocol.ErrInvalidState)
	}
	return nil
}

// HandleEvent processes one event from the host stack.
func (m *Manager) HandleEvent(event Event) {
	switch e := event.(type) {
	case AdvertisingEnded:
		m.advertisingEnded()
	case ConnectionComplete:
		if e.Status != 0 {
			logger.Error("Connection failed 0x%02x", e.Status)
			return
		}
		logger.Info("Connected to: %s", e.Peer)
		m.updateCentralConnection(e.Conn)
	case DisconnectionComplete:
		logger.Info("Disconnected with reason %02x.", e.Reason)
		m.updateCentralConnection(0)
	case SubscriptionEnabled:
		if !m.published {
			logger.Debug("Dropping %s before services are published", e)
			return
		}
		logger.Info("Subscribed to characteristic %04x", uint16(e.Attr))
		m.updateCentralConnection(e.Conn)
	case SubscriptionDisabled:
		if !m.published {
			logger.Debug("Dropping %s before services are published", e)
			return
		}
		logger.Info("Unsubscribed from characteristic %04x", uint16(e.Attr))
		m.updateCentralConnection(0)
	default:
		panic(fmt.Sprintf("peripheral: unknown stack event %T", event))
	}
}
