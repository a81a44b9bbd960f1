package main

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hapble/peripheral/internal/log"
	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/kvstore"
	"github.com/hapble/peripheral/pkg/peripheral"
	"github.com/hapble/peripheral/pkg/protocol"
	"github.com/hapble/peripheral/pkg/timer"
)

const hapBase = "-0000-1000-8000-0026BB765291"

var (
	accessoryInformationType = gatt.MustParseUUID("0000003E" + hapBase)
	lightbulbType            = gatt.MustParseUUID("00000043" + hapBase)
	identifyType             = gatt.MustParseUUID("00000014" + hapBase)
	manufacturerType         = gatt.MustParseUUID("00000020" + hapBase)
	modelType                = gatt.MustParseUUID("00000021" + hapBase)
	nameType                 = gatt.MustParseUUID("00000023" + hapBase)
	onType                   = gatt.MustParseUUID("00000025" + hapBase)
	serialNumberType         = gatt.MustParseUUID("00000030" + hapBase)
	firmwareRevisionType     = gatt.MustParseUUID("00000052" + hapBase)
	instanceIDType           = gatt.MustParseUUID("DC46F0FE-81D2-4616-B5D9-6ABDD796939A")
)

const (
	manufacturer     = "hapble"
	model            = "Lightbulb1,1"
	firmwareRevision = "1.0.0"
)

// Items the accessory keeps in the key-value store.
const (
	domainAccessory kvstore.Domain = 0x90

	keyOn      kvstore.Key = 0x01
	keySerial  kvstore.Key = 0x02
	keyAddress kvstore.Key = 0x03
)

// Advertising data types used in the payload [Core Spec Supplement, Part A, 1].
const (
	adFlags             = 0x01
	adCompleteLocalName = 0x09
	adMaxLength         = 31

	flagsGeneralDiscoverable = 0x02
	flagsBREDRNotSupported   = 0x04
)

// Clock and Random are the platform services the accessory uses.
type Clock interface {
	Now() time.Duration
}

type Random interface {
	Fill(b []byte)
}

type characteristic struct {
	name       string
	typ        gatt.UUID
	properties gatt.Properties
	value      []byte
}

// Accessory is a single lightbulb. It implements peripheral.Delegate and must only be used from
// the run loop.
type Accessory struct {
	manager *peripheral.Manager
	store   kvstore.Store
	clock   Clock
	random  Random
	timers  *timer.Registry
	name    string

	conn    gatt.ConnectionHandle
	on      bool
	handles map[string]peripheral.AttributeHandles
	names   map[gatt.Handle]string
	nextIID uint16
}

func NewAccessory(name string, store kvstore.Store, clock Clock, random Random, timers *timer.Registry) *Accessory {
	return &Accessory{
		store:   store,
		clock:   clock,
		random:  random,
		timers:  timers,
		name:    name,
		handles: make(map[string]peripheral.AttributeHandles),
		names:   make(map[gatt.Handle]string),
	}
}

// Attach takes over m and loads persistent state. Call it before Start.
func (a *Accessory) Attach(m *peripheral.Manager) error {
	a.manager = m
	m.SetDelegate(a)

	value, found, err := a.store.Get(domainAccessory, keyOn)
	if err != nil {
		return err
	}
	a.on = found && len(value) == 1 && value[0] != 0

	address, err := a.loadOrCreate(keyAddress, 6)
	if err != nil {
		return err
	}
	var deviceAddress peripheral.DeviceAddress
	copy(deviceAddress[:], address)
	// Random static addresses have both most significant bits set.
	deviceAddress[5] |= 0xc0
	m.SetDeviceAddress(deviceAddress)
	m.SetDeviceName(a.name)
	return nil
}

func (a *Accessory) loadOrCreate(key kvstore.Key, size int) ([]byte, error) {
	value, found, err := a.store.Get(domainAccessory, key)
	if err != nil {
		return nil, err
	}
	if found && len(value) == size {
		return value, nil
	}
	value = make([]byte, size)
	a.random.Fill(value)
	if err := a.store.Set(domainAccessory, key, value); err != nil {
		return nil, err
	}
	return value, nil
}

// Start publishes the GATT database and begins advertising every interval.
func (a *Accessory) Start(interval time.Duration) error {
	serial, err := a.loadOrCreate(keySerial, 4)
	if err != nil {
		return err
	}
	a.nextIID = 1
	a.manager.RemoveAllServices()
	for k := range a.handles {
		delete(a.handles, k)
	}
	for k := range a.names {
		delete(a.names, k)
	}

	if err := a.publish(accessoryInformationType, []characteristic{
		{name: "identify", typ: identifyType, properties: gatt.PropWrite},
		{name: "manufacturer", typ: manufacturerType, properties: gatt.PropRead, value: []byte(manufacturer)},
		{name: "model", typ: modelType, properties: gatt.PropRead, value: []byte(model)},
		{name: "name", typ: nameType, properties: gatt.PropRead, value: []byte(a.name)},
		{name: "serial", typ: serialNumberType, properties: gatt.PropRead, value: []byte(fmt.Sprintf("%X", serial))},
		{name: "firmware", typ: firmwareRevisionType, properties: gatt.PropRead, value: []byte(firmwareRevision)},
	}); err != nil {
		return err
	}
	if err := a.publish(lightbulbType, []characteristic{
		{name: "on", typ: onType, properties: gatt.PropRead | gatt.PropWrite | gatt.PropIndicate},
	}); err != nil {
		return err
	}
	a.manager.PublishServices()
	return a.Advertise(interval)
}

func (a *Accessory) publish(service gatt.UUID, characteristics []characteristic) error {
	for _, c := range characteristics {
		if _, err := a.manager.AddCharacteristic(c.typ, c.properties, c.value); err != nil {
			return err
		}
		iid := make([]byte, 2)
		binary.LittleEndian.PutUint16(iid, a.nextIID)
		a.nextIID++
		if _, err := a.manager.AddDescriptor(instanceIDType, iid); err != nil {
			return err
		}
	}
	handles, err := a.manager.PublishService(service)
	if err != nil {
		return err
	}
	for i, c := range characteristics {
		a.handles[c.name] = handles[i]
		a.names[handles[i].Value] = c.name
	}
	return nil
}

// Advertise (re)starts advertising with the accessory's payload.
func (a *Accessory) Advertise(interval time.Duration) error {
	payload, scanResponse, err := advertisement(a.name)
	if err != nil {
		return err
	}
	a.manager.StartAdvertising(interval, payload, scanResponse)
	return nil
}

// advertisement builds the flags-only payload and a scan response carrying the device name.
func advertisement(name string) (payload, scanResponse []byte, err error) {
	payload = []byte{2, adFlags, flagsGeneralDiscoverable | flagsBREDRNotSupported}
	if len(name) == 0 || len(name)+2 > adMaxLength {
		return nil, nil, fmt.Errorf("device name must be 1 to %d bytes: %w", adMaxLength-2, protocol.ErrInvalidData)
	}
	scanResponse = append([]byte{byte(len(name) + 1), adCompleteLocalName}, name...)
	return payload, scanResponse, nil
}

// Handle returns the attribute handles of the characteristic called name.
func (a *Accessory) Handle(name string) (peripheral.AttributeHandles, bool) {
	h, ok := a.handles[name]
	return h, ok
}

func (a *Accessory) On() bool {
	return a.on
}

func (a *Accessory) Connection() gatt.ConnectionHandle {
	return a.conn
}

// SetOn updates and persists the lightbulb state, then indicates it to a connected central.
func (a *Accessory) SetOn(on bool) error {
	a.on = on
	if err := a.store.Set(domainAccessory, keyOn, a.onValue()); err != nil {
		return err
	}
	log.Info("Lightbulb is %s", onOff(on))
	if a.conn == 0 {
		return nil
	}
	return a.Indicate()
}

// Indicate sends the lightbulb state to the connected central.
func (a *Accessory) Indicate() error {
	if a.conn == 0 {
		return fmt.Errorf("no central connected: %w", protocol.ErrInvalidState)
	}
	return a.manager.SendHandleValueIndication(a.conn, a.handles["on"].Value, a.onValue())
}

// ToggleAfter flips the lightbulb once delay has passed.
func (a *Accessory) ToggleAfter(delay time.Duration) (timer.Ref, error) {
	return a.timers.Register(a.clock.Now()+delay, func(ref timer.Ref) {
		log.Debug("%s expired", ref)
		if err := a.SetOn(!a.on); err != nil {
			log.Warning("Failed to toggle lightbulb: %s", err)
		}
	})
}

func (a *Accessory) onValue() []byte {
	if a.on {
		return []byte{1}
	}
	return []byte{0}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (a *Accessory) HandleConnectedCentral(conn gatt.ConnectionHandle) {
	log.Info("Central 0x%04x connected", uint16(conn))
	a.conn = conn
}

func (a *Accessory) HandleDisconnectedCentral(conn gatt.ConnectionHandle) {
	log.Info("Central 0x%04x disconnected", uint16(conn))
	a.conn = 0
	// Stacks refuse to advertise while linked, so round renewal stalls until the central leaves.
	if interval := a.manager.AdvertisingInterval(); interval != 0 {
		if err := a.Advertise(interval); err != nil {
			log.Warning("Failed to resume advertising: %s", err)
		}
	}
}

func (a *Accessory) HandleReadRequest(_ gatt.ConnectionHandle, attr gatt.Handle, buf []byte) (int, error) {
	switch a.names[attr] {
	case "on":
		return copy(buf, a.onValue()), nil
	default:
		return 0, fmt.Errorf("read of 0x%04x: %w", uint16(attr), protocol.ErrInvalidState)
	}
}

func (a *Accessory) HandleWriteRequest(_ gatt.ConnectionHandle, attr gatt.Handle, data []byte) error {
	switch a.names[attr] {
	case "identify":
		log.Info("Identify requested")
		return nil
	case "on":
		if len(data) != 1 || data[0] > 1 {
			return fmt.Errorf("lightbulb state %x: %w", data, protocol.ErrInvalidData)
		}
		a.on = data[0] == 1
		log.Info("Lightbulb is %s", onOff(a.on))
		if err := a.store.Set(domainAccessory, keyOn, a.onValue()); err != nil {
			log.Error("Failed to persist lightbulb state: %s", err)
		}
		return nil
	default:
		return fmt.Errorf("write of 0x%04x: %w", uint16(attr), protocol.ErrInvalidState)
	}
}
