//go:build linux

package goble

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"
	"github.com/go-ble/ble/linux/hci/evt"

	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/peripheral"
	"github.com/hapble/peripheral/pkg/protocol"
)

const outboxSize = 16

// ownedCharacteristic remembers how many descriptors of a go-ble characteristic are ours, since
// go-ble appends a CCCD every time it rebuilds the attribute database.
type ownedCharacteristic struct {
	c           *ble.Characteristic
	descriptors int
}

type indication struct {
	n    ble.Notifier
	attr gatt.Handle
	data []byte
}

type Stack struct {
	config Config
	loop   Dispatcher

	// Owned by the run loop.
	device       *linux.Device
	handler      func(peripheral.Event)
	owned        []ownedCharacteristic
	advertising  bool
	roundTimer   int
	payload      []byte
	scanResponse []byte
	outbox       chan indication

	// Shared with go-ble goroutines.
	lock      sync.Mutex
	conns     map[string]gatt.ConnectionHandle
	last      gatt.ConnectionHandle
	notifiers map[gatt.Handle]ble.Notifier
}

// New creates a Stack that reports to loop. The controller is opened by Init.
func New(config Config, loop Dispatcher) peripheral.Stack {
	return &Stack{
		config:    config.withDefaults(),
		loop:      loop,
		conns:     make(map[string]gatt.ConnectionHandle),
		notifiers: make(map[gatt.Handle]ble.Notifier),
	}
}

func (s *Stack) post(f func()) {
	if err := s.loop.Post(f); err != nil {
		logger.Error("Dropping stack event: %s", err)
	}
}

func (s *Stack) emit(e peripheral.Event) {
	logger.Debug("%s", e)
	if s.handler != nil {
		s.handler(e)
	}
}

func (s *Stack) Init(onComplete func(err error)) {
	id, err := deviceID(s.config.AdapterID)
	if err != nil {
		s.post(func() { onComplete(err) })
		return
	}
	go func() {
		logger.Debug("Opening hci%d", id)
		device, err := linux.NewDevice(
			ble.OptDeviceID(id),
			ble.OptConnectHandler(s.connected),
			ble.OptDisconnectHandler(s.disconnected),
		)
		if err != nil {
			err = fmt.Errorf("goble: failed to open hci%d: %w", id, err)
		}
		s.post(func() {
			if err == nil {
				s.device = device
				s.outbox = make(chan indication, outboxSize)
				go s.send(s.outbox)
			}
			onComplete(err)
		})
	}()
}

func (s *Stack) SetEventHandler(handler func(peripheral.Event)) {
	s.handler = handler
}

func (s *Stack) ready() error {
	if s.device == nil {
		return fmt.Errorf("goble: controller not initialized: %w", protocol.ErrInvalidState)
	}
	return nil
}

func peerAddress(a [6]byte) string {
	return net.HardwareAddr([]byte{a[5], a[4], a[3], a[2], a[1], a[0]}).String()
}

// connected runs on the HCI event goroutine and must not issue HCI commands.
func (s *Stack) connected(e evt.LEConnectionComplete) {
	peer := peerAddress(e.PeerAddress())
	conn := gatt.ConnectionHandle(e.ConnectionHandle())
	status := e.Status()
	if status == 0 {
		s.lock.Lock()
		s.conns[peer] = conn
		s.last = conn
		s.lock.Unlock()
	}
	s.post(func() {
		s.emit(peripheral.ConnectionComplete{Conn: conn, Peer: peer, Status: status})
		if status == 0 {
			s.endRound()
		}
	})
}

func (s *Stack) disconnected(e evt.DisconnectionComplete) {
	conn := gatt.ConnectionHandle(e.ConnectionHandle())
	reason := e.Reason()
	s.lock.Lock()
	for peer, h := range s.conns {
		if h == conn {
			delete(s.conns, peer)
		}
	}
	s.lock.Unlock()
	s.post(func() {
		s.emit(peripheral.DisconnectionComplete{Conn: conn, Reason: reason})
	})
}

// connHandle maps a go-ble connection back to its HCI handle.
func (s *Stack) connHandle(c ble.Conn) gatt.ConnectionHandle {
	peer := strings.ToLower(c.RemoteAddr().String())
	s.lock.Lock()
	defer s.lock.Unlock()
	if h, ok := s.conns[peer]; ok {
		return h
	}
	logger.Warning("No connection handle for %s, assuming 0x%04x", peer, uint16(s.last))
	return s.last
}

// do runs f on the run loop on behalf of an ATT request goroutine.
func (s *Stack) do(f func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RequestTimeout)
	defer cancel()
	return s.loop.Do(ctx, f)
}

func uuid(u gatt.UUID) ble.UUID {
	if short, ok := u.Short(); ok {
		return ble.UUID16(short)
	}
	return ble.UUID(u.Bytes())
}

func (s *Stack) readHandler(c *peripheral.StackCharacteristic) ble.ReadHandler {
	return ble.ReadHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		conn := s.connHandle(req.Conn())
		offset := req.Offset()
		var value []byte
		status := gatt.StatusUnlikely
		if err := s.do(func() { value, status = c.OnRead(conn, c.ValueHandle, offset) }); err != nil {
			logger.Error("Read of 0x%04x not served: %s", uint16(c.ValueHandle), err)
		}
		if status != gatt.StatusSuccess {
			rsp.SetStatus(ble.ATTError(status))
			return
		}
		if avail := rsp.Cap() - rsp.Len(); len(value) > avail {
			value = value[:avail]
		}
		if _, err := rsp.Write(value); err != nil {
			logger.Error("Read response for 0x%04x: %s", uint16(c.ValueHandle), err)
			rsp.SetStatus(ble.ErrUnlikely)
		}
	})
}

func (s *Stack) writeHandler(c *peripheral.StackCharacteristic) ble.WriteHandler {
	return ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		conn := s.connHandle(req.Conn())
		data := bytes.Clone(req.Data())
		status := gatt.StatusUnlikely
		if err := s.do(func() { status = c.OnWrite(conn, c.ValueHandle, data) }); err != nil {
			logger.Error("Write of 0x%04x not served: %s", uint16(c.ValueHandle), err)
		}
		rsp.SetStatus(ble.ATTError(status))
	})
}

// notifyHandler runs for as long as the central keeps the CCCD enabled.
func (s *Stack) notifyHandler(c *peripheral.StackCharacteristic) ble.NotifyHandler {
	return ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
		conn := s.connHandle(req.Conn())
		attr := c.ValueHandle

		s.lock.Lock()
		s.notifiers[attr] = n
		s.lock.Unlock()
		s.post(func() { s.emit(peripheral.SubscriptionEnabled{Conn: conn, Attr: attr}) })

		<-n.Context().Done()

		s.lock.Lock()
		if s.notifiers[attr] == n {
			delete(s.notifiers, attr)
		}
		s.lock.Unlock()
		s.post(func() { s.emit(peripheral.SubscriptionDisabled{Conn: conn, Attr: attr}) })
	})
}

func (s *Stack) AddService(svc *peripheral.StackService) error {
	if err := s.ready(); err != nil {
		return err
	}
	service := ble.NewService(uuid(svc.Type))
	added := make([]ownedCharacteristic, 0, len(svc.Characteristics))
	for _, c := range svc.Characteristics {
		bc := ble.NewCharacteristic(uuid(c.Type))
		if c.Dynamic() {
			if c.OnRead != nil {
				bc.HandleRead(s.readHandler(c))
			}
			if c.OnWrite != nil {
				bc.HandleWrite(s.writeHandler(c))
			}
		} else {
			bc.SetValue(c.Value)
		}
		if c.Properties.Has(gatt.PropNotify) {
			bc.HandleNotify(s.notifyHandler(c))
		}
		if c.Properties.Has(gatt.PropIndicate) {
			bc.HandleIndicate(s.notifyHandler(c))
		}
		bc.Property = ble.Property(c.Properties)
		for _, d := range c.Descriptors {
			bd := ble.NewDescriptor(uuid(d.Type))
			bd.SetValue(d.Value)
			bc.AddDescriptor(bd)
		}
		service.AddCharacteristic(bc)
		added = append(added, ownedCharacteristic{c: bc, descriptors: len(c.Descriptors)})
	}

	for _, o := range s.owned {
		o.c.Descriptors = o.c.Descriptors[:o.descriptors]
	}
	if err := s.device.AddService(service); err != nil {
		return fmt.Errorf("goble: add service %s: %w", svc.Type, err)
	}
	s.owned = append(s.owned, added...)

	svc.Handle = gatt.Handle(service.Handle)
	for i, c := range svc.Characteristics {
		bc := added[i].c
		c.ValueHandle = gatt.Handle(bc.ValueHandle)
		for j, d := range c.Descriptors {
			d.Handle = gatt.Handle(bc.Descriptors[j].Handle)
		}
		if bc.CCCD != nil {
			c.Descriptors = append(c.Descriptors, &peripheral.StackDescriptor{
				Type:   gatt.ClientCharacteristicConfigUUID,
				Handle: gatt.Handle(bc.CCCD.Handle),
			})
		}
	}
	return nil
}

func (s *Stack) ResetServer() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.owned = nil
	s.lock.Lock()
	s.notifiers = make(map[gatt.Handle]ble.Notifier)
	s.lock.Unlock()
	return s.device.RemoveAllServices()
}

func (s *Stack) WriteToCentral(conn gatt.ConnectionHandle, valueHandle gatt.Handle, data []byte) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.lock.Lock()
	n, ok := s.notifiers[valueHandle]
	s.lock.Unlock()
	if !ok {
		return fmt.Errorf("goble: 0x%04x on 0x%04x: %w", uint16(valueHandle), uint16(conn), ErrNotSubscribed)
	}
	select {
	case s.outbox <- indication{n: n, attr: valueHandle, data: bytes.Clone(data)}:
		return nil
	default:
		return fmt.Errorf("goble: indication queue full: %w", protocol.ErrOutOfResources)
	}
}

// send writes queued values in order. Indications block until the central confirms, which needs
// the ATT goroutine, so they cannot be written from the run loop.
func (s *Stack) send(outbox <-chan indication) {
	for ind := range outbox {
		if _, err := ind.n.Write(ind.data); err != nil {
			logger.Error("Failed to send value of 0x%04x: %s", uint16(ind.attr), err)
		}
	}
}

func (s *Stack) SetAdvertisingParameters(params peripheral.AdvertisingParameters) error {
	if err := s.ready(); err != nil {
		return err
	}
	interval := advertisingInterval(params.Interval)
	return s.device.HCI.Option(ble.OptAdvParams(cmd.LESetAdvertisingParameters{
		AdvertisingIntervalMin:  interval,
		AdvertisingIntervalMax:  interval,
		AdvertisingType:         uint8(params.Type),
		OwnAddressType:          0x00, // public
		DirectAddressType:       0x00,
		AdvertisingChannelMap:   0x07, // 37, 38 and 39
		AdvertisingFilterPolicy: 0x00, // allow any
	}))
}

func (s *Stack) setAdvertisement() error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.device.HCI.SetAdvertisement(s.payload, s.scanResponse)
}

func (s *Stack) SetAdvertisingPayload(data []byte) error {
	s.payload = bytes.Clone(data)
	return s.setAdvertisement()
}

func (s *Stack) SetScanResponse(data []byte) error {
	s.scanResponse = bytes.Clone(data)
	return s.setAdvertisement()
}

// linked reports whether a central holds a link. Connectable advertising needs a free link.
func (s *Stack) linked() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.conns) > 0
}

func (s *Stack) StartAdvertising() error {
	if s.linked() {
		return fmt.Errorf("goble: cannot advertise while connected: %w", protocol.ErrInvalidState)
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.device.HCI.Advertise(); err != nil {
		return fmt.Errorf("goble: advertise: %w", err)
	}
	s.advertising = true
	id, err := s.loop.ScheduleAfter(s.config.RoundDuration, s.endRound)
	if err != nil {
		logger.Warning("Advertising round will not end: %s", err)
		return nil
	}
	s.roundTimer = id
	return nil
}

// endRound finishes the current advertising round, if any.
func (s *Stack) endRound() {
	if !s.advertising {
		return
	}
	if err := s.StopAdvertising(); err != nil {
		logger.Error("Failed to end advertising round: %s", err)
	}
	s.emit(peripheral.AdvertisingEnded{})
}

func (s *Stack) StopAdvertising() error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.roundTimer != 0 {
		s.loop.Cancel(s.roundTimer)
		s.roundTimer = 0
	}
	s.advertising = false
	return s.device.HCI.StopAdvertising()
}

func (s *Stack) IsAdvertisingActive() bool {
	return s.advertising
}

func (s *Stack) Shutdown() error {
	if s.device == nil {
		return nil
	}
	if s.roundTimer != 0 {
		s.loop.Cancel(s.roundTimer)
		s.roundTimer = 0
	}
	s.advertising = false
	close(s.outbox)
	device := s.device
	s.device = nil
	if err := device.Stop(); err != nil {
		return fmt.Errorf("goble: failed to stop device: %w", err)
	}
	return nil
}
