// Package sim is an in-memory BLE host stack. It builds the attribute table the way a Linux
// host does and lets a caller play the central: connect, subscribe, read and write.
//
// The Stack is not safe for concurrent use. Central actions deliver events synchronously, so
// they must be issued from the run loop that owns the peripheral manager.
package sim

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/hapble/peripheral/internal/log"
	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/peripheral"
	"github.com/hapble/peripheral/pkg/protocol"
)

// DefaultMTU is the ATT MTU of simulated connections.
const DefaultMTU = 23

const firstConnectionHandle gatt.ConnectionHandle = 0x0040

var (
	ErrNotConnected  = protocol.NewError("sim: no central connected", false)
	ErrNotSubscribed = protocol.NewError("sim: central is not subscribed", false)
	ErrShutdown      = protocol.NewError("sim: stack is shut down", false)
)

var logger = log.New("SimStack")

// Indication records one value sent to the central.
type Indication struct {
	Conn  gatt.ConnectionHandle
	Attr  gatt.Handle
	Value []byte
}

type Option func(*Stack)

// WithDispatcher makes the stack report initialization through post, typically a run loop's
// Post method. Without it Init completes before it returns.
func WithDispatcher(post func(func()) error) Option {
	return func(s *Stack) { s.post = post }
}

// WithInitError makes Init fail with err.
func WithInitError(err error) Option {
	return func(s *Stack) { s.initErr = err }
}

// WithMTU sets the ATT MTU used by ReadLong.
func WithMTU(mtu int) Option {
	return func(s *Stack) { s.mtu = mtu }
}

type Stack struct {
	post    func(func()) error
	initErr error
	mtu     int
	handler func(peripheral.Event)

	services   []*peripheral.StackService
	values     map[gatt.Handle]*peripheral.StackCharacteristic
	nextHandle gatt.Handle
	addErr     error
	writeErr   error

	advertising  bool
	rounds       int
	params       peripheral.AdvertisingParameters
	payload      []byte
	scanResponse []byte

	conn          gatt.ConnectionHandle
	nextConn      gatt.ConnectionHandle
	subscriptions map[gatt.Handle]bool
	indications   []Indication

	initialized bool
	shutdown    bool
}

func New(options ...Option) *Stack {
	s := &Stack{
		mtu:           DefaultMTU,
		values:        make(map[gatt.Handle]*peripheral.StackCharacteristic),
		nextHandle:    1,
		nextConn:      firstConnectionHandle,
		subscriptions: make(map[gatt.Handle]bool),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *Stack) Init(onComplete func(err error)) {
	complete := func() {
		s.initialized = s.initErr == nil
		onComplete(s.initErr)
	}
	if s.post == nil {
		complete()
		return
	}
	if err := s.post(complete); err != nil {
		logger.Error("failed to post init completion: %s", err)
	}
}

func (s *Stack) SetEventHandler(handler func(peripheral.Event)) {
	s.handler = handler
}

func (s *Stack) emit(e peripheral.Event) {
	logger.Debug("%s", e)
	if s.handler != nil {
		s.handler(e)
	}
}

// FailAddService makes the next AddService call fail with err.
func (s *Stack) FailAddService(err error) {
	s.addErr = err
}

// FailWrites makes WriteToCentral fail with err until called again with nil.
func (s *Stack) FailWrites(err error) {
	s.writeErr = err
}

// AddService assigns handles in declaration order: the service declaration, then for every
// characteristic its declaration, its value and its descriptors.
func (s *Stack) AddService(svc *peripheral.StackService) error {
	if s.shutdown {
		return ErrShutdown
	}
	if err := s.addErr; err != nil {
		s.addErr = nil
		return err
	}
	svc.Handle = s.nextHandle
	h := svc.Handle + 1
	for _, c := range svc.Characteristics {
		c.ValueHandle = h + 1
		h += 2
		if c.Properties.Subscribable() {
			c.Descriptors = append(c.Descriptors, &peripheral.StackDescriptor{
				Type:  gatt.ClientCharacteristicConfigUUID,
				Value: []byte{0, 0},
			})
		}
		for _, d := range c.Descriptors {
			d.Handle = h
			h++
		}
		s.values[c.ValueHandle] = c
	}
	s.nextHandle = h
	s.services = append(s.services, svc)
	return nil
}

func (s *Stack) ResetServer() error {
	s.services = nil
	s.values = make(map[gatt.Handle]*peripheral.StackCharacteristic)
	s.subscriptions = make(map[gatt.Handle]bool)
	s.nextHandle = 1
	return nil
}

func (s *Stack) WriteToCentral(conn gatt.ConnectionHandle, valueHandle gatt.Handle, data []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	if conn == 0 || conn != s.conn {
		return ErrNotConnected
	}
	if !s.subscriptions[valueHandle] {
		return fmt.Errorf("0x%04x: %w", uint16(valueHandle), ErrNotSubscribed)
	}
	s.indications = append(s.indications, Indication{Conn: conn, Attr: valueHandle, Value: bytes.Clone(data)})
	return nil
}

func (s *Stack) SetAdvertisingParameters(params peripheral.AdvertisingParameters) error {
	s.params = params
	return nil
}

func (s *Stack) SetAdvertisingPayload(data []byte) error {
	s.payload = bytes.Clone(data)
	return nil
}

func (s *Stack) SetScanResponse(data []byte) error {
	s.scanResponse = bytes.Clone(data)
	return nil
}

func (s *Stack) StartAdvertising() error {
	if s.shutdown {
		return ErrShutdown
	}
	if s.conn != 0 {
		return fmt.Errorf("sim: cannot advertise while connected: %w", protocol.ErrInvalidState)
	}
	s.advertising = true
	s.rounds++
	return nil
}

func (s *Stack) StopAdvertising() error {
	s.advertising = false
	return nil
}

func (s *Stack) IsAdvertisingActive() bool {
	return s.advertising
}

func (s *Stack) Shutdown() error {
	s.shutdown = true
	s.advertising = false
	return nil
}

// Advertising reports whether the stack is in an advertising round.
func (s *Stack) Advertising() bool { return s.advertising }

// Rounds counts the advertising rounds started so far.
func (s *Stack) Rounds() int { return s.rounds }

func (s *Stack) AdvertisingParameters() peripheral.AdvertisingParameters { return s.params }
func (s *Stack) Payload() []byte { return s.payload }
func (s *Stack) ScanResponse() []byte { return s.scanResponse }
func (s *Stack) Services() []*peripheral.StackService { return s.services }
func (s *Stack) Indications() []Indication { return s.indications }
func (s *Stack) Connection() gatt.ConnectionHandle { return s.conn }
func (s *Stack) IsShutdown() bool { return s.shutdown }
func (s *Stack) Initialized() bool { return s.initialized }

// Characteristic returns the characteristic whose value handle is h.
func (s *Stack) Characteristic(h gatt.Handle) (*peripheral.StackCharacteristic, bool) {
	c, ok := s.values[h]
	return c, ok
}

// ValueHandles lists every value handle in ascending order.
func (s *Stack) ValueHandles() []gatt.Handle {
	handles := make([]gatt.Handle, 0, len(s.values))
	for h := range s.values {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// EndAdvertisingRound finishes the current advertising round.
func (s *Stack) EndAdvertisingRound() {
	if !s.advertising {
		return
	}
	s.advertising = false
	s.emit(peripheral.AdvertisingEnded{})
}
