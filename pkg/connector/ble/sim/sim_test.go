package sim

import (
	"errors"
	"testing"

	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/peripheral"
)

type eventLog struct {
	events []peripheral.Event
}

func (l *eventLog) handle(e peripheral.Event) {
	l.events = append(l.events, e)
}

func newStack(t *testing.T) (*Stack, *eventLog) {
	t.Helper()
	s := New()
	l := &eventLog{}
	s.SetEventHandler(l.handle)
	return s, l
}

func TestInit(t *testing.T) {
	var got error = errors.New("not called")
	New().Init(func(err error) { got = err })
	if got != nil {
		t.Errorf("Init: %v", got)
	}

	failure := errors.New("hci0 down")
	New(WithInitError(failure)).Init(func(err error) { got = err })
	if got != failure {
		t.Errorf("Init: expected injected failure, got %v", got)
	}

	var posted []func()
	s := New(WithDispatcher(func(f func()) error {
		posted = append(posted, f)
		return nil
	}))
	called := false
	s.Init(func(error) { called = true })
	if called || len(posted) != 1 {
		t.Fatalf("Init with dispatcher must defer completion")
	}
	posted[0]()
	if !called || !s.Initialized() {
		t.Errorf("posted completion did not run")
	}
}

func TestAddServiceAssignsHandles(t *testing.T) {
	s, _ := newStack(t)
	svc := &peripheral.StackService{
		Type: gatt.UUID16(0x180a),
		Characteristics: []*peripheral.StackCharacteristic{
			{Type: gatt.UUID16(0x2a29), Properties: gatt.PropRead, Value: []byte("Acme")},
			{Type: gatt.UUID16(0x2a50), Properties: gatt.PropRead | gatt.PropIndicate, MaxLength: 512},
		},
	}
	if err := s.AddService(svc); err != nil {
		t.Fatal(err)
	}
	if svc.Handle != 1 || svc.Characteristics[0].ValueHandle != 3 || svc.Characteristics[1].ValueHandle != 5 {
		t.Errorf("unexpected layout: service %d, values %d %d",
			svc.Handle, svc.Characteristics[0].ValueHandle, svc.Characteristics[1].ValueHandle)
	}
	d := svc.Characteristics[1].Descriptors
	if len(d) != 1 || d[0].Type != gatt.ClientCharacteristicConfigUUID || d[0].Handle != 6 {
		t.Errorf("expected CCCD at 6, got %+v", d)
	}
	if got := s.ValueHandles(); len(got) != 2 || got[0] != 3 || got[1] != 5 {
		t.Errorf("ValueHandles: %v", got)
	}

	next := &peripheral.StackService{Type: gatt.UUID16(0x1800)}
	s.AddService(next)
	if next.Handle != 7 {
		t.Errorf("second service starts at %d", next.Handle)
	}
	s.ResetServer()
	s.AddService(next)
	if next.Handle != 1 {
		t.Errorf("reset must restart handles, got %d", next.Handle)
	}
}

func TestConnectEndsAdvertisingRound(t *testing.T) {
	s, l := newStack(t)
	s.StartAdvertising()
	conn, err := s.Connect("11:22:33:44:55:66")
	if err != nil {
		t.Fatal(err)
	}
	if s.Advertising() {
		t.Errorf("advertising continued after connection")
	}
	if len(l.events) != 2 {
		t.Fatalf("events: %v", l.events)
	}
	if e, ok := l.events[0].(peripheral.ConnectionComplete); !ok || e.Conn != conn {
		t.Errorf("first event %v", l.events[0])
	}
	if _, ok := l.events[1].(peripheral.AdvertisingEnded); !ok {
		t.Errorf("second event %v", l.events[1])
	}
	if err := s.StartAdvertising(); err == nil {
		t.Errorf("advertising while connected must fail")
	}
	if _, err := s.Connect("66:55:44:33:22:11"); err == nil {
		t.Errorf("second central accepted")
	}
}

func TestSubscribeAndIndicate(t *testing.T) {
	s, l := newStack(t)
	svc := &peripheral.StackService{
		Characteristics: []*peripheral.StackCharacteristic{
			{Properties: gatt.PropRead, Value: []byte{1}},
			{Properties: gatt.PropIndicate, MaxLength: 512},
		},
	}
	s.AddService(svc)
	h := svc.Characteristics[1].ValueHandle

	if err := s.WriteToCentral(0x40, h, []byte{1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("indication without central: %v", err)
	}
	conn, _ := s.Connect("11:22:33:44:55:66")
	if err := s.Subscribe(svc.Characteristics[0].ValueHandle); err == nil {
		t.Errorf("subscribed to a characteristic without updates")
	}
	if err := s.WriteToCentral(conn, h, []byte{1}); !errors.Is(err, ErrNotSubscribed) {
		t.Errorf("indication without subscription: %v", err)
	}
	if err := s.Subscribe(h); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteToCentral(conn, h, []byte{7}); err != nil {
		t.Fatal(err)
	}
	if got := s.Indications(); len(got) != 1 || got[0].Value[0] != 7 {
		t.Errorf("indications: %+v", got)
	}
	s.Unsubscribe(h)
	s.Disconnect(0x13)

	var kinds []string
	for _, e := range l.events {
		switch e.(type) {
		case peripheral.ConnectionComplete:
			kinds = append(kinds, "connect")
		case peripheral.SubscriptionEnabled:
			kinds = append(kinds, "subscribe")
		case peripheral.SubscriptionDisabled:
			kinds = append(kinds, "unsubscribe")
		case peripheral.DisconnectionComplete:
			kinds = append(kinds, "disconnect")
		}
	}
	want := []string{"connect", "subscribe", "unsubscribe", "disconnect"}
	if len(kinds) != len(want) {
		t.Fatalf("events %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events %v, want %v", kinds, want)
		}
	}
}

func TestCentralAccessChecks(t *testing.T) {
	s, _ := newStack(t)
	svc := &peripheral.StackService{
		Characteristics: []*peripheral.StackCharacteristic{
			{Properties: gatt.PropRead, Value: []byte("const")},
		},
	}
	s.AddService(svc)
	h := svc.Characteristics[0].ValueHandle
	if _, status := s.Read(h); status != gatt.StatusUnlikely {
		t.Errorf("read without connection: %s", status)
	}
	s.Connect("11:22:33:44:55:66")
	if _, status := s.Read(0x99); status != gatt.StatusInvalidHandle {
		t.Errorf("read of unknown handle: %s", status)
	}
	if status := s.Write(h, []byte{1}); status != gatt.StatusWriteNotPermitted {
		t.Errorf("write of constant: %s", status)
	}
	if value, status := s.ReadBlob(h, 2); status != gatt.StatusSuccess || string(value) != "nst" {
		t.Errorf("blob of constant: %q %s", value, status)
	}
}
