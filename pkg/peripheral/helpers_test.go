package peripheral_test

import (
	"fmt"
	"testing"

	"github.com/hapble/peripheral/pkg/connector/ble/sim"
	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/peripheral"
)

var (
	serviceType  = gatt.MustParseUUID("0000003E-0000-1000-8000-0026BB765291")
	instanceType = gatt.MustParseUUID("DC46F0FE-81D2-4616-B5D9-6ABDD796939A")
	nameType     = gatt.MustParseUUID("00000023-0000-1000-8000-0026BB765291")
	pairingType  = gatt.MustParseUUID("0000004C-0000-1000-8000-0026BB765291")
)

// recordingDelegate serves values from a map and records connection transitions.
type recordingDelegate struct {
	values   map[gatt.Handle][]byte
	written  map[gatt.Handle][]byte
	readErr  error
	writeErr error
	reads    int
	events   []string
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{
		values:  make(map[gatt.Handle][]byte),
		written: make(map[gatt.Handle][]byte),
	}
}

func (d *recordingDelegate) HandleConnectedCentral(conn gatt.ConnectionHandle) {
	d.events = append(d.events, fmt.Sprintf("connected 0x%04x", uint16(conn)))
}

func (d *recordingDelegate) HandleDisconnectedCentral(conn gatt.ConnectionHandle) {
	d.events = append(d.events, fmt.Sprintf("disconnected 0x%04x", uint16(conn)))
}

func (d *recordingDelegate) HandleReadRequest(_ gatt.ConnectionHandle, attr gatt.Handle, buf []byte) (int, error) {
	d.reads++
	if d.readErr != nil {
		return 0, d.readErr
	}
	return copy(buf, d.values[attr]), nil
}

func (d *recordingDelegate) HandleWriteRequest(_ gatt.ConnectionHandle, attr gatt.Handle, data []byte) error {
	if d.writeErr != nil {
		return d.writeErr
	}
	d.written[attr] = append([]byte(nil), data...)
	return nil
}

func newFixture(t *testing.T, capacity int) (*peripheral.Manager, *sim.Stack, *recordingDelegate) {
	t.Helper()
	stack := sim.New()
	m := peripheral.New(stack, peripheral.Options{Capacity: capacity})
	d := newRecordingDelegate()
	m.SetDelegate(d)
	return m, stack, d
}

// publishPairing publishes one readable, writable, indicating characteristic with an instance id
// and returns its value handle.
func publishPairing(t *testing.T, m *peripheral.Manager) gatt.Handle {
	t.Helper()
	if _, err := m.AddCharacteristic(pairingType, gatt.PropRead|gatt.PropWrite|gatt.PropIndicate, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddDescriptor(instanceType, []byte{0x01, 0x00}); err != nil {
		t.Fatal(err)
	}
	handles, err := m.PublishService(serviceType)
	if err != nil {
		t.Fatal(err)
	}
	m.PublishServices()
	return handles[0].Value
}

func expectPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	f()
}

func expectEvents(t *testing.T, d *recordingDelegate, want ...string) {
	t.Helper()
	if len(d.events) != len(want) {
		t.Fatalf("delegate saw %q, want %q", d.events, want)
	}
	for i := range want {
		if d.events[i] != want[i] {
			t.Fatalf("delegate saw %q, want %q", d.events, want)
		}
	}
}
