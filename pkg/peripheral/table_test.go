package peripheral_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/peripheral"
	"github.com/hapble/peripheral/pkg/protocol"
)

func TestPublishServiceHandlesFollowRegistrationOrder(t *testing.T) {
	m, stack, _ := newFixture(t, 8)

	props := []gatt.Properties{
		gatt.PropRead,
		gatt.PropRead | gatt.PropWrite | gatt.PropIndicate,
		gatt.PropRead | gatt.PropNotify,
		gatt.PropWrite,
	}
	for i, p := range props {
		slot, err := m.AddCharacteristic(gatt.UUID16(uint16(0x2a00+i)), p, nil)
		if err != nil {
			t.Fatal(err)
		}
		if slot != peripheral.Slot(i) {
			t.Fatalf("characteristic %d got slot %d", i, slot)
		}
		if i%2 == 0 {
			if _, err := m.AddDescriptor(instanceType, []byte{byte(i), 0}); err != nil {
				t.Fatal(err)
			}
		}
	}

	handles, err := m.PublishService(serviceType)
	if err != nil {
		t.Fatal(err)
	}
	want := []peripheral.AttributeHandles{
		{Slot: 0, Value: 3, Instance: 4},
		{Slot: 1, Value: 6, CCCD: 7},
		{Slot: 2, Value: 9, Instance: 10, CCCD: 11},
		{Slot: 3, Value: 13},
	}
	if len(handles) != len(want) {
		t.Fatalf("got %d handles, want %d", len(handles), len(want))
	}
	for i := range want {
		if handles[i] != want[i] {
			t.Errorf("characteristic %d: got %+v, want %+v", i, handles[i], want[i])
		}
	}
	if n := len(stack.Services()); n != 1 {
		t.Fatalf("stack holds %d services", n)
	}
	if c, _ := stack.Characteristic(3); c.OnRead == nil || c.MaxLength != gatt.MaxAttributeValueLength {
		t.Errorf("dynamic characteristic not wired for authorization")
	}
}

func TestConstantCharacteristic(t *testing.T) {
	m, stack, d := newFixture(t, 4)
	if _, err := m.AddCharacteristic(nameType, gatt.PropRead, []byte("Lamp")); err != nil {
		t.Fatal(err)
	}
	handles, err := m.PublishService(serviceType)
	if err != nil {
		t.Fatal(err)
	}
	c, ok := stack.Characteristic(handles[0].Value)
	if !ok || c.Dynamic() || c.OnRead != nil {
		t.Fatalf("constant characteristic must bypass authorization")
	}
	if _, err := stack.Connect("11:22:33:44:55:66"); err != nil {
		t.Fatal(err)
	}
	value, status := stack.Read(handles[0].Value)
	if status != gatt.StatusSuccess || !bytes.Equal(value, []byte("Lamp")) {
		t.Errorf("read constant: %q %s", value, status)
	}
	if d.reads != 0 {
		t.Errorf("delegate consulted for a constant value")
	}
}

func TestTableCapacity(t *testing.T) {
	m, stack, d := newFixture(t, 3)
	for i := 0; i < 3; i++ {
		if _, err := m.AddCharacteristic(gatt.UUID16(uint16(0x2a00+i)), gatt.PropRead, nil); err != nil {
			t.Fatal(err)
		}
	}
	_, err := m.AddCharacteristic(nameType, gatt.PropRead, nil)
	if !errors.Is(err, protocol.ErrOutOfResources) {
		t.Fatalf("expected ErrOutOfResources, got %v", err)
	}
	if !protocol.ShouldRetry(err) {
		t.Errorf("table exhaustion should be temporary")
	}

	handles, err := m.PublishService(serviceType)
	if err != nil {
		t.Fatal(err)
	}
	if len(handles) != 3 {
		t.Fatalf("expected the 3 registered slots to survive, got %d", len(handles))
	}
	stack.Connect("11:22:33:44:55:66")
	d.values[handles[2].Value] = []byte{0x42}
	if value, status := stack.Read(handles[2].Value); status != gatt.StatusSuccess || !bytes.Equal(value, []byte{0x42}) {
		t.Errorf("read after capacity error: %x %s", value, status)
	}
}

func TestPublishServiceFailureAdvancesBoundary(t *testing.T) {
	m, stack, _ := newFixture(t, 4)
	m.AddCharacteristic(nameType, gatt.PropRead, nil)
	stack.FailAddService(errors.New("no room"))
	handles, err := m.PublishService(serviceType)
	if !errors.Is(err, protocol.ErrOutOfResources) || handles != nil {
		t.Fatalf("expected ErrOutOfResources, got %v %v", handles, err)
	}

	slot, _ := m.AddCharacteristic(pairingType, gatt.PropRead, nil)
	if slot != 1 {
		t.Fatalf("failed publish must not release slots, got slot %d", slot)
	}
	handles, err = m.PublishService(serviceType)
	if err != nil {
		t.Fatal(err)
	}
	if len(handles) != 1 || handles[0].Slot != 1 {
		t.Errorf("second service must only hold the new slot: %+v", handles)
	}
}

func TestRemoveAllServicesReusesSlotZero(t *testing.T) {
	m, stack, _ := newFixture(t, 2)
	m.AddCharacteristic(nameType, gatt.PropRead, nil)
	m.AddCharacteristic(pairingType, gatt.PropRead, nil)
	if _, err := m.PublishService(serviceType); err != nil {
		t.Fatal(err)
	}

	m.RemoveAllServices()
	if len(stack.Services()) != 0 {
		t.Errorf("GATT server not reset")
	}
	slot, err := m.AddCharacteristic(pairingType, gatt.PropRead|gatt.PropNotify, nil)
	if err != nil || slot != 0 {
		t.Fatalf("expected slot 0 after reset, got %d %v", slot, err)
	}
	handles, err := m.PublishService(serviceType)
	if err != nil {
		t.Fatal(err)
	}
	if handles[0] != (peripheral.AttributeHandles{Slot: 0, Value: 3, CCCD: 4}) {
		t.Errorf("unexpected handles after reset: %+v", handles[0])
	}
	if _, err := m.AddCharacteristic(nameType, gatt.PropRead, nil); err != nil {
		t.Errorf("full capacity must be available after reset: %s", err)
	}
}

func TestDescriptorPreconditions(t *testing.T) {
	m, _, _ := newFixture(t, 4)
	expectPanic(t, "descriptor before characteristic", func() {
		m.AddDescriptor(instanceType, []byte{1})
	})
	m.AddCharacteristic(nameType, gatt.PropRead, nil)
	expectPanic(t, "empty descriptor", func() {
		m.AddDescriptor(instanceType, nil)
	})
	if slot, err := m.AddDescriptor(instanceType, []byte{1}); err != nil || slot != 0 {
		t.Fatalf("AddDescriptor: %d %v", slot, err)
	}
	expectPanic(t, "second descriptor", func() {
		m.AddDescriptor(instanceType, []byte{2})
	})
	m.PublishService(serviceType)
	expectPanic(t, "descriptor after publish", func() {
		m.AddDescriptor(instanceType, []byte{3})
	})
}
