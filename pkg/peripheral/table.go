package peripheral

import (
	"fmt"

	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/protocol"
)

// Slot is the position of a characteristic in the attribute table. Slots are assigned in
// registration order and reused only after RemoveAllServices.
type Slot int

// AttributeHandles are the handles the host stack assigned to one characteristic.
type AttributeHandles struct {
	Slot  Slot
	Value gatt.Handle
	// Instance is the handle of the characteristic's descriptor, zero if it has none.
	Instance gatt.Handle
	// CCCD is zero unless the characteristic supports notifications or indications.
	CCCD gatt.Handle
}

type slotEntry struct {
	characteristic *StackCharacteristic
	descriptor     *StackDescriptor
}

// table is the fixed-capacity slot array. Slots [published, next) form the service being built.
type table struct {
	slots     []slotEntry
	next      int
	published int
}

func newTable(capacity int) table {
	return table{slots: make([]slotEntry, capacity)}
}

func (t *table) reset() {
	for i := range t.slots {
		t.slots[i] = slotEntry{}
	}
	t.next = 0
	t.published = 0
}

// AddCharacteristic registers a characteristic in the next free slot. A non-empty constValue
// makes the characteristic a constant served by the stack; otherwise its value is dynamic and
// every access is routed to the delegate.
func (m *Manager) AddCharacteristic(typ gatt.UUID, properties gatt.Properties, constValue []byte) (Slot, error) {
	t := &m.table
	if t.next == len(t.slots) {
		logger.Error("Attribute table full (%d slots)", len(t.slots))
		return 0, fmt.Errorf("peripheral: add characteristic %s: %w", typ, protocol.ErrOutOfResources)
	}
	logger.Debug("AddCharacteristic %s", typ)

	c := &StackCharacteristic{
		Type:       typ,
		Properties: properties,
	}
	if len(constValue) > 0 {
		c.Value = append([]byte(nil), constValue...)
		c.MaxLength = len(constValue)
	} else {
		c.MaxLength = gatt.MaxAttributeValueLength
		c.OnRead = m.HandleRead
		c.OnWrite = m.HandleWrite
	}

	slot := Slot(t.next)
	t.slots[slot] = slotEntry{characteristic: c}
	t.next++
	return slot, nil
}

// AddDescriptor attaches a constant descriptor to the characteristic added last. Each
// characteristic carries at most one descriptor, its instance id.
func (m *Manager) AddDescriptor(typ gatt.UUID, constValue []byte) (Slot, error) {
	t := &m.table
	if len(constValue) == 0 {
		panic("peripheral: descriptor requires a constant value")
	}
	if t.next == t.published {
		panic("peripheral: descriptor added before its characteristic")
	}
	slot := Slot(t.next - 1)
	e := &t.slots[slot]
	if e.descriptor != nil {
		panic(fmt.Sprintf("peripheral: slot %d already has a descriptor", slot))
	}
	logger.Debug("AddDescriptor %s", typ)

	e.descriptor = &StackDescriptor{Type: typ, Value: append([]byte(nil), constValue...)}
	e.characteristic.Descriptors = []*StackDescriptor{e.descriptor}
	return slot, nil
}

// PublishService submits every characteristic registered since the previous call as one primary
// service and returns the handles the stack assigned, in registration order. The registered
// slots are consumed even if the stack rejects the service.
func (m *Manager) PublishService(typ gatt.UUID) ([]AttributeHandles, error) {
	t := &m.table
	logger.Info("AddService %s", typ)

	entries := t.slots[t.published:t.next]
	svc := &StackService{Type: typ, Characteristics: make([]*StackCharacteristic, 0, len(entries))}
	for _, e := range entries {
		svc.Characteristics = append(svc.Characteristics, e.characteristic)
	}
	first := t.published
	t.published = t.next

	if err := m.stack.AddService(svc); err != nil {
		logger.Error("GattServer addService failed %s", err)
		return nil, fmt.Errorf("peripheral: add service %s: %w", typ, protocol.ErrOutOfResources)
	}

	handles := make([]AttributeHandles, len(entries))
	for i, e := range entries {
		c := e.characteristic
		h := AttributeHandles{Slot: Slot(first + i), Value: c.ValueHandle}
		owned := 0
		if e.descriptor != nil {
			h.Instance = e.descriptor.Handle
			owned = 1
		}
		if c.Properties.Subscribable() && len(c.Descriptors) > owned {
			h.CCCD = c.Descriptors[owned].Handle
		}
		handles[i] = h
	}
	return handles, nil
}

// PublishServices ends registration. Subscription events are dropped until it is called.
func (m *Manager) PublishServices() {
	logger.Info("PublishServices")
	m.published = true
}

// RemoveAllServices stops advertising, resets the GATT server and releases every slot.
func (m *Manager) RemoveAllServices() {
	logger.Info("RemoveAllServices")

	m.advertisingInterval = 0
	m.stopActiveAdvertising()
	if err := m.stack.ResetServer(); err != nil {
		logger.Error("GattServer reset failed %s", err)
	}
	m.table.reset()
}
