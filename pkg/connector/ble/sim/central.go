package sim

import (
	"fmt"

	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/peripheral"
	"github.com/hapble/peripheral/pkg/protocol"
)

// Connect establishes a link with a central at peer. Connecting ends the advertising round.
func (s *Stack) Connect(peer string) (gatt.ConnectionHandle, error) {
	if s.shutdown {
		return 0, ErrShutdown
	}
	if s.conn != 0 {
		return 0, fmt.Errorf("sim: central 0x%04x already connected: %w", uint16(s.conn), protocol.ErrInvalidState)
	}
	s.conn = s.nextConn
	s.nextConn++
	s.emit(peripheral.ConnectionComplete{Conn: s.conn, Peer: peer})
	if s.advertising {
		s.advertising = false
		s.emit(peripheral.AdvertisingEnded{})
	}
	return s.conn, nil
}

// FailConnect reports a failed link establishment with the given HCI status.
func (s *Stack) FailConnect(peer string, status uint8) {
	s.emit(peripheral.ConnectionComplete{Peer: peer, Status: status})
}

// Disconnect drops the link with the connected central.
func (s *Stack) Disconnect(reason uint8) error {
	if s.conn == 0 {
		return ErrNotConnected
	}
	conn := s.conn
	s.conn = 0
	s.subscriptions = make(map[gatt.Handle]bool)
	s.emit(peripheral.DisconnectionComplete{Conn: conn, Reason: reason})
	return nil
}

func (s *Stack) subscribable(h gatt.Handle) error {
	if s.conn == 0 {
		return ErrNotConnected
	}
	c, ok := s.values[h]
	if !ok {
		return fmt.Errorf("sim: 0x%04x is not a value handle: %w", uint16(h), protocol.ErrInvalidData)
	}
	if !c.Properties.Subscribable() {
		return fmt.Errorf("sim: 0x%04x does not support updates: %w", uint16(h), protocol.ErrInvalidData)
	}
	return nil
}

// Subscribe enables indications on the characteristic whose value handle is h.
func (s *Stack) Subscribe(h gatt.Handle) error {
	if err := s.subscribable(h); err != nil {
		return err
	}
	if s.subscriptions[h] {
		return nil
	}
	s.subscriptions[h] = true
	s.emit(peripheral.SubscriptionEnabled{Conn: s.conn, Attr: h})
	return nil
}

func (s *Stack) Unsubscribe(h gatt.Handle) error {
	if err := s.subscribable(h); err != nil {
		return err
	}
	if !s.subscriptions[h] {
		return nil
	}
	delete(s.subscriptions, h)
	s.emit(peripheral.SubscriptionDisabled{Conn: s.conn, Attr: h})
	return nil
}

// ReadBlob issues a Read Request (offset zero) or Read Blob Request for the value at h.
func (s *Stack) ReadBlob(h gatt.Handle, offset int) ([]byte, gatt.Status) {
	if s.conn == 0 {
		return nil, gatt.StatusUnlikely
	}
	c, ok := s.values[h]
	if !ok {
		return nil, gatt.StatusInvalidHandle
	}
	if !c.Properties.Has(gatt.PropRead) {
		return nil, gatt.StatusReadNotPermitted
	}
	if !c.Dynamic() {
		if offset > len(c.Value) {
			return nil, gatt.StatusInvalidOffset
		}
		return append([]byte(nil), c.Value[offset:]...), gatt.StatusSuccess
	}
	return c.OnRead(s.conn, h, offset)
}

func (s *Stack) Read(h gatt.Handle) ([]byte, gatt.Status) {
	return s.ReadBlob(h, 0)
}

// ReadLong reads the value at h the way a central does: a Read Request followed by Read Blob
// Requests while each response fills the MTU.
func (s *Stack) ReadLong(h gatt.Handle) ([]byte, gatt.Status) {
	chunk := s.mtu - 1
	var value []byte
	for {
		data, status := s.ReadBlob(h, len(value))
		if status != gatt.StatusSuccess {
			return nil, status
		}
		if len(data) > chunk {
			data = data[:chunk]
		}
		value = append(value, data...)
		if len(data) < chunk {
			return value, gatt.StatusSuccess
		}
	}
}

// Write issues a Write Request for the value at h.
func (s *Stack) Write(h gatt.Handle, data []byte) gatt.Status {
	if s.conn == 0 {
		return gatt.StatusUnlikely
	}
	c, ok := s.values[h]
	if !ok {
		return gatt.StatusInvalidHandle
	}
	if !c.Dynamic() || c.Properties&(gatt.PropWrite|gatt.PropWriteWithoutResponse) == 0 {
		return gatt.StatusWriteNotPermitted
	}
	if len(data) > c.MaxLength {
		return gatt.StatusInvalidPDU
	}
	return c.OnWrite(s.conn, h, data)
}
