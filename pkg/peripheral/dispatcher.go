package peripheral

import (
	"bytes"
	"fmt"

	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/protocol"
)

// readCache holds the value produced by the last Read Request so that the Read Blob Requests
// of a long read see a consistent value.
type readCache struct {
	attr  gatt.Handle
	size  int
	bytes [gatt.MaxAttributeValueLength]byte
}

func (c *readCache) clear() {
	c.attr = 0
	c.size = 0
	clear(c.bytes[:])
}

// HandleRead serves a read of a dynamic characteristic value. Offset zero asks the delegate for
// a fresh value; a nonzero offset continues the previous read of the same attribute.
//
// Failures are reported to the central with an ATT error and end the session.
func (m *Manager) HandleRead(conn gatt.ConnectionHandle, attr gatt.Handle, offset int) ([]byte, gatt.Status) {
	m.updateCentralConnection(conn)
	if m.delegate == nil {
		logger.Error("(0x%04x) ATT Read Request without delegate.", uint16(attr))
		return nil, gatt.StatusUnlikely
	}

	if offset == 0 {
		logger.Debug("(0x%04x) ATT Read Request.", uint16(attr))

		// The delegate fills the cache in place, so the previous value is gone from here on.
		m.cache.attr, m.cache.size = 0, 0
		n, err := m.delegate.HandleReadRequest(conn, attr, m.cache.bytes[:])
		if err != nil {
			if !protocol.IsOneOf(err, protocol.ErrInvalidState, protocol.ErrOutOfResources) {
				panic(fmt.Sprintf("peripheral: unexpected HandleReadRequest error: %s", err))
			}
			logger.Info("HandleReadRequest failed %s", err)
			m.updateCentralConnection(0)
			return nil, gatt.StatusInsufficientResources
		}
		if n < 0 || n > len(m.cache.bytes) {
			panic(fmt.Sprintf("peripheral: HandleReadRequest returned %d bytes", n))
		}
		m.cache.attr = attr
		m.cache.size = n
		return bytes.Clone(m.cache.bytes[:n]), gatt.StatusSuccess
	}

	logger.Debug("(0x%04x) ATT Read Blob Request.", uint16(attr))

	if m.cache.attr != attr {
		logger.Info("Received Read Blob Request for a different characteristic than prior Read Request.")
		m.updateCentralConnection(0)
		return nil, gatt.StatusRequestNotSupported
	}
	if offset < 0 || offset > m.cache.size {
		logger.Info("Offset %d exceeds the read buffer size %d.", offset, m.cache.size)
		m.updateCentralConnection(0)
		return nil, gatt.StatusInvalidOffset
	}
	return bytes.Clone(m.cache.bytes[offset:m.cache.size]), gatt.StatusSuccess
}

// HandleWrite forwards a write of a dynamic characteristic value to the delegate. A rejected
// write ends the session.
func (m *Manager) HandleWrite(conn gatt.ConnectionHandle, attr gatt.Handle, data []byte) gatt.Status {
	m.updateCentralConnection(conn)
	if m.delegate == nil {
		logger.Error("(0x%04x) ATT Write Request without delegate.", uint16(attr))
		return gatt.StatusUnlikely
	}
	logger.Debug("(0x%04x) ATT Write Request (%d bytes).", uint16(attr), len(data))

	if err := m.delegate.HandleWriteRequest(conn, attr, data); err != nil {
		if !protocol.IsOneOf(err, protocol.ErrInvalidState, protocol.ErrInvalidData) {
			panic(fmt.Sprintf("peripheral: unexpected HandleWriteRequest error: %s", err))
		}
		logger.Error("HandleWriteRequest failed %s", err)
		m.updateCentralConnection(0)
		return gatt.StatusInvalidPDU
	}
	return gatt.StatusSuccess
}
