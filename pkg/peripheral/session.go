package peripheral

import "github.com/hapble/peripheral/pkg/gatt"

// session tracks the single connected central. conn is zero while disconnected.
type session struct {
	conn gatt.ConnectionHandle
}

// updateCentralConnection moves the session to conn, telling the delegate about every
// transition. Switching directly between two centrals reports the old one as disconnected first,
// so notifications always alternate.
func (m *Manager) updateCentralConnection(conn gatt.ConnectionHandle) {
	if conn == m.session.conn {
		return
	}
	if old := m.session.conn; old != 0 {
		m.session.conn = 0
		logger.Debug("Central 0x%04x disconnected", uint16(old))
		if m.delegate != nil {
			m.delegate.HandleDisconnectedCentral(old)
		}
	}
	if conn == 0 {
		return
	}
	m.session.conn = conn
	m.cache.clear()
	logger.Debug("Central 0x%04x connected", uint16(conn))
	if m.delegate != nil {
		m.delegate.HandleConnectedCentral(conn)
	}
}
