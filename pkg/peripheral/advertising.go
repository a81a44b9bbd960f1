package peripheral

import "time"

// StartAdvertising advertises as a connectable undirected peripheral with the given payloads.
// Advertising is renewed after every round until StopAdvertising or RemoveAllServices.
func (m *Manager) StartAdvertising(interval time.Duration, advertisingData, scanResponse []byte) {
	if interval <= 0 {
		panic("peripheral: advertising interval must be positive")
	}
	if len(advertisingData) == 0 {
		panic("peripheral: empty advertising payload")
	}
	logger.Info("StartAdvertising %s", interval)

	// No renewal while the payload changes.
	m.advertisingInterval = 0
	m.stopActiveAdvertising()

	if err := m.stack.SetAdvertisingPayload(advertisingData); err != nil {
		logger.Error("Gap setAdvertisingPayload failed %s", err)
	}
	if len(scanResponse) > 0 {
		if err := m.stack.SetScanResponse(scanResponse); err != nil {
			logger.Error("Gap setAdvertisingScanResponse failed %s", err)
		}
	}
	m.beginAdvertising(interval)
	m.advertisingInterval = interval
}

// StopAdvertising stops advertising and disables renewal.
func (m *Manager) StopAdvertising() {
	logger.Info("StopAdvertising")
	m.advertisingInterval = 0
	m.stopActiveAdvertising()
}

// AdvertisingInterval returns the interval advertising is renewed with, or zero once stopped.
func (m *Manager) AdvertisingInterval() time.Duration {
	return m.advertisingInterval
}

func (m *Manager) advertisingEnded() {
	if m.advertisingInterval == 0 {
		logger.Debug("Advertising ended")
		return
	}
	if m.stack.IsAdvertisingActive() {
		logger.Debug("Advertising ended while already restarted")
		return
	}
	logger.Debug("Renewing advertising")
	m.beginAdvertising(m.advertisingInterval)
}

func (m *Manager) beginAdvertising(interval time.Duration) {
	params := AdvertisingParameters{Type: AdvertisingConnectableUndirected, Interval: interval}
	if err := m.stack.SetAdvertisingParameters(params); err != nil {
		logger.Error("Gap setAdvertisingParameters failed %s", err)
	}
	if err := m.stack.StartAdvertising(); err != nil {
		logger.Error("Gap startAdvertising failed %s", err)
	}
}

func (m *Manager) stopActiveAdvertising() {
	if !m.stack.IsAdvertisingActive() {
		return
	}
	if err := m.stack.StopAdvertising(); err != nil {
		logger.Error("Gap stopAdvertising failed %s", err)
	}
}
