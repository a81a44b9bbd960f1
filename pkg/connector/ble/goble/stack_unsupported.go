//go:build !linux

package goble

import (
	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/peripheral"
)

// unsupported fails every operation. The HCI transport go-ble uses in peripheral mode is
// Linux-only.
type unsupported struct {
	loop Dispatcher
}

func New(_ Config, loop Dispatcher) peripheral.Stack {
	return unsupported{loop: loop}
}

func (u unsupported) Init(onComplete func(err error)) {
	if err := u.loop.Post(func() { onComplete(ErrUnsupported) }); err != nil {
		logger.Error("Dropping init completion: %s", err)
	}
}

func (unsupported) SetEventHandler(func(peripheral.Event)) {}
func (unsupported) AddService(*peripheral.StackService) error { return ErrUnsupported }
func (unsupported) ResetServer() error { return ErrUnsupported }
func (unsupported) WriteToCentral(gatt.ConnectionHandle, gatt.Handle, []byte) error { return ErrUnsupported }
func (unsupported) SetAdvertisingParameters(peripheral.AdvertisingParameters) error { return ErrUnsupported }
func (unsupported) SetAdvertisingPayload([]byte) error { return ErrUnsupported }
func (unsupported) SetScanResponse([]byte) error { return ErrUnsupported }
func (unsupported) StartAdvertising() error { return ErrUnsupported }
func (unsupported) StopAdvertising() error { return ErrUnsupported }
func (unsupported) IsAdvertisingActive() bool { return false }
func (unsupported) Shutdown() error { return nil }
