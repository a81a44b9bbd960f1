// Package goble runs the peripheral manager on a Linux HCI controller through go-ble.
//
// go-ble delivers connection events and ATT requests on its own goroutines. The Stack hands
// every one of them to the accessory run loop, and ATT request goroutines wait for the run loop
// to produce the authorization reply.
package goble

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hapble/peripheral/internal/log"
	"github.com/hapble/peripheral/pkg/protocol"
)

const (
	// DefaultRoundDuration is how long one advertising round lasts before AdvertisingEnded.
	DefaultRoundDuration = 30 * time.Second
	// DefaultRequestTimeout bounds how long an ATT request waits for the run loop.
	DefaultRequestTimeout = 5 * time.Second
)

var (
	ErrAdapterInvalidID = protocol.NewError("the bluetooth adapter ID is invalid", false)
	ErrUnsupported      = protocol.NewError("the go-ble peripheral stack requires Linux", false)
	ErrNotSubscribed    = protocol.NewError("central is not subscribed", false)
)

var logger = log.New("GoBLE")

// Dispatcher is the run loop the Stack posts events to. *runloop.Loop implements it.
type Dispatcher interface {
	Post(f func()) error
	Do(ctx context.Context, f func()) error
	ScheduleAfter(delay time.Duration, callback func()) (int, error)
	Cancel(id int) bool
}

type Config struct {
	// AdapterID names the HCI controller, for example "hci0". Empty selects hci0.
	AdapterID      string
	RoundDuration  time.Duration
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.RoundDuration <= 0 {
		c.RoundDuration = DefaultRoundDuration
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

// deviceID parses "hciN" (or a bare N) into the HCI device index.
func deviceID(adapter string) (int, error) {
	if adapter == "" {
		return 0, nil
	}
	id, err := strconv.Atoi(strings.TrimPrefix(adapter, "hci"))
	if err != nil || id < 0 {
		return 0, fmt.Errorf("goble: %q: %w", adapter, ErrAdapterInvalidID)
	}
	return id, nil
}

// Advertising intervals are expressed in units of 0.625 ms, between 20 ms and 10.24 s.
const (
	advertisingUnit        = 625 * time.Microsecond
	minAdvertisingInterval = 0x0020
	maxAdvertisingInterval = 0x4000
)

func advertisingInterval(d time.Duration) uint16 {
	units := d / advertisingUnit
	if units < minAdvertisingInterval {
		return minAdvertisingInterval
	}
	if units > maxAdvertisingInterval {
		return maxAdvertisingInterval
	}
	return uint16(units)
}

// AdapterErrorHelpMessage turns a stack initialization failure into advice for the operator.
func AdapterErrorHelpMessage(err error) string {
	return "Failed to initialize BLE adapter: \n\t" + err.Error() + "\n" +
		"The process needs raw HCI access, for example:\n" +
		"\tsudo setcap 'cap_net_raw,cap_net_admin=eip' \"$(which hap-ble-accessory)\"\n" +
		"Stop bluetoothd or power the controller down with 'hciconfig hci0 down' so it is not shared."
}
