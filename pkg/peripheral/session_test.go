package peripheral_test

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/peripheral"
)

func TestSessionTransitions(t *testing.T) {
	m, _, d := newFixture(t, 4)
	m.PublishServices()

	m.HandleEvent(peripheral.SubscriptionEnabled{Conn: 0x40, Attr: 3})
	m.HandleEvent(peripheral.SubscriptionEnabled{Conn: 0x40, Attr: 6})
	m.HandleEvent(peripheral.SubscriptionEnabled{Conn: 0x41, Attr: 3})
	m.HandleEvent(peripheral.DisconnectionComplete{Conn: 0x41, Reason: 0x13})
	m.HandleEvent(peripheral.DisconnectionComplete{Conn: 0x41, Reason: 0x13})

	expectEvents(t, d,
		"connected 0x0040",
		"disconnected 0x0040",
		"connected 0x0041",
		"disconnected 0x0041")
}

func TestConnectionCompleteConnects(t *testing.T) {
	m, _, d := newFixture(t, 4)
	m.HandleEvent(peripheral.ConnectionComplete{Conn: 0x40, Peer: "11:22:33:44:55:66"})
	if m.Connection() != 0x40 {
		t.Errorf("connected to 0x%04x after link establishment", uint16(m.Connection()))
	}
	m.HandleEvent(peripheral.DisconnectionComplete{Conn: 0x40, Reason: 0x13})
	expectEvents(t, d, "connected 0x0040", "disconnected 0x0040")
}

func TestFailedConnectionCompleteIsIgnored(t *testing.T) {
	m, _, d := newFixture(t, 4)
	m.HandleEvent(peripheral.ConnectionComplete{Peer: "11:22:33:44:55:66", Status: 0x3e})
	if m.Connection() != 0 || len(d.events) != 0 {
		t.Errorf("failed link establishment started a session: %q", d.events)
	}
}

func TestConnectionCompleteReplacesCentral(t *testing.T) {
	m, _, d := newFixture(t, 4)
	m.HandleEvent(peripheral.ConnectionComplete{Conn: 0x40})
	m.HandleEvent(peripheral.ConnectionComplete{Conn: 0x41})
	expectEvents(t, d, "connected 0x0040", "disconnected 0x0040", "connected 0x0041")
}

func TestSubscriptionsIgnoredBeforePublish(t *testing.T) {
	m, _, d := newFixture(t, 4)
	m.HandleEvent(peripheral.SubscriptionEnabled{Conn: 0x40, Attr: 3})
	if len(d.events) != 0 {
		t.Fatalf("subscription before PublishServices was honoured: %q", d.events)
	}
	m.PublishServices()
	m.HandleEvent(peripheral.SubscriptionEnabled{Conn: 0x40, Attr: 3})
	m.HandleEvent(peripheral.SubscriptionDisabled{Conn: 0x40, Attr: 3})
	expectEvents(t, d, "connected 0x0040", "disconnected 0x0040")
}

func TestCancelCentralConnection(t *testing.T) {
	m, _, d := newFixture(t, 4)
	m.CancelCentralConnection(0x40)
	m.HandleRead(0x40, 0x99, 0)
	m.CancelCentralConnection(0x40)
	m.CancelCentralConnection(0x40)
	expectEvents(t, d, "connected 0x0040", "disconnected 0x0040")
}

func TestSessionNotificationsAlternate(t *testing.T) {
	m, _, d := newFixture(t, 4)
	d.values[3] = []byte{1, 2, 3}
	m.PublishServices()
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		conn := gatt.ConnectionHandle(0x40 + r.Intn(3))
		switch r.Intn(6) {
		case 0:
			m.HandleEvent(peripheral.ConnectionComplete{Conn: conn})
		case 1:
			m.HandleEvent(peripheral.DisconnectionComplete{Conn: conn})
		case 2:
			m.HandleEvent(peripheral.SubscriptionEnabled{Conn: conn, Attr: 3})
		case 3:
			m.HandleEvent(peripheral.SubscriptionDisabled{Conn: conn, Attr: 3})
		case 4:
			m.HandleRead(conn, 3, r.Intn(2))
		case 5:
			m.CancelCentralConnection(conn)
		}
	}

	var current string
	for i, e := range d.events {
		state, handle, _ := strings.Cut(e, " ")
		switch {
		case i%2 == 0 && state == "connected":
			current = handle
		case i%2 == 1 && state == "disconnected" && handle == current:
		default:
			t.Fatalf("event %d %q breaks alternation: %q", i, e, d.events[max(0, i-3):i+1])
		}
	}
	if connected := len(d.events)%2 == 1; connected != (m.Connection() != 0) {
		t.Errorf("final state disagrees with notifications")
	}
	if len(d.events) == 0 {
		t.Fatal("no transitions exercised")
	}
	if m.Connection() != 0 && fmt.Sprintf("0x%04x", uint16(m.Connection())) != current {
		t.Errorf("connected to 0x%04x, last notification was %s", uint16(m.Connection()), current)
	}
}
