package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hapble/peripheral/pkg/connector/ble/sim"
	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/kvstore"
	"github.com/hapble/peripheral/pkg/peripheral"
)

var (
	ErrCommandLineArgs    = errors.New("invalid command line arguments")
	ErrUnknownCommand     = errors.New("unrecognized command")
	ErrUnknownAttribute   = errors.New("unknown characteristic")
	ErrRequiresSimulation = errors.New("command requires the simulated stack (-simulate)")
)

type Argument struct {
	name string
	help string
}

// Session is the state shell commands act on. Handlers run on the run loop.
type Session struct {
	accessory *Accessory
	manager   *peripheral.Manager
	store     kvstore.Store
	stack     peripheral.Stack
	interval  time.Duration
	out       io.Writer
}

// central returns the simulated stack, which lets the shell act as the central.
func (s *Session) central() (*sim.Stack, error) {
	if central, ok := s.stack.(*sim.Stack); ok {
		return central, nil
	}
	return nil, ErrRequiresSimulation
}

func (s *Session) valueHandle(name string) (gatt.Handle, error) {
	h, ok := s.accessory.Handle(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
	}
	return h.Value, nil
}

type Handler func(s *Session, args map[string]string) error

type Command struct {
	help      string
	simulated bool // True if the command plays the central and needs the simulated stack
	args      []Argument
	optional  []Argument
	handler   Handler
}

func (c *Command) Usage(w io.Writer, name string) {
	fmt.Fprintf(w, "Usage: %s", name)
	maxLength := 0
	for _, arg := range c.args {
		fmt.Fprintf(w, " %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Fprintf(w, " [")
	}
	for _, arg := range c.optional {
		fmt.Fprintf(w, " %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Fprintf(w, " ]")
	}
	fmt.Fprintf(w, "\n%s\n", c.help)
	maxLength++
	for _, arg := range c.args {
		fmt.Fprintf(w, "    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
	for _, arg := range c.optional {
		fmt.Fprintf(w, "    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
}

func parseByte(value string) (uint8, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(value), "0x"), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: expected a hex byte, got '%s'", ErrCommandLineArgs, value)
	}
	return uint8(n), nil
}

func parseHex(value string) ([]byte, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(value), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCommandLineArgs, err)
	}
	return data, nil
}

func parseDomainKey(args map[string]string) (kvstore.Domain, kvstore.Key, error) {
	domain, err := parseByte(args["DOMAIN"])
	if err != nil {
		return 0, 0, err
	}
	key, err := parseByte(args["KEY"])
	if err != nil {
		return 0, 0, err
	}
	return kvstore.Domain(domain), kvstore.Key(key), nil
}

func parseOnOff(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected on or off, got '%s'", ErrCommandLineArgs, value)
}

func attError(st gatt.Status) error {
	if st != gatt.StatusSuccess {
		return fmt.Errorf("att error: %s", st)
	}
	return nil
}

var (
	domainArg = Argument{name: "DOMAIN", help: "Key-value store domain (hex byte)"}
	keyArg    = Argument{name: "KEY", help: "Key within the domain (hex byte)"}
	charArg   = Argument{name: "CHARACTERISTIC", help: "Characteristic name (identify, name, on, ...)"}
)

var commands = map[string]*Command{
	"status": &Command{
		help: "Show advertising, connection and lightbulb state",
		handler: func(s *Session, args map[string]string) error {
			fmt.Fprintf(s.out, "Name:        %s\n", s.manager.DeviceName())
			fmt.Fprintf(s.out, "Address:     %s\n", s.manager.DeviceAddress())
			fmt.Fprintf(s.out, "Advertising: %s\n", s.manager.AdvertisingInterval())
			fmt.Fprintf(s.out, "Connection:  0x%04x\n", uint16(s.manager.Connection()))
			fmt.Fprintf(s.out, "Lightbulb:   %s\n", onOff(s.accessory.On()))
			fmt.Fprintf(s.out, "Timers:      %d\n", s.accessory.timers.InUse())
			return nil
		},
	},
	"advertise": &Command{
		help:     "Start advertising",
		optional: []Argument{Argument{name: "INTERVAL", help: "Advertising interval (for example 100ms)"}},
		handler: func(s *Session, args map[string]string) error {
			interval := s.interval
			if value, ok := args["INTERVAL"]; ok {
				var err error
				if interval, err = time.ParseDuration(value); err != nil {
					return fmt.Errorf("%w: %s", ErrCommandLineArgs, err)
				}
				if interval <= 0 {
					return fmt.Errorf("%w: interval must be positive", ErrCommandLineArgs)
				}
			}
			return s.accessory.Advertise(interval)
		},
	},
	"stop": &Command{
		help: "Stop advertising",
		handler: func(s *Session, args map[string]string) error {
			s.manager.StopAdvertising()
			return nil
		},
	},
	"light": &Command{
		help: "Turn the lightbulb on or off",
		args: []Argument{Argument{name: "STATE", help: "on or off"}},
		handler: func(s *Session, args map[string]string) error {
			on, err := parseOnOff(args["STATE"])
			if err != nil {
				return err
			}
			return s.accessory.SetOn(on)
		},
	},
	"indicate": &Command{
		help: "Send the lightbulb state to the connected central",
		handler: func(s *Session, args map[string]string) error {
			return s.accessory.Indicate()
		},
	},
	"disconnect": &Command{
		help: "Forget the connected central",
		handler: func(s *Session, args map[string]string) error {
			s.manager.CancelCentralConnection(s.manager.Connection())
			return nil
		},
	},
	"timer": &Command{
		help: "Toggle the lightbulb after a delay",
		args: []Argument{Argument{name: "DELAY", help: "Delay (for example 5s)"}},
		handler: func(s *Session, args map[string]string) error {
			delay, err := time.ParseDuration(args["DELAY"])
			if err != nil {
				return fmt.Errorf("%w: %s", ErrCommandLineArgs, err)
			}
			ref, err := s.accessory.ToggleAfter(delay)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Registered %s\n", ref)
			return nil
		},
	},
	"kv-get": &Command{
		help: "Print a key-value store item",
		args: []Argument{domainArg, keyArg},
		handler: func(s *Session, args map[string]string) error {
			domain, key, err := parseDomainKey(args)
			if err != nil {
				return err
			}
			value, found, err := s.store.Get(domain, key)
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(s.out, "Not found")
				return nil
			}
			fmt.Fprintf(s.out, "%02x\n", value)
			return nil
		},
	},
	"kv-set": &Command{
		help: "Write a key-value store item",
		args: []Argument{domainArg, keyArg, Argument{name: "VALUE", help: "Value (hex)"}},
		handler: func(s *Session, args map[string]string) error {
			domain, key, err := parseDomainKey(args)
			if err != nil {
				return err
			}
			value, err := parseHex(args["VALUE"])
			if err != nil {
				return err
			}
			return s.store.Set(domain, key, value)
		},
	},
	"kv-remove": &Command{
		help: "Delete a key-value store item",
		args: []Argument{domainArg, keyArg},
		handler: func(s *Session, args map[string]string) error {
			domain, key, err := parseDomainKey(args)
			if err != nil {
				return err
			}
			return s.store.Remove(domain, key)
		},
	},
	"kv-list": &Command{
		help: "List the keys of a domain",
		args: []Argument{domainArg},
		handler: func(s *Session, args map[string]string) error {
			domain, err := parseByte(args["DOMAIN"])
			if err != nil {
				return err
			}
			return s.store.Enumerate(kvstore.Domain(domain), func(key kvstore.Key) (bool, error) {
				fmt.Fprintf(s.out, "%02x\n", uint8(key))
				return true, nil
			})
		},
	},
	"kv-purge": &Command{
		help: "Delete every item of a domain",
		args: []Argument{domainArg},
		handler: func(s *Session, args map[string]string) error {
			domain, err := parseByte(args["DOMAIN"])
			if err != nil {
				return err
			}
			return s.store.PurgeDomain(kvstore.Domain(domain))
		},
	},
	"central-connect": &Command{
		help:      "Connect a simulated central",
		simulated: true,
		optional:  []Argument{Argument{name: "PEER", help: "Central address"}},
		handler: func(s *Session, args map[string]string) error {
			central, err := s.central()
			if err != nil {
				return err
			}
			peer, ok := args["PEER"]
			if !ok {
				peer = "11:22:33:44:55:66"
			}
			conn, err := central.Connect(peer)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Connection 0x%04x\n", uint16(conn))
			return nil
		},
	},
	"central-disconnect": &Command{
		help:      "Drop the simulated central's link",
		simulated: true,
		handler: func(s *Session, args map[string]string) error {
			central, err := s.central()
			if err != nil {
				return err
			}
			// Remote user terminated connection.
			return central.Disconnect(0x13)
		},
	},
	"central-subscribe": &Command{
		help:      "Enable indications on a characteristic",
		simulated: true,
		args:      []Argument{charArg},
		handler: func(s *Session, args map[string]string) error {
			central, err := s.central()
			if err != nil {
				return err
			}
			h, err := s.valueHandle(args["CHARACTERISTIC"])
			if err != nil {
				return err
			}
			return central.Subscribe(h)
		},
	},
	"central-unsubscribe": &Command{
		help:      "Disable indications on a characteristic",
		simulated: true,
		args:      []Argument{charArg},
		handler: func(s *Session, args map[string]string) error {
			central, err := s.central()
			if err != nil {
				return err
			}
			h, err := s.valueHandle(args["CHARACTERISTIC"])
			if err != nil {
				return err
			}
			return central.Unsubscribe(h)
		},
	},
	"central-read": &Command{
		help:      "Read a characteristic as the central",
		simulated: true,
		args:      []Argument{charArg},
		handler: func(s *Session, args map[string]string) error {
			central, err := s.central()
			if err != nil {
				return err
			}
			h, err := s.valueHandle(args["CHARACTERISTIC"])
			if err != nil {
				return err
			}
			value, st := central.ReadLong(h)
			if err := attError(st); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "%02x %q\n", value, value)
			return nil
		},
	},
	"central-write": &Command{
		help:      "Write a characteristic as the central",
		simulated: true,
		args:      []Argument{charArg, Argument{name: "VALUE", help: "Value (hex)"}},
		handler: func(s *Session, args map[string]string) error {
			central, err := s.central()
			if err != nil {
				return err
			}
			h, err := s.valueHandle(args["CHARACTERISTIC"])
			if err != nil {
				return err
			}
			value, err := parseHex(args["VALUE"])
			if err != nil {
				return err
			}
			return attError(central.Write(h, value))
		},
	},
	"central-indications": &Command{
		help:      "List the values sent to the simulated central",
		simulated: true,
		handler: func(s *Session, args map[string]string) error {
			central, err := s.central()
			if err != nil {
				return err
			}
			for _, ind := range central.Indications() {
				fmt.Fprintf(s.out, "0x%04x 0x%04x %02x\n", uint16(ind.Conn), uint16(ind.Attr), ind.Value)
			}
			return nil
		},
	},
}

func commandNames() []string {
	var names []string
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// execute runs args against s. It must be called on the run loop.
func execute(s *Session, args []string) error {
	if len(args) == 0 {
		return errors.New("missing COMMAND")
	}
	info, ok := commands[args[0]]
	if !ok {
		return ErrUnknownCommand
	}
	if info.simulated {
		if _, err := s.central(); err != nil {
			return err
		}
	}
	if len(args)-1 < len(info.args) || len(args)-1 > len(info.args)+len(info.optional) {
		writeErr("Invalid number of command line arguments: %d (%d required, %d optional).", len(args)-1, len(info.args), len(info.optional))
		return ErrCommandLineArgs
	}
	keywords := make(map[string]string)
	for i, argInfo := range info.args {
		keywords[argInfo.name] = args[i+1]
	}
	index := len(info.args) + 1
	for _, argInfo := range info.optional {
		if index >= len(args) {
			break
		}
		keywords[argInfo.name] = args[index]
		index++
	}
	return info.handler(s, keywords)
}
