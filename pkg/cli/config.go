/*
Package cli facilitates building command-line accessories on top of the peripheral manager. It
defines a [Config] type that can be used to register common command-line flags (using the Golang
flag package) and environment variable equivalents.

The package uses [keyring]'s platform-agnostic interface for the accessory's persistent key-value
store, so pairings and configuration numbers live in an OS-dependent credential store.

# Examples

	config, err := NewConfig(FlagAll)
	if err != nil {
		panic(err)
	}
	config.RegisterCommandLineFlags() // Adds command-line flags for the adapter, keyring, etc.
	flag.Parse()
	config.ReadFromEnvironment()      // Fills in missing fields using environment variables

	loop := runloop.New(0)
	stack := config.Stack(loop) // Simulated or go-ble host stack, depending on config.Simulate
	store, err := config.OpenStore()
	if err != nil {
		panic(err)
	}

Use a [Flag] mask to control which [Config] fields are populated. If FlagStore is not set,
[Config.OpenStore] returns an in-memory store.
*/
package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hapble/peripheral/internal/log"
	"github.com/hapble/peripheral/pkg/connector/ble/goble"
	"github.com/hapble/peripheral/pkg/connector/ble/sim"
	"github.com/hapble/peripheral/pkg/kvstore"
	"github.com/hapble/peripheral/pkg/peripheral"
	"github.com/hapble/peripheral/pkg/runloop"

	"github.com/99designs/keyring"
)

// Environment variable names used are used by [Config.ReadFromEnvironment] to set common parameters.
const (
	EnvDeviceName          = "HAP_BLE_DEVICE_NAME"
	EnvAdapter             = "HAP_BLE_ADAPTER"
	EnvCapacity            = "HAP_BLE_CAPACITY"
	EnvAdvertisingInterval = "HAP_BLE_ADVERTISING_INTERVAL"
	EnvSimulate            = "HAP_BLE_SIMULATE"
	EnvStoreRoot           = "HAP_BLE_KV_ROOT"
	EnvKeyringType         = "HAP_BLE_KEYRING_TYPE"
	EnvKeyringPass         = "HAP_BLE_KEYRING_PASSWORD"
	EnvKeyringPath         = "HAP_BLE_KEYRING_PATH"
	EnvKeyringDebug        = "HAP_BLE_KEYRING_DEBUG"
)

const (
	DefaultDeviceName          = "HAP BLE Accessory"
	DefaultAdvertisingInterval = 20 * time.Millisecond
	DefaultStoreRoot           = "/kv/"
)

// Flag controls what options should be scanned from the command line and/or environment variables.
type Flag int

func (f Flag) isSet(other Flag) bool {
	return (f & other) == other
}

const (
	FlagDevice Flag = 1 // Enable device name, capacity and advertising options.
	FlagBLE    Flag = 2 // Enable host stack options (adapter, simulation).
	FlagStore  Flag = 4 // Enable key-value store and keyring options.
	FlagAll    Flag = FlagDevice | FlagBLE | FlagStore
)

var (
	ErrInvalidCapacity = errors.New("attribute capacity must be positive")
	ErrInvalidInterval = errors.New("advertising interval must be positive")
)

// Config fields determine how the accessory reaches its host stack and where it keeps state.
type Config struct {
	Flags               Flag // Controls which set of environment variables/CLI flags to use.
	DeviceName          string
	AdapterID           string // HCI controller, for example hci0.
	Capacity            int    // Number of attribute table slots.
	AdvertisingInterval time.Duration
	Simulate            bool   // Use the in-memory host stack instead of an HCI controller.
	StoreRoot           string // Prefix of every key-value store item in the keyring.
	Backend             keyring.Config
	BackendType         backendType
	Debug               bool // Enable keyring debug messages

	password *string
}

func NewConfig(flags Flag) (*Config, error) {
	c := Config{
		Flags: flags,
		Backend: keyring.Config{
			ServiceName:              keyringServiceName,
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
	}
	c.BackendType = backendType{&c}
	c.Backend.KeychainPasswordFunc = c.getPassword
	c.Backend.FilePasswordFunc = c.getPassword

	return &c, nil
}

// RegisterCommandLineFlags adds the options selected by c.Flags to the global flag set.
func (c *Config) RegisterCommandLineFlags() {
	c.RegisterFlags(flag.CommandLine)
}

// RegisterFlags adds the options selected by c.Flags to fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	if c.Flags.isSet(FlagDevice) {
		fs.StringVar(&c.DeviceName, "name", "", "Advertised device `name`. Defaults to $HAP_BLE_DEVICE_NAME.")
		fs.IntVar(&c.Capacity, "capacity", 0, "Number of attribute table `slots`. Defaults to $HAP_BLE_CAPACITY.")
		fs.DurationVar(&c.AdvertisingInterval, "adv-interval", 0, "Advertising `interval`. Defaults to $HAP_BLE_ADVERTISING_INTERVAL.")
	}
	if c.Flags.isSet(FlagBLE) {
		fs.BoolVar(&c.Simulate, "simulate", false, "Use a simulated host stack instead of a Bluetooth controller")
		c.registerFlagsOsSpecific(fs)
	}
	if c.Flags.isSet(FlagStore) {
		var names []string
		for _, name := range keyring.AvailableBackends() {
			names = append(names, string(name))
		}
		sort.Strings(names)
		fs.StringVar(&c.StoreRoot, "kv-root", "", "Key-value store `prefix`. Defaults to $HAP_BLE_KV_ROOT.")
		fs.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $HAP_BLE_KEYRING_TYPE.")
		fs.StringVar(&c.Backend.FileDir, "keyring-file-dir", "", "keyring `directory` for file-backed keyring types")
		fs.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
	}
}

// ReadFromEnvironment populates c using environment variables. Values that are already populated
// are not overwritten. Fields that are still empty afterwards take their defaults.
//
// Calling ReadFromEnvironment after flag.Parse() (or other initialization method) will prevent the
// environment from overriding explicit command-line parameters.
func (c *Config) ReadFromEnvironment() {
	if c.Flags.isSet(FlagDevice) {
		if c.DeviceName == "" {
			c.DeviceName = os.Getenv(EnvDeviceName)
			log.Debug("Set device name to '%s'", c.DeviceName)
		}
		if c.Capacity == 0 {
			if n, err := strconv.Atoi(os.Getenv(EnvCapacity)); err == nil {
				c.Capacity = n
				log.Debug("Set attribute capacity to %d", c.Capacity)
			}
		}
		if c.AdvertisingInterval == 0 {
			if d, err := time.ParseDuration(os.Getenv(EnvAdvertisingInterval)); err == nil {
				c.AdvertisingInterval = d
				log.Debug("Set advertising interval to %s", c.AdvertisingInterval)
			}
		}
	}
	if c.Flags.isSet(FlagBLE) {
		if c.AdapterID == "" {
			c.AdapterID = os.Getenv(EnvAdapter)
			log.Debug("Set adapter to '%s'", c.AdapterID)
		}
		if !c.Simulate {
			_, c.Simulate = os.LookupEnv(EnvSimulate)
			log.Debug("Set simulated stack to '%v'", c.Simulate)
		}
	}
	if c.Flags.isSet(FlagStore) {
		if c.StoreRoot == "" {
			c.StoreRoot = os.Getenv(EnvStoreRoot)
			log.Debug("Set key-value store root to '%s'", c.StoreRoot)
		}
		if c.BackendType.String() == string(keyring.InvalidBackend) {
			if err := c.BackendType.Set(os.Getenv(EnvKeyringType)); err == nil {
				log.Debug("Set keyring type to '%s'", c.BackendType)
			}
		}
		if c.password == nil {
			password := os.Getenv(EnvKeyringPass)
			c.password = &password
			if len(password) > 0 {
				log.Debug("Set keyring File Password to %s", strings.Repeat("*", len("hunter2")))
			}
		}
		if c.Backend.FileDir == "" {
			c.Backend.FileDir = os.Getenv(EnvKeyringPath)
			log.Debug("Set keyring File Path to '%s'", c.Backend.FileDir)
		}
		if !c.Debug {
			_, c.Debug = os.LookupEnv(EnvKeyringDebug)
			log.Debug("Set keyring Debug Logging to '%v'", c.Debug)
		}
	}
	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.DeviceName == "" {
		c.DeviceName = DefaultDeviceName
	}
	if c.Capacity == 0 {
		c.Capacity = peripheral.DefaultCapacity
	}
	if c.AdvertisingInterval == 0 {
		c.AdvertisingInterval = DefaultAdvertisingInterval
	}
	if c.StoreRoot == "" {
		c.StoreRoot = DefaultStoreRoot
	}
	if c.Backend.FileDir == "" {
		c.Backend.FileDir = keyringDirectory
	}
}

// Validate reports values the peripheral manager would reject.
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, c.Capacity)
	}
	if c.AdvertisingInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, c.AdvertisingInterval)
	}
	return nil
}

// Stack returns the host stack selected by c. Both stacks deliver their events on loop.
func (c *Config) Stack(loop *runloop.Loop) peripheral.Stack {
	if c.Simulate {
		log.Debug("Using simulated host stack")
		return sim.New(sim.WithDispatcher(loop.Post))
	}
	log.Debug("Using HCI controller '%s'", c.AdapterID)
	return goble.New(goble.Config{AdapterID: c.AdapterID}, loop)
}

// OpenStore opens the key-value store. Without FlagStore the store is kept in memory and lost on
// exit.
func (c *Config) OpenStore() (*kvstore.Keyring, error) {
	if !c.Flags.isSet(FlagStore) {
		log.Debug("FlagStore is not set, using an in-memory key-value store")
		return kvstore.New(keyring.NewArrayKeyring(nil), c.StoreRoot), nil
	}
	keyring.Debug = c.Debug
	return kvstore.Open(c.Backend, c.StoreRoot)
}
