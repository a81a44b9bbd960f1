// Package kvstore persists the accessory's key-value records (pairings, configuration numbers,
// attribute database versions) in a [keyring.Keyring].
//
// Records are addressed by a one-byte domain and a one-byte key. Each record becomes one keyring
// item named "<root><domain><key>" with domain and key rendered as two hex digits, so that every
// domain can be enumerated and purged by prefix.
package kvstore

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/99designs/keyring"

	"github.com/hapble/peripheral/internal/log"
	"github.com/hapble/peripheral/pkg/protocol"
)

type Domain uint8
type Key uint8

// EnumerateFunc is called once per key. Returning false stops the enumeration.
type EnumerateFunc func(key Key) (shouldContinue bool, err error)

// Store is the key-value interface consumed by the accessory protocol. A missing record is a
// normal outcome, reported through the found result rather than an error.
type Store interface {
	Get(domain Domain, key Key) (value []byte, found bool, err error)
	Set(domain Domain, key Key, value []byte) error
	Remove(domain Domain, key Key) error
	Enumerate(domain Domain, callback EnumerateFunc) error
	PurgeDomain(domain Domain) error
}

var logger = log.New("KeyValueStore")

// Keyring implements Store on top of a keyring backend.
type Keyring struct {
	kr   keyring.Keyring
	root string
}

// New wraps kr. All item names are prefixed with root.
func New(kr keyring.Keyring, root string) *Keyring {
	logger.Info("Storage location: %s", root)
	return &Keyring{kr: kr, root: root}
}

// Open opens the keyring described by config.
func Open(config keyring.Config, root string) (*Keyring, error) {
	kr, err := keyring.Open(config)
	if err != nil {
		return nil, fmt.Errorf("kvstore: failed to open keyring: %w", err)
	}
	return New(kr, root), nil
}

func (s *Keyring) domainPrefix(domain Domain) string {
	return fmt.Sprintf("%s%02x", s.root, uint8(domain))
}

func (s *Keyring) itemName(domain Domain, key Key) string {
	return fmt.Sprintf("%s%02x", s.domainPrefix(domain), uint8(key))
}

func (s *Keyring) Get(domain Domain, key Key) ([]byte, bool, error) {
	item, err := s.kr.Get(s.itemName(domain, key))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		logger.Debug("No record %02x.%02x", uint8(domain), uint8(key))
		return nil, false, nil
	}
	if err != nil {
		logger.Error("kv_get failed %s", err)
		return nil, false, fmt.Errorf("kvstore: get %02x.%02x: %w", uint8(domain), uint8(key), protocol.ErrUnknown)
	}
	return item.Data, true, nil
}

func (s *Keyring) Set(domain Domain, key Key, value []byte) error {
	name := s.itemName(domain, key)
	data := make([]byte, len(value))
	copy(data, value)
	if err := s.kr.Set(keyring.Item{Key: name, Data: data, Label: name}); err != nil {
		logger.Error("kv_set failed %s", err)
		return fmt.Errorf("kvstore: set %02x.%02x: %w", uint8(domain), uint8(key), protocol.ErrUnknown)
	}
	return nil
}

func (s *Keyring) Remove(domain Domain, key Key) error {
	err := s.kr.Remove(s.itemName(domain, key))
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	logger.Error("kv_remove failed %s", err)
	return fmt.Errorf("kvstore: remove %02x.%02x: %w", uint8(domain), uint8(key), protocol.ErrUnknown)
}

// keys lists the keys present in domain in ascending order.
func (s *Keyring) keys(domain Domain) ([]Key, error) {
	names, err := s.kr.Keys()
	if err != nil {
		logger.Error("kv_iterator_open failed %s", err)
		return nil, fmt.Errorf("kvstore: list keys: %w", protocol.ErrUnknown)
	}
	prefix := s.domainPrefix(domain)
	var keys []Key
	for _, name := range names {
		suffix, ok := strings.CutPrefix(name, prefix)
		if !ok || len(suffix) != 2 {
			continue
		}
		k, err := strconv.ParseUint(suffix, 16, 8)
		if err != nil {
			continue
		}
		keys = append(keys, Key(k))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (s *Keyring) Enumerate(domain Domain, callback EnumerateFunc) error {
	if callback == nil {
		panic("kvstore: nil enumerate callback")
	}
	keys, err := s.keys(domain)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		logger.Debug("Domain %02x is empty", uint8(domain))
	}
	for _, key := range keys {
		shouldContinue, err := callback(key)
		if err != nil {
			return err
		}
		if !shouldContinue {
			break
		}
	}
	return nil
}

// PurgeDomain removes every record in domain. Removal continues past individual failures, which
// are joined in the returned error.
func (s *Keyring) PurgeDomain(domain Domain) error {
	keys, err := s.keys(domain)
	if err != nil {
		return err
	}
	var result error
	for _, key := range keys {
		if err := s.Remove(domain, key); err != nil {
			result = errors.Join(result, err)
		}
	}
	return result
}
