package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
	"github.com/holiman/uint256"

	"github.com/eigerco/custodian/internal/access"
	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/crypto"
	"github.com/eigerco/custodian/internal/ledger"
	"github.com/eigerco/custodian/internal/relay"
	"github.com/eigerco/custodian/internal/timepoint"
	"github.com/eigerco/custodian/pkg/db"
	"github.com/eigerco/custodian/pkg/db/pebble"
	"github.com/eigerco/custodian/pkg/log"
)

var (
	ErrStoreClosed   = errors.New("store is closed")
	ErrCorruptRecord = errors.New("corrupt record")
)

var clockKey = makeKey(prefixMeta, []byte("clock"))

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Store persists ledger checkpoints in a key-value store.
type Store struct {
	db     db.KVStore
	closed atomic.Bool
}

func New(db db.KVStore) *Store {
	return &Store{db: db}
}

// Checkpoint writes balances, contract storage, the forwarder's nonces, the
// admin rules and the clock reading in one batch, replacing whatever was
// stored for them before.
func (s *Store) Checkpoint(state *ledger.State, forwarder *relay.Forwarder, rules *access.DefaultAdminRules) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	batch := s.db.NewBatch()
	defer func() {
		if err := batch.Close(); err != nil {
			log.Store.Error().Err(err).Msg("closing batch")
		}
	}()

	prefixes := [][]byte{{prefixBalance}, {prefixStorage}}
	if forwarder != nil {
		prefixes = append(prefixes, makeKey(prefixNonce, forwarder.Address().Bytes()))
	}
	for _, p := range prefixes {
		if err := s.deletePrefix(batch, p); err != nil {
			return err
		}
	}

	var putErr error
	put := func(key, value []byte) {
		if putErr == nil {
			putErr = batch.Put(key, value)
		}
	}

	var balances, slots int
	state.View(func() {
		state.ForEachBalance(func(addr common.Address, balance *uint256.Int) {
			word := balance.Bytes32()
			put(makeKey(prefixBalance, addr[:]), word[:])
			balances++
		})
		state.ForEachStorage(func(addr common.Address, key crypto.Hash, value []byte) {
			put(makeKey(prefixStorage, addr[:], key[:]), value)
			slots++
		})
		now := make([]byte, 8)
		binary.BigEndian.PutUint64(now, uint64(state.Now()))
		put(clockKey, now)
	})
	if forwarder != nil {
		forwarder.ForEachNonce(func(rec relay.NonceRecord) {
			word := rec.Nonce.Bytes32()
			put(makeKey(prefixNonce, forwarder.Address().Bytes(), rec.Account[:]), word[:])
		})
	}
	if putErr != nil {
		return fmt.Errorf("stage checkpoint: %w", putErr)
	}

	if rules != nil {
		raw, err := encMode.Marshal(rules.Record())
		if err != nil {
			return fmt.Errorf("encode admin rules: %w", err)
		}
		if err := batch.Put(makeKey(prefixAdminRules, rules.Address().Bytes()), raw); err != nil {
			return fmt.Errorf("stage admin rules: %w", err)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf(ErrFailedBatchCommit, err)
	}
	log.Store.Debug().Int("balances", balances).Int("slots", slots).Msg("checkpoint written")
	return nil
}

// LoadState restores balances and contract storage into an empty state.
func (s *Store) LoadState(state *ledger.State) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	err := s.scan([]byte{prefixBalance}, func(key, value []byte) error {
		if len(key) != 1+common.AddressSize || len(value) != 32 {
			return fmt.Errorf("%w: balance %x", ErrCorruptRecord, key)
		}
		state.LoadBalance(common.BytesToAddress(key[1:]), new(uint256.Int).SetBytes32(value))
		return nil
	})
	if err != nil {
		return err
	}
	return s.scan([]byte{prefixStorage}, func(key, value []byte) error {
		if len(key) != 1+common.AddressSize+crypto.HashSize {
			return fmt.Errorf("%w: storage %x", ErrCorruptRecord, key)
		}
		var slot crypto.Hash
		copy(slot[:], key[1+common.AddressSize:])
		state.LoadStorage(common.BytesToAddress(key[1:1+common.AddressSize]), slot, value)
		return nil
	})
}

// LoadNonces restores the nonces stored for forwarder.
func (s *Store) LoadNonces(forwarder *relay.Forwarder) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	prefix := makeKey(prefixNonce, forwarder.Address().Bytes())
	return s.scan(prefix, func(key, value []byte) error {
		if len(key) != len(prefix)+common.AddressSize || len(value) != 32 {
			return fmt.Errorf("%w: nonce %x", ErrCorruptRecord, key)
		}
		return forwarder.LoadNonce(relay.NonceRecord{
			Account: common.BytesToAddress(key[len(prefix):]),
			Nonce:   new(uint256.Int).SetBytes32(value),
		})
	})
}

// AdminRules returns the record of the rules deployed at addr. It reports
// false when nothing was stored yet.
func (s *Store) AdminRules(addr common.Address) (access.Record, bool, error) {
	if s.closed.Load() {
		return access.Record{}, false, ErrStoreClosed
	}
	raw, err := s.db.Get(makeKey(prefixAdminRules, addr[:]))
	if errors.Is(err, pebble.ErrNotFound) {
		return access.Record{}, false, nil
	}
	if err != nil {
		return access.Record{}, false, fmt.Errorf("get admin rules: %w", err)
	}
	var rec access.Record
	if err := cbor.Unmarshal(raw, &rec); err != nil {
		return access.Record{}, false, fmt.Errorf("%w: admin rules: %v", ErrCorruptRecord, err)
	}
	return rec, true, nil
}

// LastClock returns the clock reading of the latest checkpoint, or zero.
func (s *Store) LastClock() (timepoint.Timepoint, error) {
	if s.closed.Load() {
		return 0, ErrStoreClosed
	}
	raw, err := s.db.Get(clockKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get clock: %w", err)
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("%w: clock", ErrCorruptRecord)
	}
	return timepoint.Timepoint(binary.BigEndian.Uint64(raw)), nil
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIterator(prefix, prefixEnd(prefix))
	if err != nil {
		return fmt.Errorf("iterate %s: %w", PrefixToString(prefix[0]), err)
	}
	defer iter.Close() //nolint:errcheck

	for iter.Next() {
		value, err := iter.Value()
		if err != nil {
			return err
		}
		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) deletePrefix(batch db.Batch, prefix []byte) error {
	return s.scan(prefix, func(key, _ []byte) error {
		return batch.Delete(key)
	})
}
