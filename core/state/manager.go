package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"tdcchain/storage"
)

// Manager is a transaction-scoped view over the ledger database. Writes are
// journaled in memory and become visible to other managers only after Commit.
// Reads observe the manager's own pending writes first.
//
// Manager is not safe for concurrent use; the runtime serialises access.
type Manager struct {
	db    storage.Database
	dirty map[string]dirtyEntry
}

type dirtyEntry struct {
	value   []byte
	deleted bool
}

// NewManager creates a state manager reading through to db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string]dirtyEntry)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) load(hashed []byte) ([]byte, error) {
	if entry, ok := m.dirty[string(hashed)]; ok {
		if entry.deleted {
			return nil, nil
		}
		return entry.value, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 so every module shares one flat keyspace
// without collisions between prefixes.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.dirty[string(kvKey(key))] = dirtyEntry{value: encoded}
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.load(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key. Deleting a missing key is not an error.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.dirty[string(kvKey(key))] = dirtyEntry{deleted: true}
	return nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must point to a slice")
	}
	elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	return nil
}

// Pending reports the number of journaled writes.
func (m *Manager) Pending() int {
	return len(m.dirty)
}

// Commit flushes every journaled write through a single storage batch so the
// transaction lands atomically.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := m.db.NewBatch()
	for _, k := range keys {
		entry := m.dirty[k]
		if entry.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), entry.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string]dirtyEntry)
	return nil
}

// Discard drops every journaled write.
func (m *Manager) Discard() {
	m.dirty = make(map[string]dirtyEntry)
}
