package db_test

import (
	"io/ioutil"
	"path/filepath"
	"sync"
	"testing"

	"github.com/callummance/rolebot/db"
	"github.com/callummance/rolebot/guildmodels"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//memoryBackend records every saved table
type memoryBackend struct {
	loadTable guildmodels.MappingTable
	loadErr   error
	saveErr   error
	saves     []guildmodels.MappingTable
	closed    bool
}

func (m *memoryBackend) Load() (guildmodels.MappingTable, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.loadTable.Clone(), nil
}

func (m *memoryBackend) Save(table guildmodels.MappingTable) error {
	m.saves = append(m.saves, table.Clone())
	return m.saveErr
}

func (m *memoryBackend) Close() error {
	m.closed = true
	return nil
}

func TestMappingStorePutPersistsImmediately(t *testing.T) {
	backend := &memoryBackend{}
	store := db.NewMappingStore(backend)

	require.NoError(t, store.Put(10, guildmodels.RoleMapping{"🔥": 1}))
	require.NoError(t, store.Put(11, guildmodels.RoleMapping{"🎮": 2}))

	require.Len(t, backend.saves, 2)
	assert.Equal(t, guildmodels.MappingTable{10: {"🔥": 1}}, backend.saves[0])
	assert.Equal(t, guildmodels.MappingTable{10: {"🔥": 1}, 11: {"🎮": 2}}, backend.saves[1])

	mapping, ok := store.Get(11)
	assert.True(t, ok)
	assert.Equal(t, guildmodels.RoleMapping{"🎮": 2}, mapping)

	_, ok = store.Get(12)
	assert.False(t, ok)
}

func TestMappingStoreReturnsCopies(t *testing.T) {
	store := db.NewMappingStore(&memoryBackend{})
	original := guildmodels.RoleMapping{"🔥": 1}
	require.NoError(t, store.Put(10, original))

	original["🎮"] = 2
	got, _ := store.Get(10)
	got["✅"] = 3
	all := store.All()
	all[10]["❌"] = 4

	got, _ = store.Get(10)
	assert.Equal(t, guildmodels.RoleMapping{"🔥": 1}, got)
}

func TestMappingStoreKeepsEntryWhenSaveFails(t *testing.T) {
	backend := &memoryBackend{saveErr: errors.New("disk full")}
	store := db.NewMappingStore(backend)

	err := store.Put(10, guildmodels.RoleMapping{"🔥": 1})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "disk full")
	}
	_, ok := store.Get(10)
	assert.True(t, ok)
}

func TestMappingStoreLoad(t *testing.T) {
	backend := &memoryBackend{loadTable: guildmodels.MappingTable{5: {"👑": 6}}}
	store := db.NewMappingStore(backend)

	require.NoError(t, store.Load())
	assert.Equal(t, 1, store.Len())
	mapping, ok := store.Get(5)
	assert.True(t, ok)
	assert.Equal(t, guildmodels.RoleMapping{"👑": 6}, mapping)
}

func TestMappingStoreLoadCorruptStartsEmpty(t *testing.T) {
	corrupt := &db.CorruptStateError{Source: "test", Err: errors.New("bad json")}
	backend := &memoryBackend{loadErr: corrupt}
	store := db.NewMappingStore(backend)

	err := store.Load()
	var target *db.CorruptStateError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, store.All())

	require.NoError(t, store.Put(1, guildmodels.RoleMapping{"🔥": 2}))
	assert.Equal(t, 1, store.Len())
}

func TestMappingStorePutBeforeLoadKeepsPersistedMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "role_mappings.json")
	require.NoError(t, ioutil.WriteFile(path, []byte(`{"111": {"A": 1}, "222": {"B": 2}}`), 0644))
	fb, err := db.NewFileBackend(path)
	require.NoError(t, err)
	store := db.NewMappingStore(fb)

	require.NoError(t, store.Put(333, guildmodels.RoleMapping{"C": 3}))
	require.NoError(t, store.Load())

	expected := guildmodels.MappingTable{111: {"A": 1}, 222: {"B": 2}, 333: {"C": 3}}
	assert.Equal(t, expected, store.All())
	onDisk, err := fb.Load()
	require.NoError(t, err)
	assert.Equal(t, expected, onDisk)
}

func TestMappingStoreGetBeforeLoadSeesPersistedMappings(t *testing.T) {
	backend := &memoryBackend{loadTable: guildmodels.MappingTable{5: {"👑": 6}}}
	store := db.NewMappingStore(backend)

	mapping, ok := store.Get(5)
	assert.True(t, ok)
	assert.Equal(t, guildmodels.RoleMapping{"👑": 6}, mapping)
	assert.NoError(t, store.Load())
	assert.Empty(t, backend.saves)
}

func TestMappingStoreConcurrentPutsDuringLoad(t *testing.T) {
	backend := &memoryBackend{loadTable: guildmodels.MappingTable{1: {"👑": 1}}}
	store := db.NewMappingStore(backend)

	var wg sync.WaitGroup
	for i := 2; i <= 10; i++ {
		wg.Add(1)
		go func(id guildmodels.Snowflake) {
			defer wg.Done()
			assert.NoError(t, store.Put(id, guildmodels.RoleMapping{"🔥": id}))
		}(guildmodels.Snowflake(i))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, store.Load())
	}()
	wg.Wait()

	assert.Equal(t, 10, store.Len())
	_, ok := store.Get(1)
	assert.True(t, ok)
}

func TestMappingStoreCloseFlushesAndCloses(t *testing.T) {
	backend := &memoryBackend{}
	store := db.NewMappingStore(backend)
	require.NoError(t, store.Put(1, guildmodels.RoleMapping{"🔥": 2}))

	require.NoError(t, store.Close())
	assert.True(t, backend.closed)
	require.Len(t, backend.saves, 2)
	assert.Equal(t, guildmodels.MappingTable{1: {"🔥": 2}}, backend.saves[1])
}

func TestOpenBackendUnknownKind(t *testing.T) {
	_, err := db.OpenBackend(db.BackendOptions{Kind: "postgres"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "unknown storage backend")
	}
}

func TestOpenBackendDefaultsToFile(t *testing.T) {
	backend, err := db.OpenBackend(db.BackendOptions{MappingsFile: "mappings.json"})
	require.NoError(t, err)
	fb, ok := backend.(*db.FileBackend)
	if assert.True(t, ok) {
		assert.Equal(t, "mappings.json", fb.Path())
	}
}

func TestMappingStoreCloseWithoutLoadKeepsPersistedState(t *testing.T) {
	backend := &memoryBackend{}
	store := db.NewMappingStore(backend)

	require.NoError(t, store.Close())
	assert.True(t, backend.closed)
	assert.Empty(t, backend.saves)
}

func TestMappingStoreCloseAfterCorruptLoadKeepsPersistedState(t *testing.T) {
	backend := &memoryBackend{loadErr: &db.CorruptStateError{Source: "test", Err: errors.New("bad json")}}
	store := db.NewMappingStore(backend)
	require.Error(t, store.Load())

	require.NoError(t, store.Close())
	assert.Empty(t, backend.saves)
}
