package db

import (
	"fmt"
	"sync"

	"github.com/callummance/rolebot/guildmodels"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//Backend persists a whole MappingTable. Load on an empty backend returns an empty table and no error.
type Backend interface {
	Load() (guildmodels.MappingTable, error)
	Save(table guildmodels.MappingTable) error
	Close() error
}

//CorruptStateError is returned by a Backend when the persisted state exists but cannot be understood
type CorruptStateError struct {
	Source string
	Err    error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("persisted role mappings at %v are corrupt: %v", e.Source, e.Err)
}

//Unwrap returns the underlying decode error
func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

//MappingStore owns the process-wide table of reaction role messages and keeps it in sync with a Backend.
//Reaction handlers run concurrently with the setup command so every access goes through the lock.
type MappingStore struct {
	mu      sync.RWMutex
	table   guildmodels.MappingTable
	backend Backend

	//The persisted table is read at most once, before the first Get or Put touches the in-memory one
	loadOnce sync.Once
	loadErr  error

	//Set once the table reflects the persisted state, either from a successful Load or a Put. Until then
	//Flush must not overwrite what is on disk.
	authoritative bool
}

//NewMappingStore creates an empty store on top of the given backend. The persisted table is loaded by the
//first call to Load, Get, Put, All or Len.
func NewMappingStore(backend Backend) *MappingStore {
	return &MappingStore{
		table:   guildmodels.MappingTable{},
		backend: backend,
	}
}

//Load populates the in-memory table from the backend. Only the first call reads the backend; later calls
//return the same result. If the persisted state is corrupt the table is left empty and the
//*CorruptStateError is returned so the caller can log it.
func (s *MappingStore) Load() error {
	s.loadOnce.Do(func() {
		s.loadErr = s.load()
	})
	return s.loadErr
}

//ensureLoaded makes sure lookups and writes never see the table before the persisted state is in it
func (s *MappingStore) ensureLoaded() {
	if err := s.Load(); err != nil {
		logrus.Debugf("Role mappings unavailable, using an empty table: %v", err)
	}
}

func (s *MappingStore) load() error {
	table, err := s.backend.Load()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.table = guildmodels.MappingTable{}
		s.authoritative = false
		return err
	}
	if table == nil {
		table = guildmodels.MappingTable{}
	}
	s.table = table
	s.authoritative = true
	logrus.Infof("Loaded %d reaction role message(s)", len(table))
	return nil
}

//Get returns a copy of the mapping registered for a message
func (s *MappingStore) Get(messageID guildmodels.Snowflake) (guildmodels.RoleMapping, bool) {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	mapping, ok := s.table[messageID]
	if !ok {
		return nil, false
	}
	return mapping.Clone(), true
}

//Put registers a mapping for a message and persists the full table. If persisting fails the entry stays
//registered in memory and will be written by the next successful save.
func (s *MappingStore) Put(messageID guildmodels.Snowflake, mapping guildmodels.RoleMapping) error {
	s.ensureLoaded()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table[messageID] = mapping.Clone()
	s.authoritative = true
	if err := s.backend.Save(s.table); err != nil {
		return errors.Wrapf(err, "failed to persist mapping for message %v", messageID)
	}
	return nil
}

//All returns a deep copy of every registered mapping
func (s *MappingStore) All() guildmodels.MappingTable {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Clone()
}

//Len returns the number of tracked messages
func (s *MappingStore) Len() int {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.table)
}

//Flush writes the current table to the backend. Nothing is written if the table was never loaded or changed.
func (s *MappingStore) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authoritative {
		logrus.Debug("Role mappings were never loaded, not flushing")
		return nil
	}
	return s.backend.Save(s.table)
}

//Close flushes the table and releases the backend. The backend is closed even if the flush fails.
func (s *MappingStore) Close() error {
	logrus.Info("Flushing role mappings...")
	flushErr := s.Flush()
	closeErr := s.backend.Close()
	if flushErr != nil {
		return errors.Wrap(flushErr, "failed to flush role mappings on close")
	}
	return closeErr
}
