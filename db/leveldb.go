package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/callummance/rolebot/guildmodels"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	leveldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelDBName string = "reaction_roles"
const levelKeyPrefix string = "reaction_roles/"

//LevelBackend stores one record per reaction role message in a leveldb database
type LevelBackend struct {
	path     string
	database *leveldb.DB
}

//NewLevelBackend opens (creating if needed) the leveldb database under storagePath
func NewLevelBackend(storagePath string) (*LevelBackend, error) {
	//Expand '~' as the full home directory path if appropriate
	path, err := homedir.Expand(storagePath)
	if err != nil {
		return nil, err
	}

	fullPath := filepath.Join(path, levelDBName)
	db, err := leveldb.OpenFile(fullPath, nil)
	if leveldberrors.IsCorrupted(err) {
		logrus.Errorf("%v", &CorruptStateError{Source: fullPath, Err: err})
		db, err = recoverLevelDB(fullPath)
	}
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to open leveldb with path [%s]", fullPath))
	}

	return &LevelBackend{path: fullPath, database: db}, nil
}

//recoverLevelDB rebuilds a corrupted database from its table files. If that fails too the damaged directory
//is moved aside and an empty database is created in its place.
func recoverLevelDB(fullPath string) (*leveldb.DB, error) {
	db, err := leveldb.RecoverFile(fullPath, nil)
	if err == nil {
		logrus.Warnf("Recovered leveldb at %v, some role mappings may be missing", fullPath)
		return db, nil
	}

	aside := fmt.Sprintf("%s.corrupt-%d", fullPath, time.Now().Unix())
	logrus.Errorf("Failed to recover leveldb at %v (%v), moving it to %v and starting with no role mappings", fullPath, err, aside)
	if err := os.Rename(fullPath, aside); err != nil {
		return nil, errors.Wrapf(err, "failed to move corrupted leveldb out of the way")
	}
	return leveldb.OpenFile(fullPath, nil)
}

//Load scans every reaction role record
func (l *LevelBackend) Load() (guildmodels.MappingTable, error) {
	table := guildmodels.MappingTable{}
	iter := l.database.NewIterator(util.BytesPrefix([]byte(levelKeyPrefix)), nil)
	defer iter.Release()

	for iter.Next() {
		rawID := strings.TrimPrefix(string(iter.Key()), levelKeyPrefix)
		msgID, err := guildmodels.ParseSnowflake(rawID)
		if err != nil {
			return nil, &CorruptStateError{Source: l.path, Err: err}
		}
		var roles map[string]uint64
		if err := json.Unmarshal(iter.Value(), &roles); err != nil {
			return nil, &CorruptStateError{Source: l.path, Err: errors.Wrapf(err, "bad mapping for message %v", msgID)}
		}
		mapping := make(guildmodels.RoleMapping, len(roles))
		for emoji, roleID := range roles {
			mapping[emoji] = guildmodels.Snowflake(roleID)
		}
		table[msgID] = mapping
	}
	if err := iter.Error(); err != nil {
		if leveldberrors.IsCorrupted(err) {
			return nil, &CorruptStateError{Source: l.path, Err: err}
		}
		return nil, errors.Wrap(err, "failed to scan reaction roles")
	}
	return table, nil
}

//Save writes every message's mapping in a single atomic batch
func (l *LevelBackend) Save(table guildmodels.MappingTable) error {
	batch := new(leveldb.Batch)
	for msgID, mapping := range table {
		roles := make(map[string]uint64, len(mapping))
		for emoji, roleID := range mapping {
			roles[emoji] = uint64(roleID)
		}
		value, err := json.Marshal(roles)
		if err != nil {
			return errors.Wrapf(err, "failed to encode mapping for message %v", msgID)
		}
		batch.Put(levelKey(msgID), value)
	}
	return errors.Wrap(l.database.Write(batch, nil), "failed to write reaction roles to leveldb")
}

//Close closes the leveldb database
func (l *LevelBackend) Close() error {
	return l.database.Close()
}

func levelKey(msgID guildmodels.Snowflake) []byte {
	return []byte(levelKeyPrefix + msgID.String())
}
