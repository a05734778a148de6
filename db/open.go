package db

import (
	"github.com/pkg/errors"
)

//Supported values for BackendOptions.Kind
const (
	BackendFile      = "file"
	BackendLevelDB   = "leveldb"
	BackendRethinkDB = "rethinkdb"
)

//BackendOptions selects and configures the persistence backend
type BackendOptions struct {
	Kind              string
	MappingsFile      string
	LevelDBPath       string
	RethinkDBAddress  string
	RethinkDBDatabase string
}

//OpenBackend creates the backend named by opts.Kind. An empty kind selects the JSON file backend.
func OpenBackend(opts BackendOptions) (Backend, error) {
	var backend Backend
	var err error
	switch opts.Kind {
	case BackendFile, "":
		backend, err = NewFileBackend(opts.MappingsFile)
	case BackendLevelDB:
		backend, err = NewLevelBackend(opts.LevelDBPath)
	case BackendRethinkDB:
		backend, err = NewRethinkBackend(opts.RethinkDBAddress, opts.RethinkDBDatabase)
	default:
		return nil, errors.Errorf("unknown storage backend %q (expected one of %v, %v, %v)", opts.Kind, BackendFile, BackendLevelDB, BackendRethinkDB)
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}
