package db

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/callummance/rolebot/guildmodels"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultMappingsFile string = "role_mappings.json"

//FileBackend persists the mapping table as a single JSON document of
//{"<message id>": {"<emoji>": <role id>}}
type FileBackend struct {
	path string
}

//NewFileBackend creates a backend writing to the given path, expanding a leading '~'
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		path = defaultMappingsFile
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to expand mappings file path [%s]", path)
	}
	return &FileBackend{path: expanded}, nil
}

//Path returns the location of the mappings file
func (f *FileBackend) Path() string {
	return f.path
}

//Load reads the mappings file. A missing file is an empty table. Top-level keys which are not message IDs
//are skipped so that newer files with extra metadata still load.
func (f *FileBackend) Load() (guildmodels.MappingTable, error) {
	content, err := ioutil.ReadFile(f.path)
	if os.IsNotExist(err) {
		logrus.Infof("No mappings file found at %v", f.path)
		return guildmodels.MappingTable{}, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read mappings file [%s]", f.path)
	}

	table, err := decodeMappingTable(content)
	if err != nil {
		return nil, &CorruptStateError{Source: f.path, Err: err}
	}
	return table, nil
}

func decodeMappingTable(content []byte) (guildmodels.MappingTable, error) {
	//jsonparser stops at the end of the first value, so trailing garbage has to be caught here
	if !json.Valid(content) {
		return nil, errors.New("mappings file is not a single valid JSON document")
	}
	table := guildmodels.MappingTable{}
	err := jsonparser.ObjectEach(content, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		msgID, err := guildmodels.ParseSnowflake(string(key))
		if err != nil {
			logrus.Debugf("Ignoring unknown top-level field %q in mappings file", key)
			return nil
		}
		if dataType != jsonparser.Object {
			return errors.Errorf("mapping for message %v is not an object", msgID)
		}
		mapping, err := decodeRoleMapping(value)
		if err != nil {
			return errors.Wrapf(err, "bad mapping for message %v", msgID)
		}
		table[msgID] = mapping
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func decodeRoleMapping(value []byte) (guildmodels.RoleMapping, error) {
	mapping := guildmodels.RoleMapping{}
	err := jsonparser.ObjectEach(value, func(key []byte, roleValue []byte, dataType jsonparser.ValueType, _ int) error {
		//ObjectEach hands over keys already unescaped
		emoji := string(key)
		if dataType != jsonparser.Number {
			return errors.Errorf("role for emoji %q is not a number", emoji)
		}
		roleID, err := strconv.ParseUint(string(roleValue), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "role for emoji %q is not a valid role ID", emoji)
		}
		mapping[emoji] = guildmodels.Snowflake(roleID)
		return nil
	})
	return mapping, err
}

//Save replaces the mappings file. The table is written to a temporary file in the same directory which is
//then renamed over the old file, so a crash mid-write leaves the previous version intact.
func (f *FileBackend) Save(table guildmodels.MappingTable) error {
	doc := make(map[string]map[string]uint64, len(table))
	for msgID, mapping := range table {
		roles := make(map[string]uint64, len(mapping))
		for emoji, roleID := range mapping {
			roles[emoji] = uint64(roleID)
		}
		doc[msgID.String()] = roles
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	//Custom emoji are <:name:id>, keep them readable
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "failed to encode role mappings")
	}
	content := buf.Bytes()

	dir := filepath.Dir(f.path)
	tmp, err := ioutil.TempFile(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary mappings file in [%s]", dir)
	}
	tmpName := tmp.Name()
	//No-op once the rename has happened
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write [%s]", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to sync [%s]", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close [%s]", tmpName)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Wrapf(err, "failed to replace mappings file [%s]", f.path)
	}
	logrus.Debugf("Saved %d role mapping(s) to %v", len(table), f.path)
	return nil
}

//Close is a no-op; the file is only open during Load and Save
func (f *FileBackend) Close() error {
	return nil
}
