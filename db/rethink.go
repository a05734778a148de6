package db

import (
	"fmt"

	"github.com/callummance/rolebot/guildmodels"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	rethink "gopkg.in/gorethink/gorethink.v3"
)

const reactionRolesTable string = "reaction_roles"
const baseDbPoolConnections int = 2
const maxDbPoolConnections int = 20

//reactionRoleDoc is the rethinkdb representation of a single reaction role message. RethinkDB numbers are
//doubles, so IDs are kept as strings to avoid losing snowflake precision.
type reactionRoleDoc struct {
	MessageID string            `gorethink:"id"`
	Emojis    map[string]string `gorethink:"emojis"`
}

//RethinkBackend stores reaction role messages in a rethinkdb table
type RethinkBackend struct {
	session *rethink.Session
}

//NewRethinkBackend creates a new connection pool for the database at the given address and makes sure the
//database and table exist
func NewRethinkBackend(address, dbName string) (*RethinkBackend, error) {
	session, err := rethink.Connect(rethink.ConnectOpts{
		Address:    address,
		Database:   dbName,
		InitialCap: baseDbPoolConnections,
		MaxOpen:    maxDbPoolConnections,
	})
	if err != nil {
		logrus.Errorf("Failed to create connection to rethinkdb instance at address %v because %v.", address, err)
		return nil, fmt.Errorf("failed to create connection to rethinkdb instance at address %v because %v", address, err)
	}

	res := RethinkBackend{
		session: session,
	}

	//Ensure database and required tables exist, and wait for it all to be ready
	res.createDatabase(dbName)
	res.createTables()

	return &res, nil
}

func (db *RethinkBackend) createDatabase(dbName string) {
	_, err := rethink.DBCreate(dbName).RunWrite(db.session)
	if err != nil {
		logrus.Debugf("Did not create %v DB: %v", dbName, err)
	}
	_, _ = rethink.DB(dbName).Wait().RunWrite(db.session)
}

func (db *RethinkBackend) createTables() {
	_, err := rethink.TableCreate(reactionRolesTable, rethink.TableCreateOpts{
		PrimaryKey: "id",
	}).RunWrite(db.session)
	if err != nil {
		logrus.Debugf("Did not create reaction roles table: %v", err)
	}
	_, _ = rethink.Table(reactionRolesTable).Wait().RunWrite(db.session)
}

//Load fetches every reaction role document
func (db *RethinkBackend) Load() (guildmodels.MappingTable, error) {
	res, err := rethink.Table(reactionRolesTable).Run(db.session)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query reaction roles table")
	}
	defer res.Close()

	var docs []reactionRoleDoc
	if err := res.All(&docs); err != nil {
		return nil, &CorruptStateError{Source: reactionRolesTable, Err: err}
	}

	table := make(guildmodels.MappingTable, len(docs))
	for _, doc := range docs {
		msgID, err := guildmodels.ParseSnowflake(doc.MessageID)
		if err != nil {
			logrus.Warnf("Skipping reaction roles document with unexpected id %q", doc.MessageID)
			continue
		}
		mapping := make(guildmodels.RoleMapping, len(doc.Emojis))
		for emoji, rawRoleID := range doc.Emojis {
			roleID, err := guildmodels.ParseSnowflake(rawRoleID)
			if err != nil {
				return nil, &CorruptStateError{Source: reactionRolesTable, Err: errors.Wrapf(err, "bad role for emoji %q on message %v", emoji, msgID)}
			}
			mapping[emoji] = roleID
		}
		table[msgID] = mapping
	}
	return table, nil
}

//Save upserts one document per message
func (db *RethinkBackend) Save(table guildmodels.MappingTable) error {
	if len(table) == 0 {
		return nil
	}
	docs := make([]reactionRoleDoc, 0, len(table))
	for msgID, mapping := range table {
		emojis := make(map[string]string, len(mapping))
		for emoji, roleID := range mapping {
			emojis[emoji] = roleID.String()
		}
		docs = append(docs, reactionRoleDoc{MessageID: msgID.String(), Emojis: emojis})
	}
	resp, err := rethink.Table(reactionRolesTable).Insert(docs, rethink.InsertOpts{
		Conflict: "replace",
	}).RunWrite(db.session)
	if err != nil {
		return errors.Wrap(err, "failed to write reaction roles to rethinkdb")
	} else if resp.Errors > 0 {
		return errors.Errorf("failed to write reaction roles to rethinkdb: %v", resp.FirstError)
	}
	return nil
}

//Close cleanly terminates the database connection
func (db *RethinkBackend) Close() error {
	logrus.Info("Terminating DB connection...")
	return db.session.Close()
}
