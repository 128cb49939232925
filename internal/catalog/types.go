package catalog

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Reserved names of the credential store.
const (
	UsersDatabase = "users"
	UsersSchema   = "usersSchema"
	UsersTable    = "users_table"
	GroupsTable   = "groups_table"
)

// Datatype is the declared type of a field.
type Datatype string

// Supported field datatypes.
const (
	Int    Datatype = "int"
	Float  Datatype = "float"
	String Datatype = "string"
	Bool   Datatype = "bool"
)

// Valid reports whether d is one of the supported datatypes.
func (d Datatype) Valid() bool {
	switch d {
	case Int, Float, String, Bool:
		return true
	default:
		return false
	}
}

// Field is a field declaration.
type Field struct {
	Name string
	Type Datatype
}

// Map is the persisted catalog document (db_map.json).
//
// Ordered maps keep the document's key order so listings follow it.
type Map struct {
	SecretKey string                                    `json:"secret_key"`
	Databases *orderedmap.OrderedMap[string, *Database] `json:"databases"`
}

// Database declares the schemas of a database.
type Database struct {
	Schemas *orderedmap.OrderedMap[string, *Schema] `json:"schemas"`
}

// Schema declares the tables of a schema.
type Schema struct {
	Tables *orderedmap.OrderedMap[string, *Table] `json:"tables"`
}

// Table declares the fields of a table.
type Table struct {
	Fields *orderedmap.OrderedMap[string, Datatype] `json:"fields"`
}

func newMap(secret string) *Map {
	return &Map{
		SecretKey: secret,
		Databases: orderedmap.New[string, *Database](),
	}
}

// database, schema and table return nil when any level is missing.
func (m *Map) database(name string) *Database {
	if m.Databases == nil {
		return nil
	}
	db, _ := m.Databases.Get(name)
	return db
}

func (m *Map) schema(database, schema string) *Schema {
	db := m.database(database)
	if db == nil || db.Schemas == nil {
		return nil
	}
	s, _ := db.Schemas.Get(schema)
	return s
}

func (m *Map) table(database, schema, table string) *Table {
	s := m.schema(database, schema)
	if s == nil || s.Tables == nil {
		return nil
	}
	t, _ := s.Tables.Get(table)
	return t
}

// keys returns the keys of an ordered map in insertion order.
func keys[V any](om *orderedmap.OrderedMap[string, V]) []string {
	if om == nil {
		return []string{}
	}
	out := make([]string, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
