// Package catalog holds the declared shape of every database, schema, table
// and field, plus the token signing secret.
//
// The catalog is loaded once from db_map.json. It is read-shared afterwards;
// the only mutations are AddTable during bootstrap and an explicit Save.
package catalog

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/its-mr-monday/WebDB/internal/errors"
	"github.com/its-mr-monday/WebDB/internal/storage"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FileName is the catalog document name inside the data directory.
const FileName = "db_map.json"

// Catalog is the in-memory database map bound to a file store.
type Catalog struct {
	store *storage.FileStore
	path  string

	mu sync.RWMutex
	m  *Map
}

// Load reads the catalog from the store's root directory.
func Load(store *storage.FileStore) (*Catalog, error) {
	path := filepath.Join(store.RootDir(), FileName)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from the data dir
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	m := newMap("")
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return &Catalog{store: store, path: path, m: m}, nil
}

// Create initializes an empty catalog with a freshly generated secret and
// saves it. It fails if a catalog already exists.
func Create(store *storage.FileStore) (*Catalog, error) {
	path := filepath.Join(store.RootDir(), FileName)
	if _, err := os.Stat(path); err == nil {
		return nil, errors.Conflict(FileName + " already exists")
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	c := &Catalog{store: store, path: path, m: newMap(hex.EncodeToString(secret))}
	if err := c.Save(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save persists the catalog. It is never called implicitly.
func (c *Catalog) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := storage.WriteJSONFile(c.path, c.m); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}

// Path returns the catalog file path.
func (c *Catalog) Path() string {
	return c.path
}

// Store returns the file store the catalog is bound to.
func (c *Catalog) Store() *storage.FileStore {
	return c.store
}

// Secret returns the token signing key.
func (c *Catalog) Secret() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return []byte(c.m.SecretKey)
}

// DatabaseExists reports whether the database is both on disk and declared.
func (c *Catalog) DatabaseExists(database string) bool {
	if !c.store.DatabaseExists(database) {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m.database(database) != nil
}

// SchemaExists reports whether the schema is both on disk and declared.
func (c *Catalog) SchemaExists(database, schema string) bool {
	if !c.DatabaseExists(database) || !c.store.SchemaExists(database, schema) {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m.schema(database, schema) != nil
}

// TableExists reports whether the table document is both on disk and declared.
func (c *Catalog) TableExists(database, schema, table string) bool {
	if !c.SchemaExists(database, schema) || !c.store.TableExists(database, schema, table) {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m.table(database, schema, table) != nil
}

// ListDatabases returns every declared database except the reserved users
// database, in catalog order.
func (c *Catalog) ListDatabases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := []string{}
	for _, name := range keys(c.m.Databases) {
		if name != UsersDatabase {
			names = append(names, name)
		}
	}
	return names
}

// ListSchemas returns the declared schemas of a database.
func (c *Catalog) ListSchemas(database string) ([]string, error) {
	if database == UsersDatabase {
		return nil, errors.NotFound("Cannot list schemas in users database")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	db := c.m.database(database)
	if db == nil {
		return nil, errors.NotFound("Database not found: " + database)
	}
	return keys(db.Schemas), nil
}

// ListTables returns the tables of a schema.
//
// Unlike the other listings this reads the schema directory, so documents
// not declared in the catalog are included.
func (c *Catalog) ListTables(database, schema string) ([]string, error) {
	if database == UsersDatabase {
		return nil, errors.NotFound("Cannot list tables in users database")
	}
	if !c.DatabaseExists(database) {
		return nil, errors.NotFound("Database not found: " + database)
	}
	if !c.SchemaExists(database, schema) {
		return nil, errors.NotFound("Schema not found: " + schema)
	}
	return c.store.ListTableFiles(database, schema)
}

// FieldsOf returns a copy of the declared field to datatype mapping.
func (c *Catalog) FieldsOf(database, schema, table string) (map[string]Datatype, error) {
	if !c.TableExists(database, schema, table) {
		return nil, errors.NotFound("Table not found: " + table)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := c.m.table(database, schema, table)
	fields := make(map[string]Datatype)
	if t.Fields != nil {
		for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
			fields[pair.Key] = pair.Value
		}
	}
	return fields, nil
}

// Fields returns the declared fields in catalog order.
func (c *Catalog) Fields(database, schema, table string) ([]Field, error) {
	if !c.TableExists(database, schema, table) {
		return nil, errors.NotFound("Table not found: " + table)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := c.m.table(database, schema, table)
	var out []Field
	if t.Fields != nil {
		for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
			out = append(out, Field{Name: pair.Key, Type: pair.Value})
		}
	}
	return out, nil
}

// FieldType returns the declared datatype of one field.
func (c *Catalog) FieldType(database, schema, table, field string) (Datatype, error) {
	fields, err := c.FieldsOf(database, schema, table)
	if err != nil {
		return "", err
	}
	dt, ok := fields[field]
	if !ok {
		return "", errors.NotFound("Field not found: " + field)
	}
	return dt, nil
}

// AddTable declares a table, creating missing database and schema entries,
// and creates its empty document. The catalog itself is not saved.
func (c *Catalog) AddTable(database, schema, table string, fields []Field) error {
	decl := orderedmap.New[string, Datatype]()
	for _, f := range fields {
		if f.Name == "" {
			return errors.BadRequest("field name is required")
		}
		if !f.Type.Valid() {
			return errors.InvalidDatatype(fmt.Sprintf("unsupported datatype %q for field %s", f.Type, f.Name))
		}
		decl.Set(f.Name, f.Type)
	}
	if err := c.store.CreateTable(database, schema, table); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	db := c.m.database(database)
	if db == nil {
		db = &Database{Schemas: orderedmap.New[string, *Schema]()}
		c.m.Databases.Set(database, db)
	}
	if db.Schemas == nil {
		db.Schemas = orderedmap.New[string, *Schema]()
	}
	s, _ := db.Schemas.Get(schema)
	if s == nil {
		s = &Schema{Tables: orderedmap.New[string, *Table]()}
		db.Schemas.Set(schema, s)
	}
	if s.Tables == nil {
		s.Tables = orderedmap.New[string, *Table]()
	}
	s.Tables.Set(table, &Table{Fields: decl})
	return nil
}

func (m *Map) validate() error {
	if m.SecretKey == "" {
		return fmt.Errorf("secret_key is required")
	}
	if m.Databases == nil {
		m.Databases = orderedmap.New[string, *Database]()
	}
	for db := m.Databases.Oldest(); db != nil; db = db.Next() {
		if db.Value == nil || db.Value.Schemas == nil {
			continue
		}
		for s := db.Value.Schemas.Oldest(); s != nil; s = s.Next() {
			if s.Value == nil || s.Value.Tables == nil {
				continue
			}
			for t := s.Value.Tables.Oldest(); t != nil; t = t.Next() {
				if t.Value == nil || t.Value.Fields == nil {
					continue
				}
				for f := t.Value.Fields.Oldest(); f != nil; f = f.Next() {
					if !f.Value.Valid() {
						return fmt.Errorf("%s.%s.%s: field %s has unsupported datatype %q", db.Key, s.Key, t.Key, f.Key, f.Value)
					}
				}
			}
		}
	}
	return nil
}
