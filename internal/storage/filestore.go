package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/its-mr-monday/WebDB/internal/errors"
)

// tableExt is the extension of every table document.
const tableExt = ".json"

// FileStore handles all file system operations.
// Documents are laid out as:
//
//	<root>/databases/<database>/<schema>/<table>.json
//
// FileStore knows nothing about the catalog; callers combine both.
type FileStore struct {
	rootDir      string
	databasesDir string
}

// NewFileStore initializes a FileStore with the given root directory.
// Creates databases/ subdirectory where all documents are stored.
func NewFileStore(rootDir string) (*FileStore, error) {
	fs := &FileStore{
		rootDir:      rootDir,
		databasesDir: filepath.Join(rootDir, "databases"),
	}
	if err := os.MkdirAll(fs.databasesDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create directory %s: %w", fs.databasesDir, err)
	}
	return fs, nil
}

// RootDir returns the root directory path.
func (fs *FileStore) RootDir() string {
	return fs.rootDir
}

// DatabaseExists reports whether the database directory exists.
func (fs *FileStore) DatabaseExists(database string) bool {
	return validName(database) && isDir(filepath.Join(fs.databasesDir, database))
}

// SchemaExists reports whether the schema directory exists.
func (fs *FileStore) SchemaExists(database, schema string) bool {
	return validName(database) && validName(schema) && isDir(fs.schemaDir(database, schema))
}

// TableExists reports whether the table document exists.
func (fs *FileStore) TableExists(database, schema, table string) bool {
	if !validName(database) || !validName(schema) || !validName(table) {
		return false
	}
	info, err := os.Stat(fs.tablePath(database, schema, table))
	return err == nil && info.Mode().IsRegular()
}

// CreateTable creates the directories and an empty document for a table.
// An existing document is left untouched.
func (fs *FileStore) CreateTable(database, schema, table string) error {
	if !validName(database) || !validName(schema) || !validName(table) {
		return errors.BadRequest(fmt.Sprintf("invalid table name %s.%s.%s", database, schema, table))
	}
	if err := os.MkdirAll(fs.schemaDir(database, schema), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create schema directory: %w", err)
	}
	if fs.TableExists(database, schema, table) {
		return nil
	}
	return writeFileAtomic(fs.tablePath(database, schema, table), &Document{Data: map[string]any{}})
}

// ReadTable reads and parses a table document.
func (fs *FileStore) ReadTable(database, schema, table string) (*Document, error) {
	data, err := fs.readTable(database, schema, table)
	if err != nil {
		return nil, err
	}
	doc, err := DecodeDocument(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse table %s: %w", table, err)
	}
	return doc, nil
}

// ReadTableJSON decodes a table document into v, for tables whose top-level
// key is not data. Numbers decode as json.Number.
func (fs *FileStore) ReadTableJSON(database, schema, table string, v any) error {
	data, err := fs.readTable(database, schema, table)
	if err != nil {
		return err
	}
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	if err := d.Decode(v); err != nil {
		return fmt.Errorf("failed to parse table %s: %w", table, err)
	}
	return nil
}

func (fs *FileStore) readTable(database, schema, table string) ([]byte, error) {
	if !fs.TableExists(database, schema, table) {
		return nil, errors.NotFound("Table not found: " + table)
	}
	data, err := os.ReadFile(fs.tablePath(database, schema, table)) //nolint:gosec // G304: path components are validated
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	return data, nil
}

// LoadRows reads a table document and returns its data as a row sequence.
func (fs *FileStore) LoadRows(database, schema, table string) ([]Row, error) {
	doc, err := fs.ReadTable(database, schema, table)
	if err != nil {
		return nil, err
	}
	return doc.Rows()
}

// WriteTable overwrites a table document. The document must already exist.
func (fs *FileStore) WriteTable(database, schema, table string, doc *Document) error {
	return fs.WriteTableJSON(database, schema, table, doc)
}

// WriteTableJSON overwrites a table document with v marshaled as JSON.
func (fs *FileStore) WriteTableJSON(database, schema, table string, v any) error {
	if !fs.TableExists(database, schema, table) {
		return errors.NotFound("Table not found: " + table)
	}
	if err := writeFileAtomic(fs.tablePath(database, schema, table), v); err != nil {
		return fmt.Errorf("failed to write table %s: %w", table, err)
	}
	return nil
}

// ListTableFiles lists the table names found in a schema directory.
// Everything after the first dot of a file name is stripped.
func (fs *FileStore) ListTableFiles(database, schema string) ([]string, error) {
	if !fs.SchemaExists(database, schema) {
		return nil, errors.NotFound("Schema not found: " + schema)
	}
	entries, err := os.ReadDir(fs.schemaDir(database, schema))
	if err != nil {
		return nil, fmt.Errorf("failed to list schema %s: %w", schema, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name, _, _ := strings.Cut(e.Name(), ".")
		names = append(names, name)
	}
	return names, nil
}

// RelTablePath returns the document path relative to RootDir, slash separated.
func (fs *FileStore) RelTablePath(database, schema, table string) string {
	return "databases/" + database + "/" + schema + "/" + table + tableExt
}

func (fs *FileStore) schemaDir(database, schema string) string {
	return filepath.Join(fs.databasesDir, database, schema)
}

func (fs *FileStore) tablePath(database, schema, table string) string {
	return filepath.Join(fs.databasesDir, database, schema, table+tableExt)
}

// validName rejects names that would escape their parent directory.
func validName(name string) bool {
	return name != "" && !strings.HasPrefix(name, ".") && !strings.ContainsAny(name, `/\`)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// writeFileAtomic marshals v as indented JSON and replaces path with it.
func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	data = append(data, '\n')
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// WriteJSONFile atomically writes v as indented JSON to path.
// Used for files that live next to the databases, like the catalog.
func WriteJSONFile(path string, v any) error {
	return writeFileAtomic(path, v)
}
