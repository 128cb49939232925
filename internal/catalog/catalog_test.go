package catalog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/its-mr-monday/WebDB/internal/errors"
	"github.com/its-mr-monday/WebDB/internal/storage"
	"gopkg.in/yaml.v3"
)

// writeFixture lays out a data directory with the given catalog document and
// the listed table documents.
func writeFixture(t *testing.T, dbMap string, tables ...string) *storage.FileStore {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(store.RootDir(), FileName), []byte(dbMap), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, path := range tables {
		parts := strings.Split(path, ".")
		if err := store.CreateTable(parts[0], parts[1], parts[2]); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

const fixtureMap = `{
  "secret_key": "s3cret",
  "databases": {
    "zoo": {"schemas": {"animals": {"tables": {"cats": {"fields": {"name": "string"}}}}}},
    "users": {"schemas": {"usersSchema": {"tables": {
      "users_table": {"fields": {"name": "string"}},
      "groups_table": {"fields": {}}
    }}}},
    "accounting": {"schemas": {
      "general": {"tables": {"ledger": {"fields": {"amount": "float", "count": "int", "memo": "string", "closed": "bool"}}}},
      "archive": {"tables": {}}
    }}
  }
}`

func loadFixture(t *testing.T) *Catalog {
	t.Helper()
	store := writeFixture(t, fixtureMap,
		"zoo.animals.cats",
		"users.usersSchema.users_table",
		"users.usersSchema.groups_table",
		"accounting.general.ledger",
	)
	c, err := Load(store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLoad(t *testing.T) {
	c := loadFixture(t)
	if string(c.Secret()) != "s3cret" {
		t.Errorf("Secret() = %q", c.Secret())
	}

	t.Run("missing file", func(t *testing.T) {
		store, err := storage.NewFileStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Load(store); err == nil {
			t.Error("expected error for missing catalog")
		}
	})
	t.Run("missing secret", func(t *testing.T) {
		store := writeFixture(t, `{"databases": {}}`)
		if _, err := Load(store); err == nil {
			t.Error("expected error for missing secret")
		}
	})
	t.Run("unknown datatype", func(t *testing.T) {
		store := writeFixture(t, `{"secret_key": "x", "databases": {"a": {"schemas": {"b": {"tables": {"c": {"fields": {"f": "decimal"}}}}}}}}`)
		if _, err := Load(store); err == nil {
			t.Error("expected error for unknown datatype")
		}
	})
}

func TestListDatabases(t *testing.T) {
	c := loadFixture(t)
	got := c.ListDatabases()
	// Catalog order, users excluded.
	want := []string{"zoo", "accounting"}
	if !slices.Equal(got, want) {
		t.Errorf("ListDatabases() = %v, want %v", got, want)
	}
}

func TestListSchemas(t *testing.T) {
	c := loadFixture(t)
	got, err := c.ListSchemas("accounting")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"general", "archive"}) {
		t.Errorf("ListSchemas = %v", got)
	}
	if _, err := c.ListSchemas(UsersDatabase); !errors.IsKind(err, errors.ErrNotFound) {
		t.Errorf("users: expected NOT_FOUND, got %v", err)
	}
	if _, err := c.ListSchemas("missing"); !errors.IsKind(err, errors.ErrNotFound) {
		t.Errorf("missing: expected NOT_FOUND, got %v", err)
	}
}

func TestListTables(t *testing.T) {
	c := loadFixture(t)
	// A document on disk that the catalog does not declare is still listed.
	if err := c.Store().CreateTable("accounting", "general", "undeclared"); err != nil {
		t.Fatal(err)
	}
	got, err := c.ListTables("accounting", "general")
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(got)
	if !slices.Equal(got, []string{"ledger", "undeclared"}) {
		t.Errorf("ListTables = %v", got)
	}

	tests := []struct {
		name, db, schema string
	}{
		{"users", UsersDatabase, UsersSchema},
		{"absent database", "missing", "general"},
		{"schema declared but not on disk", "accounting", "archive"},
		{"absent schema", "accounting", "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.ListTables(tt.db, tt.schema); !errors.IsKind(err, errors.ErrNotFound) {
				t.Errorf("expected NOT_FOUND, got %v", err)
			}
		})
	}
}

func TestExists(t *testing.T) {
	c := loadFixture(t)
	if !c.TableExists("accounting", "general", "ledger") {
		t.Error("ledger should exist")
	}
	// On disk only.
	if err := c.Store().CreateTable("accounting", "general", "ghost"); err != nil {
		t.Fatal(err)
	}
	if c.TableExists("accounting", "general", "ghost") {
		t.Error("undeclared document must not exist")
	}
	// Declared only.
	if c.SchemaExists("accounting", "archive") {
		t.Error("schema without directory must not exist")
	}
	if err := os.Remove(filepath.Join(c.Store().RootDir(), filepath.FromSlash(c.Store().RelTablePath("zoo", "animals", "cats")))); err != nil {
		t.Fatal(err)
	}
	if c.TableExists("zoo", "animals", "cats") {
		t.Error("declared table without document must not exist")
	}
	if !c.DatabaseExists("zoo") || c.DatabaseExists("nowhere") {
		t.Error("DatabaseExists mismatch")
	}
}

func TestFields(t *testing.T) {
	c := loadFixture(t)
	fields, err := c.FieldsOf("accounting", "general", "ledger")
	if err != nil {
		t.Fatal(err)
	}
	if fields["amount"] != Float || fields["count"] != Int || len(fields) != 4 {
		t.Errorf("FieldsOf = %v", fields)
	}
	// Returned map is a copy.
	fields["amount"] = String
	if dt, _ := c.FieldType("accounting", "general", "ledger", "amount"); dt != Float {
		t.Errorf("catalog mutated through FieldsOf: %s", dt)
	}
	if _, err := c.FieldType("accounting", "general", "ledger", "nope"); !errors.IsKind(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND for unknown field, got %v", err)
	}
	if _, err := c.FieldsOf("accounting", "general", "nope"); !errors.IsKind(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND for unknown table, got %v", err)
	}
}

func TestCreateAddTableSave(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c, err := Create(store)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(c.Secret()) != 64 {
		t.Errorf("expected hex encoded 32 byte secret, got %d chars", len(c.Secret()))
	}
	if _, err := Create(store); !errors.IsKind(err, errors.ErrConflict) {
		t.Errorf("second Create: expected CONFLICT, got %v", err)
	}
	if err := c.AddTable("shop", "public", "items", []Field{{"name", String}, {"price", Float}}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddTable("shop", "public", "bad", []Field{{"x", "decimal"}}); !errors.IsKind(err, errors.ErrInvalidDatatype) {
		t.Errorf("expected INVALID_DATATYPE, got %v", err)
	}
	if !c.TableExists("shop", "public", "items") {
		t.Fatal("added table should exist")
	}

	// Not persisted until Save.
	reloaded, err := Load(store)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.TableExists("shop", "public", "items") {
		t.Error("AddTable must not save implicitly")
	}
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}
	reloaded, err = Load(store)
	if err != nil {
		t.Fatal(err)
	}
	fields, err := reloaded.Fields("shop", "public", "items")
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 2 || fields[0].Name != "name" || fields[1].Type != Float {
		t.Errorf("reloaded fields = %v", fields)
	}
	if !bytes.Equal(reloaded.Secret(), c.Secret()) {
		t.Error("secret changed across save")
	}
}

func TestRowSchema(t *testing.T) {
	c := loadFixture(t)
	s, err := c.RowSchema("accounting", "general", "ledger")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Type       string                       `json:"type"`
		Properties map[string]map[string]string `json:"properties"`
		Additional bool                         `json:"additionalProperties"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != "object" || decoded.Additional {
		t.Errorf("unexpected schema %s", raw)
	}
	want := map[string]string{"amount": "number", "count": "integer", "memo": "string", "closed": "boolean"}
	for k, v := range want {
		if decoded.Properties[k]["type"] != v {
			t.Errorf("property %s type = %q, want %q", k, decoded.Properties[k]["type"], v)
		}
	}
	if _, err := c.RowSchema("accounting", "general", "nope"); !errors.IsKind(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	c := loadFixture(t)
	var buf bytes.Buffer
	if err := c.Describe(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "usersSchema") || strings.Contains(out, "s3cret") {
		t.Errorf("Describe leaked reserved data:\n%s", out)
	}
	var decoded struct {
		Databases []struct {
			Name    string `yaml:"name"`
			Schemas []struct {
				Name string `yaml:"name"`
			} `yaml:"schemas"`
		} `yaml:"databases"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Databases) != 2 || decoded.Databases[0].Name != "zoo" || len(decoded.Databases[1].Schemas) != 2 {
		t.Errorf("unexpected describe output:\n%s", out)
	}
}
