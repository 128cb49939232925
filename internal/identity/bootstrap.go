package identity

import (
	"github.com/its-mr-monday/WebDB/internal/catalog"
	"github.com/its-mr-monday/WebDB/internal/errors"
	"github.com/its-mr-monday/WebDB/internal/storage"
)

// Bootstrap initializes an empty data directory: a catalog with a fresh
// secret, the reserved users database, and admin as the only user, member of
// the ALL group. It fails if a catalog already exists.
func Bootstrap(store *storage.FileStore, admin, password string) (*catalog.Catalog, error) {
	if admin == "" || password == "" {
		return nil, errors.BadRequest("admin name and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Create(store)
	if err != nil {
		return nil, err
	}
	userFields := []catalog.Field{{Name: "name", Type: catalog.String}, {Name: "password", Type: catalog.String}}
	if err := cat.AddTable(catalog.UsersDatabase, catalog.UsersSchema, catalog.UsersTable, userFields); err != nil {
		return nil, err
	}
	if err := cat.AddTable(catalog.UsersDatabase, catalog.UsersSchema, catalog.GroupsTable, nil); err != nil {
		return nil, err
	}
	if err := store.WriteTableJSON(catalog.UsersDatabase, catalog.UsersSchema, catalog.GroupsTable, &groupsDocument{Groups: map[string]any{}}); err != nil {
		return nil, err
	}
	users := &storage.Document{Data: []storage.Row{{
		"name":     admin,
		"password": hash,
		"groups":   []any{AllGroup},
	}}}
	if err := store.WriteTable(catalog.UsersDatabase, catalog.UsersSchema, catalog.UsersTable, users); err != nil {
		return nil, err
	}
	if err := cat.Save(); err != nil {
		return nil, err
	}
	return cat, nil
}
