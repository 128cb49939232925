// Package identity verifies credentials stored in the reserved users database,
// issues session tokens and resolves per-user permissions.
package identity

import (
	"context"
	"log/slog"

	"github.com/its-mr-monday/WebDB/internal/catalog"
	"github.com/its-mr-monday/WebDB/internal/errors"
	"github.com/its-mr-monday/WebDB/internal/storage"
)

// Service handles users, groups and session tokens.
type Service struct {
	store  *storage.FileStore
	tokens *Tokens
	locks  *storage.TableLocks
}

// NewService creates a service backed by the catalog's store and secret.
// locks serializes writes to the users tables; it may be shared with other
// writers of the same store.
func NewService(cat *catalog.Catalog, locks *storage.TableLocks) *Service {
	if locks == nil {
		locks = &storage.TableLocks{}
	}
	return &Service{
		store:  cat.Store(),
		tokens: NewTokens(cat.Secret()),
		locks:  locks,
	}
}

// Login verifies the password and returns a session token for username.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.findUser(username)
	if err != nil {
		if errors.IsKind(err, errors.ErrNotFound) {
			slog.WarnContext(ctx, "login failed", "user", username, "reason", "unknown user")
		}
		return "", err
	}
	if err := checkPassword(u.passwordHash, password); err != nil {
		slog.WarnContext(ctx, "login failed", "user", username, "reason", "invalid password")
		return "", errors.InvalidCredentials("Invalid password")
	}
	return s.tokens.Issue(username)
}

// VerifyToken reports whether token carries a valid signature.
func (s *Service) VerifyToken(token string) bool {
	return s.tokens.Verify(token)
}

// UserFromToken returns the username embedded in token.
func (s *Service) UserFromToken(token string) (string, bool) {
	return s.tokens.UserOf(token)
}

// Permissions resolves the groups of username against groups_table.
func (s *Service) Permissions(_ context.Context, username string) (*Permissions, error) {
	u, err := s.findUser(username)
	if err != nil {
		return nil, err
	}
	perms, err := s.loadGroups()
	if err != nil {
		return nil, err
	}
	return NewPermissions(username, u.groups, perms), nil
}

// AddUser appends a user to users_table. Names must be unique.
func (s *Service) AddUser(ctx context.Context, name, password string, groups []string) error {
	if name == "" || password == "" {
		return errors.BadRequest("name and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(catalog.UsersDatabase, catalog.UsersSchema, catalog.UsersTable)
	defer unlock()

	doc, err := s.store.ReadTable(catalog.UsersDatabase, catalog.UsersSchema, catalog.UsersTable)
	if err != nil {
		return err
	}
	rows, err := usersOf(doc)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r["name"] == name {
			return errors.Conflict("User already exists: " + name)
		}
	}
	gs := make([]any, 0, len(groups))
	for _, g := range groups {
		gs = append(gs, g)
	}
	doc.Data = append(rows, storage.Row{"name": name, "password": hash, "groups": gs})
	if err := s.store.WriteTable(catalog.UsersDatabase, catalog.UsersSchema, catalog.UsersTable, doc); err != nil {
		return err
	}
	slog.InfoContext(ctx, "user added", "user", name, "groups", groups)
	return nil
}

// SetGroup creates or replaces a group's permission string.
func (s *Service) SetGroup(ctx context.Context, group, permission string) error {
	if group == "" {
		return errors.BadRequest("group name is required")
	}
	unlock := s.locks.Lock(catalog.UsersDatabase, catalog.UsersSchema, catalog.GroupsTable)
	defer unlock()

	var doc groupsDocument
	if err := s.store.ReadTableJSON(catalog.UsersDatabase, catalog.UsersSchema, catalog.GroupsTable, &doc); err != nil {
		return err
	}
	groups := doc.groups()
	groups[group] = permission
	if err := s.store.WriteTableJSON(catalog.UsersDatabase, catalog.UsersSchema, catalog.GroupsTable, &groupsDocument{Groups: groups}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "group updated", "group", group, "permission", permission)
	return nil
}

type user struct {
	name         string
	passwordHash string
	groups       []string
}

// findUser returns the first users_table row named username.
func (s *Service) findUser(username string) (*user, error) {
	doc, err := s.store.ReadTable(catalog.UsersDatabase, catalog.UsersSchema, catalog.UsersTable)
	if err != nil {
		return nil, err
	}
	rows, err := usersOf(doc)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if name, _ := r["name"].(string); name != username {
			continue
		}
		u := &user{name: username}
		u.passwordHash, _ = r["password"].(string)
		if list, ok := r["groups"].([]any); ok {
			for _, g := range list {
				if name, ok := g.(string); ok {
					u.groups = append(u.groups, name)
				}
			}
		}
		return u, nil
	}
	return nil, errors.NotFound("User not found")
}

// groupsDocument is groups_table: {"groups": {"<group>": "<permissions>"}}.
// Tables created through CreateTable hold {"data": {}} until the first
// SetGroup, so data is read as a fallback.
type groupsDocument struct {
	Groups map[string]any `json:"groups"`
	Data   any            `json:"data,omitempty"`
}

func (d *groupsDocument) groups() map[string]any {
	if d.Groups != nil {
		return d.Groups
	}
	if m, ok := d.Data.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// loadGroups returns groups_table as group name to permission string.
// Entries that are not strings are ignored.
func (s *Service) loadGroups() (map[string]string, error) {
	var doc groupsDocument
	if err := s.store.ReadTableJSON(catalog.UsersDatabase, catalog.UsersSchema, catalog.GroupsTable, &doc); err != nil {
		return nil, err
	}
	groups := doc.groups()
	perms := make(map[string]string, len(groups))
	for g, v := range groups {
		if p, ok := v.(string); ok {
			perms[g] = p
		}
	}
	return perms, nil
}

// usersOf returns the rows of users_table. A fresh table holding an empty
// mapping has no users.
func usersOf(doc *storage.Document) ([]storage.Row, error) {
	if m, ok := doc.Data.(map[string]any); ok && len(m) == 0 {
		return []storage.Row{}, nil
	}
	return doc.Rows()
}
