package identity

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/its-mr-monday/WebDB/internal/catalog"
	"github.com/its-mr-monday/WebDB/internal/errors"
	"github.com/its-mr-monday/WebDB/internal/storage"
)

func newTestService(t *testing.T) (*Service, *catalog.Catalog) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cat, err := Bootstrap(store, "admin", "hunter2")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return NewService(cat, nil), cat
}

func TestBootstrap(t *testing.T) {
	s, cat := newTestService(t)
	if !cat.TableExists(catalog.UsersDatabase, catalog.UsersSchema, catalog.UsersTable) ||
		!cat.TableExists(catalog.UsersDatabase, catalog.UsersSchema, catalog.GroupsTable) {
		t.Fatal("users tables should exist")
	}
	for _, db := range cat.ListDatabases() {
		if db == catalog.UsersDatabase {
			t.Error("users database must not be listed")
		}
	}
	// The catalog was saved and can be reloaded.
	reloaded, err := catalog.Load(cat.Store())
	if err != nil {
		t.Fatal(err)
	}
	if string(reloaded.Secret()) != string(cat.Secret()) {
		t.Error("secret not persisted")
	}
	p, err := s.Permissions(t.Context(), "admin")
	if err != nil {
		t.Fatal(err)
	}
	if !p.CanRead("any", "thing") || !p.CanWrite("any", "thing") {
		t.Error("admin should be in ALL")
	}
	if raw := readUsersTable(t, cat, catalog.GroupsTable); !strings.Contains(raw, `"groups": {}`) {
		t.Errorf("groups_table = %s", raw)
	}
	if _, err := Bootstrap(cat.Store(), "admin", "x"); !errors.IsKind(err, errors.ErrConflict) {
		t.Errorf("second Bootstrap: expected CONFLICT, got %v", err)
	}
}

func writeUsersTable(t *testing.T, cat *catalog.Catalog, table, content string) {
	t.Helper()
	store := cat.Store()
	path := filepath.Join(store.RootDir(), filepath.FromSlash(store.RelTablePath(catalog.UsersDatabase, catalog.UsersSchema, table)))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func readUsersTable(t *testing.T, cat *catalog.Catalog, table string) string {
	t.Helper()
	store := cat.Store()
	b, err := os.ReadFile(filepath.Join(store.RootDir(), filepath.FromSlash(store.RelTablePath(catalog.UsersDatabase, catalog.UsersSchema, table))))
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestLogin(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		for _, name := range []string{"nobody", "", "Admin"} {
			if _, err := s.Login(ctx, name, "hunter2"); !errors.IsKind(err, errors.ErrNotFound) {
				t.Errorf("Login(%q): expected NOT_FOUND, got %v", name, err)
			}
		}
	})
	t.Run("wrong password", func(t *testing.T) {
		if _, err := s.Login(ctx, "admin", "hunter3"); !errors.IsKind(err, errors.ErrInvalidCredentials) {
			t.Errorf("expected INVALID_CREDENTIALS, got %v", err)
		}
	})
	t.Run("success", func(t *testing.T) {
		tok, err := s.Login(ctx, "admin", "hunter2")
		if err != nil {
			t.Fatal(err)
		}
		if !s.VerifyToken(tok) {
			t.Error("token should verify")
		}
		if user, ok := s.UserFromToken(tok); !ok || user != "admin" {
			t.Errorf("UserFromToken = %q, %v", user, ok)
		}
		if s.VerifyToken(tok + "x") {
			t.Error("corrupted token should not verify")
		}
	})
	t.Run("sha256_crypt hash", func(t *testing.T) {
		s, cat := newTestService(t)
		writeUsersTable(t, cat, catalog.UsersTable, `{"data": [
			{"name": "legacy", "password": "$5$rounds=10000$saltstringsaltst$3xv.VbSHBb41AL9AvLeujZkZRBAwqFMz2.opqey6IcA", "groups": []}
		]}`)
		tok, err := s.Login(ctx, "legacy", "Hello world!")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if user, ok := s.UserFromToken(tok); !ok || user != "legacy" {
			t.Errorf("UserFromToken = %q, %v", user, ok)
		}
		if _, err := s.Login(ctx, "legacy", "Hello world"); !errors.IsKind(err, errors.ErrInvalidCredentials) {
			t.Errorf("expected INVALID_CREDENTIALS, got %v", err)
		}
	})
}

func TestGroupsTableShapes(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		content string
	}{
		{"groups key", `{"groups": {"clerks": "READ accounting.general"}}`},
		{"data key", `{"data": {"clerks": "READ accounting.general"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, cat := newTestService(t)
			writeUsersTable(t, cat, catalog.GroupsTable, tt.content)
			if err := s.AddUser(ctx, "bob", "pw", []string{"clerks"}); err != nil {
				t.Fatal(err)
			}
			p, err := s.Permissions(ctx, "bob")
			if err != nil {
				t.Fatal(err)
			}
			if !p.CanWrite("accounting", "general") {
				t.Error("bob should write accounting.general")
			}

			if err := s.SetGroup(ctx, "auditors", "WRITE accounting.general"); err != nil {
				t.Fatal(err)
			}
			raw := readUsersTable(t, cat, catalog.GroupsTable)
			if !strings.Contains(raw, `"groups"`) || strings.Contains(raw, `"data"`) {
				t.Errorf("groups_table not written under groups:\n%s", raw)
			}
			if p, err = s.Permissions(ctx, "bob"); err != nil || !p.CanWrite("accounting", "general") {
				t.Errorf("clerks lost after SetGroup: %v", err)
			}
		})
	}
}

func TestAddUserAndGroups(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	if err := s.SetGroup(ctx, "accountants", "READ WRITE accounting.general"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetGroup(ctx, "auditors", "WRITE accounting.general"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddUser(ctx, "bob", "pw", []string{"accountants", "missing"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddUser(ctx, "carol", "pw", []string{"auditors"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddUser(ctx, "bob", "other", nil); !errors.IsKind(err, errors.ErrConflict) {
		t.Errorf("duplicate user: expected CONFLICT, got %v", err)
	}
	if err := s.AddUser(ctx, "", "pw", nil); !errors.IsKind(err, errors.ErrValidationFailed) {
		t.Errorf("empty name: expected VALIDATION_FAILED, got %v", err)
	}

	if _, err := s.Login(ctx, "bob", "pw"); err != nil {
		t.Fatalf("Login(bob): %v", err)
	}

	bob, err := s.Permissions(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !bob.CanRead("accounting", "general") || !bob.CanWrite("accounting", "general") {
		t.Error("bob should read and write accounting.general")
	}
	if len(bob.Groups()) != 2 {
		t.Errorf("groups = %v", bob.Groups())
	}

	carol, err := s.Permissions(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if !carol.CanRead("accounting", "general") || carol.CanWrite("accounting", "general") {
		t.Error("carol should read but not write accounting.general")
	}

	if _, err := s.Permissions(ctx, "nobody"); !errors.IsKind(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}
