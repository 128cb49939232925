// Package tables implements validated reads and updates of table documents.
package tables

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/invopop/jsonschema"
	"github.com/its-mr-monday/WebDB/internal/catalog"
	"github.com/its-mr-monday/WebDB/internal/errors"
	"github.com/its-mr-monday/WebDB/internal/identity"
	"github.com/its-mr-monday/WebDB/internal/storage"
)

// UpdatedMessage is the acknowledgment returned by a successful Update.
const UpdatedMessage = "Table updated!"

// Engine checks existence, permissions and datatypes before touching a
// table document.
type Engine struct {
	cat     *catalog.Catalog
	store   *storage.FileStore
	ids     *identity.Service
	locks   *storage.TableLocks
	history *storage.GitService
}

// New returns an engine. history may be nil to disable commits.
func New(cat *catalog.Catalog, ids *identity.Service, locks *storage.TableLocks, history *storage.GitService) *Engine {
	if locks == nil {
		locks = &storage.TableLocks{}
	}
	return &Engine{cat: cat, store: cat.Store(), ids: ids, locks: locks, history: history}
}

// Update merges changes into the table's data mapping and persists it.
//
// The condition is split into clauses but does not select rows: changes
// always apply to the top level of data. Operators and conjunctions are not
// checked since no clause is evaluated. The document is left untouched when
// any change fails validation.
func (e *Engine) Update(ctx context.Context, user, database, schema, table, condition string, changes map[string]any) (string, error) {
	if !e.cat.TableExists(database, schema, table) {
		return "", errors.NotFound("Table not found: " + table)
	}
	perms, err := e.ids.Permissions(ctx, user)
	if err != nil {
		return "", err
	}
	if !perms.CanWrite(database, schema) {
		slog.WarnContext(ctx, "write denied", "user", user, "db", database, "schema", schema, "table", table)
		return "", errors.PermissionDenied("User does not have write permissions")
	}
	if _, err := splitConditions(condition); err != nil {
		return "", err
	}
	declared, err := e.cat.FieldsOf(database, schema, table)
	if err != nil {
		return "", err
	}
	keys := slices.Sorted(maps.Keys(changes))
	for _, k := range keys {
		want, ok := declared[k]
		if !ok {
			return "", errors.NotFound("Field not found: " + k)
		}
		got, ok := DatatypeOf(changes[k])
		if !ok || got != want {
			if !ok {
				got = "unknown"
			}
			return "", errors.InvalidDatatype(fmt.Sprintf("Invalid datatype for field: %s, expected: %s, received: %s", k, want, got)).
				WithDetail("field", k)
		}
	}

	unlock := e.locks.Lock(database, schema, table)
	defer unlock()
	doc, err := e.store.ReadTable(database, schema, table)
	if err != nil {
		return "", err
	}
	data, err := doc.Fields()
	if err != nil {
		return "", err
	}
	maps.Copy(data, changes)
	if err := e.store.WriteTable(database, schema, table, doc); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "table updated", "user", user, "db", database, "schema", schema, "table", table, "fields", keys)

	if e.history != nil {
		msg := fmt.Sprintf("update %s.%s.%s: %v", database, schema, table, keys)
		if err := e.history.CommitChange(ctx, user, msg, e.store.RelTablePath(database, schema, table)); err != nil {
			// The document is already written; history is best effort.
			slog.WarnContext(ctx, "failed to record history", "db", database, "schema", schema, "table", table, "err", err)
		}
	}
	return UpdatedMessage, nil
}

// Select returns the rows matching condition. A mapping shaped document is a
// single row.
func (e *Engine) Select(ctx context.Context, user, database, schema, table, condition string) ([]storage.Row, error) {
	if err := e.checkRead(ctx, user, database, schema, table); err != nil {
		return nil, err
	}
	conds, err := ParseConditions(condition)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.LoadRows(database, schema, table)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Row, 0, len(rows))
	for _, r := range rows {
		if Match(r, conds) {
			out = append(out, r)
		}
	}
	return out, nil
}

// RowSchema returns the JSON Schema of the table's rows.
func (e *Engine) RowSchema(ctx context.Context, user, database, schema, table string) (*jsonschema.Schema, error) {
	if err := e.checkRead(ctx, user, database, schema, table); err != nil {
		return nil, err
	}
	return e.cat.RowSchema(database, schema, table)
}

// History returns up to n commits touching the table document, newest first.
// It is empty when history is disabled.
func (e *Engine) History(ctx context.Context, user, database, schema, table string, n int) ([]*storage.Commit, error) {
	if err := e.checkRead(ctx, user, database, schema, table); err != nil {
		return nil, err
	}
	if e.history == nil {
		return []*storage.Commit{}, nil
	}
	return e.history.GetHistory(ctx, e.store.RelTablePath(database, schema, table), n)
}

func (e *Engine) checkRead(ctx context.Context, user, database, schema, table string) error {
	if !e.cat.TableExists(database, schema, table) {
		return errors.NotFound("Table not found: " + table)
	}
	perms, err := e.ids.Permissions(ctx, user)
	if err != nil {
		return err
	}
	if !perms.CanRead(database, schema) {
		slog.WarnContext(ctx, "read denied", "user", user, "db", database, "schema", schema, "table", table)
		return errors.PermissionDenied("User does not have read permissions")
	}
	return nil
}
