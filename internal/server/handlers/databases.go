package handlers

import (
	"context"

	"github.com/its-mr-monday/WebDB/internal/catalog"
)

// DatabaseHandler lists the catalog hierarchy.
type DatabaseHandler struct {
	cat *catalog.Catalog
}

// NewDatabaseHandler creates a new database handler.
func NewDatabaseHandler(cat *catalog.Catalog) *DatabaseHandler {
	return &DatabaseHandler{cat: cat}
}

// ListDatabasesRequest is a request to list databases.
type ListDatabasesRequest struct{}

// ListDatabasesResponse lists database names.
type ListDatabasesResponse struct {
	Databases []string `json:"databases"`
}

// ListDatabases returns every database except the reserved users database.
func (h *DatabaseHandler) ListDatabases(ctx context.Context, _ ListDatabasesRequest) (*ListDatabasesResponse, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	return &ListDatabasesResponse{Databases: h.cat.ListDatabases()}, nil
}

// ListSchemasRequest is a request to list the schemas of a database.
type ListSchemasRequest struct {
	Database string `json:"-" path:"database"`
}

// ListSchemasResponse lists schema names.
type ListSchemasResponse struct {
	Schemas []string `json:"schemas"`
}

// ListSchemas returns the schemas of a database.
func (h *DatabaseHandler) ListSchemas(ctx context.Context, req ListSchemasRequest) (*ListSchemasResponse, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	schemas, err := h.cat.ListSchemas(req.Database)
	if err != nil {
		return nil, err
	}
	return &ListSchemasResponse{Schemas: schemas}, nil
}

// ListTablesRequest is a request to list the tables of a schema.
type ListTablesRequest struct {
	Database string `json:"-" path:"database"`
	Schema   string `json:"-" path:"schema"`
}

// ListTablesResponse lists table names.
type ListTablesResponse struct {
	Tables []string `json:"tables"`
}

// ListTables returns the tables found in a schema directory.
func (h *DatabaseHandler) ListTables(ctx context.Context, req ListTablesRequest) (*ListTablesResponse, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	tables, err := h.cat.ListTables(req.Database, req.Schema)
	if err != nil {
		return nil, err
	}
	return &ListTablesResponse{Tables: tables}, nil
}
