package handlers

import (
	"context"

	"github.com/invopop/jsonschema"
	"github.com/its-mr-monday/WebDB/internal/storage"
	"github.com/its-mr-monday/WebDB/internal/tables"
)

// TableHandler reads and updates table documents.
type TableHandler struct {
	engine *tables.Engine
}

// NewTableHandler creates a new table handler.
func NewTableHandler(engine *tables.Engine) *TableHandler {
	return &TableHandler{engine: engine}
}

// TableRef addresses one table through the request path.
type TableRef struct {
	Database string `json:"-" path:"database"`
	Schema   string `json:"-" path:"schema"`
	Table    string `json:"-" path:"table"`
}

// SelectRequest is a request to read rows.
type SelectRequest struct {
	TableRef
	Condition string `json:"-" query:"condition"`
}

// SelectResponse holds the matching rows.
type SelectResponse struct {
	Rows []storage.Row `json:"rows"`
}

// Select returns the rows matching the condition.
func (h *TableHandler) Select(ctx context.Context, req SelectRequest) (*SelectResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := h.engine.Select(ctx, user, req.Database, req.Schema, req.Table, req.Condition)
	if err != nil {
		return nil, err
	}
	return &SelectResponse{Rows: rows}, nil
}

// UpdateRequest is a request to change field values.
type UpdateRequest struct {
	TableRef
	Condition string         `json:"condition"`
	Changes   map[string]any `json:"changes"`
}

// UpdateResponse acknowledges an update.
type UpdateResponse struct {
	Message string `json:"message"`
}

// Update validates and applies changes to the table.
func (h *TableHandler) Update(ctx context.Context, req UpdateRequest) (*UpdateResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := h.engine.Update(ctx, user, req.Database, req.Schema, req.Table, req.Condition, req.Changes)
	if err != nil {
		return nil, err
	}
	return &UpdateResponse{Message: msg}, nil
}

// SchemaRequest is a request for a table's row schema.
type SchemaRequest struct {
	TableRef
}

// Schema returns the JSON Schema of the table's rows.
func (h *TableHandler) Schema(ctx context.Context, req SchemaRequest) (*jsonschema.Schema, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return h.engine.RowSchema(ctx, user, req.Database, req.Schema, req.Table)
}

// HistoryRequest is a request for a table's change history.
type HistoryRequest struct {
	TableRef
	Limit int `json:"-" query:"limit"`
}

// HistoryResponse lists commits, newest first.
type HistoryResponse struct {
	Commits []*storage.Commit `json:"commits"`
}

// History returns the commits that touched the table document.
func (h *TableHandler) History(ctx context.Context, req HistoryRequest) (*HistoryResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	commits, err := h.engine.History(ctx, user, req.Database, req.Schema, req.Table, limit)
	if err != nil {
		return nil, err
	}
	return &HistoryResponse{Commits: commits}, nil
}
