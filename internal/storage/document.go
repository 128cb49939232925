package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"

	"github.com/its-mr-monday/WebDB/internal/errors"
)

// Row is a single row object: field name to scalar value.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	return maps.Clone(r)
}

// Document is the on-disk representation of one table.
//
// Data is either a sequence of row objects or, for tables used as a single
// record, a mapping from field name to value. Numbers are kept as
// json.Number so integers and floats stay distinguishable.
type Document struct {
	Data any `json:"data"`
}

// DecodeDocument parses a document from r.
func DecodeDocument(r io.Reader) (*Document, error) {
	d := json.NewDecoder(r)
	d.UseNumber()
	var doc Document
	if err := d.Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Rows returns Data as a row sequence. A mapping is returned as a single row.
func (d *Document) Rows() ([]Row, error) {
	switch v := d.Data.(type) {
	case nil:
		return []Row{}, nil
	case []any:
		rows := make([]Row, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, errors.InvalidDatatype(fmt.Sprintf("row %d is not an object", i))
			}
			rows = append(rows, m)
		}
		return rows, nil
	case []Row:
		return v, nil
	case map[string]any:
		return []Row{v}, nil
	case Row:
		return []Row{v}, nil
	default:
		return nil, errors.InvalidDatatype(fmt.Sprintf("document data has unexpected type %T", d.Data))
	}
}

// Fields returns Data as a mapping. The returned row aliases the document.
func (d *Document) Fields() (Row, error) {
	switch v := d.Data.(type) {
	case map[string]any:
		return v, nil
	case Row:
		return v, nil
	case nil:
		m := Row{}
		d.Data = m
		return m, nil
	default:
		return nil, errors.InvalidDatatype("document data is not a mapping")
	}
}
