package catalog

import (
	"fmt"
	"io"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// RowSchema returns the JSON Schema a row of the table must satisfy.
func (c *Catalog) RowSchema(database, schema, table string) (*jsonschema.Schema, error) {
	fields, err := c.Fields(database, schema, table)
	if err != nil {
		return nil, err
	}
	props := orderedmap.New[string, *jsonschema.Schema]()
	for _, f := range fields {
		props.Set(f.Name, &jsonschema.Schema{Type: jsonType(f.Type)})
	}
	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                fmt.Sprintf("%s.%s.%s", database, schema, table),
		Type:                 "object",
		Properties:           props,
		AdditionalProperties: jsonschema.FalseSchema,
	}, nil
}

func jsonType(d Datatype) string {
	switch d {
	case Int:
		return "integer"
	case Float:
		return "number"
	case Bool:
		return "boolean"
	default:
		return "string"
	}
}

type describeField struct {
	Name string   `yaml:"name"`
	Type Datatype `yaml:"type"`
}

type describeTable struct {
	Name   string          `yaml:"name"`
	Fields []describeField `yaml:"fields"`
}

type describeSchema struct {
	Name   string          `yaml:"name"`
	Tables []describeTable `yaml:"tables"`
}

type describeDatabase struct {
	Name    string           `yaml:"name"`
	Schemas []describeSchema `yaml:"schemas"`
}

// Describe writes the declared hierarchy as YAML. The users database and the
// secret are omitted.
func (c *Catalog) Describe(w io.Writer) error {
	c.mu.RLock()
	var out []describeDatabase
	for db := c.m.Databases.Oldest(); db != nil; db = db.Next() {
		if db.Key == UsersDatabase || db.Value == nil {
			continue
		}
		d := describeDatabase{Name: db.Key, Schemas: []describeSchema{}}
		for _, sName := range keys(db.Value.Schemas) {
			s, _ := db.Value.Schemas.Get(sName)
			ds := describeSchema{Name: sName, Tables: []describeTable{}}
			if s != nil {
				for _, tName := range keys(s.Tables) {
					t, _ := s.Tables.Get(tName)
					dt := describeTable{Name: tName, Fields: []describeField{}}
					if t != nil && t.Fields != nil {
						for f := t.Fields.Oldest(); f != nil; f = f.Next() {
							dt.Fields = append(dt.Fields, describeField{Name: f.Key, Type: f.Value})
						}
					}
					ds.Tables = append(ds.Tables, dt)
				}
			}
			d.Schemas = append(d.Schemas, ds)
		}
		out = append(out, d)
	}
	c.mu.RUnlock()

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]describeDatabase{"databases": out}); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return enc.Close()
}
