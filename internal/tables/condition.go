package tables

import (
	"cmp"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/its-mr-monday/WebDB/internal/errors"
	"github.com/its-mr-monday/WebDB/internal/storage"
)

// Operator compares a row value with a condition value.
type Operator string

// Supported operators.
const (
	OpEquals       Operator = "="
	OpNotEquals    Operator = "!="
	OpLessThan     Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreaterThan  Operator = ">"
	OpGreaterEqual Operator = ">="
)

func (o Operator) valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
		return true
	default:
		return false
	}
}

// Condition is one "<field> <operator> <value>" clause. Conj links it to the
// next clause and is empty on the last one.
type Condition struct {
	Field string   `json:"field"`
	Op    Operator `json:"operator"`
	Value string   `json:"value"`
	Conj  string   `json:"conjunction,omitempty"`
}

// ParseConditions splits expr into clauses of four whitespace separated
// tokens: field, operator, value and a conjunction (and, or). The last clause
// may omit the conjunction. Values may be wrapped in double quotes, which are
// stripped; quoted values cannot contain spaces.
func ParseConditions(expr string) ([]Condition, error) {
	conds, err := splitConditions(expr)
	if err != nil {
		return nil, err
	}
	for i, c := range conds {
		if !c.Op.valid() {
			return nil, errors.BadRequest(fmt.Sprintf("unsupported operator %q", c.Op))
		}
		if c.Conj == "" {
			continue
		}
		if c.Conj != "and" && c.Conj != "or" {
			return nil, errors.BadRequest(fmt.Sprintf("unsupported conjunction %q", c.Conj))
		}
		if i == len(conds)-1 {
			return nil, errors.BadRequest("condition ends with a conjunction")
		}
	}
	return conds, nil
}

// splitConditions groups the tokens of expr four by four without checking
// operators or conjunctions. Only a clause shorter than three tokens fails.
func splitConditions(expr string) ([]Condition, error) {
	tokens := strings.Fields(expr)
	var out []Condition
	for i := 0; i < len(tokens); i += 4 {
		rest := tokens[i:]
		if len(rest) < 3 {
			return nil, errors.BadRequest(fmt.Sprintf("incomplete condition %q", strings.Join(rest, " ")))
		}
		c := Condition{Field: rest[0], Op: Operator(rest[1]), Value: unquote(rest[2])}
		if len(rest) >= 4 {
			c.Conj = strings.ToLower(rest[3])
		}
		out = append(out, c)
	}
	return out, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Match evaluates conds against row left to right, without precedence.
// An empty list matches every row.
func Match(row storage.Row, conds []Condition) bool {
	if len(conds) == 0 {
		return true
	}
	result := conds[0].matches(row)
	for i := 1; i < len(conds); i++ {
		if conds[i-1].Conj == "or" {
			result = result || conds[i].matches(row)
		} else {
			result = result && conds[i].matches(row)
		}
	}
	return result
}

func (c *Condition) matches(row storage.Row) bool {
	v, ok := row[c.Field]
	if !ok {
		return false
	}
	r, ok := compare(v, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEquals:
		return r == 0
	case OpNotEquals:
		return r != 0
	case OpLessThan:
		return r < 0
	case OpLessEqual:
		return r <= 0
	case OpGreaterThan:
		return r > 0
	case OpGreaterEqual:
		return r >= 0
	default:
		return false
	}
}

// compare orders a stored value against a condition literal, interpreting the
// literal according to the stored value's type. ok is false when the literal
// cannot be read as that type.
func compare(v any, literal string) (int, bool) {
	switch x := v.(type) {
	case string:
		return cmp.Compare(x, literal), true
	case bool:
		b, err := strconv.ParseBool(literal)
		if err != nil {
			return 0, false
		}
		switch {
		case x == b:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return compareFloat(f, literal)
	case float64:
		return compareFloat(x, literal)
	case int:
		return compareFloat(float64(x), literal)
	case int64:
		return compareFloat(float64(x), literal)
	default:
		return 0, false
	}
}

func compareFloat(f float64, literal string) (int, bool) {
	l, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return 0, false
	}
	return cmp.Compare(f, l), true
}
