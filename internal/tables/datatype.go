package tables

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/its-mr-monday/WebDB/internal/catalog"
)

// DatatypeOf classifies a change value. JSON numbers without a fraction or
// exponent are ints, other numbers are floats. Booleans are never ints.
func DatatypeOf(v any) (catalog.Datatype, bool) {
	switch x := v.(type) {
	case bool:
		return catalog.Bool, true
	case string:
		return catalog.String, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return catalog.Int, true
	case float32, float64:
		return catalog.Float, true
	case json.Number:
		s := x.String()
		if strings.ContainsAny(s, ".eE") {
			if _, err := strconv.ParseFloat(s, 64); err != nil && !errors.Is(err, strconv.ErrRange) {
				return "", false
			}
			return catalog.Float, true
		}
		// Integers beyond int64 are still ints.
		if _, err := strconv.ParseInt(s, 10, 64); err != nil && !errors.Is(err, strconv.ErrRange) {
			return "", false
		}
		return catalog.Int, true
	default:
		return "", false
	}
}
