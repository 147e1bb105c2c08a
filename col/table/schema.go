package table

import (
	"fmt"
	"math"
	"strings"

	"github.com/pingcap/errors"
)

// ColumnType is the value type of a column.
type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeFloat
	TypeString
)

func (ct ColumnType) String() string {
	switch ct {
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeString:
		return "STRING"
	}
	return fmt.Sprintf("ColumnType(%d)", int(ct))
}

// ParseColumnType accepts the type names used by table headers.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToUpper(s) {
	case "INTEGER", "INT":
		return TypeInteger, nil
	case "FLOAT":
		return TypeFloat, nil
	case "STRING":
		return TypeString, nil
	}
	return 0, errors.Errorf("unknown column type %q", s)
}

// Value is a single cell: int64, float64 or string depending on the column type.
type Value interface{}

// Row is an ordered tuple of values matching a schema.
type Row []Value

type Column struct {
	Name string
	Type ColumnType
}

// Schema is the ordered list of columns of a table. Key optionally lists the positions of the columns that form a
// unique key; stores use it for write-write conflict detection.
type Schema struct {
	Columns []Column
	Key     []int
}

// ErrSchemaMismatch is the cause of every SchemaMismatchError.
var ErrSchemaMismatch = errors.New("row does not match schema")

// SchemaMismatchError reports the first offending cell of a row batch.
type SchemaMismatchError struct {
	Row    int
	Column string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: row %d: %s", ErrSchemaMismatch, e.Row, e.Reason)
	}
	return fmt.Sprintf("%s: row %d, column %s: %s", ErrSchemaMismatch, e.Row, e.Column, e.Reason)
}

func (e *SchemaMismatchError) Cause() error {
	return ErrSchemaMismatch
}

func NewSchema(columns ...Column) *Schema {
	return &Schema{Columns: columns}
}

// WithKey returns a copy of the schema whose unique key consists of the named columns.
func (s *Schema) WithKey(names ...string) (*Schema, error) {
	key := make([]int, 0, len(names))
	for _, name := range names {
		idx := s.ColumnIndex(name)
		if idx < 0 {
			return nil, errors.Errorf("key column %q not in schema", name)
		}
		key = append(key, idx)
	}
	columns := make([]Column, len(s.Columns))
	copy(columns, s.Columns)
	return &Schema{Columns: columns, Key: key}, nil
}

func (s *Schema) Len() int {
	return len(s.Columns)
}

func (s *Schema) HasKey() bool {
	return len(s.Key) > 0
}

// ColumnIndex returns the position of the named column or -1.
func (s *Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Equal compares column names and types; keys are ignored.
func (s *Schema) Equal(other *Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i := range s.Columns {
		if s.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

// KeyValues extracts the unique key of a coerced row.
func (s *Schema) KeyValues(row Row) []interface{} {
	values := make([]interface{}, len(s.Key))
	for i, idx := range s.Key {
		values[i] = row[idx]
	}
	return values
}

// Coerce checks a row against the schema and returns a copy holding canonical value types.
func (s *Schema) Coerce(row Row) (Row, error) {
	return s.coerce(0, row)
}

// CoerceRows coerces a whole batch. Either every row is returned or none.
func (s *Schema) CoerceRows(rows []Row) ([]Row, error) {
	out := make([]Row, len(rows))
	for i, row := range rows {
		r, err := s.coerce(i, row)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (s *Schema) coerce(idx int, row Row) (Row, error) {
	if len(row) != len(s.Columns) {
		return nil, &SchemaMismatchError{Row: idx, Reason: fmt.Sprintf("expected %d values, got %d", len(s.Columns), len(row))}
	}
	out := make(Row, len(row))
	for i, col := range s.Columns {
		v, ok := coerceValue(col.Type, row[i])
		if !ok {
			return nil, &SchemaMismatchError{Row: idx, Column: col.Name, Reason: fmt.Sprintf("%v (%T) is not %s", row[i], row[i], col.Type)}
		}
		out[i] = v
	}
	return out, nil
}

func coerceValue(ct ColumnType, v Value) (Value, bool) {
	switch ct {
	case TypeInteger:
		switch x := v.(type) {
		case int64:
			return x, true
		case int:
			return int64(x), true
		case int32:
			return int64(x), true
		case int16:
			return int64(x), true
		case int8:
			return int64(x), true
		case uint32:
			return int64(x), true
		case uint16:
			return int64(x), true
		case uint8:
			return int64(x), true
		case uint64:
			if x > math.MaxInt64 {
				return nil, false
			}
			return int64(x), true
		}
	case TypeFloat:
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case float32:
			f = float64(x)
		case int64:
			f = float64(x)
		case int:
			f = float64(x)
		default:
			return nil, false
		}
		// NaN has no place in an ordered dictionary.
		if math.IsNaN(f) {
			return nil, false
		}
		return f, true
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, true
		case []byte:
			return string(x), true
		}
	}
	return nil, false
}
