package table

// Table is an immutable columnar table. Tables are either views over a Builder prefix or the output of Concat.
type Table struct {
	schema  *Schema
	columns []vector
	rows    int
}

func (t *Table) Schema() *Schema {
	return t.schema
}

func (t *Table) Len() int {
	return t.rows
}

// Value returns the cell at (col, row).
func (t *Table) Value(col, row int) Value {
	return t.columns[col].Get(row)
}

// Row materialises a row.
func (t *Table) Row(i int) Row {
	r := make(Row, len(t.columns))
	for c, col := range t.columns {
		r[c] = col.Get(i)
	}
	return r
}

// Rows materialises the whole table.
func (t *Table) Rows() []Row {
	rows := make([]Row, t.rows)
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

func (t *Table) Encoding(col int) Encoding {
	return t.columns[col].Encoding()
}

// Compressed reports whether every column is dictionary encoded.
func (t *Table) Compressed() bool {
	for _, c := range t.columns {
		if c.Encoding() != EncodingDictionary {
			return false
		}
	}
	return len(t.columns) > 0
}

// DictionarySize returns the number of distinct values of a dictionary column, or -1 for plain columns.
func (t *Table) DictionarySize(col int) int {
	if d, ok := t.columns[col].(*dictVector); ok {
		return d.DictionarySize()
	}
	return -1
}

// Empty returns a zero-row table of the given schema.
func Empty(schema *Schema) *Table {
	return NewBuilder(schema, 0).View()
}

// FromRows builds a plain table from rows, coercing them to the schema.
func FromRows(schema *Schema, rows []Row) (*Table, error) {
	b := NewBuilder(schema, len(rows))
	if err := b.AppendRows(rows); err != nil {
		return nil, err
	}
	return b.View(), nil
}

// Concat returns a new table holding the rows of tables in order. All tables must share schema. When compressed
// is set, every column of the result is dictionary encoded.
func Concat(schema *Schema, tables []*Table, compressed bool) *Table {
	total := 0
	for _, t := range tables {
		total += t.rows
	}
	columns := make([]vector, len(schema.Columns))
	for c, col := range schema.Columns {
		srcs := make([]vector, 0, len(tables))
		for _, t := range tables {
			srcs = append(srcs, t.columns[c])
		}
		if compressed {
			columns[c] = encodeDictionary(col.Type, srcs)
		} else {
			columns[c] = concatPlain(col.Type, srcs)
		}
	}
	return &Table{schema: schema, columns: columns, rows: total}
}

// Builder is an appendable columnar buffer. It is not safe for concurrent appends, but views taken with View stay
// valid and unchanged while the builder keeps growing.
type Builder struct {
	schema  *Schema
	columns []growable
	rows    int
}

func NewBuilder(schema *Schema, capacity int) *Builder {
	b := &Builder{schema: schema, columns: make([]growable, len(schema.Columns))}
	for i, col := range schema.Columns {
		b.columns[i] = newGrowable(col.Type, capacity)
	}
	return b
}

func (b *Builder) Schema() *Schema {
	return b.schema
}

func (b *Builder) Len() int {
	return b.rows
}

// AppendRows coerces and appends rows. Nothing is appended unless every row matches the schema.
func (b *Builder) AppendRows(rows []Row) error {
	coerced, err := b.schema.CoerceRows(rows)
	if err != nil {
		return err
	}
	b.AppendCoerced(coerced)
	return nil
}

// AppendCoerced appends rows that already went through Schema.Coerce.
func (b *Builder) AppendCoerced(rows []Row) {
	for _, row := range rows {
		for c, col := range b.columns {
			col.append(row[c])
		}
	}
	b.rows += len(rows)
}

// View returns an immutable table over the rows appended so far.
func (b *Builder) View() *Table {
	columns := make([]vector, len(b.columns))
	for i, col := range b.columns {
		columns[i] = col.prefix(b.rows)
	}
	return &Table{schema: b.schema, columns: columns, rows: b.rows}
}

// Suffix returns a new builder holding a copy of the rows from position from onwards.
func (b *Builder) Suffix(from int) *Builder {
	nb := &Builder{schema: b.schema, columns: make([]growable, len(b.columns)), rows: b.rows - from}
	for i, col := range b.columns {
		nb.columns[i] = col.suffix(from)
	}
	return nb
}
