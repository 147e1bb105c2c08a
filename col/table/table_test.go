package table

import (
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoIntSchema() *Schema {
	return NewSchema(Column{"col_0", TypeInteger}, Column{"col_1", TypeInteger})
}

func mixedSchema() *Schema {
	return NewSchema(Column{"id", TypeInteger}, Column{"name", TypeString}, Column{"score", TypeFloat})
}

func TestParseColumnType(t *testing.T) {
	ct, err := ParseColumnType("INTEGER")
	require.NoError(t, err)
	assert.Equal(t, TypeInteger, ct)
	ct, err = ParseColumnType("string")
	require.NoError(t, err)
	assert.Equal(t, TypeString, ct)
	_, err = ParseColumnType("BLOB")
	assert.Error(t, err)
	assert.Equal(t, "FLOAT", TypeFloat.String())
}

func TestCoerce(t *testing.T) {
	s := mixedSchema()
	row, err := s.Coerce(Row{1, []byte("a"), float32(0.5)})
	require.NoError(t, err)
	assert.Equal(t, Row{int64(1), "a", 0.5}, row)

	_, err = s.Coerce(Row{1, "a"})
	require.Error(t, err)
	assert.Equal(t, ErrSchemaMismatch, errors.Cause(err))

	_, err = s.Coerce(Row{"x", "a", 1.0})
	require.Error(t, err)
	mismatch, ok := err.(*SchemaMismatchError)
	require.True(t, ok)
	assert.Equal(t, "id", mismatch.Column)
}

func TestCoerceRowsAllOrNothing(t *testing.T) {
	s := twoIntSchema()
	rows, err := s.CoerceRows([]Row{{1, 2}, {3, "four"}})
	assert.Nil(t, rows)
	require.Error(t, err)
	assert.Equal(t, 1, err.(*SchemaMismatchError).Row)

	b := NewBuilder(s, 0)
	assert.Error(t, b.AppendRows([]Row{{1, 2}, {3}}))
	assert.Equal(t, 0, b.Len())
}

func TestWithKey(t *testing.T) {
	s, err := mixedSchema().WithKey("name", "id")
	require.NoError(t, err)
	assert.True(t, s.HasKey())
	assert.Equal(t, []int{1, 0}, s.Key)
	assert.Equal(t, []interface{}{"a", int64(7)}, s.KeyValues(Row{int64(7), "a", 1.0}))
	assert.True(t, s.Equal(mixedSchema()))

	_, err = mixedSchema().WithKey("missing")
	assert.Error(t, err)
}

func TestBuilderViewIsStable(t *testing.T) {
	b := NewBuilder(twoIntSchema(), 4)
	require.NoError(t, b.AppendRows([]Row{{1, 10}, {2, 20}}))
	view := b.View()

	require.NoError(t, b.AppendRows([]Row{{3, 30}, {4, 40}, {5, 50}}))
	assert.Equal(t, 2, view.Len())
	assert.Equal(t, []Row{{int64(1), int64(10)}, {int64(2), int64(20)}}, view.Rows())
	assert.Equal(t, 5, b.View().Len())

	suffix := b.Suffix(3)
	assert.Equal(t, 2, suffix.Len())
	assert.Equal(t, Row{int64(4), int64(40)}, suffix.View().Row(0))
}

func TestConcatPlainAndCompressed(t *testing.T) {
	s := mixedSchema()
	t1, err := FromRows(s, []Row{{1, "b", 2.5}, {2, "a", 1.0}})
	require.NoError(t, err)
	t2, err := FromRows(s, []Row{{3, "b", -1.0}})
	require.NoError(t, err)

	plain := Concat(s, []*Table{t1, t2}, false)
	compressed := Concat(s, []*Table{t1, t2}, true)

	assert.Equal(t, 3, plain.Len())
	assert.Equal(t, plain.Rows(), compressed.Rows())
	assert.False(t, plain.Compressed())
	assert.True(t, compressed.Compressed())
	assert.Equal(t, EncodingDictionary, compressed.Encoding(1))
	assert.Equal(t, 2, compressed.DictionarySize(1))
	assert.Equal(t, -1, plain.DictionarySize(1))

	// The dictionary is sorted, so the codes order like the values.
	d := compressed.columns[1].(*dictVector)
	assert.Equal(t, "a", d.dict.Get(0))
	assert.Equal(t, "b", d.dict.Get(1))
}

func TestEmpty(t *testing.T) {
	e := Empty(twoIntSchema())
	assert.Equal(t, 0, e.Len())
	assert.Empty(t, e.Rows())
}
