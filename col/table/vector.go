package table

import "sort"

// Encoding is the physical layout of a column.
type Encoding int

const (
	EncodingPlain Encoding = iota
	// EncodingDictionary stores a sorted dictionary of distinct values and one code per row.
	EncodingDictionary
)

// vector is the read interface shared by every column layout.
type vector interface {
	Len() int
	Get(i int) Value
	Encoding() Encoding
}

// growable is an appendable plain column. prefix returns an immutable view of the first n values whose capacity is
// capped, so later appends to the growable never touch the view.
type growable interface {
	vector
	append(v Value)
	prefix(n int) vector
	suffix(from int) growable
}

type intVector struct{ data []int64 }

func (v *intVector) Len() int           { return len(v.data) }
func (v *intVector) Get(i int) Value    { return v.data[i] }
func (v *intVector) Encoding() Encoding { return EncodingPlain }
func (v *intVector) append(x Value)     { v.data = append(v.data, x.(int64)) }
func (v *intVector) prefix(n int) vector {
	return &intVector{data: v.data[:n:n]}
}
func (v *intVector) suffix(from int) growable {
	return &intVector{data: append([]int64(nil), v.data[from:]...)}
}

type floatVector struct{ data []float64 }

func (v *floatVector) Len() int           { return len(v.data) }
func (v *floatVector) Get(i int) Value    { return v.data[i] }
func (v *floatVector) Encoding() Encoding { return EncodingPlain }
func (v *floatVector) append(x Value)     { v.data = append(v.data, x.(float64)) }
func (v *floatVector) prefix(n int) vector {
	return &floatVector{data: v.data[:n:n]}
}
func (v *floatVector) suffix(from int) growable {
	return &floatVector{data: append([]float64(nil), v.data[from:]...)}
}

type stringVector struct{ data []string }

func (v *stringVector) Len() int           { return len(v.data) }
func (v *stringVector) Get(i int) Value    { return v.data[i] }
func (v *stringVector) Encoding() Encoding { return EncodingPlain }
func (v *stringVector) append(x Value)     { v.data = append(v.data, x.(string)) }
func (v *stringVector) prefix(n int) vector {
	return &stringVector{data: v.data[:n:n]}
}
func (v *stringVector) suffix(from int) growable {
	return &stringVector{data: append([]string(nil), v.data[from:]...)}
}

func newGrowable(ct ColumnType, capacity int) growable {
	switch ct {
	case TypeInteger:
		return &intVector{data: make([]int64, 0, capacity)}
	case TypeFloat:
		return &floatVector{data: make([]float64, 0, capacity)}
	default:
		return &stringVector{data: make([]string, 0, capacity)}
	}
}

// dictVector is an order-preserving dictionary encoded column: dict is sorted and distinct, so comparing codes is
// equivalent to comparing values.
type dictVector struct {
	dict  vector
	codes []uint32
}

func (v *dictVector) Len() int           { return len(v.codes) }
func (v *dictVector) Get(i int) Value    { return v.dict.Get(int(v.codes[i])) }
func (v *dictVector) Encoding() Encoding { return EncodingDictionary }

// DictionarySize is exposed for tests and statistics.
func (v *dictVector) DictionarySize() int { return v.dict.Len() }

func lessValue(a, b Value) bool {
	switch x := a.(type) {
	case int64:
		return x < b.(int64)
	case float64:
		return x < b.(float64)
	case string:
		return x < b.(string)
	}
	return false
}

// encodeDictionary builds a dictionary column from a column type and the concatenation of srcs.
func encodeDictionary(ct ColumnType, srcs []vector) *dictVector {
	total := 0
	for _, src := range srcs {
		total += src.Len()
	}
	distinct := make(map[Value]struct{})
	for _, src := range srcs {
		for i := 0; i < src.Len(); i++ {
			distinct[src.Get(i)] = struct{}{}
		}
	}
	values := make([]Value, 0, len(distinct))
	for v := range distinct {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return lessValue(values[i], values[j]) })

	dict := newGrowable(ct, len(values))
	codeOf := make(map[Value]uint32, len(values))
	for i, v := range values {
		dict.append(v)
		codeOf[v] = uint32(i)
	}
	codes := make([]uint32, 0, total)
	for _, src := range srcs {
		for i := 0; i < src.Len(); i++ {
			codes = append(codes, codeOf[src.Get(i)])
		}
	}
	return &dictVector{dict: dict.prefix(dict.Len()), codes: codes}
}

// concatPlain copies the concatenation of srcs into a fresh plain column.
func concatPlain(ct ColumnType, srcs []vector) vector {
	total := 0
	for _, src := range srcs {
		total += src.Len()
	}
	out := newGrowable(ct, total)
	for _, src := range srcs {
		for i := 0; i < src.Len(); i++ {
			out.append(src.Get(i))
		}
	}
	return out.prefix(out.Len())
}
