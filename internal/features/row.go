package features

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNonNumeric is returned when a model reads a text column that does not parse as a number.
	ErrNonNumeric = errors.New("non-numeric feature value")
	// ErrColumnIndex is returned when a model reads past the end of a row.
	ErrColumnIndex = errors.New("feature index out of range")
)

// Schema is the ordered list of feature names a model was trained on.
// A nil Schema means the model declares none.
type Schema []string

// Value is a single cell. Aligned rows only carry numbers; Text is set only on
// the schema-less path where raw categorical fields pass through untouched.
type Value struct {
	Num    float64
	Text   string
	IsText bool
}

// Number builds a numeric cell.
func Number(v float64) Value { return Value{Num: v} }

// Text builds a text cell.
func Text(s string) Value { return Value{Text: s, IsText: true} }

func (v Value) String() string {
	if v.IsText {
		return v.Text
	}
	return strconv.FormatFloat(v.Num, 'g', -1, 64)
}

// Row is a single-row table: Columns[i] names Values[i].
type Row struct {
	Columns []string
	Values  []Value
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.Values) }

// Float returns column i as a number. Text cells are parsed the way a numeric
// array conversion would, so "2" reads as 2 and "Male" fails.
func (r Row) Float(i int) (float64, error) {
	if i < 0 || i >= len(r.Values) {
		return 0, fmt.Errorf("%w: %d of %d", ErrColumnIndex, i, len(r.Values))
	}
	v := r.Values[i]
	if !v.IsText {
		return v.Num, nil
	}
	f, err := strconv.ParseFloat(v.Text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: column %q = %q", ErrNonNumeric, r.Columns[i], v.Text)
	}
	return f, nil
}

// Get looks a column up by name.
func (r Row) Get(name string) (Value, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return Value{}, false
}

// Map returns the row as name -> value for logging.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i].String()
	}
	return m
}
