package frame

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the representation of a single cell.
type Kind uint8

const (
	Missing Kind = iota
	Number
	Time
	Text
)

func (k Kind) String() string {
	switch k {
	case Missing:
		return "missing"
	case Number:
		return "numeric"
	case Time:
		return "datetime"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a tagged cell. Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind
	Num  float64
	Time time.Time
	Str  string
}

func Null() Value { return Value{} }

func Num(f float64) Value { return Value{Kind: Number, Num: f} }

func TimeOf(t time.Time) Value { return Value{Kind: Time, Time: t} }

func Str(s string) Value { return Value{Kind: Text, Str: s} }

// IsMissing reports whether the cell holds no value.
func (v Value) IsMissing() bool { return v.Kind == Missing }

// String renders the cell the way it is sampled and exported.
func (v Value) String() string {
	switch v.Kind {
	case Number:
		return FormatNumber(v.Num)
	case Time:
		return FormatTime(v.Time)
	case Text:
		return v.Str
	default:
		return ""
	}
}

// Equal compares kind and payload. Two missing cells are equal.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Number:
		return v.Num == o.Num
	case Time:
		return v.Time.Equal(o.Time)
	case Text:
		return v.Str == o.Str
	default:
		return true
	}
}

// FormatNumber prints f in its shortest decimal form.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatTime prints date-only values without a clock part.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// Column is a named, row-aligned sequence of cells.
type Column struct {
	Name  string
	Cells []Value
}

// Storage returns the column's underlying kind: Number or Time when every
// non-missing cell has that kind, Missing for an empty column, Text otherwise.
func (c Column) Storage() Kind {
	kind := Missing
	for _, v := range c.Cells {
		if v.Kind == Missing {
			continue
		}
		if kind == Missing {
			kind = v.Kind
			continue
		}
		if v.Kind != kind {
			return Text
		}
	}
	return kind
}

// NonMissing counts cells that hold a value.
func (c Column) NonMissing() int {
	n := 0
	for _, v := range c.Cells {
		if !v.IsMissing() {
			n++
		}
	}
	return n
}

// Distinct counts distinct non-missing cells.
func (c Column) Distinct() int {
	seen := make(map[string]struct{}, len(c.Cells))
	for _, v := range c.Cells {
		if v.IsMissing() {
			continue
		}
		seen[v.Kind.String()+"\x1f"+v.String()] = struct{}{}
	}
	return len(seen)
}

// Numbers returns the numeric payloads of non-missing number cells.
func (c Column) Numbers() []float64 {
	out := make([]float64, 0, len(c.Cells))
	for _, v := range c.Cells {
		if v.Kind == Number {
			out = append(out, v.Num)
		}
	}
	return out
}

// Frame is an ordered set of equally long columns.
type Frame struct {
	Columns []Column
}

// ErrRagged is returned when columns disagree on length.
var ErrRagged = errors.New("columns have different lengths")

// New builds a frame and checks that every column has the same row count.
func New(cols ...Column) (*Frame, error) {
	f := &Frame{Columns: cols}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the rectangular shape.
func (f *Frame) Validate() error {
	if f == nil || len(f.Columns) == 0 {
		return nil
	}
	n := len(f.Columns[0].Cells)
	for _, c := range f.Columns[1:] {
		if len(c.Cells) != n {
			return fmt.Errorf("%w: %q has %d rows, expected %d", ErrRagged, c.Name, len(c.Cells), n)
		}
	}
	return nil
}

// Rows returns the row count.
func (f *Frame) Rows() int {
	if f == nil || len(f.Columns) == 0 {
		return 0
	}
	return len(f.Columns[0].Cells)
}

// Empty reports a frame without columns or rows.
func (f *Frame) Empty() bool { return f == nil || len(f.Columns) == 0 || f.Rows() == 0 }

// Names returns the column labels in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the first column with the given name, or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns a pointer to the named column, or nil.
func (f *Frame) Column(name string) *Column {
	if i := f.Index(name); i >= 0 {
		return &f.Columns[i]
	}
	return nil
}

// Row copies out the cells of row i.
func (f *Frame) Row(i int) []Value {
	row := make([]Value, len(f.Columns))
	for j, c := range f.Columns {
		row[j] = c.Cells[i]
	}
	return row
}

// AppendColumn adds a column. It must match the current row count.
func (f *Frame) AppendColumn(c Column) error {
	if len(f.Columns) > 0 && len(c.Cells) != f.Rows() {
		return fmt.Errorf("%w: %q has %d rows, expected %d", ErrRagged, c.Name, len(c.Cells), f.Rows())
	}
	f.Columns = append(f.Columns, c)
	return nil
}

// Clone returns a deep copy that shares no cell storage with f.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	out := &Frame{Columns: make([]Column, len(f.Columns))}
	for i, c := range f.Columns {
		cells := make([]Value, len(c.Cells))
		copy(cells, c.Cells)
		out.Columns[i] = Column{Name: c.Name, Cells: cells}
	}
	return out
}

// Equal compares names and cells.
func (f *Frame) Equal(o *Frame) bool {
	if f.Rows() != o.Rows() || len(f.Columns) != len(o.Columns) {
		return false
	}
	for i, c := range f.Columns {
		oc := o.Columns[i]
		if c.Name != oc.Name {
			return false
		}
		for r := range c.Cells {
			if !c.Cells[r].Equal(oc.Cells[r]) {
				return false
			}
		}
	}
	return true
}

// DefaultNAValues are the tokens read as missing when no list is supplied.
var DefaultNAValues = []string{"", "NA", "N/A", "n/a", "NaN", "nan", "null", "NULL", "None", "#N/A", "<NA>"}

// FromRecords builds a typed frame from string records. Short records are
// padded with missing cells and long ones are truncated to the header width.
// A column gets numeric storage when every non-missing cell is a decimal
// float; everything else is kept as text.
func FromRecords(header []string, records [][]string, naValues []string) *Frame {
	if naValues == nil {
		naValues = DefaultNAValues
	}
	na := make(map[string]struct{}, len(naValues))
	for _, s := range naValues {
		na[s] = struct{}{}
	}
	f := &Frame{Columns: make([]Column, len(header))}
	for j, name := range header {
		cells := make([]Value, len(records))
		numeric := true
		for i, rec := range records {
			raw := ""
			if j < len(rec) {
				raw = rec[j]
			}
			if _, ok := na[strings.TrimSpace(raw)]; ok {
				cells[i] = Null()
				continue
			}
			cells[i] = Str(raw)
			if _, ok := ParseDecimal(raw); !ok {
				numeric = false
			}
		}
		if numeric {
			for i, v := range cells {
				if v.Kind == Text {
					x, _ := ParseDecimal(v.Str)
					cells[i] = Num(x)
				}
			}
		}
		f.Columns[j] = Column{Name: name, Cells: cells}
	}
	return f
}

// ParseDecimal parses a plain decimal or exponent float. Hex forms, NaN and
// infinities are rejected.
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.ContainsAny(s, "xXpP_") {
		return 0, false
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}
