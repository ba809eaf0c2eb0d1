package frame

import (
	"fmt"
	"reflect"
	"strings"

	"churn/lib/value"

	"github.com/samber/lo"
)

// Field is one named, typed column.
type Field struct {
	Name string
	Type reflect.Type
}

func (f Field) String() string {
	return fmt.Sprintf("%s: %s", f.Name, value.Types.ToString(f.Type))
}

// Schema is the ordered list of columns of a Frame. It is discovered at
// runtime (e.g. from a delimited file header) and never fixed at compile time.
type Schema []Field

func (s Schema) Names() []string {
	return lo.Map(s, func(f Field, _ int) string { return f.Name })
}

// Index returns the position of the named column or -1.
func (s Schema) Index(name string) int {
	return lo.IndexOf(s.Names(), name)
}

func (s Schema) Field(name string) (Field, bool) {
	return lo.Find(s, func(f Field) bool { return f.Name == name })
}

// Resolve returns the positions of the named columns, failing on the first
// name that is not part of the schema.
func (s Schema) Resolve(names ...string) ([]int, error) {
	idx := make([]int, 0, len(names))
	for _, name := range names {
		i := s.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("cannot resolve column '%s' given input columns: [%s]", name, strings.Join(s.Names(), ", "))
		}
		idx = append(idx, i)
	}
	return idx, nil
}

// Append returns a new schema with fields added at the end. Column names
// stay unique.
func (s Schema) Append(fields ...Field) (Schema, error) {
	ret := make(Schema, 0, len(s)+len(fields))
	ret = append(ret, s...)
	for _, f := range fields {
		if ret.Index(f.Name) >= 0 {
			return nil, fmt.Errorf("column '%s' already exists", f.Name)
		}
		ret = append(ret, f)
	}
	return ret, nil
}

func (s Schema) String() string {
	return "[" + strings.Join(lo.Map(s, func(f Field, _ int) string { return f.String() }), ", ") + "]"
}
