package pipeline

import (
	"fmt"
	"math"

	"churn/lib/frame"
	"churn/lib/value"

	"github.com/samber/lo"
)

const (
	invalidError = "error"
	invalidSkip  = "skip"
	invalidKeep  = "keep"
)

type stage struct {
	uid string
}

func (s stage) UID() string {
	return s.uid
}

func handleInvalid(p dict, allowed ...string) (string, error) {
	h, err := p.strOr("handleInvalid", invalidError)
	if err != nil {
		return "", err
	}
	if !lo.Contains(allowed, h) {
		return "", fmt.Errorf("unsupported handleInvalid '%s', expected one of %v", h, allowed)
	}
	return h, nil
}

// StringIndexer maps string labels to their index in the fitted label list.
type StringIndexer struct {
	stage
	inputCols  []string
	outputCols []string
	labels     []map[string]int
	handle     string
}

func newStringIndexer(meta Metadata, data dict) (Stage, error) {
	p := dict(meta.Params)
	in, err := p.columns("inputCol", "inputCols")
	if err != nil {
		return nil, err
	}
	out, err := p.columns("outputCol", "outputCols")
	if err != nil {
		return nil, err
	}
	if len(in) != len(out) {
		return nil, fmt.Errorf("%d input columns but %d output columns", len(in), len(out))
	}
	handle, err := handleInvalid(p, invalidError, invalidSkip, invalidKeep)
	if err != nil {
		return nil, err
	}
	var arrays value.List
	if data.has("labelsArray") {
		if arrays, err = data.list("labelsArray"); err != nil {
			return nil, err
		}
	} else {
		labels, err := data.list("labels")
		if err != nil {
			return nil, err
		}
		arrays = value.NewList(labels)
	}
	if len(arrays) != len(in) {
		return nil, fmt.Errorf("%d label lists for %d input columns", len(arrays), len(in))
	}
	indexes := make([]map[string]int, len(arrays))
	for i, a := range arrays {
		l, ok := a.(value.List)
		if !ok {
			return nil, fmt.Errorf("labelsArray must hold lists but found %s", a)
		}
		labels, err := asStrings("labelsArray", l)
		if err != nil {
			return nil, err
		}
		indexes[i] = make(map[string]int, len(labels))
		for j, label := range labels {
			indexes[i][label] = j
		}
	}
	return &StringIndexer{stage: stage{meta.UID}, inputCols: in, outputCols: out, labels: indexes, handle: handle}, nil
}

func (s *StringIndexer) Transform(f frame.Frame) (frame.Frame, error) {
	idx, err := f.Schema().Resolve(s.inputCols...)
	if err != nil {
		return frame.Frame{}, err
	}
	fields := lo.Map(s.outputCols, func(name string, _ int) frame.Field {
		return frame.Field{Name: name, Type: value.Types.Double}
	})
	return f.WithColumns(fields, func(row frame.Row) ([]value.Value, error) {
		vals := make([]value.Value, len(idx))
		for j, i := range idx {
			index, ok := s.lookup(j, row[i])
			if !ok {
				switch s.handle {
				case invalidSkip:
					return nil, nil
				case invalidKeep:
					index = len(s.labels[j])
				default:
					return nil, fmt.Errorf("unseen label '%s' in column '%s', set handleInvalid to skip or keep", row[i], s.inputCols[j])
				}
			}
			vals[j] = value.Double(index)
		}
		return vals, nil
	})
}

func (s *StringIndexer) lookup(col int, v value.Value) (int, bool) {
	if value.IsNil(v) {
		return 0, false
	}
	label, err := value.Format(v)
	if err != nil {
		return 0, false
	}
	index, ok := s.labels[col][label]
	return index, ok
}

// OneHotEncoder turns category indices into indicator vectors.
type OneHotEncoder struct {
	stage
	inputCols     []string
	outputCols    []string
	categorySizes []int
	dropLast      bool
	handle        string
}

func newOneHotEncoder(meta Metadata, data dict) (Stage, error) {
	p := dict(meta.Params)
	in, err := p.columns("inputCol", "inputCols")
	if err != nil {
		return nil, err
	}
	out, err := p.columns("outputCol", "outputCols")
	if err != nil {
		return nil, err
	}
	if len(in) != len(out) {
		return nil, fmt.Errorf("%d input columns but %d output columns", len(in), len(out))
	}
	dropLast, err := p.boolOr("dropLast", true)
	if err != nil {
		return nil, err
	}
	handle, err := handleInvalid(p, invalidError, invalidKeep)
	if err != nil {
		return nil, err
	}
	sizes, err := data.floats("categorySizes")
	if err != nil {
		return nil, err
	}
	if len(sizes) != len(in) {
		return nil, fmt.Errorf("%d category sizes for %d input columns", len(sizes), len(in))
	}
	return &OneHotEncoder{
		stage:         stage{meta.UID},
		inputCols:     in,
		outputCols:    out,
		categorySizes: lo.Map(sizes, func(s float64, _ int) int { return int(s) }),
		dropLast:      dropLast,
		handle:        handle,
	}, nil
}

func (o *OneHotEncoder) Transform(f frame.Frame) (frame.Frame, error) {
	idx, err := f.Schema().Resolve(o.inputCols...)
	if err != nil {
		return frame.Frame{}, err
	}
	for _, i := range idx {
		if field := f.Schema()[i]; !value.Types.IsNumeric(field.Type) {
			return frame.Frame{}, fmt.Errorf("column '%s' must be numeric but was %s", field.Name, value.Types.ToString(field.Type))
		}
	}
	fields := lo.Map(o.outputCols, func(name string, _ int) frame.Field {
		return frame.Field{Name: name, Type: value.Types.Vector}
	})
	return f.WithColumns(fields, func(row frame.Row) ([]value.Value, error) {
		vals := make([]value.Value, len(idx))
		for j, i := range idx {
			vec, err := o.encode(j, row[i])
			if err != nil {
				return nil, err
			}
			vals[j] = vec
		}
		return vals, nil
	})
}

func (o *OneHotEncoder) encode(col int, v value.Value) (value.Vector, error) {
	size := o.categorySizes[col]
	n := size
	if o.handle == invalidKeep {
		// one extra slot for invalid values
		n++
	}
	if o.dropLast {
		n--
	}
	index := -1
	if !value.IsNil(v) {
		if f, err := value.AsFloat(v); err == nil && f >= 0 && f < float64(size) && f == math.Trunc(f) {
			index = int(f)
		}
	}
	if index < 0 {
		if o.handle != invalidKeep {
			return nil, fmt.Errorf("invalid category %s in column '%s', expected an index in [0, %d)", v, o.inputCols[col], size)
		}
		index = size
	}
	vec := make(value.Vector, n)
	if index < n {
		vec[index] = 1
	}
	return vec, nil
}

// VectorAssembler concatenates numeric and vector columns into one vector.
type VectorAssembler struct {
	stage
	inputCols []string
	outputCol string
	handle    string
}

func newVectorAssembler(meta Metadata, _ dict) (Stage, error) {
	p := dict(meta.Params)
	in, err := p.strs("inputCols")
	if err != nil {
		return nil, err
	}
	out, err := p.str("outputCol")
	if err != nil {
		return nil, err
	}
	handle, err := handleInvalid(p, invalidError, invalidSkip, invalidKeep)
	if err != nil {
		return nil, err
	}
	return &VectorAssembler{stage: stage{meta.UID}, inputCols: in, outputCol: out, handle: handle}, nil
}

func (a *VectorAssembler) Transform(f frame.Frame) (frame.Frame, error) {
	idx, err := f.Schema().Resolve(a.inputCols...)
	if err != nil {
		return frame.Frame{}, err
	}
	for _, i := range idx {
		field := f.Schema()[i]
		if !value.Types.IsNumeric(field.Type) && field.Type != value.Types.Vector {
			return frame.Frame{}, fmt.Errorf("data type %s of column '%s' is not supported", value.Types.ToString(field.Type), field.Name)
		}
	}
	fields := []frame.Field{{Name: a.outputCol, Type: value.Types.Vector}}
	return f.WithColumns(fields, func(row frame.Row) ([]value.Value, error) {
		vec := make(value.Vector, 0, len(idx))
		for j, i := range idx {
			switch v := row[i].(type) {
			case value.Vector:
				vec = append(vec, v...)
			default:
				if value.IsNil(v) {
					switch a.handle {
					case invalidSkip:
						return nil, nil
					case invalidKeep:
						if f.Schema()[i].Type == value.Types.Vector {
							return nil, fmt.Errorf("can not keep null vector column '%s' of unknown size", a.inputCols[j])
						}
						vec = append(vec, math.NaN())
						continue
					default:
						return nil, fmt.Errorf("encountered null while assembling column '%s', set handleInvalid to skip or keep", a.inputCols[j])
					}
				}
				x, err := value.AsFloat(v)
				if err != nil {
					return nil, fmt.Errorf("column '%s': %w", a.inputCols[j], err)
				}
				vec = append(vec, x)
			}
		}
		return []value.Value{vec}, nil
	})
}

// StandardScaler centers and scales vectors with the fitted column
// statistics. Components with zero deviation scale to 0.
type StandardScaler struct {
	stage
	inputCol  string
	outputCol string
	withMean  bool
	withStd   bool
	mean      []float64
	std       []float64
}

func newStandardScaler(meta Metadata, data dict) (Stage, error) {
	p := dict(meta.Params)
	in, err := p.str("inputCol")
	if err != nil {
		return nil, err
	}
	out, err := p.str("outputCol")
	if err != nil {
		return nil, err
	}
	withMean, err := p.boolOr("withMean", false)
	if err != nil {
		return nil, err
	}
	withStd, err := p.boolOr("withStd", true)
	if err != nil {
		return nil, err
	}
	std, err := data.floats("std")
	if err != nil {
		return nil, err
	}
	mean, err := data.floats("mean")
	if err != nil {
		return nil, err
	}
	if len(mean) != len(std) {
		return nil, fmt.Errorf("mean has %d components but std has %d", len(mean), len(std))
	}
	return &StandardScaler{stage: stage{meta.UID}, inputCol: in, outputCol: out, withMean: withMean, withStd: withStd, mean: mean, std: std}, nil
}

func (s *StandardScaler) Transform(f frame.Frame) (frame.Frame, error) {
	idx, err := f.Schema().Resolve(s.inputCol)
	if err != nil {
		return frame.Frame{}, err
	}
	i := idx[0]
	if t := f.Schema()[i].Type; t != value.Types.Vector {
		return frame.Frame{}, fmt.Errorf("column '%s' must be a Vector but was %s", s.inputCol, value.Types.ToString(t))
	}
	fields := []frame.Field{{Name: s.outputCol, Type: value.Types.Vector}}
	return f.WithColumns(fields, func(row frame.Row) ([]value.Value, error) {
		if value.IsNil(row[i]) {
			return []value.Value{value.Nil}, nil
		}
		in := row[i].(value.Vector)
		if len(in) != len(s.std) {
			return nil, fmt.Errorf("vector of size %d does not match scaler of size %d", len(in), len(s.std))
		}
		out := make(value.Vector, len(in))
		for j, x := range in {
			if s.withMean {
				x -= s.mean[j]
			}
			if s.withStd {
				if s.std[j] == 0 {
					x = 0
				} else {
					x /= s.std[j]
				}
			}
			out[j] = x
		}
		return []value.Value{out}, nil
	})
}
