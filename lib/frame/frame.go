package frame

import (
	"context"
	"fmt"

	"churn/lib/utils/parallel"
	"churn/lib/value"
)

type Row []value.Value

type Partition []Row

// Frame is a lazily evaluated, partitioned relation. Transformations only
// build up the computation; work happens when an action (Partitions,
// Collect, Count) is called. Narrow transformations of different
// partitions run concurrently on up to `workers` goroutines.
type Frame struct {
	schema   Schema
	numParts int
	workers  int
	compute  func(ctx context.Context) ([]Partition, error)
}

// New returns a frame over already materialized partitions.
func New(schema Schema, parts []Partition, workers int) Frame {
	return Frame{
		schema:   schema,
		numParts: len(parts),
		workers:  workers,
		compute: func(ctx context.Context) ([]Partition, error) {
			return parts, nil
		},
	}
}

// FromSource returns a frame whose partitions are produced by source on
// demand. Each call to an action calls source again.
func FromSource(schema Schema, numParts, workers int, source func(ctx context.Context) ([]Partition, error)) Frame {
	return Frame{
		schema:   schema,
		numParts: numParts,
		workers:  workers,
		compute:  source,
	}
}

func (f Frame) Schema() Schema {
	return f.schema
}

func (f Frame) NumPartitions() int {
	return f.numParts
}

// Partitions computes the frame.
func (f Frame) Partitions(ctx context.Context) ([]Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.compute(ctx)
}

// Collect computes the frame and returns all rows in partition order.
func (f Frame) Collect(ctx context.Context) ([]Row, error) {
	parts, err := f.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, p := range parts {
		rows = append(rows, p...)
	}
	return rows, nil
}

func (f Frame) Count(ctx context.Context) (int, error) {
	parts, err := f.Partitions(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	return n, nil
}

// MapPartitions applies fn to every partition. The caller is responsible for
// fn producing rows that match schema.
func (f Frame) MapPartitions(schema Schema, fn func(Partition) (Partition, error)) Frame {
	parent := f
	return Frame{
		schema:   schema,
		numParts: f.numParts,
		workers:  f.workers,
		compute: func(ctx context.Context) ([]Partition, error) {
			parts, err := parent.Partitions(ctx)
			if err != nil {
				return nil, err
			}
			return parallel.Process(ctx, parent.workers, parts, fn)
		},
	}
}

// MapRows applies fn to every row; a nil row returned by fn drops the row.
func (f Frame) MapRows(schema Schema, fn func(Row) (Row, error)) Frame {
	return f.MapPartitions(schema, func(p Partition) (Partition, error) {
		out := make(Partition, 0, len(p))
		for _, row := range p {
			r, err := fn(row)
			if err != nil {
				return nil, err
			}
			if r != nil {
				out = append(out, r)
			}
		}
		return out, nil
	})
}

// Filter keeps rows for which pred returns true.
func (f Frame) Filter(pred func(Row) (bool, error)) Frame {
	return f.MapRows(f.schema, func(row Row) (Row, error) {
		ok, err := pred(row)
		if err != nil || !ok {
			return nil, err
		}
		return row, nil
	})
}

// Where keeps rows where `col <op> literal` evaluates to true. Rows where the
// comparison evaluates to Nil (missing cells) are dropped.
func (f Frame) Where(col string, op string, literal value.Value) (Frame, error) {
	idx, err := f.schema.Resolve(col)
	if err != nil {
		return Frame{}, err
	}
	i := idx[0]
	return f.Filter(func(row Row) (bool, error) {
		res, err := row[i].Op(op, literal)
		if err != nil {
			return false, fmt.Errorf("failed to evaluate '%s %s %s': %w", col, op, literal, err)
		}
		b, ok := res.(value.Bool)
		return ok && bool(b), nil
	}), nil
}

// Select projects the frame onto the named columns, in the given order.
func (f Frame) Select(cols ...string) (Frame, error) {
	idx, err := f.schema.Resolve(cols...)
	if err != nil {
		return Frame{}, err
	}
	schema := make(Schema, 0, len(idx))
	for _, i := range idx {
		schema = append(schema, f.schema[i])
	}
	return f.MapRows(schema, func(row Row) (Row, error) {
		out := make(Row, len(idx))
		for j, i := range idx {
			out[j] = row[i]
		}
		return out, nil
	}), nil
}

// WithColumns appends the given fields, computing their values per row with
// fn. fn returning a nil slice drops the row.
func (f Frame) WithColumns(fields []Field, fn func(Row) ([]value.Value, error)) (Frame, error) {
	schema, err := f.schema.Append(fields...)
	if err != nil {
		return Frame{}, err
	}
	return f.MapRows(schema, func(row Row) (Row, error) {
		vals, err := fn(row)
		if err != nil || vals == nil {
			return nil, err
		}
		if len(vals) != len(fields) {
			return nil, fmt.Errorf("expected %d new values but got %d", len(fields), len(vals))
		}
		out := make(Row, 0, len(row)+len(vals))
		out = append(out, row...)
		return append(out, vals...), nil
	}), nil
}

// Coalesce merges adjacent partitions so that at most n remain. Row order is
// preserved.
func (f Frame) Coalesce(n int) Frame {
	if n <= 0 {
		n = 1
	}
	target := n
	if f.numParts < target {
		target = f.numParts
	}
	parent := f
	return Frame{
		schema:   f.schema,
		numParts: target,
		workers:  f.workers,
		compute: func(ctx context.Context) ([]Partition, error) {
			parts, err := parent.Partitions(ctx)
			if err != nil {
				return nil, err
			}
			return coalesce(parts, n), nil
		},
	}
}

func coalesce(parts []Partition, n int) []Partition {
	if len(parts) <= n {
		return parts
	}
	ret := make([]Partition, n)
	// partition i of the input goes to group i*n/len(parts)
	for i, p := range parts {
		g := i * n / len(parts)
		ret[g] = append(ret[g], p...)
	}
	return ret
}
