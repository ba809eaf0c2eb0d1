package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"churn/lib/value"
	"churn/storage"

	"github.com/parquet-go/parquet-go"
	"github.com/samber/lo"
)

var parquetMagic = []byte("PAR1")

func isParquet(name string, data []byte) bool {
	return strings.HasSuffix(name, ".parquet") || bytes.HasPrefix(data, parquetMagic)
}

// readRows decodes every parquet part file under dir, in file name order.
func readRows(ctx context.Context, store storage.Store, dir string) ([]value.Dict, error) {
	files, err := dataFiles(ctx, store, dir)
	if err != nil {
		return nil, err
	}
	var rows []value.Dict
	for _, path := range files {
		data, err := store.ReadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		if !isParquet(path, data) {
			return nil, fmt.Errorf("'%s' is not a parquet file", path)
		}
		decoded, err := decodeParquet(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode '%s': %w", path, err)
		}
		rows = append(rows, decoded...)
	}
	return rows, nil
}

// decodeParquet returns the rows of a parquet file keyed by column name.
// LIST groups become lists and ML vector and matrix structs become lists of
// doubles.
func decodeParquet(data []byte) ([]value.Dict, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	root := f.Root()
	var ret []value.Dict
	buf := make([]parquet.Row, 64)
	for _, rg := range f.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			// values may point into page buffers, so rows are decoded before
			// the next read
			for _, row := range buf[:n] {
				d, derr := newLevels(row).group(root)
				if derr != nil {
					_ = rows.Close()
					return nil, derr
				}
				ret = append(ret, d)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = rows.Close()
				return nil, err
			}
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// levels reassembles one row from its leaf values using their repetition
// and definition levels. Every leaf keeps its own read position.
type levels struct {
	cols map[int][]parquet.Value
	pos  map[int]int
}

func newLevels(row parquet.Row) *levels {
	l := &levels{cols: make(map[int][]parquet.Value), pos: make(map[int]int)}
	for _, v := range row {
		l.cols[v.Column()] = append(l.cols[v.Column()], v)
	}
	return l
}

func firstLeaf(c *parquet.Column) *parquet.Column {
	for !c.Leaf() {
		c = c.Columns()[0]
	}
	return c
}

func (l *levels) peek(c *parquet.Column) (parquet.Value, bool) {
	leaf := firstLeaf(c).Index()
	p := l.pos[leaf]
	if p >= len(l.cols[leaf]) {
		return parquet.Value{}, false
	}
	return l.cols[leaf][p], true
}

// skip consumes the single placeholder value each leaf under an undefined
// column carries.
func (l *levels) skip(c *parquet.Column) {
	if c.Leaf() {
		l.pos[c.Index()]++
		return
	}
	for _, child := range c.Columns() {
		l.skip(child)
	}
}

func (l *levels) field(c *parquet.Column) (value.Value, error) {
	v, ok := l.peek(c)
	if !ok {
		return nil, fmt.Errorf("column '%s' ran out of values", c.Name())
	}
	if c.Repeated() {
		return l.repeated(c, v)
	}
	if v.DefinitionLevel() < c.MaxDefinitionLevel() {
		l.skip(c)
		return value.Nil, nil
	}
	return l.instance(c)
}

func (l *levels) repeated(c *parquet.Column, first parquet.Value) (value.Value, error) {
	ret := value.List{}
	if first.DefinitionLevel() < c.MaxDefinitionLevel() {
		l.skip(c)
		return ret, nil
	}
	for {
		elem, err := l.instance(c)
		if err != nil {
			return nil, err
		}
		ret = append(ret, elem)
		next, ok := l.peek(c)
		if !ok || next.RepetitionLevel() < c.MaxRepetitionLevel() {
			return ret, nil
		}
	}
}

func (l *levels) instance(c *parquet.Column) (value.Value, error) {
	if c.Leaf() {
		v, _ := l.peek(c)
		l.pos[c.Index()]++
		return leafValue(c, v)
	}
	children := c.Columns()
	// a group wrapping a single repeated field is a LIST
	if len(children) == 1 && children[0].Repeated() {
		return l.list(children[0])
	}
	d, err := l.group(c)
	if err != nil {
		return nil, err
	}
	return fromUDT(d)
}

func (l *levels) group(c *parquet.Column) (value.Dict, error) {
	d := make(value.Dict, len(c.Columns()))
	for _, child := range c.Columns() {
		v, err := l.field(child)
		if err != nil {
			return nil, err
		}
		d[child.Name()] = v
	}
	return d, nil
}

func (l *levels) list(rep *parquet.Column) (value.Value, error) {
	v, err := l.field(rep)
	if err != nil {
		return nil, err
	}
	elems := v.(value.List)
	// three level lists wrap each element in a single field group
	if rep.Leaf() || len(rep.Columns()) != 1 {
		return elems, nil
	}
	name := rep.Columns()[0].Name()
	for i, e := range elems {
		if d, ok := e.(value.Dict); ok {
			elems[i] = d[name]
		}
	}
	return elems, nil
}

func leafValue(c *parquet.Column, v parquet.Value) (value.Value, error) {
	switch v.Kind() {
	case parquet.Boolean:
		return value.Bool(v.Boolean()), nil
	case parquet.Int32:
		return value.Int(v.Int32()), nil
	case parquet.Int64:
		return value.Int(v.Int64()), nil
	case parquet.Float:
		return value.Double(v.Float()), nil
	case parquet.Double:
		return value.Double(v.Double()), nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return value.String(v.ByteArray()), nil
	default:
		return nil, fmt.Errorf("column '%s' has unsupported type %s", c.Name(), v.Kind())
	}
}

func hasKeys(d value.Dict, keys ...string) bool {
	if len(d) != len(keys) {
		return false
	}
	for _, k := range keys {
		if _, ok := d[k]; !ok {
			return false
		}
	}
	return true
}

// fromUDT flattens the struct encodings of ML vectors and matrices. Other
// structs are returned unchanged.
func fromUDT(d value.Dict) (value.Value, error) {
	switch {
	case hasKeys(d, "type", "size", "indices", "values"):
		v, err := denseVector(dict(d))
		if err != nil {
			return nil, fmt.Errorf("malformed vector: %w", err)
		}
		return v, nil
	case hasKeys(d, "type", "numRows", "numCols", "colPtrs", "rowIndices", "values", "isTransposed"):
		m, err := denseMatrix(dict(d))
		if err != nil {
			return nil, fmt.Errorf("malformed matrix: %w", err)
		}
		return m, nil
	default:
		return d, nil
	}
}

const (
	udtSparse = 0
	udtDense  = 1
)

func doubles(vals []float64) value.List {
	ret := make(value.List, len(vals))
	for i, v := range vals {
		ret[i] = value.Double(v)
	}
	return ret
}

func denseVector(d dict) (value.List, error) {
	kind, err := d.integer("type")
	if err != nil {
		return nil, err
	}
	vals, err := d.floats("values")
	if err != nil {
		return nil, err
	}
	if kind == udtDense {
		return doubles(vals), nil
	}
	if kind != udtSparse {
		return nil, fmt.Errorf("unknown vector type %d", kind)
	}
	size, err := d.integer("size")
	if err != nil {
		return nil, err
	}
	indices, err := d.ints("indices")
	if err != nil {
		return nil, err
	}
	if len(indices) != len(vals) {
		return nil, fmt.Errorf("%d indices for %d values", len(indices), len(vals))
	}
	dense := make([]float64, size)
	for k, i := range indices {
		if i < 0 || i >= size {
			return nil, fmt.Errorf("index %d out of range for size %d", i, size)
		}
		dense[i] = vals[k]
	}
	return doubles(dense), nil
}

// denseMatrix returns the rows of a matrix. Dense values are column major
// unless transposed; sparse matrices are CSC, or CSR when transposed.
func denseMatrix(d dict) (value.List, error) {
	kind, err := d.integer("type")
	if err != nil {
		return nil, err
	}
	numRows, err := d.integer("numRows")
	if err != nil {
		return nil, err
	}
	numCols, err := d.integer("numCols")
	if err != nil {
		return nil, err
	}
	transposed, err := d.boolOr("isTransposed", false)
	if err != nil {
		return nil, err
	}
	vals, err := d.floats("values")
	if err != nil {
		return nil, err
	}
	if numRows < 0 || numCols < 0 {
		return nil, fmt.Errorf("negative shape %dx%d", numRows, numCols)
	}
	rows := make([][]float64, numRows)
	for i := range rows {
		rows[i] = make([]float64, numCols)
	}
	switch kind {
	case udtDense:
		if len(vals) != numRows*numCols {
			return nil, fmt.Errorf("%d values for a %dx%d matrix", len(vals), numRows, numCols)
		}
		for i := 0; i < numRows; i++ {
			for j := 0; j < numCols; j++ {
				if transposed {
					rows[i][j] = vals[i*numCols+j]
				} else {
					rows[i][j] = vals[j*numRows+i]
				}
			}
		}
	case udtSparse:
		ptrs, err := d.ints("colPtrs")
		if err != nil {
			return nil, err
		}
		indices, err := d.ints("rowIndices")
		if err != nil {
			return nil, err
		}
		major, minor := numCols, numRows
		if transposed {
			major, minor = numRows, numCols
		}
		if len(ptrs) != major+1 || len(indices) != len(vals) {
			return nil, fmt.Errorf("inconsistent sparse layout")
		}
		for m := 0; m < major; m++ {
			if ptrs[m] < 0 || ptrs[m] > ptrs[m+1] || ptrs[m+1] > len(vals) {
				return nil, fmt.Errorf("inconsistent sparse layout")
			}
			for k := ptrs[m]; k < ptrs[m+1]; k++ {
				n := indices[k]
				if n < 0 || n >= minor {
					return nil, fmt.Errorf("index %d out of range", n)
				}
				if transposed {
					rows[m][n] = vals[k]
				} else {
					rows[n][m] = vals[k]
				}
			}
		}
	default:
		return nil, fmt.Errorf("unknown matrix type %d", kind)
	}
	ret := make(value.List, numRows)
	for i, r := range rows {
		ret[i] = doubles(r)
	}
	return ret, nil
}

// shaper turns the rows of a parquet encoded data directory into the model
// data its builder reads.
type shaper func(ctx context.Context, store storage.Store, dir string, meta Metadata, rows []value.Dict) (dict, error)

func singleRow(_ context.Context, _ storage.Store, _ string, _ Metadata, rows []value.Dict) (dict, error) {
	if len(rows) != 1 {
		return nil, fmt.Errorf("expected exactly one row but found %d", len(rows))
	}
	return dict(rows[0]), nil
}

func logisticRows(ctx context.Context, store storage.Store, dir string, meta Metadata, rows []value.Dict) (dict, error) {
	d, err := singleRow(ctx, store, dir, meta, rows)
	if err != nil {
		return nil, err
	}
	if d.has("coefficientMatrix") || !d.has("coefficients") {
		return d, nil
	}
	// binomial models saved by older releases carry one coefficient vector
	// and a scalar intercept
	ret := make(dict, len(d)+3)
	for k, v := range d {
		ret[k] = v
	}
	coefficients, err := d.list("coefficients")
	if err != nil {
		return nil, err
	}
	intercept, err := d.get("intercept")
	if err != nil {
		return nil, err
	}
	ret["coefficientMatrix"] = value.List{coefficients}
	ret["interceptVector"] = value.List{intercept}
	ret["isMultinomial"] = value.Bool(false)
	return ret, nil
}

// treeShape copies the feature and class counts that tree models keep in
// their metadata rather than their data.
func treeShape(meta Metadata) dict {
	d := make(dict, 3)
	for _, k := range []string{"numFeatures", "numClasses"} {
		if v, ok := meta.Extra[k]; ok {
			d[k] = v
		}
	}
	return d
}

func treeRows(_ context.Context, _ storage.Store, _ string, meta Metadata, rows []value.Dict) (dict, error) {
	d := treeShape(meta)
	nodes := make(value.List, len(rows))
	for i, r := range rows {
		nodes[i] = r
	}
	d["nodes"] = nodes
	return d, nil
}

// forestRows groups node rows by tree. Tree weights come from the
// treesMetadata directory and default to 1 when it is absent.
func forestRows(ctx context.Context, store storage.Store, dir string, meta Metadata, rows []value.Dict) (dict, error) {
	nodes := make(map[int]value.List)
	for _, r := range rows {
		id, err := dict(r).integer("treeID")
		if err != nil {
			return nil, err
		}
		n, err := dict(r).object("nodeData")
		if err != nil {
			return nil, err
		}
		nodes[id] = append(nodes[id], value.Dict(n))
	}
	weights := make(map[int]value.Value)
	treeMeta, err := readRows(ctx, store, storage.Join(dir, "treesMetadata"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	for _, r := range treeMeta {
		id, err := dict(r).integer("treeID")
		if err != nil {
			return nil, err
		}
		if weights[id], err = dict(r).get("weights"); err != nil {
			return nil, err
		}
	}
	ids := lo.Keys(nodes)
	sort.Ints(ids)
	if n, ok := meta.Extra["numTrees"].(value.Int); ok && int(n) != len(ids) {
		return nil, fmt.Errorf("metadata lists %d trees but data holds %d", n, len(ids))
	}
	trees := make(value.List, len(ids))
	for i, id := range ids {
		t := value.Dict{"nodes": nodes[id]}
		if w, ok := weights[id]; ok {
			t["weight"] = w
		}
		trees[i] = t
	}
	d := treeShape(meta)
	d["trees"] = trees
	return d, nil
}
