package dataio

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"churn/lib/frame"
	"churn/lib/utils/parallel"
	"churn/lib/value"
	"churn/session"
	"churn/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var rowsRead = promauto.NewCounter(prometheus.CounterOpts{
	Name: "churn_rows_read_total",
	Help: "Total number of delimited rows read",
})

type ReadOptions struct {
	// Header treats the first record of every file as column names.
	Header bool
	// InferSchema derives column types from content; otherwise every column
	// is a String.
	InferSchema bool
	// Sep is the field delimiter, ',' when zero.
	Sep rune
}

func (o ReadOptions) sep() rune {
	if o.Sep == 0 {
		return ','
	}
	return o.Sep
}

// ReadCSV reads delimited text at path, which is either a single file or a
// directory of part files. Files are read and the schema is resolved
// eagerly; cells are converted lazily, once per action on the frame.
func ReadCSV(ctx context.Context, sess *session.Session, path string, opts ReadOptions) (frame.Frame, error) {
	files, err := dataFiles(ctx, sess.Storage, path)
	if err != nil {
		return frame.Frame{}, err
	}
	var header []string
	var records [][]string
	for _, f := range files {
		data, err := sess.Storage.ReadFile(ctx, f)
		if err != nil {
			return frame.Frame{}, fmt.Errorf("failed to read '%s': %w", f, err)
		}
		recs, err := parse(data, opts.sep())
		if err != nil {
			return frame.Frame{}, fmt.Errorf("malformed delimited file '%s': %w", f, err)
		}
		if opts.Header && len(recs) > 0 {
			if header == nil {
				header = recs[0]
			}
			recs = recs[1:]
		}
		records = append(records, recs...)
	}
	width := len(header)
	if !opts.Header && len(records) > 0 {
		width = len(records[0])
	}
	schema := inferSchema(columnNames(header, width), records, opts.InferSchema)
	rowsRead.Add(float64(len(records)))
	sess.Logger.Debug("Read delimited input",
		zap.String("path", path),
		zap.Int("files", len(files)),
		zap.Int("rows", len(records)),
		zap.Stringer("schema", schema),
	)

	chunks := split(records, sess.Parallelism)
	return frame.FromSource(schema, len(chunks), sess.Parallelism, func(ctx context.Context) ([]frame.Partition, error) {
		return parallel.Process(ctx, sess.Parallelism, chunks, func(chunk [][]string) (frame.Partition, error) {
			return convert(schema, chunk)
		})
	}), nil
}

func dataFiles(ctx context.Context, store storage.Store, path string) ([]string, error) {
	info, err := store.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if !info.Exists {
		return nil, fmt.Errorf("path does not exist: %s", path)
	}
	if !info.IsDir {
		return []string{path}, nil
	}
	entries, err := store.List(ctx, path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir || storage.Hidden(e.Name) {
			continue
		}
		files = append(files, storage.Join(path, e.Name))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("unable to infer schema, no data files in '%s'", path)
	}
	return files, nil
}

func parse(data []byte, sep rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	// permissive: rows of any width, stray quotes kept as text
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// columnNames names unnamed columns _c<i> and disambiguates duplicate names
// by appending the column index.
func columnNames(header []string, width int) []string {
	names := make([]string, width)
	counts := make(map[string]int, width)
	for i := range names {
		if i < len(header) && header[i] != "" {
			names[i] = header[i]
		} else {
			names[i] = "_c" + strconv.Itoa(i)
		}
		counts[names[i]]++
	}
	for i, n := range names {
		if counts[n] > 1 {
			names[i] = n + strconv.Itoa(i)
		}
	}
	return names
}

func inferSchema(names []string, records [][]string, infer bool) frame.Schema {
	schema := make(frame.Schema, len(names))
	for i, name := range names {
		t := value.Types.String
		if infer {
			t = value.Types.Nil
			for _, rec := range records {
				if i < len(rec) {
					t = value.Widen(t, value.TypeOf(value.Infer(rec[i])))
				}
			}
			// all-empty columns
			if t == value.Types.Nil {
				t = value.Types.String
			}
		}
		schema[i] = frame.Field{Name: name, Type: t}
	}
	return schema
}

// split cuts records into at most n contiguous chunks, and always at least
// one so that empty inputs still yield a frame with one partition.
func split(records [][]string, n int) [][][]string {
	if n <= 0 {
		n = 1
	}
	if len(records) < n {
		n = len(records)
	}
	if n == 0 {
		return [][][]string{nil}
	}
	chunks := make([][][]string, n)
	for i := range chunks {
		chunks[i] = records[i*len(records)/n : (i+1)*len(records)/n]
	}
	return chunks
}

func convert(schema frame.Schema, records [][]string) (frame.Partition, error) {
	types := make([]reflect.Type, len(schema))
	for i, f := range schema {
		types[i] = f.Type
	}
	part := make(frame.Partition, 0, len(records))
	for _, rec := range records {
		row := make(frame.Row, len(schema))
		for i, t := range types {
			// short rows are padded with nulls, long rows truncated
			if i >= len(rec) {
				row[i] = value.Nil
				continue
			}
			v, err := value.Coerce(rec[i], t)
			if err != nil {
				return nil, fmt.Errorf("column '%s': %w", schema[i].Name, err)
			}
			row[i] = v
		}
		part = append(part, row)
	}
	return part, nil
}
