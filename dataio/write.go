package dataio

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"churn/lib/frame"
	"churn/lib/value"
	"churn/session"
	"churn/storage"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

var rowsWritten = promauto.NewCounter(prometheus.CounterOpts{
	Name: "churn_rows_written_total",
	Help: "Total number of delimited rows written",
})

type SaveMode uint8

const (
	ModeErrorIfExists SaveMode = iota
	ModeOverwrite
)

func (m SaveMode) String() string {
	switch m {
	case ModeErrorIfExists:
		return "errorifexists"
	case ModeOverwrite:
		return "overwrite"
	default:
		return "unknown"
	}
}

// SuccessMarker is the empty file written next to the part files once a
// write has completed.
const SuccessMarker = "_SUCCESS"

type WriteOptions struct {
	Mode   SaveMode
	Header bool
	Sep    rune
}

type WriteStats struct {
	Files int
	Rows  int
	// Digest hashes the data rows in order. It does not depend on file
	// names, so runs producing the same rows have the same digest.
	Digest uint64
}

// WriteCSV writes one part file per partition of f into the directory at
// path. f is computed in full before anything is written.
func WriteCSV(ctx context.Context, sess *session.Session, f frame.Frame, path string, opts WriteOptions) (WriteStats, error) {
	for _, field := range f.Schema() {
		switch field.Type {
		case value.Types.Int, value.Types.Double, value.Types.Bool, value.Types.String, value.Types.Nil:
		default:
			return WriteStats{}, fmt.Errorf("delimited output does not support %s data type of column '%s'", value.Types.ToString(field.Type), field.Name)
		}
	}
	if opts.Mode != ModeOverwrite && opts.Mode != ModeErrorIfExists {
		return WriteStats{}, fmt.Errorf("unsupported save mode: %s", opts.Mode)
	}
	if opts.Mode == ModeErrorIfExists {
		info, err := sess.Storage.Stat(ctx, path)
		if err != nil {
			return WriteStats{}, err
		}
		if info.Exists {
			return WriteStats{}, fmt.Errorf("path already exists: %s", path)
		}
	}

	parts, err := f.Partitions(ctx)
	if err != nil {
		return WriteStats{}, err
	}
	if len(parts) == 0 {
		parts = []frame.Partition{nil}
	}
	sep := opts.Sep
	if sep == 0 {
		sep = ','
	}
	job := uuid.NewString()
	hasher := xxh3.New()
	stats := WriteStats{}
	files := make([]storage.File, 0, len(parts)+1)
	var header []byte
	if opts.Header {
		if header, err = render([]frame.Row{headerRow(f.Schema())}, sep); err != nil {
			return WriteStats{}, err
		}
	}
	for i, p := range parts {
		body, err := render(p, sep)
		if err != nil {
			return WriteStats{}, fmt.Errorf("failed to render partition %d: %w", i, err)
		}
		_, _ = hasher.Write(body)
		stats.Rows += len(p)
		data := make([]byte, 0, len(header)+len(body))
		data = append(append(data, header...), body...)
		files = append(files, storage.File{Name: fmt.Sprintf("part-%05d-%s-c000.csv", i, job), Data: data})
	}
	stats.Files = len(files)
	files = append(files, storage.File{Name: SuccessMarker})

	if err := sess.Storage.ReplaceDir(ctx, path, files); err != nil {
		return WriteStats{}, err
	}
	stats.Digest = hasher.Sum64()
	rowsWritten.Add(float64(stats.Rows))
	sess.Logger.Debug("Wrote delimited output",
		zap.String("path", path),
		zap.Stringer("mode", opts.Mode),
		zap.Int("files", stats.Files),
		zap.Int("rows", stats.Rows),
		zap.Uint64("digest", stats.Digest),
	)
	return stats, nil
}

func headerRow(schema frame.Schema) frame.Row {
	row := make(frame.Row, len(schema))
	for i, name := range schema.Names() {
		row[i] = value.String(name)
	}
	return row
}

func render(rows []frame.Row, sep rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = sep
	rec := make([]string, 0)
	for _, row := range rows {
		rec = rec[:0]
		for _, v := range row {
			s, err := value.Format(v)
			if err != nil {
				return nil, err
			}
			rec = append(rec, s)
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
