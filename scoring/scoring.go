package scoring

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"churn/config"
	"churn/dataio"
	"churn/lib/frame"
	"churn/lib/timer"
	"churn/lib/value"
	"churn/pipeline"
	"churn/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var positiveRows = promauto.NewCounter(prometheus.CounterOpts{
	Name: "churn_positive_predictions_total",
	Help: "Total number of rows predicted positive",
})

type Step string

const (
	StepLoad      Step = "load"
	StepRead      Step = "read"
	StepTransform Step = "transform"
	StepWrite     Step = "write"
)

// Failure is an error of one step of a scoring run. Its message is the
// message of the underlying cause.
type Failure struct {
	Step Step
	Err  error
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type Summary struct {
	RowsRead  int64
	Positives int
	Files     int
	Digest    uint64
	Elapsed   time.Duration
}

func step(ctx context.Context, name Step, fn func(ctx context.Context, t timer.Timer) error) error {
	ctx, t := timer.Start(ctx, "scoring."+string(name))
	defer t.Stop()
	if err := fn(ctx, t); err != nil {
		t.Fail(err)
		return &Failure{Step: name, Err: err}
	}
	return nil
}

/*
Run scores cfg.InputPath with the model at cfg.ModelPath and writes the ids
of rows predicted positive to cfg.OutputPath, replacing whatever was there.
Progress is announced on progress before each step. Any error is a *Failure.

Frames are lazy, so errors raised while computing rows (e.g. unseen labels)
surface in the write step.
*/
func Run(ctx context.Context, sess *session.Session, cfg config.Config, progress io.Writer) (Summary, error) {
	ctx = timer.WithTracing(ctx)
	defer func() { _ = timer.LogTracingInfo(ctx, sess.Logger) }()
	start := sess.Clock.Now()

	var model *pipeline.PipelineModel
	fmt.Fprintf(progress, "Loading model from: %s\n", cfg.ModelPath)
	err := step(ctx, StepLoad, func(ctx context.Context, t timer.Timer) error {
		var err error
		if model, err = pipeline.Load(ctx, sess.Storage, cfg.ModelPath); err != nil {
			return err
		}
		t.Annotate("stages", len(model.Stages))
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	sess.Logger.Info("Loaded model", zap.String("uid", model.UID), zap.Int("stages", len(model.Stages)))

	var data frame.Frame
	var read int64
	fmt.Fprintf(progress, "Reading data from: %s\n", cfg.InputPath)
	err = step(ctx, StepRead, func(ctx context.Context, t timer.Timer) error {
		var err error
		data, err = dataio.ReadCSV(ctx, sess, cfg.InputPath, dataio.ReadOptions{Header: true, InferSchema: true})
		if err != nil {
			return err
		}
		t.Annotate("partitions", data.NumPartitions())
		data = data.MapPartitions(data.Schema(), func(p frame.Partition) (frame.Partition, error) {
			atomic.AddInt64(&read, int64(len(p)))
			return p, nil
		})
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	var ids frame.Frame
	fmt.Fprintln(progress, "Making predictions...")
	err = step(ctx, StepTransform, func(ctx context.Context, _ timer.Timer) error {
		predictions, err := model.Transform(data)
		if err != nil {
			return err
		}
		// a null prediction never equals the label, so those rows are dropped
		positives, err := predictions.Where(cfg.PredictionCol, "==", value.Double(cfg.PositiveLabel))
		if err != nil {
			return err
		}
		if ids, err = positives.Select(cfg.IDCol); err != nil {
			return err
		}
		ids = ids.Coalesce(1)
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	var stats dataio.WriteStats
	fmt.Fprintf(progress, "Saving predictions to: %s\n", cfg.OutputPath)
	err = step(ctx, StepWrite, func(ctx context.Context, t timer.Timer) error {
		var err error
		stats, err = dataio.WriteCSV(ctx, sess, ids, cfg.OutputPath, dataio.WriteOptions{Mode: dataio.ModeOverwrite, Header: cfg.Header})
		if err != nil {
			return err
		}
		t.Annotate("rows", stats.Rows)
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	positiveRows.Add(float64(stats.Rows))
	fmt.Fprintln(progress, "Prediction completed successfully!")

	return Summary{
		RowsRead:  atomic.LoadInt64(&read),
		Positives: stats.Rows,
		Files:     stats.Files,
		Digest:    stats.Digest,
		Elapsed:   sess.Clock.Since(start),
	}, nil
}
