package scoring

import (
	"context"
	"errors"
	"fmt"
	"io"

	"churn/config"
	"churn/session"

	"go.uber.org/zap"
)

// Opener acquires the compute session of a run.
type Opener func(args *session.SessionArgs) (*session.Session, error)

// Main runs one scoring job and returns the process exit code. A session
// that can not be acquired is fatal and panics; once acquired, the session
// is released on every path out of Main, panics included.
func Main(ctx context.Context, cfg config.Config, open Opener, stdout io.Writer) int {
	args := cfg.SessionArgs()
	sess, err := open(&args)
	if err != nil {
		panic(fmt.Sprintf("Failed to setup session: %v", err))
	}
	defer func() {
		if err := sess.Close(); err != nil {
			sess.Logger.Warn("Failed to release session", zap.Error(err))
		}
	}()

	summary, err := Run(ctx, sess, cfg, stdout)
	if err != nil {
		fmt.Fprintf(stdout, "Error: %s\n", err)
		var failure *Failure
		if errors.As(err, &failure) {
			sess.Logger.Error("Prediction failed", zap.String("step", string(failure.Step)), zap.Error(failure.Err))
		} else {
			sess.Logger.Error("Prediction failed", zap.Error(err))
		}
		return 1
	}
	sess.Logger.Info("Prediction completed",
		zap.Int64("rows_read", summary.RowsRead),
		zap.Int("positives", summary.Positives),
		zap.Int("files", summary.Files),
		zap.Uint64("digest", summary.Digest),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return 0
}
