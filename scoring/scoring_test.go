package scoring

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"churn/config"
	"churn/dataio"
	"churn/pipeline"
	"churn/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bankChurners = `CLIENTNUM,Attrition_Flag,Customer_Age,Gender,Credit_Limit
768805383,Existing Customer,45,M,12691.0
818770008,Existing Customer,49,F,8256.0
713982108,Existing Customer,51,M,3418.0
769911858,Attrited Customer,40,F,3313.0
709106358,Existing Customer,40,M,4716.0
`

var allIDs = []string{"768805383", "818770008", "713982108", "769911858", "709106358"}

type fixture struct {
	dir    string
	model  string
	input  string
	output string
}

func newFixture(t *testing.T, positive bool) fixture {
	dir := t.TempDir()
	f := fixture{
		dir:    dir,
		model:  filepath.Join(dir, "models", "pipelineModel"),
		input:  filepath.Join(dir, "data", "BankChurners.csv"),
		output: filepath.Join(dir, "data", "predictions"),
	}
	require.NoError(t, pipeline.WriteArtifact(f.model, "PipelineModel_test", pipeline.ConstantModel([]string{"Customer_Age", "Credit_Limit"}, positive)))
	require.NoError(t, os.MkdirAll(filepath.Dir(f.input), 0o755))
	require.NoError(t, os.WriteFile(f.input, []byte(bankChurners), 0o644))
	return f
}

func (f fixture) config(t *testing.T, extra ...string) config.Config {
	cfg, err := config.Parse(append([]string{"-m", f.model, "-i", f.input, "-o", f.output, "--master", "local[2]"}, extra...))
	require.NoError(t, err)
	return cfg
}

// opener hands out test sessions and remembers the last one.
type opener struct {
	t    *testing.T
	sess *session.Session
}

func (o *opener) open(args *session.SessionArgs) (*session.Session, error) {
	master, err := session.ParseMaster(args.Master)
	if err != nil {
		return nil, err
	}
	o.sess = session.NewTestSession(o.t, master.Parallelism)
	return o.sess, nil
}

// outputIDs returns the ids in the output part files and the number of part
// files.
func outputIDs(t *testing.T, dir string) ([]string, int) {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var ids []string
	parts := 0
	for _, e := range entries {
		if e.Name() == dataio.SuccessMarker {
			continue
		}
		require.True(t, strings.HasPrefix(e.Name(), "part-"), e.Name())
		parts++
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		for _, line := range strings.Split(string(data), "\n") {
			if line != "" {
				ids = append(ids, line)
			}
		}
	}
	return ids, parts
}

func TestAllPositive(t *testing.T) {
	f := newFixture(t, true)
	o := &opener{t: t}
	var stdout bytes.Buffer

	code := Main(context.Background(), f.config(t), o.open, &stdout)
	assert.Equal(t, 0, code)
	assert.True(t, o.sess.Closed())
	assert.Equal(t, strings.Join([]string{
		"Loading model from: " + f.model,
		"Reading data from: " + f.input,
		"Making predictions...",
		"Saving predictions to: " + f.output,
		"Prediction completed successfully!",
		"",
	}, "\n"), stdout.String())

	ids, parts := outputIDs(t, f.output)
	assert.Equal(t, allIDs, ids)
	assert.Equal(t, 1, parts)
}

func TestAllNegative(t *testing.T) {
	f := newFixture(t, false)
	o := &opener{t: t}
	var stdout bytes.Buffer

	assert.Equal(t, 0, Main(context.Background(), f.config(t), o.open, &stdout))
	assert.True(t, o.sess.Closed())
	ids, parts := outputIDs(t, f.output)
	assert.Empty(t, ids)
	assert.Equal(t, 1, parts)
}

func TestPositiveLabel(t *testing.T) {
	f := newFixture(t, false)
	o := &opener{t: t}
	var stdout bytes.Buffer

	assert.Equal(t, 0, Main(context.Background(), f.config(t, "--positive-label", "0"), o.open, &stdout))
	ids, _ := outputIDs(t, f.output)
	assert.Equal(t, allIDs, ids)
}

func TestHeader(t *testing.T) {
	f := newFixture(t, true)
	o := &opener{t: t}
	var stdout bytes.Buffer

	assert.Equal(t, 0, Main(context.Background(), f.config(t, "--header"), o.open, &stdout))
	ids, _ := outputIDs(t, f.output)
	assert.Equal(t, append([]string{"CLIENTNUM"}, allIDs...), ids)
}

func TestRunSummary(t *testing.T) {
	f := newFixture(t, true)
	sess := session.NewTestSession(t, 3)
	var progress bytes.Buffer

	summary, err := Run(context.Background(), sess, f.config(t), &progress)
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.RowsRead)
	assert.Equal(t, 5, summary.Positives)
	assert.Equal(t, 1, summary.Files)
	assert.NotZero(t, summary.Digest)
}

func TestIdempotent(t *testing.T) {
	f := newFixture(t, true)
	sess := session.NewTestSession(t, 2)
	var progress bytes.Buffer

	first, err := Run(context.Background(), sess, f.config(t), &progress)
	require.NoError(t, err)
	firstIDs, _ := outputIDs(t, f.output)

	second, err := Run(context.Background(), sess, f.config(t), &progress)
	require.NoError(t, err)
	secondIDs, _ := outputIDs(t, f.output)

	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, firstIDs, secondIDs)
}

func TestOverwriteRemovesUnrelatedFiles(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, os.MkdirAll(filepath.Join(f.output, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.output, "unrelated.txt"), []byte("keep?"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.output, "nested", "old.csv"), []byte("1\n"), 0o644))
	o := &opener{t: t}
	var stdout bytes.Buffer

	assert.Equal(t, 0, Main(context.Background(), f.config(t), o.open, &stdout))
	entries, err := os.ReadDir(f.output)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	require.Len(t, names, 2)
	assert.True(t, strings.HasPrefix(names[0], "part-00000-"))
	assert.Equal(t, dataio.SuccessMarker, names[1])
}

func TestFailures(t *testing.T) {
	scenarios := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
		step  Step
		cause string
	}{
		{
			name:  "missing model",
			setup: func(t *testing.T, f *fixture) { f.model = filepath.Join(f.dir, "nope") },
			step:  StepLoad,
			cause: "model path does not exist",
		},
		{
			name:  "missing input",
			setup: func(t *testing.T, f *fixture) { f.input = filepath.Join(f.dir, "nope.csv") },
			step:  StepRead,
			cause: "path does not exist",
		},
		{
			name: "missing feature column",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, os.WriteFile(f.input, []byte("CLIENTNUM,Gender\n1,F\n"), 0o644))
			},
			step:  StepTransform,
			cause: "Customer_Age",
		},
		{
			name: "missing id column",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, os.WriteFile(f.input, []byte("ID,Customer_Age,Credit_Limit\n1,30,100.0\n"), 0o644))
			},
			step:  StepTransform,
			cause: "CLIENTNUM",
		},
		{
			name: "unwritable output",
			setup: func(t *testing.T, f *fixture) {
				blocker := filepath.Join(f.dir, "blocker")
				require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))
				f.output = filepath.Join(blocker, "predictions")
			},
			step: StepWrite,
		},
	}
	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) {
			f := newFixture(t, true)
			scenario.setup(t, &f)
			o := &opener{t: t}
			var stdout bytes.Buffer

			code := Main(context.Background(), f.config(t), o.open, &stdout)
			assert.Equal(t, 1, code)
			assert.True(t, o.sess.Closed())
			assert.True(t, strings.HasPrefix(stdout.String(), "Loading model from: "))
			assert.Contains(t, stdout.String(), "Error: ")
			assert.Contains(t, stdout.String(), scenario.cause)
			assert.NotContains(t, stdout.String(), "Prediction completed successfully!")
			_, err := os.Stat(f.output)
			assert.Error(t, err, "no output is written")

			_, err = Run(context.Background(), session.NewTestSession(t, 1), f.config(t), &bytes.Buffer{})
			var failure *Failure
			require.True(t, errors.As(err, &failure))
			assert.Equal(t, scenario.step, failure.Step)
		})
	}
}

func TestFailureKeepsPriorOutput(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, os.MkdirAll(f.output, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.output, "part-00000.csv"), []byte("42\n"), 0o644))
	// a non-numeric feature column fails before anything is written
	require.NoError(t, os.WriteFile(f.input, []byte("CLIENTNUM,Customer_Age,Credit_Limit\n1,30,x\n"), 0o644))
	o := &opener{t: t}
	var stdout bytes.Buffer

	assert.Equal(t, 1, Main(context.Background(), f.config(t), o.open, &stdout))
	data, err := os.ReadFile(filepath.Join(f.output, "part-00000.csv"))
	require.NoError(t, err)
	assert.Equal(t, "42\n", string(data))
}

func TestCancelled(t *testing.T) {
	f := newFixture(t, true)
	o := &opener{t: t}
	var stdout bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 1, Main(ctx, f.config(t), o.open, &stdout))
	assert.True(t, o.sess.Closed())
	assert.Contains(t, stdout.String(), "Error: ")
	assert.Contains(t, stdout.String(), "context canceled")
}

func TestStartupFailurePanics(t *testing.T) {
	f := newFixture(t, true)
	o := &opener{t: t}
	var stdout bytes.Buffer

	assert.Panics(t, func() {
		Main(context.Background(), f.config(t, "--master", "yarn"), o.open, &stdout)
	})
	assert.Nil(t, o.sess)
	assert.Empty(t, stdout.String())
}

func TestPanicStillReleasesSession(t *testing.T) {
	f := newFixture(t, true)
	o := &opener{t: t}

	assert.Panics(t, func() {
		Main(context.Background(), f.config(t), o.open, panicWriter{})
	})
	require.NotNil(t, o.sess)
	assert.True(t, o.sess.Closed())
}

type panicWriter struct{}

func (panicWriter) Write([]byte) (int, error) {
	panic("broken console")
}
