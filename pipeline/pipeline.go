package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"churn/lib/frame"
	"churn/lib/utils/parallel"
	"churn/storage"
)

// Stage is one fitted step of a pipeline. Transform only plans the work:
// it validates the input schema and returns a lazily evaluated frame.
type Stage interface {
	UID() string
	Transform(f frame.Frame) (frame.Frame, error)
}

type builder struct {
	// hasData is set for stages whose fitted state lives under <dir>/data.
	hasData bool
	// shape assembles parquet data rows, one row per model when nil.
	shape shaper
	build func(meta Metadata, data dict) (Stage, error)
}

var builders = map[string]builder{
	"StringIndexerModel":              {hasData: true, build: newStringIndexer},
	"OneHotEncoderModel":              {hasData: true, build: newOneHotEncoder},
	"VectorAssembler":                 {build: newVectorAssembler},
	"StandardScalerModel":             {hasData: true, build: newStandardScaler},
	"LogisticRegressionModel":         {hasData: true, shape: logisticRows, build: newLogisticRegression},
	"DecisionTreeClassificationModel": {hasData: true, shape: treeRows, build: newDecisionTree},
	"RandomForestClassificationModel": {hasData: true, shape: forestRows, build: newRandomForest},
}

type PipelineModel struct {
	UID    string
	Stages []Stage
}

// Load reads the pipeline saved at path. Nothing under path is modified.
func Load(ctx context.Context, store storage.Store, path string) (*PipelineModel, error) {
	info, err := store.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if !info.Exists || !info.IsDir {
		return nil, fmt.Errorf("model path does not exist: %s", path)
	}
	meta, err := readMetadata(ctx, store, path)
	if err != nil {
		return nil, err
	}
	if meta.ShortClass() != "PipelineModel" {
		return nil, fmt.Errorf("expected a PipelineModel at '%s' but found %s", path, meta.Class)
	}
	uids, err := dict(meta.Params).strs("stageUids")
	if err != nil {
		return nil, fmt.Errorf("malformed metadata in '%s': %w", path, err)
	}
	// stage directories are zero padded to the digit count of the stage count
	digits := len(strconv.Itoa(len(uids)))
	idx := make([]int, len(uids))
	for i := range idx {
		idx[i] = i
	}
	stages, err := parallel.Process(ctx, 0, idx, func(i int) (Stage, error) {
		dir := storage.Join(path, "stages", fmt.Sprintf("%0*d_%s", digits, i, uids[i]))
		return loadStage(ctx, store, dir, uids[i])
	})
	if err != nil {
		return nil, err
	}
	return &PipelineModel{UID: meta.UID, Stages: stages}, nil
}

func loadStage(ctx context.Context, store storage.Store, dir, uid string) (Stage, error) {
	meta, err := readMetadata(ctx, store, dir)
	if err != nil {
		return nil, err
	}
	if meta.UID != uid {
		return nil, fmt.Errorf("stage in '%s' has uid %s, expected %s", dir, meta.UID, uid)
	}
	b, ok := builders[meta.ShortClass()]
	if !ok {
		return nil, fmt.Errorf("unsupported stage class %s in '%s'", meta.Class, dir)
	}
	var data dict
	if b.hasData {
		if data, err = readData(ctx, store, dir, meta, b.shape); err != nil {
			return nil, err
		}
	}
	stage, err := b.build(meta, data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s '%s': %w", meta.ShortClass(), uid, err)
	}
	return stage, nil
}

// Transform applies the stages in order.
func (m *PipelineModel) Transform(f frame.Frame) (frame.Frame, error) {
	for _, s := range m.Stages {
		var err error
		if f, err = s.Transform(f); err != nil {
			return frame.Frame{}, fmt.Errorf("stage %s: %w", s.UID(), err)
		}
	}
	return f, nil
}
