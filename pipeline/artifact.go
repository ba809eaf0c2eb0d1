package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// StageArtifact describes one fitted stage to be saved by WriteArtifact.
// Data is nil for stages without fitted state. Extra fields are written at
// the top level of the stage metadata.
type StageArtifact struct {
	Class  string
	UID    string
	Params map[string]interface{}
	Extra  map[string]interface{}
	Data   interface{}
}

// WriteArtifact saves a pipeline model made of stages to the local
// directory dir, in the layout Load reads.
func WriteArtifact(dir, uid string, stages []StageArtifact) error {
	uids := make([]string, len(stages))
	for i, s := range stages {
		uids[i] = s.UID
	}
	err := writeMetadata(dir, map[string]interface{}{
		"class":    "org.apache.spark.ml.PipelineModel",
		"uid":      uid,
		"paramMap": map[string]interface{}{"stageUids": uids},
	})
	if err != nil {
		return err
	}
	digits := len(strconv.Itoa(len(stages)))
	for i, s := range stages {
		stageDir := filepath.Join(dir, "stages", fmt.Sprintf("%0*d_%s", digits, i, s.UID))
		params := s.Params
		if params == nil {
			params = map[string]interface{}{}
		}
		meta := map[string]interface{}{
			"class":           s.Class,
			"uid":             s.UID,
			"paramMap":        params,
			"defaultParamMap": map[string]interface{}{},
		}
		for k, v := range s.Extra {
			meta[k] = v
		}
		err := writeMetadata(stageDir, meta)
		if err != nil {
			return err
		}
		if s.Data != nil {
			if err := writeJSON(filepath.Join(stageDir, "data"), s.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeMetadata(dir string, meta map[string]interface{}) error {
	return writeJSON(filepath.Join(dir, "metadata"), meta)
}

func writeJSON(dir string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "part-00000"), append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "_SUCCESS"), nil, 0o644)
}

// ConstantModel returns the stages of a pipeline that assembles the given
// numeric columns into features and labels every row with the same class.
func ConstantModel(inputCols []string, positive bool) []StageArtifact {
	intercept := -10.0
	if positive {
		intercept = 10
	}
	coefficients := make([]float64, len(inputCols))
	return []StageArtifact{
		{
			Class:  "org.apache.spark.ml.feature.VectorAssembler",
			UID:    "VectorAssembler_constant",
			Params: map[string]interface{}{"inputCols": inputCols, "outputCol": "features", "handleInvalid": "keep"},
		},
		{
			Class:  "org.apache.spark.ml.classification.LogisticRegressionModel",
			UID:    "LogisticRegression_constant",
			Params: map[string]interface{}{"featuresCol": "features"},
			Data: map[string]interface{}{
				"numClasses":        2,
				"numFeatures":       len(inputCols),
				"interceptVector":   []float64{intercept},
				"coefficientMatrix": [][]float64{coefficients},
				"isMultinomial":     false,
			},
		},
	}
}
