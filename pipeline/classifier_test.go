package pipeline

import (
	"math"
	"testing"

	"churn/lib/frame"
	"churn/lib/value"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func featureFrame(vectors ...value.Vector) frame.Frame {
	part := make(frame.Partition, len(vectors))
	for i, v := range vectors {
		part[i] = frame.Row{v}
	}
	return frame.New(frame.Schema{{Name: "features", Type: value.Types.Vector}}, []frame.Partition{part}, 1)
}

func TestLogisticRegressionBinary(t *testing.T) {
	data := `{"numClasses": 2, "numFeatures": 2, "interceptVector": [0], "coefficientMatrix": [[1, -1]], "isMultinomial": false}`
	lr := mustStage(t, `{"class": "org.apache.spark.ml.classification.LogisticRegressionModel", "uid": "lr", "paramMap": {}, "defaultParamMap": {"threshold": 0.5, "featuresCol": "features"}}`, data)

	out, err := lr.Transform(featureFrame(value.Vector{2, 1}, value.Vector{0, 1}))
	require.NoError(t, err)
	assert.Equal(t, []string{"features", "rawPrediction", "probability", "prediction"}, out.Schema().Names())
	rows, err := transformed(t, lr, featureFrame(value.Vector{2, 1}, value.Vector{0, 1}))
	require.NoError(t, err)

	assert.Equal(t, value.Vector{-1, 1}, rows[0][1])
	prob := rows[0][2].(value.Vector)
	assert.InDelta(t, 1/(1+math.Exp(-1)), prob[1], 1e-12)
	assert.InDelta(t, 1, prob[0]+prob[1], 1e-12)
	assert.Equal(t, value.Double(1), rows[0][3])
	assert.Equal(t, value.Double(0), rows[1][3])

	strict := mustStage(t, `{"class": "LogisticRegressionModel", "uid": "lr", "paramMap": {"threshold": 0.8}}`, data)
	rows, err = transformed(t, strict, featureFrame(value.Vector{2, 1}))
	require.NoError(t, err)
	assert.Equal(t, value.Double(0), rows[0][3])
}

func TestLogisticRegressionMultinomial(t *testing.T) {
	data := `{"numClasses": 3, "numFeatures": 1, "interceptVector": [0, 0, 0], "coefficientMatrix": [[1], [0], [-1]], "isMultinomial": true}`
	lr := mustStage(t, `{"class": "LogisticRegressionModel", "uid": "lr", "paramMap": {"probabilityCol": ""}}`, data)
	out, err := lr.Transform(featureFrame(value.Vector{-2}))
	require.NoError(t, err)
	assert.Equal(t, []string{"features", "rawPrediction", "prediction"}, out.Schema().Names())
	rows, err := transformed(t, lr, featureFrame(value.Vector{-2}, value.Vector{3}))
	require.NoError(t, err)
	assert.Equal(t, value.Double(2), rows[0][2])
	assert.Equal(t, value.Double(0), rows[1][2])
}

func TestLogisticRegressionErrors(t *testing.T) {
	meta := `{"class": "LogisticRegressionModel", "uid": "lr", "paramMap": {}}`
	_, err := buildStage(t, meta, `{"numClasses": 2, "numFeatures": 2, "interceptVector": [0], "coefficientMatrix": [[1]]}`)
	assert.Error(t, err)
	_, err = buildStage(t, meta, `{"numClasses": 2, "numFeatures": 1, "interceptVector": [0, 1], "coefficientMatrix": [[1]]}`)
	assert.Error(t, err)

	lr := mustStage(t, meta, `{"numClasses": 2, "numFeatures": 2, "interceptVector": [0], "coefficientMatrix": [[1, 1]]}`)
	_, err = transformed(t, lr, featureFrame(value.Vector{1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 2 features")

	_, err = lr.Transform(frame.New(frame.Schema{{Name: "features", Type: value.Types.Double}}, nil, 1))
	assert.Error(t, err)
	_, err = lr.Transform(frame.New(frame.Schema{{Name: "other", Type: value.Types.Vector}}, nil, 1))
	assert.Error(t, err)
}

// root: feature 0 <= 0.5 goes to leaf 1, otherwise node 2 splits on
// feature 1 being in {1, 2}.
const treeNodes = `[
	{"id": 0, "prediction": 0, "impurityStats": [8, 5], "leftChild": 1, "rightChild": 2, "split": {"featureIndex": 0, "leftCategoriesOrThreshold": [0.5], "numCategories": -1}},
	{"id": 1, "prediction": 0, "impurityStats": [3, 1], "leftChild": -1, "rightChild": -1},
	{"id": 2, "prediction": 0, "impurityStats": [5, 4], "leftChild": 3, "rightChild": 4, "split": {"featureIndex": 1, "leftCategoriesOrThreshold": [1, 2], "numCategories": 3}},
	{"id": 3, "prediction": 1, "impurityStats": [0, 4], "leftChild": -1, "rightChild": -1},
	{"id": 4, "prediction": 0, "impurityStats": [5, 0], "leftChild": -1, "rightChild": -1}
]`

func TestDecisionTree(t *testing.T) {
	dt := mustStage(t, `{"class": "org.apache.spark.ml.classification.DecisionTreeClassificationModel", "uid": "dt", "paramMap": {}}`,
		`{"numFeatures": 2, "numClasses": 2, "nodes": `+treeNodes+`}`)
	rows, err := transformed(t, dt, featureFrame(value.Vector{0.2, 0}, value.Vector{1, 1}, value.Vector{1, 0}, value.Vector{0.5, 2}))
	require.NoError(t, err)

	assert.Equal(t, value.Vector{3, 1}, rows[0][1])
	assert.Equal(t, value.Vector{0.75, 0.25}, rows[0][2])
	assert.Equal(t, value.Double(0), rows[0][3])
	assert.Equal(t, value.Double(1), rows[1][3])
	assert.Equal(t, value.Double(0), rows[2][3])
	// thresholds are inclusive on the left
	assert.Equal(t, value.Vector{3, 1}, rows[3][1])
}

func TestDecisionTreeMalformed(t *testing.T) {
	meta := `{"class": "DecisionTreeClassificationModel", "uid": "dt", "paramMap": {}}`
	scenarios := []string{
		// no root
		`[{"id": 1, "prediction": 0, "impurityStats": [1, 1], "leftChild": -1, "rightChild": -1}]`,
		// missing child
		`[{"id": 0, "prediction": 0, "impurityStats": [1, 1], "leftChild": 1, "rightChild": 2, "split": {"featureIndex": 0, "leftCategoriesOrThreshold": [0], "numCategories": -1}}]`,
		// cycle
		`[{"id": 0, "prediction": 0, "impurityStats": [1, 1], "leftChild": 0, "rightChild": 0, "split": {"featureIndex": 0, "leftCategoriesOrThreshold": [0], "numCategories": -1}}]`,
		// feature out of range
		`[{"id": 0, "prediction": 0, "impurityStats": [1, 1], "leftChild": 1, "rightChild": 2, "split": {"featureIndex": 7, "leftCategoriesOrThreshold": [0], "numCategories": -1}},
		  {"id": 1, "prediction": 0, "impurityStats": [1, 0], "leftChild": -1, "rightChild": -1},
		  {"id": 2, "prediction": 1, "impurityStats": [0, 1], "leftChild": -1, "rightChild": -1}]`,
		// stats do not match classes
		`[{"id": 0, "prediction": 0, "impurityStats": [1, 1, 1], "leftChild": -1, "rightChild": -1}]`,
	}
	for _, nodes := range scenarios {
		_, err := buildStage(t, meta, `{"numFeatures": 2, "numClasses": 2, "nodes": `+nodes+`}`)
		assert.Error(t, err, nodes)
	}
}

func TestRandomForest(t *testing.T) {
	data := `{"numFeatures": 1, "numClasses": 2, "trees": [
		{"weight": 1.0, "nodes": [{"id": 0, "prediction": 1, "impurityStats": [1, 3], "leftChild": -1, "rightChild": -1}]},
		{"nodes": [{"id": 0, "prediction": 0, "impurityStats": [2, 2], "leftChild": -1, "rightChild": -1}]}
	]}`
	rf := mustStage(t, `{"class": "org.apache.spark.ml.classification.RandomForestClassificationModel", "uid": "rf", "paramMap": {}}`, data)
	rows, err := transformed(t, rf, featureFrame(value.Vector{0}))
	require.NoError(t, err)
	assert.Equal(t, value.Vector{0.75, 1.25}, rows[0][1])
	assert.Equal(t, value.Vector{0.375, 0.625}, rows[0][2])
	assert.Equal(t, value.Double(1), rows[0][3])

	// thresholds scale the probabilities before picking a class
	rf = mustStage(t, `{"class": "RandomForestClassificationModel", "uid": "rf", "paramMap": {"thresholds": [0.3, 0.7]}}`, data)
	rows, err = transformed(t, rf, featureFrame(value.Vector{0}))
	require.NoError(t, err)
	assert.Equal(t, value.Double(0), rows[0][3])

	_, err = buildStage(t, `{"class": "RandomForestClassificationModel", "uid": "rf", "paramMap": {}}`, `{"numFeatures": 1, "numClasses": 2, "trees": []}`)
	assert.Error(t, err)
}

func TestNullFeatures(t *testing.T) {
	lr := mustStage(t, `{"class": "LogisticRegressionModel", "uid": "lr", "paramMap": {}}`, `{"numClasses": 2, "numFeatures": 1, "interceptVector": [0], "coefficientMatrix": [[1]]}`)
	f := frame.New(frame.Schema{{Name: "features", Type: value.Types.Vector}}, []frame.Partition{{{value.Nil}}}, 1)
	_, err := transformed(t, lr, f)
	assert.Error(t, err)
}
