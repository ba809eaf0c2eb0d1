package pipeline

import (
	"fmt"
	"math"

	"churn/lib/frame"
	"churn/lib/value"
)

// classifier holds the column params shared by classification models. An
// empty output column name disables that output.
type classifier struct {
	stage
	featuresCol      string
	rawPredictionCol string
	probabilityCol   string
	predictionCol    string
	thresholds       []float64
	numFeatures      int
	numClasses       int
}

func newClassifier(meta Metadata, numFeatures, numClasses int) (classifier, error) {
	p := dict(meta.Params)
	c := classifier{stage: stage{meta.UID}, numFeatures: numFeatures, numClasses: numClasses}
	var err error
	if c.featuresCol, err = p.strOr("featuresCol", "features"); err != nil {
		return c, err
	}
	if c.rawPredictionCol, err = p.strOr("rawPredictionCol", "rawPrediction"); err != nil {
		return c, err
	}
	if c.probabilityCol, err = p.strOr("probabilityCol", "probability"); err != nil {
		return c, err
	}
	if c.predictionCol, err = p.strOr("predictionCol", "prediction"); err != nil {
		return c, err
	}
	if p.has("thresholds") {
		if c.thresholds, err = p.floats("thresholds"); err != nil {
			return c, err
		}
		if len(c.thresholds) != numClasses {
			return c, fmt.Errorf("%d thresholds for %d classes", len(c.thresholds), numClasses)
		}
	}
	if numClasses < 2 {
		return c, fmt.Errorf("at least 2 classes required but got %d", numClasses)
	}
	return c, nil
}

// predict picks the class with the highest probability, scaled by the
// class thresholds when set.
func (c classifier) predict(prob value.Vector) float64 {
	best, bestScore := 0, math.Inf(-1)
	for i, p := range prob {
		score := p
		if c.thresholds != nil {
			if c.thresholds[i] == 0 {
				score = math.Inf(1)
			} else {
				score = p / c.thresholds[i]
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return float64(best)
}

func (c classifier) transform(f frame.Frame, score func(x value.Vector) (raw, prob value.Vector, prediction float64)) (frame.Frame, error) {
	idx, err := f.Schema().Resolve(c.featuresCol)
	if err != nil {
		return frame.Frame{}, err
	}
	i := idx[0]
	if t := f.Schema()[i].Type; t != value.Types.Vector {
		return frame.Frame{}, fmt.Errorf("features column '%s' must be a Vector but was %s", c.featuresCol, value.Types.ToString(t))
	}
	var fields []frame.Field
	if c.rawPredictionCol != "" {
		fields = append(fields, frame.Field{Name: c.rawPredictionCol, Type: value.Types.Vector})
	}
	if c.probabilityCol != "" {
		fields = append(fields, frame.Field{Name: c.probabilityCol, Type: value.Types.Vector})
	}
	if c.predictionCol != "" {
		fields = append(fields, frame.Field{Name: c.predictionCol, Type: value.Types.Double})
	}
	if len(fields) == 0 {
		return f, nil
	}
	return f.WithColumns(fields, func(row frame.Row) ([]value.Value, error) {
		x, ok := row[i].(value.Vector)
		if !ok {
			return nil, fmt.Errorf("features column '%s' is null", c.featuresCol)
		}
		if len(x) != c.numFeatures {
			return nil, fmt.Errorf("model expects %d features but got %d", c.numFeatures, len(x))
		}
		raw, prob, prediction := score(x)
		vals := make([]value.Value, 0, len(fields))
		if c.rawPredictionCol != "" {
			vals = append(vals, raw)
		}
		if c.probabilityCol != "" {
			vals = append(vals, prob)
		}
		if c.predictionCol != "" {
			vals = append(vals, value.Double(prediction))
		}
		return vals, nil
	})
}

func normalize(v value.Vector) value.Vector {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	out := make(value.Vector, len(v))
	if sum == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}

func sigmoid(m float64) float64 {
	return 1 / (1 + math.Exp(-m))
}

// LogisticRegression scores binary models with a sigmoid over the margin
// and multinomial models with a softmax over the per-class margins.
type LogisticRegression struct {
	classifier
	threshold    float64
	coefficients [][]float64
	intercepts   []float64
	multinomial  bool
}

func newLogisticRegression(meta Metadata, data dict) (Stage, error) {
	numClasses, err := data.integer("numClasses")
	if err != nil {
		return nil, err
	}
	numFeatures, err := data.integer("numFeatures")
	if err != nil {
		return nil, err
	}
	c, err := newClassifier(meta, numFeatures, numClasses)
	if err != nil {
		return nil, err
	}
	threshold, err := dict(meta.Params).numberOr("threshold", 0.5)
	if err != nil {
		return nil, err
	}
	multinomial, err := data.boolOr("isMultinomial", numClasses > 2)
	if err != nil {
		return nil, err
	}
	intercepts, err := data.floats("interceptVector")
	if err != nil {
		return nil, err
	}
	rows, err := data.list("coefficientMatrix")
	if err != nil {
		return nil, err
	}
	coefficients := make([][]float64, len(rows))
	for i, r := range rows {
		l, ok := r.(value.List)
		if !ok {
			return nil, fmt.Errorf("coefficientMatrix rows must be lists but found %s", r)
		}
		if coefficients[i], err = asFloats("coefficientMatrix", l); err != nil {
			return nil, err
		}
		if len(coefficients[i]) != numFeatures {
			return nil, fmt.Errorf("coefficient row %d has %d entries for %d features", i, len(coefficients[i]), numFeatures)
		}
	}
	want := 1
	if multinomial {
		want = numClasses
	} else if numClasses != 2 {
		return nil, fmt.Errorf("binomial model with %d classes", numClasses)
	}
	if len(coefficients) != want || len(intercepts) != want {
		return nil, fmt.Errorf("expected %d coefficient rows and intercepts but got %d and %d", want, len(coefficients), len(intercepts))
	}
	return &LogisticRegression{classifier: c, threshold: threshold, coefficients: coefficients, intercepts: intercepts, multinomial: multinomial}, nil
}

func (l *LogisticRegression) margin(k int, x value.Vector) float64 {
	m := l.intercepts[k]
	for j, w := range l.coefficients[k] {
		m += w * x[j]
	}
	return m
}

func (l *LogisticRegression) score(x value.Vector) (value.Vector, value.Vector, float64) {
	if !l.multinomial {
		m := l.margin(0, x)
		p := sigmoid(m)
		raw, prob := value.Vector{-m, m}, value.Vector{1 - p, p}
		if l.thresholds != nil {
			return raw, prob, l.predict(prob)
		}
		if p > l.threshold {
			return raw, prob, 1
		}
		return raw, prob, 0
	}
	raw := make(value.Vector, len(l.intercepts))
	top := math.Inf(-1)
	for k := range raw {
		raw[k] = l.margin(k, x)
		if raw[k] > top {
			top = raw[k]
		}
	}
	prob := make(value.Vector, len(raw))
	for k, m := range raw {
		prob[k] = math.Exp(m - top)
	}
	prob = normalize(prob)
	return raw, prob, l.predict(prob)
}

func (l *LogisticRegression) Transform(f frame.Frame) (frame.Frame, error) {
	return l.transform(f, l.score)
}

type node struct {
	id          int
	prediction  float64
	stats       []float64
	left, right int
	feature     int
	// threshold is used when categories is nil
	threshold  float64
	categories map[float64]bool
}

func (n node) leaf() bool {
	return n.left < 0
}

func (n node) goLeft(x float64) bool {
	if n.categories != nil {
		return n.categories[x]
	}
	return x <= n.threshold
}

type tree struct {
	nodes map[int]node
}

func decodeTree(l value.List, numFeatures, numClasses int) (tree, error) {
	t := tree{nodes: make(map[int]node, len(l))}
	for _, v := range l {
		d, ok := v.(value.Dict)
		if !ok {
			return t, fmt.Errorf("tree nodes must be objects but found %s", v)
		}
		n, err := decodeNode(dict(d), numFeatures, numClasses)
		if err != nil {
			return t, err
		}
		if _, dup := t.nodes[n.id]; dup {
			return t, fmt.Errorf("duplicate node id %d", n.id)
		}
		t.nodes[n.id] = n
	}
	if _, ok := t.nodes[0]; !ok {
		return t, fmt.Errorf("tree has no root node")
	}
	for _, n := range t.nodes {
		if n.leaf() {
			continue
		}
		_, lok := t.nodes[n.left]
		_, rok := t.nodes[n.right]
		if !lok || !rok {
			return t, fmt.Errorf("node %d references a missing child", n.id)
		}
	}
	// every node must be reached at most once from the root
	seen := make(map[int]bool, len(t.nodes))
	stack := []int{0}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			return t, fmt.Errorf("node %d is reachable more than once", id)
		}
		seen[id] = true
		if n := t.nodes[id]; !n.leaf() {
			stack = append(stack, n.left, n.right)
		}
	}
	return t, nil
}

func decodeNode(d dict, numFeatures, numClasses int) (node, error) {
	var n node
	var err error
	if n.id, err = d.integer("id"); err != nil {
		return n, err
	}
	if n.prediction, err = d.number("prediction"); err != nil {
		return n, err
	}
	if n.stats, err = d.floats("impurityStats"); err != nil {
		return n, err
	}
	if len(n.stats) != numClasses {
		return n, fmt.Errorf("node %d has %d impurity stats for %d classes", n.id, len(n.stats), numClasses)
	}
	if n.left, err = d.integer("leftChild"); err != nil {
		return n, err
	}
	if n.right, err = d.integer("rightChild"); err != nil {
		return n, err
	}
	if n.leaf() {
		return n, nil
	}
	split, err := d.object("split")
	if err != nil {
		return n, err
	}
	if n.feature, err = split.integer("featureIndex"); err != nil {
		return n, err
	}
	if n.feature < 0 || n.feature >= numFeatures {
		return n, fmt.Errorf("node %d splits on feature %d of %d", n.id, n.feature, numFeatures)
	}
	values, err := split.floats("leftCategoriesOrThreshold")
	if err != nil {
		return n, err
	}
	numCategories, err := split.integer("numCategories")
	if err != nil {
		return n, err
	}
	if numCategories < 0 {
		if len(values) != 1 {
			return n, fmt.Errorf("continuous split of node %d needs exactly one threshold", n.id)
		}
		n.threshold = values[0]
		return n, nil
	}
	n.categories = make(map[float64]bool, len(values))
	for _, c := range values {
		n.categories[c] = true
	}
	return n, nil
}

func (t tree) leaf(x value.Vector) node {
	n := t.nodes[0]
	for !n.leaf() {
		if n.goLeft(x[n.feature]) {
			n = t.nodes[n.left]
		} else {
			n = t.nodes[n.right]
		}
	}
	return n
}

func readTreeShape(data dict) (int, int, error) {
	numFeatures, err := data.integer("numFeatures")
	if err != nil {
		return 0, 0, err
	}
	numClasses, err := data.integer("numClasses")
	if err != nil {
		return 0, 0, err
	}
	return numFeatures, numClasses, nil
}

// DecisionTree predicts from the class counts of the leaf a row lands in.
type DecisionTree struct {
	classifier
	tree tree
}

func newDecisionTree(meta Metadata, data dict) (Stage, error) {
	numFeatures, numClasses, err := readTreeShape(data)
	if err != nil {
		return nil, err
	}
	c, err := newClassifier(meta, numFeatures, numClasses)
	if err != nil {
		return nil, err
	}
	nodes, err := data.list("nodes")
	if err != nil {
		return nil, err
	}
	t, err := decodeTree(nodes, numFeatures, numClasses)
	if err != nil {
		return nil, err
	}
	return &DecisionTree{classifier: c, tree: t}, nil
}

func (d *DecisionTree) Transform(f frame.Frame) (frame.Frame, error) {
	return d.transform(f, func(x value.Vector) (value.Vector, value.Vector, float64) {
		raw := append(value.Vector{}, d.tree.leaf(x).stats...)
		prob := normalize(raw)
		return raw, prob, d.predict(prob)
	})
}

type weightedTree struct {
	tree
	weight float64
}

// RandomForest sums the normalized leaf class counts of its trees.
type RandomForest struct {
	classifier
	trees []weightedTree
}

func newRandomForest(meta Metadata, data dict) (Stage, error) {
	numFeatures, numClasses, err := readTreeShape(data)
	if err != nil {
		return nil, err
	}
	c, err := newClassifier(meta, numFeatures, numClasses)
	if err != nil {
		return nil, err
	}
	list, err := data.list("trees")
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	trees := make([]weightedTree, len(list))
	for i, v := range list {
		d, ok := v.(value.Dict)
		if !ok {
			return nil, fmt.Errorf("trees must be objects but found %s", v)
		}
		weight, err := dict(d).numberOr("weight", 1)
		if err != nil {
			return nil, err
		}
		nodes, err := dict(d).list("nodes")
		if err != nil {
			return nil, err
		}
		t, err := decodeTree(nodes, numFeatures, numClasses)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees[i] = weightedTree{tree: t, weight: weight}
	}
	return &RandomForest{classifier: c, trees: trees}, nil
}

func (r *RandomForest) Transform(f frame.Frame) (frame.Frame, error) {
	return r.transform(f, func(x value.Vector) (value.Vector, value.Vector, float64) {
		raw := make(value.Vector, r.numClasses)
		for _, t := range r.trees {
			for k, p := range normalize(t.leaf(x).stats) {
				raw[k] += t.weight * p
			}
		}
		prob := normalize(raw)
		return raw, prob, r.predict(prob)
	})
}
