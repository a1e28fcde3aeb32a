// Package xgboost wraps boo's gradient-boosted trees as an up/down
// classifier. Like logreg, the up probability stands in for the scaled
// target.
package xgboost

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/rmera/boo"
	"github.com/rmera/boo/utils"
)

const (
	labelDown = 0
	labelUp   = 1

	// minPerClass keeps the booster from fitting a handful of outliers.
	minPerClass = 5
)

type TrainOptions struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
}

type artifact struct {
	FeatureNames []string     `json:"feature_names,omitempty"`
	Width        int          `json:"width"`
	Options      TrainOptions `json:"options"`
	Trees        string       `json:"trees"`
}

type Model struct {
	width        int
	featureNames []string
	options      TrainOptions
	boost        *boo.MultiClass
	// upIndex is the position of the up class in boo's output.
	upIndex int
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Rounds:       40,
		LearningRate: 0.08,
		MaxDepth:     3,
	}
}

// Train expects 0/1 labels, as produced by logreg.Labels.
func Train(samples [][]float64, labels []float64, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(labels) {
		return nil, errors.New("invalid training dataset")
	}
	width := len(samples[0])
	if width == 0 {
		return nil, errors.New("empty feature vectors")
	}

	classes := make([]int, len(labels))
	var counts [2]int
	for i, v := range labels {
		switch v {
		case 0:
			classes[i] = labelDown
		case 1:
			classes[i] = labelUp
		default:
			return nil, fmt.Errorf("label %v is not 0 or 1", v)
		}
		counts[classes[i]]++
	}
	if counts[labelDown] < minPerClass || counts[labelUp] < minPerClass {
		return nil, fmt.Errorf("need %d samples per class, have %d down and %d up",
			minPerClass, counts[labelDown], counts[labelUp])
	}

	defaults := DefaultTrainOptions()
	if opts.Rounds <= 0 {
		opts.Rounds = defaults.Rounds
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = defaults.LearningRate
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaults.MaxDepth
	}
	if len(featureNames) != width {
		featureNames = positionalNames(width)
	}

	o := boo.DefaultXOptions()
	o.Rounds = opts.Rounds
	o.LearningRate = opts.LearningRate
	o.MaxDepth = opts.MaxDepth
	o.Verbose = false
	o.EarlyStop = 0

	boost := boo.NewMultiClass(&utils.DataBunch{
		Data:   samples,
		Labels: classes,
		Keys:   featureNames,
	}, o)
	if boost == nil {
		return nil, errors.New("boosting produced no model")
	}
	return newModel(boost, width, featureNames, opts)
}

func newModel(boost *boo.MultiClass, width int, featureNames []string, opts TrainOptions) (*Model, error) {
	upIndex := -1
	for i, label := range boost.ClassLabels() {
		if label == labelUp {
			upIndex = i
		}
	}
	if upIndex < 0 {
		return nil, errors.New("model has no up class")
	}
	return &Model{
		width:        width,
		featureNames: append([]string(nil), featureNames...),
		options:      opts,
		boost:        boost,
		upIndex:      upIndex,
	}, nil
}

// Predict returns the probability that the next move is up.
func (m *Model) Predict(sample []float64) (float64, error) {
	if m == nil || m.boost == nil {
		return 0, errors.New("nil model")
	}
	if len(sample) != m.width {
		return 0, fmt.Errorf("xgboost expects %d features, got %d", m.width, len(sample))
	}
	probs := m.boost.PredictSingle(sample)
	if m.upIndex >= len(probs) {
		return 0, fmt.Errorf("booster returned %d class scores", len(probs))
	}
	p := probs[m.upIndex]
	if math.IsNaN(p) {
		return 0, errors.New("booster returned NaN")
	}
	return math.Max(0, math.Min(1, p)), nil
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil || m.boost == nil {
		return nil, errors.New("nil model")
	}
	var buf bytes.Buffer
	if err := boo.JSONMultiClass(m.boost, "softmax", &buf); err != nil {
		return nil, err
	}
	return json.Marshal(artifact{
		FeatureNames: m.featureNames,
		Width:        m.width,
		Options:      m.options,
		Trees:        buf.String(),
	})
}

func UnmarshalBinary(blob []byte) (*Model, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a artifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, err
	}
	if a.Width <= 0 {
		return nil, errors.New("invalid artifact: no feature width")
	}
	boost, err := boo.UnJSONMultiClass(bufio.NewReader(bytes.NewReader([]byte(a.Trees))))
	if err != nil {
		return nil, err
	}
	return newModel(boost, a.Width, a.FeatureNames, a.Options)
}

func positionalNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("f%d", i)
	}
	return out
}
