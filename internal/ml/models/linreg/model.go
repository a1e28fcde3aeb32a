package linreg

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TrainOptions control the ridge-regularized gradient descent fit.
type TrainOptions struct {
	LearningRate float64
	Epochs       int
	L2           float64
}

type Artifact struct {
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	L2           float64   `json:"l2"`
	LearningRate float64   `json:"learning_rate"`
	Epochs       int       `json:"epochs"`
}

// Model regresses the scaled target on already-scaled features.
type Model struct {
	artifact Artifact
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		LearningRate: 0.1,
		Epochs:       800,
		L2:           0.001,
	}
}

func Train(samples [][]float64, targets []float64, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(targets) {
		return nil, errors.New("invalid training dataset")
	}
	width := len(samples[0])
	if width == 0 {
		return nil, errors.New("empty feature vectors")
	}
	defaults := DefaultTrainOptions()
	if opts.LearningRate <= 0 {
		opts.LearningRate = defaults.LearningRate
	}
	if opts.Epochs <= 0 {
		opts.Epochs = defaults.Epochs
	}
	if opts.L2 < 0 {
		opts.L2 = defaults.L2
	}

	weights := make([]float64, width)
	bias := 0.0
	n := float64(len(samples))
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grads := make([]float64, width)
		gradBias := 0.0
		for i := range samples {
			residual := dot(weights, samples[i]) + bias - targets[i]
			for j := range grads {
				grads[j] += residual * samples[i][j]
			}
			gradBias += residual
		}
		for j := range weights {
			weights[j] -= opts.LearningRate * (grads[j]/n + opts.L2*weights[j])
		}
		bias -= opts.LearningRate * (gradBias / n)
	}

	if len(featureNames) != width {
		featureNames = nil
	}
	return &Model{artifact: Artifact{
		FeatureNames: featureNames,
		Weights:      weights,
		Bias:         bias,
		L2:           opts.L2,
		LearningRate: opts.LearningRate,
		Epochs:       opts.Epochs,
	}}, nil
}

func (m *Model) Predict(sample []float64) (float64, error) {
	if m == nil {
		return 0, errors.New("nil model")
	}
	if len(sample) != len(m.artifact.Weights) {
		return 0, fmt.Errorf("linreg expects %d features, got %d", len(m.artifact.Weights), len(sample))
	}
	return dot(m.artifact.Weights, sample) + m.artifact.Bias, nil
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	return json.Marshal(m.artifact)
}

func UnmarshalBinary(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if len(a.Weights) == 0 {
		return nil, errors.New("invalid artifact")
	}
	return &Model{artifact: a}, nil
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
