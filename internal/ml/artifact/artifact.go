package artifact

import (
	"encoding/json"
	"errors"
	"fmt"

	"trendcast/internal/ml/models/linreg"
	"trendcast/internal/ml/models/logreg"
	"trendcast/internal/ml/models/xgboost"
	"trendcast/internal/ml/scaler"
)

const (
	FormatLinReg  = "json/linreg-v1"
	FormatLogReg  = "json/logreg-v1"
	FormatXGBoost = "json/boo-xgboost-v1"
)

// Predictor maps a scaled feature vector to a scaled target in [0, 1].
type Predictor interface {
	Predict(features []float64) (float64, error)
}

// Scaler is the fitted transform paired with a Predictor.
type Scaler interface {
	Transform(features []float64) ([]float64, error)
	InverseTarget(scaled float64) float64
}

// Artifact is a ready-to-use model bundle for one ticker (or the default).
type Artifact struct {
	Key          string
	Version      int
	Format       string
	FeatureNames []string
	Predictor    Predictor
	Scaler       Scaler
}

// PredictChangePct runs the bundle on raw features and returns the
// predicted change in percent.
func (a *Artifact) PredictChangePct(features []float64) (float64, error) {
	if a == nil || a.Predictor == nil || a.Scaler == nil {
		return 0, errors.New("incomplete artifact")
	}
	scaled, err := a.Scaler.Transform(features)
	if err != nil {
		return 0, err
	}
	y, err := a.Predictor.Predict(scaled)
	if err != nil {
		return 0, err
	}
	return a.Scaler.InverseTarget(y), nil
}

type envelope struct {
	Format       string          `json:"format"`
	FeatureNames []string        `json:"feature_names"`
	Scaler       *scaler.MinMax  `json:"scaler"`
	Model        json.RawMessage `json:"model"`
}

// Encode wraps a serialized model and its scaler into one blob, the form
// stored in the registry and in model files.
func Encode(format string, model []byte, sc *scaler.MinMax, featureNames []string) ([]byte, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if !json.Valid(model) {
		return nil, errors.New("model payload is not JSON")
	}
	return json.Marshal(envelope{
		Format:       format,
		FeatureNames: featureNames,
		Scaler:       sc,
		Model:        model,
	})
}

func Decode(key string, version int, blob []byte) (*Artifact, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty artifact")
	}
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", key, err)
	}
	if err := env.Scaler.Validate(); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", key, err)
	}

	var predictor Predictor
	var err error
	switch env.Format {
	case FormatLinReg:
		predictor, err = linreg.UnmarshalBinary(env.Model)
	case FormatLogReg:
		predictor, err = logreg.UnmarshalBinary(env.Model)
	case FormatXGBoost:
		predictor, err = xgboost.UnmarshalBinary(env.Model)
	default:
		return nil, fmt.Errorf("artifact %s: unsupported format %q", key, env.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s model for %s: %w", env.Format, key, err)
	}
	return &Artifact{
		Key:          key,
		Version:      version,
		Format:       env.Format,
		FeatureNames: env.FeatureNames,
		Predictor:    predictor,
		Scaler:       env.Scaler,
	}, nil
}
