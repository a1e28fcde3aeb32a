package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"trendcast/internal/domain"
	"trendcast/internal/ml/artifact"
	"trendcast/internal/ml/features"
	"trendcast/internal/ml/models/linreg"
	"trendcast/internal/ml/models/logreg"
	"trendcast/internal/ml/models/xgboost"
	"trendcast/internal/ml/scaler"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type CandleReader interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
}

type ModelRegistry interface {
	NextVersion(ctx context.Context, modelKey string) (int, error)
	InsertModelVersion(ctx context.Context, model domain.MLModelVersion) (*domain.MLModelVersion, error)
	GetActiveModel(ctx context.Context, modelKey string) (*domain.MLModelVersion, error)
	ActivateModel(ctx context.Context, modelKey string, version int) error
}

// ArtifactWriter receives promoted bundles, e.g. the file-backed provider.
type ArtifactWriter interface {
	Write(key string, blob []byte) error
}

type Config struct {
	Interval        string
	HistoryLimit    int
	Horizon         int
	MinTrainSamples int
	TestFraction    float64
	Format          string
}

type Service struct {
	tracer   trace.Tracer
	log      zerolog.Logger
	candles  CandleReader
	registry ModelRegistry
	files    ArtifactWriter
	features *features.Engine
	cfg      Config
}

type ModelTrainResult struct {
	ModelKey          string
	Version           int
	Format            string
	SampleCount       int
	TestCount         int
	MAE               float64
	DirectionAccuracy float64
	Promoted          bool
	PromoteError      error
}

func NewService(tracer trace.Tracer, log zerolog.Logger, candles CandleReader, registry ModelRegistry, files ArtifactWriter, cfg Config) *Service {
	if cfg.Interval == "" {
		cfg.Interval = domain.DefaultInterval
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 730
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 1
	}
	if cfg.MinTrainSamples <= 0 {
		cfg.MinTrainSamples = 200
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.2
	}
	if cfg.Format == "" {
		cfg.Format = artifact.FormatLinReg
	}
	return &Service{
		tracer:   tracer,
		log:      log,
		candles:  candles,
		registry: registry,
		files:    files,
		features: features.NewEngine(),
		cfg:      cfg,
	}
}

// Train fits one model under modelKey from the stored history of symbols.
// A ticker key is normally trained on that ticker alone; the default key is
// trained on the whole watchlist.
func (s *Service) Train(ctx context.Context, modelKey string, symbols []string, now time.Time) (ModelTrainResult, error) {
	ctx, span := s.tracer.Start(ctx, "model-training.train")
	defer span.End()
	modelKey = strings.ToUpper(strings.TrimSpace(modelKey))
	span.SetAttributes(attribute.String("model_key", modelKey), attribute.String("artifact_format", s.cfg.Format))

	if modelKey == "" || len(symbols) == 0 {
		return ModelTrainResult{}, fmt.Errorf("model key and symbols are required: %w", domain.ErrInvalidInput)
	}

	rows, from, to, err := s.collectRows(ctx, symbols)
	if err != nil {
		return ModelTrainResult{}, err
	}
	x, y := features.Dataset(rows)
	if len(x) < s.cfg.MinTrainSamples {
		return ModelTrainResult{}, fmt.Errorf("not enough labeled samples: got %d need >= %d: %w",
			len(x), s.cfg.MinTrainSamples, domain.ErrDataInsufficient)
	}

	trainX, trainY, testX, testY := chronologicalSplit(x, y, s.cfg.TestFraction)
	if len(trainX) == 0 || len(testX) == 0 {
		return ModelTrainResult{}, errors.New("dataset split produced empty partitions")
	}

	blob, hyperparams, err := s.fit(trainX, trainY)
	if err != nil {
		return ModelTrainResult{}, err
	}
	bundle, err := artifact.Decode(modelKey, 0, blob)
	if err != nil {
		return ModelTrainResult{}, fmt.Errorf("decode trained %s artifact: %w", s.cfg.Format, err)
	}
	metrics := evaluate(bundle, testX, testY)

	result, err := s.persistAndMaybePromote(ctx, modelKey, now.UTC(), from, to, blob, hyperparams, metrics, len(x), len(testX))
	if err != nil {
		return ModelTrainResult{}, err
	}
	if result.Promoted && s.files != nil {
		if err := s.files.Write(modelKey, blob); err != nil {
			s.log.Warn().Err(err).Str("model_key", modelKey).Msg("write model file")
		}
	}
	s.log.Info().
		Str("model_key", modelKey).
		Int("version", result.Version).
		Int("samples", result.SampleCount).
		Float64("mae", result.MAE).
		Float64("direction_accuracy", result.DirectionAccuracy).
		Bool("promoted", result.Promoted).
		Msg("model trained")
	return result, nil
}

func (s *Service) collectRows(ctx context.Context, symbols []string) ([]domain.FeatureRow, time.Time, time.Time, error) {
	var rows []domain.FeatureRow
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		candles, err := s.candles.GetCandles(ctx, symbol, s.cfg.Interval, s.cfg.HistoryLimit)
		if err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("load candles for %s: %w", symbol, err)
		}
		series, err := domain.NewPriceSeries(symbol, candles)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("skip symbol with invalid history")
			continue
		}
		rows = append(rows, s.features.BuildRows(series, s.cfg.Horizon)...)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].OpenTime.Before(rows[j].OpenTime)
	})
	if len(rows) == 0 {
		return nil, time.Time{}, time.Time{}, nil
	}
	return rows, rows[0].OpenTime, rows[len(rows)-1].OpenTime, nil
}

func (s *Service) fit(trainX [][]float64, trainY []float64) ([]byte, map[string]any, error) {
	sc, err := scaler.Fit(trainX, trainY)
	if err != nil {
		return nil, nil, err
	}
	classifier := s.cfg.Format != artifact.FormatLinReg
	if classifier {
		sc.Symmetrize()
	}
	scaledX := make([][]float64, len(trainX))
	for i := range trainX {
		if scaledX[i], err = sc.Transform(trainX[i]); err != nil {
			return nil, nil, err
		}
	}

	var raw []byte
	var hyperparams map[string]any
	switch s.cfg.Format {
	case artifact.FormatLinReg:
		opts := linreg.DefaultTrainOptions()
		scaledY := make([]float64, len(trainY))
		for i := range trainY {
			scaledY[i] = sc.TransformTarget(trainY[i])
		}
		model, err := linreg.Train(scaledX, scaledY, features.FeatureNames, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("train linreg: %w", err)
		}
		raw, err = model.MarshalBinary()
		if err != nil {
			return nil, nil, fmt.Errorf("marshal linreg model: %w", err)
		}
		hyperparams = map[string]any{"learning_rate": opts.LearningRate, "epochs": opts.Epochs, "l2": opts.L2}
	case artifact.FormatLogReg:
		opts := logreg.DefaultTrainOptions()
		model, err := logreg.Train(scaledX, logreg.Labels(trainY, 0), features.FeatureNames, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("train logreg: %w", err)
		}
		raw, err = model.MarshalBinary()
		if err != nil {
			return nil, nil, fmt.Errorf("marshal logreg model: %w", err)
		}
		hyperparams = map[string]any{"learning_rate": opts.LearningRate, "epochs": opts.Epochs, "l2": opts.L2}
	case artifact.FormatXGBoost:
		opts := xgboost.DefaultTrainOptions()
		model, err := xgboost.Train(scaledX, logreg.Labels(trainY, 0), features.FeatureNames, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("train xgboost: %w", err)
		}
		raw, err = model.MarshalBinary()
		if err != nil {
			return nil, nil, fmt.Errorf("marshal xgboost model: %w", err)
		}
		hyperparams = map[string]any{"rounds": opts.Rounds, "learning_rate": opts.LearningRate, "max_depth": opts.MaxDepth}
	default:
		return nil, nil, fmt.Errorf("unsupported artifact format %q", s.cfg.Format)
	}

	blob, err := artifact.Encode(s.cfg.Format, raw, sc, features.FeatureNames)
	if err != nil {
		return nil, nil, err
	}
	return blob, hyperparams, nil
}

func (s *Service) persistAndMaybePromote(
	ctx context.Context,
	modelKey string,
	now, trainedFrom, trainedTo time.Time,
	blob []byte,
	hyperparams map[string]any,
	metrics map[string]float64,
	sampleCount int,
	testCount int,
) (ModelTrainResult, error) {
	version, err := s.registry.NextVersion(ctx, modelKey)
	if err != nil {
		return ModelTrainResult{}, err
	}
	hyperJSON, _ := json.Marshal(hyperparams)
	metricJSON, _ := json.Marshal(metrics)

	inserted, err := s.registry.InsertModelVersion(ctx, domain.MLModelVersion{
		ModelKey:           modelKey,
		Version:            version,
		FeatureSpecVersion: features.FeatureSpecVersion(),
		TrainedFrom:        trainedFrom,
		TrainedTo:          trainedTo,
		TrainedAt:          now,
		HyperparamsJSON:    string(hyperJSON),
		MetricsJSON:        string(metricJSON),
		ArtifactFormat:     s.cfg.Format,
		ArtifactBlob:       blob,
	})
	if err != nil {
		return ModelTrainResult{}, err
	}

	result := ModelTrainResult{
		ModelKey:          modelKey,
		Version:           inserted.Version,
		Format:            s.cfg.Format,
		SampleCount:       sampleCount,
		TestCount:         testCount,
		MAE:               metrics["mae"],
		DirectionAccuracy: metrics["direction_accuracy"],
	}

	promote, promoteErr := s.shouldPromote(ctx, modelKey, metrics["mae"], inserted.Version)
	if promoteErr != nil {
		result.PromoteError = promoteErr
		return result, nil
	}
	if promote {
		if err := s.registry.ActivateModel(ctx, modelKey, inserted.Version); err != nil {
			result.PromoteError = err
			return result, nil
		}
		result.Promoted = true
	}
	return result, nil
}

// shouldPromote activates the new version when nothing is active, or when
// it beats the active version's held-out error.
func (s *Service) shouldPromote(ctx context.Context, modelKey string, newMAE float64, newVersion int) (bool, error) {
	active, err := s.registry.GetActiveModel(ctx, modelKey)
	if err != nil {
		return false, err
	}
	if active == nil {
		return true, nil
	}
	if active.Version == newVersion {
		return active.IsActive, nil
	}
	activeMAE, ok := metricValue(active.MetricsJSON, "mae")
	if !ok {
		return true, nil
	}
	return newMAE < activeMAE, nil
}

func chronologicalSplit(samples [][]float64, targets []float64, testFraction float64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	n := len(samples)
	if n < 2 {
		return nil, nil, nil, nil
	}
	trainEnd := int(float64(n) * (1 - testFraction))
	if trainEnd < 1 {
		trainEnd = 1
	}
	if trainEnd >= n {
		trainEnd = n - 1
	}
	return samples[:trainEnd], targets[:trainEnd], samples[trainEnd:], targets[trainEnd:]
}

func metricValue(metricsJSON, key string) (float64, bool) {
	var m map[string]float64
	if err := json.Unmarshal([]byte(metricsJSON), &m); err != nil {
		return 0, false
	}
	v, ok := m[key]
	return v, ok
}

// evaluate scores the decoded bundle on raw held-out rows: mean absolute
// error of the predicted percent change and the share of matching signs.
func evaluate(bundle *artifact.Artifact, testX [][]float64, testY []float64) map[string]float64 {
	n := 0
	absErr := 0.0
	hits := 0.0
	for i := range testX {
		pred, err := bundle.PredictChangePct(testX[i])
		if err != nil || math.IsNaN(pred) || math.IsInf(pred, 0) {
			continue
		}
		n++
		absErr += math.Abs(pred - testY[i])
		if (pred > 0) == (testY[i] > 0) {
			hits++
		}
	}
	if n == 0 {
		return map[string]float64{"mae": math.MaxFloat64, "direction_accuracy": 0, "n_test": 0}
	}
	return map[string]float64{
		"mae":                absErr / float64(n),
		"direction_accuracy": hits / float64(n),
		"n_test":             float64(n),
	}
}
