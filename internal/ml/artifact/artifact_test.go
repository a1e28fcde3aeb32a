package artifact

import (
	"context"
	"errors"
	"testing"

	"trendcast/internal/domain"
	"trendcast/internal/ml/models/linreg"
	"trendcast/internal/ml/models/logreg"
	"trendcast/internal/ml/scaler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func linregBlob(t *testing.T) []byte {
	t.Helper()
	samples := [][]float64{{0}, {5}, {10}}
	targets := []float64{-2, 0, 2}
	sc, err := scaler.Fit(samples, targets)
	require.NoError(t, err)

	scaledX := make([][]float64, len(samples))
	scaledY := make([]float64, len(samples))
	for i := range samples {
		scaledX[i], err = sc.Transform(samples[i])
		require.NoError(t, err)
		scaledY[i] = sc.TransformTarget(targets[i])
	}
	model, err := linreg.Train(scaledX, scaledY, []string{"x"}, linreg.TrainOptions{Epochs: 3000, LearningRate: 0.5})
	require.NoError(t, err)
	raw, err := model.MarshalBinary()
	require.NoError(t, err)

	blob, err := Encode(FormatLinReg, raw, sc, []string{"x"})
	require.NoError(t, err)
	return blob
}

func TestEncodeDecodePredict(t *testing.T) {
	a, err := Decode("AAPL", 3, linregBlob(t))
	require.NoError(t, err)
	assert.Equal(t, FormatLinReg, a.Format)
	assert.Equal(t, 3, a.Version)

	pct, err := a.PredictChangePct([]float64{10})
	require.NoError(t, err)
	assert.InDelta(t, 2, pct, 0.05)

	_, err = a.PredictChangePct([]float64{1, 2})
	assert.Error(t, err)
}

func TestDecodeClassifierUsesSymmetricRange(t *testing.T) {
	samples := [][]float64{{-2}, {-1}, {1}, {2}}
	targets := []float64{-3, -1, 1, 3}
	sc, err := scaler.Fit(samples, targets)
	require.NoError(t, err)
	sc.Symmetrize()

	model, err := logreg.Train(samples, logreg.Labels(targets, 0), []string{"x"}, logreg.DefaultTrainOptions())
	require.NoError(t, err)
	raw, err := model.MarshalBinary()
	require.NoError(t, err)
	blob, err := Encode(FormatLogReg, raw, sc, []string{"x"})
	require.NoError(t, err)

	a, err := Decode(domain.DefaultModelKey, 1, blob)
	require.NoError(t, err)
	pct, err := a.PredictChangePct([]float64{2})
	require.NoError(t, err)
	assert.Greater(t, pct, 0.0)
	assert.LessOrEqual(t, pct, 3.0)
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	sc := &scaler.MinMax{FeatureMin: []float64{0}, FeatureMax: []float64{1}, TargetMin: -1, TargetMax: 1}
	blob, err := Encode("onnx", []byte(`{}`), sc, nil)
	require.NoError(t, err)
	_, err = Decode("AAPL", 1, blob)
	assert.ErrorContains(t, err, "unsupported format")

	_, err = Decode("AAPL", 1, nil)
	assert.Error(t, err)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	p := NewFileProvider(dir)

	_, ok, err := p.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Write("aapl", linregBlob(t)))
	a, ok, err := p.Lookup(context.Background(), "aapl")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "AAPL", a.Key)

	_, ok, err = p.Lookup(context.Background(), "../etc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistryProvider(t *testing.T) {
	reg := &stubRegistry{models: map[string]*domain.MLModelVersion{
		"AAPL": {ModelKey: "AAPL", Version: 2, ArtifactFormat: FormatLinReg, ArtifactBlob: linregBlob(t)},
	}}
	p := NewRegistryProvider(reg, testTracer)

	a, ok, err := p.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, a.Version)

	_, ok, err = p.Lookup(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.False(t, ok)

	reg.models["BAD"] = &domain.MLModelVersion{ModelKey: "BAD", Version: 1, ArtifactFormat: FormatXGBoost, ArtifactBlob: linregBlob(t)}
	_, _, err = p.Lookup(context.Background(), "BAD")
	assert.ErrorContains(t, err, "does not match")
}

func TestProvidersFirstHitWins(t *testing.T) {
	failing := &stubRegistry{err: errors.New("db down")}
	dir := t.TempDir()
	files := NewFileProvider(dir)
	require.NoError(t, files.Write("AAPL", linregBlob(t)))

	ps := Providers{NewRegistryProvider(failing, testTracer), files}
	a, ok, err := ps.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "AAPL", a.Key)

	_, ok, err = ps.Lookup(context.Background(), "MSFT")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "db down")
}

type stubRegistry struct {
	models map[string]*domain.MLModelVersion
	err    error
}

func (s *stubRegistry) GetActiveModel(ctx context.Context, key string) (*domain.MLModelVersion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.models[key], nil
}
