package domain

import "time"

// DefaultModelKey names the artifact used for any ticker without its own.
const DefaultModelKey = "DEFAULT"

// MLModelVersion is a registry row holding a serialized model artifact.
type MLModelVersion struct {
	ID                 int64
	ModelKey           string
	Version            int
	FeatureSpecVersion string
	TrainedFrom        time.Time
	TrainedTo          time.Time
	TrainedAt          time.Time
	HyperparamsJSON    string
	MetricsJSON        string
	ArtifactFormat     string
	ArtifactBlob       []byte
	IsActive           bool
	ActivatedAt        *time.Time
	CreatedAt          time.Time
}

// FeatureRow is one model input vector derived from a price series, with
// the realized forward return when it is known.
type FeatureRow struct {
	Symbol    string
	OpenTime  time.Time
	Values    []float64
	TargetPct *float64
}
