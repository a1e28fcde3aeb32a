package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"trendcast/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Provider resolves a model bundle by key. A key with no bundle is reported
// as found=false with a nil error; errors are reserved for real failures.
type Provider interface {
	Lookup(ctx context.Context, key string) (*Artifact, bool, error)
}

type ActiveModelReader interface {
	GetActiveModel(ctx context.Context, modelKey string) (*domain.MLModelVersion, error)
}

// RegistryProvider serves the active registry version for a key.
type RegistryProvider struct {
	registry ActiveModelReader
	tracer   trace.Tracer
}

func NewRegistryProvider(registry ActiveModelReader, tracer trace.Tracer) *RegistryProvider {
	return &RegistryProvider{registry: registry, tracer: tracer}
}

func (p *RegistryProvider) Lookup(ctx context.Context, key string) (*Artifact, bool, error) {
	ctx, span := p.tracer.Start(ctx, "model-provider.registry-lookup")
	defer span.End()
	span.SetAttributes(attribute.String("model_key", key))

	version, err := p.registry.GetActiveModel(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if version == nil {
		return nil, false, nil
	}
	a, err := Decode(key, version.Version, version.ArtifactBlob)
	if err != nil {
		return nil, false, err
	}
	if version.ArtifactFormat != "" && version.ArtifactFormat != a.Format {
		return nil, false, fmt.Errorf("artifact %s v%d: registry format %q does not match payload %q",
			key, version.Version, version.ArtifactFormat, a.Format)
	}
	return a, true, nil
}

// FileProvider reads {dir}/{KEY}.json bundles written by the trainer.
type FileProvider struct {
	dir string
}

func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

func (p *FileProvider) Path(key string) string {
	return filepath.Join(p.dir, strings.ToUpper(key)+".json")
}

func (p *FileProvider) Lookup(_ context.Context, key string) (*Artifact, bool, error) {
	if p.dir == "" || key == "" || strings.ContainsAny(key, `/\.`) {
		return nil, false, nil
	}
	blob, err := os.ReadFile(p.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	a, err := Decode(strings.ToUpper(key), 0, blob)
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// Write stores blob as the file bundle for key.
func (p *FileProvider) Write(key string, blob []byte) error {
	if p.dir == "" {
		return errors.New("model directory not configured")
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.Path(key), blob, 0o644)
}

// Providers tries each provider in order and returns the first bundle
// found. Errors are collected; a later hit still wins over an earlier error.
type Providers []Provider

func (ps Providers) Lookup(ctx context.Context, key string) (*Artifact, bool, error) {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		a, ok, err := p.Lookup(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return a, true, nil
		}
	}
	return nil, false, errors.Join(errs...)
}
