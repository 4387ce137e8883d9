package factory

import (
	"context"
	"fmt"
	"image"

	"go-omr-scanner/internal/config"
	"go-omr-scanner/internal/omr"
	"go-omr-scanner/internal/storage"
)

// ScorerType represents different bubble scoring backends
type ScorerType string

const (
	// MultiRadiusScorer is the rule-based concentric sampling scorer
	MultiRadiusScorer ScorerType = "multi_radius"
	// ClassifierScorer wraps a trained fill classifier
	ClassifierScorer ScorerType = "classifier"
)

// StorageType represents different sheet storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based sheet fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
)

// ScorerFactory creates bubble scorers
type ScorerFactory interface {
	CreateScorer(scorerType ScorerType, options omr.AnalysisOptions) (omr.BubbleScorer, error)
}

// StorageFactory creates sheet storage implementations
type StorageFactory interface {
	CreateStorage(cfg *config.Config) (storage.SheetFetcher, error)
}

// scorerFactory implements ScorerFactory
type scorerFactory struct {
	classifier omr.FillClassifier
}

// NewScorerFactory creates a scorer factory with no trained classifier
func NewScorerFactory() ScorerFactory {
	return &scorerFactory{}
}

// NewScorerFactoryWithClassifier creates a scorer factory that can serve
// classifier-backed scorers
func NewScorerFactoryWithClassifier(classifier omr.FillClassifier) ScorerFactory {
	return &scorerFactory{classifier: classifier}
}

// CreateScorer creates a scorer based on the specified type
func (f *scorerFactory) CreateScorer(scorerType ScorerType, options omr.AnalysisOptions) (omr.BubbleScorer, error) {
	switch scorerType {
	case MultiRadiusScorer:
		return omr.NewMultiRadiusScorer(options.AnalysisRadii, options.RadiusWeights), nil
	case ClassifierScorer:
		if f.classifier == nil {
			return nil, fmt.Errorf("no trained fill classifier registered")
		}
		return omr.ScorerFromClassifier(f.classifier), nil
	default:
		return nil, fmt.Errorf("unsupported scorer type: %s", scorerType)
	}
}

// storageFactory implements StorageFactory
type storageFactory struct{}

// NewStorageFactory creates a new storage factory
func NewStorageFactory() StorageFactory {
	return &storageFactory{}
}

// CreateStorage creates a sheet fetcher based on the configured backend
func (f *storageFactory) CreateStorage(cfg *config.Config) (storage.SheetFetcher, error) {
	switch StorageType(cfg.StorageBackend) {
	case HTTPStorage:
		return storage.NewHTTPSheetFetcher(), nil
	case AzureStorage:
		blob, err := storage.NewAzureStorage(cfg.AzureAccountName, cfg.AzureAccountKey)
		if err != nil {
			return nil, err
		}
		return &blobSheetFetcher{blob: blob}, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}

// blobSheetFetcher adapts BlobStorage to the SheetFetcher capability
type blobSheetFetcher struct {
	blob storage.BlobStorage
}

func (b *blobSheetFetcher) FetchSheet(ctx context.Context, sheetURL string) (image.Image, error) {
	return b.blob.GetSheet(ctx, sheetURL)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	ScorerFactory  ScorerFactory
	StorageFactory StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory() *ComponentFactory {
	return &ComponentFactory{
		ScorerFactory:  NewScorerFactory(),
		StorageFactory: NewStorageFactory(),
	}
}
