package container

import (
	"fmt"
	"net/http"

	"go-omr-scanner/internal/config"
	"go-omr-scanner/internal/factory"
	"go-omr-scanner/internal/logger"
	"go-omr-scanner/internal/observer"
	"go-omr-scanner/internal/omr"
	"go-omr-scanner/internal/repository"
	"go-omr-scanner/internal/service"
	"go-omr-scanner/internal/storage"
	"go-omr-scanner/internal/transport"
	"go-omr-scanner/pkg/models"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	sheetFetcher storage.SheetFetcher
	analyzer     omr.SheetAnalyzer
	sheetRepo    repository.SheetRepository
	scanService  service.ScanService
	handler      http.Handler
}

// NewContainer builds the dependency graph from configuration
func NewContainer(cfg *config.Config) (*Container, error) {
	factories := factory.NewComponentFactory()

	sheetFetcher, err := factories.StorageFactory.CreateStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	options := omr.DefaultOptions()
	options.DetectionThreshold = cfg.DetectionThreshold
	options.MaxWorkers = cfg.MaxWorkers
	options.QuestionsPerColumnBlock = cfg.QuestionsPerColumn
	options.MinBubbleArea = cfg.MinBubbleArea
	options.MaxBubbleArea = cfg.MaxBubbleArea
	options.AspectTolerance = cfg.AspectTolerance
	options.MinCircularity = cfg.MinCircularity
	options.RowTolerance = cfg.RowTolerance

	scorer, err := factories.ScorerFactory.CreateScorer(factory.MultiRadiusScorer, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create scorer: %w", err)
	}
	options.Scorer = scorer

	analyzer, err := omr.NewSheetAnalyzer(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	var referenceLayout *models.ReferenceLayout
	if cfg.ReferenceLayoutPath != "" {
		referenceLayout, err = repository.NewFileLayoutRepository().LoadLayout(cfg.ReferenceLayoutPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load reference layout: %w", err)
		}
	}

	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	sheetRepo := repository.NewFetcherSheetRepository(sheetFetcher)
	resultRepo := repository.NewMemoryResultRepository()
	scanService := service.NewScanService(
		sheetRepo,
		resultRepo,
		analyzer,
		options,
		referenceLayout,
		publisher,
		metrics,
		cfg.MaxImageDimension,
	)
	handler := transport.NewHandler(scanService, cfg)

	return &Container{
		config:       cfg,
		sheetFetcher: sheetFetcher,
		analyzer:     analyzer,
		sheetRepo:    sheetRepo,
		scanService:  scanService,
		handler:      handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close releases analyzer resources
func (c *Container) Close() error {
	return c.analyzer.Close()
}
