package repository

import (
	"context"
	"image"

	"go-omr-scanner/pkg/models"
)

// SheetRepository defines data access for scanned answer sheets
type SheetRepository interface {
	// FetchSheet retrieves a sheet scan from a URL
	FetchSheet(ctx context.Context, sheetURL string) (image.Image, error)

	// ValidateSheetURL validates if the provided URL is acceptable
	ValidateSheetURL(sheetURL string) error
}

// LayoutRepository loads reference bubble layouts
type LayoutRepository interface {
	// LoadLayout reads and validates a reference layout from a JSON file
	LoadLayout(path string) (*models.ReferenceLayout, error)
}

// ResultRepository stores and retrieves scan results
type ResultRepository interface {
	// SaveResult stores a scan result under the given id
	SaveResult(ctx context.Context, id string, result *models.SheetResult) error

	// GetResult retrieves a stored scan result
	GetResult(ctx context.Context, id string) (*models.SheetResult, error)
}
