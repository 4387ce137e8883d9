package repository

import (
	"context"
	"image"

	"go-omr-scanner/internal/storage"
	"go-omr-scanner/pkg/validation"
)

// FetcherSheetRepository implements SheetRepository on top of a storage
// fetcher (HTTP or blob backed).
type FetcherSheetRepository struct {
	fetcher   storage.SheetFetcher
	validator *validation.URLValidator
}

// NewFetcherSheetRepository creates a sheet repository backed by a fetcher
func NewFetcherSheetRepository(fetcher storage.SheetFetcher) SheetRepository {
	return &FetcherSheetRepository{
		fetcher:   fetcher,
		validator: validation.NewURLValidator(),
	}
}

// FetchSheet retrieves a sheet scan from a URL
func (r *FetcherSheetRepository) FetchSheet(ctx context.Context, sheetURL string) (image.Image, error) {
	return r.fetcher.FetchSheet(ctx, sheetURL)
}

// ValidateSheetURL validates if the provided URL is acceptable
func (r *FetcherSheetRepository) ValidateSheetURL(sheetURL string) error {
	return r.validator.ValidateSheetURL(sheetURL)
}
