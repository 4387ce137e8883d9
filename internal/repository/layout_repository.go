package repository

import (
	"encoding/json"
	"fmt"
	"os"

	"go-omr-scanner/pkg/models"
)

// FileLayoutRepository loads reference layouts from JSON files on disk.
type FileLayoutRepository struct{}

// NewFileLayoutRepository creates a file-based layout repository
func NewFileLayoutRepository() LayoutRepository {
	return &FileLayoutRepository{}
}

// LoadLayout reads and validates a reference layout from a JSON file
func (r *FileLayoutRepository) LoadLayout(path string) (*models.ReferenceLayout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout file: %w", err)
	}

	var layout models.ReferenceLayout
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("parse layout file: %w", err)
	}

	if err := validateLayout(&layout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	return &layout, nil
}

// validateLayout checks the loaded layout is usable: positive reference
// dimensions, at least one question, and every sample point inside the
// reference frame.
func validateLayout(layout *models.ReferenceLayout) error {
	if layout.ReferenceWidth <= 0 || layout.ReferenceHeight <= 0 {
		return fmt.Errorf("reference dimensions must be positive (got %dx%d)",
			layout.ReferenceWidth, layout.ReferenceHeight)
	}
	if len(layout.Questions) == 0 {
		return fmt.Errorf("layout has no questions")
	}
	for q, options := range layout.Questions {
		if q <= 0 {
			return fmt.Errorf("question numbers must be positive (got %d)", q)
		}
		if len(options) == 0 {
			return fmt.Errorf("question %d has no options", q)
		}
		for label, pt := range options {
			if pt.X < 0 || pt.Y < 0 ||
				pt.X >= float64(layout.ReferenceWidth) || pt.Y >= float64(layout.ReferenceHeight) {
				return fmt.Errorf("question %d option %s is outside the reference frame", q, label)
			}
		}
	}
	return nil
}
