package repository

import "errors"

var (
	// ErrInvalidSheetURL indicates an invalid sheet URL
	ErrInvalidSheetURL = errors.New("invalid sheet URL")

	// ErrSheetNotFound indicates the sheet scan was not found
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrResultNotFound indicates the scan result was not found
	ErrResultNotFound = errors.New("scan result not found")

	// ErrInvalidLayout indicates the reference layout failed validation
	ErrInvalidLayout = errors.New("invalid reference layout")
)
