package validation

import (
	"testing"
)

func TestURLValidator_ValidateSheetURL(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		name        string
		url         string
		expectError bool
	}{
		{
			name:        "Valid HTTP URL",
			url:         "http://example.com/sheet.png",
			expectError: false,
		},
		{
			name:        "Valid HTTPS URL",
			url:         "https://example.com/scans/sheet.jpg",
			expectError: false,
		},
		{
			name:        "Empty URL",
			url:         "",
			expectError: true,
		},
		{
			name:        "Whitespace only URL",
			url:         "   ",
			expectError: true,
		},
		{
			name:        "Disallowed scheme",
			url:         "ftp://example.com/sheet.png",
			expectError: true,
		},
		{
			name:        "Missing host",
			url:         "https:///sheet.png",
			expectError: true,
		},
		{
			name:        "Relative path",
			url:         "/local/sheet.png",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateSheetURL(tt.url)
			if tt.expectError && err == nil {
				t.Errorf("Expected error for URL %q, got nil", tt.url)
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error for URL %q, got: %v", tt.url, err)
			}
		})
	}
}

func TestURLValidator_HostAllowlist(t *testing.T) {
	validator := NewURLValidatorWithOptions(
		[]string{"https"},
		[]string{"scans.example.com"},
	)

	if err := validator.ValidateSheetURL("https://scans.example.com/sheet.png"); err != nil {
		t.Errorf("Allowed host should validate, got: %v", err)
	}
	if err := validator.ValidateSheetURL("https://other.example.com/sheet.png"); err == nil {
		t.Error("Expected error for host outside the allowlist")
	}
	if err := validator.ValidateSheetURL("http://scans.example.com/sheet.png"); err == nil {
		t.Error("Expected error for scheme outside the allowlist")
	}
}
