package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	SheetFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	// Storage backend: "http" or "azure".
	StorageBackend   string
	AzureAccountName string
	AzureAccountKey  string

	// Path to a reference layout JSON file. Empty disables reference mode.
	ReferenceLayoutPath string

	// Engine tuning.
	MaxWorkers         int
	DetectionThreshold float64
	QuestionsPerColumn []int
	MinBubbleArea      int
	MaxBubbleArea      int
	AspectTolerance    float64
	MinCircularity     float64
	RowTolerance       float64

	// Scans larger than this edge length are downscaled before analysis.
	MaxImageDimension int
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		SheetFetchTimeout:  parseDurationOrDefault("SHEET_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB

		StorageBackend:   getEnvOrDefault("STORAGE_BACKEND", "http"),
		AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),

		ReferenceLayoutPath: os.Getenv("REFERENCE_LAYOUT_PATH"),

		MaxWorkers:         int(parseIntOrDefault("MAX_WORKERS", 0)),
		DetectionThreshold: parseFloatOrDefault("DETECTION_THRESHOLD", 0.30),
		QuestionsPerColumn: parseIntListOrDefault("QUESTIONS_PER_COLUMN", nil),
		MinBubbleArea:      int(parseIntOrDefault("MIN_BUBBLE_AREA", 60)),
		MaxBubbleArea:      int(parseIntOrDefault("MAX_BUBBLE_AREA", 4000)),
		AspectTolerance:    parseFloatOrDefault("ASPECT_TOLERANCE", 0.4),
		MinCircularity:     parseFloatOrDefault("MIN_CIRCULARITY", 0.3),
		RowTolerance:       parseFloatOrDefault("ROW_TOLERANCE", 12),

		MaxImageDimension: int(parseIntOrDefault("MAX_IMAGE_DIMENSION", 2400)),
	}

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.RequestTimeout <= 0 || cfg.SheetFetchTimeout <= 0 || cfg.AnalysisTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			cfg.RequestTimeout, cfg.SheetFetchTimeout, cfg.AnalysisTimeout)
	}
	if cfg.StorageBackend != "http" && cfg.StorageBackend != "azure" {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND: %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == "azure" && (cfg.AzureAccountName == "" || cfg.AzureAccountKey == "") {
		return nil, fmt.Errorf("azure storage requires AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY")
	}
	if cfg.DetectionThreshold <= 0 || cfg.DetectionThreshold >= 1 {
		return nil, fmt.Errorf("DETECTION_THRESHOLD must be in (0, 1) (got %g)", cfg.DetectionThreshold)
	}
	if cfg.MinBubbleArea <= 0 || cfg.MaxBubbleArea <= cfg.MinBubbleArea {
		return nil, fmt.Errorf("bubble area bounds invalid (min=%d, max=%d)", cfg.MinBubbleArea, cfg.MaxBubbleArea)
	}
	if cfg.AspectTolerance <= 0 || cfg.MinCircularity <= 0 || cfg.RowTolerance <= 0 {
		return nil, fmt.Errorf("ASPECT_TOLERANCE, MIN_CIRCULARITY and ROW_TOLERANCE must be > 0")
	}
	if cfg.MaxImageDimension <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_DIMENSION must be > 0 (got %d)", cfg.MaxImageDimension)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// parseIntListOrDefault parses a comma-separated list such as "14,13,13".
// Any malformed element falls back to the default.
func parseIntListOrDefault(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	list := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return defaultValue
		}
		list = append(list, n)
	}
	return list
}
