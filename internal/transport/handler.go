package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-omr-scanner/internal/config"
	apperrors "go-omr-scanner/internal/errors"
	"go-omr-scanner/internal/logger"
	"go-omr-scanner/internal/service"
	"go-omr-scanner/pkg/models"
)

// NewHandler wires the HTTP API: sheet scanning, health and scan counters.
func NewHandler(scans service.ScanService, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck)
	r.GET("/stats", scanStats(scans))
	r.GET("/result", scanResult(scans))
	r.POST("/scan", scanSheet(scans, cfg))

	return r
}

func scanSheet(scans service.ScanService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing sheet scan request")

		var req models.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"ip": c.ClientIP(),
			}).Error("Invalid request format")
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		if err := scans.ValidateSheetURL(req.URL); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"url": req.URL,
				"ip":  c.ClientIP(),
			}).Error("Invalid sheet URL")

			statusCode := apperrors.GetStatusCode(err)
			respondError(c, statusCode, "invalid sheet URL", err)
			return
		}

		response, err := scans.AnalyzeSheet(ctx, req)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"url": req.URL,
				"ip":  c.ClientIP(),
			}).Error("Sheet scan failed")

			respondError(c, determineStatusCode(err), "sheet scan failed", err)
			return
		}

		duration := time.Since(startTime)
		logger.WithFields(logrus.Fields{
			"url":                req.URL,
			"questions":          len(response.Questions),
			"overall_confidence": response.OverallConfidence,
			"quality":            response.Quality.Category,
			"processing_time_ms": duration.Milliseconds(),
		}).Info("Sheet scan completed successfully")

		c.JSON(http.StatusOK, response)
	}
}

func scanStats(scans service.ScanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, scans.Stats())
	}
}

// scanResult returns the retained result of a previous scan, looked up by
// the sheet URL it was scanned from.
func scanResult(scans service.ScanService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sheetURL := c.Query("url")
		if sheetURL == "" {
			respondError(c, http.StatusBadRequest, "missing url query parameter", nil)
			return
		}

		result, err := scans.GetResult(c.Request.Context(), sheetURL)
		if err != nil {
			respondError(c, http.StatusNotFound, "no stored result for sheet", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
