package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"
)

// SheetFetcher retrieves a scanned answer sheet image from a URL.
type SheetFetcher interface {
	FetchSheet(ctx context.Context, sheetURL string) (image.Image, error)
}

// HTTPSheetFetcher fetches scanned sheets over HTTP(S).
type HTTPSheetFetcher struct {
	client *http.Client
}

// NewHTTPSheetFetcher creates an HTTP sheet fetcher tuned for one-shot
// image downloads: small connection pool, tight header timeouts, at most
// three redirects.
func NewHTTPSheetFetcher() SheetFetcher {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
	}

	return &HTTPSheetFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

// FetchSheet downloads and decodes a sheet scan. Transient failures and 5xx
// responses are retried up to three times; 4xx responses fail immediately.
func (h *HTTPSheetFetcher) FetchSheet(ctx context.Context, sheetURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", sheetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req.Header.Set("Accept", "image/jpeg, image/png, */*")
	req.Header.Set("User-Agent", "Go-OMR-Scanner/1.0")

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		resp, err = h.client.Do(req)
		if err != nil {
			lastErr = err
		}

		if err == nil && resp != nil && resp.StatusCode == http.StatusOK {
			break
		}

		if err == nil && resp != nil {
			resp.Body.Close()
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				lastErr = fmt.Errorf("client error: status code %d", resp.StatusCode)
				resp = nil
				break
			}
			if resp.StatusCode >= 500 {
				lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
			}
			resp = nil
		}

		if attempt < 2 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}

	if resp == nil {
		if lastErr != nil {
			return nil, fmt.Errorf("failed to fetch sheet after 3 attempts: %w", lastErr)
		}
		return nil, fmt.Errorf("failed to fetch sheet after 3 attempts: unknown error")
	}
	defer resp.Body.Close()

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sheet image: %w", err)
	}
	return img, nil
}
