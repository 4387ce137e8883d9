package storage

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobStorage retrieves sheet scans stored as Azure blobs. Blob URLs carry
// the container in the path and the blob name in the "blob" query param.
type BlobStorage interface {
	GetSheet(ctx context.Context, blobURL string) (image.Image, error)
}

type azureStorage struct {
	client *azblob.Client
}

func NewAzureStorage(accountName string, accountKey string) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &azureStorage{client: client}, nil
}

func (s *azureStorage) GetSheet(ctx context.Context, blobURL string) (image.Image, error) {
	parsedURL, err := url.Parse(blobURL)
	if err != nil {
		return nil, fmt.Errorf("invalid blob URL: %w", err)
	}

	containerName := parsedURL.Path[1:]
	blobName := parsedURL.Query().Get("blob")

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	img, _, err := image.Decode(retryReader)
	return img, err
}
