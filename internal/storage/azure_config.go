package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// GuidelineSource fetches the staging-guideline YAML from a managed location,
// so hospital deployments can roll prompt updates without rebuilding the
// service.
type GuidelineSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type azureGuidelineSource struct {
	client  *azblob.Client
	blobURL string
}

// NewAzureGuidelineSource reads the guideline config from Azure blob storage
// using shared-key credentials.
func NewAzureGuidelineSource(accountName, accountKey, blobURL string) (GuidelineSource, error) {
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

	return &azureGuidelineSource{client: client, blobURL: blobURL}, nil
}

func (s *azureGuidelineSource) Fetch(ctx context.Context) ([]byte, error) {
	parsedURL, err := url.Parse(s.blobURL)
	if err != nil {
		return nil, fmt.Errorf("invalid blob URL: %w", err)
	}

	containerName := parsedURL.Path[1:] // Remove leading slash
	blobName := parsedURL.Query().Get("blob")

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	return io.ReadAll(retryReader)
}
