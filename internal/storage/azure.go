package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// AzureStorage implements Storage on an Azure Blob Storage container.
type AzureStorage struct {
	container  *container.Client
	publicBase string
}

// NewAzureStorage builds a container client from an account connection
// string. publicBase overrides the container URL used for public links
// (useful behind a CDN); leave it empty to use the container URL.
func NewAzureStorage(connectionString, containerName, publicBase string) (*AzureStorage, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}
	cc := client.ServiceClient().NewContainerClient(containerName)

	if publicBase == "" {
		publicBase = cc.URL()
	} else {
		publicBase = joinURL(publicBase, containerName)
	}

	return &AzureStorage{container: cc, publicBase: publicBase}, nil
}

// CreateContainer creates the container with container-level public access,
// which makes both blobs and the blob listing anonymously readable.
func (s *AzureStorage) CreateContainer(ctx context.Context) error {
	_, err := s.container.Create(ctx, &container.CreateOptions{
		Access: to.Ptr(container.PublicAccessTypeContainer),
	})
	if isContainerExists(err) {
		return fmt.Errorf("azure container: %w", ErrContainerExists)
	}
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	return nil
}

// Put uploads reader as a block blob. Block blobs are committed in one step,
// so a failed upload never leaves a partial blob behind.
func (s *AzureStorage) Put(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := s.container.NewBlockBlobClient(name).UploadStream(ctx, reader, &blockblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
	})
	if err != nil {
		return "", fmt.Errorf("upload blob %q: %w", name, err)
	}
	return s.PublicURL(name), nil
}

// List pages through the flat blob listing.
func (s *AzureStorage) List(ctx context.Context) ([]Object, error) {
	objects := []Object{}
	pager := s.container.NewListBlobsFlatPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			obj := Object{Name: *item.Name}
			if item.Properties != nil && item.Properties.ContentLength != nil {
				obj.Size = *item.Properties.ContentLength
			}
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

// PublicURL returns "<container url>/<name>".
func (s *AzureStorage) PublicURL(name string) string {
	return joinURL(s.publicBase, name)
}

func isContainerExists(err error) bool {
	return bloberror.HasCode(err, bloberror.ContainerAlreadyExists)
}

var _ Storage = (*AzureStorage)(nil)
