// Package archive removes archived copies of deleted media from an
// S3-compatible bucket. Callers treat it as best-effort: a failure here
// is logged and never changes the outcome of a delete job.
package archive

import (
	"context"
	"fmt"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// Client handles archive bucket operations
type Client struct {
	minioClient *minio.Client
	bucket      string
}

// NewClient creates a client for the archive bucket
func NewClient(endpoint, accessKey, secretKey, bucket string) (*Client, error) {
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("ARCHIVE_ACCESS_KEY and ARCHIVE_SECRET_KEY environment variables are required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("ARCHIVE_BUCKET environment variable is required")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid ARCHIVE_ENDPOINT '%s': %w (expected format: https://hostname:port)", endpoint, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid ARCHIVE_ENDPOINT scheme '%s': must be http or https", u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("invalid ARCHIVE_ENDPOINT '%s': missing hostname", endpoint)
	}

	minioClient, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client for %s: %w", u.Host, err)
	}

	logrus.WithFields(logrus.Fields{
		"endpoint": u.Host,
		"bucket":   bucket,
	}).Info("Initialized media archive client")

	return &Client{
		minioClient: minioClient,
		bucket:      bucket,
	}, nil
}

// RemoveArchived deletes every archived object stored under the public-id
// prefix. Archive keys mirror Cloudinary public ids, so one asset may have
// several archived renditions (original, resized) under the same prefix.
func (c *Client) RemoveArchived(ctx context.Context, publicID string) error {
	if publicID == "" {
		return fmt.Errorf("public id is required")
	}

	objects := c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    publicID,
		Recursive: true,
	})

	removed := 0
	for object := range objects {
		if object.Err != nil {
			return fmt.Errorf("failed to list archived objects for %s: %w", publicID, object.Err)
		}
		if err := c.minioClient.RemoveObject(ctx, c.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove archived object %s: %w", object.Key, err)
		}
		removed++
	}

	if removed > 0 {
		logrus.WithFields(logrus.Fields{
			"public_id": publicID,
			"removed":   removed,
		}).Debug("Removed archived media copies")
	}

	return nil
}
