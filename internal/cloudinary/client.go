// Package cloudinary wraps the Cloudinary media API for the mediasweep
// service: public-id derivation from delivery URLs and asset destruction.
package cloudinary

import (
	"context"
	"fmt"

	cld "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/sirupsen/logrus"
)

// Client issues destroy calls against Cloudinary. It performs no retries;
// retry policy belongs to the batch processor.
type Client struct {
	sdk *cld.Cloudinary
}

// NewClient creates a Cloudinary client from account credentials
func NewClient(cloudName, apiKey, apiSecret string) (*Client, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf(
			"CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required")
	}

	sdk, err := cld.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudinary client: %w", err)
	}

	logrus.WithField("cloud_name", cloudName).Info("Initialized Cloudinary client")
	return &Client{sdk: sdk}, nil
}

// Destroy deletes one image asset by public id and returns the
// provider-reported outcome string. Any transport or provider error
// propagates to the caller untouched.
func (c *Client) Destroy(ctx context.Context, publicID string) (string, error) {
	resp, err := c.sdk.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "image",
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary destroy failed for %s: %w", publicID, err)
	}

	result := resp.Result
	if result == "" {
		result = "ok"
	}
	return result, nil
}
