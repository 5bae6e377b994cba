// Package publish uploads repackaged assets to the bucket their catalog
// URLs resolve to.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader pushes local files to S3. A nil *Uploader is valid and uploads
// nothing, so callers don't branch on configuration.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	log    *slog.Logger
}

func New(ctx context.Context, bucket, region, prefix string, log *slog.Logger) (*Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return &Uploader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		log:    log,
	}, nil
}

// Upload puts one local file under the uploader's prefix, keyed by its base
// name.
func (u *Uploader) Upload(ctx context.Context, localPath, contentType string) error {
	if u == nil {
		return nil
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := path.Join(u.prefix, path.Base(localPath))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}
	if u.log != nil {
		u.log.Debug("asset uploaded", "bucket", u.bucket, "key", key)
	}
	return nil
}
