package blob

import (
	"context"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cryptocole01/p0tion/config/params"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "blob")

// S3Store talks to the ceremony artifact buckets through the AWS S3 API.
type S3Store struct {
	client *s3.Client
}

// NewS3Store builds a store from the ambient AWS configuration chain
// (environment, shared config files, instance role).
func NewS3Store(ctx context.Context) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not load AWS configuration")
	}
	return &S3Store{client: s3.NewFromConfig(cfg)}, nil
}

// Download copies the object at bucket/key into localPath, creating or
// truncating the local file.
func (s *S3Store) Download(ctx context.Context, bucket, key, localPath string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "could not get object %s/%s", bucket, key)
	}
	defer func() {
		if err := out.Body.Close(); err != nil {
			log.WithError(err).Error("Could not close object body")
		}
	}()
	f, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, params.CoordinatorIoConfig().ReadWritePermissions)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", localPath)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Error("Could not close downloaded file")
		}
	}()
	if _, err := io.Copy(f, out.Body); err != nil {
		return errors.Wrapf(err, "could not write object %s/%s to %s", bucket, key, localPath)
	}
	return nil
}

// Delete removes the object at bucket/key.
func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return errors.Wrapf(err, "could not delete object %s/%s", bucket, key)
	}
	return nil
}
