package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3 stores files in a bucket. Endpoint may point at any S3-compatible server.
type S3 struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
}

var _ Storage = (*S3)(nil)

// NewS3 builds the client. Nil creds use the default AWS credential chain.
func NewS3(bucket, region, endpoint string, creds *credentials.Credentials) (*S3, error) {
	cfg := aws.NewConfig().WithRegion(region)
	if creds != nil {
		cfg = cfg.WithCredentials(creds)
	}
	if strings.TrimSpace(endpoint) != "" {
		cfg = cfg.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	client := s3.New(sess)
	return &S3{
		client:   client,
		uploader: s3manager.NewUploaderWithClient(client),
		bucket:   bucket,
	}, nil
}

func (s *S3) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err = s.uploader.UploadWithContext(ctx, input)
	return err
}

func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func isNoSuchKey(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
}
