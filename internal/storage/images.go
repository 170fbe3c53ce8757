package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const DefaultURLExpiry = time.Hour

// S3API is the subset of the S3 client used for car images.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ImageStore keeps car images in one S3 bucket and hands out presigned GET
// URLs for them.
type ImageStore struct {
	client    S3API
	presigner PresignAPI
	bucket    string
	expiry    time.Duration
}

// NewS3Client builds an S3 client. A non-empty endpoint switches to
// path-style addressing for local S3 implementations.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewImageStore(client *s3.Client, bucket string, expiry time.Duration) *ImageStore {
	return newImageStore(client, s3.NewPresignClient(client), bucket, expiry)
}

func newImageStore(client S3API, presigner PresignAPI, bucket string, expiry time.Duration) *ImageStore {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &ImageStore{client: client, presigner: presigner, bucket: bucket, expiry: expiry}
}

// ImageKey names a new object for a car image. Every upload gets its own key
// so a failed write never touches an object another car still references.
func ImageKey(carNumber, filename string) string {
	return carNumber + "/" + uuid.NewString() + "-" + path.Base(filename)
}

func (s *ImageStore) Upload(ctx context.Context, key string, image domain.ImageUpload) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   image.Body,
	}
	if image.ContentType != "" {
		input.ContentType = aws.String(image.ContentType)
	}
	if image.Size > 0 {
		input.ContentLength = aws.Int64(image.Size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload image %s: %w", key, err)
	}
	return nil
}

func (s *ImageStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete image %s: %w", key, err)
	}
	return nil
}

func (s *ImageStore) PresignedURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign image %s: %w", key, err)
	}
	return req.URL, nil
}
