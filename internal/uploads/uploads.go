// Package uploads issues pre-signed object-storage URLs so clients can
// upload photos directly to the bucket.
package uploads

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// URLExpiry is how long an issued URL stays valid.
const URLExpiry = 120 * time.Second

var (
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	now = time.Now
)

// Config describes the bucket and the credentials used to sign URLs.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, e.g. a MinIO address
	AccessKeyID     string
	SecretAccessKey string
}

// Upload is a signed PUT URL and the object key it writes to.
type Upload struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Issuer signs upload and download URLs for one bucket.
type Issuer struct {
	presign *s3.PresignClient
	bucket  string
}

// NewIssuer loads the AWS config and builds an S3 presign client.
func NewIssuer(ctx context.Context, cfg Config) (*Issuer, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Issuer{presign: s3.NewPresignClient(client), bucket: cfg.Bucket}, nil
}

// ObjectKey prefixes fileName with the current unix time in milliseconds.
// Two identical names in the same millisecond collide.
func ObjectKey(fileName string) string {
	return fmt.Sprintf("%d_%s", now().UnixMilli(), fileName)
}

// IssueUploadURL signs a PUT for a new key derived from fileName. The object
// is created public-read with fileType as its content type.
func (i *Issuer) IssueUploadURL(ctx context.Context, fileName, fileType string) (*Upload, error) {
	key := ObjectKey(fileName)
	req, err := presignPutObject(i.presign, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(i.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(fileType),
		ACL:         types.ObjectCannedACLPublicRead,
	}, s3.WithPresignExpires(URLExpiry))
	if err != nil {
		return nil, err
	}
	return &Upload{URL: req.URL, Key: key}, nil
}

// DownloadURL signs a GET for key.
func (i *Issuer) DownloadURL(ctx context.Context, key string) (string, error) {
	req, err := presignGetObject(i.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(i.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(URLExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
