// Package recordstore keeps the beneficiary register as a single CSV object in an
// S3-compatible bucket (AWS S3 or MinIO).
package recordstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/aid-distribution/ticket-api/internal/adapters/csvtable"
	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

const contentType = "text/csv; charset=utf-8"

// Config holds explicit construction parameters. Credentials fall back to the default
// AWS chain when AccessKeyID is empty.
type Config struct {
	Bucket          string
	Key             string
	Region          string
	Endpoint        string // optional; set for MinIO or other S3-compatible endpoints
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

// Store implements recordstore.Store on one S3 object.
type Store struct {
	client *s3.Client
	bucket string
	key    string
}

// New creates a store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("s3 object key required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// Plain PUT bodies; MinIO and older gateways reject aws-chunked trailers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return NewWithClient(client, cfg.Bucket, cfg.Key), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *s3.Client, bucket, key string) *Store {
	return &Store{client: client, bucket: bucket, key: key}
}

func (s *Store) Location() string { return "s3://" + s.bucket + "/" + s.key }

func (s *Store) Load(ctx context.Context) (recordstore.Table, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &s.key})
	if err != nil {
		switch status := httpStatus(err); {
		case isNoSuchKey(err) || status == http.StatusNotFound:
			return recordstore.Table{}, s.fail(recordstore.ErrNotFound, false, err)
		case status == http.StatusForbidden:
			return recordstore.Table{}, s.fail(recordstore.ErrUnreadable, true, err)
		default:
			return recordstore.Table{}, s.fail(recordstore.ErrCorrupt, false, err)
		}
	}
	defer out.Body.Close()

	t, err := csvtable.Decode(out.Body)
	if err != nil {
		return recordstore.Table{}, s.fail(recordstore.ErrCorrupt, false, err)
	}
	return t, nil
}

// Save uploads the encoded register with a single PutObject, which S3 applies atomically.
func (s *Store) Save(ctx context.Context, t recordstore.Table) error {
	data, err := csvtable.Marshal(t)
	if err != nil {
		return s.fail(recordstore.ErrUnwritable, false, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &s.key,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return s.fail(recordstore.ErrUnwritable, httpStatus(err) == http.StatusForbidden, err)
	}
	return nil
}

func (s *Store) fail(kind error, permission bool, err error) *recordstore.Error {
	return &recordstore.Error{Kind: kind, Location: s.Location(), Permission: permission, Err: err}
}

func httpStatus(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}
