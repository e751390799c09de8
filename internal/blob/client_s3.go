package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config carries everything needed to reach one bucket.
type S3Config struct {
	BucketName string
	Region     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
}

type S3Client struct {
	s3Client *s3.Client
	config   *S3Config
}

func NewS3Client(s3Client *s3.Client, cfg *S3Config) *S3Client {
	return &S3Client{
		s3Client: s3Client,
		config:   cfg,
	}
}

func NewS3ClientWithConfig(ctx context.Context, cfg *S3Config) (*S3Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 30 * time.Second,
	}

	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	awsClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Client(awsClient, cfg), nil
}

// ===================================================================================================

func (s *S3Client) HeadBucket(ctx context.Context) error {
	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: &s.config.BucketName,
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("bucket %q: %w", s.config.BucketName, ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *S3Client) CreateBucket(ctx context.Context) error {
	input := &s3.CreateBucketInput{
		Bucket: &s.config.BucketName,
	}
	// us-east-1 is the only region that must not carry a location constraint.
	if s.config.Region != "" && s.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.config.Region),
		}
	}

	_, err := s.s3Client.CreateBucket(ctx, input)
	if err != nil {
		return fmt.Errorf("create bucket %q: %w", s.config.BucketName, err)
	}
	return nil
}

func (s *S3Client) PutBucketACL(ctx context.Context, acl ACL) error {
	_, err := s.s3Client.PutBucketAcl(ctx, &s3.PutBucketAclInput{
		Bucket: &s.config.BucketName,
		ACL:    types.BucketCannedACL(acl),
	})
	if err != nil {
		return fmt.Errorf("put bucket acl %q: %w", s.config.BucketName, err)
	}
	return nil
}

// ===================================================================================================

func (s *S3Client) PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error) {
	input := &s3.PutObjectInput{
		Bucket:   &s.config.BucketName,
		Key:      &params.Key,
		Body:     params.Body,
		ACL:      types.ObjectCannedACL(params.ACL),
		Metadata: params.Metadata,
	}
	if params.Size > 0 {
		input.ContentLength = aws.Int64(params.Size)
	}
	applyTransportParams(input, &params.Params)

	resp, err := s.s3Client.PutObject(ctx, input)
	if err != nil {
		return nil, err
	}

	// s3.PutObjectOutput does not have LastModified
	return &PutObjectResponse{
		Key:          params.Key,
		Size:         params.Size,
		ETag:         strings.ReplaceAll(aws.ToString(resp.ETag), "\"", ""),
		LastModified: time.Now().UTC(),
	}, nil
}

func (s *S3Client) GetObject(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object %q: %w", key, ErrNotFound)
		}
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ===================================================================================================

func applyTransportParams(input *s3.PutObjectInput, p *TransportParams) {
	if p.CacheControl != "" {
		input.CacheControl = aws.String(p.CacheControl)
	}
	if p.ContentDisposition != "" {
		input.ContentDisposition = aws.String(p.ContentDisposition)
	}
	if p.ContentEncoding != "" {
		input.ContentEncoding = aws.String(p.ContentEncoding)
	}
	if p.ContentLanguage != "" {
		input.ContentLanguage = aws.String(p.ContentLanguage)
	}
	if p.ContentLength > 0 {
		input.ContentLength = aws.Int64(p.ContentLength)
	}
	if p.ContentMD5 != "" {
		input.ContentMD5 = aws.String(p.ContentMD5)
	}
	if p.ContentType != "" {
		input.ContentType = aws.String(p.ContentType)
	}
	if p.Expires != nil {
		input.Expires = p.Expires
	}
}

func isNotFound(err error) bool {
	var noBucket *types.NoSuchBucket
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noBucket) || errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket", "NoSuchKey":
			return true
		}
	}
	return false
}

// check that S3Client implements the Client interface
var _ Client = (*S3Client)(nil)
