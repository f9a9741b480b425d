package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rpupo63/portfolio-cms/config"
	"github.com/rpupo63/portfolio-cms/errs"
)

// ObjectAPI is the subset of the s3 client the store needs.
type ObjectAPI interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ObjectUploader is the subset of the upload manager the store needs.
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store puts uploads in a bucket under keyPrefix and returns public object URLs.
type S3Store struct {
	client   ObjectAPI
	uploader ObjectUploader
	bucket   string
	prefix   string
	baseURL  string
	maxBytes int64
}

// NewS3Store builds the aws client from cfg. Static credentials are used when both keys are
// set, otherwise the default credential chain applies. Setting only one key is an error.
func NewS3Store(ctx context.Context, cfg config.S3Config, maxBytes int64) (*S3Store, error) {
	loadOpts := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithRegion(cfg.Region),
	}
	switch {
	case cfg.AccessKey != "" && cfg.SecretKey == "":
		return nil, errs.NewEnvironmentVariableError("AWS_SECRET_ACCESS_KEY")
	case cfg.AccessKey == "" && cfg.SecretKey != "":
		return nil, errs.NewEnvironmentVariableError("AWS_ACCESS_KEY_ID")
	case cfg.AccessKey != "":
		loadOpts = append(loadOpts, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	acfg, err := awsCfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errs.NewConfigError("aws", err)
	}

	client := s3.NewFromConfig(acfg, func(o *s3.Options) {
		if ep := normalizeEndpoint(cfg.Endpoint); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StoreWithClient(client, manager.NewUploader(client), cfg, maxBytes), nil
}

// NewS3StoreWithClient wires an already built client, mainly for tests.
func NewS3StoreWithClient(client ObjectAPI, uploader ObjectUploader, cfg config.S3Config, maxBytes int64) *S3Store {
	return &S3Store{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.KeyPrefix, "/"),
		baseURL:  publicBaseURL(cfg),
		maxBytes: maxBytes,
	}
}

func (s *S3Store) Upload(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	contentType, err := CheckImage(fh, s.maxBytes)
	if err != nil {
		return "", err
	}

	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	key := s.key(objectName(fh.Filename))
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"name": fh.Filename,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to s3: %w", err)
	}

	return s.baseURL + key, nil
}

func (s *S3Store) DeleteByURL(ctx context.Context, rawURL string) error {
	key, ok := strings.CutPrefix(rawURL, s.baseURL)
	if !ok || key == "" {
		return nil
	}
	if s.prefix != "" && !strings.HasPrefix(key, s.prefix+"/") {
		return nil
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3 object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// publicBaseURL is the URL objects are served from, always ending in a slash.
func publicBaseURL(cfg config.S3Config) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/") + "/"
	}
	if ep := normalizeEndpoint(cfg.Endpoint); ep != "" && cfg.UsePathStyle {
		return strings.TrimRight(ep, "/") + "/" + cfg.Bucket + "/"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", cfg.Bucket, cfg.Region)
}

func normalizeEndpoint(ep string) string {
	ep = strings.TrimSpace(ep)
	if ep == "" {
		return ""
	}
	if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
		ep = "https://" + ep
	}
	u, err := url.Parse(ep)
	if err != nil {
		return ""
	}
	return u.String()
}
