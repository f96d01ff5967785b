package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lecturely/backend/internal/models"
)

// FolderSessions is the S3 prefix for archived session media.
const FolderSessions = "sessions"

// ErrNotArchived is returned when a session file has no archived copy.
var ErrNotArchived = errors.New("object not archived")

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	Endpoint             string // optional, for S3-compatible stores (MinIO)
	PresignExpireMinutes int
}

// S3 archives session media and issues pre-signed download URLs.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client. Static credentials come from config or the AWS_* env
// vars; otherwise the default credential chain is used.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	accessKey, secretKey := cfg.AccessKeyID, cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("s3 client using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.Bucket))
	} else {
		logger.Warn("s3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &S3{
		client:   client,
		uploader: uploader,
		presign:  s3.NewPresignClient(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// SessionMediaKey returns sessions/{session_id}/{file_type}{ext}. The key is derived,
// not stored, so the download endpoint can find the archive without a lookup.
func SessionMediaKey(sessionID uuid.UUID, fileType, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(FolderSessions, sessionID.String(), fileType+ext)
}

// ArchiveSessionMedia streams a stored session file to the bucket and returns its key.
func (s *S3) ArchiveSessionMedia(ctx context.Context, sessionID uuid.UUID, fileType string, file *models.MediaFile) (string, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return "", fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	key := SessionMediaKey(sessionID, fileType, file.Path)
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	start := time.Now()
	if err := s.Upload(ctx, key, contentType, f); err != nil {
		return "", err
	}
	s.logger.Debug("session media archived",
		zap.String("session_id", sessionID.String()),
		zap.String("key", key),
		zap.Int64("size", file.Size),
		zap.Duration("elapsed", time.Since(start)),
	)
	return key, nil
}

// Upload streams body to key in the configured bucket.
func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present in the bucket.
func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("head %s: %w", key, err)
}

// PresignedDownloadURL returns a pre-signed GET URL for an archived object, or
// ErrNotArchived when the object does not exist.
func (s *S3) PresignedDownloadURL(ctx context.Context, key string) (string, time.Duration, error) {
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", 0, ErrNotArchived
	}
	expires := s.PresignExpire()
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", 0, fmt.Errorf("presign get: %w", err)
	}
	return req.URL, expires, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}
