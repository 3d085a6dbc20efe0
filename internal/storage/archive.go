package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/digkill/campusgigs/internal/clock"
	"github.com/digkill/campusgigs/internal/config"
)

type Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
	Prefix       string
}

// ConfigFrom maps the S3_* settings.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Bucket:       cfg.S3Bucket,
		UsePathStyle: cfg.S3UsePathStyle,
		Prefix:       cfg.S3Prefix,
	}
}

// WebhookArchive stores raw provider callbacks in S3 under
// <prefix>/webhooks/<kind>/YYYY/MM/DD/<uuid>.json.
type WebhookArchive struct {
	cfg    Config
	client *s3.Client
	clock  clock.Clock
}

func NewWebhookArchive(cfg Config, clk clock.Clock) (*WebhookArchive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "campusgigs"
	}
	if clk == nil {
		clk = clock.NewSystem()
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &WebhookArchive{
		cfg:    cfg,
		client: s3.New(options),
		clock:  clk,
	}, nil
}

// Archive uploads body and returns the object key.
func (a *WebhookArchive) Archive(ctx context.Context, kind string, body []byte) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("no data to archive")
	}
	key := a.objectKey(kind)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload webhook to s3: %w", err)
	}
	return key, nil
}

func (a *WebhookArchive) objectKey(kind string) string {
	now := a.clock.Now().UTC()
	prefix := strings.Trim(a.cfg.Prefix, "/")
	return path.Join(prefix, "webhooks", kind, now.Format("2006/01/02"), uuid.NewString()+".json")
}

// NoopArchive discards payloads when no bucket is configured.
type NoopArchive struct{}

func (NoopArchive) Archive(context.Context, string, []byte) (string, error) {
	return "", nil
}
