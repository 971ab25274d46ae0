package output

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ObjectPutter is the part of the S3 client the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PublisherConfig holds the S3 destination of a finished run.
type PublisherConfig struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; set for MinIO or another S3-compatible store
	Prefix    string // optional key prefix, e.g. "cda/2026-10-17"
	PathStyle bool
}

// Publisher uploads the ndjson files and metrics of an output directory.
type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	log    zerolog.Logger
}

// NewS3Publisher builds a Publisher on the default AWS credentials chain.
func NewS3Publisher(ctx context.Context, cfg PublisherConfig, log zerolog.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewPublisher(client, cfg.Bucket, cfg.Prefix, log), nil
}

// NewPublisher wraps an existing client.
func NewPublisher(client ObjectPutter, bucket, prefix string, log zerolog.Logger) *Publisher {
	return &Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log.With().Str("component", "publisher").Logger(),
	}
}

// Publish uploads every *.ndjson file of dir plus metrics.prom when present.
// Files are uploaded in name order; the first failure stops the upload.
func (p *Publisher) Publish(ctx context.Context, dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.ndjson"))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, MetricsFile)); err == nil {
		files = append(files, filepath.Join(dir, MetricsFile))
	}
	sort.Strings(files)

	var keys []string
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return keys, err
		}
		key := p.objectKey(filepath.Base(file))
		if err := p.put(ctx, file, key); err != nil {
			return keys, fmt.Errorf("failed to upload %s: %w", file, err)
		}
		keys = append(keys, key)
		p.log.Info().Str("bucket", p.bucket).Str("key", key).Msg("Uploaded file")
	}
	return keys, nil
}

func (p *Publisher) put(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	contentType := "application/fhir+ndjson"
	if filepath.Ext(file) != ".ndjson" {
		contentType = "text/plain; version=0.0.4"
	}
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &p.bucket,
		Key:         &key,
		Body:        f,
		ContentType: &contentType,
	})
	return err
}

func (p *Publisher) objectKey(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}
