// Package s3 ищет картинки компонентов в S3-совместимом бакете (AWS S3, MinIO).
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type Config struct {
	Region          string
	Bucket          string
	Endpoint        string // опционально, для MinIO
	AccessKeyID     string // опционально, иначе стандартная цепочка
	SecretAccessKey string
	PathStyle       bool
	Prefix          string        // например "images/"
	Extensions      []string      // порядок перебора
	PresignExpiry   time.Duration // по умолчанию 15m
	PublicBaseURL   string        // если задан, ссылки без подписи
}

type headAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Resolver struct {
	head    headAPI
	presign presignAPI
	cfg     Config
}

func New(ctx context.Context, cfg Config) (*Resolver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
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
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newResolver(client, s3.NewPresignClient(client), cfg), nil
}

func newResolver(head headAPI, presign presignAPI, cfg Config) *Resolver {
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Resolver{head: head, presign: presign, cfg: cfg}
}

func (r *Resolver) ResolveImage(ctx context.Context, id string) (string, bool, error) {
	if id == "" {
		return "", false, nil
	}
	for _, ext := range r.cfg.Extensions {
		key := r.cfg.Prefix + id + ext
		_, err := r.head.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &r.cfg.Bucket, Key: &key})
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return "", false, fmt.Errorf("head %s: %w", key, err)
		}
		u, err := r.link(ctx, key)
		if err != nil {
			return "", false, err
		}
		return u, true, nil
	}
	return "", false, nil
}

func (r *Resolver) link(ctx context.Context, key string) (string, error) {
	if r.cfg.PublicBaseURL != "" {
		return r.cfg.PublicBaseURL + "/" + escapeKey(key), nil
	}
	out, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: &r.cfg.Bucket, Key: &key},
		func(po *s3.PresignOptions) { po.Expires = r.cfg.PresignExpiry })
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return out.URL, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
