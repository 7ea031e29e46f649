/*
backup.go - Snapshot export to a directory or an S3 bucket

PURPOSE:
  Copies the store's last persisted document somewhere safe. The bytes
  come from hr.Store.Snapshot, so a backup never contains a change whose
  save failed.

NAMING:
  hrstore-20250315T093000Z.json (UTC, second precision)

SINKS:
  DirSink: atomic file in a local directory (temp file + rename)
  S3Sink:  one PutObject per backup, key = prefix + name
*/
package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/warp/hrstore/hr"
)

// Sink stores one backup under name.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
}

// Name returns the backup file name for a snapshot taken at t.
func Name(t time.Time) string {
	return "hrstore-" + t.UTC().Format("20060102T150405Z") + ".json"
}

// Run writes s's current snapshot to sink and returns the name used.
func Run(ctx context.Context, s *hr.Store, sink Sink, now time.Time) (string, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	name := Name(now)
	if err := sink.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("backup %s: %w", name, err)
	}
	return name, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

// DirSink writes backups into a local directory, creating it if needed.
type DirSink struct {
	Dir string
}

func (d DirSink) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.Dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(d.Dir, name))
}

// =============================================================================
// S3
// =============================================================================

// PutObjectAPI is the part of *s3.Client S3Sink needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config selects a bucket and, optionally, a non-AWS endpoint such as MinIO.
// Empty credentials fall back to the default AWS chain.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// S3Sink uploads backups to one bucket.
type S3Sink struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Sink wraps an existing client.
func NewS3Sink(client PutObjectAPI, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// OpenS3 builds an S3 client from cfg and returns a sink over it.
func OpenS3(ctx context.Context, cfg S3Config, optFns ...func(*s3.Options)) (*S3Sink, error) {
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
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, append([]func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}}, optFns...)...)
	return NewS3Sink(client, cfg.Bucket, cfg.Prefix), nil
}

// Key returns the object key used for name.
func (s *S3Sink) Key(name string) string {
	prefix := strings.Trim(s.prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (s *S3Sink) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.Key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, s.Key(name), err)
	}
	return nil
}
