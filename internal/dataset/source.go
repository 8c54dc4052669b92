package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures access to s3:// inputs. Credentials come from the
// default AWS chain (env, shared config, instance role).
type S3Options struct {
	Region    string
	Endpoint  string // optional; e.g. a MinIO endpoint
	PathStyle bool
}

// ObjectGetter is the subset of the S3 client used to fetch inputs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Loader reads tables from local paths or s3://bucket/key URIs.
type Loader struct {
	Read ReadOptions
	S3   S3Options

	// client is created lazily on the first s3:// path.
	client ObjectGetter
}

// NewLoader returns a loader; pass a non-nil client to override S3 access.
func NewLoader(read ReadOptions, s3opt S3Options, client ObjectGetter) *Loader {
	return &Loader{Read: read, S3: s3opt, client: client}
}

// Load reads the file at location and decodes it by extension (.xlsx or delimited text).
func (l *Loader) Load(ctx context.Context, location string) (*Table, error) {
	data, err := l.fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(location)
	if strings.HasSuffix(strings.ToLower(location), ".xlsx") {
		return ReadXLSX(data, name, l.Read)
	}
	opt := l.Read
	if opt.Delimiter == 0 && strings.HasSuffix(strings.ToLower(location), ".tsv") {
		opt.Delimiter = '\t'
	}
	return ReadCSV(bytes.NewReader(data), name, opt)
}

func (l *Loader) fetch(ctx context.Context, location string) ([]byte, error) {
	bucket, key, ok := splitS3URI(location)
	if !ok {
		b, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", location, err)
		}
		return b, nil
	}
	if l.client == nil {
		c, err := newS3Client(ctx, l.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		l.client = c
	}
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", location, err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return b, nil
}

func newS3Client(ctx context.Context, opt S3Options) (*s3.Client, error) {
	region := opt.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opt.PathStyle
		if opt.Endpoint != "" {
			o.BaseEndpoint = aws.String(opt.Endpoint)
		}
	}), nil
}

func splitS3URI(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
