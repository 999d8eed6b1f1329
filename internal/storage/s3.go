package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Provider.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Options configures an S3-compatible bucket.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Provider stores objects in an S3 bucket under a key prefix. Locations
// have the form s3://bucket/prefix/name.
type S3Provider struct {
	api    S3API
	bucket string
	prefix string
}

var _ Provider = (*S3Provider)(nil)

// NewS3Provider builds a provider from the default AWS credential chain, or
// from static keys when both are set. A custom endpoint switches to
// path-style addressing for S3-compatible services.
func NewS3Provider(ctx context.Context, opts S3Options) (*S3Provider, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ProviderWithAPI(client, opts.Bucket, opts.Prefix), nil
}

// NewS3ProviderWithAPI wires an existing client.
func NewS3ProviderWithAPI(api S3API, bucket, prefix string) *S3Provider {
	return &S3Provider{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (p *S3Provider) key(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "/" + name
}

func (p *S3Provider) location(key string) string {
	return "s3://" + p.bucket + "/" + key
}

// keyOf returns the object key for a location inside this provider.
func (p *S3Provider) keyOf(location string) (string, bool) {
	base := "s3://" + p.bucket + "/"
	if !strings.HasPrefix(location, base) {
		return "", false
	}
	key := strings.TrimPrefix(location, base)
	if key == "" || path.Clean("/"+key) != "/"+key {
		return "", false
	}
	if p.prefix != "" && !strings.HasPrefix(key, p.prefix+"/") {
		return "", false
	}
	return key, true
}

func (p *S3Provider) Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	key := p.key(name)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		IfNoneMatch:   aws.String("*"),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := p.api.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return p.location(key), nil
}

func (p *S3Provider) Open(ctx context.Context, location string) (*Object, error) {
	key, ok := p.keyOf(location)
	if !ok {
		return nil, ErrOutsideRoot
	}
	out, err := p.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}

	obj := &Object{
		Body:          out.Body,
		ContentLength: aws.ToInt64(out.ContentLength),
		ContentType:   aws.ToString(out.ContentType),
	}
	if out.LastModified != nil {
		obj.LastModified = *out.LastModified
	}
	return obj, nil
}

func (p *S3Provider) Delete(ctx context.Context, location string) error {
	key, ok := p.keyOf(location)
	if !ok {
		return ErrOutsideRoot
	}
	_, err := p.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (p *S3Provider) Contains(location string) bool {
	_, ok := p.keyOf(location)
	return ok
}
