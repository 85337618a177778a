package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source opens objects referenced as s3://bucket/key.
//
// Example usage:
//
//	client := upload.NewS3Client("eu-west-1", "")
//	src := upload.NewS3Source(client)
//	f, err := src.Open(ctx, "s3://my-bucket/avatars/me.png")
type S3Source struct {
	client S3API
}

// NewS3Source creates an S3 source.
func NewS3Source(client S3API) *S3Source {
	return &S3Source{client: client}
}

// NewS3Client builds an S3 client from the standard AWS_* environment
// variables. endpoint, if set, points the client at an S3-compatible store
// and switches to path-style addressing.
func NewS3Client(region, endpoint string) *s3.Client {
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	return s3.New(s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			id := os.Getenv("AWS_ACCESS_KEY_ID")
			secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
			if id == "" || secret == "" {
				return aws.Credentials{}, errors.New("upload: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
			}
			return aws.Credentials{
				AccessKeyID:     id,
				SecretAccessKey: secret,
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				Source:          "environment",
			}, nil
		})),
	}, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// ParseRef splits an s3://bucket/key reference.
func ParseRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not an s3:// reference", ErrInvalidRef, ref)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs a bucket and a key", ErrInvalidRef, ref)
	}
	return bucket, key, nil
}

// Open fetches the referenced object. The object body is streamed.
func (s *S3Source) Open(ctx context.Context, ref string) (*File, error) {
	bucket, key, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 download failed: %w", err)
	}

	filename := path.Base(key)
	if fn, ok := out.Metadata["original-filename"]; ok && fn != "" {
		filename = fn
	}

	contentType := "application/octet-stream"
	if out.ContentType != nil {
		contentType = *out.ContentType
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}

	return &File{
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		Reader:      out.Body,
	}, nil
}
