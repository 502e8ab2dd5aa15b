package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store keeps TLS artifacts in an S3-compatible bucket under
// tls/<folder>/<kind>.pem. Path references use the s3://bucket/key form.
type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(endpoint, region, accessKey, secretKey, bucket string) *S3Store {
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return &S3Store{
		client: s3.New(opts),
		bucket: bucket,
	}
}

func (s *S3Store) Store(ctx context.Context, folder string, kind FileKind, data []byte) (string, error) {
	key := objectKey(folder, kind)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("put %s artifact: %w", kind, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func (s *S3Store) Fetch(ctx context.Context, path string) ([]byte, error) {
	key, err := s.parsePath(path)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return data, nil
}

func (s *S3Store) Remove(ctx context.Context, folder string) error {
	prefix := "tls/" + folder + "/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list artifacts under %s: %w", prefix, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{Objects: objects},
		})
		if err != nil {
			return fmt.Errorf("delete artifacts under %s: %w", prefix, err)
		}
	}
	return nil
}

func (s *S3Store) parsePath(path string) (string, error) {
	expected := "s3://" + s.bucket + "/"
	if !strings.HasPrefix(path, expected) {
		return "", fmt.Errorf("artifact path %s does not reference bucket %s", path, s.bucket)
	}
	return strings.TrimPrefix(path, expected), nil
}

func objectKey(folder string, kind FileKind) string {
	return "tls/" + folder + "/" + kind.filename()
}
