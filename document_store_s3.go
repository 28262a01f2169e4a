package luzidos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/Luzidos/Utils/retry"
)

// S3DocumentStore is the production document store. S3 exposes no
// compare-and-swap over rewrites, so it does not implement DocumentCAS and
// locks taken against it remain advisory read-then-write.
type S3DocumentStore struct {
	client *s3.Client
	bucket string
}

// NewS3DocumentStore creates a store backed by the given bucket.
func NewS3DocumentStore(client *s3.Client, bucket string) *S3DocumentStore {
	return &S3DocumentStore{client: client, bucket: bucket}
}

func (s *S3DocumentStore) GetJSON(ctx context.Context, path string, v any) error {
	data, err := s.GetObject(ctx, path)
	if err != nil {
		return err
	}
	return unmarshalDocument(data, v)
}

func (s *S3DocumentStore) PutJSON(ctx context.Context, path string, v any) error {
	data, err := marshalDocument(v)
	if err != nil {
		return err
	}
	return s.put(ctx, path, data, "application/json")
}

func (s *S3DocumentStore) GetObject(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(path),
		})
		if err != nil {
			return s.classify(path, err)
		}
		defer out.Body.Close()
		data, err = io.ReadAll(out.Body)
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	return data, nil
}

func (s *S3DocumentStore) PutObject(ctx context.Context, path string, data []byte) error {
	return s.put(ctx, path, data, "application/octet-stream")
}

func (s *S3DocumentStore) put(ctx context.Context, path string, data []byte, contentType string) error {
	err := retry.Do(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(path),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		return nil
	})
	return s.wrap(err)
}

func (s *S3DocumentStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, WrapError(ErrorTypeTransientIO, err)
	}
	return true, nil
}

func (s *S3DocumentStore) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, WrapError(ErrorTypeTransientIO, err)
		}
		for _, obj := range page.Contents {
			paths = append(paths, aws.ToString(obj.Key))
		}
	}
	return paths, nil
}

func (s *S3DocumentStore) Copy(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(url.PathEscape(s.bucket + "/" + src)),
		Key:        aws.String(dst),
	})
	if err != nil {
		return WrapError(ErrorTypeTransientIO, err)
	}
	return nil
}

// classify separates missing keys from retryable service failures.
func (s *S3DocumentStore) classify(path string, err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return retry.NewNonRecoverableError(
			NewAgentError(ErrorTypeNotFound, fmt.Sprintf("document %q not found", path)))
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
		return retry.NewNonRecoverableError(
			NewAgentError(ErrorTypeNotFound, fmt.Sprintf("document %q not found", path)))
	}
	return retry.NewRecoverableError(err)
}

func (s *S3DocumentStore) wrap(err error) error {
	if err == nil {
		return nil
	}
	var agentError *AgentError
	if errors.As(err, &agentError) {
		return agentError
	}
	return WrapError(ErrorTypeTransientIO, err)
}
