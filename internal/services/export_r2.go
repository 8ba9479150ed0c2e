package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

type R2Options struct {
	AccountID     string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PresignExpiry time.Duration
}

type r2ExportStore struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	expiry    time.Duration
}

func NewR2ExportStore(ctx context.Context, opts R2Options) (ExportStore, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID))
	})

	return &r2ExportStore{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    opts.Bucket,
		expiry:    opts.PresignExpiry,
	}, nil
}

func (s *r2ExportStore) Save(ctx context.Context, sessionID uuid.UUID, content []byte) (string, error) {
	key := newExportKey(sessionID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String("text/plain; charset=utf-8"),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export to r2: %w", err)
	}

	return key, nil
}

func (s *r2ExportStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !validExportKey(key) {
		return nil, ErrExportNotFound
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrExportNotFound
		}
		return nil, fmt.Errorf("failed to download export from r2: %w", err)
	}

	return out.Body, nil
}

func (s *r2ExportStore) URL(ctx context.Context, key string) (string, error) {
	if !validExportKey(key) {
		return "", ErrExportNotFound
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign export url: %w", err)
	}

	return req.URL, nil
}
