// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/configs"
	"github.com/rapidaai/demostudio/pkg/utils"
)

const signedURLTTL = 15 * time.Minute

type s3Store struct {
	logger   commons.Logger
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
}

// NewS3Store uploads promoted artifacts to S3 and hands out presigned GET
// references.
func NewS3Store(ctx context.Context, logger commons.Logger, cfg configs.AssetStoreConfig) (ArtifactStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("asset store provider s3 requires a bucket")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &s3Store{
		logger:   logger,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
	}, nil
}

func (s *s3Store) key(sessionID, filename string) string {
	return path.Join(s.prefix, sessionID, filename)
}

func (s *s3Store) Promote(ctx context.Context, sessionID, filename, tempPath string) (string, int64, error) {
	f, err := os.Open(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", tempPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat %s: %w", tempPath, err)
	}

	key := s.key(sessionID, filename)
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: utils.Ptr(s.bucket),
		Key:    utils.Ptr(key),
		Body:   f,
	}); err != nil {
		return "", 0, fmt.Errorf("failed to upload %s to s3://%s/%s: %w", tempPath, s.bucket, key, err)
	}

	if err := os.Remove(tempPath); err != nil {
		s.logger.Warnf("storage: failed to delete temporary %s: %v", tempPath, err)
	}

	s.logger.Infof("storage: promoted %s → s3://%s/%s (%d bytes)", tempPath, s.bucket, key, info.Size())
	return key, info.Size(), nil
}

func (s *s3Store) Put(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	key := s.key(sessionID, filename)
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: utils.Ptr(s.bucket),
		Key:    utils.Ptr(key),
		Body:   bytes.NewReader(data),
	}); err != nil {
		return "", fmt.Errorf("failed to upload artifact s3://%s/%s: %w", s.bucket, key, err)
	}
	return key, nil
}

func (s *s3Store) SignedURL(ctx context.Context, ref string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: utils.Ptr(s.bucket),
		Key:    utils.Ptr(ref),
	}, s3.WithPresignExpires(signedURLTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign s3://%s/%s: %w", s.bucket, ref, err)
	}
	return req.URL, nil
}

func (s *s3Store) Remove(ctx context.Context, ref string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: utils.Ptr(s.bucket),
		Key:    utils.Ptr(ref),
	}); err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", s.bucket, ref, err)
	}
	return nil
}
