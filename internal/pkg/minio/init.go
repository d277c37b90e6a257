package minio

import (
	"Mesdo/internal/api/config"
	"context"
	"fmt"
	log "log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// Client 全局 MinIO 客户端实例
	Client *minio.Client
	// AttachmentBucket 聊天附件存储桶
	AttachmentBucket string
)

// Init 初始化 MinIO 客户端并确保附件桶存在
func Init(cfg config.MinIOConfig) error {
	var endpoint string
	var useSSL bool
	if cfg.InternalEndpoint != "" {
		endpoint = cfg.InternalEndpoint
		useSSL = cfg.InternalUseSSL
	} else {
		endpoint = cfg.ExternalEndpoint
		useSSL = true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize minio client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.AttachmentBucket)
	if err != nil {
		return fmt.Errorf("failed to connect to minio server: %w", err)
	}
	if !exists {
		if err = client.MakeBucket(ctx, cfg.AttachmentBucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create attachment bucket: %w", err)
		}
		log.Info("Attachment bucket created", "bucket", cfg.AttachmentBucket)
	}

	Client = client
	AttachmentBucket = cfg.AttachmentBucket
	return nil
}
