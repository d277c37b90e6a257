package minio

import (
	"Mesdo/internal/api/config"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// ErrObjectNotFound 附件对象不存在
var ErrObjectNotFound = errors.New("attachment object not found")

const presignExpiry = 24 * time.Hour

// ObjectInfo 附件对象的元信息
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	URL         string
}

// AttachmentStore 校验客户端上传到附件桶的对象
type AttachmentStore struct {
	cfg config.MinIOConfig
}

func NewAttachmentStore(cfg config.MinIOConfig) *AttachmentStore {
	return &AttachmentStore{cfg: cfg}
}

// Stat 读取对象元信息并生成访问地址
func (s *AttachmentStore) Stat(ctx context.Context, objectKey string) (*ObjectInfo, error) {
	if Client == nil {
		return nil, fmt.Errorf("minio client is not initialized")
	}

	info, err := Client.StatObject(ctx, AttachmentBucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	url, err := s.objectURL(ctx, objectKey)
	if err != nil {
		return nil, err
	}

	return &ObjectInfo{
		Key:         info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
		URL:         url,
	}, nil
}

func (s *AttachmentStore) objectURL(ctx context.Context, objectKey string) (string, error) {
	if s.cfg.UsePublicLink {
		return GetPublicURL(s.cfg.ExternalEndpoint, objectKey), nil
	}
	u, err := Client.PresignedGetObject(ctx, AttachmentBucket, objectKey, presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return u.String(), nil
}

// GetPublicURL 获取文件的公共访问URL
func GetPublicURL(externalEndpoint, objectName string) string {
	endpoint := strings.TrimRight(externalEndpoint, "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return fmt.Sprintf("%s/%s/%s", endpoint, AttachmentBucket, objectName)
}
