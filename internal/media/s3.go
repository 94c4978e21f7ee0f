package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"messenger/internal/apperr"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store 基于 S3 的对象存储。publicRead 时返回公开地址，否则返回带有效期的签名地址
type S3Store struct {
	uploader   uploader
	presigner  presigner
	bucket     string
	region     string
	publicRead bool
	presignTTL time.Duration
}

// NewS3Store 从默认凭证链创建
func NewS3Store(ctx context.Context, region, bucket string, publicRead bool, presignTTL time.Duration) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return newS3Store(manager.NewUploader(client), s3.NewPresignClient(client), bucket, region, publicRead, presignTTL), nil
}

func newS3Store(up uploader, pre presigner, bucket, region string, publicRead bool, presignTTL time.Duration) *S3Store {
	return &S3Store{
		uploader:   up,
		presigner:  pre,
		bucket:     bucket,
		region:     region,
		publicRead: publicRead,
		presignTTL: presignTTL,
	}
}

// Upload 上传对象
func (s *S3Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: 上传对象 %s 失败: %v", apperr.ErrUnavailable, key, err)
	}

	if s.publicRead {
		u := url.URL{
			Scheme: "https",
			Host:   fmt.Sprintf("%s.s3.%s.amazonaws.com", s.bucket, s.region),
			Path:   "/" + key,
		}
		return u.String(), nil
	}
	return s.PresignURL(ctx, key)
}

// PresignURL 生成带有效期的下载地址
func (s *S3Store) PresignURL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("%w: 签名对象 %s 失败: %v", apperr.ErrUnavailable, key, err)
	}
	return req.URL, nil
}
