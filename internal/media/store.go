// Package media 把图片等二进制对象交给外部对象存储，只返回可以放进 Photo 消息的 URI。
package media

import (
	"context"
	"strings"

	"messenger/internal/constants"
	"messenger/internal/identity"
)

// Store 对象存储
type Store interface {
	// Upload 保存对象，返回客户端可以访问的 URI
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// MessageImageKey 消息图片的对象键
func MessageImageKey(fileName string) string {
	return constants.MediaPrefixMessageImages + strings.TrimLeft(fileName, "/")
}

// ProfilePictureKey 用户头像的对象键
func ProfilePictureKey(user identity.StorageKey) string {
	return constants.MediaPrefixProfileImages + identity.ProfilePictureFileName(user)
}
