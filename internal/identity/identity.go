// Package identity 把外部账户标识（邮箱）转换为可以作为存储结构键的形式。
package identity

import (
	"fmt"
	"strings"
	"time"
)

// StorageKey 规范化后的账户键
type StorageKey string

func (k StorageKey) String() string { return string(k) }

// 实时数据库的路径中不能出现 '.'，'@' 也替换掉以保持键的形状一致
var keyReplacer = strings.NewReplacer(".", "-", "@", "-")

// Normalize 返回账户标识对应的存储键。纯函数，无错误。
func Normalize(raw string) StorageKey {
	return StorageKey(keyReplacer.Replace(raw))
}

// ProfilePictureFileName 用户头像文件名
func ProfilePictureFileName(key StorageKey) string {
	return fmt.Sprintf("%s_profile_picture.png", key)
}

// MessageIDLayout 客户端生成消息ID时使用的日期格式
const MessageIDLayout = "20060102T150405.000000000Z0700"

// MessageID 按 <接收者>_<发送者>_<时间> 生成消息ID
func MessageID(recipient, sender StorageKey, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s", recipient, sender, at.UTC().Format(MessageIDLayout))
}
