package model

import (
	"fmt"
	"strconv"
	"strings"

	"messenger/internal/apperr"
	"messenger/internal/constants"
)

// Kind 消息内容类型。封闭集合，新增类型需要在本文件中添加实现并扩展 ParseKind。
type Kind interface {
	// Tag 线上记录中的 type 字段
	Tag() string
	// Content 线上记录中的 content 字段；媒体类型为 URI
	Content() string

	isKind()
}

// Text 纯文本
type Text string

// AttributedText 富文本（内容以字符串保存）
type AttributedText string

// Emoji 表情
type Emoji string

// Photo 图片，仅保存对象存储返回的 URI
type Photo struct{ URI string }

// Video 视频
type Video struct{ URI string }

// Audio 语音
type Audio struct{ URI string }

// LinkPreview 链接预览
type LinkPreview struct{ URL string }

// Location 位置
type Location struct {
	Latitude  float64
	Longitude float64
}

// Contact 名片
type Contact struct{ Name string }

// Custom 自定义负载
type Custom struct{ Payload string }

func (Text) Tag() string           { return constants.KindText }
func (AttributedText) Tag() string { return constants.KindAttributedText }
func (Emoji) Tag() string          { return constants.KindEmoji }
func (Photo) Tag() string          { return constants.KindPhoto }
func (Video) Tag() string          { return constants.KindVideo }
func (Audio) Tag() string          { return constants.KindAudio }
func (LinkPreview) Tag() string    { return constants.KindLinkPreview }
func (Location) Tag() string       { return constants.KindLocation }
func (Contact) Tag() string        { return constants.KindContact }
func (Custom) Tag() string         { return constants.KindCustom }

func (k Text) Content() string           { return string(k) }
func (k AttributedText) Content() string { return string(k) }
func (k Emoji) Content() string          { return string(k) }
func (k Photo) Content() string          { return k.URI }
func (k Video) Content() string          { return k.URI }
func (k Audio) Content() string          { return k.URI }
func (k LinkPreview) Content() string    { return k.URL }
func (k Contact) Content() string        { return k.Name }
func (k Custom) Content() string         { return k.Payload }

func (k Location) Content() string {
	return strconv.FormatFloat(k.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(k.Longitude, 'f', -1, 64)
}

func (Text) isKind()           {}
func (AttributedText) isKind() {}
func (Emoji) isKind()          {}
func (Photo) isKind()          {}
func (Video) isKind()          {}
func (Audio) isKind()          {}
func (LinkPreview) isKind()    {}
func (Location) isKind()       {}
func (Contact) isKind()        {}
func (Custom) isKind()         {}

// IsTextual 内容本身可以直接作为预览的类型
func IsTextual(k Kind) bool {
	switch k.(type) {
	case Text, AttributedText, Emoji:
		return true
	}
	return false
}

// ParseKind 由 type/content 还原消息类型
func ParseKind(tag, content string) (Kind, error) {
	switch tag {
	case constants.KindText:
		return Text(content), nil
	case constants.KindAttributedText:
		return AttributedText(content), nil
	case constants.KindEmoji:
		return Emoji(content), nil
	case constants.KindPhoto:
		return Photo{URI: content}, nil
	case constants.KindVideo:
		return Video{URI: content}, nil
	case constants.KindAudio:
		return Audio{URI: content}, nil
	case constants.KindLinkPreview:
		return LinkPreview{URL: content}, nil
	case constants.KindContact:
		return Contact{Name: content}, nil
	case constants.KindCustom:
		return Custom{Payload: content}, nil
	case constants.KindLocation:
		lat, lng, ok := strings.Cut(content, ",")
		if !ok {
			return nil, fmt.Errorf("位置内容格式错误 %q: %w", content, apperr.ErrInvalidArgument)
		}
		latitude, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		if err != nil {
			return nil, fmt.Errorf("位置纬度错误 %q: %w", lat, apperr.ErrInvalidArgument)
		}
		longitude, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
		if err != nil {
			return nil, fmt.Errorf("位置经度错误 %q: %w", lng, apperr.ErrInvalidArgument)
		}
		return Location{Latitude: latitude, Longitude: longitude}, nil
	}
	return nil, fmt.Errorf("未知的消息类型 %q: %w", tag, apperr.ErrInvalidArgument)
}
