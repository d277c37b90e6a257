package util

import (
	"Mesdo/internal/pkg/consts"
	"strings"
	"unicode/utf8"
)

// RuneLen 按字符计算长度
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate 按字符截断, 超出部分以 ... 结尾
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

// AttachmentTypeFromMime 根据 MIME 推断附件类型
func AttachmentTypeFromMime(mime string) string {
	switch {
	case strings.HasPrefix(mime, consts.MimePrefixImage):
		return consts.MsgTypeImage
	case strings.HasPrefix(mime, consts.MimePrefixAudio):
		return consts.MsgTypeAudio
	case strings.HasPrefix(mime, consts.MimePrefixVideo):
		return consts.MsgTypeVideo
	default:
		return consts.MsgTypeFile
	}
}

// Dedup 去重并保持首次出现的顺序
func Dedup[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
