package retrieval

import "unicode/utf8"

// ClampHead 保留开头最多 max 字节；截断点回退到 UTF-8 字符边界，
// 不会把多字节字符切成半个
func ClampHead(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// ClampTail 保留结尾最多 max 字节；起点前移到 UTF-8 字符边界
func ClampTail(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	start := len(s) - max
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
