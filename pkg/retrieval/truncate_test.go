package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClampHead(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"短于上限原样返回", "营收增长", 100, "营收增长"},
		{"ASCII 精确截断", "abcdef", 3, "abc"},
		{"不切开多字节字符", "营收", 4, "营"},
		{"边界恰好对齐", "营收", 3, "营"},
		{"上限为零", "营收", 0, ""},
	}
	for _, c := range cases {
		got := ClampHead(c.in, c.max)
		if got != c.want {
			t.Errorf("%s: ClampHead(%q, %d) = %q, want %q", c.name, c.in, c.max, got, c.want)
		}
	}
}

func TestClampTail(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"短于上限原样返回", "营收增长", 100, "营收增长"},
		{"ASCII 精确截断", "abcdef", 3, "def"},
		{"不切开多字节字符", "营收", 4, "收"},
		{"边界恰好对齐", "营收", 3, "收"},
		{"上限为零", "营收", 0, ""},
	}
	for _, c := range cases {
		got := ClampTail(c.in, c.max)
		if got != c.want {
			t.Errorf("%s: ClampTail(%q, %d) = %q, want %q", c.name, c.in, c.max, got, c.want)
		}
	}
}

// 合成与提示词的截断输入是大段中文素材，截断结果必须仍是合法 UTF-8
func TestClampKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("市场规模持续扩大。", 500)
	for _, max := range []int{1, 2, 3, 100, 2000, 11999} {
		if got := ClampHead(long, max); !utf8.ValidString(got) {
			t.Errorf("ClampHead(len=%d, %d) produced invalid UTF-8", len(long), max)
		}
		if got := ClampTail(long, max); !utf8.ValidString(got) {
			t.Errorf("ClampTail(len=%d, %d) produced invalid UTF-8", len(long), max)
		}
	}
}
