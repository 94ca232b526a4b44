package citation

import (
	"encoding/json"
	"fmt"
)

// Kind 引用来源类型
type Kind string

const (
	KindKB    Kind = "kb"    // 知识库文档切片
	KindWeb   Kind = "web"   // 开放网页
	KindExcel Kind = "excel" // 表格单元格
)

// Citation 统一引用接口：Key 返回身份键，用于去重
type Citation interface {
	Key() string
	Source() Kind
}

// KBCitation 知识库引用
type KBCitation struct {
	FileName  string `json:"file_name"`
	Page      int    `json:"page"`
	ChunkText string `json:"chunk_text"`
	SourceURL string `json:"source_url"`
}

func (c KBCitation) Key() string  { return fmt.Sprintf("kb|%s|%d", c.FileName, c.Page) }
func (c KBCitation) Source() Kind { return KindKB }

// WebCitation 网页引用
type WebCitation struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func (c WebCitation) Key() string  { return fmt.Sprintf("web|%s|%s", c.Title, c.URL) }
func (c WebCitation) Source() Kind { return KindWeb }

// ExcelCitation 表格引用
type ExcelCitation struct {
	FileName string `json:"file_name"`
	Sheet    string `json:"sheet"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Value    string `json:"value"`
}

func (c ExcelCitation) Key() string {
	return fmt.Sprintf("excel|%s|%s|%d|%d", c.FileName, c.Sheet, c.Row, c.Col)
}
func (c ExcelCitation) Source() Kind { return KindExcel }

// Set 身份键集合，保留首次出现的引用
type Set struct {
	keys map[string]struct{}
}

// NewSet 创建集合，可传入已存在的引用作为初始键
func NewSet(existing ...Citation) *Set {
	s := &Set{keys: make(map[string]struct{}, len(existing))}
	for _, c := range existing {
		s.keys[c.Key()] = struct{}{}
	}
	return s
}

// Add 尝试加入引用；若身份键已存在返回 false
func (s *Set) Add(c Citation) bool {
	k := c.Key()
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

// Len 当前键数量
func (s *Set) Len() int { return len(s.keys) }

// Marshal 序列化单条引用为 (kind, payload)，供存储层落库
func Marshal(c Citation) (string, []byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", nil, err
	}
	return string(c.Source()), payload, nil
}

// Unmarshal 按 kind 反序列化引用
func Unmarshal(kind string, payload []byte) (Citation, error) {
	switch Kind(kind) {
	case KindKB:
		var c KBCitation
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case KindWeb:
		var c WebCitation
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case KindExcel:
		var c ExcelCitation
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown citation kind: %s", kind)
	}
}
