package compiler

import (
	"fmt"
	"strings"

	"github.com/iWorld-y/deep_research/pkg/citation"
	"github.com/iWorld-y/deep_research/pkg/model"
)

// EmptyPlaceholder 空章节占位符：缺口必须可见，不允许静默吞掉章节
const EmptyPlaceholder = "（本节内容暂缺）"

// Compile 按大纲顺序拼接已完成章节，标题带编号。
// 纯函数：同一组章节编译两次得到完全相同的输出
func Compile(sections []*model.Section) string {
	var sb strings.Builder
	for i, sec := range sections {
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, sec.Title)
		content := strings.TrimSpace(sec.Content)
		if content == "" {
			content = EmptyPlaceholder
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// Citations 汇总任务级引用列表：按大纲顺序遍历章节，
// 身份键重复时保留首次出现的实例
func Citations(sections []*model.Section) []citation.Citation {
	seen := citation.NewSet()
	var all []citation.Citation
	for _, sec := range sections {
		for _, c := range sec.Citations {
			if seen.Add(c) {
				all = append(all, c)
			}
		}
	}
	return all
}
