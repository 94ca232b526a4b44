package retrieval

import (
	"strings"

	"github.com/iWorld-y/deep_research/pkg/citation"
	"github.com/iWorld-y/deep_research/pkg/model"
)

// mergeOrder 素材拼接的固定来源顺序：表格 → 网页 → 知识库。
// 顺序本身无语义，固定它是为了让同一批结果的合并输出可复现
var mergeOrder = []citation.Kind{citation.KindExcel, citation.KindWeb, citation.KindKB}

// Merge 把一次扇出的全部结果并入章节：素材按固定来源顺序追加，
// 引用按身份键去重后追加（保留首次出现的实例）
func Merge(sec *model.Section, results []*Result) {
	seen := citation.NewSet(sec.Citations...)

	var parts []string
	if sec.Context != "" {
		parts = append(parts, sec.Context)
	}

	for _, kind := range mergeOrder {
		for _, res := range results {
			if res == nil || res.Source != kind {
				continue
			}
			if res.Context != "" {
				parts = append(parts, res.Context)
			}
			for _, c := range res.Citations {
				if seen.Add(c) {
					sec.Citations = append(sec.Citations, c)
				}
			}
		}
	}

	sec.Context = strings.Join(parts, "\n\n")
}
