package update

import (
	"errors"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/iWorld-y/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/pkg/model"
)

// ErrNoMatch 指令与现有报告的任何章节都不匹配，调用方应退回全新生成
var ErrNoMatch = errors.New("no section matches the instruction")

// DefaultThreshold 相似度判定阈值。
// 低于该值认为指令不针对任何现有章节；包含关系直接记满分
const DefaultThreshold = 0.35

// Recognizer 更新识别器：为增量更新指令定位目标章节并生成种子查询
type Recognizer struct {
	Threshold float64
}

// New 创建识别器
func New() *Recognizer {
	return &Recognizer{Threshold: DefaultThreshold}
}

// Recognize 选出与指令意图最匹配的章节，并给出基于指令与该章节现有内容
// 差异的种子查询。只读：在迭代控制器真正重跑该章节前不改动任何章节。
// 并列时按大纲顺序取先出现者
func (r *Recognizer) Recognize(job *model.ReportJob, instruction string) (*model.Section, []string, error) {
	instr := normalize(instruction)
	if instr == "" {
		return nil, nil, ErrNoMatch
	}

	var best *model.Section
	var bestScore float64
	for _, sec := range job.Outline {
		score := sectionScore(instr, sec)
		if score > bestScore {
			bestScore = score
			best = sec
		}
	}

	if best == nil || bestScore < r.threshold() {
		return nil, nil, ErrNoMatch
	}

	logger.Log.Infof("更新指令命中章节 [%s] (相似度 %.2f)", best.Title, bestScore)
	return best, seedQueries(instruction, best), nil
}

func (r *Recognizer) threshold() float64 {
	if r.Threshold > 0 {
		return r.Threshold
	}
	return DefaultThreshold
}

// sectionScore 指令与章节的匹配度：标题/说明包含关系记满分，
// 否则取与标题、说明的编辑距离相似度的较大者
func sectionScore(instr string, sec *model.Section) float64 {
	title := normalize(sec.Title)
	desc := normalize(sec.Description)

	if title != "" && (strings.Contains(instr, title) || strings.Contains(title, instr)) {
		return 1.0
	}
	if desc != "" && strings.Contains(instr, desc) {
		return 1.0
	}

	score := levenshtein.Similarity(instr, title, nil)
	if desc != "" {
		if s := levenshtein.Similarity(instr, desc, nil); s > score {
			score = s
		}
	}
	return score
}

// seedQueries 差异化种子：取指令中未出现在章节现有内容里的词，
// 与章节标题拼成首轮查询，避免冷启动式的泛查询
func seedQueries(instruction string, sec *model.Section) []string {
	content := strings.ToLower(sec.Content)

	var fresh []string
	for _, tok := range strings.Fields(strings.ToLower(instruction)) {
		if !strings.Contains(content, tok) {
			fresh = append(fresh, tok)
		}
	}

	seeds := []string{strings.TrimSpace(instruction)}
	if len(fresh) > 0 {
		seeds = append(seeds, strings.TrimSpace(sec.Title+" "+strings.Join(fresh, " ")))
	}
	return seeds
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
