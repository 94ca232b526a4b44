package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/iWorld-y/deep_research/pkg/citation"
	"github.com/iWorld-y/deep_research/pkg/compiler"
	"github.com/iWorld-y/deep_research/pkg/engine"
	"github.com/iWorld-y/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/pkg/storage"
)

// ReportService 报告生成与查询服务
type ReportService struct {
	eng   *engine.Engine
	store *storage.Storage
	log   *log.Helper

	mu    sync.Mutex
	tasks map[string]*taskState
}

// taskState 异步生成任务的运行状态
type taskState struct {
	Status  string `json:"status"` // running / done / failed
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	JobID   string `json:"job_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewReportService(eng *engine.Engine, store *storage.Storage, logger log.Logger) *ReportService {
	return &ReportService{
		eng:   eng,
		store: store,
		log:   log.NewHelper(logger),
		tasks: make(map[string]*taskState),
	}
}

type createReportReq struct {
	Topic   string `json:"topic"`
	Kind    string `json:"kind"`
	ScopeID string `json:"scope_id"`
}

type updateReportReq struct {
	JobID       string `json:"job_id"`
	Instruction string `json:"instruction"`
	ScopeID     string `json:"scope_id"`
}

// CreateReport 发起全新报告生成，立即返回任务 ID
func (s *ReportService) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	taskID := s.launch(engine.RunOptions{
		Topic:   req.Topic,
		Kind:    model.ReportKind(req.Kind),
		ScopeID: req.ScopeID,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// UpdateReport 针对已有报告发起增量更新
func (s *ReportService) UpdateReport(w http.ResponseWriter, r *http.Request) {
	var req updateReportReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.JobID == "" || req.Instruction == "" {
		writeError(w, http.StatusBadRequest, "job_id and instruction are required")
		return
	}

	taskID := s.launch(engine.RunOptions{
		JobID:       req.JobID,
		Instruction: req.Instruction,
		ScopeID:     req.ScopeID,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// launch 在后台运行引擎，任务状态通过进度回调更新
func (s *ReportService) launch(opts engine.RunOptions) string {
	taskID := uuid.NewString()
	st := &taskState{Status: "running"}
	s.mu.Lock()
	s.tasks[taskID] = st
	s.mu.Unlock()

	opts.Progress = func(stage string, percent int) {
		s.mu.Lock()
		st.Stage = stage
		st.Percent = percent
		s.mu.Unlock()
	}

	go func() {
		job, err := s.eng.Run(context.Background(), opts)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.log.Errorf("报告生成失败: %v", err)
			st.Status = "failed"
			st.Error = err.Error()
			return
		}
		st.Status = "done"
		st.Percent = 100
		st.JobID = job.ID
	}()

	return taskID
}

// GetTask 查询异步任务进度
func (s *ReportService) GetTask(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	s.mu.Lock()
	st, ok := s.tasks[id]
	var cp taskState
	if ok {
		cp = *st
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

// ListReports 分页列出已持久化的报告
func (s *ReportService) ListReports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 {
		pageSize = 10
	}

	summaries, total, err := s.store.ListJobs(r.Context(), page, pageSize)
	if err != nil {
		s.log.Errorf("查询报告列表失败: %v", err)
		writeError(w, http.StatusInternalServerError, "list reports failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reports": summaries,
		"total":   total,
	})
}

type sectionReply struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

type citationReply struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type reportReply struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	Kind        string          `json:"kind"`
	Compiled    bool            `json:"compiled"`
	FinalReport string          `json:"final_report"`
	Sections    []sectionReply  `json:"sections"`
	Citations   []citationReply `json:"citations"`
}

// GetReport 查询单篇报告全文
func (s *ReportService) GetReport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := s.store.LoadJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		s.log.Errorf("查询报告失败: %v", err)
		writeError(w, http.StatusInternalServerError, "get report failed")
		return
	}

	reply := reportReply{
		ID:          job.ID,
		Topic:       job.Topic,
		Kind:        string(job.Kind),
		Compiled:    job.Compiled,
		FinalReport: job.FinalReport,
	}
	for _, sec := range job.Outline {
		reply.Sections = append(reply.Sections, sectionReply{
			ID:      sec.ID,
			Title:   sec.Title,
			Content: sec.Content,
			Done:    sec.Done,
		})
	}
	for _, c := range compiler.Citations(job.Outline) {
		kind, payload, err := citation.Marshal(c)
		if err != nil {
			continue
		}
		reply.Citations = append(reply.Citations, citationReply{Kind: kind, Data: payload})
	}
	writeJSON(w, http.StatusOK, reply)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
