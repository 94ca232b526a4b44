package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/iWorld-y/deep_research/pkg/citation"
	"github.com/iWorld-y/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/pkg/model"
)

// ErrNotFound 任务不存在
var ErrNotFound = errors.New("report job not found")

// Storage 基于 PostgreSQL 的任务持久化
type Storage struct {
	db *sql.DB
}

// NewStorage 建立数据库连接并初始化表结构
func NewStorage(cfg config.DBConfig) (*Storage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS report_jobs (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			kind TEXT NOT NULL,
			mode TEXT NOT NULL,
			scope_id TEXT,
			final_report TEXT,
			compiled BOOLEAN DEFAULT FALSE,
			current_section INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS report_sections (
			id TEXT PRIMARY KEY,
			job_id TEXT REFERENCES report_jobs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			content TEXT,
			context TEXT,
			history TEXT,
			done BOOLEAN DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS report_citations (
			id SERIAL PRIMARY KEY,
			section_id TEXT REFERENCES report_sections(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			pos INTEGER NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// SaveJob 整体落库：任务级 upsert，章节与引用全量重写。
// 单事务提交，失败回滚，不会留下半写入状态
func (s *Storage) SaveJob(ctx context.Context, job *model.ReportJob) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	rollback := func(err error) error {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: %v", err, rerr)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO report_jobs (id, topic, kind, mode, scope_id, final_report, compiled, current_section, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			topic = EXCLUDED.topic,
			kind = EXCLUDED.kind,
			mode = EXCLUDED.mode,
			scope_id = EXCLUDED.scope_id,
			final_report = EXCLUDED.final_report,
			compiled = EXCLUDED.compiled,
			current_section = EXCLUDED.current_section`,
		job.ID, job.Topic, string(job.Kind), string(job.Mode), job.ScopeID,
		removeNullBytes(job.FinalReport), job.Compiled, job.CurrentSection, job.CreatedAt,
	); err != nil {
		return rollback(err)
	}

	// 章节全量重写：先清后插，避免大纲变化后的残留
	if _, err := tx.ExecContext(ctx, `DELETE FROM report_sections WHERE job_id = $1`, job.ID); err != nil {
		return rollback(err)
	}

	for idx, sec := range job.Outline {
		history, err := json.Marshal(sec.History)
		if err != nil {
			return rollback(err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO report_sections (id, job_id, idx, title, description, content, context, history, done)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			sec.ID, job.ID, idx, sec.Title, sec.Description,
			removeNullBytes(sec.Content), removeNullBytes(sec.Context), string(history), sec.Done,
		); err != nil {
			return rollback(err)
		}

		for pos, c := range sec.Citations {
			kind, payload, err := citation.Marshal(c)
			if err != nil {
				return rollback(err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO report_citations (section_id, kind, payload, pos)
				VALUES ($1, $2, $3, $4)`,
				sec.ID, kind, removeNullBytes(string(payload)), pos,
			); err != nil {
				return rollback(err)
			}
		}
	}

	return tx.Commit()
}

// LoadJob 加载任务及全部章节与引用
func (s *Storage) LoadJob(ctx context.Context, id string) (*model.ReportJob, error) {
	job := &model.ReportJob{}
	var kind, mode string
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT id, topic, kind, mode, scope_id, final_report, compiled, current_section, created_at
		FROM report_jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.Topic, &kind, &mode, &job.ScopeID, &job.FinalReport, &job.Compiled, &job.CurrentSection, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	job.Kind = model.ReportKind(kind)
	job.Mode = model.Mode(mode)
	job.CreatedAt = createdAt

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, content, context, history, done
		FROM report_sections WHERE job_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		sec := &model.Section{}
		var history string
		if err := rows.Scan(&sec.ID, &sec.Title, &sec.Description, &sec.Content, &sec.Context, &history, &sec.Done); err != nil {
			return nil, err
		}
		if history != "" {
			if err := json.Unmarshal([]byte(history), &sec.History); err != nil {
				return nil, fmt.Errorf("decode query history: %w", err)
			}
		}
		job.Outline = append(job.Outline, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sec := range job.Outline {
		if err := s.loadCitations(ctx, sec); err != nil {
			return nil, err
		}
	}

	return job, nil
}

func (s *Storage) loadCitations(ctx context.Context, sec *model.Section) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, payload FROM report_citations WHERE section_id = $1 ORDER BY pos`, sec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return err
		}
		c, err := citation.Unmarshal(kind, []byte(payload))
		if err != nil {
			return fmt.Errorf("decode citation: %w", err)
		}
		sec.Citations = append(sec.Citations, c)
	}
	return rows.Err()
}

// JobSummary 任务列表条目
type JobSummary struct {
	ID           string
	Topic        string
	Kind         string
	SectionCount int
	Compiled     bool
	CreatedAt    string
}

// ListJobs 按创建时间倒序分页列出任务
func (s *Storage) ListJobs(ctx context.Context, page, pageSize int) ([]*JobSummary, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	rows, err := s.db.QueryContext(ctx, `
		SELECT j.id, j.topic, j.kind, j.compiled, j.created_at, COUNT(s.id)
		FROM report_jobs j
		LEFT JOIN report_sections s ON s.job_id = j.id
		GROUP BY j.id, j.topic, j.kind, j.compiled, j.created_at
		ORDER BY j.created_at DESC
		LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var summaries []*JobSummary
	for rows.Next() {
		sum := &JobSummary{}
		var createdAt time.Time
		if err := rows.Scan(&sum.ID, &sum.Topic, &sum.Kind, &sum.Compiled, &createdAt, &sum.SectionCount); err != nil {
			return nil, 0, err
		}
		sum.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM report_jobs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	return summaries, total, nil
}

// removeNullBytes PostgreSQL 文本字段不支持 NULL 字节
func removeNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
