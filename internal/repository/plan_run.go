package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
)

// PlanRunRepository 规划任务仓储
type PlanRunRepository struct {
	db DB
}

// NewPlanRunRepository 创建规划任务仓储
func NewPlanRunRepository(db DB) *PlanRunRepository {
	return &PlanRunRepository{db: db}
}

const planRunColumns = `id, status, solver, seed, score, duration_ms, error,
	request, response, metadata, created_at, updated_at`

// Save 写入任务记录，已存在时更新状态与结果
func (r *PlanRunRepository) Save(ctx context.Context, run *model.PlanRun) error {
	metadataJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("序列化任务元数据失败: %w", err)
	}

	query := `
		INSERT INTO plan_runs (` + planRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, score = EXCLUDED.score, duration_ms = EXCLUDED.duration_ms,
			error = EXCLUDED.error, response = EXCLUDED.response, metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		run.ID, string(run.Status), run.Solver, run.Seed, run.Score, run.DurationMs, run.Error,
		nullJSON(run.Request), nullJSON(run.Response), metadataJSON, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "保存规划任务失败").WithField("run_id", run.ID.String())
	}
	return nil
}

// Get 根据ID获取任务
func (r *PlanRunRepository) Get(ctx context.Context, id uuid.UUID) (*model.PlanRun, error) {
	query := `SELECT ` + planRunColumns + ` FROM plan_runs WHERE id = $1`
	run, err := scanPlanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "规划任务", id.String())
	}
	return run, nil
}

// List 列出任务，返回当前页与总数
func (r *PlanRunRepository) List(ctx context.Context, filter ListFilter) ([]*model.PlanRun, int, error) {
	where, args := filter.where()

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plan_runs "+where, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "统计规划任务失败")
	}

	page, pageArgs := filter.page(len(args) + 1)
	query := fmt.Sprintf("SELECT %s FROM plan_runs %s %s", planRunColumns, where, page)
	rows, err := r.db.QueryContext(ctx, query, append(args, pageArgs...)...)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询规划任务失败")
	}
	defer rows.Close()

	var runs []*model.PlanRun
	for rows.Next() {
		run, err := scanPlanRun(rows)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取规划任务失败")
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

func scanPlanRun(s Scanner) (*model.PlanRun, error) {
	var (
		run          model.PlanRun
		status       string
		metadataJSON []byte
	)
	err := s.Scan(&run.ID, &status, &run.Solver, &run.Seed, &run.Score, &run.DurationMs, &run.Error,
		&run.Request, &run.Response, &metadataJSON, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &run.Metadata); err != nil {
			return nil, fmt.Errorf("解析任务元数据失败: %w", err)
		}
	}
	return &run, nil
}

// nullJSON 空内容写为 NULL
func nullJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return data
}
