// Package model 定义菜单规划引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus 规划任务状态
type RunStatus string

const (
	RunQueued    RunStatus = "queued"    // 已入队
	RunRunning   RunStatus = "running"   // 求解中
	RunSucceeded RunStatus = "succeeded" // 已完成
	RunFailed    RunStatus = "failed"    // 失败
	RunCancelled RunStatus = "cancelled" // 超时或被取消，结果为当时的最优方案
)

// Finished 任务是否已结束
func (s RunStatus) Finished() bool {
	return s == RunSucceeded || s == RunFailed || s == RunCancelled
}

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JSONMap 用于存储 JSONB 数据
type JSONMap map[string]interface{}

// PlanRun 一次规划任务的记录
type PlanRun struct {
	BaseModel
	Status     RunStatus `json:"status" db:"status"`
	Solver     string    `json:"solver" db:"solver"`
	Seed       int64     `json:"seed" db:"seed"`
	Score      int64     `json:"score" db:"score"`
	DurationMs int64     `json:"duration_ms" db:"duration_ms"`
	Error      string    `json:"error,omitempty" db:"error"`
	Request    []byte    `json:"-" db:"request"`  // JSON 编码的请求
	Response   []byte    `json:"-" db:"response"` // JSON 编码的结果，未完成时为空
	Metadata   JSONMap   `json:"metadata,omitempty" db:"metadata"`
}

// NewPlanRun 创建排队中的任务记录
func NewPlanRun(id uuid.UUID, solver string, seed int64) *PlanRun {
	base := NewBaseModel()
	if id != uuid.Nil {
		base.ID = id
	}
	return &PlanRun{BaseModel: base, Status: RunQueued, Solver: solver, Seed: seed}
}

// Finish 记录结果并更新状态
func (r *PlanRun) Finish(status RunStatus, score int64, duration time.Duration, response []byte, err error) {
	r.Status = status
	r.Score = score
	r.DurationMs = duration.Milliseconds()
	r.Response = response
	if err != nil {
		r.Error = err.Error()
	}
	r.UpdatedAt = time.Now()
}
