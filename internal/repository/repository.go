// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
)

// ListFilter 列表查询过滤器
type ListFilter struct {
	Status   model.RunStatus `json:"status,omitempty"`
	Solver   string          `json:"solver,omitempty"`
	Offset   int             `json:"offset"`
	Limit    int             `json:"limit"`
	OrderDir string          `json:"order_dir,omitempty"` // asc/desc
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{
		Offset:   0,
		Limit:    20,
		OrderDir: "desc",
	}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset 设置偏移
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithStatus 设置状态过滤
func (f ListFilter) WithStatus(status model.RunStatus) ListFilter {
	f.Status = status
	return f
}

// where 返回 WHERE 子句及参数，参数从 $1 开始编号
func (f ListFilter) where() (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if f.Status != "" {
		args = append(args, string(f.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Solver != "" {
		args = append(args, f.Solver)
		conditions = append(conditions, fmt.Sprintf("solver = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// page 返回排序与分页子句
func (f ListFilter) page(argNum int) (string, []interface{}) {
	dir := "DESC"
	if strings.EqualFold(f.OrderDir, "asc") {
		dir = "ASC"
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf("ORDER BY created_at %s LIMIT $%d OFFSET $%d", dir, argNum, argNum+1),
		[]interface{}{limit, offset}
}

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}

// notFound 将 sql.ErrNoRows 转为 NOT_FOUND 错误
func notFound(err error, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, id)
	}
	return apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询"+resource+"失败")
}
