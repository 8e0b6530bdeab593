package repository

import (
	"database/sql"
	"reflect"
	"testing"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
)

func TestListFilterWhere(t *testing.T) {
	tests := []struct {
		name      string
		filter    ListFilter
		wantWhere string
		wantArgs  []interface{}
	}{
		{"无条件", DefaultListFilter(), "", nil},
		{"按状态", DefaultListFilter().WithStatus(model.RunFailed), "WHERE status = $1", []interface{}{"failed"}},
		{"状态与求解器", ListFilter{Status: model.RunQueued, Solver: "darwin"},
			"WHERE status = $1 AND solver = $2", []interface{}{"queued", "darwin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := tt.filter.where()
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestListFilterPage(t *testing.T) {
	tests := []struct {
		name     string
		filter   ListFilter
		argNum   int
		wantPage string
		wantArgs []interface{}
	}{
		{"默认", DefaultListFilter(), 1, "ORDER BY created_at DESC LIMIT $1 OFFSET $2", []interface{}{20, 0}},
		{"升序", ListFilter{OrderDir: "ASC", Limit: 5, Offset: 10}, 3, "ORDER BY created_at ASC LIMIT $3 OFFSET $4", []interface{}{5, 10}},
		{"超出上限", DefaultListFilter().WithLimit(1000).WithOffset(-3), 1, "ORDER BY created_at DESC LIMIT $1 OFFSET $2", []interface{}{20, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, args := tt.filter.page(tt.argNum)
			if page != tt.wantPage {
				t.Errorf("page = %q, want %q", page, tt.wantPage)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	if err := notFound(sql.ErrNoRows, "规划任务", "x"); !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("notFound(ErrNoRows) = %v", err)
	}
	if err := notFound(sql.ErrConnDone, "规划任务", "x"); !errors.Is(err, errors.CodeDatabaseError) {
		t.Errorf("notFound(ErrConnDone) = %v", err)
	}
}

func TestSortedIDs(t *testing.T) {
	got := sortedIDs([]int64{5, 1, 3, 1, 5})
	if want := []int64{1, 3, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("sortedIDs() = %v, want %v", got, want)
	}
	if sortedIDs(nil) != nil {
		t.Error("空输入应返回 nil")
	}
}
