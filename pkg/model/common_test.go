package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewBaseModel(t *testing.T) {
	base := NewBaseModel()

	if base.ID == uuid.Nil {
		t.Error("ID should not be empty")
	}
	if base.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
	if base.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should not be zero")
	}
}

func TestRunStatusFinished(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   bool
	}{
		{RunQueued, false},
		{RunRunning, false},
		{RunSucceeded, true},
		{RunFailed, true},
		{RunCancelled, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Finished(); got != tt.want {
				t.Errorf("Finished() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanRun(t *testing.T) {
	id := uuid.New()
	run := NewPlanRun(id, "darwin", 7)
	if run.ID != id || run.Status != RunQueued {
		t.Fatalf("NewPlanRun() = %+v", run)
	}

	run.Finish(RunFailed, 120, 1500*time.Millisecond, nil, errors.New("超时"))
	if run.Status != RunFailed || run.Score != 120 || run.DurationMs != 1500 {
		t.Errorf("Finish() 未更新字段: %+v", run)
	}
	if run.Error != "超时" {
		t.Errorf("Error = %q", run.Error)
	}

	if other := NewPlanRun(uuid.Nil, "naive", 0); other.ID == uuid.Nil {
		t.Error("未指定ID时应自动生成")
	}
}
