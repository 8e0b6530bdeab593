package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"参数无效", InvalidInput("dishes", "为空"), http.StatusBadRequest},
		{"未知数据键", UnknownDataKey("sugar"), http.StatusBadRequest},
		{"区间无效", InvalidInterval(3, 1), http.StatusBadRequest},
		{"不存在", NotFound("规划任务", "x"), http.StatusNotFound},
		{"定义域为空", EmptyDomain(1, 2, "没有食谱"), http.StatusUnprocessableEntity},
		{"队列失败", New(CodeQueueFailed, "发布失败"), http.StatusServiceUnavailable},
		{"内部错误", New(CodeInternal, "内部错误"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.want {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.want)
			}
		})
	}
}

func TestFrom(t *testing.T) {
	if From(nil) != nil {
		t.Error("From(nil) 应为 nil")
	}

	orig := NotFound("食谱", "7")
	wrapped := fmt.Errorf("加载失败: %w", orig)
	if got := From(wrapped); got != orig {
		t.Errorf("From 应取出被包装的 AppError, got %v", got)
	}

	plain := errors.New("boom")
	got := From(plain)
	if got.Code != CodeInternal || !errors.Is(got, plain) {
		t.Errorf("普通错误应包装为内部错误, got %v", got)
	}
}

func TestValidationErrorsToAppError(t *testing.T) {
	var ve ValidationErrors
	if ve.HasErrors() {
		t.Fatal("空集合不应有错误")
	}
	ve.Add("dishes[0].elements", "至少需要1项")
	ve.Add("main_profile_id", "必填")

	appErr := ve.ToAppError()
	if appErr.Code != CodeValidationFail {
		t.Errorf("Code = %s", appErr.Code)
	}
	if len(appErr.Fields) != 2 || appErr.Fields["main_profile_id"] != "必填" {
		t.Errorf("Fields = %v", appErr.Fields)
	}
	if !Is(appErr, CodeValidationFail) || GetCode(appErr) != CodeValidationFail {
		t.Error("Is/GetCode 应识别验证错误")
	}
}
