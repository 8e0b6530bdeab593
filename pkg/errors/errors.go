// Package errors 提供统一的错误处理框架
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown       Code = "UNKNOWN"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeTimeout       Code = "TIMEOUT"

	// 规划引擎相关
	CodeConfig              Code = "CONFIG_ERROR"
	CodeInvalidSolution     Code = "INVALID_SOLUTION"
	CodeEmptyDomain         Code = "EMPTY_DOMAIN"
	CodeUnknownDataKey      Code = "UNKNOWN_DATA_KEY"
	CodeDuplicateDataKey    Code = "DUPLICATE_DATA_KEY"
	CodeMissingProfileRatio Code = "MISSING_PROFILE_RATIO"
	CodeInvalidInterval     Code = "INVALID_INTERVAL"

	// 异步任务相关
	CodeQueueFailed Code = "QUEUE_FAILED"

	// 数据相关
	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodeValidationFail Code = "VALIDATION_FAILED"
)

// AppError 应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// codeToHTTPStatus 错误码转HTTP状态码
func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidationFail, CodeConfig, CodeUnknownDataKey,
		CodeDuplicateDataKey, CodeMissingProfileRatio, CodeInvalidInterval:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeQueueFailed:
		return http.StatusServiceUnavailable
	case CodeInvalidSolution, CodeEmptyDomain:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Is 检查错误是否为特定类型
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode 获取错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// From 转换为 AppError，非 AppError 包装为内部错误
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternal, "内部错误")
}

// InvalidInput 创建输入无效错误
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason))
}

// NotFound 创建资源不存在错误
func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' 不存在", resource, id))
}

// Config 创建配置错误
func Config(format string, args ...interface{}) *AppError {
	return New(CodeConfig, fmt.Sprintf(format, args...))
}

// InvalidSolution 创建无效方案错误
func InvalidSolution(reason string) *AppError {
	return New(CodeInvalidSolution, "无效的菜单方案").WithDetails(reason)
}

// EmptyDomain 创建空定义域错误
func EmptyDomain(dishID, dishTypeID int64, reason string) *AppError {
	return New(CodeEmptyDomain, fmt.Sprintf("菜品 %d (菜品类型 %d) 定义域为空: %s", dishID, dishTypeID, reason)).
		WithField("dish_id", dishID).
		WithField("dish_type_id", dishTypeID)
}

// UnknownDataKey 创建未知数据键错误
func UnknownDataKey(key string) *AppError {
	return New(CodeUnknownDataKey, fmt.Sprintf("未知的数据键 '%s'", key))
}

// DuplicateDataKey 创建重复数据键错误
func DuplicateDataKey(key string) *AppError {
	return New(CodeDuplicateDataKey, fmt.Sprintf("数据键 '%s' 已存在", key))
}

// MissingProfileRatio 创建缺少用餐者系数错误
func MissingProfileRatio(profileID int64) *AppError {
	return New(CodeMissingProfileRatio, fmt.Sprintf("缺少用餐者 %d 的份量系数", profileID))
}

// InvalidInterval 创建区间错误
func InvalidInterval(min, max float64) *AppError {
	return New(CodeInvalidInterval, fmt.Sprintf("区间无效: 最小值 %g 大于最大值 %g", min, max))
}

// ValidationErrors 验证错误集合
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// ValidationError 单个验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "验证失败"
	}
	return fmt.Sprintf("验证失败: %s - %s", ve.Errors[0].Field, ve.Errors[0].Message)
}

// Add 添加验证错误
func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors 检查是否有错误
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError 转换为 AppError
func (ve *ValidationErrors) ToAppError() *AppError {
	err := New(CodeValidationFail, "验证失败")
	err.Fields = make(map[string]interface{})
	for _, e := range ve.Errors {
		err.Fields[e.Field] = e.Message
	}
	return err
}
