// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"

	// 回合管线错误类型（模型输出或外部服务导致）
	ErrorTypeGateway           ErrorType = "gateway_error"
	ErrorTypeParse             ErrorType = "parse_error"
	ErrorTypeReference         ErrorType = "reference_error"
	ErrorTypeIllegalTransition ErrorType = "illegal_transition"
	ErrorTypePersistence       ErrorType = "persistence_error"
	ErrorTypeConfiguration     ErrorType = "configuration_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewParseError 模型原始输出无法解析为结构化效果提案
func NewParseError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeParse, message, originalError)
}

// NewReferenceError 提案引用了世界状态中不存在的实体
func NewReferenceError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeReference, message, originalError)
}

// NewIllegalTransitionError 任务状态机不允许的转移
func NewIllegalTransitionError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeIllegalTransition, message, originalError)
}

// NewPersistenceError 存档读写失败（非致命，内存状态仍然有效）
func NewPersistenceError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypePersistence, message, originalError)
}

// NewConfigurationError 配置缺失或无效（启动时致命）
func NewConfigurationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConfiguration, message, originalError)
}

func isType(err error, t ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == t
	}
	return false
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsConflictError 检查是否为冲突错误
func IsConflictError(err error) bool { return isType(err, ErrorTypeConflict) }

// IsParseError 检查是否为解析错误
func IsParseError(err error) bool { return isType(err, ErrorTypeParse) }

// IsReferenceError 检查是否为引用错误
func IsReferenceError(err error) bool { return isType(err, ErrorTypeReference) }

// IsIllegalTransitionError 检查是否为非法任务转移错误
func IsIllegalTransitionError(err error) bool { return isType(err, ErrorTypeIllegalTransition) }

// IsPersistenceError 检查是否为存档错误
func IsPersistenceError(err error) bool { return isType(err, ErrorTypePersistence) }

// IsConfigurationError 检查是否为配置错误
func IsConfigurationError(err error) bool { return isType(err, ErrorTypeConfiguration) }

// IsHardValidationFailure 判断错误是否属于需要整体拒绝提案的硬错误
// （解析失败、未知引用、非法任务转移；数值越界只做钳制，不在此列）
func IsHardValidationFailure(err error) bool {
	return IsParseError(err) || IsReferenceError(err) || IsIllegalTransitionError(err)
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeGateway:
		return "GATEWAY_ERROR"
	case ErrorTypeParse:
		return "PARSE_ERROR"
	case ErrorTypeReference:
		return "REFERENCE_ERROR"
	case ErrorTypeIllegalTransition:
		return "ILLEGAL_TRANSITION"
	case ErrorTypePersistence:
		return "PERSISTENCE_ERROR"
	case ErrorTypeConfiguration:
		return "CONFIGURATION_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
