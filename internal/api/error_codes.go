// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorUnauthorized  = "UNAUTHORIZED"

	// 会话相关错误
	ErrorSessionNotFound = "SESSION_NOT_FOUND"
	ErrorTurnInProgress  = "TURN_IN_PROGRESS"

	// 任务相关错误
	ErrorQuestNotFound     = "QUEST_NOT_FOUND"
	ErrorIllegalTransition = "ILLEGAL_TRANSITION"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"

	// 存档相关错误
	ErrorSaveFailed   = "SAVE_FAILED"
	ErrorLoadFailed   = "LOAD_FAILED"
	ErrorSaveNotFound = "SAVE_NOT_FOUND"
)
