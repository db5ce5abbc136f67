// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
	"fmt"
)

// 错误定义
var ErrUnknownProvider = errors.New("未知的AI提供者")

// GatewayErrorKind 网关故障分类，重试/降级策略据此决策
type GatewayErrorKind string

const (
	GatewayTimeout            GatewayErrorKind = "timeout"
	GatewayRateLimited        GatewayErrorKind = "rate_limited"
	GatewayServiceUnavailable GatewayErrorKind = "service_unavailable"
	GatewayAuthFailure        GatewayErrorKind = "auth_failure"
)

// GatewayError 外部生成服务返回的瞬态故障
// 网关自身不做重试，重试归回合编排器负责
type GatewayError struct {
	Kind       GatewayErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s (%s): %v", e.Kind, e.Provider, e.Err)
	}
	return fmt.Sprintf("gateway %s (%s)", e.Kind, e.Provider)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError 创建网关错误
func NewGatewayError(kind GatewayErrorKind, provider string, status int, err error) *GatewayError {
	return &GatewayError{Kind: kind, Provider: provider, StatusCode: status, Err: err}
}

// IsGatewayError 判断错误是否来自外部生成服务
func IsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// KindForStatus 按HTTP状态码归类网关故障
func KindForStatus(status int) GatewayErrorKind {
	switch {
	case status == 401 || status == 403:
		return GatewayAuthFailure
	case status == 429:
		return GatewayRateLimited
	default:
		return GatewayServiceUnavailable
	}
}

// 请求参数标准化
type CompletionRequest struct {
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	SchemaHint   string   `json:"schema_hint,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	Temperature  float32  `json:"temperature,omitempty"`
	Model        string   `json:"model,omitempty"`
	StopWords    []string `json:"stop_words,omitempty"`
}

// 响应结构标准化
type CompletionResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// Provider 定义所有LLM提供者必须实现的接口
// 对核心而言这是一个阻塞调用：超时由调用方的context控制
type Provider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 获取支持的模型列表
	GetSupportedModels() []string

	// 文本生成
	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// 注册表和工厂函数类型
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register 注册提供者工厂
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider 创建指定名称的提供者实例
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	provider := factory()
	err := provider.Initialize(config)
	return provider, err
}

// ListProviders 返回所有已注册的提供者名称
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
