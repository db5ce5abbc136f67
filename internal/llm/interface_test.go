// internal/llm/interface_test.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestKindForStatus HTTP状态码到故障分类的映射
func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   GatewayErrorKind
	}{
		{401, GatewayAuthFailure},
		{403, GatewayAuthFailure},
		{429, GatewayRateLimited},
		{500, GatewayServiceUnavailable},
		{502, GatewayServiceUnavailable},
		{503, GatewayServiceUnavailable},
	}

	for _, tt := range tests {
		if got := KindForStatus(tt.status); got != tt.want {
			t.Errorf("状态码%d的分类不正确，期望%s，实际%s", tt.status, tt.want, got)
		}
	}
}

// TestGatewayErrorUnwrap 网关错误的包装与识别
func TestGatewayErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewGatewayError(GatewayTimeout, "openai", 0, cause)

	wrapped := fmt.Errorf("回合失败: %w", err)

	ge, ok := IsGatewayError(wrapped)
	if !ok {
		t.Fatal("包装后的网关错误应能被识别")
	}
	if ge.Kind != GatewayTimeout || ge.Provider != "openai" {
		t.Errorf("网关错误字段不正确: %+v", ge)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("网关错误应能解包到底层原因")
	}

	if _, ok := IsGatewayError(errors.New("plain")); ok {
		t.Error("普通错误不应被识别为网关错误")
	}
}

type registryTestProvider struct{}

func (p *registryTestProvider) Initialize(config map[string]string) error {
	if config["api_key"] == "" {
		return errors.New("缺少api_key")
	}
	return nil
}
func (p *registryTestProvider) GetName() string              { return "registry_test" }
func (p *registryTestProvider) GetSupportedModels() []string { return []string{"m1"} }
func (p *registryTestProvider) CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Text: "ok"}, nil
}

// TestProviderRegistry 提供者注册与工厂创建
func TestProviderRegistry(t *testing.T) {
	Register("registry_test", func() Provider { return &registryTestProvider{} })

	provider, err := GetProvider("registry_test", map[string]string{"api_key": "k"})
	if err != nil {
		t.Fatalf("创建已注册的提供者不应失败: %v", err)
	}
	if provider.GetName() != "registry_test" {
		t.Errorf("提供者名称不正确: %s", provider.GetName())
	}

	if _, err := GetProvider("no_such_provider", nil); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("未注册的提供者应返回ErrUnknownProvider，实际: %v", err)
	}

	// 初始化失败应透传错误
	if _, err := GetProvider("registry_test", map[string]string{}); err == nil {
		t.Error("初始化失败应返回错误")
	}
}
