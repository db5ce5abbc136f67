// internal/services/gateway_service.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mythren/questweaver/internal/config"
	"github.com/mythren/questweaver/internal/llm"
	"github.com/mythren/questweaver/internal/utils"
)

// GatewayService 外部生成服务的薄边界
// 阻塞调用、配置化超时；自身不做重试，重试归回合编排器
type GatewayService struct {
	provider      llm.Provider
	providerName  string
	isReady       bool
	readyState    string
	defaultModel  string
	timeout       time.Duration
	providerMutex sync.RWMutex

	metrics *utils.TurnMetrics
}

// NewGatewayService 从当前配置创建网关服务
func NewGatewayService() (*GatewayService, error) {
	service := createBaseGatewayService()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "无法获取配置"
		return service, nil
	}

	service.timeout = time.Duration(cfg.Game.GatewayTimeoutSeconds) * time.Second

	if cfg.LLMProvider == "" || (cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] == "") {
		service.readyState = "API密钥未配置"
		return service, nil
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("初始化失败: %v", err)
		return service, nil // 返回未就绪服务而不是错误
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.defaultModel = cfg.LLMConfig["default_model"]
	service.isReady = true
	service.readyState = "Ready"

	return service, nil
}

// NewEmptyGatewayService 创建一个未就绪的网关服务作为后备方案
func NewEmptyGatewayService() *GatewayService {
	service := createBaseGatewayService()
	service.providerName = "empty"
	service.readyState = "待机模式 – 请先配置API密钥"
	return service
}

func createBaseGatewayService() *GatewayService {
	return &GatewayService{
		isReady:    false,
		readyState: "Uninitialized",
		timeout:    30 * time.Second,
		metrics:    utils.NewTurnMetrics(),
	}
}

// IsReady 返回服务是否已就绪
func (s *GatewayService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

// GetReadyState 返回服务就绪状态描述
func (s *GatewayService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// GetProviderName 返回当前提供者名称
func (s *GatewayService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// UpdateProvider 更新网关的提供者
func (s *GatewayService) UpdateProvider(providerName string, providerConfig map[string]string) error {
	provider, err := llm.GetProvider(providerName, providerConfig)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("配置失败: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.defaultModel = providerConfig["default_model"]
	s.isReady = true
	s.readyState = "Ready"

	return nil
}

// Generate 发起一次阻塞的生成调用
// 上下文载荷和schema提示由调用方组装；超时在此处统一施加
func (s *GatewayService) Generate(ctx context.Context, contextPayload, systemPrompt, schemaHint string) (string, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return "", fmt.Errorf("网关服务未就绪: %s", state)
	}
	provider := s.provider
	providerName := s.providerName
	model := s.defaultModel
	timeout := s.timeout
	s.providerMutex.RUnlock()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := llm.CompletionRequest{
		Prompt:       contextPayload,
		SystemPrompt: systemPrompt,
		SchemaHint:   schemaHint,
		Temperature:  0.7,
		Model:        model,
	}

	start := time.Now()
	resp, err := provider.CompleteText(callCtx, req)
	if err != nil {
		if ge, ok := llm.IsGatewayError(err); ok {
			s.metrics.RecordGatewayError(providerName, string(ge.Kind))
		}
		return "", err
	}

	s.metrics.RecordLLMRequest(providerName, resp.ModelName, resp.TokensUsed, time.Since(start))

	return resp.Text, nil
}
