// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// GameConfig 叙事回合管线的调优参数，从环境变量解析
type GameConfig struct {
	// NPC记忆容量（每个NPC保留的对话轮数上限，FIFO淘汰）
	NPCMemoryCapacity int `env:"NPC_MEMORY_CAPACITY" envDefault:"20"`
	// 提示词中每个在场NPC包含的最近对话轮数
	PromptTurnsPerNPC int `env:"PROMPT_TURNS_PER_NPC" envDefault:"5"`
	// 提示词总预算（字符数）
	PromptBudget int `env:"PROMPT_BUDGET" envDefault:"4000"`
	// 单次外部生成调用的超时
	GatewayTimeoutSeconds int `env:"GATEWAY_TIMEOUT_SECONDS" envDefault:"30"`
	// 验证失败后的最大重试次数（超过则使用兜底叙述）
	MaxTurnRetries int `env:"MAX_TURN_RETRIES" envDefault:"2"`
	// NPC好感度上下界
	DispositionMin int `env:"DISPOSITION_MIN" envDefault:"-100"`
	DispositionMax int `env:"DISPOSITION_MAX" envDefault:"100"`
}

// Validate 校验调优参数的合法性
func (g *GameConfig) Validate() error {
	if g.NPCMemoryCapacity <= 0 {
		return fmt.Errorf("NPC_MEMORY_CAPACITY 必须为正数: %d", g.NPCMemoryCapacity)
	}
	if g.PromptBudget <= 0 {
		return fmt.Errorf("PROMPT_BUDGET 必须为正数: %d", g.PromptBudget)
	}
	if g.GatewayTimeoutSeconds <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT_SECONDS 必须为正数: %d", g.GatewayTimeoutSeconds)
	}
	if g.MaxTurnRetries < 0 {
		return fmt.Errorf("MAX_TURN_RETRIES 不能为负数: %d", g.MaxTurnRetries)
	}
	if g.DispositionMin >= g.DispositionMax {
		return fmt.Errorf("好感度边界无效: [%d, %d]", g.DispositionMin, g.DispositionMax)
	}
	return nil
}

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// LLM相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`

	// 游戏调优参数（不持久化到config.json，总是从环境变量解析）
	Game GameConfig `json:"-"`
}

// Config 存储应用基础配置
type Config struct {
	Port         string
	OpenAIAPIKey string
	AnthropicKey string
	LLMProvider  string
	DataDir      string
	LogDir       string
	DebugMode    bool
	Game         GameConfig
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:         getEnv("PORT", "8080"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		AnthropicKey: getEnv("ANTHROPIC_API_KEY", ""),
		LLMProvider:  getEnv("LLM_PROVIDER", "openai"),
		DataDir:      getEnvPath("DATA_DIR", "data"),
		LogDir:       getEnvPath("LOG_DIR", "logs"),
		DebugMode:    getEnvBool("DEBUG_MODE", true),
	}

	// 解析游戏调优参数
	if err := env.Parse(&config.Game); err != nil {
		return nil, fmt.Errorf("解析游戏调优参数失败: %w", err)
	}
	if err := config.Game.Validate(); err != nil {
		return nil, err
	}

	if config.OpenAIAPIKey == "" && config.AnthropicKey == "" {
		// 只记录警告，不返回错误：服务以"未就绪"模式启动
		log.Println("警告: 未设置任何LLM API密钥，需要通过配置接口设置后才能处理叙事回合")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// defaultLLMConfig 根据基础配置推导默认的LLM设置
func defaultLLMConfig(base *Config) (string, map[string]string) {
	switch base.LLMProvider {
	case "anthropic":
		return "anthropic", map[string]string{
			"api_key":       base.AnthropicKey,
			"default_model": "claude-3-5-haiku-latest",
		}
	default:
		return "openai", map[string]string{
			"api_key":       base.OpenAIAPIKey,
			"default_model": "gpt-4o-mini",
		}
	}
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	provider, llmConfig := defaultLLMConfig(baseConfig)
	currentConfig = &AppConfig{
		Port:        baseConfig.Port,
		DataDir:     baseConfig.DataDir,
		LogDir:      baseConfig.LogDir,
		DebugMode:   baseConfig.DebugMode,
		LLMProvider: provider,
		LLMConfig:   llmConfig,
		Game:        baseConfig.Game,
	}

	// 尝试从文件加载已保存的LLM配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 合并配置：保留文件中的LLM设置，基础配置和调优参数总是取最新值
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode
				savedConfig.Game = baseConfig.Game

				// 如果文件中没有API密钥，回落到环境变量
				if savedConfig.LLMConfig != nil && savedConfig.LLMConfig["api_key"] == "" {
					_, envLLM := defaultLLMConfig(baseConfig)
					savedConfig.LLMConfig["api_key"] = envLLM["api_key"]
				}

				currentConfig = &savedConfig
			}
		}
	}

	// 保存初始配置到文件
	return SaveConfig()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		provider, llmConfig := defaultLLMConfig(baseConfig)
		return &AppConfig{
			Port:        baseConfig.Port,
			DataDir:     baseConfig.DataDir,
			LogDir:      baseConfig.LogDir,
			DebugMode:   baseConfig.DebugMode,
			LLMProvider: provider,
			LLMConfig:   llmConfig,
			Game:        baseConfig.Game,
		}
	}

	// 返回配置的副本
	configCopy := *currentConfig
	return &configCopy
}

// UpdateLLMConfig 更新LLM配置
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = config

	return SaveConfig()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
