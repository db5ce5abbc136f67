// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mythren/questweaver/internal/api"
	"github.com/mythren/questweaver/internal/auth"
	"github.com/mythren/questweaver/internal/config"
	"github.com/mythren/questweaver/internal/di"
	"github.com/mythren/questweaver/internal/services"
	"github.com/mythren/questweaver/internal/storage"
	"github.com/mythren/questweaver/internal/utils"
)

// httpServer 抽象HTTP服务器接口，便于测试时替换
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 应用程序实例
type App struct {
	config   *config.AppConfig
	router   http.Handler
	server   httpServer
	stopChan chan os.Signal
}

// 全局应用实例
var instance *App

// GetApp 获取应用单例
func GetApp() *App {
	if instance == nil {
		instance = &App{
			stopChan: make(chan os.Signal, 1),
		}
	}
	return instance
}

// GetConfig 获取应用配置
func (a *App) GetConfig() *config.AppConfig {
	return a.config
}

// GetDIContainer 获取依赖注入容器
func GetDIContainer() *di.Container {
	return di.GetContainer()
}

// IsDebugMode 检查是否处于调试模式
func IsDebugMode() bool {
	if instance == nil || instance.config == nil {
		return false
	}
	return instance.config.DebugMode
}

// Initialize 初始化应用：配置、日志、服务、路由
func Initialize() error {
	baseConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载基础配置失败: %w", err)
	}

	if err := createDirectories(baseConfig); err != nil {
		return fmt.Errorf("创建目录结构失败: %w", err)
	}

	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		return fmt.Errorf("初始化配置系统失败: %w", err)
	}

	cfg := config.GetCurrentConfig()
	GetApp().config = cfg

	if err := initLogger(cfg.LogDir); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	if err := InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	router, err := api.SetupRouter()
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}
	GetApp().router = router

	return nil
}

// initLogger 初始化日志系统，日志文件按天命名
func initLogger(logDir string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("server_%s.log", time.Now().Format("2006-01-02")))
	return utils.InitLogger(logFile)
}

// InitServices 按依赖顺序初始化所有服务并注册到容器
func InitServices() error {
	container := di.GetContainer()
	cfg := config.GetCurrentConfig()
	logger := utils.GetLogger()

	// 基础设施：文件存储
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}
	container.Register("storage", fileStorage)

	// 会话令牌配置：优先使用环境变量密钥，否则随机生成
	// （随机密钥意味着重启后旧令牌全部失效）
	tokenConfig, err := buildTokenConfig()
	if err != nil {
		return fmt.Errorf("初始化会话令牌配置失败: %w", err)
	}
	container.Register("token_config", tokenConfig)

	// 世界状态与任务
	worldService := services.NewWorldService(cfg.Game)
	container.Register("world", worldService)

	questService := services.NewQuestService()
	container.Register("quest", questService)

	// 回合管线组件
	promptBuilder := services.NewPromptBuilder(cfg.Game)
	container.Register("prompt", promptBuilder)

	parserService := services.NewParserService(cfg.Game)
	container.Register("parser", parserService)

	applierService := services.NewEventApplier(questService, cfg.Game)
	container.Register("applier", applierService)

	commandService := services.NewCommandService()
	container.Register("command", commandService)

	// LLM网关：没有可用配置时回退到未就绪模式，不阻止启动
	gatewayService, err := services.NewGatewayService()
	if err != nil {
		logger.Warn("LLM网关初始化失败，使用未就绪模式", map[string]interface{}{
			"error": err.Error(),
		})
		gatewayService = services.NewEmptyGatewayService()
	}
	container.Register("gateway", gatewayService)

	// 回合编排器
	turnService := services.NewTurnService(
		worldService,
		promptBuilder,
		gatewayService,
		parserService,
		applierService,
		commandService,
		questService,
		cfg.Game,
	)
	turnService.RegisterPhaseListener(func(sessionID string, phase services.TurnPhase) {
		api.BroadcastTurnPhase(sessionID, string(phase))
	})
	container.Register("turn", turnService)

	// 存档服务
	saveService := services.NewSaveService(fileStorage, worldService)
	container.Register("save", saveService)

	logger.Info("所有服务初始化完成", map[string]interface{}{
		"services": len(container.GetNames()),
	})

	return nil
}

// buildTokenConfig 构建会话令牌签名配置
func buildTokenConfig() (*auth.TokenConfig, error) {
	secret := []byte(os.Getenv("SESSION_TOKEN_SECRET"))
	if len(secret) == 0 {
		generated, err := auth.GenerateSecureKey(32)
		if err != nil {
			return nil, err
		}
		secret = generated
	}

	return &auth.TokenConfig{
		Secret:     secret,
		Expiration: 24 * time.Hour,
	}, nil
}

// createDirectories 创建应用所需的目录结构
func createDirectories(cfg *config.Config) error {
	dirs := []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "saves"),
		cfg.LogDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
	}

	return nil
}

// Run 启动HTTP服务器并等待停止信号
func Run() error {
	app := GetApp()
	logger := utils.GetLogger()

	if app.server == nil {
		if app.config == nil || app.router == nil {
			return fmt.Errorf("应用尚未初始化")
		}
		app.server = &http.Server{
			Addr:    ":" + app.config.Port,
			Handler: app.router,
		}
	}

	go func() {
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("启动服务器失败", map[string]interface{}{"error": err.Error()})
		}
	}()

	// 启动周期性指标上报
	metricsCtx, cancelMetrics := context.WithCancel(context.Background())
	defer cancelMetrics()
	go utils.NewTurnMetrics().StartMetricsCollection(metricsCtx)

	signal.Notify(app.stopChan, syscall.SIGINT, syscall.SIGTERM)
	<-app.stopChan

	logger.Info("收到停止信号，正在关闭服务器", nil)

	// 先排空在途回合，保证已启动的模型调用得到解决
	app.cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}

	logger.Info("服务器已优雅关闭", nil)
	return nil
}

// cleanup 停机前的资源清理
func (a *App) cleanup() {
	container := di.GetContainer()

	if turnService, ok := container.Get("turn").(*services.TurnService); ok && turnService != nil {
		turnService.Drain()
	}
}
