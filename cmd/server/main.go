// cmd/server/main.go
package main

import (
	"fmt"
	"log"

	"github.com/mythren/questweaver/internal/app"
	"github.com/mythren/questweaver/internal/di"

	// 注册LLM提供者
	_ "github.com/mythren/questweaver/internal/llm/providers/anthropic"
	_ "github.com/mythren/questweaver/internal/llm/providers/openai"
)

func main() {
	log.Println("🚀 启动 QuestWeaver 服务器...")

	if err := app.Initialize(); err != nil {
		log.Fatalf("❌ 初始化应用失败: %v", err)
	}
	log.Println("✅ 应用初始化完成")

	if err := performHealthCheck(); err != nil {
		log.Printf("⚠️ 服务健康检查警告: %v", err)
	}

	cfg := app.GetApp().GetConfig()
	log.Printf("🌐 服务器启动在端口 %s", cfg.Port)
	log.Printf("🔗 访问地址: http://localhost:%s/api/status", cfg.Port)

	if err := app.Run(); err != nil {
		log.Fatalf("❌ 服务器运行失败: %v", err)
	}
}

// 健康检查函数
func performHealthCheck() error {
	container := di.GetContainer()

	// 检查关键服务是否已注册
	criticalServices := []string{"world", "turn", "gateway", "quest", "save"}

	for _, serviceName := range criticalServices {
		if service := container.Get(serviceName); service == nil {
			return fmt.Errorf("关键服务未注册: %s", serviceName)
		}
	}

	log.Println("✅ 服务健康检查通过")
	return nil
}
