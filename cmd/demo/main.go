// cmd/demo/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mythren/questweaver/internal/app"
	"github.com/mythren/questweaver/internal/config"
	"github.com/mythren/questweaver/internal/di"
	"github.com/mythren/questweaver/internal/services"

	// 注册LLM提供者
	_ "github.com/mythren/questweaver/internal/llm/providers/anthropic"
	_ "github.com/mythren/questweaver/internal/llm/providers/openai"
)

func main() {
	fmt.Println("🎲 QuestWeaver Console")
	fmt.Println("======================")

	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ 加载基础配置失败: %v", err)
	}

	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("❌ 初始化配置系统失败: %v", err)
	}

	if err := app.InitServices(); err != nil {
		log.Fatalf("❌ 初始化服务失败: %v", err)
	}

	container := di.GetContainer()
	worldService := container.Get("world").(*services.WorldService)
	turnService := container.Get("turn").(*services.TurnService)
	gateway := container.Get("gateway").(*services.GatewayService)
	saveService := container.Get("save").(*services.SaveService)

	if !gateway.IsReady() {
		fmt.Println("⚠️  LLM网关未就绪：叙事指令不可用，机械指令仍然可用")
		fmt.Printf("   原因: %s\n", gateway.GetReadyState())
	}

	fmt.Print("输入角色名字（回车使用默认）: ")
	scanner := bufio.NewScanner(os.Stdin)
	playerName := ""
	if scanner.Scan() {
		playerName = strings.TrimSpace(scanner.Text())
	}

	session := worldService.CreateSession(playerName)
	fmt.Printf("\n✅ 会话已创建: %s\n", session.ID)
	printLocation(session)
	fmt.Println("\n指令示例: look / go deep_forest / inventory / journal / accept <quest>")
	fmt.Println("元指令: :save  :load  :quit")

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case ":quit", ":q", "quit", "exit":
			fmt.Println("👋 再见！")
			turnService.Drain()
			return

		case ":save":
			if _, err := saveService.Save(session); err != nil {
				fmt.Printf("❌ 存档失败: %v\n", err)
			} else {
				fmt.Println("💾 存档成功")
			}
			continue

		case ":load":
			restored, stale, err := saveService.Load(session.ID)
			if err != nil {
				fmt.Printf("❌ 读档失败: %v\n", err)
				continue
			}
			session = restored
			if stale {
				fmt.Println("⚠️  该存档落后于之前的内存进度")
			}
			fmt.Println("📂 存档已恢复")
			printLocation(session)
			continue
		}

		result, err := turnService.ProcessCommand(context.Background(), session.ID, input)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			continue
		}

		fmt.Println()
		fmt.Println(result.Narration)
		if result.Fallback {
			fmt.Println("  (叙事服务暂时不可用，世界状态未改变)")
		}
		for _, effect := range result.AppliedEffects {
			fmt.Printf("  · %s\n", effect)
		}
		fmt.Printf("  [世界版本 %d]\n", result.WorldVersion)
	}
}

// printLocation 打印当前位置概览
func printLocation(session *services.GameSession) {
	world := session.Snapshot()
	loc := world.CurrentLocationState()
	if loc == nil {
		return
	}

	fmt.Printf("\n📍 %s\n%s\n", loc.Name, loc.Description)

	npcs := world.NPCsAtLocation(loc.ID)
	if len(npcs) > 0 {
		names := make([]string, 0, len(npcs))
		for _, npc := range npcs {
			names = append(names, npc.Name)
		}
		fmt.Printf("在场: %s\n", strings.Join(names, ", "))
	}

	if len(loc.Exits) > 0 {
		fmt.Printf("出口: %s\n", strings.Join(loc.Exits, ", "))
	}
}
