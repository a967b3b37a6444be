// xweakbench 是 xweakcache 弱键缓存的并发负载工具。
//
// 用法:
//
//	xweakbench [选项]
//
// 选项:
//
//	-c, --config   YAML 负载配置文件路径（可选）
//	-w, --workers  并发 worker 数 (默认: 8)
//	-n, --ops      每阶段 Get 操作总数 (默认: 100000)
//	-k, --keys     每阶段存活 key 数 (默认: 256)
//	-p, --params   每 key 参数空间大小 (默认: 16)
//	    --phases   阶段数，每阶段结束丢弃全部 key 并等待回收 (默认: 3)
//	    --pin      软驻留 LRU 容量，0 表示禁用 (默认: 0)
//	-r, --report   结束时输出 OpenTelemetry 指标汇总
//
// 配置优先级: 命令行参数 > 配置文件 > 默认值。
//
// 负载模型:
//
//	每个阶段分配一批以 UUID 标记的 key，worker 并发执行 Get，
//	坐标由 xxhash 确定性派生；阶段结束后丢弃整批 key 的强引用，
//	循环触发 GC 并等待缓存经回收队列清空，验证 GC 驱动回收路径。
//
// 退出码:
//
//	0: 负载执行成功
//	1: 运行时失败
//	2: 参数错误（无效 flag、配置校验失败等）
//
// 示例:
//
//	xweakbench                              # 默认负载
//	xweakbench -w 32 -n 1000000             # 高并发负载
//	xweakbench -c workload.yaml --report    # 配置文件 + 指标汇总
//	xweakbench --pin 64                     # 启用软驻留
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// usageError 表示参数错误，映射到退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func main() {
	os.Exit(run(os.Args))
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xweakbench",
		Usage:   "xweakcache 弱键缓存并发负载工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML 负载配置文件路径",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "并发 worker 数",
				Value:   defaultWorkers,
			},
			&cli.IntFlag{
				Name:    "ops",
				Aliases: []string{"n"},
				Usage:   "每阶段 Get 操作总数",
				Value:   defaultOps,
			},
			&cli.IntFlag{
				Name:    "keys",
				Aliases: []string{"k"},
				Usage:   "每阶段存活 key 数",
				Value:   defaultKeys,
			},
			&cli.IntFlag{
				Name:    "params",
				Aliases: []string{"p"},
				Usage:   "每 key 参数空间大小",
				Value:   defaultParams,
			},
			&cli.IntFlag{
				Name:  "phases",
				Usage: "阶段数，每阶段结束丢弃全部 key 并等待回收",
				Value: defaultPhases,
			},
			&cli.IntFlag{
				Name:  "pin",
				Usage: "软驻留 LRU 容量，0 表示禁用",
				Value: 0,
			},
			&cli.BoolFlag{
				Name:    "report",
				Aliases: []string{"r"},
				Usage:   "结束时输出 OpenTelemetry 指标汇总",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return runWorkload(ctx, cfg, os.Stdout, cmd.Bool("report"))
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run(args []string) int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		// CLI 框架产生的参数错误（如未知 flag）也返回退出码 2，
		// 与文档契约"参数错误 → 退出码 2"保持一致。
		if isCLIUsageError(err) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

// isCLIUsageError 识别 urfave/cli 自身产生的参数解析错误。
func isCLIUsageError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "flag provided but not defined") ||
		strings.Contains(msg, "invalid value") ||
		strings.Contains(msg, "No help topic for")
}
