// Package main 是 DayPlanner 的 CLI 入口
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/KodaTao/DayPlanner/pkg/chassis"
	"github.com/KodaTao/DayPlanner/pkg/observability"
	"github.com/KodaTao/DayPlanner/pkg/server"
)

// version 由构建时 -ldflags 注入
var version = "v0.1.0"

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "planner",
		Short: "DayPlanner - turn a plain-language request into a schedule",
		Long: `DayPlanner forwards a plain-language planning request to a chat completion
API and returns the model's schedule as JSON.`,
		SilenceUsage: true,
	}

	// 全局 flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	// 添加子命令
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// serveCmd 启动 HTTP 服务器
func serveCmd() *cobra.Command {
	var port int
	var host string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Start the DayPlanner HTTP server serving the web page and the schedule API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 加载配置
			config, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			// 命令行参数覆盖配置
			if port != 0 {
				config.Server.Port = port
			}
			if host != "" {
				config.Server.Host = host
			}

			// 创建应用
			app := chassis.New(chassis.WithConfig(*config))

			// 初始化
			if err := app.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}

			// 创建 HTTP 服务器
			srv := server.NewServer(app.GetPlanner(), &server.ServerConfig{
				Host:           config.Server.Host,
				Port:           config.Server.Port,
				Mode:           config.Server.Mode,
				CORSOrigins:    config.Server.CORSOrigins,
				MetricsEnabled: config.Metrics.Enabled,
				MetricsPath:    config.Metrics.Path,
			})

			// 优雅关闭
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Run()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				app.Shutdown()
				return err
			case <-sigCh:
				observability.Info("Received shutdown signal")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				observability.Error("HTTP server shutdown failed", "error", err)
			}
			return app.Shutdown()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Server port (default 5000)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Server host (default 0.0.0.0)")

	return cmd
}

// generateCmd 不启动服务器，直接生成一次日程
func generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a schedule once and print the JSON envelope",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			config.Telegram.Enabled = false

			// 日志写到 stderr，stdout 只输出结果
			if config.Log.Output == "" || config.Log.Output == "stdout" {
				config.Log.Output = "stderr"
			}

			app := chassis.New(chassis.WithConfig(*config))
			if err := app.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer app.Shutdown()

			resp, err := app.GetPlanner().Generate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			return enc.Encode(resp)
		},
	}
}

// versionCmd 显示版本信息
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "DayPlanner "+version)
			fmt.Fprintln(cmd.OutOrStdout(), "Plain-language schedule generation backed by a chat completion API")
		},
	}
}

// loadConfig 加载配置文件
// 优先级：环境变量 > 配置文件 > 默认值；.env 文件中的变量会先注入环境
func loadConfig() (*chassis.Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// 设置默认值
	defaults := chassis.DefaultConfig()
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.mode", defaults.Server.Mode)
	v.SetDefault("server.cors_origins", defaults.Server.CORSOrigins)

	v.SetDefault("llm.provider", defaults.LLM.Provider)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	v.SetDefault("llm.model", defaults.LLM.Model)
	v.SetDefault("llm.timeout", defaults.LLM.Timeout)
	v.SetDefault("llm.max_tokens", defaults.LLM.MaxTokens)
	v.SetDefault("llm.temperature", defaults.LLM.Temperature)
	v.SetDefault("llm.credential.source", defaults.LLM.Credential.Source)
	v.SetDefault("llm.credential.env", defaults.LLM.Credential.Env)
	v.SetDefault("llm.credential.file", defaults.LLM.Credential.File)

	v.SetDefault("prompt.schema", defaults.Prompt.Schema)
	v.SetDefault("prompt.year", defaults.Prompt.Year)
	v.SetDefault("prompt.template_file", "")

	v.SetDefault("validation.enabled", defaults.Validation.Enabled)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("log.output", defaults.Log.Output)
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size_mb", defaults.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", defaults.Log.MaxBackups)
	v.SetDefault("log.max_age_days", defaults.Log.MaxAgeDays)

	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.path", defaults.Metrics.Path)

	v.SetDefault("telegram.enabled", defaults.Telegram.Enabled)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.request_timeout", defaults.Telegram.RequestTimeout)

	// 配置文件
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.dayplanner")
	}

	// 环境变量，例如 DP_SERVER_PORT、DP_LLM_CREDENTIAL_SOURCE
	v.SetEnvPrefix("DP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件（如果存在）
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// 配置文件不存在时使用默认值
	}

	// 解析配置
	config := &chassis.Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	return config, nil
}
