package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LoggerOptions 日志配置
type LoggerOptions struct {
	Level     string
	Path      string // 非空时同时写入文件
	Component string // 写入每条日志的 component 字段
}

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger 设置全局 slog；返回的 Closer 用于关闭日志文件（未配置文件时为 nil）
func SetupLogger(opts LoggerOptions) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer
		err    error
	)
	if opts.Path != "" {
		if mkErr := os.MkdirAll(filepath.Dir(opts.Path), 0o755); mkErr != nil {
			err = fmt.Errorf("创建日志目录失败: %w", mkErr)
		} else if f, openErr := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); openErr != nil {
			err = fmt.Errorf("打开日志文件失败: %w", openErr)
		} else {
			w = io.MultiWriter(os.Stdout, f)
			closer = f
		}
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	})
	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	slog.SetDefault(logger)

	if err != nil {
		// 文件不可用时仍保留标准输出日志
		slog.Warn("日志文件不可用，仅输出到标准输出", "path", opts.Path, "error", err)
	}
	return closer, err
}
