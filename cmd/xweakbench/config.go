package main

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"
)

// 负载参数默认值。
const (
	defaultWorkers = 8
	defaultOps     = 100000
	defaultKeys    = 256
	defaultParams  = 16
	defaultPhases  = 3
)

// workloadConfig 描述一次负载的全部参数。
type workloadConfig struct {
	// Workers 并发 worker 数。
	Workers int `koanf:"workers"`
	// Ops 每阶段 Get 操作总数。
	Ops int `koanf:"ops"`
	// Keys 每阶段存活 key 数。
	Keys int `koanf:"keys"`
	// Params 每 key 参数空间大小。
	Params int `koanf:"params"`
	// Phases 阶段数，每阶段结束丢弃全部 key 并等待回收。
	Phases int `koanf:"phases"`
	// Pin 软驻留 LRU 容量，0 表示禁用。
	Pin int `koanf:"pin"`
}

func defaultConfig() workloadConfig {
	return workloadConfig{
		Workers: defaultWorkers,
		Ops:     defaultOps,
		Keys:    defaultKeys,
		Params:  defaultParams,
		Phases:  defaultPhases,
	}
}

// validate 校验负载参数。
func (c workloadConfig) validate() error {
	if c.Workers <= 0 {
		return &usageError{msg: fmt.Sprintf("workers must be positive, got %d", c.Workers)}
	}
	if c.Ops <= 0 {
		return &usageError{msg: fmt.Sprintf("ops must be positive, got %d", c.Ops)}
	}
	if c.Keys <= 0 {
		return &usageError{msg: fmt.Sprintf("keys must be positive, got %d", c.Keys)}
	}
	if c.Params <= 0 {
		return &usageError{msg: fmt.Sprintf("params must be positive, got %d", c.Params)}
	}
	if c.Phases <= 0 {
		return &usageError{msg: fmt.Sprintf("phases must be positive, got %d", c.Phases)}
	}
	if c.Pin < 0 {
		return &usageError{msg: fmt.Sprintf("pin must be non-negative, got %d", c.Pin)}
	}
	return nil
}

// loadConfigBytes 将 YAML 字节数据覆盖到 cfg 上。
// 未出现的键保留 cfg 原值，实现"配置文件 > 默认值"的覆盖语义。
func loadConfigBytes(data []byte, cfg *workloadConfig) error {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return &usageError{msg: fmt.Sprintf("parse config: %v", err)}
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return &usageError{msg: fmt.Sprintf("unmarshal config: %v", err)}
	}
	return nil
}

// resolveConfig 按"命令行参数 > 配置文件 > 默认值"的优先级合成负载配置。
func resolveConfig(cmd *cli.Command) (workloadConfig, error) {
	cfg := defaultConfig()

	if path := cmd.String("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, &usageError{msg: fmt.Sprintf("read config: %v", err)}
		}
		if err := loadConfigBytes(data, &cfg); err != nil {
			return cfg, err
		}
	}

	// 仅显式传入的 flag 覆盖配置文件
	if cmd.IsSet("workers") {
		cfg.Workers = cmd.Int("workers")
	}
	if cmd.IsSet("ops") {
		cfg.Ops = cmd.Int("ops")
	}
	if cmd.IsSet("keys") {
		cfg.Keys = cmd.Int("keys")
	}
	if cmd.IsSet("params") {
		cfg.Params = cmd.Int("params")
	}
	if cmd.IsSet("phases") {
		cfg.Phases = cmd.Int("phases")
	}
	if cmd.IsSet("pin") {
		cfg.Pin = cmd.Int("pin")
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
