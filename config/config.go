// Package config 读取yaml配置文件，命令行参数会覆盖其中的值
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fansqz/debugview/constants"
	e "github.com/fansqz/debugview/error"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend constants.BackendType `yaml:"backend"`
	DAP     DAPConfig             `yaml:"dap"`
	GDB     GDBConfig             `yaml:"gdb"`
	// Breakpoints 启动前按函数名设置的断点
	Breakpoints []string `yaml:"breakpoints"`

	// PollInterval 事件泵的运行间隔
	PollInterval time.Duration `yaml:"poll_interval"`
	// RequestTimeout 单个引擎请求的超时时间
	RequestTimeout time.Duration `yaml:"request_timeout"`

	MaxEventsPerTick int `yaml:"max_events_per_tick"`
	MaxDrainChunks   int `yaml:"max_drain_chunks"`
	DrainChunkSize   int `yaml:"drain_chunk_size"`
	// OutputHistory 输出面板保留的文本段数
	OutputHistory int `yaml:"output_history"`

	// MaxValueDepth 变量树展开的最大深度
	MaxValueDepth int `yaml:"max_value_depth"`
	// MaxChildren 每个变量最多展示的子节点数
	MaxChildren int `yaml:"max_children"`
	// DisassemblyWindow pc附近反汇编的指令数
	DisassemblyWindow int `yaml:"disassembly_window"`

	Log LogConfig `yaml:"log"`
}

type DAPConfig struct {
	// Command 调试适配器的启动命令
	Command   []string `yaml:"command"`
	AdapterID string   `yaml:"adapter_id"`
	// LaunchArguments 合并到launch请求中的适配器私有参数
	LaunchArguments map[string]interface{} `yaml:"launch_arguments"`
}

type GDBConfig struct {
	// Command gdb及其额外参数，--interpreter=mi2和被调试程序的--tty会自动追加
	Command []string `yaml:"command"`
}

type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Backend: constants.BackendDAP,
		DAP: DAPConfig{
			Command:   []string{"lldb-dap"},
			AdapterID: "lldb-dap",
		},
		GDB: GDBConfig{
			Command: []string{"gdb"},
		},
		Breakpoints:       []string{"main"},
		PollInterval:      50 * time.Millisecond,
		RequestTimeout:    10 * time.Second,
		MaxEventsPerTick:  64,
		MaxDrainChunks:    16,
		DrainChunkSize:    1024,
		OutputHistory:     4096,
		MaxValueDepth:     3,
		MaxChildren:       64,
		DisassemblyWindow: 64,
		Log: LogConfig{
			Path:  DefaultLogPath(),
			Level: "info",
		},
	}
}

// DefaultPath 默认配置文件路径 $XDG_CONFIG_HOME/debugview/config.yaml
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "debugview", "config.yaml")
}

// DefaultLogPath 默认日志路径 $XDG_STATE_HOME/debugview/debugview.log
func DefaultLogPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "debugview", "debugview.log")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "debugview.log")
	}
	return filepath.Join(home, ".local", "state", "debugview", "debugview.log")
}

// Load 读取配置文件并填充默认值
// path为空时读取默认路径，默认路径的文件不存在不算错误
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	config := Default()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", e.ErrInvalidConfig, path, err)
	}
	if err = config.Normalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// Normalize 校验配置，把未设置的值填为默认值
func (c *Config) Normalize() error {
	defaults := Default()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.Backend != constants.BackendDAP && c.Backend != constants.BackendGDB {
		return fmt.Errorf("%w: unknown backend %q", e.ErrInvalidConfig, c.Backend)
	}
	if len(c.DAP.Command) == 0 {
		c.DAP.Command = defaults.DAP.Command
	}
	if c.DAP.AdapterID == "" {
		c.DAP.AdapterID = defaults.DAP.AdapterID
	}
	if len(c.GDB.Command) == 0 {
		c.GDB.Command = defaults.GDB.Command
	}

	durations := []struct {
		name  string
		value *time.Duration
		def   time.Duration
	}{
		{"poll_interval", &c.PollInterval, defaults.PollInterval},
		{"request_timeout", &c.RequestTimeout, defaults.RequestTimeout},
	}
	for _, d := range durations {
		if *d.value < 0 {
			return fmt.Errorf("%w: %s must not be negative", e.ErrInvalidConfig, d.name)
		}
		if *d.value == 0 {
			*d.value = d.def
		}
	}

	limits := []struct {
		name  string
		value *int
		def   int
	}{
		{"max_events_per_tick", &c.MaxEventsPerTick, defaults.MaxEventsPerTick},
		{"max_drain_chunks", &c.MaxDrainChunks, defaults.MaxDrainChunks},
		{"drain_chunk_size", &c.DrainChunkSize, defaults.DrainChunkSize},
		{"output_history", &c.OutputHistory, defaults.OutputHistory},
		{"max_value_depth", &c.MaxValueDepth, defaults.MaxValueDepth},
		{"max_children", &c.MaxChildren, defaults.MaxChildren},
		{"disassembly_window", &c.DisassemblyWindow, defaults.DisassemblyWindow},
	}
	for _, l := range limits {
		if *l.value < 0 {
			return fmt.Errorf("%w: %s must not be negative", e.ErrInvalidConfig, l.name)
		}
		if *l.value == 0 {
			*l.value = l.def
		}
	}

	if c.Log.Path == "" {
		c.Log.Path = defaults.Log.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", e.ErrInvalidConfig, err)
	}
	return nil
}
