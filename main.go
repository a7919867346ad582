package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fansqz/debugview/config"
	"github.com/fansqz/debugview/constants"
	"github.com/fansqz/debugview/debugger"
	"github.com/fansqz/debugview/debugger/dap_debugger"
	"github.com/fansqz/debugview/debugger/gdb_debugger"
	e "github.com/fansqz/debugview/error"
	"github.com/fansqz/debugview/pump"
	"github.com/fansqz/debugview/ui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// 定义版本号
const Version = "2.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flags 命令行参数，设置了的参数覆盖配置文件
type flags struct {
	configPath   string
	backend      string
	adapter      string
	gdb          string
	breakpoints  []string
	pollInterval time.Duration
	logPath      string
	logLevel     string
	version      bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "debugview [flags] <executable> [<arg>...]",
		Short:         "Terminal front-end for native debuggers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.version {
				fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", Version)
				return nil
			}
			if len(args) == 0 {
				return e.ErrNoExecutable
			}
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, args[0], args[1:])
		},
	}
	// 可执行文件之后的参数全部交给被调试程序
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/debugview/config.yaml)")
	cmd.Flags().StringVar(&f.backend, "backend", "", "Debugger backend: dap or gdb")
	cmd.Flags().StringVar(&f.adapter, "adapter", "", "Debug adapter command line, e.g. \"dlv dap\"")
	cmd.Flags().StringVar(&f.gdb, "gdb", "", "Path to the gdb executable")
	cmd.Flags().StringArrayVar(&f.breakpoints, "break", nil, "Function breakpoint, repeatable (default main)")
	cmd.Flags().DurationVar(&f.pollInterval, "poll-interval", 0, "Event pump interval")
	cmd.Flags().StringVar(&f.logPath, "log", "", "Log file path")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level")
	cmd.Flags().BoolVar(&f.version, "version", false, "Show the version number")
	return cmd
}

// loadConfig 读取配置文件，再用命令行参数覆盖
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("backend") {
		cfg.Backend = constants.BackendType(f.backend)
	}
	if changed("adapter") {
		cfg.DAP.Command = strings.Fields(f.adapter)
	}
	if changed("gdb") && f.gdb != "" {
		command := append([]string{}, cfg.GDB.Command...)
		if len(command) == 0 {
			command = config.Default().GDB.Command
		}
		command[0] = f.gdb
		cfg.GDB.Command = command
	}
	if changed("break") {
		cfg.Breakpoints = f.breakpoints
	}
	if changed("poll-interval") {
		cfg.PollInterval = f.pollInterval
	}
	if changed("log") {
		cfg.Log.Path = f.logPath
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if err = cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDebugger 创建调试引擎
func createDebugger(cfg *config.Config) (debugger.Debugger, error) {
	switch cfg.Backend {
	case constants.BackendDAP:
		return dap_debugger.NewDAPDebugger(&dap_debugger.Option{
			Command:           cfg.DAP.Command,
			AdapterID:         cfg.DAP.AdapterID,
			LaunchArguments:   cfg.DAP.LaunchArguments,
			MaxValueDepth:     cfg.MaxValueDepth,
			MaxChildren:       cfg.MaxChildren,
			DisassemblyWindow: cfg.DisassemblyWindow,
		}), nil
	case constants.BackendGDB:
		return gdb_debugger.NewGDBDebugger(&gdb_debugger.Option{
			Command:           cfg.GDB.Command,
			MaxValueDepth:     cfg.MaxValueDepth,
			MaxChildren:       cfg.MaxChildren,
			DisassemblyWindow: cfg.DisassemblyWindow,
		}), nil
	}
	return nil, fmt.Errorf("%w: %s", e.ErrBackendNotSupported, cfg.Backend)
}

func run(ctx context.Context, cfg *config.Config, execFile string, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	// 启动日志
	closeLogger, err := SetupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLogger()

	execFile, err = filepath.Abs(execFile)
	if err != nil {
		return err
	}
	if _, err = os.Stat(execFile); err != nil {
		return fmt.Errorf("%w: %v", e.ErrLaunchFailed, err)
	}
	// 界面需要终端，否则启动了调试器也无法交互
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return e.ErrNotATerminal
	}
	workPath, err := os.Getwd()
	if err != nil {
		return err
	}

	d, err := createDebugger(cfg)
	if err != nil {
		return err
	}
	logrus.Infof("[main] launch %s with %s backend, args = %v", execFile, cfg.Backend, args)
	info, err := d.Launch(ctx, &debugger.LaunchOption{
		ExecFile:       execFile,
		Args:           args,
		WorkPath:       workPath,
		Breakpoints:    cfg.Breakpoints,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		logrus.Errorf("[main] launch fail, err = %v", err)
		terminate(d)
		return err
	}

	app := ui.NewApp(d, cfg.OutputHistory)
	app.SetProcess(cfg.Backend, info)
	p := pump.New(d, app, pump.Config{
		MaxEventsPerTick: cfg.MaxEventsPerTick,
		MaxDrainChunks:   cfg.MaxDrainChunks,
		DrainChunkSize:   cfg.DrainChunkSize,
	})
	if err = ui.Run(ctx, ui.NewModel(ctx, d, app, p, cfg.PollInterval)); err != nil {
		logrus.Errorf("[main] ui exit, err = %v", err)
		terminate(d)
		return err
	}
	return nil
}

func terminate(d debugger.Debugger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Terminate(ctx); err != nil {
		logrus.Warnf("[main] terminate fail, err = %v", err)
	}
}
