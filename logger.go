package main

import (
	"os"
	"path/filepath"

	"github.com/fansqz/debugview/config"
	"github.com/fansqz/debugview/utils"
	"github.com/sirupsen/logrus"
)

// sessionHook 给每条日志加上会话id，多次运行写入同一个日志文件时便于区分
type sessionHook struct {
	id string
}

func (h *sessionHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *sessionHook) Fire(entry *logrus.Entry) error {
	entry.Data["session"] = h.id
	return nil
}

// SetupLogger 界面占用了终端，日志写入文件
func SetupLogger(cfg config.LogConfig) (func(), error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	logFile, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logrus.SetOutput(logFile)
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	logrus.AddHook(&sessionHook{id: utils.GetSessionID()})
	return func() {
		_ = logFile.Close()
	}, nil
}
