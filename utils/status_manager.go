package utils

import (
	"sync"

	"github.com/fansqz/debugview/constants"
)

// StatusManager 记录被调试进程的状态
// 状态只由引擎事件驱动；终止标记只会被设置一次
type StatusManager struct {
	lock     sync.RWMutex
	status   constants.ProcessState
	terminal bool
}

func NewStatusManager() *StatusManager {
	return &StatusManager{
		status: constants.StateInvalid,
	}
}

// Set 更新状态
func (s *StatusManager) Set(status constants.ProcessState) {
	defer s.lock.Unlock()
	s.lock.Lock()
	s.status = status
}

// Get 当前状态
func (s *StatusManager) Get() constants.ProcessState {
	defer s.lock.RUnlock()
	s.lock.RLock()
	return s.status
}

func (s *StatusManager) Is(statusList ...constants.ProcessState) bool {
	defer s.lock.RUnlock()
	s.lock.RLock()
	for _, status := range statusList {
		if s.status == status {
			return true
		}
	}
	return false
}

// MarkTerminal 设置终止标记，只有第一次调用返回true
func (s *StatusManager) MarkTerminal() bool {
	defer s.lock.Unlock()
	s.lock.Lock()
	if s.terminal {
		return false
	}
	s.terminal = true
	return true
}

// IsTerminal 会话是否已经终止
func (s *StatusManager) IsTerminal() bool {
	defer s.lock.RUnlock()
	s.lock.RLock()
	return s.terminal
}

// Reset 进程重启时清除终止标记
func (s *StatusManager) Reset() {
	defer s.lock.Unlock()
	s.lock.Lock()
	s.terminal = false
	s.status = constants.StateInvalid
}
