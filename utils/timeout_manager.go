package utils

import (
	"context"
	"sync"
	"time"

	"github.com/fansqz/debugview/utils/gosync"
	"github.com/sirupsen/logrus"
)

// TimeoutManager 一个计时器
// 如果在timeout时间内没有执行Cancel，就会执行fun函数。
// 用于关闭调试引擎时兜底：引擎在规定时间内没有自己退出就强制杀死。
type TimeoutManager struct {
	name          string
	timer         *time.Timer
	cancelChannel chan struct{}
	done          chan struct{}
	once          sync.Once
	fun           func()
}

// NewTimeoutManager 创建一个新的计时器实例
func NewTimeoutManager(name string) *TimeoutManager {
	return &TimeoutManager{name: name}
}

// Start 开始计时
// 在timeout时间内没有执行Cancel，就会执行fun函数
func (t *TimeoutManager) Start(ctx context.Context, timeout time.Duration, fun func()) {
	t.timer = time.NewTimer(timeout)
	t.fun = fun
	t.cancelChannel = make(chan struct{})
	t.done = make(chan struct{})
	gosync.Go(ctx, func(ctx context.Context) {
		defer close(t.done)
		for {
			select {
			case <-t.timer.C:
				logrus.Infof("[TimeoutManager] %s expired, performing action", t.name)
				t.fun()
				return
			case <-t.cancelChannel:
				if !t.timer.Stop() {
					<-t.timer.C
				}
				return
			case <-ctx.Done():
				t.timer.Stop()
				return
			}
		}
	})
}

// Cancel 取消计时，计时器已经触发时什么也不做
func (t *TimeoutManager) Cancel() {
	t.once.Do(func() {
		select {
		case t.cancelChannel <- struct{}{}:
		case <-t.done:
		}
	})
}
