package debugger

import (
	"sync"
)

// ValueTracker 计算变量"自上次停止以来是否变化"
// 有些引擎（dap、gdb的局部变量）不会报告变化，需要和上一次停止时的值比较。
// 以 作用域/函数/变量路径 作为key，第一次出现的变量不算变化。
type ValueTracker struct {
	lock     sync.Mutex
	previous map[string]string
	current  map[string]string
}

func NewValueTracker() *ValueTracker {
	return &ValueTracker{
		previous: map[string]string{},
		current:  map[string]string{},
	}
}

// NextStop 进入新的一次停止，本次记录的值成为比较的基准
func (t *ValueTracker) NextStop() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.current) == 0 {
		return
	}
	for k, v := range t.current {
		t.previous[k] = v
	}
	t.current = map[string]string{}
}

// Mark 标记values树中所有变化了的节点
func (t *ValueTracker) Mark(scope string, values []*Value) {
	t.lock.Lock()
	defer t.lock.Unlock()
	for _, v := range values {
		t.mark(scope, v)
	}
}

func (t *ValueTracker) mark(path string, v *Value) {
	if v == nil {
		return
	}
	key := path + "/" + v.Name
	if old, ok := t.previous[key]; ok && old != v.Value {
		v.Changed = true
	}
	t.current[key] = v.Value
	for _, child := range v.Children {
		t.mark(key, child)
	}
}

// Reset 清除所有记录，进程重启时调用
func (t *ValueTracker) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.previous = map[string]string{}
	t.current = map[string]string{}
}
