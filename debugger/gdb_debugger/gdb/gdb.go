// Package gdb 在github.com/cyrus-and/gdb之上封装gdb/mi会话
// 增加了请求超时、gdb退出检测和命令执行期间控制台输出的收集
package gdb

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	migdb "github.com/cyrus-and/gdb"
	e "github.com/fansqz/debugview/error"
	"github.com/fansqz/debugview/utils/gosync"
	"github.com/sirupsen/logrus"
)

// 异步记录和流记录的type
const (
	TypeExec    = "exec"    // *
	TypeStatus  = "status"  // +
	TypeNotify  = "notify"  // =
	TypeConsole = "console" // ~
	TypeTarget  = "target"  // @
	TypeLog     = "log"     // &
)

// NotificationCallback 处理异步记录和不属于任何命令的流记录
type NotificationCallback = migdb.NotificationCallback

// DefaultCommand 默认的gdb，mi解释器和被调试程序终端的参数由cyrus-and/gdb追加
var DefaultCommand = []string{"gdb"}

// ExitTimeout 发送-gdb-exit以后等待gdb退出的时间
const ExitTimeout = 3 * time.Second

// Session 一个gdb/mi会话，*migdb.Gdb实现了它
// 读写的是被调试程序所在的伪终端
type Session interface {
	io.ReadWriter
	Send(operation string, arguments ...string) (map[string]interface{}, error)
	Exit() error
}

// Gdb 一个gdb实例
type Gdb struct {
	session        Session
	onNotification NotificationCallback

	// 命令顺序发送，同一时刻只有一个命令在收集控制台输出
	sendLock    sync.Mutex
	captureLock sync.Mutex
	capture     *strings.Builder

	done      chan struct{}
	closeOnce sync.Once
	exitOnce  sync.Once
}

// NewCmd 启动gdb，command为空时使用DefaultCommand
func NewCmd(command []string, onNotification NotificationCallback) (*Gdb, error) {
	if len(command) == 0 {
		command = DefaultCommand
	}
	g := newGdb(onNotification)
	session, err := migdb.NewCmd(append([]string{}, command...), g.Notify)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", command[0], err)
	}
	g.session = session
	logrus.Infof("[gdb] started %v", command)
	return g, nil
}

// NewWithSession 在已有的会话上创建Gdb，会话需要把通知交给Notify
func NewWithSession(session Session, onNotification NotificationCallback) *Gdb {
	g := newGdb(onNotification)
	g.session = session
	return g
}

func newGdb(onNotification NotificationCallback) *Gdb {
	return &Gdb{
		onNotification: onNotification,
		done:           make(chan struct{}),
	}
}

// Read 读取被调试程序的输出
func (g *Gdb) Read(p []byte) (int, error) {
	return g.session.Read(p)
}

// Write 写入被调试程序的标准输入
func (g *Gdb) Write(p []byte) (int, error) {
	return g.session.Write(p)
}

// Done gdb退出或者连接断开时关闭
func (g *Gdb) Done() <-chan struct{} {
	return g.done
}

type reply struct {
	m   map[string]interface{}
	err error
}

// Send 发送一个mi命令并等待结果记录，返回
//
//	class -> done/running/connected/error/exit
//	payload -> {...}
//	console -> 命令执行期间的控制台输出
func (g *Gdb) Send(ctx context.Context, operation string, args ...string) (map[string]interface{}, error) {
	if g.closed() {
		return nil, e.ErrDebuggerIsClosed
	}
	g.sendLock.Lock()
	defer g.sendLock.Unlock()

	capture := &strings.Builder{}
	g.setCapture(capture)
	defer g.setCapture(nil)

	logrus.Debugf("[gdb] <- %s %v", operation, args)
	result := make(chan reply, 1)
	gosync.Go(context.Background(), func(ctx context.Context) {
		m, err := g.session.Send(operation, args...)
		result <- reply{m: m, err: err}
	})

	select {
	case r := <-result:
		if r.err != nil {
			// 写不进去说明gdb已经退出
			logrus.Warnf("[gdb] send %s fail, err = %v", operation, r.err)
			g.close()
			return nil, fmt.Errorf("%w: %s: %v", e.ErrDebuggerIsClosed, operation, r.err)
		}
		if r.m == nil {
			r.m = map[string]interface{}{}
		}
		g.captureLock.Lock()
		r.m["console"] = capture.String()
		g.captureLock.Unlock()
		logrus.Debugf("[gdb] -> %s %v", operation, r.m["class"])
		return r.m, nil
	case <-g.done:
		return nil, e.ErrDebuggerIsClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", operation, e.ErrRequestTimeout)
	}
}

// CheckedSend 发送命令，结果为error时返回错误
func (g *Gdb) CheckedSend(ctx context.Context, operation string, args ...string) (map[string]interface{}, error) {
	m, err := g.Send(ctx, operation, args...)
	if err != nil {
		return nil, err
	}
	if class, _ := m["class"].(string); class == "error" {
		return m, fmt.Errorf("%s: %s", operation, ErrorMessage(m))
	}
	return m, nil
}

// ErrorMessage 取出error结果中的msg
func ErrorMessage(m map[string]interface{}) string {
	payload, _ := m["payload"].(map[string]interface{})
	msg, _ := payload["msg"].(string)
	return msg
}

// Exit 让gdb退出，之后的命令都返回ErrDebuggerIsClosed
func (g *Gdb) Exit() error {
	first := false
	g.exitOnce.Do(func() { first = true })
	g.close()
	if !first {
		return nil
	}
	result := make(chan error, 1)
	gosync.Go(context.Background(), func(ctx context.Context) {
		result <- g.session.Exit()
	})
	select {
	case err := <-result:
		if err != nil {
			logrus.Infof("[gdb] exited, err = %v", err)
		}
		return nil
	case <-time.After(ExitTimeout):
		// stdin在本进程退出时关闭，gdb读到EOF以后会自己退出
		return fmt.Errorf("gdb exit: %w", e.ErrRequestTimeout)
	}
}

// Notify 接收会话的通知，命令执行期间的控制台输出会被收集并标记为captured
func (g *Gdb) Notify(record map[string]interface{}) {
	if typ, _ := record["type"].(string); typ == TypeConsole {
		g.captureLock.Lock()
		if g.capture != nil {
			text, _ := record["payload"].(string)
			g.capture.WriteString(text)
			// 已经作为命令输出返回，回调里不需要再展示
			record["captured"] = true
		}
		g.captureLock.Unlock()
	}
	if g.onNotification != nil {
		g.onNotification(record)
	}
}

func (g *Gdb) setCapture(capture *strings.Builder) {
	g.captureLock.Lock()
	defer g.captureLock.Unlock()
	g.capture = capture
}

func (g *Gdb) close() {
	g.closeOnce.Do(func() { close(g.done) })
}

func (g *Gdb) closed() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}
