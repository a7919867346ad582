package debugger

import (
	"context"
)

// Debugger
// 一次调试会话的句柄，代表被附加的目标进程，创建一次，负责进程的生命周期。
// 符号解析、表达式求值、反汇编和栈回溯全部交给底层调试引擎完成。
//
// NextEvent、ReadStdout、ReadStderr 必须是非阻塞的，界面线程会在定时器中轮询它们；
// 其余方法会向引擎发送请求，耗时受 RequestTimeout 限制。
type Debugger interface {
	// Launch 创建目标并启动进程，设置初始断点
	Launch(ctx context.Context, option *LaunchOption) (*ProcessInfo, error)
	// NextEvent 取出一个待处理的引擎事件，没有事件时立即返回false
	NextEvent() (*Event, bool)
	// ReadStdout 读取被调试程序最多max字节的标准输出，没有数据时返回空字符串
	ReadStdout(max int) string
	// ReadStderr 读取被调试程序最多max字节的标准错误
	ReadStderr(max int) string
	// HandleCommand 把命令原样交给引擎的命令解释器执行
	HandleCommand(ctx context.Context, command string) *CommandResult
	// Threads 获取所有线程
	Threads(ctx context.Context) ([]*Thread, error)
	// Frames 获取某个线程的栈帧
	Frames(ctx context.Context, threadID int) ([]*Frame, error)
	// Locals 获取栈帧中的参数、局部变量和静态变量
	Locals(ctx context.Context, frame *Frame) ([]*Value, error)
	// Registers 获取栈帧对应的寄存器
	Registers(ctx context.Context, frame *Frame) ([]*Value, error)
	// Disassemble 获取栈帧所在函数的指令
	Disassemble(ctx context.Context, frame *Frame) ([]*Instruction, error)
	// Terminate 终止调试，杀死被调试进程并关闭引擎
	Terminate(ctx context.Context) error
}
