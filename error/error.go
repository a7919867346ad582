package error

import "errors"

var (
	ErrNoExecutable          = errors.New("no executable given")
	ErrLaunchFailed          = errors.New("launch failed")
	ErrBackendNotSupported   = errors.New("this debugger backend is not supported")
	ErrDebuggerIsClosed      = errors.New("debug is closed")
	ErrProcessNotStopped     = errors.New("the process is not stopped")
	ErrRequestTimeout        = errors.New("debugger request timed out")
	ErrThreadNotFound        = errors.New("thread not found")
	ErrFrameNotFound         = errors.New("frame not found")
	ErrDisassembleNotSupport = errors.New("the debugger does not support disassembly")
	ErrInvalidConfig         = errors.New("invalid configuration")
	ErrNotATerminal          = errors.New("standard output is not a terminal")
)
