package dap_debugger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/go-dap"
)

// fakeAdapter 一个脚本化的调试适配器，在内存管道上响应请求
// 每次continue以后停止次数加一，局部变量x和寄存器rip随之变化
type fakeAdapter struct {
	reader *bufio.Reader
	writer io.WriteCloser

	sendLock sync.Mutex

	lock     sync.Mutex
	commands []string
	launch   *dap.LaunchRequest
	stops    int

	exitCode int
}

// newFakeDebugger 创建一个连接到fakeAdapter的DAPDebugger
func newFakeDebugger() (*DAPDebugger, *fakeAdapter) {
	clientR, adapterW := io.Pipe()
	adapterR, clientW := io.Pipe()
	adapter := &fakeAdapter{
		reader: bufio.NewReader(adapterR),
		writer: adapterW,
	}
	go adapter.serve()

	d := NewDAPDebugger(&Option{DisassemblyWindow: 4})
	d.startAdapter = func(command []string) (io.Reader, io.WriteCloser, func() error, error) {
		return clientR, clientW, func() error { return nil }, nil
	}
	return d, adapter
}

func (f *fakeAdapter) serve() {
	for {
		request, err := dap.ReadProtocolMessage(f.reader)
		if err != nil {
			_ = f.writer.Close()
			return
		}
		if r, ok := request.(dap.RequestMessage); ok {
			f.lock.Lock()
			f.commands = append(f.commands, r.GetRequest().Command)
			f.lock.Unlock()
		}
		if closed := f.dispatchRequest(request); closed {
			return
		}
	}
}

func (f *fakeAdapter) Commands() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string{}, f.commands...)
}

func (f *fakeAdapter) LaunchArguments() map[string]interface{} {
	f.lock.Lock()
	defer f.lock.Unlock()
	answer := map[string]interface{}{}
	if f.launch != nil {
		_ = json.Unmarshal(f.launch.Arguments, &answer)
	}
	return answer
}

func (f *fakeAdapter) dispatchRequest(request dap.Message) bool {
	switch request := request.(type) {
	case *dap.InitializeRequest:
		response := &dap.InitializeResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		response.Body.SupportsConfigurationDoneRequest = true
		response.Body.SupportsFunctionBreakpoints = true
		response.Body.SupportsDisassembleRequest = true
		f.send(response)
	case *dap.LaunchRequest:
		// launch的响应在configurationDone之后发送
		f.lock.Lock()
		f.launch = request
		f.lock.Unlock()
		process := &dap.ProcessEvent{Event: *newEvent("process")}
		process.Body = dap.ProcessEventBody{Name: "demo", SystemProcessId: 4242, StartMethod: "launch"}
		f.send(process)
		f.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
	case *dap.SetFunctionBreakpointsRequest:
		response := &dap.SetFunctionBreakpointsResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		for i, bp := range request.Arguments.Breakpoints {
			if bp.Name == "missing" {
				response.Body.Breakpoints = append(response.Body.Breakpoints, dap.Breakpoint{Id: i + 1, Message: "no locations"})
				continue
			}
			response.Body.Breakpoints = append(response.Body.Breakpoints, dap.Breakpoint{
				Id: i + 1, Verified: true, Line: 4, Source: &dap.Source{Path: "/tmp/demo/main.c"},
			})
		}
		f.send(response)
	case *dap.ConfigurationDoneRequest:
		response := &dap.ConfigurationDoneResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		f.send(response)
		f.lock.Lock()
		launch := f.launch
		f.lock.Unlock()
		if launch != nil {
			f.send(&dap.LaunchResponse{Response: *newResponse(launch.Seq, launch.Command)})
		}
		output := &dap.OutputEvent{Event: *newEvent("output")}
		output.Body = dap.OutputEventBody{Category: "stdout", Output: "hello\n"}
		f.send(output)
		f.stop()
	case *dap.ThreadsRequest:
		response := &dap.ThreadsResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		response.Body.Threads = []dap.Thread{{Id: 1, Name: "demo"}, {Id: 2, Name: "worker"}}
		f.send(response)
	case *dap.StackTraceRequest:
		if request.Arguments.ThreadId != 1 {
			f.send(newErrorResponse(request.Seq, request.Command, "invalid thread"))
			return false
		}
		response := &dap.StackTraceResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		response.Body.StackFrames = []dap.StackFrame{
			{Id: 1000, Name: "add", Line: 7, Source: &dap.Source{Path: "/tmp/demo/main.c"}, InstructionPointerReference: "0x401126"},
			{Id: 1001, Name: "main", Line: 12, Source: &dap.Source{Path: "/tmp/demo/main.c"}, InstructionPointerReference: "0x401160"},
			{Id: 1002, Name: "__libc_start_main", Line: 0, InstructionPointerReference: "0x7ffff7829d90"},
		}
		response.Body.TotalFrames = 3
		f.send(response)
	case *dap.ScopesRequest:
		response := &dap.ScopesResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		response.Body.Scopes = []dap.Scope{
			{Name: "Locals", PresentationHint: "locals", VariablesReference: 100},
			{Name: "Globals", VariablesReference: 300},
			{Name: "Registers", PresentationHint: "registers", VariablesReference: 200},
		}
		f.send(response)
	case *dap.VariablesRequest:
		f.lock.Lock()
		stops := f.stops
		f.lock.Unlock()
		response := &dap.VariablesResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		switch request.Arguments.VariablesReference {
		case 100:
			response.Body.Variables = []dap.Variable{
				{Name: "x", Type: "int", Value: fmt.Sprint(stops)},
				{Name: "item", Type: "Item", Value: "{...}", VariablesReference: 101},
				{Name: "y", Type: "int", Value: "7"},
			}
		case 101:
			response.Body.Variables = []dap.Variable{{Name: "id", Type: "int", Value: "1"}}
		case 200:
			response.Body.Variables = []dap.Variable{{Name: "General Purpose Registers", VariablesReference: 201}}
		case 201:
			response.Body.Variables = []dap.Variable{
				{Name: "rax", Value: "0x1"},
				{Name: "rip", Value: fmt.Sprintf("0x%x", 0x401126+stops)},
			}
		case 300:
			response.Body.Variables = []dap.Variable{{Name: "global", Type: "int", Value: "9"}}
		}
		f.send(response)
	case *dap.EvaluateRequest:
		switch request.Arguments.Expression {
		case "bad":
			f.send(newErrorResponse(request.Seq, request.Command, "unknown command: bad"))
		case "continue":
			f.send(&dap.EvaluateResponse{Response: *newResponse(request.Seq, request.Command)})
			f.send(&dap.ContinuedEvent{Event: *newEvent("continued")})
			f.stop()
		default:
			response := &dap.EvaluateResponse{}
			response.Response = *newResponse(request.Seq, request.Command)
			response.Body.Result = fmt.Sprintf("%s in frame %d", request.Arguments.Expression, request.Arguments.FrameId)
			f.send(response)
		}
	case *dap.DisassembleRequest:
		response := &dap.DisassembleResponse{}
		response.Response = *newResponse(request.Seq, request.Command)
		response.Body.Instructions = []dap.DisassembledInstruction{
			{Address: "0x401120", Instruction: "push rbp", Symbol: "add"},
			{Address: "0x401121", Instruction: "mov rbp, rsp"},
			{Address: "0x401126", Instruction: "mov eax, edi"},
			{Address: "0x401128", Instruction: "ret"},
		}
		f.send(response)
	case *dap.DisconnectRequest:
		f.send(&dap.DisconnectResponse{Response: *newResponse(request.Seq, request.Command)})
		exited := &dap.ExitedEvent{Event: *newEvent("exited")}
		exited.Body.ExitCode = f.exitCode
		f.send(exited)
		f.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
		_ = f.writer.Close()
		return true
	default:
		if baseReq, ok := request.(dap.RequestMessage); ok {
			r := baseReq.GetRequest()
			f.send(newErrorResponse(r.Seq, r.Command, fmt.Sprintf("%s is not yet supported", r.Command)))
		}
	}
	return false
}

func (f *fakeAdapter) stop() {
	f.lock.Lock()
	f.stops++
	f.lock.Unlock()
	stopped := &dap.StoppedEvent{Event: *newEvent("stopped")}
	stopped.Body = dap.StoppedEventBody{Reason: "breakpoint", ThreadId: 1, AllThreadsStopped: true}
	f.send(stopped)
}

// send Message响应给客户端
func (f *fakeAdapter) send(message dap.Message) {
	f.sendLock.Lock()
	defer f.sendLock.Unlock()
	_ = dap.WriteProtocolMessage(f.writer, message)
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}

func newResponse(requestSeq int, command string) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    command,
		RequestSeq: requestSeq,
		Success:    true,
	}
}

func newErrorResponse(requestSeq int, command string, message string) *dap.ErrorResponse {
	er := &dap.ErrorResponse{}
	er.Response = *newResponse(requestSeq, command)
	er.Success = false
	er.Body.Error = &dap.ErrorMessage{}
	er.Body.Error.Format = message
	er.Body.Error.Id = 12345
	return er
}
