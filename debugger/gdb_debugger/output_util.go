package gdb_debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fansqz/debugview/constants"
	"github.com/fansqz/debugview/debugger"
)

// GDBOutputUtil 处理gdb输出的工具
type GDBOutputUtil struct {
}

func NewGDBOutputUtil() *GDBOutputUtil {
	return &GDBOutputUtil{}
}

// ParseAddBreakpointOutput 解析添加断点输出，返回断点编号和位置描述
// class->done
//
//	payload->{
//		bkpt->{
//			  number -> 1
//			  type -> breakpoint
//			  func -> main
//			  fullname -> /tmp/demo/main.c
//			  line -> 43
//			  addr -> 0x0000000000000806
//			  original-location -> main
//			}
func (g *GDBOutputUtil) ParseAddBreakpointOutput(m map[string]interface{}) (string, string, bool) {
	payload, success := g.GetPayloadFromMap(m)
	if !success {
		return "", "", false
	}
	bkpt := g.GetInterfaceFromMap(payload, "bkpt")
	if bkpt == nil {
		return "", "", false
	}
	number := g.GetStringFromMap(bkpt, "number")
	location := g.GetStringFromMap(bkpt, "original-location")
	if fullname := g.GetStringFromMap(bkpt, "fullname"); fullname != "" {
		location = fmt.Sprintf("%s at %s:%d", location, fullname, g.GetIntFromMap(bkpt, "line"))
	}
	return number, location, true
}

// ParseThreadsOutput 解析线程列表
// class->done
//
//	payload->{
//	 threads->[
//	  {
//	   id->1
//	   target-id->process 4242
//	   name->demo
//	   state->stopped
//	   frame->{...}
//	  }
//	 ]
//	 current-thread-id->1
//	}
func (g *GDBOutputUtil) ParseThreadsOutput(m map[string]interface{}) ([]*debugger.Thread, int) {
	payload, success := g.GetPayloadFromMap(m)
	if !success {
		return nil, 0
	}
	answer := make([]*debugger.Thread, 0, 4)
	for _, t := range g.GetListFromMap(payload, "threads") {
		name := g.GetStringFromMap(t, "name")
		if name == "" {
			name = g.GetStringFromMap(t, "target-id")
		}
		answer = append(answer, &debugger.Thread{
			ID:     g.GetIntFromMap(t, "id"),
			Name:   name,
			Reason: g.GetStringFromMap(t, "state"),
		})
	}
	return answer, g.GetIntFromMap(payload, "current-thread-id")
}

// ParseStackTraceOutput 解析栈帧输出
// class->done
//
//	payload-> {
//	 stack->[
//	  {
//	    frame->{
//	     level->0
//	     addr->0x000055555540081b
//	     func->main
//	     file->main.c
//	     fullname->/tmp/demo/main.c
//	     line->44
//	    }
//	  }
//	 ]
//	}
func (g *GDBOutputUtil) ParseStackTraceOutput(m map[string]interface{}, threadID int) []*debugger.Frame {
	stackMap, success := g.GetPayloadFromMap(m)
	if !success {
		return []*debugger.Frame{}
	}
	stackList := g.GetListFromMap(stackMap, "stack")
	answer := make([]*debugger.Frame, 0, len(stackList))
	for _, s := range stackList {
		frame := g.GetInterfaceFromMap(s, "frame")
		level := g.GetIntFromMap(frame, "level")
		function := g.GetStringFromMap(frame, "func")
		if function == "" {
			function = "??"
		}
		answer = append(answer, &debugger.Frame{
			ID:       debugger.FrameID{Thread: threadID, Index: level},
			PC:       g.ParseAddress(g.GetStringFromMap(frame, "addr")),
			Function: function,
			File:     g.GetStringFromMap(frame, "fullname"),
			Line:     g.GetIntFromMap(frame, "line"),
			Ref:      level,
		})
	}
	return answer
}

// ParseFrameVariablesOutput 解析 -stack-list-variables 的输出，只取变量名
// class->done
//
//	payload->{
//	 variables->[
//	  {
//	   name->root
//	   arg->1
//	   type->struct TreeNode *
//	   value->0x555555602260
//	  },
//	 ]
//	}
func (g *GDBOutputUtil) ParseFrameVariablesOutput(m map[string]interface{}) []string {
	payload, success := g.GetPayloadFromMap(m)
	if !success {
		return []string{}
	}
	variables := g.GetListFromMap(payload, "variables")
	if variables == nil {
		variables = g.GetListFromMap(payload, "locals")
	}
	answer := make([]string, 0, len(variables))
	for _, v := range variables {
		if name := g.GetStringFromMap(v, "name"); name != "" {
			answer = append(answer, name)
		}
	}
	return answer
}

// VarObject 一个gdb变量对象
type VarObject struct {
	// Name 变量对象在gdb中的名称，比如var1.left
	Name     string
	NumChild int
	Value    *debugger.Value
}

// ParseVarCreate 解析var-create响应
// class -> done
//
//	payload -> {
//	  name -> var1
//	  numchild -> 50
//	  value -> [50]
//	  type -> char [50]
//	  has_more -> 0
//	}
func (g *GDBOutputUtil) ParseVarCreate(m map[string]interface{}, expression string) (*VarObject, bool) {
	payload, success := g.GetPayloadFromMap(m)
	if !success {
		return nil, false
	}
	numChild := g.GetIntFromMap(payload, "numchild")
	if numChild == 0 {
		numChild = g.GetIntFromMap(payload, "has_more")
	}
	return &VarObject{
		Name:     g.GetStringFromMap(payload, "name"),
		NumChild: numChild,
		Value: &debugger.Value{
			Name:  expression,
			Type:  g.GetStringFromMap(payload, "type"),
			Value: g.GetStringFromMap(payload, "value"),
		},
	}, true
}

// ParseVariablesOutput 解析 -var-list-children 的输出
// class->done
//
//	payload->{
//	 numchild->3
//	 children->[
//	  {
//	   child->{
//	    name->var1.left
//	    exp->left
//	    numchild->3
//	    value->0x0
//	    type->struct TreeNode *
//	   }
//	  },
//	 ]
//	}
func (g *GDBOutputUtil) ParseVariablesOutput(m map[string]interface{}) []*VarObject {
	payload, success := g.GetPayloadFromMap(m)
	if !success {
		return []*VarObject{}
	}
	children := g.GetListFromMap(payload, "children")
	answer := make([]*VarObject, 0, len(children))
	for _, v := range children {
		v = g.GetInterfaceFromMap(v, "child")
		name := g.GetStringFromMap(v, "exp")
		if name == "" {
			name = g.ConvertVariableName(g.GetStringFromMap(v, "name"))
		}
		answer = append(answer, &VarObject{
			Name:     g.GetStringFromMap(v, "name"),
			NumChild: g.GetIntFromMap(v, "numchild"),
			Value: &debugger.Value{
				Name:  name,
				Type:  g.GetStringFromMap(v, "type"),
				Value: g.GetStringFromMap(v, "value"),
			},
		})
	}
	return answer
}

// ParseRegisterNames 解析 -data-list-register-names，下标即寄存器编号，空名字表示该编号不存在
// payload -> { register-names -> [rax, rbx, ...] }
func (g *GDBOutputUtil) ParseRegisterNames(m map[string]interface{}) []string {
	payload, success := g.GetPayloadFromMap(m)
	if !success {
		return nil
	}
	list := g.GetListFromMap(payload, "register-names")
	answer := make([]string, len(list))
	for i, name := range list {
		answer[i], _ = name.(string)
	}
	return answer
}

// ParseRegisterValues 解析 -data-list-register-values
// payload -> { register-values -> [ {number -> 0, value -> 0x1c}, ... ] }
func (g *GDBOutputUtil) ParseRegisterValues(m map[string]interface{}, names []string, changed map[int]bool) []*debugger.Value {
	payload, success := g.GetPayloadFromMap(m)
	if !success {
		return []*debugger.Value{}
	}
	list := g.GetListFromMap(payload, "register-values")
	answer := make([]*debugger.Value, 0, len(list))
	for _, r := range list {
		number := g.GetIntFromMap(r, "number")
		if number < 0 || number >= len(names) || names[number] == "" {
			continue
		}
		answer = append(answer, &debugger.Value{
			Name:    names[number],
			Value:   g.GetStringFromMap(r, "value"),
			Changed: changed[number],
		})
	}
	return answer
}

// ParseChangedRegisters 解析 -data-list-changed-registers
// payload -> { changed-registers -> [0, 1, 16] }
func (g *GDBOutputUtil) ParseChangedRegisters(m map[string]interface{}) map[int]bool {
	answer := map[int]bool{}
	payload, success := g.GetPayloadFromMap(m)
	if !success {
		return answer
	}
	for _, n := range g.GetListFromMap(payload, "changed-registers") {
		s, _ := n.(string)
		if number, err := strconv.Atoi(s); err == nil {
			answer[number] = true
		}
	}
	return answer
}

// ParseDisassembleOutput 解析 -data-disassemble 的输出
// payload -> {
//
//	asm_insns -> [
//	  { address -> 0x000000000040113a, func-name -> main, offset -> 4, inst -> mov $0x0,%eax },
//	]
//
// }
func (g *GDBOutputUtil) ParseDisassembleOutput(m map[string]interface{}) []*debugger.Instruction {
	payload, success := g.GetPayloadFromMap(m)
	if !success {
		return []*debugger.Instruction{}
	}
	list := g.GetListFromMap(payload, "asm_insns")
	answer := make([]*debugger.Instruction, 0, len(list))
	for _, ins := range list {
		symbol := g.GetStringFromMap(ins, "func-name")
		if symbol != "" {
			symbol = fmt.Sprintf("%s+%d", symbol, g.GetIntFromMap(ins, "offset"))
		}
		answer = append(answer, &debugger.Instruction{
			Address: g.ParseAddress(g.GetStringFromMap(ins, "address")),
			Symbol:  symbol,
			Text:    g.GetStringFromMap(ins, "inst"),
		})
	}
	return answer
}

// ParseStoppedEventOutput 解析*stopped异步记录
// reason->breakpoint-hit
// bkptno->1
//
//	frame->{
//	 addr -> 0x0000555555400806
//	 func -> main
//	 fullname -> /tmp/demo/main.c
//	 line -> 43
//	}
//
// thread-id->1
// stopped-threads->all
//
// 进程退出也是通过*stopped报告的：exited-normally、exited(exit-code为八进制)、exited-signalled
func (g *GDBOutputUtil) ParseStoppedEventOutput(m interface{}) *debugger.Event {
	reason := g.GetStringFromMap(m, "reason")
	switch reason {
	case "exited-normally":
		return debugger.NewExitedEvent(0, "")
	case "exited":
		return debugger.NewExitedEvent(g.ParseExitCode(g.GetStringFromMap(m, "exit-code")), "")
	case "exited-signalled":
		event := debugger.NewStateEvent(constants.StateCrashed)
		event.Description = fmt.Sprintf("terminated by %s (%s)",
			g.GetStringFromMap(m, "signal-name"), g.GetStringFromMap(m, "signal-meaning"))
		return event
	}
	description := string(g.ParseStoppedReason(reason))
	if reason == "signal-received" {
		description = fmt.Sprintf("signal %s (%s)",
			g.GetStringFromMap(m, "signal-name"), g.GetStringFromMap(m, "signal-meaning"))
	}
	return debugger.NewStoppedEvent(g.GetIntFromMap(m, "thread-id"), description)
}

// ParseStoppedReason gdb的停止原因转换成统一的类型
func (g *GDBOutputUtil) ParseStoppedReason(reason string) constants.StoppedReasonType {
	switch reason {
	case "breakpoint-hit", "watchpoint-trigger", "read-watchpoint-trigger", "access-watchpoint-trigger":
		return constants.BreakpointStopped
	case "end-stepping-range", "function-finished", "location-reached":
		return constants.StepStopped
	case "signal-received":
		return constants.SignalStopped
	case "":
		return constants.PauseStopped
	}
	return constants.UnknownStopped
}

// ParseExitCode gdb的exit-code是八进制字符串
func (g *GDBOutputUtil) ParseExitCode(code string) int {
	if code == "" {
		return 0
	}
	n, err := strconv.ParseInt(code, 8, 32)
	if err != nil {
		n, _ = strconv.ParseInt(code, 10, 32)
	}
	return int(n)
}

// ParseAddress 解析0x开头的地址，失败返回0
func (g *GDBOutputUtil) ParseAddress(address string) uint64 {
	address = strings.TrimSpace(address)
	if i := strings.IndexByte(address, ' '); i > 0 {
		address = address[:i]
	}
	n, err := strconv.ParseUint(address, 0, 64)
	if err != nil {
		return 0
	}
	return n
}

// ConvertVariableName 解析变量名称
// 由于某些结构体或者指针返回的名称不太美观，所以在这里进行一个转换
// 比如获取一个结构体的属性，属性名：localItem.id  ->  id
// 解引用情况：dynamicInt.*(int *)0x555555602260 -> *dynamicInt
// 数组情况：array.0 -> 0
func (g *GDBOutputUtil) ConvertVariableName(variableName string) string {
	index := strings.LastIndex(variableName, ".")
	if index == -1 || index == len(variableName)-1 {
		return variableName
	}
	if variableName[index+1] == '*' {
		return fmt.Sprintf("*%s", variableName[0:index])
	}
	return variableName[index+1:]
}

func (g *GDBOutputUtil) GetInterfaceFromMap(m interface{}, key string) interface{} {
	s, ok := m.(map[string]interface{})
	if !ok {
		return nil
	}
	return s[key]
}

func (g *GDBOutputUtil) GetStringFromMap(m interface{}, key string) string {
	answer := g.GetInterfaceFromMap(m, key)
	if answer == nil {
		return ""
	}
	strAnswer, _ := answer.(string)
	return strAnswer
}

func (g *GDBOutputUtil) GetIntFromMap(m interface{}, key string) int {
	answer := g.GetStringFromMap(m, key)
	numAnswer, _ := strconv.Atoi(answer)
	return numAnswer
}

func (g *GDBOutputUtil) GetListFromMap(m interface{}, key string) []interface{} {
	s, _ := g.GetInterfaceFromMap(m, key).([]interface{})
	return s
}


// GetPayloadFromMap 结果为done或running时返回payload
func (g *GDBOutputUtil) GetPayloadFromMap(m map[string]interface{}) (interface{}, bool) {
	switch g.GetStringFromMap(m, "class") {
	case "done", "running", "connected":
		if payload, ok := m["payload"]; ok {
			return payload, true
		}
	}
	return nil, false
}

// ParseThreadGroupPid 解析 -list-thread-groups 中第一个进程的pid
// payload -> { groups -> [ {id -> i1, type -> process, pid -> 4242, executable -> /tmp/demo} ] }
func (g *GDBOutputUtil) ParseThreadGroupPid(m map[string]interface{}) int {
	payload, success := g.GetPayloadFromMap(m)
	if !success {
		return 0
	}
	for _, group := range g.GetListFromMap(payload, "groups") {
		if pid := g.GetIntFromMap(group, "pid"); pid != 0 {
			return pid
		}
	}
	return 0
}
