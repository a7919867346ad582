package gdb_debugger

import (
	"encoding/json"
	"testing"

	"github.com/fansqz/debugview/constants"
	"github.com/fansqz/debugview/debugger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record 把gdb/mi记录的json形式转换成会话返回的map
func record(t *testing.T, text string) map[string]interface{} {
	m := map[string]interface{}{}
	require.Nil(t, json.Unmarshal([]byte(text), &m))
	return m
}

func TestParseStackTraceOutput(t *testing.T) {
	g := NewGDBOutputUtil()
	m := record(t, `{"class":"done","payload":{"stack":[`+
		`{"frame":{"level":"0","addr":"0x0000555555555149","func":"fib","file":"main.c","fullname":"/tmp/demo/main.c","line":"4","arch":"i386:x86-64"}},`+
		`{"frame":{"level":"1","addr":"0x00007ffff7829d90","func":"__libc_start_call_main","from":"/lib/libc.so.6"}},`+
		`{"frame":{"level":"2","addr":"0x0000000000401000"}}]}}`)
	frames := g.ParseStackTraceOutput(m, 3)
	require.Equal(t, 3, len(frames))
	assert.Equal(t, debugger.FrameID{Thread: 3, Index: 0}, frames[0].ID)
	assert.Equal(t, uint64(0x555555555149), frames[0].PC)
	assert.Equal(t, "/tmp/demo/main.c", frames[0].File)
	assert.Equal(t, 4, frames[0].Line)
	assert.Equal(t, "fib:4", frames[0].Location())
	// 没有调试信息的栈帧
	assert.Equal(t, "", frames[1].File)
	assert.Equal(t, 0, frames[1].Line)
	assert.Equal(t, "??", frames[2].Function)

	assert.Equal(t, 0, len(g.ParseStackTraceOutput(record(t, `{"class":"error","payload":{"msg":"No stack."}}`), 1)))
}

func TestParseThreadsOutput(t *testing.T) {
	g := NewGDBOutputUtil()
	m := record(t, `{"class":"done","payload":{"threads":[`+
		`{"id":"2","target-id":"Thread 0x7ffff7d86640 (LWP 11)","name":"worker","state":"stopped"},`+
		`{"id":"1","target-id":"process 4242","state":"stopped"}],"current-thread-id":"1"}}`)
	threads, current := g.ParseThreadsOutput(m)
	require.Equal(t, 2, len(threads))
	assert.Equal(t, 1, current)
	assert.Equal(t, &debugger.Thread{ID: 2, Name: "worker", Reason: "stopped"}, threads[0])
	assert.Equal(t, "process 4242", threads[1].Name)
}

func TestParseVariables(t *testing.T) {
	g := NewGDBOutputUtil()
	names := g.ParseFrameVariablesOutput(record(t,
		`{"class":"done","payload":{"variables":[{"name":"argint","arg":"1","type":"int","value":"2"},{"name":"localItem","type":"Item"}]}}`))
	assert.Equal(t, []string{"argint", "localItem"}, names)

	object, ok := g.ParseVarCreate(record(t,
		`{"class":"done","payload":{"name":"dv1","numchild":"2","value":"{...}","type":"Item","thread-id":"1","has_more":"0"}}`), "localItem")
	assert.True(t, ok)
	assert.Equal(t, "dv1", object.Name)
	assert.Equal(t, 2, object.NumChild)
	assert.Equal(t, &debugger.Value{Name: "localItem", Type: "Item", Value: "{...}"}, object.Value)

	_, ok = g.ParseVarCreate(record(t, `{"class":"error","payload":{"msg":"-var-create: unable to create variable object"}}`), "x")
	assert.False(t, ok)

	children := g.ParseVariablesOutput(record(t, `{"class":"done","payload":{"numchild":"2","children":[`+
		`{"child":{"name":"dv1.id","exp":"id","numchild":"0","value":"2","type":"int","thread-id":"1"}},`+
		`{"child":{"name":"dv1.weight","exp":"weight","numchild":"0","value":"42","type":"float","thread-id":"1"}}],"has_more":"0"}}`))
	require.Equal(t, 2, len(children))
	assert.Equal(t, "dv1.weight", children[1].Name)
	assert.Equal(t, &debugger.Value{Name: "weight", Type: "float", Value: "42"}, children[1].Value)
}

func TestParseRegisters(t *testing.T) {
	g := NewGDBOutputUtil()
	names := g.ParseRegisterNames(record(t, `{"class":"done","payload":{"register-names":["rax","rbx","","rip"]}}`))
	assert.Equal(t, []string{"rax", "rbx", "", "rip"}, names)

	changed := g.ParseChangedRegisters(record(t, `{"class":"done","payload":{"changed-registers":["0","3"]}}`))
	assert.Equal(t, map[int]bool{0: true, 3: true}, changed)

	values := g.ParseRegisterValues(record(t, `{"class":"done","payload":{"register-values":[`+
		`{"number":"0","value":"0x1c"},{"number":"1","value":"0x0"},{"number":"2","value":"0x0"},{"number":"3","value":"0x401136"},{"number":"9","value":"0x1"}]}}`),
		names, changed)
	// 没有名字和超出范围的编号被忽略
	require.Equal(t, 3, len(values))
	assert.Equal(t, &debugger.Value{Name: "rax", Value: "0x1c", Changed: true}, values[0])
	assert.False(t, values[1].Changed)
	assert.Equal(t, "rip", values[2].Name)
}

func TestParseDisassembleOutput(t *testing.T) {
	g := NewGDBOutputUtil()
	instructions := g.ParseDisassembleOutput(record(t, `{"class":"done","payload":{"asm_insns":[`+
		`{"address":"0x0000000000401136","func-name":"main","offset":"0","inst":"push   %rbp"},`+
		`{"address":"0x0000000000401137","func-name":"main","offset":"1","inst":"mov    %rsp,%rbp"},{"address":"0x000000000040113a","inst":"nop"}]}}`))
	require.Equal(t, 3, len(instructions))
	assert.Equal(t, "0x401137 <main+1>: mov    %rsp,%rbp", instructions[1].String())
	assert.Equal(t, "0x40113a: nop", instructions[2].String())
}

func TestWindowAround(t *testing.T) {
	instructions := make([]*debugger.Instruction, 10)
	for i := range instructions {
		instructions[i] = &debugger.Instruction{Address: uint64(0x1000 + i)}
	}
	assert.Equal(t, 10, len(windowAround(instructions, 0x1000, 20)))
	window := windowAround(instructions, 0x1005, 4)
	assert.Equal(t, uint64(0x1003), window[0].Address)
	window = windowAround(instructions, 0x1009, 4)
	assert.Equal(t, uint64(0x1006), window[0].Address)
	window = windowAround(instructions, 0x1000, 4)
	assert.Equal(t, uint64(0x1000), window[0].Address)
}

func TestParseStoppedEventOutput(t *testing.T) {
	g := NewGDBOutputUtil()
	payload := func(text string) interface{} {
		return record(t, text)
	}
	event := g.ParseStoppedEventOutput(payload(`{"reason":"breakpoint-hit","bkptno":"1","thread-id":"2","stopped-threads":"all"}`))
	assert.Equal(t, constants.StateStopped, event.State)
	assert.Equal(t, 2, event.ThreadID)
	assert.Equal(t, string(constants.BreakpointStopped), event.Description)

	event = g.ParseStoppedEventOutput(payload(`{"reason":"signal-received","signal-name":"SIGSEGV","signal-meaning":"Segmentation fault","thread-id":"1"}`))
	assert.Equal(t, constants.StateStopped, event.State)
	assert.Equal(t, "signal SIGSEGV (Segmentation fault)", event.Description)

	event = g.ParseStoppedEventOutput(payload(`{"reason":"exited-normally"}`))
	assert.Equal(t, constants.StateExited, event.State)
	assert.Equal(t, 0, event.ExitCode)

	// exit-code 是八进制
	event = g.ParseStoppedEventOutput(payload(`{"reason":"exited","exit-code":"012"}`))
	assert.Equal(t, constants.StateExited, event.State)
	assert.Equal(t, 10, event.ExitCode)

	event = g.ParseStoppedEventOutput(payload(`{"reason":"exited-signalled","signal-name":"SIGKILL","signal-meaning":"Killed"}`))
	assert.Equal(t, constants.StateCrashed, event.State)
	assert.Equal(t, "terminated by SIGKILL (Killed)", event.Description)
}

func TestParseAddBreakpointOutput(t *testing.T) {
	g := NewGDBOutputUtil()
	number, location, ok := g.ParseAddBreakpointOutput(record(t,
		`{"class":"done","payload":{"bkpt":{"number":"1","type":"breakpoint","func":"main","fullname":"/tmp/demo/main.c","line":"43","original-location":"main"}}}`))
	assert.True(t, ok)
	assert.Equal(t, "1", number)
	assert.Equal(t, "main at /tmp/demo/main.c:43", location)

	_, _, ok = g.ParseAddBreakpointOutput(record(t, `{"class":"error","payload":{"msg":"Function \"nope\" not defined."}}`))
	assert.False(t, ok)
}

func TestConvertVariableName(t *testing.T) {
	g := NewGDBOutputUtil()
	assert.Equal(t, "id", g.ConvertVariableName("localItem.id"))
	assert.Equal(t, "*dynamicInt", g.ConvertVariableName("dynamicInt.*(int *)0x555555602260"))
	assert.Equal(t, "0", g.ConvertVariableName("array.0"))
	assert.Equal(t, "plain", g.ConvertVariableName("plain"))
}

func TestParseAddressAndThreadGroup(t *testing.T) {
	g := NewGDBOutputUtil()
	assert.Equal(t, uint64(0x401136), g.ParseAddress("0x0000000000401136 <main+4>"))
	assert.Equal(t, uint64(0), g.ParseAddress("<unavailable>"))
	assert.Equal(t, 4242, g.ParseThreadGroupPid(record(t,
		`{"class":"done","payload":{"groups":[{"id":"i1","type":"process","pid":"4242","executable":"/tmp/demo/main"}]}}`)))
}
