package pump

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fansqz/debugview/constants"
	"github.com/fansqz/debugview/debugger"
	"github.com/fansqz/debugview/debugger/mock_debugger"
	"github.com/fansqz/debugview/utils"
	"github.com/stretchr/testify/assert"
)

type output struct {
	origin constants.OutputOrigin
	text   string
}

// recordingViews 记录事件泵对视图的所有操作
type recordingViews struct {
	thread      *debugger.Thread
	frames      []*debugger.Frame
	stackBuilds int
	selected    []int
	status      []constants.ProcessState
	outputs     []output
	invalidates int
}

func (v *recordingViews) ShowStack(thread *debugger.Thread, frames []*debugger.Frame) {
	v.thread = thread
	v.frames = frames
	v.stackBuilds++
}

func (v *recordingViews) SelectFrame(ctx context.Context, index int) {
	v.selected = append(v.selected, index)
}

func (v *recordingViews) SetStatus(state constants.ProcessState, description string) {
	v.status = append(v.status, state)
}

func (v *recordingViews) AppendOutput(origin constants.OutputOrigin, text string) {
	v.outputs = append(v.outputs, output{origin: origin, text: text})
}

func (v *recordingViews) InvalidateSourceCache() {
	v.invalidates++
}

func (v *recordingViews) outputsOf(origin constants.OutputOrigin) []string {
	var answer []string
	for _, o := range v.outputs {
		if o.origin == origin {
			answer = append(answer, o.text)
		}
	}
	return answer
}

func newFrames(thread int, count int) []*debugger.Frame {
	frames := make([]*debugger.Frame, 0, count)
	for i := 0; i < count; i++ {
		frames = append(frames, &debugger.Frame{
			ID:       debugger.FrameID{Thread: thread, Index: i},
			Function: "f" + string(rune('a'+i)),
		})
	}
	return frames
}

func newTestPump(config Config) (*Pump, *mock_debugger.MockDebugger, *recordingViews) {
	d := mock_debugger.NewMockDebugger()
	d.SetThreads(&debugger.Thread{ID: 1, Name: "main"}, &debugger.Thread{ID: 2, Name: "worker"})
	d.SetFrames(1, newFrames(1, 3)...)
	d.SetFrames(2, newFrames(2, 5)...)
	views := &recordingViews{}
	return New(d, views, config), d, views
}

func TestViewsToRefresh(t *testing.T) {
	stopped := []constants.ViewID{constants.ViewStack, constants.ViewCode, constants.ViewDisassembly,
		constants.ViewLocals, constants.ViewRegisters, constants.ViewStatus}
	tests := []struct {
		from, to constants.ProcessState
		want     []constants.ViewID
	}{
		{constants.StateRunning, constants.StateStopped, stopped},
		{constants.StateStopped, constants.StateStopped, stopped},
		{constants.StateRunning, constants.StateExited, []constants.ViewID{constants.ViewOutput, constants.ViewStatus}},
		{constants.StateStopped, constants.StateCrashed, []constants.ViewID{constants.ViewOutput, constants.ViewStatus}},
		{constants.StateRunning, constants.StateDetached, []constants.ViewID{constants.ViewOutput, constants.ViewStatus}},
		{constants.StateRunning, constants.StateUnloaded, []constants.ViewID{constants.ViewOutput, constants.ViewStatus}},
		{constants.StateStopped, constants.StateRunning, []constants.ViewID{constants.ViewStatus}},
		{constants.StateInvalid, constants.StateLaunching, []constants.ViewID{constants.ViewStatus}},
		{constants.StateInvalid, constants.StateAttaching, []constants.ViewID{constants.ViewStatus}},
		{constants.StateInvalid, constants.StateConnected, []constants.ViewID{constants.ViewStatus}},
		{constants.StateRunning, constants.StateInvalid, nil},
		// 终止以后只有重新启动才会刷新
		{constants.StateExited, constants.StateStopped, nil},
		{constants.StateExited, constants.StateDetached, nil},
		{constants.StateCrashed, constants.StateRunning, nil},
		{constants.StateExited, constants.StateLaunching, []constants.ViewID{constants.ViewStatus}},
	}
	for _, tt := range tests {
		got := ViewsToRefresh(tt.from, tt.to)
		assert.ElementsMatch(t, tt.want, utils.SetValues[constants.ViewID](got), "%s -> %s", tt.from, tt.to)
	}
}

func TestStoppedRebuildsStack(t *testing.T) {
	p, d, views := newTestPump(DefaultConfig())
	d.Push(debugger.NewStateEvent(constants.StateRunning), debugger.NewStoppedEvent(1, "breakpoint"))
	assert.Equal(t, 2, p.Tick(context.Background()))

	assert.Equal(t, 1, views.thread.ID)
	assert.Equal(t, 3, len(views.frames))
	assert.Equal(t, []int{0}, views.selected)
	assert.Equal(t, []constants.ProcessState{constants.StateRunning, constants.StateStopped}, views.status)
	assert.Equal(t, constants.StateStopped, p.State())
	assert.False(t, p.Terminal())
}

func TestStoppedThreadChoice(t *testing.T) {
	p, d, views := newTestPump(DefaultConfig())
	d.Push(debugger.NewStoppedEvent(2, ""))
	p.Tick(context.Background())
	assert.Equal(t, 2, views.thread.ID)
	assert.Equal(t, 5, len(views.frames))

	// 引擎没有报告线程，或者报告的线程不存在时选择第一个线程
	d.Push(debugger.NewStoppedEvent(0, ""))
	p.Tick(context.Background())
	assert.Equal(t, 1, views.thread.ID)
	d.Push(debugger.NewStoppedEvent(9, ""))
	p.Tick(context.Background())
	assert.Equal(t, 1, views.thread.ID)
	assert.Equal(t, 3, views.stackBuilds)
}

func TestTerminalOnlyOnce(t *testing.T) {
	for _, state := range []constants.ProcessState{constants.StateExited, constants.StateCrashed, constants.StateDetached} {
		p, d, views := newTestPump(DefaultConfig())
		terminal := debugger.NewStateEvent(state)
		terminal.ExitCode = 3
		d.Push(debugger.NewStoppedEvent(1, ""), terminal, debugger.NewExitedEvent(0, ""),
			debugger.NewStateEvent(constants.StateDetached), debugger.NewStoppedEvent(1, ""))
		p.Tick(context.Background())

		assert.True(t, p.Terminal())
		assert.Equal(t, state, p.State())
		assert.Equal(t, 1, len(views.outputsOf(constants.OriginStatus)), state)
		// 终止以后没有再重建栈视图
		assert.Equal(t, 1, views.stackBuilds, state)
		assert.Equal(t, 1, d.Calls(mock_debugger.OpFrames), state)
		assert.Equal(t, []constants.ProcessState{constants.StateStopped, state}, views.status)
	}
}

func TestTerminalMessage(t *testing.T) {
	p, d, views := newTestPump(DefaultConfig())
	d.Push(debugger.NewExitedEvent(3, ""))
	p.Tick(context.Background())
	assert.Equal(t, []string{"Process exited with status 3\n"}, views.outputsOf(constants.OriginStatus))

	p, d, views = newTestPump(DefaultConfig())
	crashed := debugger.NewStateEvent(constants.StateCrashed)
	crashed.Description = "terminated by SIGKILL (Killed)"
	d.Push(crashed)
	p.Tick(context.Background())
	assert.Equal(t, []string{"Process crashed: terminated by SIGKILL (Killed)\n"}, views.outputsOf(constants.OriginStatus))
}

func TestRestartAfterExit(t *testing.T) {
	p, d, views := newTestPump(DefaultConfig())
	d.Push(debugger.NewExitedEvent(0, ""))
	p.Tick(context.Background())
	assert.True(t, p.Terminal())

	d.Push(debugger.NewStateEvent(constants.StateLaunching), debugger.NewStoppedEvent(1, ""))
	p.Tick(context.Background())
	assert.False(t, p.Terminal())
	assert.Equal(t, 1, views.invalidates)
	assert.Equal(t, 1, views.stackBuilds)

	d.Push(debugger.NewExitedEvent(1, ""))
	p.Tick(context.Background())
	assert.Equal(t, 2, len(views.outputsOf(constants.OriginStatus)))
}

func TestMaxEventsPerTick(t *testing.T) {
	p, d, views := newTestPump(Config{MaxEventsPerTick: 3})
	for i := 0; i < 7; i++ {
		d.Push(debugger.NewEngineOutputEvent("line\n"))
	}
	assert.Equal(t, 3, p.Tick(context.Background()))
	assert.Equal(t, 3, len(views.outputsOf(constants.OriginEngine)))
	assert.Equal(t, 3, p.Tick(context.Background()))
	assert.Equal(t, 1, p.Tick(context.Background()))
	assert.Equal(t, 0, p.Tick(context.Background()))
	assert.Equal(t, 7, len(views.outputsOf(constants.OriginEngine)))
}

func TestDrainStopsAtEmptyRead(t *testing.T) {
	p, d, views := newTestPump(Config{DrainChunkSize: 1024})
	d.WriteStdout(strings.Repeat("a", 2500))
	d.WriteStderr("oops\n")
	p.Tick(context.Background())
	program := views.outputsOf(constants.OriginProgram)
	assert.Equal(t, 4, len(program))
	assert.Equal(t, 1024, len(program[0]))
	assert.Equal(t, 452, len(program[2]))
	// stdout先于stderr
	assert.Equal(t, "oops\n", program[3])
}

func TestDrainIsBounded(t *testing.T) {
	p, d, views := newTestPump(Config{MaxDrainChunks: 5, DrainChunkSize: 8})
	d.SetEndlessStdout("forever forever")
	d.WriteStderr("err")
	p.Tick(context.Background())
	program := views.outputsOf(constants.OriginProgram)
	assert.Equal(t, 6, len(program))
	assert.Equal(t, "forever ", program[0])
	assert.Equal(t, "err", program[5])

	p.Tick(context.Background())
	assert.Equal(t, 11, len(views.outputsOf(constants.OriginProgram)))
}

func TestEngineFailures(t *testing.T) {
	p, d, views := newTestPump(DefaultConfig())
	d.Fail(mock_debugger.OpThreads, errors.New("boom"))
	d.Push(debugger.NewStoppedEvent(1, ""))
	p.Tick(context.Background())
	assert.Equal(t, []string{"threads: boom"}, views.outputsOf(constants.OriginEngineError))
	assert.Nil(t, views.thread)
	assert.Equal(t, []int{-1}, views.selected)

	d.Fail(mock_debugger.OpThreads, nil)
	d.Fail(mock_debugger.OpFrames, errors.New("no stack"))
	d.Push(debugger.NewStoppedEvent(1, ""))
	p.Tick(context.Background())
	assert.Equal(t, "frames: no stack", views.outputsOf(constants.OriginEngineError)[1])
	assert.Equal(t, 1, views.thread.ID)
	assert.Equal(t, 0, len(views.frames))
	assert.Equal(t, []int{-1, -1}, views.selected)

	// 没有线程
	p, d, views = newTestPump(DefaultConfig())
	d.SetThreads()
	d.Push(debugger.NewStoppedEvent(1, ""))
	p.Tick(context.Background())
	assert.Nil(t, views.thread)
	assert.Equal(t, 0, len(views.outputsOf(constants.OriginEngineError)))
}

func TestNonStateEvents(t *testing.T) {
	p, d, views := newTestPump(DefaultConfig())
	d.Push(debugger.NewEngineOutputEvent("Breakpoint 1, main () at main.c:4\n"),
		debugger.NewEngineOutputEvent(""),
		debugger.NewStateEvent(constants.StateInvalid))
	assert.Equal(t, 3, p.Tick(context.Background()))
	assert.Equal(t, []string{"Breakpoint 1, main () at main.c:4\n"}, views.outputsOf(constants.OriginEngine))
	assert.Equal(t, 0, len(views.status))
	assert.Equal(t, constants.StateInvalid, p.State())
}
