package debugger

import (
	"strings"
	"sync"
	"testing"

	"github.com/fansqz/debugview/constants"
	"github.com/stretchr/testify/assert"
)

func TestEventQueue(t *testing.T) {
	q := NewEventQueue()
	_, ok := q.Pop()
	assert.False(t, ok)

	q.Push(NewStateEvent(constants.StateRunning))
	q.Push(nil)
	q.Push(NewStoppedEvent(2, "breakpoint"))
	assert.Equal(t, 2, q.Len())

	event, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, constants.StateRunning, event.State)
	event, ok = q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 2, event.ThreadID)
	assert.Equal(t, 0, q.Len())
}

func TestEventQueueConcurrentPush(t *testing.T) {
	q := NewEventQueue()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(NewEngineOutputEvent("x"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, q.Len())
}

func TestOutputBuffer(t *testing.T) {
	b := NewOutputBuffer()
	assert.Equal(t, "", b.Read(16))
	b.WriteString("hello world")
	assert.Equal(t, "", b.Read(0))
	assert.Equal(t, "hello", b.Read(5))
	assert.Equal(t, 6, b.Len())
	assert.Equal(t, " world", b.Read(100))
	assert.Equal(t, "", b.Read(100))
}

func TestOutputBufferKeepsRunes(t *testing.T) {
	b := NewOutputBuffer()
	b.WriteString("a你好")
	// "你" 占3个字节，读取2个字节时不能截断
	assert.Equal(t, "a", b.Read(2))
	assert.Equal(t, "你", b.Read(4))
	assert.Equal(t, "好", b.Read(3))

	// 第一个字符就超过max时原样按字节返回，保证有进展
	b.WriteString("好")
	chunk := b.Read(1)
	assert.Equal(t, 1, len(chunk))
	assert.Equal(t, 2, b.Len())
}

func TestValueTracker(t *testing.T) {
	tracker := NewValueTracker()
	build := func(x, y, child string) []*Value {
		return []*Value{
			{Name: "x", Value: x},
			{Name: "y", Value: y, Children: []*Value{{Name: "id", Value: child}}},
		}
	}
	// 第一次出现的变量不算变化
	values := build("1", "{...}", "7")
	tracker.Mark("locals/main", values)
	assert.False(t, values[0].Changed)
	assert.False(t, values[1].Children[0].Changed)

	// 同一次停止中重复读取不会产生变化
	values = build("1", "{...}", "7")
	tracker.Mark("locals/main", values)
	assert.False(t, values[0].Changed)

	tracker.NextStop()
	values = build("2", "{...}", "8")
	tracker.Mark("locals/main", values)
	assert.True(t, values[0].Changed)
	assert.False(t, values[1].Changed)
	assert.True(t, values[1].Children[0].Changed)

	// 不同作用域的同名变量互不影响
	other := build("100", "{...}", "0")
	tracker.Mark("locals/fib", other)
	assert.False(t, other[0].Changed)

	tracker.Reset()
	tracker.NextStop()
	values = build("3", "{...}", "9")
	tracker.Mark("locals/main", values)
	assert.False(t, values[0].Changed)
}

func TestObjectsString(t *testing.T) {
	assert.Equal(t, "1#2", FrameID{Thread: 1, Index: 2}.String())
	assert.Equal(t, "main:12", (&Frame{Function: "main", Line: 12}).Location())
	assert.Equal(t, "??", (&Frame{Function: "??"}).Location())
	assert.True(t, strings.HasPrefix((&Instruction{Address: 0x10, Text: "ret"}).String(), "0x10"))
	assert.True(t, NewExitedEvent(1, "").IsProcessEvent())
	assert.False(t, NewEngineOutputEvent("x").IsProcessEvent())
	assert.True(t, NewCommandSuccess("ok").Succeeded)
	assert.Equal(t, "bad", NewCommandFailure("bad").Error)
}
