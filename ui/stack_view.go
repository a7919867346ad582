package ui

import (
	"fmt"
	"strings"

	"github.com/fansqz/debugview/debugger"
)

// StackView 停止线程的栈帧列表，选中的栈帧决定其他四个视图的内容
type StackView struct {
	thread   *debugger.Thread
	frames   []*debugger.Frame
	selected int
}

func NewStackView() *StackView {
	return &StackView{selected: -1}
}

// SetFrames 重建栈视图，清空选择
func (v *StackView) SetFrames(thread *debugger.Thread, frames []*debugger.Frame) {
	v.thread = thread
	v.frames = frames
	v.selected = -1
}

func (v *StackView) Thread() *debugger.Thread {
	return v.thread
}

func (v *StackView) Frames() []*debugger.Frame {
	return v.frames
}

// Selected 选中的序号，-1表示没有
func (v *StackView) Selected() int {
	return v.selected
}

// SelectedFrame 选中的栈帧
func (v *StackView) SelectedFrame() *debugger.Frame {
	if v.selected < 0 || v.selected >= len(v.frames) {
		return nil
	}
	return v.frames[v.selected]
}

func (v *StackView) Items() []TreeItem {
	items := make([]TreeItem, 0, len(v.frames))
	for _, frame := range v.frames {
		items = append(items, FrameItem{Frame: frame})
	}
	return items
}

func (v *StackView) Title() string {
	if v.thread == nil {
		return "Stack"
	}
	if v.thread.Name == "" {
		return fmt.Sprintf("Stack thread %d", v.thread.ID)
	}
	return fmt.Sprintf("Stack thread %d %s", v.thread.ID, v.thread.Name)
}

func (v *StackView) Render(width, height int) string {
	if len(v.frames) == 0 || height <= 0 {
		return ""
	}
	start, end := window(len(v.frames), v.selected, height)
	items := v.Items()
	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		name, _, location, _ := items[i].RenderRow()
		line := clip(fmt.Sprintf("%-4s %s", name, location), width)
		if i == v.selected {
			line = selectedStyle.Render(line)
		}
		rows = append(rows, line)
	}
	return strings.Join(rows, "\n")
}
