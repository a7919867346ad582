package ui

import (
	"strings"

	"github.com/fansqz/debugview/debugger"
)

// DisassemblyView 当前栈帧所在函数的反汇编
type DisassemblyView struct {
	frame        debugger.FrameID
	pc           uint64
	instructions []*debugger.Instruction
	scroller     *scroller
	// centre 用户没有滚动时pc所在的指令显示在中间
	centre bool
}

func NewDisassemblyView() *DisassemblyView {
	return &DisassemblyView{frame: NoFrame, scroller: newScroller(false), centre: true}
}

func (v *DisassemblyView) SetFrame(snapshot *FrameSnapshot) {
	v.centre = true
	if snapshot == nil || snapshot.Frame == nil {
		v.frame = NoFrame
		v.pc = 0
		v.instructions = nil
		return
	}
	v.frame = snapshot.Frame.ID
	v.pc = snapshot.Frame.PC
	v.instructions = snapshot.Instructions
}

func (v *DisassemblyView) Frame() debugger.FrameID {
	return v.frame
}

func (v *DisassemblyView) Instructions() []*debugger.Instruction {
	return v.instructions
}

// Render 每行一条指令，pc所在的指令高亮
func (v *DisassemblyView) Render(width, height int) string {
	if len(v.instructions) == 0 || height <= 0 {
		return ""
	}
	current := -1
	for i, instruction := range v.instructions {
		if instruction.Address == v.pc {
			current = i
			break
		}
	}
	rows := make([]string, 0, len(v.instructions))
	for i, instruction := range v.instructions {
		if i == current {
			rows = append(rows, currentStyle.Render(clip("=> "+instruction.String(), width)))
			continue
		}
		rows = append(rows, clip("   "+instruction.String(), width))
	}
	if v.centre {
		start, _ := window(len(rows), current, height)
		v.scroller.viewport.YOffset = start
	}
	return strings.Join(v.scroller.visible(rows, height), "\n")
}

// Scroll 上下滚动，之后不再跟随pc
func (v *DisassemblyView) Scroll(key string) bool {
	if !v.scroller.scroll(key) {
		return false
	}
	v.centre = false
	return true
}
