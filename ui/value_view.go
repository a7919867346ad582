package ui

import (
	"fmt"
	"strings"

	"github.com/fansqz/debugview/debugger"
)

// TreeItem 树形视图中的一行，栈帧、寄存器或局部变量
type TreeItem interface {
	RenderRow() (name, typ, value string, changed bool)
}

// FrameItem 栈视图中的一帧
type FrameItem struct {
	Frame *debugger.Frame
}

func (f FrameItem) RenderRow() (string, string, string, bool) {
	location := f.Frame.Location()
	if f.Frame.Line <= 0 && f.Frame.PC != 0 {
		location = fmt.Sprintf("%s 0x%x", f.Frame.Function, f.Frame.PC)
	}
	return fmt.Sprintf("#%d", f.Frame.ID.Index), f.Frame.Function, location, false
}

// RegisterItem 寄存器，没有类型
type RegisterItem struct {
	Value *debugger.Value
}

func (r RegisterItem) RenderRow() (string, string, string, bool) {
	return r.Value.Name, r.Value.Type, r.Value.Value, r.Value.Changed
}

// LocalVariableItem 局部变量，可以有子节点
type LocalVariableItem struct {
	Value *debugger.Value
}

func (l LocalVariableItem) RenderRow() (string, string, string, bool) {
	return l.Value.Name, l.Value.Type, l.Value.Value, l.Value.Changed
}

// children 可展开节点的子节点
func children(item TreeItem) []TreeItem {
	switch item := item.(type) {
	case LocalVariableItem:
		answer := make([]TreeItem, 0, len(item.Value.Children))
		for _, child := range item.Value.Children {
			answer = append(answer, LocalVariableItem{Value: child})
		}
		return answer
	case RegisterItem:
		answer := make([]TreeItem, 0, len(item.Value.Children))
		for _, child := range item.Value.Children {
			answer = append(answer, RegisterItem{Value: child})
		}
		return answer
	}
	return nil
}

// Row 展开以后的一行
type Row struct {
	Depth   int
	Name    string
	Type    string
	Value   string
	Changed bool
}

func flatten(items []TreeItem, depth int, rows []Row) []Row {
	for _, item := range items {
		name, typ, value, changed := item.RenderRow()
		rows = append(rows, Row{Depth: depth, Name: name, Type: typ, Value: value, Changed: changed})
		rows = flatten(children(item), depth+1, rows)
	}
	return rows
}

// ValueKind 局部变量或寄存器
type ValueKind int

const (
	KindLocals ValueKind = iota
	KindRegisters
)

// ValueView 局部变量和寄存器视图，值变化的行高亮
type ValueView struct {
	kind     ValueKind
	frame    debugger.FrameID
	items    []TreeItem
	rows     []Row
	scroller *scroller
}

func NewValueView(kind ValueKind) *ValueView {
	return &ValueView{kind: kind, frame: NoFrame, scroller: newScroller(false)}
}

// SetFrame 换成另一帧时回到第一行，同一帧刷新时保留滚动位置
func (v *ValueView) SetFrame(snapshot *FrameSnapshot) {
	v.items = nil
	v.rows = nil
	if snapshot == nil || snapshot.Frame == nil {
		v.frame = NoFrame
		v.scroller.top()
		return
	}
	if snapshot.Frame.ID != v.frame {
		v.scroller.top()
	}
	v.frame = snapshot.Frame.ID
	values := snapshot.Locals
	if v.kind == KindRegisters {
		values = snapshot.Registers
	}
	for _, value := range values {
		if v.kind == KindRegisters {
			v.items = append(v.items, RegisterItem{Value: value})
		} else {
			v.items = append(v.items, LocalVariableItem{Value: value})
		}
	}
	v.rows = flatten(v.items, 0, nil)
}

func (v *ValueView) Frame() debugger.FrameID {
	return v.frame
}

func (v *ValueView) Title() string {
	if v.kind == KindRegisters {
		return "Registers"
	}
	return "Locals"
}

// Rows 展开以后的所有行
func (v *ValueView) Rows() []Row {
	return v.rows
}

// Scroll 上下滚动
func (v *ValueView) Scroll(key string) bool {
	return v.scroller.scroll(key)
}

// Render 渲染滚动位置开始的height行，变化的行以*标记
func (v *ValueView) Render(width, height int) string {
	if len(v.rows) == 0 || height <= 0 {
		return ""
	}
	nameWidth, typeWidth := 0, 0
	for _, row := range v.rows {
		nameWidth = max(nameWidth, len([]rune(row.Name))+row.Depth*2)
		typeWidth = max(typeWidth, len([]rune(row.Type)))
	}
	lines := make([]string, 0, len(v.rows))
	for _, row := range v.rows {
		name := strings.Repeat("  ", row.Depth) + row.Name
		marker := " "
		if row.Changed {
			marker = "*"
		}
		var line string
		if typeWidth > 0 {
			line = fmt.Sprintf("%s %-*s  %-*s  %s", marker, nameWidth, name, typeWidth, row.Type, row.Value)
		} else {
			line = fmt.Sprintf("%s %-*s  %s", marker, nameWidth, name, row.Value)
		}
		line = clip(line, width)
		if row.Changed {
			line = changedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(v.scroller.visible(lines, height), "\n")
}
