package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/fansqz/debugview/constants"
	"github.com/fansqz/debugview/debugger"
	"github.com/fansqz/debugview/sourceindex"
	"github.com/sirupsen/logrus"
)

// NoFrame 视图没有展示任何栈帧
var NoFrame = debugger.FrameID{Thread: -1, Index: -1}

// SourceFile 缓存的源文件
type SourceFile struct {
	Path    string
	Content []byte
	Lines   []string
}

// SourceCache 按文件名缓存源文件，进程重启时清空
// 读取失败的文件也会缓存，避免每次停止都重新读
type SourceCache struct {
	files map[string]*SourceFile
}

func NewSourceCache() *SourceCache {
	return &SourceCache{files: map[string]*SourceFile{}}
}

// Load 读取源文件，文件不存在时返回nil
func (c *SourceCache) Load(path string) *SourceFile {
	if path == "" {
		return nil
	}
	if file, ok := c.files[path]; ok {
		return file
	}
	content, err := os.ReadFile(path)
	if err != nil {
		logrus.Infof("[SourceCache] read %s fail, err = %v", path, err)
		c.files[path] = nil
		return nil
	}
	file := &SourceFile{
		Path:    path,
		Content: content,
		Lines:   strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n"),
	}
	c.files[path] = file
	return file
}

func (c *SourceCache) Invalidate() {
	c.files = map[string]*SourceFile{}
}

// sourceLine 栈帧在源文件中的行号
// 引擎没有给出行号时，用函数定义所在的行
func sourceLine(frame *debugger.Frame, file *SourceFile) int {
	if frame == nil || file == nil {
		return 0
	}
	if frame.Line > 0 {
		return frame.Line
	}
	line, ok := sourceindex.FindFunction(file.Content, constants.DetectLanguage(file.Path), frame.Function)
	if !ok {
		return 0
	}
	return line
}

// CodeView 源码视图，高亮当前行
type CodeView struct {
	frame debugger.FrameID
	file  *SourceFile
	line  int
}

func NewCodeView() *CodeView {
	return &CodeView{frame: NoFrame}
}

// SetFrame 切换到快照中的栈帧，snapshot为nil时清空
func (v *CodeView) SetFrame(snapshot *FrameSnapshot) {
	if snapshot == nil || snapshot.Frame == nil {
		v.frame = NoFrame
		v.file = nil
		v.line = 0
		return
	}
	v.frame = snapshot.Frame.ID
	v.file = snapshot.Source
	v.line = snapshot.Line
}

func (v *CodeView) Frame() debugger.FrameID {
	return v.frame
}

// CurrentLine 当前行，0表示没有
func (v *CodeView) CurrentLine() int {
	return v.line
}

// Title 面板标题
func (v *CodeView) Title() string {
	if v.file == nil {
		return "Code"
	}
	return "Code " + v.file.Path
}

// Render 渲染当前行附近height行源码
func (v *CodeView) Render(width, height int) string {
	if v.file == nil || height <= 0 {
		return ""
	}
	lines := v.file.Lines
	// 文件以换行结尾时最后一个元素为空
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	start, end := window(len(lines), v.line-1, height)
	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		number := i + 1
		if number == v.line {
			rows = append(rows, currentStyle.Render(clip(fmt.Sprintf("=> %4d  %s", number, expandTabs(lines[i])), width)))
			continue
		}
		rows = append(rows, clip(fmt.Sprintf("   %4d  %s", number, expandTabs(lines[i])), width))
	}
	return strings.Join(rows, "\n")
}

// window 返回包含current的长度不超过height的区间[start, end)
func window(total, current, height int) (int, int) {
	if total <= height {
		return 0, total
	}
	if current < 0 {
		return 0, height
	}
	start := current - height/2
	if start < 0 {
		start = 0
	}
	if start+height > total {
		start = total - height
	}
	return start, start + height
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}

// clip 按终端列宽截断一行文本
func clip(s string, width int) string {
	if width <= 0 {
		return s
	}
	return ansi.Truncate(s, width, "")
}
