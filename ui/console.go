package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/emirpasic/gods/queues/circularbuffer"
	"github.com/fansqz/debugview/constants"
	"github.com/fansqz/debugview/debugger"
	"github.com/sirupsen/logrus"
)

// OutputEntry 输出面板中的一段文本
type OutputEntry struct {
	Origin constants.OutputOrigin
	Text   string
}

// Console 命令输入框和输出面板
// 命令原样交给引擎的命令解释器，不做任何解析
type Console struct {
	// entries 输出面板保留最近的若干段文本，满了以后丢弃最旧的
	entries *circularbuffer.Queue
	// openLine 最后一段文本没有以换行结尾
	openLine bool
	output   *scroller
	input    textinput.Model

	history      []string
	historyIndex int
}

func NewConsole(maxEntries int) *Console {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	input := textinput.New()
	input.Prompt = "(dbg) "
	input.Placeholder = "debugger command"
	input.Focus()
	return &Console{
		entries: circularbuffer.New(maxEntries),
		output:  newScroller(true),
		input:   input,
	}
}

// Append 追加一段输出，被调试程序的输出原样保留
// 其他来源的文本总是独占若干整行
func (c *Console) Append(origin constants.OutputOrigin, text string) {
	if text == "" {
		return
	}
	if origin != constants.OriginProgram {
		if c.openLine {
			text = "\n" + text
		}
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
	}
	c.openLine = !strings.HasSuffix(text, "\n")
	c.entries.Enqueue(OutputEntry{Origin: origin, Text: text})
}

// Entries 输出面板中的所有文本，按追加顺序
func (c *Console) Entries() []OutputEntry {
	values := c.entries.Values()
	answer := make([]OutputEntry, 0, len(values))
	for _, value := range values {
		answer = append(answer, value.(OutputEntry))
	}
	return answer
}

// Input 输入框当前的文本
func (c *Console) Input() string {
	return c.input.Value()
}

func (c *Console) SetInput(value string) {
	c.input.SetValue(value)
	c.input.CursorEnd()
}

func (c *Console) Focus() tea.Cmd {
	return c.input.Focus()
}

func (c *Console) Blur() {
	c.input.Blur()
}

// Update 把按键交给输入框
func (c *Console) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return cmd
}

// Submit 执行输入框中的命令，回显命令并输出结果
func (c *Console) Submit(ctx context.Context, d debugger.Debugger) {
	command := c.input.Value()
	c.input.SetValue("")
	if strings.TrimSpace(command) == "" {
		return
	}
	c.history = append(c.history, command)
	c.historyIndex = len(c.history)

	c.Append(constants.OriginCommand, command)
	logrus.Infof("[Console] HandleCommand %s", command)
	result := d.HandleCommand(ctx, command)
	if result == nil {
		return
	}
	if result.Succeeded {
		c.Append(constants.OriginEngine, result.Output)
	} else {
		c.Append(constants.OriginEngineError, result.Error)
	}
}

// HistoryUp 输入框显示上一条命令
func (c *Console) HistoryUp() {
	if len(c.history) == 0 {
		return
	}
	if c.historyIndex > 0 {
		c.historyIndex--
	}
	c.SetInput(c.history[c.historyIndex])
}

// HistoryDown 输入框显示下一条命令，越过最后一条时清空
func (c *Console) HistoryDown() {
	if c.historyIndex >= len(c.history) {
		return
	}
	c.historyIndex++
	if c.historyIndex == len(c.history) {
		c.SetInput("")
		return
	}
	c.SetInput(c.history[c.historyIndex])
}

// segment 一段同样样式的文本
type segment struct {
	style lipgloss.Style
	text  string
}

// RenderOutput 渲染输出面板，长行按width折行，默认显示最后height行
func (c *Console) RenderOutput(width, height int) string {
	if height <= 0 {
		return ""
	}
	lines := [][]segment{nil}
	for _, entry := range c.Entries() {
		style := originStyle(entry.Origin)
		pieces := strings.Split(entry.Text, "\n")
		for i, piece := range pieces {
			if i > 0 {
				lines = append(lines, nil)
			}
			if piece == "" {
				continue
			}
			lines[len(lines)-1] = append(lines[len(lines)-1], segment{style: style, text: expandTabs(piece)})
		}
	}
	// 最后的空行是结尾的换行
	if len(lines) > 1 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	rendered := make([]string, 0, len(lines))
	for _, line := range lines {
		for _, row := range wrapSegments(line, width) {
			var b strings.Builder
			for _, seg := range row {
				b.WriteString(seg.style.Render(seg.text))
			}
			rendered = append(rendered, b.String())
		}
	}
	return strings.Join(c.output.visible(rendered, height), "\n")
}

// ScrollOutput 滚动输出面板，回到最后一行以后继续跟随新的输出
func (c *Console) ScrollOutput(key string) bool {
	return c.output.followScroll(key)
}

// wrapSegments 按终端列宽把一行切成若干行
func wrapSegments(line []segment, width int) [][]segment {
	if width <= 0 {
		return [][]segment{line}
	}
	answer := [][]segment{nil}
	used := 0
	for _, seg := range line {
		text := seg.text
		for text != "" {
			if used >= width {
				answer = append(answer, nil)
				used = 0
			}
			last := len(answer) - 1
			if w := ansi.StringWidth(text); w <= width-used {
				answer[last] = append(answer[last], segment{style: seg.style, text: text})
				used += w
				break
			}
			head := ansi.Truncate(text, width-used, "")
			headWidth := ansi.StringWidth(head)
			if headWidth == 0 {
				if used > 0 {
					used = width
					continue
				}
				// 一个字符比整个面板还宽
				answer[last] = append(answer[last], segment{style: seg.style, text: text})
				break
			}
			answer[last] = append(answer[last], segment{style: seg.style, text: head})
			used += headWidth
			text = ansi.TruncateLeft(text, headWidth, "")
		}
	}
	return answer
}

// RenderInput 渲染输入框
func (c *Console) RenderInput(width int) string {
	c.input.Width = max(10, width-len(c.input.Prompt)-1)
	return c.input.View()
}
